// Package scheduler owns the transcode job queue: a FIFO of processing jobs
// dispatched onto a bounded set of worker slots. All queue and job-table
// mutation happens on a single run loop fed by a command channel, so callers
// never share mutable state with the workers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"github.com/vodforge/vodforge/internal/events"
	"github.com/vodforge/vodforge/internal/metrics"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
)

// Scheduler dispatches transcode jobs in FIFO order, never running more than
// its slot count concurrently. Job records live only in memory; a restart
// forgets all queued and running jobs.
type Scheduler struct {
	slots    int
	runner   JobRunner
	eventBus events.EventBus
	logger   hclog.Logger

	commands chan command
	stopped  chan struct{}

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// job is the scheduler-private record for one video. Only the run loop
// touches it.
type job struct {
	videoID   string
	sourceKey string
	status    types.JobStatus
	cancelRun context.CancelFunc
	limiter   *rate.Limiter
}

type command interface{ apply(*loopState) }

type loopState struct {
	s       *Scheduler
	queue   []*job
	byVideo map[string]*job
	running int
}

// NewScheduler creates a scheduler with the given worker slot count.
func NewScheduler(slots int, runner JobRunner, eventBus events.EventBus, logger hclog.Logger) *Scheduler {
	if slots < 1 {
		slots = 1
	}
	return &Scheduler{
		slots:    slots,
		runner:   runner,
		eventBus: eventBus,
		logger:   logger.Named("scheduler"),
		commands: make(chan command),
		stopped:  make(chan struct{}),
	}
}

// Start launches the run loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	go s.run()
	s.logger.Info("scheduler started", "slots", s.slots)
	return nil
}

// Stop cancels all running jobs and shuts the run loop down. It waits for
// worker goroutines to observe cancellation and finish cleanup, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(s.stopped)
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) run() {
	state := &loopState{
		s:       s,
		byVideo: make(map[string]*job),
	}
	for {
		select {
		case cmd := <-s.commands:
			cmd.apply(state)
			state.dispatch()
		case <-s.stopped:
			return
		}
	}
}

// send routes a command to the run loop, failing once the scheduler stops.
func (s *Scheduler) send(cmd command) error {
	select {
	case s.commands <- cmd:
		return nil
	case <-s.stopped:
		return fmt.Errorf("scheduler is stopped")
	}
}

// Enqueue appends a job for the video. It fails with AlreadyQueuedError when
// a job for the video is already queued or running, and never blocks on slot
// availability.
func (s *Scheduler) Enqueue(videoID, sourceKey string) error {
	reply := make(chan error, 1)
	if err := s.send(&enqueueCmd{videoID: videoID, sourceKey: sourceKey, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

// Cancel removes a queued job or terminates a running one. It fails with
// NotFoundError when no job exists for the video.
func (s *Scheduler) Cancel(videoID string) error {
	reply := make(chan error, 1)
	if err := s.send(&cancelCmd{videoID: videoID, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

// Status returns a snapshot of the job for the video, failing with
// NotFoundError when none exists.
func (s *Scheduler) Status(videoID string) (types.JobStatus, error) {
	reply := make(chan statusReply, 1)
	if err := s.send(&statusCmd{videoID: videoID, reply: reply}); err != nil {
		return types.JobStatus{}, err
	}
	r := <-reply
	return r.status, r.err
}

// List returns snapshots of every live job, queued first in FIFO order.
func (s *Scheduler) List() []types.JobStatus {
	reply := make(chan []types.JobStatus, 1)
	if err := s.send(&listCmd{reply: reply}); err != nil {
		return nil
	}
	return <-reply
}

// Slots returns the configured worker slot count.
func (s *Scheduler) Slots() int { return s.slots }

// ---- commands ----

type enqueueCmd struct {
	videoID   string
	sourceKey string
	reply     chan error
}

func (c *enqueueCmd) apply(st *loopState) {
	if _, exists := st.byVideo[c.videoID]; exists {
		c.reply <- &types.AlreadyQueuedError{VideoID: c.videoID}
		return
	}

	j := &job{
		videoID:   c.videoID,
		sourceKey: c.sourceKey,
		status: types.JobStatus{
			VideoID:  c.videoID,
			State:    types.JobStateQueued,
			Enqueued: time.Now(),
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	st.byVideo[c.videoID] = j
	st.queue = append(st.queue, j)
	metrics.JobsQueued.Set(float64(len(st.queue)))

	st.s.logger.Info("job enqueued", "video_id", c.videoID, "queue_depth", len(st.queue))
	st.s.publish(events.EventVideoQueued, j.status)
	c.reply <- nil
}

type cancelCmd struct {
	videoID string
	reply   chan error
}

func (c *cancelCmd) apply(st *loopState) {
	j, exists := st.byVideo[c.videoID]
	if !exists {
		c.reply <- &types.NotFoundError{VideoID: c.videoID}
		return
	}

	switch j.status.State {
	case types.JobStateQueued:
		// A queued job has written nothing, so cancellation has no side
		// effects beyond dropping the record.
		st.removeQueued(j)
		j.status.State = types.JobStateCanceled
		st.s.logger.Info("queued job canceled", "video_id", c.videoID)
		st.finish(j)
	case types.JobStateRunning:
		// Signal the worker; the pipeline cleans up and reports back
		// through jobDoneCmd.
		j.cancelRun()
		st.s.logger.Info("running job cancellation requested", "video_id", c.videoID)
	}
	c.reply <- nil
}

type statusCmd struct {
	videoID string
	reply   chan statusReply
}

type statusReply struct {
	status types.JobStatus
	err    error
}

func (c *statusCmd) apply(st *loopState) {
	j, exists := st.byVideo[c.videoID]
	if !exists {
		c.reply <- statusReply{err: &types.NotFoundError{VideoID: c.videoID}}
		return
	}
	c.reply <- statusReply{status: j.status}
}

type listCmd struct {
	reply chan []types.JobStatus
}

func (c *listCmd) apply(st *loopState) {
	out := make([]types.JobStatus, 0, len(st.byVideo))
	for _, j := range st.queue {
		out = append(out, j.status)
	}
	for _, j := range st.byVideo {
		if j.status.State == types.JobStateRunning {
			out = append(out, j.status)
		}
	}
	c.reply <- out
}

// jobUpdateCmd carries throttled progress from a worker goroutine.
type jobUpdateCmd struct {
	videoID  string
	progress float64
	stage    string
}

func (c *jobUpdateCmd) apply(st *loopState) {
	j, exists := st.byVideo[c.videoID]
	if !exists || j.status.State != types.JobStateRunning {
		return
	}

	stageChanged := c.stage != j.status.Stage
	// Progress never regresses across stage boundaries.
	if c.progress > j.status.Progress {
		j.status.Progress = c.progress
	}
	if stageChanged {
		j.status.Stage = c.stage
		st.s.publish(events.EventVideoStage, j.status)
	}
	st.s.publish(events.EventVideoProgress, j.status)
}

// jobDoneCmd reports a worker's terminal outcome.
type jobDoneCmd struct {
	videoID string
	err     error
}

func (c *jobDoneCmd) apply(st *loopState) {
	j, exists := st.byVideo[c.videoID]
	if !exists {
		return
	}

	st.running--
	metrics.JobsRunning.Set(float64(st.running))

	switch {
	case c.err == nil:
		j.status.State = types.JobStateSucceeded
		j.status.Progress = 100
		j.status.Stage = "complete"
	case errors.Is(c.err, context.Canceled):
		j.status.State = types.JobStateCanceled
	default:
		j.status.State = types.JobStateFailed
		j.status.Error = c.err.Error()
		j.status.ErrorKind = types.ErrorKind(c.err)
	}

	st.s.logger.Info("job finished",
		"video_id", c.videoID,
		"state", j.status.State,
		"elapsed", time.Since(j.status.Enqueued).Round(time.Millisecond),
	)
	st.finish(j)
}

// ---- loop helpers ----

// dispatch promotes queued jobs to running while slots are free. Workers run
// off-loop; every result funnels back in as a command.
func (st *loopState) dispatch() {
	for st.running < st.s.slots && len(st.queue) > 0 {
		j := st.queue[0]
		st.queue = st.queue[1:]
		metrics.JobsQueued.Set(float64(len(st.queue)))

		runCtx, cancelRun := context.WithCancel(st.s.baseCtx)
		j.cancelRun = cancelRun
		j.status.State = types.JobStateRunning
		st.running++
		metrics.JobsRunning.Set(float64(st.running))
		metrics.JobStartsTotal.Inc()

		st.s.logger.Info("job started", "video_id", j.videoID, "running", st.running)
		st.s.startWorker(runCtx, j)
	}
}

// removeQueued drops a job from the FIFO.
func (st *loopState) removeQueued(target *job) {
	for i, j := range st.queue {
		if j == target {
			st.queue = append(st.queue[:i], st.queue[i+1:]...)
			break
		}
	}
	metrics.JobsQueued.Set(float64(len(st.queue)))
}

// finish publishes the terminal event and discards the job record, freeing
// the video for re-enqueue.
func (st *loopState) finish(j *job) {
	metrics.JobOutcomesTotal.WithLabelValues(string(j.status.State)).Inc()

	switch j.status.State {
	case types.JobStateSucceeded:
		st.s.publish(events.EventVideoCompleted, j.status)
	case types.JobStateFailed:
		st.s.publish(events.EventVideoFailed, j.status)
	case types.JobStateCanceled:
		st.s.publish(events.EventVideoCanceled, j.status)
	}

	delete(st.byVideo, j.videoID)
}

// startWorker runs the pipeline for one job off the loop goroutine.
func (s *Scheduler) startWorker(ctx context.Context, j *job) {
	limiter := j.limiter
	videoID := j.videoID
	sourceKey := j.sourceKey

	var lastStage string
	report := func(progress float64, stage string) {
		// Stage transitions and completion always go through; plain
		// progress ticks are throttled.
		if stage == lastStage && progress < 100 && !limiter.Allow() {
			return
		}
		lastStage = stage
		s.sendAsync(&jobUpdateCmd{videoID: videoID, progress: progress, stage: stage})
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.runner.Run(ctx, videoID, sourceKey, report)
		s.sendAsync(&jobDoneCmd{videoID: videoID, err: err})
	}()
}

// sendAsync delivers a command from a worker without deadlocking on shutdown.
func (s *Scheduler) sendAsync(cmd command) {
	select {
	case s.commands <- cmd:
	case <-s.stopped:
	}
}

func (s *Scheduler) publish(eventType events.EventType, status types.JobStatus) {
	if s.eventBus == nil {
		return
	}
	_ = s.eventBus.PublishAsync(events.NewVideoEvent(eventType, events.VideoEventData{
		VideoID:   status.VideoID,
		State:     string(status.State),
		Progress:  status.Progress,
		Stage:     status.Stage,
		Error:     status.Error,
		ErrorKind: status.ErrorKind,
	}))
}
