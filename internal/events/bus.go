package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vodforge/vodforge/internal/logger"
)

// eventBus implements the EventBus interface with a buffered channel and a
// single dispatch goroutine, so handlers observe events in publish order.
type eventBus struct {
	config BusConfig

	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	eventChannel  chan Event
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewEventBus creates a new event bus instance.
func NewEventBus(config BusConfig) EventBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig().BufferSize
	}
	return &eventBus{
		config:        config,
		subscriptions: make(map[string]*Subscription),
		eventChannel:  make(chan Event, config.BufferSize),
		stopCh:        make(chan struct{}),
	}
}

// Start starts the dispatch loop.
func (eb *eventBus) Start(ctx context.Context) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.running {
		return fmt.Errorf("event bus is already running")
	}
	eb.running = true
	eb.stopCh = make(chan struct{})

	eb.wg.Add(1)
	go eb.dispatch()

	logger.Info("event bus started", logger.Int("buffer_size", eb.config.BufferSize))
	return nil
}

// Stop stops the bus gracefully, draining buffered events.
func (eb *eventBus) Stop(ctx context.Context) error {
	eb.mu.Lock()
	if !eb.running {
		eb.mu.Unlock()
		return nil
	}
	eb.running = false
	eb.mu.Unlock()

	close(eb.eventChannel)

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("event bus stop timed out")
		return ctx.Err()
	}
}

// Publish publishes an event, blocking until accepted or ctx is done.
func (eb *eventBus) Publish(ctx context.Context, event Event) error {
	if err := eb.prepare(&event); err != nil {
		return err
	}
	select {
	case eb.eventChannel <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAsync publishes without blocking; drops the event if the buffer is
// full.
func (eb *eventBus) PublishAsync(event Event) error {
	if err := eb.prepare(&event); err != nil {
		return err
	}
	select {
	case eb.eventChannel <- event:
		return nil
	default:
		logger.Warn("event channel full, dropping event",
			logger.String("event_type", string(event.Type)),
			logger.String("event_id", event.ID))
		return fmt.Errorf("event channel full")
	}
}

func (eb *eventBus) prepare(event *Event) error {
	eb.mu.RLock()
	running := eb.running
	eb.mu.RUnlock()
	if !running {
		return fmt.Errorf("event bus is not running")
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	return nil
}

// Subscribe registers a handler for events matching the filter.
func (eb *eventBus) Subscribe(filter EventFilter, subscriber string, handler EventHandler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	sub := &Subscription{
		ID:         uuid.NewString(),
		Filter:     filter,
		Handler:    handler,
		Subscriber: subscriber,
		Created:    time.Now(),
	}

	eb.mu.Lock()
	eb.subscriptions[sub.ID] = sub
	eb.mu.Unlock()

	logger.Debug("event subscription added",
		logger.String("subscription_id", sub.ID),
		logger.String("subscriber", subscriber))
	return sub, nil
}

// Unsubscribe removes a subscription.
func (eb *eventBus) Unsubscribe(subscriptionID string) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if _, ok := eb.subscriptions[subscriptionID]; !ok {
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}
	delete(eb.subscriptions, subscriptionID)
	return nil
}

func (eb *eventBus) dispatch() {
	defer eb.wg.Done()

	for event := range eb.eventChannel {
		eb.mu.RLock()
		subs := make([]*Subscription, 0, len(eb.subscriptions))
		for _, sub := range eb.subscriptions {
			if sub.Filter.Matches(event) {
				subs = append(subs, sub)
			}
		}
		eb.mu.RUnlock()

		for _, sub := range subs {
			if err := sub.Handler(event); err != nil {
				logger.Warn("event handler failed",
					logger.String("subscriber", sub.Subscriber),
					logger.String("event_type", string(event.Type)),
					logger.Err(err))
				continue
			}
			sub.TriggerCount++
		}
	}
}
