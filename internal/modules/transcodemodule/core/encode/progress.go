package encode

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
)

// progressReader consumes FFmpeg's -progress key=value output and converts
// out_time_us ticks into completion fractions against the known source
// duration. Lines that are not key=value pairs (regular FFmpeg log output
// shares the same stream) are collected into a tail buffer for error
// reporting.
type progressReader struct {
	duration time.Duration
	sink     types.ProgressSink

	lastFraction float64
	tail         []string
}

const tailLines = 20

func newProgressReader(duration time.Duration, sink types.ProgressSink) *progressReader {
	return &progressReader{duration: duration, sink: sink}
}

// consume reads r to EOF, reporting progress as it goes.
func (p *progressReader) consume(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.handleLine(scanner.Text())
	}
}

func (p *progressReader) handleLine(line string) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		p.remember(line)
		return
	}

	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg historically reported microseconds under both keys.
		us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || us < 0 {
			return
		}
		p.report(p.fractionFor(time.Duration(us) * time.Microsecond))
	case "progress":
		if strings.TrimSpace(value) == "end" {
			p.report(1.0)
		}
	}
}

func (p *progressReader) fractionFor(elapsed time.Duration) float64 {
	if p.duration <= 0 {
		return 0
	}
	fraction := float64(elapsed) / float64(p.duration)
	if fraction > 1.0 {
		fraction = 1.0
	}
	return fraction
}

// report forwards the fraction to the sink, never going backwards even if
// FFmpeg's timestamps jitter.
func (p *progressReader) report(fraction float64) {
	if fraction < p.lastFraction {
		return
	}
	p.lastFraction = fraction
	if p.sink != nil {
		p.sink.Report(fraction)
	}
}

// remember keeps the last few non-progress lines for EncodeError context.
func (p *progressReader) remember(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	p.tail = append(p.tail, line)
	if len(p.tail) > tailLines {
		p.tail = p.tail[len(p.tail)-tailLines:]
	}
}

// Tail returns the retained FFmpeg log lines joined for error messages.
func (p *progressReader) Tail() string {
	return strings.Join(p.tail, "\n")
}
