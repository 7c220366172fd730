package encode

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
)

type captureSink struct {
	fractions []float64
}

func (c *captureSink) Report(fraction float64) {
	c.fractions = append(c.fractions, fraction)
}

func TestProgressReader_ReportsFractions(t *testing.T) {
	sink := &captureSink{}
	p := newProgressReader(100*time.Second, sink)

	p.consume(strings.NewReader(strings.Join([]string{
		"frame=120",
		"out_time_us=25000000",
		"progress=continue",
		"out_time_us=50000000",
		"progress=continue",
		"out_time_us=100000000",
		"progress=end",
	}, "\n")))

	require.Len(t, sink.fractions, 4)
	assert.InDelta(t, 0.25, sink.fractions[0], 1e-9)
	assert.InDelta(t, 0.50, sink.fractions[1], 1e-9)
	assert.InDelta(t, 1.00, sink.fractions[2], 1e-9)
	assert.Equal(t, 1.0, sink.fractions[3])
}

func TestProgressReader_NeverRegresses(t *testing.T) {
	sink := &captureSink{}
	p := newProgressReader(10*time.Second, sink)

	p.handleLine("out_time_us=5000000")
	p.handleLine("out_time_us=3000000")
	p.handleLine("out_time_us=6000000")

	require.Len(t, sink.fractions, 2)
	assert.InDelta(t, 0.5, sink.fractions[0], 1e-9)
	assert.InDelta(t, 0.6, sink.fractions[1], 1e-9)
}

func TestProgressReader_ClampsToOne(t *testing.T) {
	sink := &captureSink{}
	p := newProgressReader(10*time.Second, sink)

	p.handleLine("out_time_us=15000000")

	require.Len(t, sink.fractions, 1)
	assert.Equal(t, 1.0, sink.fractions[0])
}

func TestProgressReader_OutTimeMsIsMicroseconds(t *testing.T) {
	// FFmpeg's out_time_ms key carries microseconds, same as out_time_us.
	sink := &captureSink{}
	p := newProgressReader(100*time.Second, sink)

	p.handleLine("out_time_ms=50000000")

	require.Len(t, sink.fractions, 1)
	assert.InDelta(t, 0.5, sink.fractions[0], 1e-9)
}

func TestProgressReader_IgnoresMalformedValues(t *testing.T) {
	sink := &captureSink{}
	p := newProgressReader(10*time.Second, sink)

	p.handleLine("out_time_us=N/A")
	p.handleLine("out_time_us=-1")
	p.handleLine("speed=2.5x")

	assert.Empty(t, sink.fractions)
}

func TestProgressReader_ZeroDuration(t *testing.T) {
	sink := &captureSink{}
	p := newProgressReader(0, sink)

	p.handleLine("out_time_us=5000000")

	require.Len(t, sink.fractions, 1)
	assert.Equal(t, 0.0, sink.fractions[0])
}

func TestProgressReader_TailKeepsLogLines(t *testing.T) {
	p := newProgressReader(10*time.Second, types.ProgressFunc(func(float64) {}))

	p.handleLine("[libx264 @ 0x5653] frame I:4 Avg QP:20.11")
	p.handleLine("")
	p.handleLine("Error while decoding stream #0:0: Invalid data found")

	tail := p.Tail()
	assert.Contains(t, tail, "Invalid data found")
	assert.Contains(t, tail, "libx264")
	assert.NotContains(t, tail, "\n\n")
}

func TestProgressReader_TailBounded(t *testing.T) {
	p := newProgressReader(10*time.Second, nil)

	for i := 0; i < 100; i++ {
		p.handleLine("log line without separator pattern number " + strings.Repeat("x", i%5))
	}

	assert.LessOrEqual(t, len(strings.Split(p.Tail(), "\n")), tailLines)
}
