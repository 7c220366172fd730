package ladder

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(planner *Planner, height int) []string {
	specs := planner.Plan(height)
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Label
	}
	return out
}

func TestPlan_FullLadderFor1080pSource(t *testing.T) {
	p := NewPlanner(hclog.NewNullLogger())
	assert.Equal(t, []string{"360p", "480p", "720p", "1080p"}, labels(p, 1080))
}

func TestPlan_CapsAtSourceHeight(t *testing.T) {
	p := NewPlanner(hclog.NewNullLogger())

	assert.Equal(t, []string{"360p", "480p", "720p"}, labels(p, 720))
	assert.Equal(t, []string{"360p", "480p"}, labels(p, 480))
	assert.Equal(t, []string{"360p"}, labels(p, 360))

	// Heights between rungs include everything below.
	assert.Equal(t, []string{"360p", "480p"}, labels(p, 600))
	// Above the top rung the ladder does not upscale.
	assert.Equal(t, []string{"360p", "480p", "720p", "1080p"}, labels(p, 2160))
}

func TestPlan_NeverEmpty(t *testing.T) {
	p := NewPlanner(hclog.NewNullLogger())

	for _, h := range []int{1, 144, 240, 359} {
		specs := p.Plan(h)
		require.Len(t, specs, 1, "height %d", h)
		assert.Equal(t, "360p", specs[0].Label)
	}
}

func TestPlan_SpecValues(t *testing.T) {
	p := NewPlanner(hclog.NewNullLogger())

	specs := p.Plan(1080)
	top := specs[len(specs)-1]
	assert.Equal(t, 1920, top.Width)
	assert.Equal(t, 1080, top.Height)
	assert.Equal(t, 5000, top.BitrateKbps)
	assert.Equal(t, 1.00, top.CostWeight)
}

func TestFitWidth_PreservesSourceAspect(t *testing.T) {
	// 16:9 sources reproduce the table widths exactly.
	assert.Equal(t, 1920, FitWidth(1920, 1080, 1080))
	assert.Equal(t, 1280, FitWidth(1920, 1080, 720))
	assert.Equal(t, 854, FitWidth(1920, 1080, 480))
	assert.Equal(t, 640, FitWidth(1920, 1080, 360))

	// A 4:3 1440x1080 source must not claim 1920 wide.
	assert.Equal(t, 1440, FitWidth(1440, 1080, 1080))
	assert.Equal(t, 960, FitWidth(1440, 1080, 720))

	// PAL 5:4.
	assert.Equal(t, 450, FitWidth(720, 576, 360))
}

func TestFitWidth_AlwaysEven(t *testing.T) {
	for _, h := range []int{360, 480, 720, 1080} {
		w := FitWidth(853, 480, h)
		assert.Zero(t, w%2, "height %d gave odd width %d", h, w)
		assert.Greater(t, w, 0)
	}
}

func TestFitWidth_InvalidSource(t *testing.T) {
	assert.Zero(t, FitWidth(0, 1080, 720))
	assert.Zero(t, FitWidth(1920, 0, 720))
	assert.Zero(t, FitWidth(1920, 1080, 0))
}

func TestTotalWeight(t *testing.T) {
	p := NewPlanner(hclog.NewNullLogger())

	assert.InDelta(t, 2.30, TotalWeight(p.Plan(1080)), 1e-9)
	assert.InDelta(t, 0.70, TotalWeight(p.Plan(480)), 1e-9)
}
