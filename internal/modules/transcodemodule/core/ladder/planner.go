// Package ladder plans the quality ladder for a probed source: which
// renditions of a fixed table to produce, ordered lowest quality first so the
// cheapest rendition is playable soonest.
package ladder

import (
	"math"

	"github.com/hashicorp/go-hclog"

	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
)

// table is the fixed rendition ladder, ordered ascending by height. The cost
// weights feed job-level progress aggregation only.
var table = []types.RenditionSpec{
	{Label: "360p", Width: 640, Height: 360, BitrateKbps: 500, CostWeight: 0.30},
	{Label: "480p", Width: 854, Height: 480, BitrateKbps: 1000, CostWeight: 0.40},
	{Label: "720p", Width: 1280, Height: 720, BitrateKbps: 2500, CostWeight: 0.60},
	{Label: "1080p", Width: 1920, Height: 1080, BitrateKbps: 5000, CostWeight: 1.00},
}

// Planner selects the renditions to produce for a source.
type Planner struct {
	logger hclog.Logger
}

// NewPlanner creates a new ladder planner.
func NewPlanner(logger hclog.Logger) *Planner {
	return &Planner{logger: logger.Named("ladder")}
}

// Plan returns every table entry whose height does not exceed the source
// height. A source below the smallest entry still gets that entry, so a valid
// probed source never plans zero renditions.
func (p *Planner) Plan(sourceHeight int) []types.RenditionSpec {
	var specs []types.RenditionSpec
	for _, entry := range table {
		if entry.Height <= sourceHeight {
			specs = append(specs, entry)
		}
	}

	if len(specs) == 0 {
		p.logger.Warn("source below smallest ladder entry, planning minimum rendition",
			"source_height", sourceHeight,
			"minimum", table[0].Label,
		)
		specs = []types.RenditionSpec{table[0]}
	}

	p.logger.Debug("planned quality ladder",
		"source_height", sourceHeight,
		"renditions", len(specs),
	)
	return specs
}

// FitWidth returns the width an encode scaled to targetHeight actually
// produces for a source of the given dimensions: aspect preserved, rounded to
// the nearest even value, mirroring the encoder's scale=-2 filter. The table
// widths assume 16:9 sources; anything else (anamorphic, 4:3) must declare
// the real encoded width or players mis-rank the rendition.
func FitWidth(sourceWidth, sourceHeight, targetHeight int) int {
	if sourceWidth <= 0 || sourceHeight <= 0 || targetHeight <= 0 {
		return 0
	}
	w := int(math.Round(float64(sourceWidth)*float64(targetHeight)/float64(sourceHeight)/2)) * 2
	if w < 2 {
		w = 2
	}
	return w
}

// TotalWeight sums the cost weights of the planned specs.
func TotalWeight(specs []types.RenditionSpec) float64 {
	var total float64
	for _, s := range specs {
		total += s.CostWeight
	}
	return total
}
