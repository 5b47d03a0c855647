package chart

import (
	"time"

	"github.com/datacite/akita/internal/metrics"
	"github.com/datacite/akita/internal/model"
)

// Lookback limits for the production chart
const (
	DefaultProductionLookback = 10
	MaxProductionLookback     = 20
)

// ProductionOptions tune the production chart
type ProductionOptions struct {
	// Title is shown above the chart when set
	Title string
	// Color overrides the bar colour
	Color string
	// LowerBoundYear fixes the first excluded year; zero derives it from Lookback
	LowerBoundYear int
	// Lookback is the number of years shown, capped at MaxProductionLookback
	Lookback int
	// Count is the total reported in the caption; zero sums the facets
	Count int
}

// Production builds the works-registered-per-year chart. The x domain runs
// from the lower bound to next year so the current year is always visible.
func Production(facets []model.Facet, now time.Time, opts ProductionOptions) Spec {
	thisYear := now.Year() + 1

	lookback := opts.Lookback
	if lookback <= 0 {
		lookback = DefaultProductionLookback
	}
	if lookback > MaxProductionLookback {
		lookback = MaxProductionLookback
	}

	lower := thisYear - lookback
	if opts.LowerBoundYear > 0 && opts.LowerBoundYear < thisYear {
		lower = opts.LowerBoundYear
	}
	domain := thisYear - lower

	spec := base(domain*BarWidth, "count", opts.Color)
	if opts.Title != "" {
		spec.Title = &Title{Text: opts.Title, Anchor: "left"}
	}

	count := opts.Count
	if count == 0 {
		for _, f := range facets {
			count += f.Count
		}
	}
	spec.Description = metrics.Pluralize(count, "Work", true) + " reported."
	spec.Data.Values = nonNil(facets)

	yearBins(&spec, "title", lower, labelAngle(domain, 11))
	flush := false
	spec.Encoding.X.Axis.LabelFlush = &flush
	spec.Encoding.X.Axis.LabelOverlap = true
	spec.Encoding.X.Scale = &Scale{Domain: []any{lower, thisYear}}
	return spec
}
