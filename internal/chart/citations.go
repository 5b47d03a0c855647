package chart

import (
	"time"

	"github.com/datacite/akita/internal/model"
)

// CitationsLookback is how many years the citations chart covers
const CitationsLookback = 10

// Citations builds the citations-per-year chart for a work. Points at or
// before now minus the lookback are dropped by the filter transform; the
// width only reserves room for the periods that remain.
func Citations(points []model.YearCount, now time.Time, doi string) Spec {
	lower := now.Year() - CitationsLookback

	periods := 0
	for _, p := range points {
		if p.Year > lower {
			periods++
		}
	}
	if periods > CitationsLookback {
		periods = CitationsLookback
	}

	spec := base(periods*BarWidth, "total", "")
	spec.Title = &Title{
		Text:     "DOI citations per year distribution",
		Subtitle: doi,
		Baseline: "top",
		Anchor:   "left",
	}
	spec.Data.Values = nonNil(points)
	yearBins(&spec, "year", lower, labelAngle(periods, 3))
	return spec
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
