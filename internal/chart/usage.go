package chart

import (
	"strconv"
	"time"

	"github.com/datacite/akita/internal/metrics"
	"github.com/datacite/akita/internal/model"
)

// UsageLookback is how far back the usage chart reaches at most
const UsageLookback = 3

// Usage builds the monthly views or downloads chart. noun is the singular
// unit ("View", "Download") and count the total shown in the caption.
func Usage(points []model.MonthCount, now time.Time, publicationYear int, noun string, count int) Spec {
	lower := UsageLowerBound(now, publicationYear)
	published := time.Date(publicationYear, time.January, 1, 0, 0, 0, 0, time.UTC)

	subset := make([]model.MonthCount, 0, len(points))
	for _, p := range points {
		month, ok := p.Month()
		if !ok {
			continue
		}
		if month.After(lower) && month.After(published) {
			subset = append(subset, p)
		}
	}

	domain := monthsBetween(lower, now)

	spec := base(domain*BarWidth, "total", "")
	spec.Description = metrics.Pluralize(count, noun, true) +
		" reported since publication in " + strconv.Itoa(publicationYear)
	spec.Data.Values = subset

	flush := false
	spec.Encoding.X = XChannel{
		Field:    "yearMonth",
		Type:     "temporal",
		TimeUnit: &TimeUnit{Unit: "yearmonth", Step: 1},
		Axis: Axis{
			LabelAngle:   labelAngle(domain, 30),
			LabelFlush:   &flush,
			LabelOverlap: true,
		},
		Scale: &Scale{Domain: []any{
			DateTime{Year: lower.Year(), Month: 1},
			DateTime{Year: now.Year(), Month: int(now.Month())},
		}},
	}
	return spec
}

// UsageLowerBound is the later of three years before now and the start of
// the publication year
func UsageLowerBound(now time.Time, publicationYear int) time.Time {
	now = now.UTC()
	threeYears := now.AddDate(-UsageLookback, 0, 0)
	published := time.Date(publicationYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !threeYears.After(published) {
		return published
	}
	return threeYears
}

// monthsBetween counts whole months between a and b, ignoring direction
func monthsBetween(a, b time.Time) int {
	a, b = a.UTC(), b.UTC()
	if b.Before(a) {
		a, b = b, a
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()-a.Month())
	if b.AddDate(0, -months, 0).Before(a) {
		months--
	}
	return months
}
