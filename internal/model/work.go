package model

import (
	"strconv"
	"time"
)

// YearCount is one bar of a yearly chart
type YearCount struct {
	Year  int `json:"year"`
	Total int `json:"total"`
}

// MonthCount is one bar of a monthly chart. YearMonth is formatted YYYY-MM.
type MonthCount struct {
	YearMonth string `json:"yearMonth"`
	Total     int    `json:"total"`
}

// Month parses YearMonth, returning false for malformed values
func (m MonthCount) Month() (time.Time, bool) {
	t, err := time.Parse("2006-01", m.YearMonth)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Facet is a {title, count} bucket as returned by aggregate queries
type Facet struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
	Count int    `json:"count"`
}

// FacetsToYears converts facets titled by year into year counts, skipping
// titles that are not years
func FacetsToYears(facets []Facet) []YearCount {
	out := make([]YearCount, 0, len(facets))
	for _, f := range facets {
		key := f.Title
		if key == "" {
			key = f.ID
		}
		year, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		out = append(out, YearCount{Year: year, Total: f.Count})
	}
	return out
}

// WorkMetrics holds the counters and time series shown for a work
type WorkMetrics struct {
	ID                 string              `json:"id"`
	DOI                string              `json:"doi"`
	PublicationYear    int                 `json:"publicationYear"`
	FormattedCitation  string              `json:"formattedCitation,omitempty"`
	RegistrationAgency *RegistrationAgency `json:"registrationAgency,omitempty"`
	CitationCount      int                 `json:"citationCount"`
	ViewCount          int                 `json:"viewCount"`
	DownloadCount      int                 `json:"downloadCount"`
	Citations          struct {
		TotalCount int     `json:"totalCount"`
		Published  []Facet `json:"published"`
	} `json:"citations"`
	ViewsOverTime     []MonthCount `json:"viewsOverTime"`
	DownloadsOverTime []MonthCount `json:"downloadsOverTime"`
}

// CitationsOverTime returns citations per publication year
func (w *WorkMetrics) CitationsOverTime() []YearCount {
	return FacetsToYears(w.Citations.Published)
}
