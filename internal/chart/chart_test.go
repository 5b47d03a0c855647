package chart

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/datacite/akita/internal/model"
)

var now = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func years(from, to int) []model.YearCount {
	var out []model.YearCount
	for y := from; y <= to; y++ {
		out = append(out, model.YearCount{Year: y, Total: y - from + 1})
	}
	return out
}

func TestCitations(t *testing.T) {
	tests := []struct {
		name   string
		points []model.YearCount
		width  int
		angle  int
	}{
		{"empty", nil, 0, 45},
		{"two recent years", years(2022, 2023), 50, 45},
		{"three recent years", years(2021, 2023), 75, 0},
		{"old years excluded", years(2000, 2014), 0, 45},
		{"full window", years(2013, 2024), 250, 0},
		{"capped at lookback", append(years(2015, 2024), years(2020, 2021)...), 250, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := Citations(tt.points, now, "10.5061/dryad.8jd18")
			if spec.Width != tt.width {
				t.Errorf("width = %d, want %d", spec.Width, tt.width)
			}
			if spec.LabelAngle() != tt.angle {
				t.Errorf("label angle = %d, want %d", spec.LabelAngle(), tt.angle)
			}
		})
	}
}

func TestCitations_Transforms(t *testing.T) {
	spec := Citations(years(2020, 2023), now, "10.5061/dryad.8jd18")

	want := []Transform{
		{Calculate: "toNumber(datum.year)", As: "period"},
		{Calculate: "toNumber(datum.year)+1", As: "bin_end"},
		{Filter: "toNumber(datum.year) >2014"},
	}
	if diff := cmp.Diff(want, spec.Transform); diff != "" {
		t.Errorf("transforms mismatch (-want +got):\n%s", diff)
	}
	if spec.Title == nil || spec.Title.Subtitle != "10.5061/dryad.8jd18" {
		t.Errorf("unexpected title: %+v", spec.Title)
	}
	if b := spec.Encoding.X.Bin; b == nil || !b.Binned || b.Step != 1 || b.Maxbins != 10 {
		t.Errorf("unexpected bin: %+v", b)
	}
}

func TestCitations_JSONShape(t *testing.T) {
	raw, err := Citations(nil, now, "").JSON(false)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if doc["$schema"] != Schema {
		t.Errorf("unexpected schema: %v", doc["$schema"])
	}
	if doc["width"] != float64(0) {
		t.Errorf("expected zero width, got %v", doc["width"])
	}

	enc := doc["encoding"].(map[string]any)
	y := enc["y"].(map[string]any)
	if axis, ok := y["axis"]; !ok || axis != nil {
		t.Errorf("expected y axis null, got %v", y["axis"])
	}
	x := enc["x"].(map[string]any)
	if title, ok := x["title"]; !ok || title != nil {
		t.Errorf("expected x title null, got %v", x["title"])
	}
	color := enc["color"].(map[string]any)
	if color["legend"] != nil {
		t.Errorf("expected legend null, got %v", color["legend"])
	}

	view := doc["config"].(map[string]any)["view"].(map[string]any)
	if stroke, ok := view["stroke"]; !ok || stroke != nil {
		t.Errorf("expected view stroke null, got %v", view["stroke"])
	}
	highlight := doc["selection"].(map[string]any)["highlight"].(map[string]any)
	if highlight["on"] != "mouseover" || highlight["empty"] != "none" {
		t.Errorf("unexpected selection: %v", highlight)
	}

	data := doc["data"].(map[string]any)
	if data["name"] != DataName {
		t.Errorf("unexpected data name: %v", data["name"])
	}
	if values, ok := data["values"].([]any); !ok || len(values) != 0 {
		t.Errorf("expected empty values array, got %v", data["values"])
	}
}

func TestProduction(t *testing.T) {
	tests := []struct {
		name   string
		opts   ProductionOptions
		width  int
		angle  int
		domain []any
	}{
		{"default lookback", ProductionOptions{}, 250, 45, []any{2015, 2025}},
		{"twenty years", ProductionOptions{Lookback: 20}, 500, 0, []any{2005, 2025}},
		{"lookback capped", ProductionOptions{Lookback: 50}, 500, 0, []any{2005, 2025}},
		{"explicit lower bound", ProductionOptions{LowerBoundYear: 2012}, 325, 0, []any{2012, 2025}},
		{"lower bound after this year ignored", ProductionOptions{LowerBoundYear: 2030}, 250, 45, []any{2015, 2025}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := Production(nil, now, tt.opts)
			if spec.Width != tt.width {
				t.Errorf("width = %d, want %d", spec.Width, tt.width)
			}
			if spec.LabelAngle() != tt.angle {
				t.Errorf("label angle = %d, want %d", spec.LabelAngle(), tt.angle)
			}
			if diff := cmp.Diff(tt.domain, spec.Encoding.X.Scale.Domain); diff != "" {
				t.Errorf("domain mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProduction_Options(t *testing.T) {
	facets := []model.Facet{{Title: "2023", Count: 2}, {Title: "2024", Count: 1}}
	spec := Production(facets, now, ProductionOptions{Title: "Datasets", Color: "#f39c12"})

	if spec.Title == nil || spec.Title.Text != "Datasets" {
		t.Errorf("unexpected title: %+v", spec.Title)
	}
	if spec.Encoding.Color.Scale.Range[0] != "#f39c12" {
		t.Errorf("unexpected colour: %v", spec.Encoding.Color.Scale.Range)
	}
	if spec.Encoding.Color.Field != "count" || spec.Encoding.Y.Field != "count" {
		t.Errorf("expected count field, got %q/%q", spec.Encoding.Color.Field, spec.Encoding.Y.Field)
	}
	if spec.Description != "3 Works reported." {
		t.Errorf("unexpected caption: %q", spec.Description)
	}
	if spec.Transform[2].Filter != "toNumber(datum.title) >2015" {
		t.Errorf("unexpected filter: %q", spec.Transform[2].Filter)
	}

	spec = Production(facets, now, ProductionOptions{Count: 1})
	if spec.Description != "1 Work reported." {
		t.Errorf("unexpected caption: %q", spec.Description)
	}
	if spec.Encoding.Color.Scale.Range[0] != ColorBar {
		t.Errorf("expected default colour")
	}
}

func TestUsage_ThreeYearWindow(t *testing.T) {
	points := []model.MonthCount{
		{YearMonth: "2021-06", Total: 1},
		{YearMonth: "2021-07", Total: 2},
		{YearMonth: "2024-05", Total: 3},
		{YearMonth: "bad", Total: 4},
	}
	spec := Usage(points, now, 2019, "View", 1234)

	if spec.Width != 36*BarWidth {
		t.Errorf("width = %d, want %d", spec.Width, 36*BarWidth)
	}
	if spec.LabelAngle() != 0 {
		t.Errorf("label angle = %d, want 0", spec.LabelAngle())
	}

	got := spec.Data.Values.([]model.MonthCount)
	want := []model.MonthCount{{YearMonth: "2021-07", Total: 2}, {YearMonth: "2024-05", Total: 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("subset mismatch (-want +got):\n%s", diff)
	}

	wantDomain := []any{DateTime{Year: 2021, Month: 1}, DateTime{Year: 2024, Month: 6}}
	if diff := cmp.Diff(wantDomain, spec.Encoding.X.Scale.Domain); diff != "" {
		t.Errorf("domain mismatch (-want +got):\n%s", diff)
	}
	if spec.Description != "1,234 Views reported since publication in 2019" {
		t.Errorf("unexpected caption: %q", spec.Description)
	}
}

func TestUsage_RecentPublication(t *testing.T) {
	points := []model.MonthCount{
		{YearMonth: "2022-12", Total: 1},
		{YearMonth: "2023-01", Total: 2},
		{YearMonth: "2023-02", Total: 3},
	}
	spec := Usage(points, now, 2023, "Download", 1)

	if spec.Width != 17*BarWidth {
		t.Errorf("width = %d, want %d", spec.Width, 17*BarWidth)
	}
	if spec.LabelAngle() != 45 {
		t.Errorf("label angle = %d, want 45", spec.LabelAngle())
	}
	got := spec.Data.Values.([]model.MonthCount)
	if len(got) != 1 || got[0].YearMonth != "2023-02" {
		t.Errorf("unexpected subset: %+v", got)
	}
	if spec.Description != "1 Download reported since publication in 2023" {
		t.Errorf("unexpected caption: %q", spec.Description)
	}
}

func TestUsage_Empty(t *testing.T) {
	spec := Usage(nil, now, 2024, "View", 0)
	if spec.Width < 0 {
		t.Errorf("negative width %d", spec.Width)
	}
	if got := spec.Data.Values.([]model.MonthCount); len(got) != 0 {
		t.Errorf("expected no values, got %+v", got)
	}
	if _, err := spec.JSON(true); err != nil {
		t.Errorf("marshal: %v", err)
	}
}

func TestUsageLowerBound(t *testing.T) {
	if got := UsageLowerBound(now, 2010); !got.Equal(now.AddDate(-3, 0, 0)) {
		t.Errorf("old publication: got %v", got)
	}
	want := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)
	if got := UsageLowerBound(now, 2022); !got.Equal(want) {
		t.Errorf("recent publication: got %v, want %v", got, want)
	}
}

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		a, b time.Time
		want int
	}{
		{time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC), now, 36},
		{time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), now, 17},
		{now, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 17},
		{time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), now, 0},
		{now, now, 0},
	}
	for _, tt := range tests {
		if got := monthsBetween(tt.a, tt.b); got != tt.want {
			t.Errorf("monthsBetween(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
