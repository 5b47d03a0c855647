// Package chart builds Vega-Lite v4 bar chart specifications for citation,
// usage and production time series. Builders are pure: the same points and
// reference time always produce the same document, and empty input yields a
// valid zero-width chart.
package chart

import (
	"strconv"

	"github.com/goccy/go-json"
)

// Schema is the Vega-Lite schema every spec declares
const Schema = "https://vega.github.io/schema/vega-lite/v4.json"

// Colors
const (
	ColorBar       = "#1abc9c"
	ColorHighlight = "#34495e"
)

// BarWidth is the pixel width reserved per period
const BarWidth = 25

// DataName is the named data source renderers bind values to
const DataName = "table"

// Spec is a Vega-Lite document
type Spec struct {
	Schema      string               `json:"$schema"`
	Description string               `json:"description,omitempty"`
	Title       *Title               `json:"title,omitempty"`
	Data        Data                 `json:"data"`
	Transform   []Transform          `json:"transform,omitempty"`
	Width       int                  `json:"width"`
	Mark        Mark                 `json:"mark"`
	Selection   map[string]Selection `json:"selection"`
	Encoding    Encoding             `json:"encoding"`
	Config      Config               `json:"config"`
}

// LabelAngle returns the x axis label angle
func (s Spec) LabelAngle() int {
	return s.Encoding.X.Axis.LabelAngle
}

// JSON marshals the spec, indented when pretty is set
func (s Spec) JSON(pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(s, "", "  ")
	}
	return json.Marshal(s)
}

type Title struct {
	Text     string `json:"text"`
	Subtitle string `json:"subtitle,omitempty"`
	Baseline string `json:"baseline,omitempty"`
	Anchor   string `json:"anchor,omitempty"`
	Angle    int    `json:"angle"`
}

// Data names the data source and optionally inlines its values
type Data struct {
	Name   string `json:"name"`
	Values any    `json:"values,omitempty"`
}

type Transform struct {
	Calculate string `json:"calculate,omitempty"`
	As        string `json:"as,omitempty"`
	Filter    string `json:"filter,omitempty"`
}

type Mark struct {
	Type    string `json:"type"`
	Cursor  string `json:"cursor,omitempty"`
	Tooltip bool   `json:"tooltip"`
}

type Selection struct {
	Type  string `json:"type"`
	Empty string `json:"empty"`
	On    string `json:"on"`
}

type Encoding struct {
	X     XChannel  `json:"x"`
	X2    *Field    `json:"x2,omitempty"`
	Y     YChannel  `json:"y"`
	Color ColorSpec `json:"color"`
}

type Field struct {
	Field string `json:"field"`
}

type XChannel struct {
	Field    string    `json:"field"`
	Type     string    `json:"type"`
	Bin      *Bin      `json:"bin,omitempty"`
	TimeUnit *TimeUnit `json:"timeUnit,omitempty"`
	Title    any       `json:"title"`
	Axis     Axis      `json:"axis"`
	Scale    *Scale    `json:"scale,omitempty"`
}

type Bin struct {
	Binned  bool `json:"binned"`
	Step    int  `json:"step"`
	Maxbins int  `json:"maxbins"`
}

type TimeUnit struct {
	Unit string `json:"unit"`
	Step int    `json:"step"`
}

// Axis configures the x axis. LabelOverlap is either a strategy name or a bool.
type Axis struct {
	Format       string `json:"format,omitempty"`
	LabelAngle   int    `json:"labelAngle"`
	LabelFlush   *bool  `json:"labelFlush,omitempty"`
	LabelOverlap any    `json:"labelOverlap"`
}

type Scale struct {
	Domain []any `json:"domain"`
}

// DateTime is a Vega-Lite date-time object; Month is 1-based
type DateTime struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// YChannel has its axis hidden when Axis is nil
type YChannel struct {
	Field string `json:"field"`
	Type  string `json:"type"`
	Axis  *Axis  `json:"axis"`
}

type ColorSpec struct {
	Field     string      `json:"field"`
	Scale     ColorScale  `json:"scale"`
	Type      string      `json:"type"`
	Legend    any         `json:"legend"`
	Condition []Condition `json:"condition"`
}

type ColorScale struct {
	Range []string `json:"range"`
}

type Condition struct {
	Selection string `json:"selection"`
	Value     string `json:"value"`
}

type Config struct {
	View ViewConfig `json:"view"`
	Axis AxisConfig `json:"axis"`
}

// ViewConfig removes the view border when Stroke is nil
type ViewConfig struct {
	Stroke *string `json:"stroke"`
}

type AxisConfig struct {
	Grid bool `json:"grid"`
}

// base returns the parts every bar chart shares: tooltip bar mark, mouseover
// highlight, colour scale on valueField and a borderless, gridless view
func base(width int, valueField, barColor string) Spec {
	if width < 0 {
		width = 0
	}
	if barColor == "" {
		barColor = ColorBar
	}
	return Spec{
		Schema: Schema,
		Data:   Data{Name: DataName},
		Width:  width,
		Mark: Mark{
			Type:    "bar",
			Cursor:  "pointer",
			Tooltip: true,
		},
		Selection: map[string]Selection{
			"highlight": {Type: "single", Empty: "none", On: "mouseover"},
		},
		Encoding: Encoding{
			Y: YChannel{Field: valueField, Type: "quantitative"},
			Color: ColorSpec{
				Field:     valueField,
				Scale:     ColorScale{Range: []string{barColor}},
				Type:      "nominal",
				Condition: []Condition{{Selection: "highlight", Value: ColorHighlight}},
			},
		},
	}
}

// yearBins adds the period/bin_end transforms and binned x axis used by the
// yearly charts, keeping periods after lowerBound
func yearBins(spec *Spec, yearField string, lowerBound, angle int) {
	spec.Transform = []Transform{
		{Calculate: "toNumber(datum." + yearField + ")", As: "period"},
		{Calculate: "toNumber(datum." + yearField + ")+1", As: "bin_end"},
		{Filter: "toNumber(datum." + yearField + ") >" + strconv.Itoa(lowerBound)},
	}
	spec.Encoding.X = XChannel{
		Field: "period",
		Type:  "quantitative",
		Bin:   &Bin{Binned: true, Step: 1, Maxbins: 10},
		Axis: Axis{
			Format:       "1",
			LabelAngle:   angle,
			LabelOverlap: "parity",
		},
	}
	spec.Encoding.X2 = &Field{Field: "bin_end"}
}

func labelAngle(periods, threshold int) int {
	if periods < threshold {
		return 45
	}
	return 0
}
