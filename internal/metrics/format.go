package metrics

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// uncountable nouns keep their singular form
var uncountable = map[string]bool{
	"Software": true,
	"software": true,
}

// Pluralize returns noun inflected for count, prefixed with the formatted
// count when showCount is set: Pluralize(3000, "Download", true) is
// "3,000 Downloads".
func Pluralize(count int, noun string, showCount bool) string {
	word := noun
	if count != 1 && !uncountable[noun] {
		word = plural(noun)
	}
	if !showCount {
		return word
	}
	return humanize.Comma(int64(count)) + " " + word
}

func plural(noun string) string {
	switch {
	case strings.HasSuffix(noun, "s"), strings.HasSuffix(noun, "x"):
		return noun + "es"
	case strings.HasSuffix(noun, "y") && len(noun) > 1 && !strings.ContainsAny(noun[len(noun)-2:len(noun)-1], "aeiou"):
		return noun[:len(noun)-1] + "ies"
	default:
		return noun + "s"
	}
}

// Compact abbreviates large counts: 1234 is "1.2K", 2500000 is "2.5M"
func Compact(n int) string {
	if n < 1000 && n > -1000 {
		return humanize.Comma(int64(n))
	}
	value, prefix := humanize.ComputeSI(float64(n))
	return humanize.FtoaWithDigits(value, 1) + strings.ToUpper(prefix)
}

// Counter renders citation, view and download counts as one line, omitting
// zero counts. It returns "" when every count is zero.
func Counter(citations, views, downloads int) string {
	var parts []string
	if citations > 0 {
		parts = append(parts, Pluralize(citations, "Citation", true))
	}
	if views > 0 {
		parts = append(parts, Pluralize(views, "View", true))
	}
	if downloads > 0 {
		parts = append(parts, Pluralize(downloads, "Download", true))
	}
	return strings.Join(parts, " · ")
}

// Percent formats part as a percentage of whole with two decimals
func Percent(part, whole int) string {
	if whole == 0 {
		return "0.00%"
	}
	return humanize.FormatFloat("#,###.##", float64(part)*100/float64(whole)) + "%"
}
