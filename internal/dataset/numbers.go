package dataset

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/heat-insight-engine/internal/domain"
)

var (
	// notesRe matches bracketed reference markers left by scraped tables, e.g. "[7]".
	notesRe = regexp.MustCompile(`\[[^\]]*\]`)

	// numberRe matches the first signed decimal in a field.
	numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// dateLayouts are tried in order for daily datasets.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
}

// ParseNumber leniently parses a numeric field. Reference markers, thousands
// separators, and surrounding text are ignored; the first signed decimal wins.
// It returns nil when the field holds no number.
func ParseNumber(s string) *float64 {
	s = notesRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	match := numberRe.FindString(s)
	if match == "" {
		return nil
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseCount is ParseNumber truncated to an integer.
func ParseCount(s string) *int64 {
	v := ParseNumber(s)
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

// parseDate parses a calendar date and normalizes it to midnight UTC.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.CalendarDay(t), true
		}
	}
	return time.Time{}, false
}

func fahrenheitToCelsius(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := domain.Round2(domain.FahrenheitToCelsius(*v))
	return &c
}

func sameLocality(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

func trailing[T any](items []T, n int) []T {
	if n <= 0 {
		return []T{}
	}
	if n >= len(items) {
		return items
	}
	return items[len(items)-n:]
}
