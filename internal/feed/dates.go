package feed

import (
	"regexp"
	"strings"
	"time"

	"harvester/internal/model"
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// pubDateLayouts are tried in order when a pubDate is not already ISO.
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006.01.02",
	"01-02-2006",
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

// ParsePubDate parses a feed publication date in loc. It reports false when
// no known layout matches.
func ParsePubDate(pubDate string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(pubDate)
	if s == "" {
		return time.Time{}, false
	}
	if isoDate.MatchString(s) {
		t, err := time.ParseInLocation(model.DateLayout, s, loc)
		return t, err == nil
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// NormalizeDate renders pubDate as YYYY-MM-DD in loc, falling back to the
// date of now when pubDate is empty or unparsable.
func NormalizeDate(pubDate string, now time.Time, loc *time.Location) string {
	s := strings.TrimSpace(pubDate)
	if isoDate.MatchString(s) {
		return s
	}
	if t, ok := ParsePubDate(s, loc); ok {
		return t.Format(model.DateLayout)
	}
	return now.In(loc).Format(model.DateLayout)
}

// WithinWindow reports whether pubDate lies between pastDays before and
// futureDays after the date of now, inclusive. Empty or unparsable dates
// are let through.
func WithinWindow(pubDate string, now time.Time, loc *time.Location, pastDays, futureDays int) bool {
	t, ok := ParsePubDate(pubDate, loc)
	if !ok {
		return true
	}
	today := dateOnly(now.In(loc))
	day := dateOnly(t)
	diff := int(today.Sub(day).Hours() / 24)
	return diff <= pastDays && -diff <= futureDays
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
