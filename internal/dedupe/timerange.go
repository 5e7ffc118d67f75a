package dedupe

import (
	"errors"
	"fmt"
	"time"

	"harvester/internal/model"
)

// ErrMalformedTimestamp is returned when a date/time string cannot be parsed.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// DefaultEndTime closes a candidate range that has no explicit end time.
const DefaultEndTime = "23:59"

// KST is the civil zone every candidate date/time is interpreted in.
var KST = loadKST()

func loadKST() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		// No tzdata on the host; Korea has no DST so a fixed zone is exact.
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// ExistingRange derives the time range of a published event. All-day events
// and events missing either side yield (nil, nil). A timestamp that does not
// parse yields ErrMalformedTimestamp.
func ExistingRange(ev model.ExistingEvent) (*model.TimeRange, error) {
	if ev.Start.Date != "" {
		return nil, nil
	}
	if ev.Start.DateTime == "" || ev.End.DateTime == "" {
		return nil, nil
	}

	start, err := parseInstant(ev.Start.DateTime)
	if err != nil {
		return nil, err
	}
	end, err := parseInstant(ev.End.DateTime)
	if err != nil {
		return nil, err
	}
	return &model.TimeRange{Start: start, End: end}, nil
}

// CandidateRange derives the time range of a candidate anchored on day.
// All-day candidates yield (nil, nil).
func CandidateRange(c model.CandidateEvent, day string) (*model.TimeRange, error) {
	if c.StartTime == "" {
		return nil, nil
	}

	endDate := c.EndDate
	if endDate == "" {
		endDate = day
	}
	endTime := c.EndTime
	if endTime == "" {
		endTime = DefaultEndTime
	}

	start, err := parseLocal(day, c.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseLocal(endDate, endTime)
	if err != nil {
		return nil, err
	}
	return &model.TimeRange{Start: start, End: end}, nil
}

// Overlaps reports whether two half-open ranges intersect. Ranges that only
// touch at a boundary do not overlap.
func Overlaps(a, b model.TimeRange) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	// Offset-less values are read as KST.
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, KST); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
}

func parseLocal(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation(model.DateLayout+" "+model.ClockLayout, date+" "+clock, KST)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q %q", ErrMalformedTimestamp, date, clock)
	}
	return t, nil
}
