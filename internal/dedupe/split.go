package dedupe

import (
	"time"

	"harvester/internal/model"
)

// MaxSingleSpanDays is the longest inclusive span published as one event.
// Longer candidates are split into start and end markers.
const MaxSingleSpanDays = 3

// DaysDuration returns the inclusive number of days from start to end.
// Unparsable dates count as a single day.
func DaysDuration(start, end string) int {
	s, err := time.Parse(model.DateLayout, start)
	if err != nil {
		return 1
	}
	e, err := time.Parse(model.DateLayout, end)
	if err != nil {
		return 1
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// SplitLongEvent returns the candidate unchanged when it spans at most
// MaxSingleSpanDays, otherwise a single-day start marker titled
// "<title> (~<end>)" and a single-day end marker titled
// "<title> (<start>~)". Times and description are kept on both.
func SplitLongEvent(c model.CandidateEvent) []model.CandidateEvent {
	if DaysDuration(c.StartDate, c.EndDate) <= MaxSingleSpanDays {
		return []model.CandidateEvent{c}
	}

	head := c
	head.Title = c.Title + " (~" + c.EndDate + ")"
	head.EndDate = c.StartDate

	tail := c
	tail.Title = c.Title + " (" + c.StartDate + "~)"
	tail.StartDate = c.EndDate

	return []model.CandidateEvent{head, tail}
}
