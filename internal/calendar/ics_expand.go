package calendar

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"harvester/internal/dedupe"
	appLog "harvester/internal/log"
	"harvester/internal/model"
)

const maxOccurrencesPerEvent = 5000

// expandEvents turns parsed VEVENTs into single instances overlapping
// [rangeStart, rangeEnd]. RRULEs are expanded with EXDATEs removed, and
// RECURRENCE-ID overrides replace the instance they name.
func expandEvents(events []parsedEvent, rangeStart, rangeEnd time.Time) []model.ExistingEvent {
	baseByUID := make(map[string][]parsedEvent)
	overridesByUID := make(map[string][]parsedEvent)
	var order []string

	for _, ev := range events {
		if ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	var out []model.ExistingEvent
	for _, uid := range order {
		overrides := overridesByUID[uid]
		for _, ev := range baseByUID[uid] {
			if ev.RawRRule == "" {
				if rangesOverlap(ev.Start, ev.End, rangeStart, rangeEnd) {
					out = append(out, toExisting(ev, ev.Start, ev.End, ev.UID))
				}
				continue
			}
			out = append(out, expandRecurring(ev, overrides, rangeStart, rangeEnd)...)
		}
	}
	return out
}

func expandRecurring(ev parsedEvent, overrides []parsedEvent, rangeStart, rangeEnd time.Time) []model.ExistingEvent {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	starts := set.Between(rangeStart.In(ev.Start.Location()), rangeEnd.In(ev.Start.Location()), true)
	if len(starts) > maxOccurrencesPerEvent {
		appLog.Error("truncated occurrences for UID due to cap", errors.New("max occurrences reached"),
			"uid", ev.UID, "cap", maxOccurrencesPerEvent)
		starts = starts[:maxOccurrencesPerEvent]
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]model.ExistingEvent, 0, len(starts))
	for _, start := range starts {
		instance, s, e := ev, start, start.Add(dur)
		for _, ov := range overrides {
			if ov.Recurrence.Equal(start) {
				instance, s, e = ov, ov.Start, ov.End
				break
			}
		}
		out = append(out, toExisting(instance, s, e, ev.UID+"_"+start.UTC().Format("20060102T150405Z")))
	}
	return out
}

func toExisting(ev parsedEvent, start, end time.Time, id string) model.ExistingEvent {
	out := model.ExistingEvent{
		ID:           id,
		Title:        ev.Summary,
		Description:  ev.Description,
		SourceItemID: ev.SourceItemID,
		Hash:         ev.Hash,
	}
	if ev.AllDay {
		out.Start = model.EventTime{Date: start.Format(model.DateLayout)}
		out.End = model.EventTime{Date: end.Format(model.DateLayout)}
	} else {
		out.Start = model.EventTime{DateTime: start.In(dedupe.KST).Format(time.RFC3339)}
		out.End = model.EventTime{DateTime: end.In(dedupe.KST).Format(time.RFC3339)}
	}
	return out
}

func rangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
