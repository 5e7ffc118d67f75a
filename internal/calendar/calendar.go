// Package calendar lists and creates events on the publishing calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"harvester/internal/config"
	"harvester/internal/dedupe"
	"harvester/internal/model"
)

// Calendar is the publishing target.
type Calendar interface {
	// List returns events overlapping [timeMin, timeMax), recurring events
	// expanded into single instances.
	List(ctx context.Context, timeMin, timeMax time.Time) ([]model.ExistingEvent, error)
	// Create publishes c. rec carries the source item id and fingerprint,
	// extras are stored alongside them as private metadata.
	Create(ctx context.Context, c model.CandidateEvent, rec model.ProcessedRecord, extras map[string]string) (model.ExistingEvent, error)
	// Delete removes a single event created by Create. Deleting an event
	// that no longer exists is not an error.
	Delete(ctx context.Context, eventID string) error
}

// Open builds the Calendar selected by cfg.Backend.
func Open(cfg config.CalendarConfig) (Calendar, error) {
	switch cfg.Backend {
	case "google":
		raw := []byte(cfg.ServiceAccountJSON)
		if len(raw) == 0 && cfg.ServiceAccountFile != "" {
			data, err := os.ReadFile(cfg.ServiceAccountFile)
			if err != nil {
				return nil, fmt.Errorf("read service account file: %w", err)
			}
			raw = data
		}
		if len(raw) == 0 {
			return nil, errors.New("google calendar backend needs service account credentials")
		}
		sa, err := ParseServiceAccount(raw)
		if err != nil {
			return nil, err
		}
		return NewGoogle(cfg.GoogleCalendarID, sa)
	case "ics", "":
		return NewICS(cfg.ICSPath), nil
	default:
		return nil, fmt.Errorf("unknown calendar backend %q", cfg.Backend)
	}
}

// EventTimes renders the start and end of c the way the calendar stores
// them: timed events as KST date-times, all-day events as dates with an
// exclusive end.
func EventTimes(c model.CandidateEvent) (start, end model.EventTime, err error) {
	s, e, allDay, err := eventBounds(c)
	if err != nil {
		return start, end, err
	}
	if allDay {
		return model.EventTime{Date: s.Format(model.DateLayout)}, model.EventTime{Date: e.Format(model.DateLayout)}, nil
	}
	return model.EventTime{DateTime: s.Format(time.RFC3339)}, model.EventTime{DateTime: e.Format(time.RFC3339)}, nil
}

// eventBounds returns the instants of c. All-day bounds are UTC midnights
// with the end day exclusive.
func eventBounds(c model.CandidateEvent) (start, end time.Time, allDay bool, err error) {
	if c.StartTime != "" && c.EndTime != "" {
		if start, err = civil(c.StartDate, c.StartTime); err != nil {
			return
		}
		end, err = civil(c.EndDate, c.EndTime)
		return
	}

	if start, err = time.Parse(model.DateLayout, c.StartDate); err != nil {
		return start, end, true, fmt.Errorf("start date %q: %w", c.StartDate, err)
	}
	endDay, err := time.Parse(model.DateLayout, c.EndDate)
	if err != nil {
		return start, end, true, fmt.Errorf("end date %q: %w", c.EndDate, err)
	}
	return start, endDay.AddDate(0, 0, 1), true, nil
}

func civil(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation(model.DateLayout+" "+model.ClockLayout, date+" "+clock, dedupe.KST)
	if err != nil {
		return time.Time{}, fmt.Errorf("event time %q %q: %w", date, clock, err)
	}
	return t, nil
}
