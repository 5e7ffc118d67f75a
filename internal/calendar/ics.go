package calendar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"harvester/internal/config"
	appLog "harvester/internal/log"
	"harvester/internal/model"
)

const icsProductID = "-//KNUE//Event Harvester//KO"

// ICS keeps the calendar in a local iCalendar file. Writes go through a
// temp file and rename so readers never see a partial file.
type ICS struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewICS returns an ICS backend for path. The file is created on the first
// Create.
func NewICS(path string) *ICS {
	return &ICS{path: path, now: time.Now}
}

func (c *ICS) load() (*ical.Calendar, []parsedEvent, error) {
	body, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	cal, events, err := parseICS(body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", c.path, err)
	}
	return cal, events, nil
}

func (c *ICS) List(_ context.Context, timeMin, timeMax time.Time) ([]model.ExistingEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, events, err := c.load()
	if err != nil {
		return nil, err
	}
	out := expandEvents(events, timeMin, timeMax)
	sort.SliceStable(out, func(i, j int) bool {
		return startKey(out[i]) < startKey(out[j])
	})
	appLog.Debug("ics calendar listed", "path", c.path, "events", len(out))
	return out, nil
}

// startKey orders all-day events before timed events of the same day.
func startKey(ev model.ExistingEvent) string {
	if ev.Start.Date != "" {
		return ev.Start.Date
	}
	return ev.Start.DateTime
}

func (c *ICS) Create(_ context.Context, cand model.CandidateEvent, rec model.ProcessedRecord, extras map[string]string) (model.ExistingEvent, error) {
	s, e, allDay, err := eventBounds(cand)
	if err != nil {
		return model.ExistingEvent{}, err
	}
	start, end, err := EventTimes(cand)
	if err != nil {
		return model.ExistingEvent{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cal, _, err := c.load()
	if err != nil {
		return model.ExistingEvent{}, err
	}
	if cal == nil {
		cal = ical.NewCalendar()
		cal.SetMethod(ical.MethodPublish)
		cal.SetProductId(icsProductID)
	}

	uid := uuid.NewString()
	ev := cal.AddEvent(uid)
	now := c.now()
	ev.SetDtStampTime(now)
	ev.SetCreatedTime(now)
	ev.SetSummary(cand.Title)
	ev.SetDescription(cand.Description)

	if allDay {
		ev.SetAllDayStartAt(s)
		ev.SetAllDayEndAt(e)
	} else {
		ev.SetStartAt(s)
		ev.SetEndAt(e)
	}

	ev.SetProperty(ical.ComponentProperty(propSourceItem), rec.NttNo)
	ev.SetProperty(ical.ComponentProperty(propHash), rec.Hash)
	keys := make([]string, 0, len(extras))
	for k := range extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.SetProperty(ical.ComponentProperty(propExtraPrefix+strings.ToUpper(k)), extras[k])
	}

	if err := config.WriteFileAtomic(c.path, []byte(cal.Serialize()), ".harvester-calendar-*.tmp"); err != nil {
		return model.ExistingEvent{}, fmt.Errorf("write %s: %w", c.path, err)
	}

	return model.ExistingEvent{
		ID:           uid,
		Title:        cand.Title,
		Description:  cand.Description,
		Start:        start,
		End:          end,
		SourceItemID: rec.NttNo,
		Hash:         rec.Hash,
	}, nil
}

// Delete removes the VEVENT with UID eventID and rewrites the file.
func (c *ICS) Delete(_ context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cal, _, err := c.load()
	if err != nil || cal == nil {
		return err
	}

	kept := cal.Components[:0]
	removed := false
	for _, comp := range cal.Components {
		if ev, ok := comp.(*ical.VEvent); ok && ev.Id() == eventID {
			removed = true
			continue
		}
		kept = append(kept, comp)
	}
	if !removed {
		return nil
	}
	cal.Components = kept

	if err := config.WriteFileAtomic(c.path, []byte(cal.Serialize()), ".harvester-calendar-*.tmp"); err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	appLog.Debug("ics event deleted", "path", c.path, "event", eventID)
	return nil
}
