package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"harvester/internal/htmltext"
	appLog "harvester/internal/log"
	"harvester/internal/model"
)

// Fallback values for fields the model leaves out.
const (
	FallbackTitle       = "제목 없음"
	FallbackDescription = "설명 없음"
)

const eventsSystemPrompt = "You extract calendar events from Korean university announcements. " +
	`Return JSON {"events": [{"title": string, "description": string, "startDate": "YYYY-MM-DD", ` +
	`"endDate": "YYYY-MM-DD", "startTime": "HH:MM", "endTime": "HH:MM"}]}. ` +
	"Omit startTime/endTime for all-day events. Return an empty events array when the notice has no schedule. " +
	"Korean language only."

// rawEvent is one event as the model emits it; every field is optional.
type rawEvent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
}

// GenerateEvents extracts candidate events from item. item.PubDate must
// already be a YYYY-MM-DD date; it stands in for a missing start date.
//
// An empty result means the notice has no schedule. API or decode failures
// yield a single fallback candidate dated on the publication day.
func (c *Client) GenerateEvents(ctx context.Context, item model.RssItem) []model.CandidateEvent {
	content, err := c.complete(ctx, chatRequest{
		Model: c.contentModel,
		Messages: []message{
			{Role: "system", Content: eventsSystemPrompt},
			{Role: "user", Content: eventsPrompt(item)},
		},
	})
	if err != nil {
		appLog.Error("event extraction request failed", err, "item", item.ID)
		return []model.CandidateEvent{c.fallbackEvent(item.PubDate)}
	}

	raw, err := decodeEvents(content)
	if err != nil {
		appLog.Error("failed to decode events", err, "item", item.ID)
		return []model.CandidateEvent{c.fallbackEvent(item.PubDate)}
	}
	return c.toCandidates(raw, item.PubDate)
}

func eventsPrompt(item model.RssItem) string {
	return fmt.Sprintf("다음 공지에서 일정(행사, 신청 기간, 마감일 등)을 추출해 주세요.\n\n"+
		"제목: %s\n게시일: %s\n본문:\n%s\n\n원문 링크: %s",
		item.Title, item.PubDate, htmltext.ToText(item.DescriptionHTML), item.Link)
}

// decodeEvents accepts {"events": [...]}, a bare array, or a single event
// object.
func decodeEvents(content string) ([]rawEvent, error) {
	data := bytes.TrimSpace([]byte(content))
	if len(data) == 0 {
		return nil, errors.New("empty content")
	}

	switch data[0] {
	case '[':
		var list []rawEvent
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, err
		}
		if events, ok := envelope["events"]; ok {
			var list []rawEvent
			if err := json.Unmarshal(events, &list); err != nil {
				return nil, fmt.Errorf("events field: %w", err)
			}
			return list, nil
		}
		var single rawEvent
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, err
		}
		return []rawEvent{single}, nil
	default:
		return nil, fmt.Errorf("unexpected JSON value starting with %q", data[0])
	}
}

// toCandidates fills defaults, repairs dates and times, and drops anything
// that still fails validation.
func (c *Client) toCandidates(raw []rawEvent, pubDate string) []model.CandidateEvent {
	out := make([]model.CandidateEvent, 0, len(raw))
	for _, r := range raw {
		cand := model.CandidateEvent{
			Title:       orDefault(r.Title, FallbackTitle),
			Description: orDefault(r.Description, FallbackDescription),
			StartDate:   validLayout(r.StartDate, model.DateLayout),
			EndDate:     validLayout(r.EndDate, model.DateLayout),
			StartTime:   validLayout(r.StartTime, model.ClockLayout),
			EndTime:     validLayout(r.EndTime, model.ClockLayout),
		}
		if cand.StartDate == "" {
			cand.StartDate = pubDate
		}
		if cand.EndDate == "" || cand.EndDate < cand.StartDate {
			cand.EndDate = cand.StartDate
		}
		cand.Normalize()

		if err := c.validate.Struct(cand); err != nil {
			appLog.Warn("dropping invalid candidate", "title", cand.Title, "err", err)
			continue
		}
		out = append(out, cand)
	}
	return out
}

func (c *Client) fallbackEvent(pubDate string) model.CandidateEvent {
	return model.CandidateEvent{
		Title:       FallbackTitle,
		Description: FallbackDescription,
		StartDate:   pubDate,
		EndDate:     pubDate,
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

// validLayout returns s trimmed when it parses with layout, else "".
func validLayout(s, layout string) string {
	s = strings.TrimSpace(s)
	if len(s) != len(layout) {
		return ""
	}
	if _, err := time.Parse(layout, s); err != nil {
		return ""
	}
	return s
}
