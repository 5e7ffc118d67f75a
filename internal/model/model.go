package model

import "time"

// DateLayout is the calendar-date layout used for every date string in the
// pipeline (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// ClockLayout is the time-of-day layout (HH:MM) produced by extraction.
const ClockLayout = "15:04"

// CandidateEvent is a not-yet-published event extracted from a notice.
//
// StartDate/EndDate are inclusive. StartTime/EndTime are either both set
// (timed) or both empty (all-day) once Normalize has run.
type CandidateEvent struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	StartDate   string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"startTime,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime     string `json:"endTime,omitempty" validate:"omitempty,datetime=15:04"`
}

// Timed reports whether the candidate carries a time-of-day.
func (c CandidateEvent) Timed() bool {
	return c.StartTime != ""
}

// Normalize makes the candidate either fully timed or fully all-day.
// A missing EndTime defaults to StartTime, a lone EndTime is dropped and a
// missing EndDate defaults to StartDate.
func (c *CandidateEvent) Normalize() {
	if c.EndDate == "" {
		c.EndDate = c.StartDate
	}
	switch {
	case c.StartTime != "" && c.EndTime == "":
		c.EndTime = c.StartTime
	case c.StartTime == "" && c.EndTime != "":
		c.EndTime = ""
	}
}

// EventTime is one side of an existing event. Exactly one of Date (all-day)
// or DateTime (RFC 3339 with offset) is normally set.
type EventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
}

// Day returns the calendar-day portion of the time, regardless of kind.
func (t EventTime) Day() string {
	if t.Date != "" {
		return t.Date
	}
	if len(t.DateTime) >= len(DateLayout) {
		return t.DateTime[:len(DateLayout)]
	}
	return ""
}

// ExistingEvent is a read-only view of a published calendar entry.
type ExistingEvent struct {
	ID           string
	Title        string
	Description  string
	Start        EventTime
	End          EventTime
	SourceItemID string
	Hash         string
	// HTMLLink is the calendar UI link, when the backend provides one.
	HTMLLink string
}

// TimeRange is a half-open instant interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// DuplicateSkip is the EventID recorded for items whose events were all
// classified as duplicates.
const DuplicateSkip = "duplicate-skip"

// ProcessedRecord is the idempotency record stored per source item.
type ProcessedRecord struct {
	EventID     string `json:"eventId"`
	NttNo       string `json:"nttNo"`
	ProcessedAt string `json:"processedAt"`
	Hash        string `json:"hash"`
}

// Attachment is the first attachment advertised by a feed item.
type Attachment struct {
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`
	Preview  string `json:"preview,omitempty"`
}

// RssItem is a single announcement from the source feed.
type RssItem struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Link            string      `json:"link"`
	PubDate         string      `json:"pubDate"`
	DescriptionHTML string      `json:"descriptionHtml"`
	Department      string      `json:"department,omitempty"`
	Attachment      *Attachment `json:"attachment,omitempty"`
}

// AiSummary is the structured summary produced for a notice.
type AiSummary struct {
	Summary       string   `json:"summary"`
	Highlights    []string `json:"highlights"`
	ActionItems   []string `json:"actionItems"`
	Links         []string `json:"links"`
	ExtractedText string   `json:"extractedText,omitempty"`
}

// PreviewKind classifies fetched attachment preview content.
type PreviewKind string

const (
	PreviewNone   PreviewKind = "none"
	PreviewText   PreviewKind = "text"
	PreviewImage  PreviewKind = "image"
	PreviewBinary PreviewKind = "binary"
)

// PreviewContent is attachment preview data handed to OCR or the description.
type PreviewContent struct {
	Kind        PreviewKind
	Text        string
	ImageBase64 string
	ContentType string
}
