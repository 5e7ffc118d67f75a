// Package harvest runs the feed → extraction → dedupe → publish pipeline.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"harvester/internal/ai"
	"harvester/internal/calendar"
	"harvester/internal/config"
	"harvester/internal/dedupe"
	"harvester/internal/feed"
	appLog "harvester/internal/log"
	"harvester/internal/model"
	"harvester/internal/notify"
	"harvester/internal/state"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("harvest run already in progress")

// FeedSource yields the current feed items.
type FeedSource interface {
	Fetch(ctx context.Context) ([]model.RssItem, error)
}

// Extractor is the LLM side of the pipeline. Implementations are fail-open:
// they return fallbacks rather than errors.
type Extractor interface {
	GenerateSummary(ctx context.Context, in ai.SummaryInput) model.AiSummary
	GenerateEvents(ctx context.Context, item model.RssItem) []model.CandidateEvent
	ExtractTextFromImage(ctx context.Context, preview model.PreviewContent) (string, bool)
}

// PageRenderer renders notice pages whose feed body is empty.
type PageRenderer interface {
	PageText(ctx context.Context, pageURL string) (string, error)
	Screenshot(ctx context.Context, pageURL string) (model.PreviewContent, error)
}

// PreviewFetcher downloads attachment previews.
type PreviewFetcher interface {
	Fetch(ctx context.Context, rawURL, filename string) model.PreviewContent
}

// Options tunes a Harvester.
type Options struct {
	Threshold     float64
	LookbackDays  int
	LookaheadDays int
	// WindowDays / FutureDays bound which items are considered by pubDate.
	WindowDays  int
	FutureDays  int
	GroupPolicy string
	Location    *time.Location
}

// OptionsFromConfig maps the dedupe section and timezone of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = dedupe.KST
	}
	return Options{
		Threshold:     cfg.Dedupe.SimilarityThreshold,
		LookbackDays:  cfg.Dedupe.LookbackDays,
		LookaheadDays: cfg.Dedupe.LookaheadDays,
		WindowDays:    cfg.Dedupe.WindowDays,
		FutureDays:    cfg.Dedupe.FutureDays,
		GroupPolicy:   cfg.Dedupe.GroupPolicy,
		Location:      loc,
	}
}

// Harvester wires the collaborators together. Renderer and Previews are
// optional.
type Harvester struct {
	Feed     FeedSource
	AI       Extractor
	Calendar calendar.Calendar
	Store    state.Store
	Notifier notify.Notifier
	Renderer PageRenderer
	Previews PreviewFetcher

	opts Options
	now  func() time.Time
	mu   sync.Mutex
}

// New returns a Harvester. A nil Notifier is replaced by notify.Nop.
func New(opts Options, src FeedSource, extractor Extractor, cal calendar.Calendar, store state.Store, notifier notify.Notifier) *Harvester {
	if opts.Location == nil {
		opts.Location = dedupe.KST
	}
	if opts.GroupPolicy == "" {
		opts.GroupPolicy = config.GroupPolicySkipGroup
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Harvester{
		Feed:     src,
		AI:       extractor,
		Calendar: cal,
		Store:    store,
		Notifier: notifier,
		opts:     opts,
		now:      time.Now,
	}
}

// Stats summarizes one run.
type Stats struct {
	Items      int `json:"items"`
	Processed  int `json:"processed"`
	Created    int `json:"created"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Run performs one pass over the feed. Per-item failures are logged and
// counted; only feed and calendar listing failures abort the run.
func (h *Harvester) Run(ctx context.Context) (Stats, error) {
	if !h.mu.TryLock() {
		return Stats{}, ErrRunInProgress
	}
	defer h.mu.Unlock()

	var stats Stats
	items, err := h.Feed.Fetch(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetch feed: %w", err)
	}
	stats.Items = len(items)

	now := h.now()
	existing, err := h.Calendar.List(ctx,
		now.AddDate(0, 0, -h.opts.LookbackDays),
		now.AddDate(0, 0, h.opts.LookaheadDays))
	if err != nil {
		return stats, fmt.Errorf("list calendar events: %w", err)
	}
	appLog.Info("harvest run started", "items", len(items), "existing", len(existing))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if !feed.WithinWindow(item.PubDate, now, h.opts.Location, h.opts.WindowDays, h.opts.FutureDays) {
			appLog.Debug("item outside window", "item", item.ID, "pubDate", item.PubDate)
			stats.Skipped++
			continue
		}

		rec, err := h.Store.Get(ctx, item.ID)
		if err != nil {
			appLog.Error("failed to read processed record", err, "item", item.ID)
			stats.Failed++
			continue
		}
		if rec != nil {
			stats.Processed++
			continue
		}

		res, err := h.processItem(ctx, item, now, &existing)
		if err != nil {
			appLog.Error("failed to process item", err, "item", item.ID, "title", item.Title)
			stats.Failed++
			stats.Created += res.created
			continue
		}
		stats.Processed++
		stats.Created += res.created
		stats.Duplicates += res.duplicates
	}

	appLog.Info("harvest run complete",
		"items", stats.Items, "processed", stats.Processed, "created", stats.Created,
		"duplicates", stats.Duplicates, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

// TestItem describes the feed item used by TestFirst.
type TestItem struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	PubDate           string `json:"pubDate"`
	DescriptionLength int    `json:"descriptionLength"`
}

// TestResult is the dry-run output of TestFirst.
type TestResult struct {
	Item   TestItem               `json:"item"`
	Events []model.CandidateEvent `json:"events"`
}

// TestFirst extracts events for the first feed item without publishing or
// recording anything.
func (h *Harvester) TestFirst(ctx context.Context) (TestResult, error) {
	items, err := h.Feed.Fetch(ctx)
	if err != nil {
		return TestResult{}, fmt.Errorf("fetch feed: %w", err)
	}
	if len(items) == 0 {
		return TestResult{}, errors.New("no RSS items found")
	}

	item := items[0]
	item.PubDate = feed.NormalizeDate(item.PubDate, h.now(), h.opts.Location)
	appLog.Info("testing first feed item", "item", item.ID, "title", item.Title)

	events := h.AI.GenerateEvents(ctx, item)
	if events == nil {
		events = []model.CandidateEvent{}
	}
	return TestResult{
		Item: TestItem{
			ID:                item.ID,
			Title:             item.Title,
			PubDate:           item.PubDate,
			DescriptionLength: len(item.DescriptionHTML),
		},
		Events: events,
	}, nil
}
