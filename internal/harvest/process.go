package harvest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"harvester/internal/ai"
	"harvester/internal/config"
	"harvester/internal/dedupe"
	"harvester/internal/feed"
	"harvester/internal/htmltext"
	appLog "harvester/internal/log"
	"harvester/internal/model"
	"harvester/internal/notify"
	"harvester/internal/preview"
)

type itemResult struct {
	created    int
	duplicates int
}

// part is one publishable candidate with its precomputed decision.
type part struct {
	event    model.CandidateEvent
	hash     string
	decision dedupe.Decision
}

// processItem extracts, checks and publishes the events of one new item.
// Every candidate is checked against the window as it was before this item,
// so siblings never mark each other as duplicates. Published events are
// appended to *existing for later items.
func (h *Harvester) processItem(ctx context.Context, item model.RssItem, now time.Time, existing *[]model.ExistingEvent) (itemResult, error) {
	var res itemResult
	item.PubDate = feed.NormalizeDate(item.PubDate, now, h.opts.Location)

	bodyText := htmltext.ToText(item.DescriptionHTML)
	attachmentText := preview.AttachmentText(item)

	var previewText string
	var pageShot *model.PreviewContent
	if bodyText == "" && h.Renderer != nil && item.Link != "" {
		text, err := h.Renderer.PageText(ctx, item.Link)
		if err != nil {
			appLog.Error("page render failed", err, "item", item.ID)
		}
		previewText = text
		if previewText == "" {
			// image-only notice page
			shot, err := h.Renderer.Screenshot(ctx, item.Link)
			if err != nil {
				appLog.Error("page screenshot failed", err, "item", item.ID)
			} else {
				pageShot = &shot
			}
		}
	}

	var (
		summary model.AiSummary
		events  []model.CandidateEvent
		ocrText string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary = h.AI.GenerateSummary(gctx, ai.SummaryInput{
			Title:          item.Title,
			Body:           bodyText,
			PreviewText:    previewText,
			AttachmentText: attachmentText,
			Link:           item.Link,
			PubDate:        item.PubDate,
		})
		return gctx.Err()
	})
	g.Go(func() error {
		events = h.AI.GenerateEvents(gctx, item)
		return gctx.Err()
	})
	imageAttachment := h.Previews != nil && item.Attachment != nil && preview.IsImage(item.Attachment.Filename)
	if imageAttachment || pageShot != nil {
		g.Go(func() error {
			var content model.PreviewContent
			if imageAttachment {
				content = h.Previews.Fetch(gctx, firstNonEmpty(item.Attachment.URL, item.Attachment.Preview), item.Attachment.Filename)
			} else {
				content = *pageShot
			}
			if text, ok := h.AI.ExtractTextFromImage(gctx, content); ok {
				ocrText = text
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	processedAt := now.Format(time.RFC3339)
	if len(events) == 0 {
		appLog.Info("no meaningful events extracted; marking processed", "item", item.ID)
		return res, h.Store.Put(ctx, item.ID, model.ProcessedRecord{NttNo: item.ID, ProcessedAt: processedAt})
	}

	description := BuildDescription(item, summary, bodyText, attachmentText, previewText, ocrText)
	groups := h.decide(item, events, description, *existing)

	var toPublish []part
	var firstDuplicate string
	for _, group := range groups {
		dup := 0
		for _, p := range group {
			if p.decision.Duplicate {
				dup++
				appLog.Info("duplicate detected",
					"item", item.ID, "title", p.event.Title, "reason", p.decision.Reason,
					"matched", p.decision.MatchedID, "score", p.decision.Score)
				if firstDuplicate == "" {
					firstDuplicate = p.hash
				}
			}
		}
		switch {
		case dup == 0:
			toPublish = append(toPublish, group...)
		case h.opts.GroupPolicy == config.GroupPolicySkipPart:
			res.duplicates += dup
			for _, p := range group {
				if !p.decision.Duplicate {
					toPublish = append(toPublish, p)
				}
			}
		default:
			res.duplicates += len(group)
		}
	}

	if len(toPublish) == 0 {
		return res, h.Store.Put(ctx, item.ID, model.ProcessedRecord{
			EventID:     model.DuplicateSkip,
			NttNo:       item.ID,
			ProcessedAt: processedAt,
			Hash:        firstDuplicate,
		})
	}

	published := make([]model.ExistingEvent, 0, len(toPublish))
	for _, p := range toPublish {
		created, err := h.Calendar.Create(ctx, p.event,
			model.ProcessedRecord{NttNo: item.ID, ProcessedAt: processedAt, Hash: p.hash},
			map[string]string{
				"summaryHash": p.hash,
				"sourceLink":  item.Link,
			})
		if err != nil {
			res.created = len(h.rollback(ctx, item, published))
			return res, fmt.Errorf("create event %q: %w", p.event.Title, err)
		}
		published = append(published, created)
		appLog.Info("event created", "item", item.ID, "event", created.ID, "title", p.event.Title)
	}

	*existing = append(*existing, published...)
	res.created = len(published)

	// One record per item, written once every part is on the calendar.
	recErr := h.Store.Put(ctx, item.ID, model.ProcessedRecord{
		EventID:     published[0].ID,
		NttNo:       item.ID,
		ProcessedAt: processedAt,
		Hash:        toPublish[0].hash,
	})

	for i, created := range published {
		if err := h.Notifier.Notify(ctx, notify.Notification{
			EventTitle: toPublish[i].event.Title,
			RSSURL:     item.Link,
			EventURL:   created.HTMLLink,
		}); err != nil {
			appLog.Error("notification failed", err, "item", item.ID, "event", created.ID)
		}
	}

	if recErr != nil {
		return res, fmt.Errorf("record item %s: %w", item.ID, recErr)
	}
	return res, nil
}

// rollback deletes the events already published for item after a later
// part failed, so the next run starts the item from scratch. It returns the
// events that could not be deleted.
func (h *Harvester) rollback(ctx context.Context, item model.RssItem, published []model.ExistingEvent) []model.ExistingEvent {
	var left []model.ExistingEvent
	for _, ev := range published {
		if err := h.Calendar.Delete(ctx, ev.ID); err != nil {
			appLog.Error("rollback of partially published item failed", err, "item", item.ID, "event", ev.ID)
			left = append(left, ev)
			continue
		}
		appLog.Warn("rolled back partially published event", "item", item.ID, "event", ev.ID)
	}
	return left
}

// decide splits every extracted event, fingerprints each part and runs the
// duplicate check. Parts sharing a fingerprint with an earlier part of the
// same item are dropped.
func (h *Harvester) decide(item model.RssItem, events []model.CandidateEvent, description string, window []model.ExistingEvent) [][]part {
	seen := make(map[string]bool)
	var groups [][]part
	for _, ev := range events {
		ev.Description = description
		var group []part
		for _, p := range dedupe.SplitLongEvent(ev) {
			hash := dedupe.CandidateFingerprint(p)
			if seen[hash] {
				continue
			}
			seen[hash] = true
			group = append(group, part{
				event: p,
				hash:  hash,
				decision: dedupe.Decide(window, p, dedupe.Options{
					Threshold:    h.opts.Threshold,
					SourceItemID: item.ID,
				}),
			})
		}
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}
	return groups
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
