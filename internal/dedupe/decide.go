package dedupe

import "harvester/internal/model"

// Options tunes a duplicate check.
type Options struct {
	// Threshold is the minimum similarity of title or description that
	// marks a same-day, time-compatible event as a duplicate.
	Threshold float64
	// SourceItemID, when set, matches existing events produced from the
	// same upstream notice regardless of content.
	SourceItemID string
}

// Reason explains a Decision.
type Reason string

const (
	ReasonNovel      Reason = "novel"
	ReasonSourceItem Reason = "source-item"
	ReasonSimilar    Reason = "similar"
)

// Decision is the outcome of comparing a candidate against a window.
type Decision struct {
	Duplicate bool
	Reason    Reason
	// MatchedID is the existing event that triggered the duplicate.
	MatchedID string
	// Score is the similarity that crossed the threshold (1 for a
	// source-item match).
	Score float64
}

// IsDuplicate reports whether candidate matches any event in existing.
func IsDuplicate(existing []model.ExistingEvent, candidate model.CandidateEvent, opts Options) bool {
	return Decide(existing, candidate, opts).Duplicate
}

// Decide walks existing in order and stops at the first match:
//
//  1. same source item id: duplicate
//  2. different calendar day: skip
//  3. one timed and one all-day: skip; both timed without overlap: skip
//  4. max(title similarity, description similarity) >= threshold: duplicate
//
// Malformed timestamps on either side degrade to all-day.
func Decide(existing []model.ExistingEvent, candidate model.CandidateEvent, opts Options) Decision {
	title := Normalize(candidate.Title)
	description := Normalize(candidate.Description)
	day := candidate.StartDate

	candidateRange, err := CandidateRange(candidate, day)
	if err != nil {
		candidateRange = nil
	}

	for _, ev := range existing {
		if opts.SourceItemID != "" && ev.SourceItemID == opts.SourceItemID {
			return Decision{Duplicate: true, Reason: ReasonSourceItem, MatchedID: ev.ID, Score: 1}
		}

		if ev.Start.Day() != day {
			continue
		}

		eventRange, err := ExistingRange(ev)
		if err != nil {
			eventRange = nil
		}

		switch {
		case eventRange != nil && candidateRange != nil:
			if !Overlaps(*eventRange, *candidateRange) {
				continue
			}
		case eventRange == nil && candidateRange == nil:
			// both all-day
		default:
			continue
		}

		score := max(
			Similarity(title, Normalize(ev.Title)),
			Similarity(description, Normalize(ev.Description)),
		)
		if score >= opts.Threshold {
			return Decision{Duplicate: true, Reason: ReasonSimilar, MatchedID: ev.ID, Score: score}
		}
	}

	return Decision{Reason: ReasonNovel}
}
