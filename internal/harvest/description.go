package harvest

import (
	"strings"

	"harvester/internal/model"
	"harvester/internal/preview"
)

// BuildDescription assembles the calendar description for every event of
// a notice: summary, highlights, action items, links (source link first),
// attachment metadata, rendered/OCR text and finally the original body.
// Empty sections are omitted.
func BuildDescription(item model.RssItem, summary model.AiSummary, bodyText, attachmentText, previewText, ocrText string) string {
	var parts []string
	if summary.Summary != "" {
		parts = append(parts, summary.Summary)
	}
	if len(summary.Highlights) > 0 {
		parts = append(parts, "주요 포인트:\n"+bullets(summary.Highlights))
	}
	if len(summary.ActionItems) > 0 {
		parts = append(parts, "확인/신청 사항:\n"+bullets(summary.ActionItems))
	}
	if links := preview.DedupeLinks(item.Link, summary.Links); len(links) > 0 {
		parts = append(parts, "관련 링크:\n"+bullets(links))
	}
	if attachmentText != "" {
		parts = append(parts, attachmentText)
	}
	if previewText != "" {
		parts = append(parts, "미리보기 요약:\n"+previewText)
	}
	if ocrText != "" {
		parts = append(parts, "OCR 추출 텍스트:\n"+ocrText)
	}
	if bodyText != "" {
		parts = append(parts, "원문 본문:\n"+bodyText)
	}
	return strings.Join(parts, "\n\n")
}

func bullets(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = "- " + l
	}
	return strings.Join(out, "\n")
}
