package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	appLog "harvester/internal/log"
	"harvester/internal/model"
)

// FallbackSummary is used whenever a summary cannot be produced.
const FallbackSummary = "요약 정보를 생성하지 못했습니다."

const summarySystemPrompt = "You are a helpful assistant that summarizes university announcements. " +
	"Output JSON with keys summary (string), highlights (string[]), actionItems (string[]), links (string[]). " +
	"Korean language only."

// SummaryInput is the notice content handed to the summarizer.
type SummaryInput struct {
	Title          string
	Body           string
	PreviewText    string
	AttachmentText string
	Link           string
	PubDate        string
}

func fallbackSummary() model.AiSummary {
	return model.AiSummary{
		Summary:     FallbackSummary,
		Highlights:  []string{},
		ActionItems: []string{},
		Links:       []string{},
	}
}

// GenerateSummary never fails; errors are logged and produce the fallback.
func (c *Client) GenerateSummary(ctx context.Context, in SummaryInput) model.AiSummary {
	temp := 0.2
	content, err := c.complete(ctx, chatRequest{
		Model: c.contentModel,
		Messages: []message{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: summaryPrompt(in)},
		},
		Temperature: &temp,
	})
	if err != nil {
		appLog.Error("summary request failed", err, "title", in.Title)
		return fallbackSummary()
	}
	return parseSummary(content)
}

func summaryPrompt(in SummaryInput) string {
	orNone := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "(없음)"
		}
		return s
	}
	return fmt.Sprintf("다음은 한국교원대학교 공지사항입니다. 핵심 정보를 JSON 으로 구성해 주세요.\n\n"+
		"제목: %s\n게시일: %s\n본문:\n%s\n\n첨부/미리보기:\n%s\n\n첨부 메타:\n%s\n\n원문 링크: %s",
		in.Title, in.PubDate, in.Body, orNone(in.PreviewText), orNone(in.AttachmentText), in.Link)
}

// parseSummary keeps only well-typed fields; anything else falls back.
func parseSummary(content string) model.AiSummary {
	if strings.TrimSpace(content) == "" {
		return fallbackSummary()
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		appLog.Error("failed to parse summary JSON", err)
		return fallbackSummary()
	}

	out := fallbackSummary()
	var summary string
	if err := json.Unmarshal(raw["summary"], &summary); err == nil && summary != "" {
		out.Summary = summary
	}
	out.Highlights = stringList(raw["highlights"])
	out.ActionItems = stringList(raw["actionItems"])
	out.Links = stringList(raw["links"])
	var extracted string
	if err := json.Unmarshal(raw["extractedText"], &extracted); err == nil {
		out.ExtractedText = extracted
	}
	return out
}

func stringList(raw json.RawMessage) []string {
	var list []string
	if len(raw) == 0 || json.Unmarshal(raw, &list) != nil {
		return []string{}
	}
	out := list[:0]
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
