package ai

import (
	"context"
	"encoding/json"

	appLog "harvester/internal/log"
	"harvester/internal/model"
)

const ocrSystemPrompt = `You are an OCR assistant. Extract all readable Korean text. Return JSON {"extractedText": string}.`

// ExtractTextFromImage runs the vision model over an image preview. It
// reports false for non-image previews and on any failure.
func (c *Client) ExtractTextFromImage(ctx context.Context, preview model.PreviewContent) (string, bool) {
	if preview.Kind != model.PreviewImage || preview.ImageBase64 == "" {
		return "", false
	}
	contentType := preview.ContentType
	if contentType == "" {
		contentType = "image/png"
	}

	content, err := c.complete(ctx, chatRequest{
		Model: c.visionModel,
		Messages: []message{
			{Role: "system", Content: ocrSystemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: "이미지에서 보이는 텍스트를 원문 그대로 추출해서 JSON 으로 반환해 주세요."},
				{Type: "image_url", ImageURL: &imageURL{URL: "data:" + contentType + ";base64," + preview.ImageBase64}},
			}},
		},
	})
	if err != nil {
		appLog.Error("vision request failed", err)
		return "", false
	}

	var parsed struct {
		ExtractedText *string `json:"extractedText"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil || parsed.ExtractedText == nil {
		appLog.Error("failed to parse OCR JSON", err)
		return "", false
	}
	return *parsed.ExtractedText, true
}
