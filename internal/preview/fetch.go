package preview

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	appLog "harvester/internal/log"
	"harvester/internal/model"
)

// maxContentBytes bounds a downloaded preview.
const maxContentBytes = 10 << 20

// Fetcher downloads attachment previews and classifies them by content
// type.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher returns a Fetcher with the given request timeout.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}, userAgent: userAgent}
}

// Fetch downloads rawURL. Images and other binaries come back base64
// encoded, text-like bodies as text. Any failure yields PreviewNone.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, filename string) model.PreviewContent {
	none := model.PreviewContent{Kind: model.PreviewNone}
	if rawURL == "" {
		return none
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		appLog.Warn("invalid preview url", "url", rawURL, "err", err)
		return none
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		appLog.Error("preview fetch failed", err, "url", rawURL)
		return none
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		appLog.Error("preview fetch failed", fmt.Errorf("status %d", resp.StatusCode), "url", rawURL)
		return none
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes+1))
	if err != nil {
		appLog.Error("preview read failed", err, "url", rawURL)
		return none
	}
	if len(body) > maxContentBytes {
		appLog.Warn("preview too large; skipped", "url", rawURL, "limit", maxContentBytes)
		return none
	}

	contentType := mediaType(resp.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		// Board downloads often come back untyped; trust the file name.
		contentType = MimeType(filename)
	}
	return Classify(contentType, body)
}

// Classify turns a response body into preview content by content type.
func Classify(contentType string, body []byte) model.PreviewContent {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return model.PreviewContent{
			Kind:        model.PreviewImage,
			ImageBase64: base64.StdEncoding.EncodeToString(body),
			ContentType: contentType,
		}
	case strings.HasPrefix(contentType, "text/"),
		strings.Contains(contentType, "json"),
		strings.Contains(contentType, "xml"):
		return model.PreviewContent{Kind: model.PreviewText, Text: string(body), ContentType: contentType}
	default:
		return model.PreviewContent{
			Kind:        model.PreviewBinary,
			ImageBase64: base64.StdEncoding.EncodeToString(body),
			ContentType: contentType,
		}
	}
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}
