package preview

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"harvester/internal/model"
)

// Default render parameters.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 1600
	DefaultTimeoutSec = 30
)

// Renderer loads notice pages in headless Chromium. It is used when the
// feed body is empty, e.g. notices that are a single embedded poster.
type Renderer struct {
	Width   int
	Height  int
	Timeout time.Duration
}

// NewRenderer returns a Renderer with the given timeout.
func NewRenderer(timeout time.Duration) *Renderer {
	if timeout <= 0 {
		timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	return &Renderer{Width: DefaultWidth, Height: DefaultHeight, Timeout: timeout}
}

func (r *Renderer) run(parentCtx context.Context, pageURL string, actions ...chromedp.Action) error {
	if pageURL == "" {
		return fmt.Errorf("preview: URL is required")
	}

	// Create a new chromedp context.
	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	// Apply timeout to the entire render sequence.
	ctx, timeoutCancel := context.WithTimeout(ctx, r.Timeout)
	defer timeoutCancel()

	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(r.Width), int64(r.Height)),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	tasks = append(tasks, actions...)

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("preview: chromedp run failed: %w", err)
	}
	return nil
}

// PageText returns the rendered text of pageURL.
func (r *Renderer) PageText(ctx context.Context, pageURL string) (string, error) {
	var text string
	if err := r.run(ctx, pageURL, chromedp.Evaluate(`document.body.innerText`, &text)); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Screenshot captures pageURL as an image preview suitable for OCR.
func (r *Renderer) Screenshot(ctx context.Context, pageURL string) (model.PreviewContent, error) {
	var png []byte
	err := r.run(ctx, pageURL,
		// Small extra delay to allow final paints.
		chromedp.Sleep(500*time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)
	if err != nil {
		return model.PreviewContent{Kind: model.PreviewNone}, err
	}
	return model.PreviewContent{
		Kind:        model.PreviewImage,
		ImageBase64: base64.StdEncoding.EncodeToString(png),
		ContentType: "image/png",
	}, nil
}
