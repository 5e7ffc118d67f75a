// Package notify delivers "event published" messages.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"harvester/internal/config"
	appLog "harvester/internal/log"
)

// Notification describes one published calendar event.
type Notification struct {
	EventTitle string
	// RSSURL is the source notice link.
	RSSURL string
	// EventURL is the calendar UI link for the created event. Backends
	// without a web UI leave it empty.
	EventURL string
}

// Notifier sends notifications. Failures are reported but never fatal to
// the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }

const defaultAPIBase = "https://api.telegram.org"

// Telegram posts MarkdownV2 messages through the Bot API.
type Telegram struct {
	client   *http.Client
	apiBase  string
	botToken string
	chatID   string
}

// New returns a Telegram notifier, or Nop when credentials are missing.
func New(cfg config.TelegramConfig) Notifier {
	if cfg.BotToken == "" {
		appLog.Warn("telegram bot token is not configured; notifications disabled")
		return Nop{}
	}
	if cfg.ChatID == "" {
		appLog.Warn("telegram chat id is not configured; notifications disabled")
		return Nop{}
	}
	return NewTelegram(cfg.BotToken, cfg.ChatID, defaultAPIBase)
}

// NewTelegram builds a Telegram notifier against apiBase.
func NewTelegram(botToken, chatID, apiBase string) *Telegram {
	return &Telegram{
		client:   &http.Client{Timeout: 10 * time.Second},
		apiBase:  strings.TrimRight(apiBase, "/"),
		botToken: botToken,
		chatID:   chatID,
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *Telegram) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:    t.chatID,
		Text:      FormatMessage(n),
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The error string carries the URL, which carries the token.
		return fmt.Errorf("telegram send: %w", redact(err, t.botToken))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("telegram send failed: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	appLog.Info("telegram notification sent", "title", n.EventTitle)
	return nil
}

// FormatMessage renders n as a MarkdownV2 message.
func FormatMessage(n Notification) string {
	lines := []string{
		"🎉 *새로운 캘린더 이벤트가 생성되었습니다*",
		"",
	}
	if n.EventTitle != "" {
		lines = append(lines, "📝 *제목:* "+EscapeMarkdown(n.EventTitle), "")
	}
	lines = append(lines,
		"🔗 *원문 링크:*",
		fmt.Sprintf("[%s](%s)", EscapeMarkdown(hostname(n.RSSURL)), escapeLinkURL(n.RSSURL)),
	)
	if n.EventURL != "" {
		lines = append(lines,
			"",
			"📅 *캘린더 링크:*",
			fmt.Sprintf("[Google Calendar](%s)", escapeLinkURL(n.EventURL)),
		)
	}
	return strings.Join(lines, "\n")
}

var markdownEscaper = strings.NewReplacer(
	`_`, `\_`, `*`, `\*`, `[`, `\[`, `]`, `\]`, `(`, `\(`, `)`, `\)`,
	`~`, `\~`, "`", "\\`", `>`, `\>`, `#`, `\#`, `+`, `\+`, `-`, `\-`,
	`=`, `\=`, `|`, `\|`, `{`, `\{`, `}`, `\}`, `.`, `\.`, `!`, `\!`,
)

// EscapeMarkdown escapes MarkdownV2 reserved characters.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Inside the (...) part of an inline link only ')' and '\' are reserved.
var linkEscaper = strings.NewReplacer(`\`, `\\`, `)`, `\)`)

func escapeLinkURL(s string) string {
	return linkEscaper.Replace(s)
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, secret string) error {
	if secret == "" {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), secret, "<redacted>"), err: err}
}
