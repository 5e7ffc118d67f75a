// Package feed fetches and parses the announcement RSS feed.
package feed

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"harvester/internal/model"
)

// Parse converts an RSS payload into feed items. Board-specific elements
// (department, filename1, url1, preview1) are read from the item's custom
// fields.
func Parse(body []byte) ([]model.RssItem, error) {
	if len(body) == 0 {
		return nil, errors.New("empty feed body")
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]model.RssItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		items = append(items, convertItem(entry))
	}
	return items, nil
}

func convertItem(entry *gofeed.Item) model.RssItem {
	link := strings.TrimSpace(entry.Link)
	item := model.RssItem{
		ID:              ExtractID(link),
		Title:           strings.TrimSpace(entry.Title),
		Link:            link,
		PubDate:         strings.TrimSpace(entry.Published),
		DescriptionHTML: strings.TrimSpace(entry.Description),
		Department:      custom(entry, "department"),
	}
	if item.DescriptionHTML == "" {
		item.DescriptionHTML = strings.TrimSpace(entry.Content)
	}

	att := model.Attachment{
		Filename: custom(entry, "filename1"),
		URL:      custom(entry, "url1"),
		Preview:  custom(entry, "preview1"),
	}
	if att.Filename != "" || att.URL != "" || att.Preview != "" {
		item.Attachment = &att
	}
	return item
}

func custom(entry *gofeed.Item, key string) string {
	if entry.Custom == nil {
		return ""
	}
	return strings.TrimSpace(entry.Custom[key])
}

// ExtractID derives a stable item id from the notice link: the nttNo or
// articleNo query parameter when present, otherwise the base64url link.
// Links that are not absolute URLs get a random id.
func ExtractID(link string) string {
	u, err := url.Parse(link)
	if err != nil || !u.IsAbs() {
		return uuid.NewString()
	}
	q := u.Query()
	if id := q.Get("nttNo"); id != "" {
		return id
	}
	if id := q.Get("articleNo"); id != "" {
		return id
	}
	return base64.RawURLEncoding.EncodeToString([]byte(link))
}
