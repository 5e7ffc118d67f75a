// Package preview gathers supplementary notice content: attachment
// metadata, downloaded attachment previews and headless page renders.
package preview

import (
	"net/url"
	"path"
	"strings"

	"harvester/internal/model"
)

// Attachment file classes.
const (
	FileImage = "image"
	FilePDF   = "pdf"
	FileHWP   = "hwp"
	FileDoc   = "doc"
	FileOther = "other"
)

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".hwp":  "application/x-hwp",
	".hwpx": "application/x-hwp",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func ext(filename string) string {
	return strings.ToLower(path.Ext(filename))
}

// FileType classifies filename by extension.
func FileType(filename string) string {
	switch ext(filename) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return FileImage
	case ".pdf":
		return FilePDF
	case ".hwp", ".hwpx":
		return FileHWP
	case ".doc", ".docx":
		return FileDoc
	default:
		return FileOther
	}
}

// IsImage reports whether filename has an image extension.
func IsImage(filename string) bool {
	return FileType(filename) == FileImage
}

// MimeType maps filename to a MIME type, defaulting to
// application/octet-stream.
func MimeType(filename string) string {
	if m, ok := mimeTypes[ext(filename)]; ok {
		return m
	}
	return "application/octet-stream"
}

// AttachmentText renders the attachment metadata lines for a notice, or ""
// when it has none.
func AttachmentText(item model.RssItem) string {
	if item.Attachment == nil {
		return ""
	}
	var parts []string
	if item.Attachment.Filename != "" {
		parts = append(parts, "첨부 파일: "+item.Attachment.Filename)
	}
	if item.Attachment.URL != "" {
		parts = append(parts, "다운로드: "+item.Attachment.URL)
	}
	if item.Attachment.Preview != "" {
		parts = append(parts, "미리보기: "+item.Attachment.Preview)
	}
	return strings.Join(parts, "\n")
}

// DedupeLinks merges primary and secondary, dropping links that share
// scheme, host and path with one already kept. primary comes first.
func DedupeLinks(primary string, secondary []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(link string) {
		key := linkKey(link)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, link)
	}

	if primary != "" {
		add(primary)
	}
	for _, link := range secondary {
		add(link)
	}
	return out
}

func linkKey(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return link
	}
	return u.Scheme + "://" + strings.ToLower(u.Hostname()) + u.Path
}
