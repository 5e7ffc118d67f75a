package preview

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"harvester/internal/model"
)

func TestFileTypeAndMime(t *testing.T) {
	cases := []struct {
		name, kind, mime string
	}{
		{"poster.PNG", FileImage, "image/png"},
		{"photo.jpeg", FileImage, "image/jpeg"},
		{"안내문.pdf", FilePDF, "application/pdf"},
		{"신청서.hwpx", FileHWP, "application/x-hwp"},
		{"form.docx", FileDoc, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"archive.zip", FileOther, "application/octet-stream"},
		{"", FileOther, "application/octet-stream"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, FileType(tc.name), tc.name)
		assert.Equal(t, tc.mime, MimeType(tc.name), tc.name)
	}
	assert.True(t, IsImage("a.webp"))
	assert.False(t, IsImage("a.webp.txt"))
}

func TestAttachmentText(t *testing.T) {
	assert.Empty(t, AttachmentText(model.RssItem{}))

	item := model.RssItem{Attachment: &model.Attachment{
		Filename: "poster.png",
		URL:      "https://x/download",
		Preview:  "https://x/preview",
	}}
	assert.Equal(t, "첨부 파일: poster.png\n다운로드: https://x/download\n미리보기: https://x/preview", AttachmentText(item))

	onlyName := model.RssItem{Attachment: &model.Attachment{Filename: "a.pdf"}}
	assert.Equal(t, "첨부 파일: a.pdf", AttachmentText(onlyName))
}

func TestDedupeLinks(t *testing.T) {
	got := DedupeLinks("https://www.knue.ac.kr/view?nttNo=1", []string{
		"https://WWW.knue.ac.kr/view?nttNo=2",
		"https://example.com/apply#top",
		"https://example.com/apply",
		"not a url",
		"not a url",
	})
	assert.Equal(t, []string{
		"https://www.knue.ac.kr/view?nttNo=1",
		"https://example.com/apply#top",
		"not a url",
	}, got)

	assert.Equal(t, []string{"https://a/b"}, DedupeLinks("", []string{"https://a/b"}))
	assert.Empty(t, DedupeLinks("", nil))
}

func TestClassify(t *testing.T) {
	img := Classify("image/png", []byte("png"))
	assert.Equal(t, model.PreviewImage, img.Kind)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png")), img.ImageBase64)

	txt := Classify("application/json", []byte(`{"a":1}`))
	assert.Equal(t, model.PreviewText, txt.Kind)
	assert.Equal(t, `{"a":1}`, txt.Text)

	bin := Classify("application/pdf", []byte("%PDF"))
	assert.Equal(t, model.PreviewBinary, bin.Kind)
}

func TestFetcherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/typed":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("본문"))
		case "/untyped":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, "test")
	ctx := context.Background()

	got := f.Fetch(ctx, srv.URL+"/typed", "")
	assert.Equal(t, model.PreviewText, got.Kind)
	assert.Equal(t, "본문", got.Text)

	got = f.Fetch(ctx, srv.URL+"/untyped", "poster.png")
	assert.Equal(t, model.PreviewImage, got.Kind)
	assert.Equal(t, "image/png", got.ContentType)

	assert.Equal(t, model.PreviewNone, f.Fetch(ctx, srv.URL+"/missing", "").Kind)
	assert.Equal(t, model.PreviewNone, f.Fetch(ctx, "", "").Kind)
}
