package feed

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/config"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>공지사항</title>
  <link>https://www.knue.ac.kr</link>
  <item>
    <title>2025학년도 학술제 개최 안내</title>
    <link>https://www.knue.ac.kr/www/selectBbsNttView.do?bbsNo=28&amp;nttNo=12345</link>
    <pubDate>2025-10-20</pubDate>
    <description><![CDATA[<p>행사 일시: 2025-10-22 09:00~12:00</p>]]></description>
    <department>교무처</department>
    <filename1>poster.png</filename1>
    <url1>https://www.knue.ac.kr/files/poster.png</url1>
    <preview1>https://www.knue.ac.kr/preview/poster</preview1>
  </item>
  <item>
    <title>도서관 휴관 안내</title>
    <link>https://www.knue.ac.kr/board/view?articleNo=777</link>
    <pubDate>Tue, 21 Oct 2025 09:30:00 +0900</pubDate>
    <description>휴관</description>
  </item>
</channel>
</rss>`

func TestParseReadsBoardFields(t *testing.T) {
	items, err := Parse([]byte(sampleRSS))
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "12345", first.ID)
	assert.Equal(t, "2025학년도 학술제 개최 안내", first.Title)
	assert.Equal(t, "2025-10-20", first.PubDate)
	assert.Contains(t, first.DescriptionHTML, "행사 일시")
	assert.Equal(t, "교무처", first.Department)
	require.NotNil(t, first.Attachment)
	assert.Equal(t, "poster.png", first.Attachment.Filename)
	assert.Equal(t, "https://www.knue.ac.kr/files/poster.png", first.Attachment.URL)
	assert.Equal(t, "https://www.knue.ac.kr/preview/poster", first.Attachment.Preview)

	second := items[1]
	assert.Equal(t, "777", second.ID)
	assert.Nil(t, second.Attachment)
}

func TestParseRejectsEmptyBody(t *testing.T) {
	_, err := Parse(nil)
	assert.Error(t, err)
}

func TestExtractID(t *testing.T) {
	assert.Equal(t, "42", ExtractID("https://example.com/view?nttNo=42&bbsNo=28"))
	assert.Equal(t, "9", ExtractID("https://example.com/view?articleNo=9"))

	link := "https://example.com/notice/abc"
	assert.Equal(t, base64.RawURLEncoding.EncodeToString([]byte(link)), ExtractID(link))

	a, b := ExtractID("not a url"), ExtractID("not a url")
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestFetcherUsesConditionalRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	f := NewFetcher(config.FeedConfig{
		URL:       srv.URL,
		UserAgent: "test-agent",
		CacheDir:  t.TempDir(),
	})

	items, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetcherFallsBackToCacheOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	f := NewFetcher(config.FeedConfig{URL: srv.URL, CacheDir: t.TempDir()})
	_, err := f.Fetch(context.Background())
	require.NoError(t, err)

	fail.Store(true)
	items, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFetcherErrorsWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(config.FeedConfig{URL: srv.URL, CacheDir: t.TempDir()})
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestNormalizeDate(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	now := time.Date(2025, 10, 28, 10, 0, 0, 0, kst)

	cases := map[string]string{
		"2025-10-20":                      "2025-10-20",
		"Tue, 21 Oct 2025 09:30:00 +0900": "2025-10-21",
		"Mon, 20 Oct 2025 23:30:00 +0000": "2025-10-21",
		"2025.10.05":                      "2025-10-05",
		"":                                "2025-10-28",
		"garbage":                         "2025-10-28",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeDate(in, now, kst), in)
	}
}

func TestWithinWindow(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	now := time.Date(2025, 10, 28, 0, 0, 0, 0, kst)

	assert.True(t, WithinWindow("2025-10-28", now, kst, 7, 30))
	assert.True(t, WithinWindow("2025-10-21", now, kst, 7, 30))
	assert.False(t, WithinWindow("2025-10-20", now, kst, 7, 30))
	assert.True(t, WithinWindow("2025-11-15", now, kst, 7, 30))
	assert.False(t, WithinWindow("2025-12-05", now, kst, 7, 30))
	assert.True(t, WithinWindow("", now, kst, 7, 30))
	assert.True(t, WithinWindow("not a date", now, kst, 7, 30))
}
