package calendar

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/model"
)

type fakeGoogle struct {
	t          *testing.T
	key        *rsa.PrivateKey
	tokenHits  atomic.Int32
	listHits   atomic.Int32
	lastInsert googleEvent
	deleted    []string
}

func (f *fakeGoogle) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenHits.Add(1)
		assert.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, jwtBearerGrant, r.PostForm.Get("grant_type"))

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(r.PostForm.Get("assertion"), claims, func(tok *jwt.Token) (any, error) {
			return &f.key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		assert.NoError(f.t, err)
		assert.Equal(f.t, "bot@example.iam.gserviceaccount.com", claims["iss"])
		assert.Equal(f.t, calendarScope, claims["scope"])

		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok-1", ExpiresIn: 3600, TokenType: "Bearer"})
	})
	mux.HandleFunc("GET /calendars/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		f.listHits.Add(1)
		assert.Equal(f.t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(f.t, "cal@group.calendar.google.com", r.PathValue("id"))
		assert.Equal(f.t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(f.t, "startTime", r.URL.Query().Get("orderBy"))

		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"items":[{"id":"a","summary":"학술제","start":{"dateTime":"2025-10-22T09:00:00+09:00"},"end":{"dateTime":"2025-10-22T12:00:00+09:00"},"extendedProperties":{"private":{"nttNo":"12345","hash":"h"}}}],"nextPageToken":"p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"b","summary":"휴관","start":{"date":"2025-10-25"},"end":{"date":"2025-10-26"},"htmlLink":"https://calendar.google.com/b"}]}`))
	})
	mux.HandleFunc("POST /calendars/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.lastInsert))
		created := f.lastInsert
		created.ID = "new-1"
		created.HTMLLink = "https://calendar.google.com/new-1"
		_ = json.NewEncoder(w).Encode(created)
	})
	mux.HandleFunc("DELETE /calendars/{id}/events/{eventID}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "Bearer tok-1", r.Header.Get("Authorization"))
		switch id := r.PathValue("eventID"); id {
		case "gone":
			w.WriteHeader(http.StatusGone)
		case "locked":
			w.WriteHeader(http.StatusForbidden)
		default:
			f.deleted = append(f.deleted, id)
			w.WriteHeader(http.StatusNoContent)
		}
	})
	return mux
}

func newFakeGoogle(t *testing.T) (*Google, *fakeGoogle) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	fake := &fakeGoogle{t: t, key: key}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	saJSON, err := json.Marshal(map[string]string{
		"client_email": "bot@example.iam.gserviceaccount.com",
		"private_key":  string(keyPEM),
		"token_uri":    srv.URL + "/token",
	})
	require.NoError(t, err)
	sa, err := ParseServiceAccount(saJSON)
	require.NoError(t, err)

	g, err := NewGoogle("cal@group.calendar.google.com", sa)
	require.NoError(t, err)
	g.apiBase = srv.URL
	return g, fake
}

func TestParseServiceAccount(t *testing.T) {
	sa, err := ParseServiceAccount([]byte(`{"client_email":"a@b","private_key":"k"}`))
	require.NoError(t, err)
	assert.Equal(t, defaultTokenURI, sa.TokenURI)

	_, err = ParseServiceAccount([]byte(`{"client_email":"a@b"}`))
	assert.Error(t, err)
	_, err = ParseServiceAccount([]byte(`not json`))
	assert.Error(t, err)
}

func TestGoogleListPagesAndCachesToken(t *testing.T) {
	g, fake := newFakeGoogle(t)
	ctx := context.Background()
	from, to := time.Now(), time.Now().Add(24*time.Hour)

	events, err := g.List(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "12345", events[0].SourceItemID)
	assert.Equal(t, "h", events[0].Hash)
	assert.Equal(t, "2025-10-22", events[0].Start.Day())
	assert.Equal(t, "2025-10-25", events[1].Start.Date)
	assert.Equal(t, "https://calendar.google.com/b", events[1].HTMLLink)
	assert.Equal(t, int32(2), fake.listHits.Load())

	_, err = g.List(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.tokenHits.Load())

	g.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = g.List(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.tokenHits.Load())
}

func TestGoogleCreate(t *testing.T) {
	g, fake := newFakeGoogle(t)

	created, err := g.Create(context.Background(),
		model.CandidateEvent{Title: "원서 접수", Description: "d", StartDate: "2025-10-20", EndDate: "2025-10-21"},
		model.ProcessedRecord{NttNo: "777", Hash: "abc"},
		map[string]string{"summaryHash": "abc"})
	require.NoError(t, err)

	assert.Equal(t, "new-1", created.ID)
	assert.Equal(t, "https://calendar.google.com/new-1", created.HTMLLink)
	assert.Equal(t, "777", created.SourceItemID)

	sent := fake.lastInsert
	assert.Equal(t, "원서 접수", sent.Summary)
	require.NotNil(t, sent.Start)
	assert.Equal(t, "2025-10-20", sent.Start.Date)
	assert.Equal(t, "2025-10-22", sent.End.Date)
	assert.Equal(t, map[string]string{"nttNo": "777", "hash": "abc", "summaryHash": "abc"}, sent.ExtendedProperties.Private)
}

func TestGoogleDelete(t *testing.T) {
	g, fake := newFakeGoogle(t)
	ctx := context.Background()

	require.NoError(t, g.Delete(ctx, "new-1"))
	assert.Equal(t, []string{"new-1"}, fake.deleted)

	assert.NoError(t, g.Delete(ctx, "gone"))
	assert.ErrorContains(t, g.Delete(ctx, "locked"), "403")
}

func TestGoogleTokenFailure(t *testing.T) {
	g, _ := newFakeGoogle(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()
	g.sa.TokenURI = srv.URL

	_, err := g.List(context.Background(), time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
