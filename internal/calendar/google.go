package calendar

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appLog "harvester/internal/log"
	"harvester/internal/model"
)

const (
	defaultTokenURI = "https://oauth2.googleapis.com/token"
	defaultAPIBase  = "https://www.googleapis.com/calendar/v3"
	calendarScope   = "https://www.googleapis.com/auth/calendar"
	jwtBearerGrant  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	listPageSize    = 250
)

// ServiceAccount is the subset of a Google service-account key file used
// for the JWT bearer flow.
type ServiceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri,omitempty"`
}

// ParseServiceAccount decodes a service-account JSON key.
func ParseServiceAccount(data []byte) (ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return sa, fmt.Errorf("parse service account JSON: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return sa, errors.New("invalid service account JSON: client_email and private_key are required")
	}
	if sa.TokenURI == "" {
		sa.TokenURI = defaultTokenURI
	}
	return sa, nil
}

// Google publishes to a Google Calendar through the REST API, authenticating
// as a service account. Access tokens are cached until shortly before they
// expire.
type Google struct {
	client     *http.Client
	apiBase    string
	calendarID string
	sa         ServiceAccount
	key        *rsa.PrivateKey
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewGoogle builds a Google backend for calendarID.
func NewGoogle(calendarID string, sa ServiceAccount) (*Google, error) {
	if calendarID == "" {
		return nil, errors.New("google calendar id is empty")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account private key: %w", err)
	}
	if sa.TokenURI == "" {
		sa.TokenURI = defaultTokenURI
	}
	return &Google{
		client:     &http.Client{Timeout: 30 * time.Second},
		apiBase:    defaultAPIBase,
		calendarID: calendarID,
		sa:         sa,
		key:        key,
		now:        time.Now,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// accessToken returns a cached token or exchanges a fresh signed assertion.
func (g *Google) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if g.token != "" && now.Before(g.tokenExpiry) {
		return g.token, nil
	}

	claims := jwt.MapClaims{
		"iss":   g.sa.ClientEmail,
		"sub":   g.sa.ClientEmail,
		"aud":   g.sa.TokenURI,
		"scope": calendarScope,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(g.key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}

	form := url.Values{"grant_type": {jwtBearerGrant}, "assertion": {assertion}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.sa.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		appLog.Error("failed to obtain access token", errors.New(resp.Status), "body", string(body))
		return "", fmt.Errorf("google oauth error: %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("token response has no access_token")
	}

	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	g.token = tok.AccessToken
	g.tokenExpiry = now.Add(ttl - time.Minute)
	return g.token, nil
}

type privateProps struct {
	Private map[string]string `json:"private,omitempty"`
}

type googleEvent struct {
	ID                 string           `json:"id,omitempty"`
	Summary            string           `json:"summary,omitempty"`
	Description        string           `json:"description,omitempty"`
	HTMLLink           string           `json:"htmlLink,omitempty"`
	Start              *model.EventTime `json:"start,omitempty"`
	End                *model.EventTime `json:"end,omitempty"`
	ExtendedProperties *privateProps    `json:"extendedProperties,omitempty"`
}

func (e googleEvent) toExisting() model.ExistingEvent {
	out := model.ExistingEvent{
		ID:          e.ID,
		Title:       e.Summary,
		Description: e.Description,
		HTMLLink:    e.HTMLLink,
	}
	if e.Start != nil {
		out.Start = *e.Start
	}
	if e.End != nil {
		out.End = *e.End
	}
	if e.ExtendedProperties != nil {
		out.SourceItemID = e.ExtendedProperties.Private["nttNo"]
		out.Hash = e.ExtendedProperties.Private["hash"]
	}
	return out
}

func (g *Google) eventsURL() string {
	return g.apiBase + "/calendars/" + url.PathEscape(g.calendarID) + "/events"
}

// List pages through events.list with singleEvents expansion.
func (g *Google) List(ctx context.Context, timeMin, timeMax time.Time) ([]model.ExistingEvent, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var out []model.ExistingEvent
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("singleEvents", "true")
		q.Set("orderBy", "startTime")
		q.Set("maxResults", fmt.Sprint(listPageSize))
		q.Set("timeMin", timeMin.Format(time.RFC3339))
		q.Set("timeMax", timeMax.Format(time.RFC3339))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.eventsURL()+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		var page struct {
			Items         []googleEvent `json:"items"`
			NextPageToken string        `json:"nextPageToken"`
		}
		if err := g.do(req, &page, "list"); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			out = append(out, item.toExisting())
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	appLog.Debug("google calendar listed", "events", len(out))
	return out, nil
}

// Create inserts c via events.insert.
func (g *Google) Create(ctx context.Context, c model.CandidateEvent, rec model.ProcessedRecord, extras map[string]string) (model.ExistingEvent, error) {
	start, end, err := EventTimes(c)
	if err != nil {
		return model.ExistingEvent{}, err
	}

	private := map[string]string{"nttNo": rec.NttNo, "hash": rec.Hash}
	for k, v := range extras {
		private[k] = v
	}
	body, err := json.Marshal(googleEvent{
		Summary:            c.Title,
		Description:        c.Description,
		Start:              &start,
		End:                &end,
		ExtendedProperties: &privateProps{Private: private},
	})
	if err != nil {
		return model.ExistingEvent{}, err
	}

	token, err := g.accessToken(ctx)
	if err != nil {
		return model.ExistingEvent{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.eventsURL(), bytes.NewReader(body))
	if err != nil {
		return model.ExistingEvent{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var created googleEvent
	if err := g.do(req, &created, "create"); err != nil {
		return model.ExistingEvent{}, err
	}
	return created.toExisting(), nil
}

// Delete removes an event via events.delete. 404 and 410 mean it is
// already gone.
func (g *Google) Delete(ctx context.Context, eventID string) error {
	token, err := g.accessToken(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.eventsURL()+"/"+url.PathEscape(eventID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("google calendar delete: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusGone:
		return nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		appLog.Error("google calendar request failed", errors.New(resp.Status), "op", "delete", "body", string(body))
		return fmt.Errorf("google calendar delete error %d", resp.StatusCode)
	}
}

func (g *Google) do(req *http.Request, out any, op string) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("google calendar %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		appLog.Error("google calendar request failed", errors.New(resp.Status), "op", op, "body", string(body))
		return fmt.Errorf("google calendar %s error %d", op, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
