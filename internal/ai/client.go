// Package ai talks to an OpenAI-compatible chat completions API to summarize
// notices, extract candidate events and OCR attachment images.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"harvester/internal/config"
	appLog "harvester/internal/log"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("openai api key is not configured")

// Client is safe for concurrent use.
type Client struct {
	http         *http.Client
	apiKey       string
	contentModel string
	visionModel  string
	// endpoint is tried first; fallbackEndpoint (direct OpenAI) is used
	// when the gateway answers with a non-OK status.
	endpoint         string
	fallbackEndpoint string
	gatewayAuth      string
	limiter          *rate.Limiter
	validate         *validator.Validate
}

// New builds a Client from cfg.
func New(cfg config.OpenAIConfig) *Client {
	c := &Client{
		http:         &http.Client{Timeout: 120 * time.Second},
		apiKey:       cfg.APIKey,
		contentModel: cfg.ContentModel,
		visionModel:  cfg.VisionModel,
		endpoint:     openAIEndpoint,
		validate:     validator.New(),
	}
	if c.visionModel == "" {
		c.visionModel = c.contentModel
	}

	switch {
	case cfg.Endpoint != "":
		c.endpoint = cfg.Endpoint
	case cfg.GatewayAccountID != "" && cfg.GatewayName != "":
		c.endpoint = fmt.Sprintf(
			"https://gateway.ai.cloudflare.com/v1/account/%s/ai-gateway/%s/openai/chat/completions",
			cfg.GatewayAccountID, cfg.GatewayName)
		c.fallbackEndpoint = openAIEndpoint
		c.gatewayAuth = cfg.GatewayAuth
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	} else {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	return c
}

// Endpoint returns the primary chat completions URL.
func (c *Client) Endpoint() string { return c.endpoint }

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []message      `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
	Temperature    *float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
}

// statusError is a non-OK answer from the API.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
}

// complete sends a JSON-mode chat request and returns the first choice's
// content.
func (c *Client) complete(ctx context.Context, req chatRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	req.ResponseFormat = responseFormat{Type: "json_object"}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	content, err := c.post(ctx, c.endpoint, body, true)
	var se *statusError
	if err != nil && errors.As(err, &se) && c.fallbackEndpoint != "" {
		appLog.Warn("AI gateway request failed, retrying direct", "status", se.Status)
		content, err = c.post(ctx, c.fallbackEndpoint, body, false)
	}
	return content, err
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte, viaGateway bool) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if viaGateway && c.gatewayAuth != "" {
		httpReq.Header.Set("cf-aig-authorization", "Bearer "+c.gatewayAuth)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", errors.New("response has no choices")
	}

	choice := result.Choices[0]
	if choice.FinishReason == "length" {
		appLog.Warn("AI response truncated", "model", result.Model, "content_length", len(choice.Message.Content))
	}
	appLog.Debug("AI response", "model", result.Model, "content_length", len(choice.Message.Content))
	return choice.Message.Content, nil
}
