// Package gemini implements the VisionModel port against the Gemini
// generateContent REST endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/chequescan/internal/domain/model"
	"github.com/ericfisherdev/chequescan/internal/domain/port/driven"
)

// DefaultBaseURL is the public Gemini API root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 4 << 10

// Compile-time interface satisfaction check.
var _ driven.VisionModel = (*Client)(nil)

// Config for the Gemini client.
type Config struct {
	APIKey  string
	BaseURL string        // default DefaultBaseURL
	Model   string        // e.g. "gemini-1.5-pro-001"
	Timeout time.Duration // http client timeout; zero means none beyond the caller's context
}

// Client implements driven.VisionModel with a single synchronous POST per call.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a Client. The API key is sent in the x-goog-api-key
// header, never in the URL, so it cannot leak into error strings.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return NewClientWithHTTPClient(cfg, &http.Client{Timeout: cfg.Timeout}, logger)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro-001"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// ModelName returns the configured model.
func (c *Client) ModelName() string {
	return c.cfg.Model
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateContent sends the image followed by the prompt and returns the
// concatenated text parts of the first candidate.
func (c *Client) GenerateContent(ctx context.Context, img model.UploadedImage, prompt string) (string, error) {
	reqID := uuid.NewString()
	start := time.Now()

	body := generateRequest{Contents: []content{{
		Role: "user",
		Parts: []part{
			{InlineData: &inlineData{MimeType: img.ContentType, Data: base64.StdEncoding.EncodeToString(img.Data)}},
			{Text: prompt},
		},
	}}}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/models/" + url.PathEscape(c.cfg.Model) + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	c.logger.Info("gemini.request",
		"req_id", reqID,
		"model", c.cfg.Model,
		"image_bytes", len(img.Data),
		"content_length", len(payload),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("gemini.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("gemini.response_body_close_error", "req_id", reqID, "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}

	c.logger.Info("gemini.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return "", statusError(resp.StatusCode, raw)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}

	if len(out.Candidates) == 0 {
		if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini blocked the request: %s", out.PromptFeedback.BlockReason)
		}
		return "", nil
	}

	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}

func statusError(status int, raw []byte) error {
	var ae apiError
	if err := json.Unmarshal(raw, &ae); err == nil && ae.Error.Message != "" {
		return fmt.Errorf("gemini status %d (%s): %s", status, ae.Error.Status, ae.Error.Message)
	}
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("gemini status %d: %s", status, msg)
}
