// Package videodb is a thin HTTP client for the remote video indexing
// platform: capture sessions, rtstreams, transcription, indexing and text
// generation. Every call is parameterized by the caller's API key.
package videodb

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

	"go.uber.org/zap"
)

// ChannelType identifies an rtstream audio channel of a capture session.
type ChannelType string

const (
	ChannelMic         ChannelType = "mic"
	ChannelSystemAudio ChannelType = "system_audio"
)

// CaptureSession is the platform's descriptor for one recording session.
type CaptureSession struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// RTStream is one live audio stream of a capture session.
type RTStream struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Channel string `json:"channel"`
}

// SessionToken is a short-lived client token for the platform SDK.
type SessionToken struct {
	SessionToken string `json:"session_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// CreateCaptureSessionRequest carries the optional knobs for session creation.
type CreateCaptureSessionRequest struct {
	EndUserID      string         `json:"end_user_id"`
	CallbackURL    string         `json:"callback_url,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	WSConnectionID string         `json:"ws_connection_id,omitempty"`
}

// Client talks to the platform REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a platform client. baseURL must not have a trailing slash.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// CreateCaptureSession creates a capture session and returns the raw
// descriptor (session_id plus platform-specific fields the client forwards
// to the SDK untouched).
func (c *Client) CreateCaptureSession(ctx context.Context, apiKey string, req CreateCaptureSessionRequest) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, apiKey, http.MethodPost, "/capture-sessions", req, &out); err != nil {
		return nil, fmt.Errorf("create capture session: %w", err)
	}
	return out, nil
}

// CreateSessionToken creates a short-lived SDK token for an end user.
func (c *Client) CreateSessionToken(ctx context.Context, apiKey, endUserID string) (*SessionToken, error) {
	body := map[string]string{"end_user_id": endUserID}
	var out SessionToken
	if err := c.do(ctx, apiKey, http.MethodPost, "/session-tokens", body, &out); err != nil {
		return nil, fmt.Errorf("create session token: %w", err)
	}
	return &out, nil
}

// GetCaptureSession fetches a capture session by id. Returns (nil, nil) when
// the platform has not materialized the session yet (404).
func (c *Client) GetCaptureSession(ctx context.Context, apiKey, sessionID string) (*CaptureSession, error) {
	var out CaptureSession
	err := c.do(ctx, apiKey, http.MethodGet, "/capture-sessions/"+url.PathEscape(sessionID), nil, &out)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get capture session: %w", err)
	}
	return &out, nil
}

// ListRTStreams lists the rtstreams of a capture session for one channel.
// The list is empty until the platform creates the streams, some time after
// the session itself.
func (c *Client) ListRTStreams(ctx context.Context, apiKey, sessionID string, channel ChannelType) ([]RTStream, error) {
	path := fmt.Sprintf("/capture-sessions/%s/rtstreams?channel=%s", url.PathEscape(sessionID), url.QueryEscape(string(channel)))
	var out struct {
		RTStreams []RTStream `json:"rtstreams"`
	}
	if err := c.do(ctx, apiKey, http.MethodGet, path, nil, &out); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list rtstreams: %w", err)
	}
	return out.RTStreams, nil
}

// StartTranscript starts live transcription on an rtstream, delivering
// transcript events to the given client-side websocket connection.
func (c *Client) StartTranscript(ctx context.Context, apiKey, streamID, wsConnectionID string) error {
	body := map[string]string{"ws_connection_id": wsConnectionID}
	if err := c.do(ctx, apiKey, http.MethodPost, "/rtstreams/"+url.PathEscape(streamID)+"/transcript", body, nil); err != nil {
		return fmt.Errorf("start transcript: %w", err)
	}
	return nil
}

// IndexVideo indexes the spoken words of a finished video for search.
// The platform reports explicit success.
func (c *Client) IndexVideo(ctx context.Context, apiKey, videoID string) (bool, error) {
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, apiKey, http.MethodPost, "/videos/"+url.PathEscape(videoID)+"/index", map[string]string{"index_type": "spoken_word"}, &out); err != nil {
		return false, fmt.Errorf("index video: %w", err)
	}
	return out.Success, nil
}

// GetTranscriptText fetches the full transcript of a video. Returns "" when
// the video has no transcript (silent recording), which is not an error.
func (c *Client) GetTranscriptText(ctx context.Context, apiKey, videoID string) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	err := c.do(ctx, apiKey, http.MethodGet, "/videos/"+url.PathEscape(videoID)+"/transcript", nil, &out)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("get transcript: %w", err)
	}
	return out.Text, nil
}

// GenerateText runs a prompt through the platform's text generation with the
// given model tier. The remote response shape varies (a bare JSON string, or
// an object nesting the text under output/text/data.text); it is normalized
// to a plain string here so that ambiguity never leaks past this boundary.
func (c *Client) GenerateText(ctx context.Context, apiKey, prompt, modelName string) (string, error) {
	body := map[string]string{"prompt": prompt, "model_name": modelName}
	raw, err := c.doRaw(ctx, apiKey, http.MethodPost, "/generate-text", body)
	if err != nil {
		return "", fmt.Errorf("generate text: %w", err)
	}
	return normalizeGenerated(raw), nil
}

func normalizeGenerated(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		// Not JSON at all: treat the body as the generated text.
		return strings.TrimSpace(string(raw))
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if s, ok := t["output"].(string); ok && s != "" {
			return strings.TrimSpace(s)
		}
		if s, ok := t["text"].(string); ok && s != "" {
			return strings.TrimSpace(s)
		}
		if data, ok := t["data"].(map[string]any); ok {
			if s, ok := data["text"].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// apiError is a non-2xx platform response.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("videodb: status %d: %s", e.Status, e.Body)
}

func isNotFound(err error) bool {
	if ae, ok := err.(*apiError); ok {
		return ae.Status == http.StatusNotFound
	}
	return false
}

func (c *Client) do(ctx context.Context, apiKey, method, path string, body, out any) error {
	raw, err := c.doRaw(ctx, apiKey, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, apiKey, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}
