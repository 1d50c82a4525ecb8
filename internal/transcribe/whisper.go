// Package transcribe turns one captured WAV buffer into text by calling a
// local whisper-server style HTTP endpoint.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Error wraps a transcription failure; it aborts only the current turn.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("transcribe: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Result is one turn's transcription outcome.
type Result struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// Client posts WAV audio to a whisper-server inference endpoint.
type Client struct {
	HTTPClient *http.Client
	Endpoint   string // e.g. http://127.0.0.1:8585/inference
	Model      string // whisper model name, e.g. "base"
	Task       string // "transcribe" or "translate"
	Language   string // optional language hint, empty for auto-detect
}

// NewClient builds a transcription client with a bounded request timeout.
func NewClient(endpoint, model, task, language string, timeout time.Duration) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		Endpoint:   endpoint,
		Model:      model,
		Task:       task,
		Language:   language,
	}
}

// Transcribe sends one WAV buffer and returns the recognized text plus the
// detected (or hinted) language.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (Result, error) {
	if len(wav) == 0 {
		return Result{}, &Error{Err: fmt.Errorf("empty audio buffer")}
	}

	body, contentType, err := c.multipartBody(wav)
	if err != nil {
		return Result{}, &Error{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, body)
	if err != nil {
		return Result{}, &Error{Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Result{}, &Error{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, &Error{Err: fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))}
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, &Error{Err: fmt.Errorf("decode response: %w", err)}
	}
	res.Text = strings.TrimSpace(res.Text)
	return res, nil
}

func (c *Client) multipartBody(wav []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("file", "turn.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, "", fmt.Errorf("write audio: %w", err)
	}

	fields := map[string]string{
		"model":           c.Model,
		"task":            c.Task,
		"response_format": "json",
	}
	if c.Language != "" {
		fields["language"] = c.Language
	}
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", key, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// Ping probes the endpoint so startup can warn early when the transcription
// backend is not reachable yet. The probe is advisory; transcription is
// attempted per turn regardless.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
