// Package tts speaks assistant replies through a local Kokoro TTS server.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/langenhagen/vincent/internal/audio"
)

// SynthesisError reports a failed synthesis or playback. It degrades the turn
// to text-only output and is never fatal.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return fmt.Sprintf("tts: %v", e.Err) }
func (e *SynthesisError) Unwrap() error { return e.Err }

// Player plays mono PCM to the output device.
type Player interface {
	Play(ctx context.Context, samples []int16, sampleRate int) error
}

// KokoroClient requests WAV speech audio from a Kokoro server
// (OpenAI-compatible /v1/audio/speech surface) and plays it back.
type KokoroClient struct {
	HTTPClient *http.Client
	Endpoint   string
	Voice      string
	LangCode   string
	Speed      float64

	player Player
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	LangCode       string  `json:"lang_code,omitempty"`
	ResponseFormat string  `json:"response_format"`
}

// NewKokoroClient builds a speaker for the given voice parameters.
func NewKokoroClient(endpoint, voice, langCode string, speed float64, timeout time.Duration, player Player) *KokoroClient {
	return &KokoroClient{
		HTTPClient: &http.Client{Timeout: timeout},
		Endpoint:   endpoint,
		Voice:      voice,
		LangCode:   langCode,
		Speed:      speed,
		player:     player,
	}
}

// Probe checks that the server answers at all. Voice startup fails hard when
// speech was requested but the backend is unreachable.
func (k *KokoroClient) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.Endpoint+"/v1/models", nil)
	if err != nil {
		return &SynthesisError{Err: err}
	}
	resp, err := k.HTTPClient.Do(req)
	if err != nil {
		return &SynthesisError{Err: fmt.Errorf("kokoro server unreachable at %s: %w", k.Endpoint, err)}
	}
	resp.Body.Close()
	return nil
}

// SynthesizeAndPlay converts text to speech and plays it to completion.
func (k *KokoroClient) SynthesizeAndPlay(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	wav, err := k.synthesize(ctx, text)
	if err != nil {
		return err
	}

	samples, sampleRate, channels, err := audio.DecodeWAV(wav)
	if err != nil {
		return &SynthesisError{Err: fmt.Errorf("decode speech audio: %w", err)}
	}
	if channels != 1 {
		samples = downmixMono(samples, channels)
	}
	if len(samples) == 0 {
		return nil
	}

	if err := k.player.Play(ctx, samples, sampleRate); err != nil {
		return &SynthesisError{Err: fmt.Errorf("playback: %w", err)}
	}
	return nil
}

func (k *KokoroClient) synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(speechRequest{
		Model:          "kokoro",
		Input:          text,
		Voice:          k.Voice,
		Speed:          k.Speed,
		LangCode:       k.LangCode,
		ResponseFormat: "wav",
	})
	if err != nil {
		return nil, &SynthesisError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.Endpoint+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, &SynthesisError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.HTTPClient.Do(req)
	if err != nil {
		return nil, &SynthesisError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &SynthesisError{Err: fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))}
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthesisError{Err: fmt.Errorf("read speech audio: %w", err)}
	}
	return wav, nil
}

// downmixMono averages interleaved frames into a single channel.
func downmixMono(samples []int16, channels int) []int16 {
	frames := len(samples) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for ch := 0; ch < channels; ch++ {
			sum += int(samples[i*channels+ch])
		}
		out[i] = int16(sum / channels)
	}
	return out
}
