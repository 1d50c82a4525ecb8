package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/langenhagen/vincent/internal/audio"
)

type fakePlayer struct {
	played     [][]int16
	sampleRate int
	err        error
}

func (f *fakePlayer) Play(_ context.Context, samples []int16, sampleRate int) error {
	if f.err != nil {
		return f.err
	}
	f.played = append(f.played, samples)
	f.sampleRate = sampleRate
	return nil
}

func speechServer(t *testing.T, samples []int16, sampleRate, channels int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			http.NotFound(w, r)
			return
		}
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Input == "" || req.Voice == "" {
			t.Errorf("unexpected request %+v", req)
		}
		wav, err := audio.EncodeWAV(samples, sampleRate, channels)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		_, _ = w.Write(wav)
	}))
}

func TestSynthesizeAndPlay(t *testing.T) {
	srv := speechServer(t, []int16{1, 2, 3, 4}, 24000, 1)
	defer srv.Close()

	player := &fakePlayer{}
	k := NewKokoroClient(srv.URL, "af_heart", "a", 1.0, time.Second, player)
	if err := k.SynthesizeAndPlay(context.Background(), "hi there"); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(player.played) != 1 || player.sampleRate != 24000 {
		t.Fatalf("expected one playback at 24kHz, got %d at %d", len(player.played), player.sampleRate)
	}
}

func TestSynthesizeAndPlay_DownmixesStereo(t *testing.T) {
	srv := speechServer(t, []int16{100, 200, 300, 400}, 24000, 2)
	defer srv.Close()

	player := &fakePlayer{}
	k := NewKokoroClient(srv.URL, "af_heart", "a", 1.0, time.Second, player)
	if err := k.SynthesizeAndPlay(context.Background(), "hi"); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	got := player.played[0]
	if len(got) != 2 || got[0] != 150 || got[1] != 350 {
		t.Fatalf("unexpected downmix %v", got)
	}
}

func TestSynthesizeAndPlay_EmptyTextIsNoop(t *testing.T) {
	player := &fakePlayer{}
	k := NewKokoroClient("http://127.0.0.1:0", "af_heart", "a", 1.0, time.Second, player)
	if err := k.SynthesizeAndPlay(context.Background(), ""); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(player.played) != 0 {
		t.Fatalf("expected no playback")
	}
}

func TestSynthesizeAndPlay_ServerErrorIsSynthesisError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	k := NewKokoroClient(srv.URL, "af_heart", "a", 1.0, time.Second, &fakePlayer{})
	err := k.SynthesizeAndPlay(context.Background(), "hi")
	var serr *SynthesisError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *SynthesisError, got %v", err)
	}
}

func TestSynthesizeAndPlay_PlaybackErrorIsSynthesisError(t *testing.T) {
	srv := speechServer(t, []int16{1, 2}, 24000, 1)
	defer srv.Close()

	player := &fakePlayer{err: errors.New("device busy")}
	k := NewKokoroClient(srv.URL, "af_heart", "a", 1.0, time.Second, player)
	err := k.SynthesizeAndPlay(context.Background(), "hi")
	var serr *SynthesisError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *SynthesisError, got %v", err)
	}
}
