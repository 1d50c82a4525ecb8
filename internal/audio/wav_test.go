package audio

import (
	"testing"
)

func TestEncodeDecodeWAV_RoundTrip(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768, 42}
	data, err := EncodeWAV(samples, 16000, 1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(data) != wavHeaderSize+len(samples)*2 {
		t.Fatalf("unexpected encoded size %d", len(data))
	}

	got, rate, channels, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rate != 16000 || channels != 1 {
		t.Fatalf("got rate=%d channels=%d", rate, channels)
	}
	if len(got) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d: got %d want %d", i, got[i], samples[i])
		}
	}
}

func TestEncodeWAV_Invalid(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000, 1); err == nil {
		t.Fatalf("expected error for empty samples")
	}
	if _, err := EncodeWAV([]int16{1}, 0, 1); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
	if _, err := EncodeWAV([]int16{1}, 16000, 0); err == nil {
		t.Fatalf("expected error for zero channels")
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	if _, _, _, err := DecodeWAV([]byte("short")); err == nil {
		t.Fatalf("expected error for truncated data")
	}

	data, err := EncodeWAV([]int16{1, 2, 3}, 8000, 1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data[0] = 'X' // corrupt RIFF marker
	if _, _, _, err := DecodeWAV(data); err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

func TestDecodeWAV_TruncatedBodyIsClamped(t *testing.T) {
	data, err := EncodeWAV([]int16{1, 2, 3, 4}, 8000, 1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Drop the last sample's bytes; header still claims 4 samples.
	got, _, _, err := DecodeWAV(data[:len(data)-2])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d samples, want 3", len(got))
	}
}

func TestRecordingDuration(t *testing.T) {
	r := Recording{Samples: make([]int16, 16000), SampleRate: 16000, Channels: 1}
	if d := r.Duration(); d.Seconds() != 1.0 {
		t.Fatalf("got %v, want 1s", d)
	}
	stereo := Recording{Samples: make([]int16, 16000), SampleRate: 16000, Channels: 2}
	if d := stereo.Duration(); d.Milliseconds() != 500 {
		t.Fatalf("got %v, want 500ms", d)
	}
	var zero Recording
	if d := zero.Duration(); d != 0 {
		t.Fatalf("got %v, want 0", d)
	}
}
