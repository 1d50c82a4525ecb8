package audio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSafeSessionDirName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ses_abc123", "ses_abc123"},
		{"a/b\\c:d", "a_b_c_d"},
		{"", "unknown-session"},
		{"with space", "with_space"},
		{"dots.and-dashes_ok", "dots.and-dashes_ok"},
	}
	for _, tc := range cases {
		if got := SafeSessionDirName(tc.in); got != tc.want {
			t.Fatalf("SafeSessionDirName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFileName_EncodesTurnIndex(t *testing.T) {
	at := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	got := FileName(7, at)
	if got != "2026-08-29-10-30-00-turn-007.wav" {
		t.Fatalf("got %q", got)
	}
}

func TestRetainer_SaveWritesPerSessionDir(t *testing.T) {
	root := t.TempDir()
	r := NewRetainer(root)

	path, err := r.Save("ses_abc/../evil", 1, []byte("RIFFdata"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		t.Fatalf("retained file escaped root: %s", path)
	}
	if !strings.Contains(path, "ses_abc_.._evil") {
		t.Fatalf("expected sanitized session dir in %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "RIFFdata" {
		t.Fatalf("unexpected contents %q", data)
	}
}
