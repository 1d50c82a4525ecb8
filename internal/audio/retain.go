package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var unsafeSessionChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SafeSessionDirName converts a session id to a filesystem-safe directory
// name.
func SafeSessionDirName(raw string) string {
	cleaned := unsafeSessionChars.ReplaceAllString(raw, "_")
	if cleaned == "" {
		return "unknown-session"
	}
	return cleaned
}

// Retainer persists one WAV file per turn under a per-session directory.
type Retainer struct {
	root string
}

// NewRetainer returns a retainer rooted at dir.
func NewRetainer(dir string) *Retainer {
	return &Retainer{root: dir}
}

// FileName builds the per-turn file name, encoding timestamp and turn index.
func FileName(turn int, now time.Time) string {
	return fmt.Sprintf("%s-turn-%03d.wav", now.Format("2006-01-02-15-04-05"), turn)
}

// Save writes one turn's WAV under <root>/<safe-session>/ and returns the
// written path.
func (r *Retainer) Save(sessionID string, turn int, wav []byte) (string, error) {
	dir := filepath.Join(r.root, SafeSessionDirName(sessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create retention dir: %w", err)
	}
	path := filepath.Join(dir, FileName(turn, time.Now()))
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("write retained audio: %w", err)
	}
	return path, nil
}
