package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// stateFile is the tiny JSON document persisted between runs.
type stateFile struct {
	SessionID string `json:"session_id"`
}

// LoadSessionID reads the stored session id. A missing or unreadable file
// yields an empty id; the caller then starts fresh.
func LoadSessionID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read session file %s: %w", path, err)
	}
	var st stateFile
	if err := json.Unmarshal(data, &st); err != nil {
		return "", fmt.Errorf("parse session file %s: %w", path, err)
	}
	return strings.TrimSpace(st.SessionID), nil
}

// SaveSessionID persists the active session id for the next run.
func SaveSessionID(path, sessionID string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create session file dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(stateFile{SessionID: sessionID}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ResolveSessionID picks the initial session id from an explicit flag and the
// stored state. An explicit id is persisted immediately; fresh ignores any
// stored state. The second result reports whether a new session must be
// minted by Open.
func ResolveSessionID(path, flagID string, fresh bool) (string, bool, error) {
	if id := strings.TrimSpace(flagID); id != "" {
		if err := SaveSessionID(path, id); err != nil {
			return "", false, err
		}
		return id, false, nil
	}
	if fresh {
		return "", true, nil
	}
	stored, err := LoadSessionID(path)
	if err != nil {
		return "", true, err
	}
	return stored, stored == "", nil
}
