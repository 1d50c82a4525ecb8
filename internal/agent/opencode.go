// Package agent maintains one opencode session and performs one synchronous
// exchange per conversation turn by invoking the opencode CLI.
package agent

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionInitError reports that the agent cannot be invoked at all. It is the
// only error that aborts the whole process, checked once before the loop.
type SessionInitError struct {
	Err error
}

func (e *SessionInitError) Error() string { return fmt.Sprintf("agent session init: %v", e.Err) }
func (e *SessionInitError) Unwrap() error { return e.Err }

// DispatchError reports a failed exchange. It aborts only the current turn;
// the session stays valid for the next attempt.
type DispatchError struct {
	Reason string
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("dispatch failed (%s)", e.Reason)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// RunOptions configure how the opencode CLI is invoked for every turn.
type RunOptions struct {
	Binary  string // opencode executable, default "opencode"
	Model   string // optional provider/model
	Agent   string // optional opencode agent
	Attach  string // optional opencode server URL
	Dir     string // optional working directory for opencode run
	Timeout time.Duration
}

// Client holds one immutable session id and dispatches turns against it.
type Client struct {
	opts      RunOptions
	sessionID string

	// runCommand is swapped in tests; production uses exec.CommandContext.
	runCommand func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// Open establishes the session. When fresh is set or no id is supplied, a new
// opaque identifier is minted; otherwise the given id is adopted verbatim,
// trusting the agent to recognize it. The opencode binary is resolved here so
// an unreachable agent fails before the first turn.
func Open(existingID string, fresh bool, opts RunOptions) (*Client, error) {
	if opts.Binary == "" {
		opts.Binary = "opencode"
	}
	if _, err := exec.LookPath(opts.Binary); err != nil {
		return nil, &SessionInitError{Err: fmt.Errorf("%q not found in PATH: %w", opts.Binary, err)}
	}

	id := strings.TrimSpace(existingID)
	if fresh || id == "" {
		id = mintSessionID()
	}
	return &Client{opts: opts, sessionID: id, runCommand: runProcess}, nil
}

// mintSessionID produces an opaque ses_-prefixed random token.
func mintSessionID() string {
	u := uuid.New()
	return "ses_" + hex.EncodeToString(u[:])
}

// SessionID returns the immutable session identifier for this run.
func (c *Client) SessionID() string { return c.sessionID }

// Send dispatches one transcript and returns the agent's full reply text.
// The session identifier passed must match the one established at Open; the
// orchestrator threads it through every turn.
func (c *Client) Send(ctx context.Context, sessionID, transcript string) (string, error) {
	args := buildArgs(transcript, sessionID, c.opts)

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	stdout, stderr, err := c.runCommand(ctx, c.opts.Binary, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &DispatchError{Reason: "timeout", Err: fmt.Errorf("opencode run exceeded %s", c.opts.Timeout)}
		}
		details := strings.TrimSpace(stderr)
		if details == "" {
			details = strings.TrimSpace(stdout)
		}
		if details != "" {
			return "", &DispatchError{Reason: "process", Err: fmt.Errorf("%w: %s", err, details)}
		}
		return "", &DispatchError{Reason: "process", Err: err}
	}

	reply, _ := ParseEvents(stdout)
	if reply == "" {
		return "", &DispatchError{Reason: "empty reply", Err: fmt.Errorf("opencode returned no text response")}
	}
	return reply, nil
}

// buildArgs assembles the opencode argv for one turn. The transcript is the
// final positional argument; shell interpretation never happens.
func buildArgs(transcript, sessionID string, opts RunOptions) []string {
	args := []string{"run", "--format", "json"}
	if sessionID != "" {
		args = append(args, "--session", sessionID)
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.Agent != "" {
		args = append(args, "--agent", opts.Agent)
	}
	if opts.Attach != "" {
		args = append(args, "--attach", opts.Attach)
	}
	if opts.Dir != "" {
		args = append(args, "--dir", opts.Dir)
	}
	return append(args, transcript)
}

type runEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionID"`
	Part      *struct {
		Text string `json:"text"`
	} `json:"part"`
}

// ParseEvents scans opencode's JSON event lines and concatenates the text
// parts into the reply. The session id reported by the agent is returned for
// logging; it never replaces an established identifier.
func ParseEvents(output string) (reply, reportedSession string) {
	var b strings.Builder
	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		var ev runEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.SessionID != "" {
			reportedSession = ev.SessionID
		}
		if ev.Type != "text" || ev.Part == nil {
			continue
		}
		b.WriteString(ev.Part.Text)
	}
	return strings.TrimSpace(b.String()), reportedSession
}

func runProcess(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
