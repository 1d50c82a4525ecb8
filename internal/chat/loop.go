// Package chat drives the turn-taking conversation loop: capture a
// microphone turn, transcribe it, dispatch the transcript to the agent
// session, surface the reply, and optionally speak it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/langenhagen/vincent/internal/audio"
)

// exitPhrases end the loop when a normalized transcript matches exactly.
var exitPhrases = map[string]struct{}{
	"exit":    {},
	"quit":    {},
	"goodbye": {},
}

// IsExitPhrase reports whether a transcript, trimmed and case-folded, is a
// control command that ends the conversation.
func IsExitPhrase(transcript string) bool {
	_, ok := exitPhrases[strings.ToLower(strings.TrimSpace(transcript))]
	return ok
}

// Options configure a Loop beyond its collaborators.
type Options struct {
	SessionID       string        // immutable for the run
	MinTurnDuration time.Duration // captures shorter than this are no-op turns
	Out             io.Writer     // conversation text (stdout)
	Status          func(string)  // system/status lines (stderr)
	Retainer        Retainer      // nil disables audio retention
	Archiver        Archiver      // nil disables remote mirroring
}

// Loop sequences one turn at a time: Capture -> Transcribe -> CommandCheck ->
// Dispatch -> Reply -> Speak. Stages are strictly sequential; per-turn
// failures are reported and the loop re-enters listening.
type Loop struct {
	recorder    Recorder
	transcriber Transcriber
	agent       Agent
	speaker     Speaker // nil = text-only output

	opts Options
	turn int // index of the next turn, starts at 1
}

// NewLoop wires the collaborators together. speaker may be nil when voice
// output is disabled.
func NewLoop(recorder Recorder, transcriber Transcriber, agent Agent, speaker Speaker, opts Options) *Loop {
	if opts.Status == nil {
		opts.Status = func(string) {}
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Loop{
		recorder:    recorder,
		transcriber: transcriber,
		agent:       agent,
		speaker:     speaker,
		opts:        opts,
		turn:        1,
	}
}

// Run blocks until an exit phrase, input EOF, or context cancellation. All
// per-turn failures are converted into status messages; only the surrounding
// startup code can fail the process.
func (l *Loop) Run(ctx context.Context) error {
	l.opts.Status("Speak, then press Enter to finish each turn.")
	l.opts.Status("Say 'exit' or 'quit' to end the loop.")

	for {
		stop := l.runTurn(ctx)
		if stop {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.turn++
	}
}

// runTurn executes one full turn and reports whether the loop should stop.
func (l *Loop) runTurn(ctx context.Context) (stop bool) {
	rec, err := l.recorder.Record(ctx)
	if err != nil {
		switch {
		case errors.Is(err, audio.ErrInputClosed):
			l.opts.Status("Input closed. Stopping.")
			return true
		case errors.Is(err, context.Canceled) || ctx.Err() != nil:
			l.opts.Status("Stopped.")
			return true
		default:
			l.opts.Status(err.Error())
			l.opts.Status("Please try again.")
			return false
		}
	}

	// Empty or sub-threshold captures are no-op turns; nothing reaches the
	// transcriber or the agent.
	if len(rec.Samples) == 0 || rec.Duration() < l.opts.MinTurnDuration {
		l.opts.Status("No speech detected.")
		return false
	}

	wav, err := audio.EncodeWAV(rec.Samples, rec.SampleRate, rec.Channels)
	if err != nil {
		l.opts.Status(fmt.Sprintf("Could not encode recording: %v", err))
		return false
	}

	l.opts.Status("Transcribing...")
	result, err := l.transcriber.Transcribe(ctx, wav)
	if err != nil {
		l.opts.Status(err.Error())
		l.opts.Status("Please try again.")
		return false
	}

	l.retain(wav)

	if result.Text == "" {
		l.opts.Status("No speech detected.")
		return false
	}

	fmt.Fprintf(l.opts.Out, "%s\n%s\n\n", UserLabel(), result.Text)
	if result.Language != "" {
		l.opts.Status(fmt.Sprintf("Detected language: %s", result.Language))
	}

	if IsExitPhrase(result.Text) {
		l.opts.Status("Exit phrase detected. Goodbye!")
		return true
	}

	l.opts.Status("Asking opencode...")
	reply, err := l.agent.Send(ctx, l.opts.SessionID, result.Text)
	if err != nil {
		l.opts.Status(err.Error())
		return false
	}

	fmt.Fprintf(l.opts.Out, "%s\n%s\n\n", AssistantLabel(), AssistantText(reply))

	if l.speaker != nil {
		if err := l.speaker.SynthesizeAndPlay(ctx, reply); err != nil {
			l.opts.Status(fmt.Sprintf("Speech playback failed: %v", err))
		}
	}
	return false
}

// retain persists the turn's WAV locally and mirrors it remotely when
// configured. Failures degrade to warnings.
func (l *Loop) retain(wav []byte) {
	if l.opts.Retainer == nil {
		return
	}
	path, err := l.opts.Retainer.Save(l.opts.SessionID, l.turn, wav)
	if err != nil {
		l.opts.Status(fmt.Sprintf("Could not keep input audio: %v", err))
		return
	}
	l.opts.Status(fmt.Sprintf("Saved recording: %s", path))

	if l.opts.Archiver == nil {
		return
	}
	key := audio.SafeSessionDirName(l.opts.SessionID) + "/" + filepath.Base(path)
	if err := l.opts.Archiver.Upload(key, wav); err != nil {
		l.opts.Status(fmt.Sprintf("Could not upload input audio: %v", err))
	}
}
