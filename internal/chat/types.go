package chat

import (
	"context"

	"github.com/langenhagen/vincent/internal/audio"
	"github.com/langenhagen/vincent/internal/transcribe"
)

// Recorder captures one turn of microphone audio. Record blocks until the
// user signals end-of-utterance or a hard timeout elapses.
type Recorder interface {
	Record(ctx context.Context) (audio.Recording, error)
}

// Transcriber converts one captured WAV buffer into text plus detected
// language.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (transcribe.Result, error)
}

// Agent performs one synchronous exchange with the external agent process.
// The session identifier is threaded through unchanged on every turn.
type Agent interface {
	Send(ctx context.Context, sessionID, transcript string) (string, error)
}

// Speaker synthesizes one reply and plays it to completion. Failures must
// degrade to text-only output, never abort the loop.
type Speaker interface {
	SynthesizeAndPlay(ctx context.Context, text string) error
}

// Retainer persists one turn's WAV when audio retention is enabled.
type Retainer interface {
	Save(sessionID string, turn int, wav []byte) (string, error)
}

// Archiver mirrors retained audio to remote storage, best effort.
type Archiver interface {
	Upload(key string, data []byte) error
}
