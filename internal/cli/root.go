// Package cli defines the vincent command: flag parsing, configuration
// overlay, startup wiring of the audio/transcription/agent/speech
// components, and the conversation loop itself.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/langenhagen/vincent/internal/agent"
	"github.com/langenhagen/vincent/internal/archive"
	"github.com/langenhagen/vincent/internal/audio"
	"github.com/langenhagen/vincent/internal/chat"
	"github.com/langenhagen/vincent/internal/config"
	"github.com/langenhagen/vincent/internal/transcribe"
	"github.com/langenhagen/vincent/internal/tts"
)

// flagValues collects every CLI flag; only flags the user actually set are
// overlaid onto the resolved configuration.
type flagValues struct {
	configFile string

	whisperEndpoint string
	whisperModel    string
	whisperTask     string
	inputLanguage   string

	inputSampleRate int
	inputChannels   int
	maxTurnSeconds  float64
	minTurnSeconds  float64
	keepInputAudio  bool

	sessionID   string
	newSession  bool
	sessionFile string

	opencodeModel   string
	opencodeAgent   string
	opencodeAttach  string
	opencodeDir     string
	dispatchSeconds int

	voice       bool
	noVoice     bool
	ttsEndpoint string
	ttsVoice    string
	ttsLangCode string
	ttsSpeed    float64
}

// NewRootCmd builds the vincent command.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *flagValues) {
	fv := &flagValues{}

	cmd := &cobra.Command{
		Use:   "vincent",
		Short: "Turn-based voice conversation with an opencode agent",
		Long: `vincent runs a turn-based voice loop: it records a microphone turn
until Enter is pressed, transcribes it with a Whisper server, sends the
transcript to an opencode agent session, prints the reply, and optionally
speaks it through a Kokoro TTS server. Say "exit" or "quit" to stop.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, fv)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&fv.configFile, "config", "c", "", "YAML config file")

	f.StringVar(&fv.whisperEndpoint, "whisper-endpoint", "", "whisper server inference URL")
	f.StringVar(&fv.whisperModel, "whisper-model", "", "whisper model name")
	f.StringVar(&fv.whisperTask, "whisper-task", "", "transcribe or translate")
	f.StringVar(&fv.inputLanguage, "input-language", "", "spoken language hint, e.g. en (default: auto-detect)")

	f.IntVar(&fv.inputSampleRate, "input-sample-rate", 0, "capture sample rate in Hz")
	f.IntVar(&fv.inputChannels, "input-channels", 0, "capture channel count (1 or 2)")
	f.Float64Var(&fv.maxTurnSeconds, "max-turn-duration", 0, "hard cap on a single capture, seconds")
	f.Float64Var(&fv.minTurnSeconds, "min-turn-duration", 0, "captures below this are discarded, seconds")
	f.BoolVar(&fv.keepInputAudio, "keep-input-audio", false, "keep each turn's WAV on disk")

	f.StringVar(&fv.sessionID, "session-id", "", "resume this opencode session id")
	f.BoolVar(&fv.newSession, "new-session", false, "start a fresh session, ignoring saved state")
	f.StringVar(&fv.sessionFile, "session-file", "", "path of the session state file")
	cmd.MarkFlagsMutuallyExclusive("session-id", "new-session")

	f.StringVar(&fv.opencodeModel, "opencode-model", "", "opencode provider/model")
	f.StringVar(&fv.opencodeAgent, "opencode-agent", "", "opencode agent name")
	f.StringVar(&fv.opencodeAttach, "opencode-attach", "", "attach to a running opencode server URL")
	f.StringVar(&fv.opencodeDir, "opencode-dir", "", "working directory for opencode run")
	f.IntVar(&fv.dispatchSeconds, "dispatch-timeout", 0, "per-dispatch timeout, seconds")

	f.BoolVar(&fv.voice, "voice", false, "enable spoken replies")
	f.BoolVar(&fv.noVoice, "no-voice", false, "disable spoken replies")
	f.StringVar(&fv.ttsEndpoint, "tts-endpoint", "", "Kokoro server base URL")
	f.StringVar(&fv.ttsVoice, "tts-voice", "", "Kokoro voice name")
	f.StringVar(&fv.ttsLangCode, "tts-lang-code", "", "Kokoro language code")
	f.Float64Var(&fv.ttsSpeed, "tts-speed", 0, "speech speed multiplier")
	cmd.MarkFlagsMutuallyExclusive("voice", "no-voice")

	return cmd, fv
}

// overlay applies the flags the user set on top of the resolved config.
func overlay(cmd *cobra.Command, fv *flagValues, cfg *config.Config) {
	set := cmd.Flags().Changed

	if set("whisper-endpoint") {
		cfg.Whisper.Endpoint = fv.whisperEndpoint
	}
	if set("whisper-model") {
		cfg.Whisper.Model = fv.whisperModel
	}
	if set("whisper-task") {
		cfg.Whisper.Task = fv.whisperTask
	}
	if set("input-language") {
		cfg.Whisper.Language = fv.inputLanguage
	}
	if set("input-sample-rate") {
		cfg.Audio.SampleRate = fv.inputSampleRate
	}
	if set("input-channels") {
		cfg.Audio.Channels = fv.inputChannels
	}
	if set("max-turn-duration") {
		cfg.Audio.MaxTurnSeconds = fv.maxTurnSeconds
	}
	if set("min-turn-duration") {
		cfg.Audio.MinTurnSeconds = fv.minTurnSeconds
	}
	if set("keep-input-audio") {
		cfg.Audio.KeepInputAudio = fv.keepInputAudio
	}
	if set("session-id") {
		cfg.Session.ID = fv.sessionID
	}
	if set("new-session") {
		cfg.Session.New = fv.newSession
	}
	if set("session-file") {
		cfg.Session.File = fv.sessionFile
	}
	if set("opencode-model") {
		cfg.OpenCode.Model = fv.opencodeModel
	}
	if set("opencode-agent") {
		cfg.OpenCode.Agent = fv.opencodeAgent
	}
	if set("opencode-attach") {
		cfg.OpenCode.Attach = fv.opencodeAttach
	}
	if set("opencode-dir") {
		cfg.OpenCode.Dir = fv.opencodeDir
	}
	if set("dispatch-timeout") {
		cfg.OpenCode.DispatchTimeoutSeconds = fv.dispatchSeconds
	}
	if set("voice") {
		cfg.TTS.Enabled = true
	}
	if set("no-voice") {
		cfg.TTS.Enabled = false
	}
	if set("tts-endpoint") {
		cfg.TTS.Endpoint = fv.ttsEndpoint
	}
	if set("tts-voice") {
		cfg.TTS.Voice = fv.ttsVoice
	}
	if set("tts-lang-code") {
		cfg.TTS.LangCode = fv.ttsLangCode
	}
	if set("tts-speed") {
		cfg.TTS.Speed = fv.ttsSpeed
	}
}

// run wires every component and enters the conversation loop. Failures here,
// before the first turn, are fatal; inside the loop they are not.
func run(cmd *cobra.Command, fv *flagValues) error {
	cfg, err := config.Load(fv.configFile)
	if err != nil {
		return err
	}
	overlay(cmd, fv, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	status := chat.NewStatusWriter(cmd.ErrOrStderr())

	sessionID, _, err := agent.ResolveSessionID(cfg.Session.File, cfg.Session.ID, cfg.Session.New)
	if err != nil {
		return err
	}
	agentClient, err := agent.Open(sessionID, cfg.Session.New, agent.RunOptions{
		Binary:  cfg.OpenCode.Binary,
		Model:   cfg.OpenCode.Model,
		Agent:   cfg.OpenCode.Agent,
		Attach:  cfg.OpenCode.Attach,
		Dir:     cfg.OpenCode.Dir,
		Timeout: cfg.OpenCode.DispatchTimeout(),
	})
	if err != nil {
		return err
	}
	if agentClient.SessionID() != sessionID {
		if err := agent.SaveSessionID(cfg.Session.File, agentClient.SessionID()); err != nil {
			return fmt.Errorf("persist session id: %w", err)
		}
	}
	status(fmt.Sprintf("Using opencode session: %s", agentClient.SessionID()))

	recorder, err := audio.NewMicRecorder(
		cfg.Audio.SampleRate,
		cfg.Audio.Channels,
		cfg.Audio.MaxTurnDuration(),
		cmd.InOrStdin(),
		status,
	)
	if err != nil {
		return err
	}
	defer recorder.Close()

	transcriber := transcribe.NewClient(
		cfg.Whisper.Endpoint,
		cfg.Whisper.Model,
		cfg.Whisper.Task,
		cfg.Whisper.Language,
		cfg.Whisper.Timeout(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := transcriber.Ping(ctx); err != nil {
		status(fmt.Sprintf("Warning: whisper server not reachable at %s: %v", cfg.Whisper.Endpoint, err))
	}

	var speaker chat.Speaker
	if cfg.TTS.Enabled {
		player, err := audio.NewPlayer()
		if err != nil {
			return err
		}
		defer player.Close()

		kokoro := tts.NewKokoroClient(
			cfg.TTS.Endpoint,
			cfg.TTS.Voice,
			cfg.TTS.LangCode,
			cfg.TTS.Speed,
			cfg.TTS.Timeout(),
			player,
		)
		if err := kokoro.Probe(ctx); err != nil {
			return fmt.Errorf("kokoro server not reachable at %s: %w", cfg.TTS.Endpoint, err)
		}
		speaker = kokoro
		status(fmt.Sprintf("Kokoro TTS enabled (voice=%s, lang=%s, speed=%.2g)",
			cfg.TTS.Voice, cfg.TTS.LangCode, cfg.TTS.Speed))
	}

	opts := chat.Options{
		SessionID:       agentClient.SessionID(),
		MinTurnDuration: cfg.Audio.MinTurnDuration(),
		Out:             cmd.OutOrStdout(),
		Status:          status,
	}
	if cfg.Audio.KeepInputAudio {
		opts.Retainer = audio.NewRetainer(cfg.Audio.KeptInputAudioDir)
		if cfg.Archive.Enabled() {
			store, err := archive.New(cfg.Archive)
			if err != nil {
				status(fmt.Sprintf("Warning: audio archive disabled: %v", err))
			} else {
				opts.Archiver = store
			}
		}
	}

	loop := chat.NewLoop(recorder, transcriber, agentClient, speaker, opts)
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
