// Package config resolves the immutable process configuration from defaults,
// an optional YAML file, environment variables, and CLI flags (applied by the
// cli package), in that order.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration. It is resolved once at
// startup and never mutated by the orchestrator.
type Config struct {
	Whisper  Whisper  `yaml:"whisper"`
	Audio    Audio    `yaml:"audio"`
	TTS      TTS      `yaml:"tts"`
	OpenCode OpenCode `yaml:"opencode"`
	Session  Session  `yaml:"session"`
	Archive  Archive  `yaml:"-"` // credentials come from the environment only
}

// Whisper configures the transcription backend.
type Whisper struct {
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	Task           string `yaml:"task"` // "transcribe" or "translate"
	Language       string `yaml:"language"`
	TimeoutSeconds int    `yaml:"timeout"`
}

// Audio configures microphone capture and retention.
type Audio struct {
	SampleRate        int     `yaml:"sample_rate"`
	Channels          int     `yaml:"channels"`
	MaxTurnSeconds    float64 `yaml:"max_turn_duration"` // hard capture cap, seconds
	MinTurnSeconds    float64 `yaml:"min_turn_duration"` // below this a turn is a no-op, seconds
	KeepInputAudio    bool    `yaml:"keep_input_audio"`
	KeptInputAudioDir string  `yaml:"kept_input_audio_dir"`
}

// TTS configures the optional speech output.
type TTS struct {
	Enabled        bool    `yaml:"enabled"`
	Endpoint       string  `yaml:"endpoint"`
	Voice          string  `yaml:"voice"`
	LangCode       string  `yaml:"lang_code"`
	Speed          float64 `yaml:"speed"`
	TimeoutSeconds int     `yaml:"timeout"`
}

// OpenCode configures how the agent CLI is invoked.
type OpenCode struct {
	Binary                 string `yaml:"binary"`
	Model                  string `yaml:"model"`
	Agent                  string `yaml:"agent"`
	Attach                 string `yaml:"attach"`
	Dir                    string `yaml:"dir"`
	DispatchTimeoutSeconds int    `yaml:"dispatch_timeout"`
}

// Session configures session selection and persistence.
type Session struct {
	File string `yaml:"file"`
	ID   string `yaml:"-"` // flags only
	New  bool   `yaml:"-"` // flags only
}

// Archive holds the optional Supabase upload target for retained audio.
type Archive struct {
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

// Enabled reports whether retained audio should also be uploaded.
func (a Archive) Enabled() bool {
	return a.SupabaseURL != "" && a.SupabaseKey != "" && a.Bucket != ""
}

// Default returns the built-in configuration for a fully local setup:
// whisper-server and Kokoro on localhost, opencode from PATH.
func Default() Config {
	return Config{
		Whisper: Whisper{
			Endpoint:       "http://127.0.0.1:8585/inference",
			Model:          "base",
			Task:           "transcribe",
			TimeoutSeconds: 60,
		},
		Audio: Audio{
			SampleRate:        16000,
			Channels:          1,
			MaxTurnSeconds:    120,
			MinTurnSeconds:    0.3,
			KeptInputAudioDir: ".voice_inputs",
		},
		TTS: TTS{
			Enabled:        true,
			Endpoint:       "http://127.0.0.1:8880",
			Voice:          "af_heart",
			LangCode:       "a",
			Speed:          1.0,
			TimeoutSeconds: 60,
		},
		OpenCode: OpenCode{
			Binary:                 "opencode",
			DispatchTimeoutSeconds: 120,
		},
		Session: Session{
			File: ".voice_chat_state.json",
		},
	}
}

// Load resolves configuration from defaults, the optional YAML file at path,
// and environment variables. An empty path skips the file layer.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Println("Error loading .env file")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if os.Getenv("HF_TOKEN") == "" {
		log.Println("Note: HF_TOKEN not set - the transcription/synthesis backends may be unable to download gated models")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WHISPER_ENDPOINT"); v != "" {
		c.Whisper.Endpoint = v
	}
	if v := os.Getenv("KOKORO_ENDPOINT"); v != "" {
		c.TTS.Endpoint = v
	}
	if v := os.Getenv("OPENCODE_BIN"); v != "" {
		c.OpenCode.Binary = v
	}
	c.Archive = Archive{
		SupabaseURL: os.Getenv("SUPABASE_URL"),
		SupabaseKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		Bucket:      os.Getenv("SUPABASE_BUCKET"),
	}
	if c.Archive.SupabaseURL != "" && !c.Archive.Enabled() {
		log.Println("Warning: SUPABASE_URL set but SUPABASE_SERVICE_ROLE_KEY or SUPABASE_BUCKET missing - retained audio will not be uploaded")
	}
}

// Validate checks the configuration for values the components cannot work
// with.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio: sample rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 2 {
		return fmt.Errorf("audio: channel count must be 1 or 2, got %d", c.Audio.Channels)
	}
	if c.Audio.MaxTurnSeconds <= 0 {
		return fmt.Errorf("audio: max turn duration must be positive")
	}
	if c.Audio.MinTurnSeconds < 0 {
		return fmt.Errorf("audio: min turn duration must not be negative")
	}
	if c.Audio.MinTurnSeconds >= c.Audio.MaxTurnSeconds {
		return fmt.Errorf("audio: min turn duration must be below max turn duration")
	}
	if c.Whisper.Endpoint == "" {
		return fmt.Errorf("whisper: endpoint must not be empty")
	}
	if c.Whisper.Task != "transcribe" && c.Whisper.Task != "translate" {
		return fmt.Errorf("whisper: task must be transcribe or translate, got %q", c.Whisper.Task)
	}
	if c.TTS.Enabled {
		if c.TTS.Endpoint == "" {
			return fmt.Errorf("tts: endpoint must not be empty when voice output is enabled")
		}
		if c.TTS.Speed <= 0 {
			return fmt.Errorf("tts: speed must be positive, got %v", c.TTS.Speed)
		}
	}
	if c.OpenCode.Binary == "" {
		return fmt.Errorf("opencode: binary must not be empty")
	}
	if c.OpenCode.DispatchTimeoutSeconds <= 0 {
		return fmt.Errorf("opencode: dispatch timeout must be positive")
	}
	if c.Session.File == "" {
		return fmt.Errorf("session: state file path must not be empty")
	}
	if c.Session.ID != "" && c.Session.New {
		return fmt.Errorf("session: id and new are mutually exclusive")
	}
	return nil
}

// Duration helpers keep YAML numeric and the call sites typed.

func (w Whisper) Timeout() time.Duration { return time.Duration(w.TimeoutSeconds) * time.Second }

func (t TTS) Timeout() time.Duration { return time.Duration(t.TimeoutSeconds) * time.Second }

func (a Audio) MaxTurnDuration() time.Duration {
	return time.Duration(a.MaxTurnSeconds * float64(time.Second))
}

func (a Audio) MinTurnDuration() time.Duration {
	return time.Duration(a.MinTurnSeconds * float64(time.Second))
}

func (o OpenCode) DispatchTimeout() time.Duration {
	return time.Duration(o.DispatchTimeoutSeconds) * time.Second
}
