package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderBackend  = "backend"
	ProviderDeepgram = "deepgram"

	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config stores runtime configuration for the intake app.
type Config struct {
	API           APIConfig           `yaml:"api"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Audio         AudioConfig         `yaml:"audio"`
	Intake        IntakeConfig        `yaml:"intake"`
	Review        ReviewConfig        `yaml:"review"`
	Store         StoreConfig         `yaml:"store"`
	Log           LogConfig           `yaml:"log"`

	// File is the config file that was read, empty when none was found.
	File string `yaml:"-"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type TranscriptionConfig struct {
	Provider string         `yaml:"provider"`
	Deepgram DeepgramConfig `yaml:"deepgram"`
}

type DeepgramConfig struct {
	APIKey      string `yaml:"api_key"`
	APIBaseURL  string `yaml:"api_base"`
	Model       string `yaml:"model"`
	Language    string `yaml:"language"`
	SmartFormat bool   `yaml:"smart_format"`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"ffmpeg_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
}

type IntakeConfig struct {
	NameClip      time.Duration `yaml:"name_clip"`
	NameSettle    time.Duration `yaml:"name_settle"`
	DictationClip time.Duration `yaml:"dictation_clip"`
}

type ReviewConfig struct {
	GuardianID      string `yaml:"guardian_id"`
	CorrectionsPath string `yaml:"corrections_file"`
	IterationLimit  int    `yaml:"iteration_limit"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load resolves configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence from lowest to highest.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir := filepath.Join(home, ".config", "kidintake")

	cfg := defaults(configDir)

	path := strings.TrimSpace(os.Getenv("KIDINTAKE_CONFIG_FILE"))
	explicit := path != ""
	if !explicit {
		path = filepath.Join(configDir, "config.yaml")
	}
	if err := overlayFile(&cfg, path, explicit); err != nil {
		return Config{}, err
	}

	overlayEnv(&cfg)

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults(configDir string) Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 60 * time.Second,
		},
		Transcription: TranscriptionConfig{
			Provider: ProviderBackend,
			Deepgram: DeepgramConfig{
				APIBaseURL:  "https://api.deepgram.com/v1",
				Model:       "nova-2",
				Language:    "ko",
				SmartFormat: true,
			},
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
		},
		Intake: IntakeConfig{
			NameClip:      3 * time.Second,
			NameSettle:    2 * time.Second,
			DictationClip: 3 * time.Second,
		},
		Review: ReviewConfig{
			CorrectionsPath: filepath.Join(configDir, "corrections.yaml"),
			IterationLimit:  30,
		},
		Store: StoreConfig{
			Driver: StoreMemory,
			Path:   filepath.Join(configDir, "records.sqlite"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// overlayFile merges the YAML file into cfg. A missing file is only an error
// when it was named explicitly.
func overlayFile(cfg *Config, path string, explicit bool) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	cfg.File = path
	return nil
}

func overlayEnv(cfg *Config) {
	cfg.API.BaseURL = envOrDefault("KIDINTAKE_API_BASE_URL", cfg.API.BaseURL)
	cfg.API.Token = envOrDefault("KIDINTAKE_API_TOKEN", cfg.API.Token)
	cfg.API.Timeout = envOrDefaultMillis("KIDINTAKE_API_TIMEOUT_MS", cfg.API.Timeout)

	cfg.Transcription.Provider = envOrDefault("KIDINTAKE_TRANSCRIPTION_PROVIDER", cfg.Transcription.Provider)
	dg := &cfg.Transcription.Deepgram
	dg.APIKey = envOrDefault("DEEPGRAM_API_KEY", dg.APIKey)
	dg.APIBaseURL = envOrDefault("DEEPGRAM_API_BASE", dg.APIBaseURL)
	dg.Model = envOrDefault("DEEPGRAM_MODEL", dg.Model)
	dg.Language = envOrDefault("DEEPGRAM_LANGUAGE", dg.Language)
	dg.SmartFormat = envOrDefaultBool("DEEPGRAM_SMART_FORMAT", dg.SmartFormat)

	cfg.Audio.RecorderCommand = envOrDefault("KIDINTAKE_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("KIDINTAKE_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = envOrDefault("KIDINTAKE_AUDIO_INPUT_DEVICE", cfg.Audio.InputDevice)
	cfg.Audio.SampleRate = envOrDefaultInt("KIDINTAKE_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("KIDINTAKE_CHANNELS", cfg.Audio.Channels)

	cfg.Intake.NameClip = envOrDefaultMillis("KIDINTAKE_NAME_CLIP_MS", cfg.Intake.NameClip)
	cfg.Intake.NameSettle = envOrDefaultMillis("KIDINTAKE_NAME_SETTLE_MS", cfg.Intake.NameSettle)
	cfg.Intake.DictationClip = envOrDefaultMillis("KIDINTAKE_DICTATION_CLIP_MS", cfg.Intake.DictationClip)

	cfg.Review.GuardianID = envOrDefault("KIDINTAKE_GUARDIAN_ID", cfg.Review.GuardianID)
	cfg.Review.CorrectionsPath = envOrDefault("KIDINTAKE_CORRECTIONS_FILE", cfg.Review.CorrectionsPath)
	cfg.Review.IterationLimit = envOrDefaultInt("KIDINTAKE_CORRECTION_ITERATION_LIMIT", cfg.Review.IterationLimit)

	cfg.Store.Driver = envOrDefault("KIDINTAKE_STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.Path = envOrDefault("KIDINTAKE_STORE_PATH", cfg.Store.Path)

	cfg.Log.Level = envOrDefault("KIDINTAKE_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOrDefault("KIDINTAKE_LOG_FORMAT", cfg.Log.Format)
}

func normalize(cfg *Config) error {
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8000"
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 60 * time.Second
	}

	cfg.Transcription.Provider = strings.ToLower(strings.TrimSpace(cfg.Transcription.Provider))
	switch cfg.Transcription.Provider {
	case "":
		cfg.Transcription.Provider = ProviderBackend
	case ProviderBackend, ProviderDeepgram:
	default:
		return fmt.Errorf("unsupported transcription provider %q", cfg.Transcription.Provider)
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}

	if cfg.Intake.NameClip <= 0 {
		cfg.Intake.NameClip = 3 * time.Second
	}
	if cfg.Intake.NameSettle < 0 {
		cfg.Intake.NameSettle = 0
	}
	if cfg.Intake.DictationClip <= 0 {
		cfg.Intake.DictationClip = 3 * time.Second
	}

	if cfg.Review.IterationLimit <= 0 {
		cfg.Review.IterationLimit = 30
	}
	cfg.Review.GuardianID = strings.TrimSpace(cfg.Review.GuardianID)

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	switch cfg.Store.Driver {
	case "":
		cfg.Store.Driver = StoreMemory
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	return nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}
