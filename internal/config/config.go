package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all interview-practice environment variables.
const EnvPrefix = "INTERVIEW_PRACTICE_"

// Transcription configures the hosted speech-recognition backend.
type Transcription struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	// Temperature 0 keeps Whisper on a single greedy decoding pass.
	Temperature float32 `yaml:"temperature"`
	BaseURL     string  `yaml:"base_url"`
}

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr            string        `yaml:"listen_addr"`
	RecordingsDir         string        `yaml:"recordings_dir"`
	DBPath                string        `yaml:"db_path"`
	LogLevel              string        `yaml:"log_level"`
	QuestionModel         string        `yaml:"question_model"`
	RatingModel           string        `yaml:"rating_model"`
	RatingTemperature     *float64      `yaml:"rating_temperature"`
	LLMBaseURL            string        `yaml:"llm_base_url"`
	Transcription         Transcription `yaml:"transcription"`
	GDriveFolderID        string        `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string        `yaml:"google_credentials_file"`

	// Secrets come from env vars only and are never serialized to YAML.
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
	DeepgramAPIKey  string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            "127.0.0.1:8080",
		RecordingsDir:         "recordings",
		DBPath:                "data/interview-practice.db",
		LogLevel:              "info",
		QuestionModel:         "openai/gpt-4o-mini",
		RatingModel:           "openai/gpt-4o-mini",
		// An empty model lets each recognizer pick its own default.
		Transcription:         Transcription{Provider: "openai"},
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// APIKey returns the secret for an LLM or speech provider name.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	case "deepgram":
		return c.DeepgramAPIKey
	default:
		return ""
	}
}

// SlogLevel maps LogLevel onto slog levels, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "RECORDINGS_DIR"); v != "" {
		cfg.RecordingsDir = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "QUESTION_MODEL"); v != "" {
		cfg.QuestionModel = v
	}
	if v := os.Getenv(EnvPrefix + "RATING_MODEL"); v != "" {
		cfg.RatingModel = v
	}
	if v := os.Getenv(EnvPrefix + "RATING_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && t >= 0 {
			cfg.RatingTemperature = &t
		}
	}
	if v := os.Getenv(EnvPrefix + "LLM_BASE_URL"); v != "" {
		cfg.LLMBaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIPTION_PROVIDER"); v != "" {
		cfg.Transcription.Provider = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIPTION_MODEL"); v != "" {
		cfg.Transcription.Model = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIPTION_LANGUAGE"); v != "" {
		cfg.Transcription.Language = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIPTION_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(strings.TrimSpace(v), 32); err == nil && t >= 0 {
			cfg.Transcription.Temperature = float32(t)
		}
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIPTION_BASE_URL"); v != "" {
		cfg.Transcription.BaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	for _, field := range []struct {
		name  string
		model string
	}{
		{name: "question_model", model: cfg.QuestionModel},
		{name: "rating_model", model: cfg.RatingModel},
	} {
		provider, _, ok := strings.Cut(field.model, "/")
		if !ok || provider == "" {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q, expected provider/model_name.", field.name, field.model))
			continue
		}
		if cfg.APIKey(provider) == "" {
			warnings = append(warnings, fmt.Sprintf("%s API key not configured, %s calls will fail. Set %s%s_API_KEY.",
				provider, field.name, EnvPrefix, strings.ToUpper(provider)))
		}
	}

	switch cfg.Transcription.Provider {
	case "openai", "deepgram":
		if cfg.APIKey(cfg.Transcription.Provider) == "" {
			warnings = append(warnings, fmt.Sprintf("%s API key not configured, transcription is disabled. Set %s%s_API_KEY.",
				cfg.Transcription.Provider, EnvPrefix, strings.ToUpper(cfg.Transcription.Provider)))
		}
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown transcription provider %q, transcription is disabled.", cfg.Transcription.Provider))
	}

	return warnings
}
