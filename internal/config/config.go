package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"learned/internal/backend"
	"learned/internal/models"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Provider       string
	GeminiKey      string
	GeminiModel    string
	OpenAIKey      string
	OpenAIEndpoint string
	OpenAIModel    string
	Database       string
	Port           string
	LogMode        string
	MaxInputChars  int
	RequestTimeout time.Duration
	ResultStore    string
	RedisAddr      string
	ResultTTL      time.Duration
	ProfilesPath   string
	Profiles       Profiles
}

// Load reads configuration from the environment, providing sensible defaults.
func Load() (Config, error) {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()

	cfg := Config{
		Provider:       strings.ToLower(getEnv("LLM_PROVIDER", backend.ProviderGemini)),
		GeminiKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    getEnv("GEMINI_MODEL", backend.DefaultGeminiModel),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIEndpoint: getEnv("OPENAI_API_ENDPOINT", "https://api.openai.com/v1"),
		OpenAIModel:    getEnv("OPENAI_MODEL", backend.DefaultOpenAIModel),
		Database:       getEnv("DATABASE_PATH", "./data/learned.db"),
		Port:           getEnv("PORT", "8080"),
		LogMode:        getEnv("LOG_MODE", "dev"),
		ResultStore:    strings.ToLower(getEnv("RESULT_STORE", StoreMemory)),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		ProfilesPath:   os.Getenv("PROFILES_PATH"),
		Profiles:       DefaultProfiles(),
	}

	var err error
	if cfg.MaxInputChars, err = getInt("MAX_INPUT_CHARS", 60000); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 2*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ResultTTL, err = getDuration("RESULT_TTL", 2*time.Hour); err != nil {
		return Config{}, err
	}

	switch cfg.Provider {
	case backend.ProviderGemini, backend.ProviderOpenAI:
	default:
		return Config{}, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.Provider)
	}
	switch cfg.ResultStore {
	case StoreMemory, StoreRedis:
	default:
		return Config{}, fmt.Errorf("unknown RESULT_STORE %q", cfg.ResultStore)
	}

	if cfg.ProfilesPath != "" {
		data, err := os.ReadFile(cfg.ProfilesPath)
		if err != nil {
			return Config{}, fmt.Errorf("read profiles %s: %w", cfg.ProfilesPath, err)
		}
		if cfg.Profiles, err = ParseProfiles(data); err != nil {
			return Config{}, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure database dir %s: %w", cfg.Database, err)
	}

	return cfg, nil
}

// APIKey returns the credential of the selected provider.
func (c Config) APIKey() string {
	if c.Provider == backend.ProviderOpenAI {
		return c.OpenAIKey
	}
	return c.GeminiKey
}

// Profiles holds the generation options of each action.
type Profiles map[models.Action]backend.Options

// DefaultProfiles gives every action the default token limit and temperature.
func DefaultProfiles() Profiles {
	p := make(Profiles, len(models.Actions))
	for _, a := range models.Actions {
		p[a] = backend.DefaultOptions()
	}
	return p
}

// For returns the options of action, falling back to the defaults.
func (p Profiles) For(action models.Action) backend.Options {
	if opts, ok := p[action]; ok {
		return opts.Normalize()
	}
	return backend.DefaultOptions()
}

type profileFile struct {
	Profiles map[string]profileOverride `yaml:"profiles"`
}

type profileOverride struct {
	MaxOutputTokens *int     `yaml:"maxOutputTokens"`
	Temperature     *float64 `yaml:"temperature"`
}

// ParseProfiles applies a YAML document of per-action overrides to the defaults:
//
//	profiles:
//	  quiz:
//	    maxOutputTokens: 8192
//	    temperature: 0.3
func ParseProfiles(data []byte) (Profiles, error) {
	var file profileFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	profiles := DefaultProfiles()
	for name, override := range file.Profiles {
		action := models.Action(strings.ToLower(name))
		if !action.Valid() {
			return nil, fmt.Errorf("parse profiles: unknown action %q", name)
		}
		opts := profiles[action]
		if override.MaxOutputTokens != nil {
			if *override.MaxOutputTokens <= 0 {
				return nil, fmt.Errorf("parse profiles: %s maxOutputTokens must be positive", name)
			}
			opts.MaxOutputTokens = *override.MaxOutputTokens
		}
		if override.Temperature != nil {
			if t := *override.Temperature; t < 0 || t > 2 {
				return nil, fmt.Errorf("parse profiles: %s temperature %v outside [0, 2]", name, t)
			}
			opts.Temperature = *override.Temperature
		}
		profiles[action] = opts
	}
	return profiles, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, raw)
	}
	return v, nil
}
