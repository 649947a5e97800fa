package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the emotion engine.
// It is loaded from ~/.cortex/emotion.yaml and can be overridden by environment variables.
type Config struct {
	LLM          LLMConfig          `mapstructure:"llm" yaml:"llm"`
	Classifier   ClassifierConfig   `mapstructure:"classifier" yaml:"classifier"`
	SSML         SSMLConfig         `mapstructure:"ssml" yaml:"ssml"`
	Conversation ConversationConfig `mapstructure:"conversation" yaml:"conversation"`
	Snapshot     SnapshotConfig     `mapstructure:"snapshot" yaml:"snapshot"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// LLMConfig contains configuration for completion providers.
type LLMConfig struct {
	// DefaultProvider specifies which provider the AI-assisted path uses
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	// Providers maps provider names to their specific configuration
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ProviderConfig contains configuration for a specific provider.
type ProviderConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model    string        `mapstructure:"model" yaml:"model,omitempty"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// ClassifierConfig controls emotion classification.
type ClassifierConfig struct {
	// UseAI routes user-input classification through the default provider
	UseAI bool `mapstructure:"use_ai" yaml:"use_ai"`
	// CacheTTL is how long a classification stays fresh
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	// CacheMaxEntries caps the cache size
	CacheMaxEntries int `mapstructure:"cache_max_entries" yaml:"cache_max_entries"`
	// AITimeout bounds a single provider call
	AITimeout time.Duration `mapstructure:"ai_timeout" yaml:"ai_timeout"`
}

// SSMLConfig holds the default markup options.
type SSMLConfig struct {
	IncludeProsody     bool   `mapstructure:"include_prosody" yaml:"include_prosody"`
	IncludeBreaks      bool   `mapstructure:"include_breaks" yaml:"include_breaks"`
	IncludeEmphasis    bool   `mapstructure:"include_emphasis" yaml:"include_emphasis"`
	IncludeEmotionTags bool   `mapstructure:"include_emotion_tags" yaml:"include_emotion_tags"`
	TargetVoice        string `mapstructure:"target_voice" yaml:"target_voice,omitempty"`
	// PerformanceMode is "speed" or "quality"
	PerformanceMode string `mapstructure:"performance_mode" yaml:"performance_mode"`
}

// ConversationConfig controls session bookkeeping.
type ConversationConfig struct {
	// IdleTimeout removes sessions with no turn for this long (0 disables pruning)
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	// QueueSize is the per-session queue depth of the serve command
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
	// PruneSchedule is a cron expression for idle-session pruning
	PruneSchedule string `mapstructure:"prune_schedule" yaml:"prune_schedule"`
}

// SnapshotConfig selects where conversation state is persisted.
type SnapshotConfig struct {
	// Backend is "none", "sqlite" or "redis"
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Schedule is a cron expression for periodic snapshots (e.g. "@every 1m")
	Schedule string       `mapstructure:"schedule" yaml:"schedule"`
	SQLite   SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
	Redis    RedisConfig  `mapstructure:"redis" yaml:"redis"`
}

// SQLiteConfig locates the snapshot database.
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// RedisConfig holds the connection settings of the Redis snapshot store.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr" yaml:"addr"`
	Password  string        `mapstructure:"password" yaml:"password,omitempty"`
	DB        int           `mapstructure:"db" yaml:"db"`
	KeyPrefix string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Format is "console" or "json"
	Format string `mapstructure:"format" yaml:"format"`
	// File additionally receives log output when set
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			DefaultProvider: "ollama",
			Providers: map[string]ProviderConfig{
				"ollama": {
					Endpoint: "http://127.0.0.1:11434",
					Model:    "llama3.2",
				},
				"openai": {
					Model: "gpt-4o-mini",
				},
				"openai-responses": {
					Model: "gpt-4o-mini",
				},
				"groq": {
					Endpoint: "https://api.groq.com/openai/v1",
					Model:    "llama-3.3-70b-versatile",
				},
			},
		},
		Classifier: ClassifierConfig{
			UseAI:           false,
			CacheTTL:        5 * time.Minute,
			CacheMaxEntries: 1024,
			AITimeout:       10 * time.Second,
		},
		SSML: SSMLConfig{
			IncludeProsody:     true,
			IncludeBreaks:      true,
			IncludeEmphasis:    true,
			IncludeEmotionTags: true,
			PerformanceMode:    "quality",
		},
		Conversation: ConversationConfig{
			IdleTimeout:   30 * time.Minute,
			QueueSize:     16,
			PruneSchedule: "@every 5m",
		},
		Snapshot: SnapshotConfig{
			Backend:  "none",
			Schedule: "@every 1m",
			SQLite: SQLiteConfig{
				Path: "~/.cortex/emotion.db",
			},
			Redis: RedisConfig{
				Addr:      "127.0.0.1:6379",
				KeyPrefix: "cortex:emotion:session:",
				TTL:       24 * time.Hour,
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9464",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns ~/.cortex/emotion.yaml.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".cortex", "emotion.yaml")
}

// Load reads configuration from the default location.
func Load() (*Config, error) {
	return LoadFromPath(DefaultPath())
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: CORTEX_EMOTION_CLASSIFIER_USE_AI=true
	v.SetEnvPrefix("CORTEX_EMOTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so keys missing in older files keep sane values.
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Snapshot.SQLite.Path = expandPath(cfg.Snapshot.SQLite.Path)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	return cfg, nil
}

// SaveToPath writes the configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// Validate checks the configuration for common errors and inconsistencies.
func (c *Config) Validate() error {
	if c.LLM.DefaultProvider == "" {
		return fmt.Errorf("llm.default_provider cannot be empty")
	}
	if _, exists := c.LLM.Providers[c.LLM.DefaultProvider]; !exists {
		return fmt.Errorf("default provider '%s' not found in providers map", c.LLM.DefaultProvider)
	}

	if c.Classifier.CacheTTL < 0 {
		return fmt.Errorf("classifier.cache_ttl cannot be negative")
	}
	if c.Classifier.CacheMaxEntries < 0 {
		return fmt.Errorf("classifier.cache_max_entries cannot be negative")
	}

	switch c.SSML.PerformanceMode {
	case "speed", "quality":
	default:
		return fmt.Errorf("invalid ssml.performance_mode '%s', must be 'speed' or 'quality'", c.SSML.PerformanceMode)
	}

	if c.Conversation.IdleTimeout < 0 {
		return fmt.Errorf("conversation.idle_timeout cannot be negative")
	}

	switch c.Snapshot.Backend {
	case "none", "":
	case "sqlite":
		if c.Snapshot.SQLite.Path == "" {
			return fmt.Errorf("snapshot.sqlite.path is required for the sqlite backend")
		}
	case "redis":
		if c.Snapshot.Redis.Addr == "" {
			return fmt.Errorf("snapshot.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid snapshot.backend '%s', must be one of: none, sqlite, redis", c.Snapshot.Backend)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format '%s', must be 'console' or 'json'", c.Logging.Format)
	}

	return nil
}

// writeConfigFile writes a Config struct to a YAML file.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
