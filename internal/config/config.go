// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SPRINTSWARM_LLM_API_KEY.
const EnvPrefix = "SPRINTSWARM"

// Config holds the application configuration.
type Config struct {
	LLM               LLMConfig               `mapstructure:"llm"`
	Index             IndexConfig             `mapstructure:"index"`
	Git               GitConfig               `mapstructure:"git"`
	Developer         DeveloperConfig         `mapstructure:"developer"`
	ProgramManagement ProgramManagementConfig `mapstructure:"program_management"`
	Standup           StandupConfig           `mapstructure:"standup"`
	Timeouts          TimeoutConfig           `mapstructure:"timeouts"`
	Logging           LoggingConfig           `mapstructure:"logging"`
	Metrics           MetricsConfig           `mapstructure:"metrics"`
	StateDir          string                  `mapstructure:"state_dir" validate:"required"`
}

// LLMConfig selects the completion and embedding oracle.
type LLMConfig struct {
	Provider          string  `mapstructure:"provider" validate:"oneof=gemini openai"`
	APIKey            string  `mapstructure:"api_key"`
	CompletionModel   string  `mapstructure:"completion_model" validate:"required"`
	EmbeddingModel    string  `mapstructure:"embedding_model" validate:"required"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Temperature       float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// IndexConfig selects the similarity index backend.
type IndexConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=sqlite postgres weaviate memory"`
	// URL is a file path for sqlite, a connection string for postgres and an
	// http(s) endpoint for weaviate.
	URL        string          `mapstructure:"url"`
	Namespaces NamespaceConfig `mapstructure:"namespaces"`
}

// NamespaceConfig names the index namespace of each corpus.
type NamespaceConfig struct {
	Backlog       string `mapstructure:"backlog" validate:"required"`
	SprintBacklog string `mapstructure:"sprint_backlog" validate:"required"`
	Codebase      string `mapstructure:"codebase" validate:"required"`
	Context       string `mapstructure:"context" validate:"required"`
	Notes         string `mapstructure:"notes" validate:"required"`
}

// GitConfig locates the code store repository.
type GitConfig struct {
	RepoPath string `mapstructure:"repo_path" validate:"required"`
}

// DeveloperConfig tunes task decomposition and routing.
type DeveloperConfig struct {
	Name     string `mapstructure:"name" validate:"required"`
	MaxTasks int    `mapstructure:"max_tasks" validate:"gte=1"`
	TopK     int    `mapstructure:"top_k" validate:"gte=1"`
}

// ProgramManagementConfig tunes sprint planning.
type ProgramManagementConfig struct {
	ItemsPerSprint int `mapstructure:"items_per_sprint" validate:"gte=1"`
}

// StandupConfig tunes the standup driver.
type StandupConfig struct {
	Workers          int           `mapstructure:"workers" validate:"gte=1"`
	TaskRetries      int           `mapstructure:"task_retries" validate:"gte=0"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff" validate:"gte=0"`
	ReindexAfterItem bool          `mapstructure:"reindex_after_item"`
}

// TimeoutConfig bounds each collaborator call. Zero disables the bound.
type TimeoutConfig struct {
	Oracle time.Duration `mapstructure:"oracle" validate:"gte=0"`
	Index  time.Duration `mapstructure:"index" validate:"gte=0"`
	Store  time.Duration `mapstructure:"store" validate:"gte=0"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level    string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format   string `mapstructure:"format" validate:"oneof=json console"`
	FilePath string `mapstructure:"file_path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

var validate = validator.New()

// setDefaults registers the default of every key so that environment
// overrides apply even when the key is absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.completion_model", "gemini-2.0-flash")
	v.SetDefault("llm.embedding_model", "text-embedding-004")
	v.SetDefault("llm.requests_per_second", 2.0)
	v.SetDefault("llm.temperature", 0.8)

	v.SetDefault("index.backend", "sqlite")
	v.SetDefault("index.url", "")
	v.SetDefault("index.namespaces.backlog", "backlog")
	v.SetDefault("index.namespaces.sprint_backlog", "sprint_backlog")
	v.SetDefault("index.namespaces.codebase", "codebase")
	v.SetDefault("index.namespaces.context", "context")
	v.SetDefault("index.namespaces.notes", "notes")

	v.SetDefault("git.repo_path", "")

	v.SetDefault("developer.name", "ai_developer")
	v.SetDefault("developer.max_tasks", 5)
	v.SetDefault("developer.top_k", 5)

	v.SetDefault("program_management.items_per_sprint", 3)

	v.SetDefault("standup.workers", 1)
	v.SetDefault("standup.task_retries", 0)
	v.SetDefault("standup.retry_backoff", "2s")
	v.SetDefault("standup.reindex_after_item", false)

	v.SetDefault("timeouts.oracle", "60s")
	v.SetDefault("timeouts.index", "10s")
	v.SetDefault("timeouts.store", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file_path", "logs/sprintswarm.log")

	v.SetDefault("metrics.listen", ":9464")

	v.SetDefault("state_dir", ".sprintswarm")
}

// Load reads configuration from the given file, or from config.yml in the
// current directory or $HOME/.sprintswarm when path is empty. A missing file
// is not an error; defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sprintswarm"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyEnvFallbacks(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvFallbacks honours the plain variables used by earlier deployments
// when the namespaced ones are not set.
func applyEnvFallbacks(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.LLM.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
	}
	if cfg.Index.URL == "" {
		cfg.Index.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Index.URL == "" && cfg.Index.Backend == "sqlite" {
		cfg.Index.URL = filepath.Join(cfg.StateDir, "index.db")
	}
	if cfg.Git.RepoPath == "" {
		cfg.Git.RepoPath = os.Getenv("WORK_DIR")
	}
	if cfg.Git.RepoPath == "" {
		cfg.Git.RepoPath, _ = os.Getwd()
	}
}

// Validate checks struct constraints and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Index.Backend != "memory" && c.Index.URL == "" {
		return fmt.Errorf("invalid config: index.url is required for the %s backend (DATABASE_URL is also accepted)", c.Index.Backend)
	}
	return nil
}

// RequireAPIKey reports a configuration error when no oracle key is present.
// Commands that never reach the oracle skip this check.
func (c *Config) RequireAPIKey() error {
	if c.LLM.APIKey != "" {
		return nil
	}
	if c.LLM.Provider == "openai" {
		return errors.New("llm.api_key is required (or set OPENAI_API_KEY)")
	}
	return errors.New("llm.api_key is required (or set GOOGLE_API_KEY)")
}
