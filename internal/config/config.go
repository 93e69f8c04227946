// Package config loads memkeep configuration and owns the on-disk storage
// layout: one global store root plus one root per project, keyed by a stable
// hash of the project's absolute path.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/memkeep/memkeep/internal/model"
)

// SemanticConfig controls semantic search and the embedding provider.
type SemanticConfig struct {
	Enabled        bool         `mapstructure:"enabled"`
	Provider       string       `mapstructure:"provider"` // "ollama", "openai", or "" (disabled)
	Threshold      float64      `mapstructure:"threshold"`
	TimeoutSeconds int          `mapstructure:"timeout_seconds"`
	Ollama         OllamaConfig `mapstructure:"ollama"`
	OpenAI         OpenAIConfig `mapstructure:"openai"`
}

// OllamaConfig configures the local Ollama embedding provider.
type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// OpenAIConfig configures an OpenAI-compatible embedding provider.
type OpenAIConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKeyEnv string `mapstructure:"api_key_env"`
	Model     string `mapstructure:"model"`
	Dims      int    `mapstructure:"dims"`
}

// StartupConfig controls startup bundle behavior.
type StartupConfig struct {
	AutoLoadPinned         bool `mapstructure:"auto_load_pinned"`
	AskLoadPreviousSession bool `mapstructure:"ask_load_previous_session"`
}

// AutosaveConfig holds advisory hints exposed in startup output. They are not
// enforced by memkeep itself; the calling agent is responsible for honoring them.
type AutosaveConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	OnTaskComplete          bool `mapstructure:"on_task_complete"`
	SessionSummary          bool `mapstructure:"session_summary"`
	SummaryIntervalMessages int  `mapstructure:"summary_interval_messages"`
}

// ExpirationConfig controls TTL-based cleanup. A per-category value of 0 means
// that category never expires; an absent category falls back to DefaultDays.
type ExpirationConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	DefaultDays int            `mapstructure:"default_days"`
	Categories  map[string]int `mapstructure:"categories"`
}

// TTLDays returns the TTL in days for a category, or false when the category
// never expires or expiration is disabled.
func (e ExpirationConfig) TTLDays(category model.Category) (int, bool) {
	if !e.Enabled {
		return 0, false
	}
	if days, ok := e.Categories[string(category)]; ok {
		if days <= 0 {
			return 0, false
		}
		return days, true
	}
	if e.DefaultDays <= 0 {
		return 0, false
	}
	return e.DefaultDays, true
}

// RelevanceConfig controls retrieval limits.
type RelevanceConfig struct {
	SearchLimit   int  `mapstructure:"search_limit"`
	PerScopeLimit int  `mapstructure:"per_scope_limit"`
	IncludeGlobal bool `mapstructure:"include_global"`
}

// SessionsConfig controls session retention.
type SessionsConfig struct {
	Keep     int `mapstructure:"keep"`
	KeepDays int `mapstructure:"keep_days"`
}

// Config is the top-level configuration object.
type Config struct {
	BasePath string `mapstructure:"-" yaml:"-"`

	Semantic   SemanticConfig   `mapstructure:"semantic"`
	Startup    StartupConfig    `mapstructure:"startup"`
	Autosave   AutosaveConfig   `mapstructure:"autosave"`
	Expiration ExpirationConfig `mapstructure:"expiration"`
	Relevance  RelevanceConfig  `mapstructure:"relevance"`
	Sessions   SessionsConfig   `mapstructure:"sessions"`
}

// GlobalPath is the global store root.
func (c *Config) GlobalPath() string { return filepath.Join(c.BasePath, "global") }

// ProjectsPath holds one store root per project.
func (c *Config) ProjectsPath() string { return filepath.Join(c.BasePath, "projects") }

// ConfigFile is the YAML configuration file path.
func (c *Config) ConfigFile() string { return filepath.Join(c.BasePath, "config.yaml") }

// GroupsFile is the shared group registry file, independent of any root.
func (c *Config) GroupsFile() string { return filepath.Join(c.BasePath, "groups.yaml") }

// EventsFile is the command event log database.
func (c *Config) EventsFile() string { return filepath.Join(c.BasePath, "events.db") }

// DefaultBasePath returns $MEMKEEP_PATH or ~/.memkeep.
func DefaultBasePath() string {
	if env := os.Getenv("MEMKEEP_PATH"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".memkeep"
	}
	return filepath.Join(home, ".memkeep")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("semantic.enabled", true)
	v.SetDefault("semantic.provider", "")
	v.SetDefault("semantic.threshold", 0.7)
	v.SetDefault("semantic.timeout_seconds", 30)
	v.SetDefault("semantic.ollama.base_url", "http://localhost:11434")
	v.SetDefault("semantic.ollama.model", "nomic-embed-text")
	v.SetDefault("semantic.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("semantic.openai.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("semantic.openai.model", "text-embedding-3-small")
	v.SetDefault("semantic.openai.dims", 1536)

	v.SetDefault("startup.auto_load_pinned", true)
	v.SetDefault("startup.ask_load_previous_session", true)

	v.SetDefault("autosave.enabled", true)
	v.SetDefault("autosave.on_task_complete", true)
	v.SetDefault("autosave.session_summary", true)
	v.SetDefault("autosave.summary_interval_messages", 20)

	v.SetDefault("expiration.enabled", false)
	v.SetDefault("expiration.default_days", 90)
	v.SetDefault("expiration.categories", map[string]int{
		"task_history":    30,
		"session_summary": 60,
		"factual":         0,
		"decision":        0,
	})

	v.SetDefault("relevance.search_limit", 5)
	v.SetDefault("relevance.per_scope_limit", 20)
	v.SetDefault("relevance.include_global", true)

	v.SetDefault("sessions.keep", 100)
	v.SetDefault("sessions.keep_days", 90)
}

// Load reads config.yaml under basePath, creating directories and a default
// config file on first run.
func Load(basePath string) (*Config, error) {
	if basePath == "" {
		basePath = DefaultBasePath()
	}
	if err := ensureDirectories(basePath); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(basePath, "config.yaml"))
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			if werr := v.SafeWriteConfigAs(filepath.Join(basePath, "config.yaml")); werr != nil {
				return nil, errors.Wrap(werr, "write default config")
			}
		} else {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config{BasePath: basePath}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	cfg.BasePath = basePath
	return cfg, nil
}

// Set updates one dotted config key in config.yaml and returns the reloaded
// configuration. Values are coerced to bool or number when they parse as one.
func Set(basePath, keyPath, value string) (*Config, error) {
	if basePath == "" {
		basePath = DefaultBasePath()
	}
	if err := ensureDirectories(basePath); err != nil {
		return nil, err
	}

	v := viper.New()
	file := filepath.Join(basePath, "config.yaml")
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "read config")
	}

	v.Set(keyPath, coerceValue(value))
	if err := v.WriteConfigAs(file); err != nil {
		return nil, errors.Wrap(err, "write config")
	}
	return Load(basePath)
}

func coerceValue(value string) any {
	switch strings.ToLower(value) {
	case "true", "on", "yes":
		return true
	case "false", "off", "no":
		return false
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func ensureDirectories(basePath string) error {
	for _, dir := range []string{
		basePath,
		filepath.Join(basePath, "global"),
		filepath.Join(basePath, "global", "summaries"),
		filepath.Join(basePath, "projects"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create storage dir")
		}
	}
	return nil
}

// HashProjectPath derives the stable storage key for a project path.
func HashProjectPath(projectPath string) string {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		abs = projectPath
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:16]
}

// ProjectStorage returns (and lazily creates) the store root for a project,
// recording the original path in a .project_path ref file.
func (c *Config) ProjectStorage(projectPath string) (string, error) {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return "", errors.Wrap(err, "resolve project path")
	}
	storage := filepath.Join(c.ProjectsPath(), HashProjectPath(abs))
	if err := os.MkdirAll(filepath.Join(storage, "summaries"), 0o755); err != nil {
		return "", errors.Wrap(err, "create project storage")
	}
	ref := filepath.Join(storage, ".project_path")
	if _, err := os.Stat(ref); os.IsNotExist(err) {
		if werr := os.WriteFile(ref, []byte(abs), 0o644); werr != nil {
			return "", errors.Wrap(werr, "write project ref")
		}
	}
	return storage, nil
}

// ProjectRoot describes one known project store root.
type ProjectRoot struct {
	Hash        string
	StoragePath string
	ProjectPath string
}

// ProjectRoots enumerates every project store root that has been created.
func (c *Config) ProjectRoots() ([]ProjectRoot, error) {
	entries, err := os.ReadDir(c.ProjectsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "scan project roots")
	}

	var roots []ProjectRoot
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		storage := filepath.Join(c.ProjectsPath(), e.Name())
		b, rerr := os.ReadFile(filepath.Join(storage, ".project_path"))
		if rerr != nil {
			// Without the ref file the root cannot be mapped back to a
			// project path, and opening it by storage path would hash the
			// wrong identity.
			continue
		}
		roots = append(roots, ProjectRoot{
			Hash:        e.Name(),
			StoragePath: storage,
			ProjectPath: strings.TrimSpace(string(b)),
		})
	}
	return roots, nil
}

// ResolveProjectFromHash maps a storage hash back to the original project path.
func (c *Config) ResolveProjectFromHash(hash string) (string, bool) {
	b, err := os.ReadFile(filepath.Join(c.ProjectsPath(), hash, ".project_path"))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(b)), true
}
