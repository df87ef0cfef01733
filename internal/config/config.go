package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all qwencli configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM endpoint configuration
	LLM LLMConfig `yaml:"llm"`

	// Session persistence and history bounds
	Session SessionConfig `yaml:"session"`

	// Tool behavior
	Tools ToolsConfig `yaml:"tools"`

	// Code execution settings
	Execution ExecutionConfig `yaml:"execution"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the chat completion endpoint. The defaults target an
// OpenAI-compatible server running locally (vLLM, SGLang, llama.cpp).
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`

	// ContextWindow is the model's input token budget. Usage against it is
	// tracked as an estimate only.
	ContextWindow int `yaml:"context_window"`
}

// SessionConfig configures history bounds and the session file.
type SessionConfig struct {
	// File is the session persistence path, relative to the workspace.
	File string `yaml:"file"`

	// MaxTurns is the soft cap on history length.
	MaxTurns int `yaml:"max_turns"`

	// TrimTo is the trailing window size kept after a trim.
	TrimTo int `yaml:"trim_to"`

	// ArchivePath is the SQLite conversation archive, relative to the
	// workspace. Empty disables archiving.
	ArchivePath string `yaml:"archive_path"`
}

// ToolsConfig configures tool executors.
type ToolsConfig struct {
	// FileRoot, when set, confines file reader/writer paths to this
	// directory. Empty means no containment.
	FileRoot string `yaml:"file_root"`

	// ReadDisplayLimit caps how many bytes of a read file are shown.
	ReadDisplayLimit int `yaml:"read_display_limit"`

	// DefaultSnippetLanguage is assumed for quoted code fragments that
	// carry no language tag.
	DefaultSnippetLanguage string `yaml:"default_snippet_language"`
}

// ExecutionConfig configures the code runner.
type ExecutionConfig struct {
	// Timeout is the wall-clock limit for one snippet.
	Timeout string `yaml:"timeout"`

	// WorkDir is where snippet temp files are created. Empty uses the
	// OS temp directory.
	WorkDir string `yaml:"work_dir"`

	// MaxOutputBytes limits captured stdout+stderr size.
	MaxOutputBytes int64 `yaml:"max_output_bytes"`
}

// LoggingConfig configures the category file loggers.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "qwencli",
		Version: "1.2.0",

		LLM: LLMConfig{
			Model:         "Qwen3-30B-A3B-Thinking",
			BaseURL:       "http://localhost:8000/v1",
			Timeout:       "120s",
			MaxTokens:     1500,
			Temperature:   0.7,
			ContextWindow: 260000,
		},

		Session: SessionConfig{
			File:        ".qwen/session.json",
			MaxTurns:    100,
			TrimTo:      80,
			ArchivePath: ".qwen/archive.db",
		},

		Tools: ToolsConfig{
			ReadDisplayLimit:       4096,
			DefaultSnippetLanguage: "python",
		},

		Execution: ExecutionConfig{
			Timeout:        "30s",
			MaxOutputBytes: 50000,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Path returns the config file path under the given workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".qwen", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file: defaults, but env overrides still apply
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("QWEN_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("QWEN_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("QWEN_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("QWEN_SESSION_FILE"); path != "" {
		c.Session.File = path
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetExecutionTimeout returns the code runner timeout as a duration.
func (c *Config) GetExecutionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm base_url not configured")
	}
	if c.Session.MaxTurns > 0 && c.Session.TrimTo > c.Session.MaxTurns {
		return fmt.Errorf("session trim_to (%d) exceeds max_turns (%d)", c.Session.TrimTo, c.Session.MaxTurns)
	}
	if c.LLM.ContextWindow <= 0 {
		return fmt.Errorf("llm context_window must be positive")
	}
	return nil
}
