package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	BackendRouter = "router"
	BackendOllama = "ollama"
)

// EndpointConfig defines the hosted inference endpoint.
type EndpointConfig struct {
	Backend   string `yaml:"backend"`
	BaseURL   string `yaml:"base_url"`
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// HTTPConfig defines transport limits.
type HTTPConfig struct {
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`
	MaxErrorBody          int64         `yaml:"max_error_body"`
}

// OllamaConfig defines the local Ollama backend.
type OllamaConfig struct {
	Host            string `yaml:"host"`
	Model           string `yaml:"model"`
	MaxPromptLength int    `yaml:"max_prompt_length"`
}

// OutputConfig defines terminal rendering.
type OutputConfig struct {
	Color         bool   `yaml:"color"`
	FragmentColor string `yaml:"fragment_color"`
}

// LoggingConfig defines the logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Config is the top-level configuration struct.
type Config struct {
	Endpoint EndpointConfig `yaml:"endpoint"`
	HTTP     HTTPConfig     `yaml:"http"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			Backend:   BackendRouter,
			BaseURL:   "https://router.huggingface.co",
			MaxTokens: 2048,
		},
		HTTP: HTTPConfig{
			ResponseHeaderTimeout: 120 * time.Second,
			MaxErrorBody:          1 << 20,
		},
		Ollama: OllamaConfig{
			Host:            "http://127.0.0.1:11434",
			Model:           "gemma3:latest",
			MaxPromptLength: 7500,
		},
		Output: OutputConfig{
			Color:         true,
			FragmentColor: "2",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "hfllm", "config.yaml")
}

// LoadFile overlays the YAML file at path onto cfg. A missing file is only an
// error when required is set.
func LoadFile(cfg *Config, path string, required bool) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("could not parse config file at %s: %w", path, err)
	}
	return nil
}

// NewViper returns a viper instance reading HFLLM_* environment variables,
// e.g. HFLLM_ENDPOINT_MODEL for endpoint.model.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("HFLLM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides copies every key explicitly set in v (environment or changed
// flags) onto cfg.
func ApplyOverrides(cfg *Config, v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	str("endpoint.backend", &cfg.Endpoint.Backend)
	str("endpoint.base_url", &cfg.Endpoint.BaseURL)
	str("endpoint.provider", &cfg.Endpoint.Provider)
	str("endpoint.model", &cfg.Endpoint.Model)
	if v.IsSet("endpoint.max_tokens") {
		cfg.Endpoint.MaxTokens = v.GetInt("endpoint.max_tokens")
	}
	if v.IsSet("http.response_header_timeout") {
		cfg.HTTP.ResponseHeaderTimeout = v.GetDuration("http.response_header_timeout")
	}
	if v.IsSet("http.max_error_body") {
		cfg.HTTP.MaxErrorBody = v.GetInt64("http.max_error_body")
	}
	str("ollama.host", &cfg.Ollama.Host)
	str("ollama.model", &cfg.Ollama.Model)
	if v.IsSet("ollama.max_prompt_length") {
		cfg.Ollama.MaxPromptLength = v.GetInt("ollama.max_prompt_length")
	}
	if v.IsSet("output.color") {
		cfg.Output.Color = v.GetBool("output.color")
	}
	str("output.fragment_color", &cfg.Output.FragmentColor)
	str("logging.level", &cfg.Logging.Level)
	str("logging.format", &cfg.Logging.Format)
	str("logging.output", &cfg.Logging.Output)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Endpoint.Backend {
	case BackendRouter:
		if strings.TrimSpace(c.Endpoint.Model) == "" {
			return errors.New("a model name is required")
		}
		if strings.TrimSpace(c.Endpoint.BaseURL) == "" {
			return errors.New("endpoint base_url must not be empty")
		}
	case BackendOllama:
		if strings.TrimSpace(c.Ollama.Host) == "" {
			return errors.New("ollama host must not be empty")
		}
	default:
		return fmt.Errorf("unknown backend %q (expected %q or %q)", c.Endpoint.Backend, BackendRouter, BackendOllama)
	}
	if c.Endpoint.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be a positive integer, got %d", c.Endpoint.MaxTokens)
	}
	return nil
}

// LoadConfig builds the configuration from defaults, the config file and the
// overrides in v and validates it.
func LoadConfig(path string, v *viper.Viper) (*Config, error) {
	cfg := Default()

	required := path != ""
	if !required {
		path = DefaultPath()
	}
	if err := LoadFile(cfg, path, required); err != nil {
		return nil, err
	}

	if v != nil {
		ApplyOverrides(cfg, v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
