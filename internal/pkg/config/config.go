// Package config loads the service configuration from defaults, an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Backend names accepted by llm.provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// DefaultPath is the config file read when no path is given. It is optional.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Images    ImagesConfig    `koanf:"images"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Cache     CacheConfig     `koanf:"cache"`
	ActionLog ActionLogConfig `koanf:"actionlog"`
	Defaults  DefaultsConfig  `koanf:"defaults"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	CORS      CORSConfig      `koanf:"cors"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// LLMConfig selects the model backend. Provider is filled in from whichever
// credential source supplied the key when it is not set explicitly.
type LLMConfig struct {
	Provider       string  `koanf:"provider"`
	APIKey         string  `koanf:"api_key"`
	BaseURL        string  `koanf:"base_url"`
	VisionModel    string  `koanf:"vision_model"`
	ReasoningModel string  `koanf:"reasoning_model"`
	Temperature    float32 `koanf:"temperature"`
	MaxTokens      int     `koanf:"max_tokens"`
}

type ImagesConfig struct {
	PathPrefix string        `koanf:"path_prefix"`
	DevHosts   []string      `koanf:"dev_hosts"`
	DevOrigins []string      `koanf:"dev_origins"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxSize    int64         `koanf:"max_size"`
}

type PipelineConfig struct {
	ItemConcurrency int `koanf:"item_concurrency"`
}

type CacheConfig struct {
	Size int           `koanf:"size"`
	TTL  time.Duration `koanf:"ttl"`
}

type ActionLogConfig struct {
	Dir    string `koanf:"dir"`
	UserID string `koanf:"user_id"`
}

type DefaultsConfig struct {
	ImageFilename   string `koanf:"image_filename"`
	TaskDescription string `koanf:"task_description"`
}

type TelemetryConfig struct {
	Exporter string `koanf:"exporter"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

var defaults = map[string]any{
	"server.port":               8000,
	"server.request_timeout":    "10m",
	"log.level":                 "info",
	"llm.vision_model":          "gpt-4o",
	"llm.reasoning_model":       "o3-mini",
	"llm.temperature":           0,
	"llm.max_tokens":            8192,
	"images.path_prefix":        "/stores",
	"images.dev_hosts":          []string{"localhost:8000", "127.0.0.1:8000"},
	"images.dev_origins":        []string{"http://localhost:3000", "http://127.0.0.1:3000"},
	"images.timeout":            "10s",
	"images.max_size":           20 << 20,
	"pipeline.item_concurrency": 1,
	"cache.size":                256,
	"cache.ttl":                 "0s",
	"actionlog.dir":             "logs",
	"actionlog.user_id":         "p01",
	"defaults.image_filename":   "67512.jpg",
	"defaults.task_description": "Select music video to play",
	"telemetry.exporter":        "none",
	"cors.allowed_origins":      []string{"*"},
}

// listKeys are the settings that take a comma-separated list from the
// environment.
var listKeys = map[string]bool{
	"images.dev_hosts":     true,
	"images.dev_origins":   true,
	"cors.allowed_origins": true,
}

// Load builds the configuration. An empty path or DefaultPath reads
// DefaultPath if it exists; any other path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = DefaultPath
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if path != DefaultPath || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.ProviderWithValue("UXC_", ".", envValue), nil); err != nil {
		return nil, err
	}

	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.resolveCredentials(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envValue maps UXC_SECTION__KEY to section.key. Empty variables are
// skipped so they never blank a file setting.
func envValue(name, value string) (string, any) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, "UXC_")), "__", ".")
	if listKeys[key] {
		var items []string
		for item := range strings.SplitSeq(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return key, items
	}
	return key, value
}

// resolveCredentials fills the LLM key from the conventional provider
// variables and then from the OAI_CONFIG_LIST_JSON list.
func (c *Config) resolveCredentials() error {
	if c.LLM.APIKey != "" {
		if c.LLM.Provider == "" {
			c.LLM.Provider = ProviderOpenAI
		}
		return nil
	}

	switch c.LLM.Provider {
	case ProviderOpenAI:
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.LLM.Provider, c.LLM.APIKey = ProviderOpenAI, key
		} else if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			c.LLM.Provider, c.LLM.APIKey = ProviderAnthropic, key
		}
	}
	if c.LLM.APIKey != "" {
		return nil
	}

	source := os.Getenv("OAI_CONFIG_LIST_JSON")
	if source == "" {
		return nil
	}
	entries, err := loadConfigList(source)
	if err != nil {
		return fmt.Errorf("OAI_CONFIG_LIST_JSON: %w", err)
	}
	entry, ok := pickEntry(entries, c.LLM.VisionModel)
	if !ok {
		return nil
	}
	c.LLM.APIKey = entry.APIKey
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = entry.BaseURL
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenAI
		if entry.APIType == ProviderAnthropic {
			c.LLM.Provider = ProviderAnthropic
		}
	}
	return nil
}

// Validate checks the enumerated and bounded settings.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "", ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("llm.provider: unknown backend %q", c.LLM.Provider)
	}
	switch c.Telemetry.Exporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("telemetry.exporter: unknown exporter %q", c.Telemetry.Exporter)
	}
	if c.Pipeline.ItemConcurrency < 1 {
		return fmt.Errorf("pipeline.item_concurrency must be at least 1, got %d", c.Pipeline.ItemConcurrency)
	}
	if c.Cache.Size < 1 {
		return fmt.Errorf("cache.size must be at least 1, got %d", c.Cache.Size)
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// LLMConfigured reports whether model credentials were found.
func (c *Config) LLMConfigured() bool {
	return c.LLM.APIKey != ""
}

// LogLevel returns the parsed log.level.
func (c *Config) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ConfigListEntry is one element of an OAI_CONFIG_LIST_JSON list.
type ConfigListEntry struct {
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	APIType string `yaml:"api_type"`
}

// loadConfigList accepts either inline JSON or the path of a JSON file.
func loadConfigList(source string) ([]ConfigListEntry, error) {
	data := []byte(source)
	if !strings.HasPrefix(strings.TrimSpace(source), "[") {
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, err
		}
		data = b
	}
	var entries []ConfigListEntry
	if err := yamlv3.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// pickEntry prefers an entry for the given model and otherwise takes the
// first entry that has a key.
func pickEntry(entries []ConfigListEntry, model string) (ConfigListEntry, bool) {
	var first *ConfigListEntry
	for i := range entries {
		e := &entries[i]
		if e.APIKey == "" {
			continue
		}
		if e.Model == model {
			return *e, true
		}
		if first == nil {
			first = e
		}
	}
	if first == nil {
		return ConfigListEntry{}, false
	}
	return *first, true
}
