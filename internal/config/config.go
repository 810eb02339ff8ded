// Package config loads the trio configuration: an embedded default, an
// optional YAML file, environment variables and `key=value` overrides, applied
// in that order.
package config

import (
	_ "embed"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Worker modes.
const (
	WorkerInProcess = "inprocess"
	WorkerProcess   = "process"
)

// Upload backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Environment variables read by Load.
const (
	EnvAPIKey    = "ANTHROPIC_API_KEY"
	EnvRedisAddr = "TRIO_REDIS_ADDR"
	EnvAddr      = "TRIO_ADDR"
	EnvPublicURL = "TRIO_PUBLIC_URL"
	EnvLogLevel  = "TRIO_LOG_LEVEL"

	// EnvUploadKey holds a base64 AES-256 key; uploads are encrypted at rest when set.
	EnvUploadKey          = "TRIO_UPLOAD_KEY"
	// EnvUploadPreviousKeys holds comma separated retired keys still accepted for reads.
	EnvUploadPreviousKeys = "TRIO_UPLOAD_PREVIOUS_KEYS"
)

type Config struct {
	Log        Log        `yaml:"log" mapstructure:"log"`
	Server     Server     `yaml:"server" mapstructure:"server"`
	Render     Render     `yaml:"render" mapstructure:"render"`
	Uploads    Uploads    `yaml:"uploads" mapstructure:"uploads"`
	Generation Generation `yaml:"generation" mapstructure:"generation"`
	MCP        MCP        `yaml:"mcp" mapstructure:"mcp"`
}

type Log struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type Server struct {
	Addr           string `yaml:"addr" mapstructure:"addr"`
	PublicURL      string `yaml:"public_url" mapstructure:"public_url"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

type Render struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Worker  string        `yaml:"worker" mapstructure:"worker"`
	// Command defaults to the running executable when empty.
	Command   string   `yaml:"command" mapstructure:"command"`
	Args      []string `yaml:"args" mapstructure:"args"`
	MaxRounds int      `yaml:"max_rounds" mapstructure:"max_rounds"`
	MaxSteps  int      `yaml:"max_steps" mapstructure:"max_steps"`
	// WorkerConfig names a YAML or JSON file describing the worker subprocess:
	// command, args, env, pass_env and temp_dir. It replaces Command and Args.
	WorkerConfig string `yaml:"worker_config" mapstructure:"worker_config"`
	// TempDir holds the per-request directories of the process worker.
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
	// MemoryLimit is passed to process workers as GOMEMLIMIT, e.g. "512MiB".
	MemoryLimit string `yaml:"memory_limit" mapstructure:"memory_limit"`
}

type Uploads struct {
	Backend   string        `yaml:"backend" mapstructure:"backend"`
	RedisAddr string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	// Keys are only read from the environment.
	EncryptionKey []byte   `yaml:"-" mapstructure:"-"`
	PreviousKeys  [][]byte `yaml:"-" mapstructure:"-"`
}

type Generation struct {
	// APIKey is only read from the environment.
	APIKey    string `yaml:"-" mapstructure:"-"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
}

type MCP struct {
	Addr    string `yaml:"addr" mapstructure:"addr"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// Default returns the embedded configuration.
func Default() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded default is invalid: %v", err))
	}
	return cfg
}

// Load builds the configuration. An empty path skips the file layer.
func Load(path string, getenv func(string) string, overrides []string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if getenv == nil {
		getenv = os.Getenv
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}

	if err := Apply(&cfg, overrides); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Generation.APIKey, EnvAPIKey)
	set(&cfg.Server.Addr, EnvAddr)
	set(&cfg.Server.PublicURL, EnvPublicURL)
	set(&cfg.Log.Level, EnvLogLevel)
	if v := getenv(EnvRedisAddr); v != "" {
		cfg.Uploads.RedisAddr = v
		cfg.Uploads.Backend = BackendRedis
	}

	if v := getenv(EnvUploadKey); v != "" {
		key, err := decodeKey(EnvUploadKey, v)
		if err != nil {
			return err
		}
		cfg.Uploads.EncryptionKey = key
	}
	if v := getenv(EnvUploadPreviousKeys); v != "" {
		for _, part := range strings.Split(v, ",") {
			key, err := decodeKey(EnvUploadPreviousKeys, part)
			if err != nil {
				return err
			}
			cfg.Uploads.PreviousKeys = append(cfg.Uploads.PreviousKeys, key)
		}
	}
	return nil
}

func decodeKey(name, v string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", name, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s must decode to 32 bytes, got %d", name, len(key))
	}
	return key, nil
}

// Apply decodes dotted `section.key=value` overrides onto cfg.
func Apply(cfg *Config, overrides []string) error {
	if len(overrides) == 0 {
		return nil
	}
	tree := map[string]any{}
	for _, o := range overrides {
		key, value, ok := strings.Cut(o, "=")
		if !ok {
			return fmt.Errorf("invalid override %q: expected key=value", o)
		}
		section, field, ok := strings.Cut(strings.TrimSpace(key), ".")
		if !ok || section == "" || field == "" {
			return fmt.Errorf("invalid override %q: expected section.key", o)
		}
		m, _ := tree[section].(map[string]any)
		if m == nil {
			m = map[string]any{}
			tree[section] = m
		}
		m[field] = value
	}

	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		Metadata:         &md,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(tree); err != nil {
		return fmt.Errorf("invalid override: %w", err)
	}
	if len(md.Unused) > 0 {
		return fmt.Errorf("unknown config keys: %s", strings.Join(md.Unused, ", "))
	}
	return nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch c.Render.Worker {
	case WorkerInProcess, WorkerProcess:
	default:
		return fmt.Errorf("render.worker must be %q or %q, got %q", WorkerInProcess, WorkerProcess, c.Render.Worker)
	}
	switch c.Uploads.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Uploads.RedisAddr == "" {
			return fmt.Errorf("uploads.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("uploads.backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.Uploads.Backend)
	}
	if c.Render.Timeout <= 0 {
		return fmt.Errorf("render.timeout must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	return nil
}
