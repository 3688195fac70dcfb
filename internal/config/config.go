package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"privatepilot/internal/providers/registry"
)

const (
	appName   = "privatepilot"
	envPrefix = "PRIVATEPILOT"

	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

var (
	ErrInvalidTimeout    = errors.New("http.timeout must be > 0")
	ErrUnsupportedDriver = errors.New("storage.driver must be 'sqlite' or 'postgres'")
	ErrInvalidRateLimit  = errors.New("rate.per_hour must be >= 0")
	ErrInvalidLogFormat  = errors.New("log.format must be 'json' or 'console'")
	ErrMissingMasterKey  = errors.New("at least one master key is required to store credentials")
)

type Config struct {
	Provider string `mapstructure:"provider"`

	Ollama ProviderConfig `mapstructure:"ollama"`
	OpenAI ProviderConfig `mapstructure:"openai"`
	Grok   ProviderConfig `mapstructure:"grok"`
	Claude ProviderConfig `mapstructure:"claude"`

	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Typing  TypingConfig  `mapstructure:"typing"`
	Storage StorageConfig `mapstructure:"storage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Rate    RateConfig    `mapstructure:"rate"`
	Prompts PromptsConfig `mapstructure:"prompts"`

	Crypto CryptoConfig `mapstructure:"-"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type ProviderConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	ListenAddr  string        `mapstructure:"listen_addr"`
	HealthPath  string        `mapstructure:"health_path"`
	MetricsPath string        `mapstructure:"metrics_path"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type TypingConfig struct {
	Delay time.Duration `mapstructure:"delay"`
	Chunk int           `mapstructure:"chunk"`
}

type StorageConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateConfig struct {
	PerHour int `mapstructure:"per_hour"`
}

type PromptsConfig struct {
	File string `mapstructure:"file"`
}

type CryptoConfig struct {
	CurrentKeyID string
	Keys         map[string][]byte
}

// Enabled reports whether master keys were provided.
func (c CryptoConfig) Enabled() bool { return len(c.Keys) > 0 }

// Load reads path (or the default config file when path is empty), then applies
// PRIVATEPILOT_* environment overrides. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Storage.DSN = expandHome(cfg.Storage.DSN)
	cfg.Prompts.File = expandHome(cfg.Prompts.File)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cc, err := loadCryptoConfig()
	if err != nil {
		return nil, err
	}
	cfg.Crypto = cc

	return cfg, nil
}

// ProviderSettings maps the provider sections onto selector settings sharing
// one HTTP client bounded by http.timeout.
func (c *Config) ProviderSettings() registry.Settings {
	return registry.Settings{
		Provider:   c.Provider,
		Ollama:     c.Ollama.endpoint(),
		OpenAI:     c.OpenAI.endpoint(),
		Grok:       c.Grok.endpoint(),
		Claude:     c.Claude.endpoint(),
		HTTPClient: &http.Client{Timeout: c.HTTP.Timeout},
	}
}

func (p ProviderConfig) endpoint() registry.Endpoint {
	return registry.Endpoint{
		URL:    strings.TrimSpace(p.Endpoint),
		APIKey: strings.TrimSpace(p.APIKey),
		Model:  strings.TrimSpace(p.Model),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "ollama")
	for _, p := range []string{"ollama", "openai", "grok", "claude"} {
		v.SetDefault(p+".endpoint", "")
		v.SetDefault(p+".api_key", "")
		v.SetDefault(p+".model", "")
	}
	v.SetDefault("http.timeout", 120*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", LogFormatJSON)
	v.SetDefault("server.listen_addr", "127.0.0.1:7878")
	v.SetDefault("server.health_path", "/healthz")
	v.SetDefault("server.metrics_path", "/metrics")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("typing.delay", 5*time.Millisecond)
	v.SetDefault("typing.chunk", 1)
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", filepath.Join("~", ".local", "share", appName, "history.db"))
	v.SetDefault("storage.auto_migrate", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("rate.per_hour", 0)
	v.SetDefault("prompts.file", "")
}

func (c *Config) validate() error {
	if c.HTTP.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Storage.Enabled {
		switch c.Storage.Driver {
		case "sqlite", "sqlite3", "postgres", "postgresql", "pgx":
		default:
			return ErrUnsupportedDriver
		}
	}
	if c.Rate.PerHour < 0 {
		return ErrInvalidRateLimit
	}
	if c.Log.Format != LogFormatJSON && c.Log.Format != LogFormatConsole {
		return ErrInvalidLogFormat
	}
	if c.Typing.Chunk < 1 {
		c.Typing.Chunk = 1
	}
	if c.Typing.Delay < 0 {
		c.Typing.Delay = 0
	}
	return nil
}

func loadCryptoConfig() (CryptoConfig, error) {
	keysB64 := map[string]string{}

	if raw := envValue(envPrefix + "_MASTER_KEYS_JSON"); raw != "" {
		var parsed map[string]string
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return CryptoConfig{}, fmt.Errorf("parse %s_MASTER_KEYS_JSON: %w", envPrefix, err)
		}
		for id, val := range parsed {
			if strings.TrimSpace(id) == "" || strings.TrimSpace(val) == "" {
				continue
			}
			keysB64[id] = val
		}
	}

	single := envPrefix + "_MASTER_KEY_B64"
	for _, e := range os.Environ() {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == single {
			continue
		}
		if !strings.HasPrefix(k, envPrefix+"_MASTER_KEY_") || !strings.HasSuffix(k, "_B64") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, envPrefix+"_MASTER_KEY_"), "_B64")
		if id == "" || v == "" {
			continue
		}
		keysB64[id] = strings.TrimSpace(v)
	}

	current := envValue(envPrefix + "_MASTER_KEY_CURRENT_ID")
	if singleton := envValue(single); singleton != "" {
		if current == "" {
			current = "default"
		}
		keysB64[current] = singleton
	}

	if len(keysB64) == 0 {
		return CryptoConfig{}, nil
	}

	keys := make(map[string][]byte, len(keysB64))
	for id, b64 := range keysB64 {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return CryptoConfig{}, fmt.Errorf("decode master key %q: %w", id, err)
		}
		if len(raw) != 32 {
			return CryptoConfig{}, fmt.Errorf("master key %q must be 32 bytes after base64 decode", id)
		}
		keys[id] = raw
	}

	if current == "" {
		if len(keys) > 1 {
			return CryptoConfig{}, fmt.Errorf("%s_MASTER_KEY_CURRENT_ID is required when several master keys are set", envPrefix)
		}
		for id := range keys {
			current = id
		}
	}
	if _, ok := keys[current]; !ok {
		return CryptoConfig{}, fmt.Errorf("%s_MASTER_KEY_CURRENT_ID=%q does not exist in provided keys", envPrefix, current)
	}

	return CryptoConfig{CurrentKeyID: current, Keys: keys}, nil
}

func envValue(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
