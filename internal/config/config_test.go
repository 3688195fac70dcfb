package config

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "ollama" {
		t.Fatalf("provider = %q", cfg.Provider)
	}
	if cfg.HTTP.Timeout != 120*time.Second {
		t.Fatalf("timeout = %s", cfg.HTTP.Timeout)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:7878" {
		t.Fatalf("listen addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Storage.Driver != "sqlite" || !cfg.Storage.Enabled {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if strings.HasPrefix(cfg.Storage.DSN, "~") {
		t.Fatalf("dsn not expanded: %q", cfg.Storage.DSN)
	}
	if cfg.Crypto.Enabled() {
		t.Fatalf("crypto should be disabled without master keys")
	}
	if cfg.File != "" {
		t.Fatalf("file = %q, want none", cfg.File)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
provider: Claude
claude:
  endpoint: https://claude.example/v1/complete
  api_key: file-key
http:
  timeout: 15s
log:
  format: console
`)
	t.Setenv("PRIVATEPILOT_CLAUDE_API_KEY", "env-key")
	t.Setenv("PRIVATEPILOT_RATE_PER_HOUR", "30")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "claude" {
		t.Fatalf("provider = %q", cfg.Provider)
	}
	if cfg.Claude.APIKey != "env-key" {
		t.Fatalf("api key = %q, want env override", cfg.Claude.APIKey)
	}
	if cfg.Rate.PerHour != 30 {
		t.Fatalf("per hour = %d", cfg.Rate.PerHour)
	}
	if cfg.Log.Format != LogFormatConsole {
		t.Fatalf("log format = %q", cfg.Log.Format)
	}

	settings := cfg.ProviderSettings()
	if settings.Claude.URL != "https://claude.example/v1/complete" {
		t.Fatalf("claude url = %q", settings.Claude.URL)
	}
	if settings.HTTPClient == nil || settings.HTTPClient.Timeout != 15*time.Second {
		t.Fatalf("http client = %+v", settings.HTTPClient)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
	}{
		{"timeout", "http:\n  timeout: 0s\n", ErrInvalidTimeout},
		{"driver", "storage:\n  driver: mysql\n", ErrUnsupportedDriver},
		{"rate", "rate:\n  per_hour: -1\n", ErrInvalidRateLimit},
		{"log format", "log:\n  format: xml\n", ErrInvalidLogFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestLoadDisabledStorageSkipsDriverCheck(t *testing.T) {
	cfg, err := Load(writeConfig(t, "storage:\n  enabled: false\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Enabled {
		t.Fatalf("storage should be disabled")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestLoadCryptoConfig(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))

	t.Run("single key", func(t *testing.T) {
		t.Setenv("PRIVATEPILOT_MASTER_KEY_B64", key)
		cc, err := loadCryptoConfig()
		if err != nil {
			t.Fatalf("loadCryptoConfig: %v", err)
		}
		if cc.CurrentKeyID != "default" || len(cc.Keys) != 1 {
			t.Fatalf("crypto = %+v", cc)
		}
	})

	t.Run("json keys need current id", func(t *testing.T) {
		t.Setenv("PRIVATEPILOT_MASTER_KEYS_JSON", `{"a":"`+key+`","b":"`+key+`"}`)
		if _, err := loadCryptoConfig(); err == nil {
			t.Fatalf("expected error without current id")
		}
		t.Setenv("PRIVATEPILOT_MASTER_KEY_CURRENT_ID", "b")
		cc, err := loadCryptoConfig()
		if err != nil {
			t.Fatalf("loadCryptoConfig: %v", err)
		}
		if cc.CurrentKeyID != "b" || len(cc.Keys) != 2 {
			t.Fatalf("crypto = %+v", cc)
		}
	})

	t.Run("per id keys keep their case", func(t *testing.T) {
		t.Setenv("PRIVATEPILOT_MASTER_KEY_K1_B64", key)
		t.Setenv("PRIVATEPILOT_MASTER_KEY_K2_B64", key)
		t.Setenv("PRIVATEPILOT_MASTER_KEY_CURRENT_ID", "K2")
		cc, err := loadCryptoConfig()
		if err != nil {
			t.Fatalf("loadCryptoConfig: %v", err)
		}
		if cc.CurrentKeyID != "K2" {
			t.Fatalf("current key = %q, want K2", cc.CurrentKeyID)
		}
		if _, ok := cc.Keys["K1"]; !ok || len(cc.Keys) != 2 {
			t.Fatalf("keys = %v", cc.Keys)
		}
	})

	t.Run("short key", func(t *testing.T) {
		t.Setenv("PRIVATEPILOT_MASTER_KEY_B64", base64.StdEncoding.EncodeToString([]byte("short")))
		if _, err := loadCryptoConfig(); err == nil {
			t.Fatalf("expected error for short key")
		}
	})
}
