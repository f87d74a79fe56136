package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	testSecretID  = "0123456789abcdef0123456789abcdef"
	testSecretID2 = "fedcba9876543210fedcba9876543210"
	testSecretB64 = "dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHMACSecrets(t *testing.T) {
	t.Run("no secrets", func(t *testing.T) {
		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 0 {
			t.Errorf("expected 0 secrets, got %d", len(secrets))
		}
	})

	t.Run("single secret", func(t *testing.T) {
		t.Setenv("SL_HMAC_SECRET", testSecretID+":"+testSecretB64)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 1 {
			t.Errorf("expected 1 secret, got %d", len(secrets))
		}
		if _, ok := secrets[testSecretID]; !ok {
			t.Errorf("secret_id not found in map")
		}
	})

	t.Run("multiple numbered secrets", func(t *testing.T) {
		t.Setenv("SL_HMAC_SECRET_1", testSecretID+":"+testSecretB64)
		t.Setenv("SL_HMAC_SECRET_2", testSecretID2+":"+testSecretB64)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 2 {
			t.Errorf("expected 2 secrets, got %d", len(secrets))
		}
	})

	t.Run("numbering stops at first gap", func(t *testing.T) {
		t.Setenv("SL_HMAC_SECRET_1", testSecretID+":"+testSecretB64)
		t.Setenv("SL_HMAC_SECRET_3", testSecretID2+":"+testSecretB64)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 1 {
			t.Errorf("expected 1 secret, got %d", len(secrets))
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		t.Setenv("SL_HMAC_SECRET", "invalid_format")

		if _, err := HMACSecrets(); err == nil {
			t.Error("expected error for invalid format")
		}
	})

	t.Run("duplicate secret_id between single and numbered", func(t *testing.T) {
		t.Setenv("SL_HMAC_SECRET", testSecretID+":"+testSecretB64)
		t.Setenv("SL_HMAC_SECRET_1", testSecretID+":"+testSecretB64)

		if _, err := HMACSecrets(); err == nil {
			t.Error("expected error for duplicate secret_id")
		}
	})
}

func TestParseHMACSecretWithID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid format", testSecretID + ":" + testSecretB64, false},
		{"missing colon", testSecretID, true},
		{"short secret_id", "tooshort:" + testSecretB64, true},
		{"non-hex secret_id", "0123456789abcdefGHIJKLMNOPQRSTUV:" + testSecretB64, true},
		{"invalid base64", testSecretID + ":not-valid-base64!!!", true},
		{"secret too short", testSecretID + ":c2hvcnQ=", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secretID, secret, err := ParseHMACSecretWithID(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHMACSecretWithID failed: %v", err)
			}
			if secretID != testSecretID {
				t.Errorf("unexpected secret_id: %s", secretID)
			}
			if len(secret) < 32 {
				t.Errorf("secret too short: %d bytes", len(secret))
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		def := DefaultServiceConfig()
		if *cfg != *def {
			t.Errorf("expected defaults %+v, got %+v", def, cfg)
		}
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv("SL_SERVER_PORT", "9999")
		t.Setenv("SL_SERVER_HOST", "127.0.0.1")
		t.Setenv("SL_CACHE_URL", "redis://localhost:6379/0")
		t.Setenv("SL_CACHE_TTL", "30s")

		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != 9999 {
			t.Errorf("expected port 9999, got %d", cfg.Port)
		}
		if cfg.Host != "127.0.0.1" {
			t.Errorf("expected host 127.0.0.1, got %s", cfg.Host)
		}
		if cfg.CacheURL != "redis://localhost:6379/0" {
			t.Errorf("expected cache url, got %q", cfg.CacheURL)
		}
		if cfg.CacheTTL != 30*time.Second {
			t.Errorf("expected cache ttl 30s, got %v", cfg.CacheTTL)
		}
	})

	t.Run("environment overrides config file", func(t *testing.T) {
		t.Setenv("SL_SERVER_PORT", "8081")
		path := writeConfig(t, "server:\n  port: 9090\n  http_port: 9091\n")

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != 8081 {
			t.Errorf("expected env port 8081, got %d", cfg.Port)
		}
		if cfg.HTTPPort != 9091 {
			t.Errorf("expected file http_port 9091, got %d", cfg.HTTPPort)
		}
	})

	t.Run("secret in config file rejected", func(t *testing.T) {
		path := writeConfig(t, "server:\n  hmac_secret: \"should_be_rejected\"\n")

		_, err := LoadConfig(path)
		if err == nil {
			t.Fatal("expected error for secret in config file")
		}
		if !strings.Contains(err.Error(), "SL_HMAC_SECRET") {
			t.Errorf("error should point at SL_HMAC_SECRET: %v", err)
		}
	})

	t.Run("secret in environment accepted", func(t *testing.T) {
		t.Setenv("SL_HMAC_SECRET", testSecretID+":"+testSecretB64)

		if _, err := LoadConfig(""); err != nil {
			t.Errorf("LoadConfig failed: %v", err)
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("invalid port range", func(t *testing.T) {
		t.Setenv("SL_SERVER_PORT", "70000")

		if _, err := LoadConfig(""); err == nil {
			t.Error("expected error for port > 65535")
		}
	})

	t.Run("ports collide", func(t *testing.T) {
		t.Setenv("SL_SERVER_PORT", "8080")

		if _, err := LoadConfig(""); err == nil {
			t.Error("expected error for http_port == port")
		}
	})

	t.Run("invalid rule limit", func(t *testing.T) {
		t.Setenv("SL_SERVER_MAX_RULES_PER_SURVEY", "0")

		if _, err := LoadConfig(""); err == nil {
			t.Error("expected error for zero max_rules_per_survey")
		}
	})
}
