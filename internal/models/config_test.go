package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("EXTRACTION_STRICT", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 5001 || cfg.Host != "0.0.0.0" {
		t.Fatalf("unexpected server defaults %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.Extraction.TaxRate != 0.10 || cfg.Extraction.MaxItems != 10 || !cfg.Extraction.StrictMode() {
		t.Fatalf("unexpected extraction defaults %+v", cfg.Extraction)
	}
	if cfg.Company.Name != "FLORES Y PLANTAS LOLI" || cfg.Storage.Backend != "local" || cfg.Storage.Dir != "./invoices" {
		t.Fatalf("unexpected defaults %+v / %+v", cfg.Company, cfg.Storage)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour || cfg.AI.DefaultProvider != "" {
		t.Fatalf("unexpected auth/ai defaults")
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
port: 8080
extraction:
  tax_rate: 0.21
  strict: false
empresa:
  nombre: Floristería Test
  logo_path: /tmp/logo.png
auth:
  token_ttl: 2h
ai:
  default_provider: ollama
`)
	t.Setenv("PORT", "9090")
	t.Setenv("INVOICES_DIR", "/data/facturas")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected env port to win, got %d", cfg.Port)
	}
	if cfg.Extraction.TaxRate != 0.21 || cfg.Extraction.StrictMode() {
		t.Fatalf("unexpected extraction config %+v", cfg.Extraction)
	}
	if cfg.Company.Name != "Floristería Test" || cfg.Company.LogoPath != "/tmp/logo.png" {
		t.Fatalf("unexpected company %+v", cfg.Company)
	}
	if cfg.Storage.Dir != "/data/facturas" || cfg.Auth.TokenTTL != 2*time.Hour {
		t.Fatalf("unexpected storage/auth %+v %+v", cfg.Storage, cfg.Auth)
	}
	if cfg.AI.Ollama.Model != "llama3" {
		t.Fatalf("expected ollama model default, got %q", cfg.AI.Ollama.Model)
	}
}

func TestLoadConfig_StrictFromEnv(t *testing.T) {
	path := writeConfig(t, "extraction:\n  strict: true\n")
	t.Setenv("EXTRACTION_STRICT", "false")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Extraction.StrictMode() {
		t.Fatalf("expected EXTRACTION_STRICT=false to turn strict mode off")
	}

	t.Setenv("EXTRACTION_STRICT", "")
	cfg, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil || !cfg.Extraction.StrictMode() {
		t.Fatalf("expected strict mode by default (%v)", err)
	}
}

func TestLoadConfig_DatabaseURLFromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "loli")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "pedidos")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.URL != "postgresql://loli:secret@db:5432/pedidos?sslmode=disable" {
		t.Fatalf("unexpected DSN %q", cfg.Database.URL)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"tax rate too high", func(c *Config) { c.Extraction.TaxRate = 1.5 }},
		{"negative tax rate", func(c *Config) { c.Extraction.TaxRate = -0.1 }},
		{"bad backend", func(c *Config) { c.Storage.Backend = "ftp" }},
		{"bad provider", func(c *Config) { c.AI.DefaultProvider = "skynet" }},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	cfg := &Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "port: [")); err == nil {
		t.Fatalf("expected parse error")
	}
}
