package models

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	Extraction ExtractionConfig `yaml:"extraction"`
	Company    CompanyConfig    `yaml:"empresa"`
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	AI         AIConfig         `yaml:"ai"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ExtractionConfig controls the order text extractor
type ExtractionConfig struct {
	TaxRate  float64 `yaml:"tax_rate"`  // IVA, default 0.10
	MaxItems int     `yaml:"max_items"` // Items kept per invoice, default 10
	Strict   *bool   `yaml:"strict"`    // Drop overlapping pattern matches, default true
}

// StrictMode reports whether overlapping pattern matches are dropped
func (e ExtractionConfig) StrictMode() bool {
	return e.Strict == nil || *e.Strict
}

// CompanyConfig holds the data printed in the invoice header
type CompanyConfig struct {
	Name     string `yaml:"nombre"`
	Address  string `yaml:"direccion"`
	PostCode string `yaml:"cp"`
	Email    string `yaml:"email"`
	Phone    string `yaml:"telefono"`
	LogoPath string `yaml:"logo_path"`
}

// StorageConfig selects where rendered PDFs are kept
type StorageConfig struct {
	Backend string      `yaml:"backend"` // "local" or "minio"
	Dir     string      `yaml:"dir"`     // Local backend directory
	Minio   MinioConfig `yaml:"minio"`
}

// MinioConfig for the MinIO/S3 backend
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix,omitempty"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// DatabaseConfig for the optional Postgres persistence
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig for staff JWT authentication
type AuthConfig struct {
	Enabled   bool          `yaml:"enabled"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// AIConfig represents AI provider configuration
type AIConfig struct {
	OpenAI OpenAIConfig `yaml:"openai"`
	Gemini GeminiConfig `yaml:"gemini"`
	Ollama OllamaConfig `yaml:"ollama"`

	// Default provider: "openai", "gemini", "ollama" or empty (AI engine disabled)
	DefaultProvider string `yaml:"default_provider"`

	// Ask the AI engine when the heuristic extractor finds no products
	FallbackOnEmpty bool `yaml:"fallback_on_empty"`
}

// OpenAIConfig for OpenAI/Azure OpenAI
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model"`              // Default: "gpt-4o-mini"
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "gemini-1.5-flash"
}

// OllamaConfig for local Ollama
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"` // Default: "http://localhost:11434"
	Model   string `yaml:"model"`    // e.g., "mistral", "llama3"
}

// LoggingConfig selects the zap preset
type LoggingConfig struct {
	Mode string `yaml:"mode"` // "dev" or "prod"
}

// LoadConfig reads the YAML file at path, applies environment overrides and defaults.
// A missing file is not an error: the service can run from env vars alone.
func LoadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.applyEnv()
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		c.Host = host
	}
	if rate := os.Getenv("TAX_RATE"); rate != "" {
		if r, err := strconv.ParseFloat(rate, 64); err == nil {
			c.Extraction.TaxRate = r
		}
	}
	if strict := os.Getenv("EXTRACTION_STRICT"); strict != "" {
		if b, err := strconv.ParseBool(strict); err == nil {
			c.Extraction.Strict = &b
		}
	}
	if dir := os.Getenv("INVOICES_DIR"); dir != "" {
		c.Storage.Dir = dir
	}
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		c.Storage.Minio.Endpoint = endpoint
	}
	if key := os.Getenv("MINIO_ACCESS_KEY"); key != "" {
		c.Storage.Minio.AccessKey = key
	}
	if secret := os.Getenv("MINIO_SECRET_KEY"); secret != "" {
		c.Storage.Minio.SecretKey = secret
	}
	if bucket := os.Getenv("MINIO_BUCKET"); bucket != "" {
		c.Storage.Minio.Bucket = bucket
	}
	if ssl := os.Getenv("MINIO_USE_SSL"); ssl != "" {
		c.Storage.Minio.UseSSL = ssl == "true"
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Database.URL = url
	} else if c.Database.URL == "" {
		c.Database.URL = databaseURLFromParts()
	}
	if enabled := os.Getenv("AUTH_ENABLED"); enabled != "" {
		c.Auth.Enabled = enabled == "true"
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		c.AI.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		c.AI.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		c.AI.OpenAI.Model = model
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		c.AI.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		c.AI.Gemini.Model = model
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		c.AI.Ollama.BaseURL = baseURL
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		c.AI.DefaultProvider = provider
	}
	if mode := os.Getenv("LOG_MODE"); mode != "" {
		c.Logging.Mode = mode
	}
}

// databaseURLFromParts builds a DSN from DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME
func databaseURLFromParts() string {
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")

	if host == "" || user == "" || dbname == "" {
		return ""
	}
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, dbname)
}

// ApplyDefaults fills in zero values
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 5001
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Extraction.TaxRate == 0 {
		c.Extraction.TaxRate = 0.10
	}
	if c.Extraction.MaxItems == 0 {
		c.Extraction.MaxItems = 10
	}
	if c.Extraction.Strict == nil {
		strict := true
		c.Extraction.Strict = &strict
	}
	if c.Company.Name == "" {
		c.Company = CompanyConfig{
			Name:     "FLORES Y PLANTAS LOLI",
			Address:  "C/ Escritor Jiménez Lora 15",
			PostCode: "CP: 14014",
			Email:    "lolifloresyplantas@gmail.com",
			Phone:    "+34 957 25 14 20",
			LogoPath: c.Company.LogoPath,
		}
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "./invoices"
	}
	if c.Storage.Minio.Bucket == "" {
		c.Storage.Minio.Bucket = "facturas"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.AI.OpenAI.Model == "" {
		c.AI.OpenAI.Model = "gpt-4o-mini"
	}
	if c.AI.Gemini.Model == "" {
		c.AI.Gemini.Model = "gemini-1.5-flash"
	}
	if c.AI.Ollama.BaseURL == "" {
		c.AI.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.AI.Ollama.Model == "" {
		c.AI.Ollama.Model = "llama3"
	}
	if c.Logging.Mode == "" {
		c.Logging.Mode = "dev"
	}
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	if c.Extraction.TaxRate < 0 || c.Extraction.TaxRate >= 1 {
		return fmt.Errorf("invalid tax_rate %v: must be in [0, 1)", c.Extraction.TaxRate)
	}
	if c.Extraction.MaxItems < 1 {
		return fmt.Errorf("invalid max_items %d", c.Extraction.MaxItems)
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "local", "minio":
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
	switch strings.ToLower(c.AI.DefaultProvider) {
	case "", "openai", "gemini", "ollama":
	default:
		return fmt.Errorf("unsupported AI provider: %s", c.AI.DefaultProvider)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth enabled but JWT_SECRET is empty")
	}
	return nil
}
