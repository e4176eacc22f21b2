package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the webhook ingress HTTP server.
type ServerConfig struct {
	Host string `json:"host" env:"SERVER_HOST"`
	Port int    `json:"port" env:"SERVER_PORT"`
}

// StoreConfig controls the durable key-value store (§6).
type StoreConfig struct {
	Driver      string `json:"driver" env:"STORE_DRIVER"`
	DSN         string `json:"dsn" env:"STORE_DSN"`
	Host        string `json:"host" env:"STORE_HOST"`
	Port        int    `json:"port" env:"STORE_PORT"`
	Password    string `json:"password" env:"STORE_PASSWORD"`
	DB          int    `json:"db" env:"STORE_DB"`
	PoolSize    int    `json:"pool_size" env:"STORE_POOL_SIZE"`
	DialTimeout int    `json:"dial_timeout_seconds" env:"STORE_DIAL_TIMEOUT_SECONDS"`
	// CacheVersion is part of the per-user and tracking keys built by a
	// keyspace.Keyspace (cached analyzer answers, trust blobs). Bump it to
	// invalidate those on a format change without flushing the whole store.
	// Cost, coalescer-lock, provider-health and prompt-metric keys carry no
	// version and are not affected.
	CacheVersion string `json:"cache_version" env:"STORE_CACHE_VERSION"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL"`
	Format     string `json:"format" env:"LOG_FORMAT"`
	Output     string `json:"output" env:"LOG_OUTPUT"`
	FilePrefix string `json:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// SecurityConfig controls webhook signature verification and admin-API auth.
type SecurityConfig struct {
	RedditWebhookSecret string `json:"reddit_webhook_secret" env:"REDDIT_WEBHOOK_SECRET"`
	AdminAPIToken       string `json:"admin_api_token" env:"ADMIN_API_TOKEN"`
}

// ProvidersConfig holds credentials and endpoints for the configured LLM
// providers used by the analyzer (§4.5) and question dispatcher (§4.7).
type ProvidersConfig struct {
	PrimaryProvider  string `json:"primary_provider" env:"PROVIDER_PRIMARY"`
	FallbackProvider string `json:"fallback_provider" env:"PROVIDER_FALLBACK"`
	OpenAIAPIKey     string `json:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIModel      string `json:"openai_model" env:"OPENAI_MODEL"`
	GeminiAPIKey     string `json:"gemini_api_key" env:"GEMINI_API_KEY"`
	GeminiModel      string `json:"gemini_model" env:"GEMINI_MODEL"`
	RequestTimeoutMS int    `json:"request_timeout_ms" env:"PROVIDER_REQUEST_TIMEOUT_MS"`
}

// BudgetConfig controls the cost tracker's daily/monthly spend limits (§4.6).
type BudgetConfig struct {
	DailyLimitCents   int64   `json:"daily_limit_cents" env:"BUDGET_DAILY_LIMIT_CENTS"`
	MonthlyLimitCents int64   `json:"monthly_limit_cents" env:"BUDGET_MONTHLY_LIMIT_CENTS"`
	WarnThreshold1    float64 `json:"warn_threshold_1" env:"BUDGET_WARN_THRESHOLD_1"`
	WarnThreshold2    float64 `json:"warn_threshold_2" env:"BUDGET_WARN_THRESHOLD_2"`
	WarnThreshold3    float64 `json:"warn_threshold_3" env:"BUDGET_WARN_THRESHOLD_3"`
}

// TelemetryConfig configures resource attributes attached to structured logs
// and metrics, adapted from the teacher's OTLP tracing config: this domain
// carries no tracing exporter, but the generic key=value resource-attribute
// merging behavior is still useful for tagging logs with deployment metadata.
type TelemetryConfig struct {
	ServiceName        string            `json:"service_name" env:"TELEMETRY_SERVICE_NAME"`
	ResourceAttributes map[string]string `json:"resource_attributes" mapstructure:"resource_attributes"`
	AttributesEnv      string            `json:"-" yaml:"-" env:"TELEMETRY_RESOURCE_ATTRIBUTES"`
}

// HostConfig holds the host platform's webhook callback endpoints: where
// the Layer 2 classifier, the notification sink, and the action effector
// send their HTTP calls. These are process-level deployment configuration,
// not part of any per-subreddit Settings.
type HostConfig struct {
	ClassifierEndpoint string `json:"classifier_endpoint" env:"HOST_CLASSIFIER_ENDPOINT"`
	NotifyEndpoint     string `json:"notify_endpoint" env:"HOST_NOTIFY_ENDPOINT"`
	ActionsEndpoint    string `json:"actions_endpoint" env:"HOST_ACTIONS_ENDPOINT"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Store     StoreConfig     `json:"store"`
	Logging   LoggingConfig   `json:"logging"`
	Security  SecurityConfig  `json:"security"`
	Providers ProvidersConfig `json:"providers"`
	Budget    BudgetConfig    `json:"budget"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Host      HostConfig      `json:"host"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Store: StoreConfig{
			Driver:       "redis",
			Host:         "localhost",
			Port:         6379,
			PoolSize:     10,
			DialTimeout:  5,
			CacheVersion: "1",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePrefix: "automod",
		},
		Security: SecurityConfig{},
		Providers: ProvidersConfig{
			PrimaryProvider:  "openai",
			FallbackProvider: "gemini",
			OpenAIModel:      "gpt-4o-mini",
			GeminiModel:      "gemini-1.5-flash",
			RequestTimeoutMS: 15000,
		},
		Budget: BudgetConfig{
			DailyLimitCents:   5000,
			MonthlyLimitCents: 100000,
			WarnThreshold1:    0.50,
			WarnThreshold2:    0.75,
			WarnThreshold3:    0.90,
		},
		Telemetry: TelemetryConfig{},
	}
}

// Addr builds a "host:port" address for the key-value store.
func (c StoreConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load loads configuration from file (if present) and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode returns an error when no tagged fields are present in the
		// environment; treat that case as "no overrides" so local runs work
		// without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyStoreURLOverride(cfg)
	cfg.normalize()

	return cfg, nil
}

// LoadFile reads configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	applyStoreURLOverride(cfg)
	cfg.normalize()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return nil
}

// LoadConfig is a helper used by tests to load JSON config snippets.
func LoadConfig(path string) (*Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyStoreURLOverride(cfg)
	cfg.normalize()
	return cfg, nil
}

// applyStoreURLOverride aligns config loading with cmd/automod: STORE_URL (a
// full redis:// DSN) overrides any file-based DSN to reduce setup friction.
func applyStoreURLOverride(cfg *Config) {
	if cfg == nil {
		return
	}
	if dsn := strings.TrimSpace(os.Getenv("STORE_URL")); dsn != "" {
		cfg.Store.DSN = dsn
	}
}

func (t *TelemetryConfig) normalize() {
	if t == nil {
		return
	}
	t.MergeAttributes(t.AttributesEnv)
}

// MergeAttributes merges comma-separated key=value pairs into ResourceAttributes.
func (t *TelemetryConfig) MergeAttributes(raw string) {
	if t == nil {
		return
	}
	pairs := parseAttributePairs(raw)
	if len(pairs) == 0 {
		return
	}
	if t.ResourceAttributes == nil {
		t.ResourceAttributes = make(map[string]string, len(pairs))
	}
	for k, v := range pairs {
		if k == "" {
			continue
		}
		t.ResourceAttributes[k] = v
	}
}

func parseAttributePairs(raw string) map[string]string {
	result := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		key := strings.TrimSpace(kv[0])
		if key == "" {
			continue
		}
		val := ""
		if len(kv) > 1 {
			val = strings.TrimSpace(kv[1])
		}
		result[key] = val
	}
	return result
}

func (c *Config) normalize() {
	if c == nil {
		return
	}
	c.Telemetry.normalize()
}
