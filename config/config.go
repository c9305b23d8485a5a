package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Config holds all application configuration loaded from .env, an optional
// livability.yaml, LIVABILITY_* environment variables and command flags.
type Config struct {
	Input      InputConfig      `mapstructure:"input"`
	Output     OutputConfig     `mapstructure:"output"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Merge      MergeConfig      `mapstructure:"merge"`
	Report     ReportConfig     `mapstructure:"report"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Log        LogConfig        `mapstructure:"log"`
	APIKeys    APIKeysConfig    `mapstructure:"api_keys"`
}

// InputConfig locates the identifier list.
type InputConfig struct {
	Path   string `mapstructure:"path" validate:"required"`
	Column string `mapstructure:"column" validate:"required"`
}

// OutputConfig locates the appended batch output dataset.
type OutputConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// CheckpointConfig locates the progress file.
type CheckpointConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// CacheConfig configures the on-disk record cache.
type CacheConfig struct {
	Dir     string `mapstructure:"dir" validate:"required"`
	KeepRaw bool   `mapstructure:"keep_raw"`
}

// BatchConfig configures output flushing.
type BatchConfig struct {
	Size int `mapstructure:"size" validate:"min=1"`
}

// GatewayConfig configures the browser-driven retrieval step.
type GatewayConfig struct {
	URL         string `mapstructure:"url" validate:"required,url"`
	RateLimitMs int    `mapstructure:"rate_limit_ms" validate:"min=0"`
	TimeoutSecs int    `mapstructure:"timeout_secs" validate:"min=1"`
	MaxAttempts int    `mapstructure:"max_attempts" validate:"min=1"`
	Headless    bool   `mapstructure:"headless"`
	ChromeBin   string `mapstructure:"chrome_bin"`
}

// MergeConfig configures the dataset merger.
type MergeConfig struct {
	BasePath   string `mapstructure:"base_path" validate:"required"`
	OutputPath string `mapstructure:"output_path"`
	JoinColumn string `mapstructure:"join_column" validate:"required"`
}

// ReportConfig configures the missing-livability report.
type ReportConfig struct {
	Path    string   `mapstructure:"path" validate:"required"`
	Columns []string `mapstructure:"columns"`
}

// PostgresConfig holds the optional records mirror connection.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"sslmode"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
	File   string `mapstructure:"file"`
}

// APIKeysConfig carries keys for collaborators outside the core pipeline.
type APIKeysConfig struct {
	Geocoding string `mapstructure:"geocoding"`
	Gemini    string `mapstructure:"gemini"`
}

// RateLimit returns the minimum delay between gateway calls.
func (g GatewayConfig) RateLimit() time.Duration {
	return time.Duration(g.RateLimitMs) * time.Millisecond
}

// Timeout returns the per-identifier gateway timeout.
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// MergeOutput returns where the merged dataset is written.
func (m MergeConfig) MergeOutput() string {
	if m.OutputPath != "" {
		return m.OutputPath
	}
	return m.BasePath
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.Postgres.Host +
		" port=" + c.Postgres.Port +
		" user=" + c.Postgres.User +
		" password=" + c.Postgres.Password +
		" dbname=" + c.Postgres.DB +
		" sslmode=" + c.Postgres.SSLMode
}

// New returns a viper instance with defaults, config file lookup and
// environment bindings applied. Callers may bind flags before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetConfigName("livability")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LIVABILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("input.path", "input.csv")
	v.SetDefault("input.column", "zip_code")
	v.SetDefault("output.path", "output.csv")
	v.SetDefault("checkpoint.path", "processing_progress.json")
	v.SetDefault("cache.dir", "livability_data")
	v.SetDefault("cache.keep_raw", false)
	v.SetDefault("batch.size", 50)
	v.SetDefault("gateway.url", "https://livabilityindex.aarp.org/")
	v.SetDefault("gateway.rate_limit_ms", 2000)
	v.SetDefault("gateway.timeout_secs", 60)
	v.SetDefault("gateway.max_attempts", 1)
	v.SetDefault("gateway.headless", true)
	v.SetDefault("gateway.chrome_bin", "")
	v.SetDefault("merge.base_path", "Result.csv")
	v.SetDefault("merge.output_path", "")
	v.SetDefault("merge.join_column", "zip_code")
	v.SetDefault("report.path", "missing_livability_report.json")
	v.SetDefault("report.columns", []string{"Address", "city", "state", "zip_code", "dataset_name", "longitude", "latitude"})
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "scraper")
	v.SetDefault("postgres.password", "scraper123")
	v.SetDefault("postgres.db", "livability_db")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "logs/livability.log")
	v.SetDefault("api_keys.geocoding", "")
	v.SetDefault("api_keys.gemini", "")

	// Unprefixed names kept from the scraper's .env files.
	bindings := map[string]string{
		"gateway.chrome_bin": "CHROME_BIN",
		"postgres.host":      "POSTGRES_HOST",
		"postgres.port":      "POSTGRES_PORT",
		"postgres.user":      "POSTGRES_USER",
		"postgres.password":  "POSTGRES_PASSWORD",
		"postgres.db":        "POSTGRES_DB",
		"postgres.sslmode":   "POSTGRES_SSLMODE",
		"api_keys.geocoding": "GOOGLE_GEOCODING_API_KEY",
		"api_keys.gemini":    "GEMINI_API_KEY",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, "LIVABILITY_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	return v
}

// Load reads the .env file (if any) and the viper sources into a validated
// Config.
func Load(v *viper.Viper) (*Config, error) {
	// A missing .env is normal; real environment variables still apply.
	_ = godotenv.Load()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: validate")
	}
	return &cfg, nil
}
