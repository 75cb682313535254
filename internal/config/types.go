package config

import "time"

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	LogLevel       string                `yaml:"log_level"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Paths          RuntimePathsConfig    `yaml:"paths"`
	Storage        StorageConfig         `yaml:"storage"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	AI             AIConfig              `yaml:"ai"`
	Summary        SummaryConfig         `yaml:"summary"`

	// Resolved connection strings.
	DSN      string `yaml:"-"`
	RedisURL string `yaml:"-"`
}

type DatabaseRuntimeConfig struct {
	Driver    string            `yaml:"driver"` // "mysql" | "sqlite"
	DSN       string            `yaml:"dsn"`
	Path      string            `yaml:"path"` // sqlite file
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	Enable   bool   `yaml:"enable"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

type RuntimePathsConfig struct {
	Logs    string `yaml:"logs"`
	Uploads string `yaml:"uploads"`
}

// StorageConfig selects where uploaded document bytes live.
type StorageConfig struct {
	Driver      string    `yaml:"driver"` // "local" | "s3"
	MaxUploadMB int       `yaml:"max_upload_mb"`
	S3          S3Options `yaml:"s3"`
}

type S3Options struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyleAccess bool   `yaml:"path_style_access"`
	Prefix          string `yaml:"prefix"`
}

// AIConfig lists model providers and which one produces folder summaries.
type AIConfig struct {
	Providers       []AIProvider `yaml:"providers"`
	SummaryProvider string       `yaml:"summary_provider"` // provider id, empty = first enabled
	SummaryModel    string       `yaml:"summary_model"`
	MaxOutputTokens int          `yaml:"max_output_tokens"`
}

type AIProvider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"` // "anthropic" | "gemini" | "openai-compatible"
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint"`
	DefaultModel string `yaml:"default_model"`
	Enabled      bool   `yaml:"enabled"`
}

// SummaryConfig tunes the folder summary cache and the model boundary.
type SummaryConfig struct {
	Cooldown          time.Duration `yaml:"cooldown"`
	MaxPDFImages      int           `yaml:"max_pdf_images"`
	MaxImageEdge      int           `yaml:"max_image_edge"`
	MaxTextChars      int           `yaml:"max_text_chars"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	LockTTL           time.Duration `yaml:"lock_ttl"`
	GenerateRateLimit int           `yaml:"generate_rate_limit"` // per user per minute on HTTP
}

type rawAppConfig struct {
	Port           int               `yaml:"port"`
	Env            string            `yaml:"env"`
	LogLevel       string            `yaml:"log_level"`
	DSN            string            `yaml:"dsn"`
	DatabaseURL    string            `yaml:"database_url"`
	RedisURL       string            `yaml:"redis_url"`
	Database       rawDatabaseConfig `yaml:"database"`
	Redis          rawRedisConfig    `yaml:"redis"`
	Paths          rawPathsConfig    `yaml:"paths"`
	LogDir         string            `yaml:"log_dir"`
	UploadDir      string            `yaml:"upload_dir"`
	Storage        rawStorageConfig  `yaml:"storage"`
	AllowedOrigins []string          `yaml:"allowed_origins"`
	JWTSecret      string            `yaml:"jwt_secret"`
	AI             rawAIConfig       `yaml:"ai"`
	Summary        rawSummaryConfig  `yaml:"summary"`
}

type rawDatabaseConfig struct {
	Driver    string            `yaml:"driver"`
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Path      string            `yaml:"path"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	Enable   *bool  `yaml:"enable"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
}

type rawPathsConfig struct {
	Logs    string `yaml:"logs"`
	Uploads string `yaml:"uploads"`
}

type rawStorageConfig struct {
	Driver      string    `yaml:"driver"`
	MaxUploadMB int       `yaml:"max_upload_mb"`
	S3          S3Options `yaml:"s3"`
}

type rawAIConfig struct {
	Providers       []rawAIProvider `yaml:"providers"`
	SummaryProvider string          `yaml:"summary_provider"`
	SummaryModel    string          `yaml:"summary_model"`
	MaxOutputTokens int             `yaml:"max_output_tokens"`
}

type rawAIProvider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint"`
	DefaultModel string `yaml:"default_model"`
	Enabled      *bool  `yaml:"enabled"`
}

type rawSummaryConfig struct {
	Cooldown          *time.Duration `yaml:"cooldown"`
	MaxPDFImages      *int           `yaml:"max_pdf_images"`
	MaxImageEdge      *int           `yaml:"max_image_edge"`
	MaxTextChars      *int           `yaml:"max_text_chars"`
	RequestTimeout    *time.Duration `yaml:"request_timeout"`
	MaxAttempts       *int           `yaml:"max_attempts"`
	RetryDelay        *time.Duration `yaml:"retry_delay"`
	RequestsPerMinute *int           `yaml:"requests_per_minute"`
	LockTTL           *time.Duration `yaml:"lock_ttl"`
	GenerateRateLimit *int           `yaml:"generate_rate_limit"`
}
