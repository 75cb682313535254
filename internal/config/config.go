package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at configPath, applies defaults and environment
// overrides, and validates the result.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg, err := Parse(content, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML content. lookupEnv supplies secrets that are not in the file.
func Parse(content []byte, lookupEnv func(string) (string, bool)) (*AppConfig, error) {
	cfg := defaultAppConfig()
	raw := rawAppConfig{}
	if len(bytes.TrimSpace(content)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	}

	applyRawAppConfig(&cfg, raw)
	if lookupEnv != nil {
		applyEnvOverrides(&cfg, lookupEnv)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port:     defaultPort,
		Env:      defaultEnv,
		LogLevel: defaultLogLevel,
		Database: DatabaseRuntimeConfig{
			Driver:    defaultDBDriver,
			Path:      defaultSQLitePath,
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Storage: StorageConfig{
			Driver:      StorageLocal,
			MaxUploadMB: defaultMaxUploadMB,
		},
		AI: AIConfig{
			MaxOutputTokens: defaultSummaryOutputLimit,
		},
		Summary: SummaryConfig{
			Cooldown:          defaultSummaryCooldown,
			MaxPDFImages:      defaultMaxPDFImages,
			MaxImageEdge:      defaultMaxImageEdge,
			MaxTextChars:      defaultMaxTextChars,
			RequestTimeout:    defaultRequestTimeout,
			MaxAttempts:       defaultMaxAttempts,
			RetryDelay:        defaultRetryDelay,
			RequestsPerMinute: defaultRequestsPerMinute,
			LockTTL:           defaultLockTTL,
			GenerateRateLimit: defaultGenerateRateLimit,
		},
	}
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := normalizeEnv(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.ToLower(strings.TrimSpace(raw.LogLevel)); v != "" {
		cfg.LogLevel = v
	}

	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)

	cfg.Paths.Logs = firstNonEmpty(raw.Paths.Logs, raw.LogDir)
	cfg.Paths.Uploads = firstNonEmpty(raw.Paths.Uploads, raw.UploadDir)

	if v := strings.ToLower(strings.TrimSpace(raw.Storage.Driver)); v != "" {
		cfg.Storage.Driver = v
	}
	if raw.Storage.MaxUploadMB > 0 {
		cfg.Storage.MaxUploadMB = raw.Storage.MaxUploadMB
	}
	cfg.Storage.S3 = normalizeS3Options(raw.Storage.S3)

	cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	cfg.JWTSecret = strings.TrimSpace(raw.JWTSecret)

	cfg.AI = applyRawAIConfig(cfg.AI, raw.AI)
	cfg.Summary = applyRawSummaryConfig(cfg.Summary, raw.Summary)

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	db := raw.Database
	if v := strings.ToLower(strings.TrimSpace(db.Driver)); v != "" {
		current.Driver = v
	}
	current.DSN = firstNonEmpty(db.DSN, db.URL, raw.DSN, raw.DatabaseURL)
	if v := strings.TrimSpace(db.Path); v != "" {
		current.Path = v
	}
	if v := strings.TrimSpace(db.Host); v != "" {
		current.Host = v
	}
	if db.Port != 0 {
		current.Port = db.Port
	}
	if v := firstNonEmpty(db.User, db.Username); v != "" {
		current.User = v
	}
	if v := strings.TrimSpace(db.Password); v != "" {
		current.Password = v
	}
	if v := firstNonEmpty(db.Name, db.DBName); v != "" {
		current.Name = v
	}
	if v := strings.TrimSpace(db.Charset); v != "" {
		current.Charset = v
	}
	if db.ParseTime != nil {
		current.ParseTime = *db.ParseTime
	}
	if v := strings.TrimSpace(db.Loc); v != "" {
		current.Loc = v
	}
	if len(db.Params) > 0 {
		current.Params = copyStringMap(db.Params)
	}
	return normalizeDatabaseConfig(current)
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	r := raw.Redis
	current.URL = firstNonEmpty(r.URL, raw.RedisURL)
	if v := strings.TrimSpace(r.Host); v != "" {
		current.Host = v
	}
	if r.Port != 0 {
		current.Port = r.Port
	}
	current.Username = strings.TrimSpace(r.Username)
	current.Password = strings.TrimSpace(r.Password)
	if r.DB != nil {
		current.DB = *r.DB
	}
	if r.TLS != nil {
		current.TLS = *r.TLS
	}
	switch {
	case r.Enable != nil:
		current.Enable = *r.Enable
	case current.URL != "" || strings.TrimSpace(r.Host) != "":
		current.Enable = true
	}
	return normalizeRedisConfig(current)
}

func applyRawAIConfig(current AIConfig, raw rawAIConfig) AIConfig {
	providers := make([]AIProvider, 0, len(raw.Providers))
	for i, p := range raw.Providers {
		enabled := true
		if p.Enabled != nil {
			enabled = *p.Enabled
		}
		providers = append(providers, normalizeAIProvider(AIProvider{
			ID:           p.ID,
			Name:         p.Name,
			Type:         p.Type,
			APIKey:       p.APIKey,
			Endpoint:     p.Endpoint,
			DefaultModel: p.DefaultModel,
			Enabled:      enabled,
		}, i))
	}
	current.Providers = providers
	current.SummaryProvider = strings.TrimSpace(raw.SummaryProvider)
	current.SummaryModel = strings.TrimSpace(raw.SummaryModel)
	if raw.MaxOutputTokens > 0 {
		current.MaxOutputTokens = raw.MaxOutputTokens
	}
	return current
}

func applyRawSummaryConfig(current SummaryConfig, raw rawSummaryConfig) SummaryConfig {
	if raw.Cooldown != nil {
		current.Cooldown = *raw.Cooldown
	}
	if raw.MaxPDFImages != nil {
		current.MaxPDFImages = *raw.MaxPDFImages
	}
	if raw.MaxImageEdge != nil {
		current.MaxImageEdge = *raw.MaxImageEdge
	}
	if raw.MaxTextChars != nil {
		current.MaxTextChars = *raw.MaxTextChars
	}
	if raw.RequestTimeout != nil {
		current.RequestTimeout = *raw.RequestTimeout
	}
	if raw.MaxAttempts != nil {
		current.MaxAttempts = *raw.MaxAttempts
	}
	if raw.RetryDelay != nil {
		current.RetryDelay = *raw.RetryDelay
	}
	if raw.RequestsPerMinute != nil {
		current.RequestsPerMinute = *raw.RequestsPerMinute
	}
	if raw.LockTTL != nil {
		current.LockTTL = *raw.LockTTL
	}
	if raw.GenerateRateLimit != nil {
		current.GenerateRateLimit = *raw.GenerateRateLimit
	}
	return current
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	switch c.Database.Driver {
	case DriverMySQL:
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("unsupported database.driver %q, expected mysql or sqlite", c.Database.Driver)
	}
	if c.Redis.Enable && (c.Redis.Port < 1 || c.Redis.Port > 65535) {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	switch c.Storage.Driver {
	case StorageLocal:
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when storage.driver is s3")
		}
	default:
		return fmt.Errorf("unsupported storage.driver %q, expected local or s3", c.Storage.Driver)
	}
	for _, p := range c.AI.Providers {
		if !isKnownProviderType(p.Type) {
			return fmt.Errorf("ai provider %q: unsupported type %q", p.ID, p.Type)
		}
	}
	s := c.Summary
	if s.Cooldown < 0 {
		return fmt.Errorf("invalid summary.cooldown %s, expected >= 0", s.Cooldown)
	}
	if s.MaxPDFImages < 0 {
		return fmt.Errorf("invalid summary.max_pdf_images %d, expected >= 0", s.MaxPDFImages)
	}
	if s.MaxAttempts < 1 {
		return fmt.Errorf("invalid summary.max_attempts %d, expected >= 1", s.MaxAttempts)
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("invalid summary.request_timeout %s, expected > 0", s.RequestTimeout)
	}
	return nil
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

func (c *AppConfig) LogDir() string {
	if c == nil {
		return ResolveRuntimePath("", "logs")
	}
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

func (c *AppConfig) UploadDir() string {
	if c == nil {
		return ResolveRuntimePath("", "uploads")
	}
	return ResolveRuntimePath(c.Paths.Uploads, "uploads")
}

// MaxUploadBytes is the per-document upload limit.
func (c *AppConfig) MaxUploadBytes() int64 {
	return int64(c.Storage.MaxUploadMB) * 1024 * 1024
}
