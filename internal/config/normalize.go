package config

import (
	"fmt"
	"strings"
)

func normalizeDatabaseConfig(cfg DatabaseRuntimeConfig) DatabaseRuntimeConfig {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch cfg.Driver {
	case "", "sqlite3":
		cfg.Driver = DriverSQLite
	case "mariadb":
		cfg.Driver = DriverMySQL
	}
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.Path = strings.TrimSpace(cfg.Path)
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.User = strings.TrimSpace(cfg.User)
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Host == "" {
		cfg.Host = defaultDBHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultDBPort
	}
	if cfg.Name == "" {
		cfg.Name = defaultDBName
	}
	return cfg
}

func normalizeRedisConfig(cfg RedisRuntimeConfig) RedisRuntimeConfig {
	cfg.URL = normalizeRedisRawURL(cfg.URL)
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		cfg.Host = defaultRedisHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultRedisPort
	}
	return cfg
}

func normalizeRedisRawURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !strings.Contains(u, "://") {
		return "redis://" + u
	}
	return u
}

func normalizeS3Options(o S3Options) S3Options {
	o.Endpoint = strings.TrimRight(strings.TrimSpace(o.Endpoint), "/")
	o.Bucket = strings.TrimSpace(o.Bucket)
	o.Region = strings.TrimSpace(o.Region)
	if o.Region == "" {
		o.Region = "us-east-1"
	}
	o.AccessKeyID = strings.TrimSpace(o.AccessKeyID)
	o.SecretAccessKey = strings.TrimSpace(o.SecretAccessKey)
	o.Prefix = strings.Trim(strings.TrimSpace(o.Prefix), "/")
	return o
}

// NormalizeProviderType folds spelling variants ("OpenAI_Compatible", "google") to the canonical type.
func NormalizeProviderType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	switch t {
	case "openaicompatible", "openai":
		return ProviderOpenAICompatible
	case "google", "genai":
		return ProviderGemini
	case "claude":
		return ProviderAnthropic
	}
	return t
}

func isKnownProviderType(t string) bool {
	switch t {
	case ProviderAnthropic, ProviderGemini, ProviderOpenAICompatible:
		return true
	}
	return false
}

func normalizeAIProvider(p AIProvider, index int) AIProvider {
	p.Type = NormalizeProviderType(p.Type)
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = fmt.Sprintf("%s-%d", p.Type, index)
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		p.Name = p.ID
	}
	p.APIKey = strings.TrimSpace(p.APIKey)
	p.Endpoint = strings.TrimRight(strings.TrimSpace(p.Endpoint), "/")
	p.DefaultModel = strings.TrimSpace(p.DefaultModel)
	return p
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	v := strings.ToLower(strings.TrimSpace(env))
	switch v {
	case "dev":
		return "development"
	case "prod":
		return "production"
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}

func copyStringMap(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		out[k] = v
	}
	return out
}
