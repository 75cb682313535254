package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil, envFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, StorageLocal, cfg.Storage.Driver)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes())
	assert.False(t, cfg.Redis.Enable)
	assert.Empty(t, cfg.AI.Providers)

	assert.Equal(t, 30*time.Minute, cfg.Summary.Cooldown)
	assert.Equal(t, 15, cfg.Summary.MaxPDFImages)
	assert.Equal(t, 60*time.Second, cfg.Summary.RequestTimeout)
	assert.Equal(t, 3, cfg.Summary.MaxAttempts)
}

func TestParseOverrides(t *testing.T) {
	content := []byte(`
port: 8080
env: prod
database:
  driver: mysql
  host: db.internal
  user: portal
  password: secret
  name: records
redis_url: localhost:6380/2
storage:
  driver: s3
  s3:
    bucket: medvault-docs
    endpoint: https://s3.example.com/
ai:
  summary_provider: claude
  providers:
    - id: claude
      type: Claude
      default_model: claude-sonnet-4-5
    - id: local
      type: OpenAI_Compatible
      endpoint: http://localhost:11434/
      enabled: false
summary:
  cooldown: 10m
  max_pdf_images: 5
  request_timeout: 45s
`)
	cfg, err := Parse(content, envFrom(map[string]string{EnvAnthropicAPIKey: " sk-ant "}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, "portal:secret@tcp(db.internal:3306)/records?charset=utf8mb4&loc=Local&parseTime=true", cfg.DSN)
	assert.True(t, cfg.Redis.Enable)
	assert.Equal(t, "redis://localhost:6380/2", cfg.RedisURL)
	assert.Equal(t, "https://s3.example.com", cfg.Storage.S3.Endpoint)
	assert.Equal(t, "us-east-1", cfg.Storage.S3.Region)

	require.Len(t, cfg.AI.Providers, 2)
	assert.Equal(t, ProviderAnthropic, cfg.AI.Providers[0].Type)
	assert.Equal(t, "sk-ant", cfg.AI.Providers[0].APIKey)
	assert.True(t, cfg.AI.Providers[0].Enabled)
	assert.Equal(t, ProviderOpenAICompatible, cfg.AI.Providers[1].Type)
	assert.Equal(t, "http://localhost:11434", cfg.AI.Providers[1].Endpoint)
	assert.False(t, cfg.AI.Providers[1].Enabled)

	assert.Equal(t, 10*time.Minute, cfg.Summary.Cooldown)
	assert.Equal(t, 5, cfg.Summary.MaxPDFImages)
	assert.Equal(t, 45*time.Second, cfg.Summary.RequestTimeout)
	assert.Equal(t, defaultMaxAttempts, cfg.Summary.MaxAttempts)
}

func TestParseSynthesizesProvidersFromEnv(t *testing.T) {
	cfg, err := Parse([]byte("port: 2333\n"), envFrom(map[string]string{
		EnvGeminiAPIKey: "gm-key",
		EnvJWTSecret:    "from-env",
	}))
	require.NoError(t, err)

	require.Len(t, cfg.AI.Providers, 1)
	assert.Equal(t, ProviderGemini, cfg.AI.Providers[0].Type)
	assert.Equal(t, "gm-key", cfg.AI.Providers[0].APIKey)
	assert.Equal(t, "from-env", cfg.JWTSecret)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"unknown field", "prot: 1\n"},
		{"port out of range", "port: 70000\n"},
		{"database driver", "database:\n  driver: oracle\n"},
		{"s3 without bucket", "storage:\n  driver: s3\n"},
		{"provider type", "ai:\n  providers:\n    - type: mystery\n"},
		{"attempts", "summary:\n  max_attempts: 0\n"},
		{"timeout", "summary:\n  request_timeout: 0s\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.content), envFrom(nil))
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\ndatabase:\n  path: \":memory:\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DSN)

	_, err = Load(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}

func TestResolveRuntimePath(t *testing.T) {
	t.Setenv(EnvHome, "/srv/medvault")

	assert.Equal(t, "/srv/medvault/uploads", ResolveRuntimePath("", "uploads"))
	assert.Equal(t, "/srv/medvault/data/files", ResolveRuntimePath("data/files", "uploads"))
	assert.Equal(t, "/var/lib/docs", ResolveRuntimePath("/var/lib/docs/", "uploads"))
}
