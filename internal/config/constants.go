package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"
	defaultLogLevel   = "info"

	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	defaultDBDriver   = DriverSQLite
	defaultSQLitePath = "data/medvault.db"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBName     = "medvault"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
	defaultRedisDB   = 0

	ProviderAnthropic        = "anthropic"
	ProviderGemini           = "gemini"
	ProviderOpenAICompatible = "openai-compatible"

	StorageLocal = "local"
	StorageS3    = "s3"

	defaultMaxUploadMB = 10

	defaultSummaryCooldown    = 30 * time.Minute
	defaultMaxPDFImages       = 15
	defaultMaxImageEdge       = 1568
	defaultMaxTextChars       = 200_000
	defaultRequestTimeout     = 60 * time.Second
	defaultMaxAttempts        = 3
	defaultRetryDelay         = time.Second
	defaultRequestsPerMinute  = 30
	defaultLockTTL            = 2 * time.Minute
	defaultGenerateRateLimit  = 10
	defaultSummaryOutputLimit = 1024
)
