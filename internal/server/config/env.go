package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "OBJCATALOG_"

// dotenvFile is loaded when present. Variables already set in the
// environment are not overridden by it.
var dotenvFile = ".env"

// parseEnv overlays OBJCATALOG_* environment variables, after loading
// dotenvFile into the environment if it exists. Unset variables leave the
// field unchanged; malformed numbers and durations panic, like malformed
// flags do.
func parseEnv(config *Config) {
	if _, err := os.Stat(dotenvFile); err == nil {
		if err := godotenv.Load(dotenvFile); err != nil {
			panic(err)
		}
	}

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	str("HEALTH_ADDR", &config.HealthAddr)
	str("METRICS_ADDR", &config.MetricsAddr)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("JWT_SECRET", &config.JWTSecret)
	str("BUCKET_SECRET_PASSPHRASE", &config.BucketSecretPassphrase)
	str("S3_ENDPOINT", &config.S3Endpoint)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_KEY", &config.S3Key)
	str("S3_REGION", &config.S3Region)
	str("S3_ACCESS_KEY_ID", &config.S3AccessKeyID)
	str("S3_SECRET_ACCESS_KEY", &config.S3SecretAccessKey)
	str("LOG_LEVEL", &config.LogLevel)

	if v, ok := os.LookupEnv(envPrefix + "DB_MAX_OPEN_CONNS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		config.DBMaxOpenConns = n
	}

	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				panic(err)
			}
			*dst = d
		}
	}
	dur("PRESIGN_EXPIRY", &config.PresignExpiry)
	dur("HEALTH_CHECK_INTERVAL", &config.HealthCheckInterval)
}
