package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/objcatalog/internal/flagx"
	"github.com/dmitrijs2005/objcatalog/internal/timex"
)

// JsonConfig is the shape of the JSON configuration file. Durations use
// timex.Duration, so both "30s" and integer nanoseconds are accepted.
type JsonConfig struct {
	HealthAddr             string         `json:"health_addr"`
	MetricsAddr            string         `json:"metrics_addr"`
	DatabaseDSN            string         `json:"database_dsn"`
	DBMaxOpenConns         int            `json:"db_max_open_conns"`
	JWTSecret              string         `json:"jwt_secret"`
	BucketSecretPassphrase string         `json:"bucket_secret_passphrase"`
	S3Endpoint             string         `json:"s3_endpoint"`
	S3Bucket               string         `json:"s3_bucket"`
	S3Key                  string         `json:"s3_key"`
	S3Region               string         `json:"s3_region"`
	S3AccessKeyID          string         `json:"s3_access_key_id"`
	S3SecretAccessKey      string         `json:"s3_secret_access_key"`
	PresignExpiry          timex.Duration `json:"presign_expiry"`
	HealthCheckInterval    timex.Duration `json:"health_check_interval"`
	LogLevel               string         `json:"log_level"`
}

// parseJson overlays the JSON file named by -c or -config, if any. Keys
// absent from the file keep their current value. An unreadable file or
// invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	str(&config.HealthAddr, c.HealthAddr)
	str(&config.MetricsAddr, c.MetricsAddr)
	str(&config.DatabaseDSN, c.DatabaseDSN)
	str(&config.JWTSecret, c.JWTSecret)
	str(&config.BucketSecretPassphrase, c.BucketSecretPassphrase)
	str(&config.S3Endpoint, c.S3Endpoint)
	str(&config.S3Bucket, c.S3Bucket)
	str(&config.S3Key, c.S3Key)
	str(&config.S3Region, c.S3Region)
	str(&config.S3AccessKeyID, c.S3AccessKeyID)
	str(&config.S3SecretAccessKey, c.S3SecretAccessKey)
	str(&config.LogLevel, c.LogLevel)

	if c.DBMaxOpenConns > 0 {
		config.DBMaxOpenConns = c.DBMaxOpenConns
	}
	if c.PresignExpiry.Duration > 0 {
		config.PresignExpiry = c.PresignExpiry.Duration
	}
	if c.HealthCheckInterval.Duration > 0 {
		config.HealthCheckInterval = c.HealthCheckInterval.Duration
	}
}
