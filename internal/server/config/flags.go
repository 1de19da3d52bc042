package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/objcatalog/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     gRPC health bind address (e.g., ":50051")
//	-m string     metrics bind address (e.g., ":9090")
//	-d string     PostgreSQL DSN
//	-n int        maximum open database connections
//	-s string     JWT HMAC secret key
//	-k string     passphrase sealing registered bucket secrets
//	-e string     S3 endpoint of the default bucket
//	-b string     S3 bucket name
//	-x string     key prefix inside the default bucket
//	-g string     S3 region
//	-u string     S3 access key id
//	-p string     S3 secret access key
//	-t duration   presigned URL lifetime (e.g., "5m")
//	-i duration   health probe interval
//	-l string     log level
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, so -c/-config and subcommand flags pass through.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-m", "-d", "-n", "-s", "-k", "-e", "-b", "-x", "-g", "-u", "-p", "-t", "-i", "-l",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HealthAddr, "a", config.HealthAddr, "health endpoint address")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics endpoint address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.DBMaxOpenConns, "n", config.DBMaxOpenConns, "max open database connections")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "JWT secret key")
	fs.StringVar(&config.BucketSecretPassphrase, "k", config.BucketSecretPassphrase, "bucket secret passphrase")
	fs.StringVar(&config.S3Endpoint, "e", config.S3Endpoint, "S3 endpoint")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Key, "x", config.S3Key, "S3 key prefix")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3AccessKeyID, "u", config.S3AccessKeyID, "S3 access key id")
	fs.StringVar(&config.S3SecretAccessKey, "p", config.S3SecretAccessKey, "S3 secret access key")
	fs.DurationVar(&config.PresignExpiry, "t", config.PresignExpiry, "presigned URL expiry")
	fs.DurationVar(&config.HealthCheckInterval, "i", config.HealthCheckInterval, "health probe interval")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
