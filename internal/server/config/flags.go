package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/flagx"
)

var shortFlags = []string{"-a", "-d", "-s", "-t", "-u", "-p", "-b", "-g", "-e", "-m", "-o", "-x", "-l", "-k", "-w", "-n", "-v"}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-m string   metadata backend (postgres, bolt, memory)
//	-o string   bbolt database path
//	-x string   blob backend (s3, local, memory)
//	-l string   local blob directory
//	-k string   master key, 64 hex characters
//	-w duration retention window (e.g., "720h")
//	-n string   retention sweep cron schedule
//	-v string   log level
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], shortFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.MetadataBackend, "m", config.MetadataBackend, "metadata backend")
	fs.StringVar(&config.BoltPath, "o", config.BoltPath, "bbolt database path")
	fs.StringVar(&config.BlobBackend, "x", config.BlobBackend, "blob backend")
	fs.StringVar(&config.BlobDir, "l", config.BlobDir, "local blob directory")
	fs.StringVar(&config.MasterKey, "k", config.MasterKey, "master key (hex)")
	fs.DurationVar(&config.RetentionWindow, "w", config.RetentionWindow, "retention window")
	fs.StringVar(&config.RetentionSchedule, "n", config.RetentionSchedule, "retention sweep schedule")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
}
