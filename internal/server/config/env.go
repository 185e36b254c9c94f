package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "CSVKEEPER_"

// parseEnv overlays Config with CSVKEEPER_* environment variables.
//
// A dotenv file named by the -env flag is loaded first; without the flag a
// ".env" in the working directory is used when present. Variables already
// set in the process environment take precedence over the file. A missing
// file named by -env, or a malformed value, panics like the other loaders.
func parseEnv(config *Config) {
	envFile := flagx.EnvFileFlag()
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			panic(err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	if err := applyEnv(config, os.LookupEnv); err != nil {
		panic(err)
	}
}

type lookupFunc func(key string) (string, bool)

func applyEnv(c *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("ENDPOINT_ADDR_GRPC", &c.EndpointAddrGRPC)
	str("SECRET_KEY", &c.SecretKey)
	dur("ACCESS_TOKEN_VALIDITY_DURATION", &c.AccessTokenValidityDuration)

	str("METADATA_BACKEND", &c.MetadataBackend)
	str("DATABASE_DSN", &c.DatabaseDSN)
	str("BOLT_PATH", &c.BoltPath)

	str("BLOB_BACKEND", &c.BlobBackend)
	str("BLOB_DIR", &c.BlobDir)
	str("S3_ROOT_USER", &c.S3RootUser)
	str("S3_ROOT_PASSWORD", &c.S3RootPassword)
	str("S3_BUCKET", &c.S3Bucket)
	str("S3_REGION", &c.S3Region)
	str("S3_BASE_ENDPOINT", &c.S3BaseEndpoint)

	str("MASTER_KEY", &c.MasterKey)
	str("MASTER_PASSPHRASE", &c.MasterPassphrase)
	str("MASTER_SALT", &c.MasterSalt)

	dur("RETENTION_WINDOW", &c.RetentionWindow)
	str("RETENTION_SCHEDULE", &c.RetentionSchedule)
	num("SWEEP_CONCURRENCY", &c.SweepConcurrency)

	num("UPLOAD_CONCURRENCY", &c.UploadConcurrency)
	if v, ok := lookup(EnvPrefix + "MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_UPLOAD_BYTES: %w", EnvPrefix, err))
		} else {
			c.MaxUploadBytes = n
		}
	}

	num("NOTIFY_WORKERS", &c.NotifyWorkers)
	num("NOTIFY_QUEUE_SIZE", &c.NotifyQueueSize)
	if v, ok := lookup(EnvPrefix + "NOTIFY_MAX_RETRIES"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sNOTIFY_MAX_RETRIES: %w", EnvPrefix, err))
		} else {
			c.NotifyMaxRetries = n
		}
	}
	dur("NOTIFY_BACKOFF", &c.NotifyBackoff)

	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FILE", &c.LogFile)
	num("LOG_MAX_SIZE_MB", &c.LogMaxSizeMB)
	num("LOG_MAX_BACKUPS", &c.LogMaxBackups)

	return errors.Join(errs...)
}
