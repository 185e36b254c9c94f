package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/csvkeeper/internal/flagx"
	"github.com/dmitrijs2005/csvkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "720h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. Fields are pointers so that keys absent from the file
// leave the current value untouched.
type JsonConfig struct {
	EndpointAddrGRPC            *string         `json:"endpoint_addr_grpc"`
	SecretKey                   *string         `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`

	MetadataBackend *string `json:"metadata_backend"`
	DatabaseDSN     *string `json:"database_dsn"`
	BoltPath        *string `json:"bolt_path"`

	BlobBackend    *string `json:"blob_backend"`
	BlobDir        *string `json:"blob_dir"`
	S3RootUser     *string `json:"s3_root_user"`
	S3RootPassword *string `json:"s3_root_password"`
	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`

	MasterKey        *string `json:"master_key"`
	MasterPassphrase *string `json:"master_passphrase"`
	MasterSalt       *string `json:"master_salt"`

	RetentionWindow   *timex.Duration `json:"retention_window"`
	RetentionSchedule *string         `json:"retention_schedule"`
	SweepConcurrency  *int            `json:"sweep_concurrency"`

	UploadConcurrency *int   `json:"upload_concurrency"`
	MaxUploadBytes    *int64 `json:"max_upload_bytes"`

	NotifyWorkers    *int            `json:"notify_workers"`
	NotifyQueueSize  *int            `json:"notify_queue_size"`
	NotifyMaxRetries *uint64         `json:"notify_max_retries"`
	NotifyBackoff    *timex.Duration `json:"notify_backoff"`

	LogLevel      *string `json:"log_level"`
	LogFile       *string `json:"log_file"`
	LogMaxSizeMB  *int    `json:"log_max_size_mb"`
	LogMaxBackups *int    `json:"log_max_backups"`
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The JSON file path comes from the -c or -config command-line flags. If it
// is not set, no JSON file is loaded. If the file cannot be read or contains
// invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

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

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	set(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	set(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}

	set(&config.MetadataBackend, c.MetadataBackend)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.BoltPath, c.BoltPath)

	set(&config.BlobBackend, c.BlobBackend)
	set(&config.BlobDir, c.BlobDir)
	set(&config.S3RootUser, c.S3RootUser)
	set(&config.S3RootPassword, c.S3RootPassword)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	set(&config.MasterKey, c.MasterKey)
	set(&config.MasterPassphrase, c.MasterPassphrase)
	set(&config.MasterSalt, c.MasterSalt)

	if c.RetentionWindow != nil {
		config.RetentionWindow = c.RetentionWindow.Duration
	}
	set(&config.RetentionSchedule, c.RetentionSchedule)
	set(&config.SweepConcurrency, c.SweepConcurrency)

	set(&config.UploadConcurrency, c.UploadConcurrency)
	set(&config.MaxUploadBytes, c.MaxUploadBytes)

	set(&config.NotifyWorkers, c.NotifyWorkers)
	set(&config.NotifyQueueSize, c.NotifyQueueSize)
	set(&config.NotifyMaxRetries, c.NotifyMaxRetries)
	if c.NotifyBackoff != nil {
		config.NotifyBackoff = c.NotifyBackoff.Duration
	}

	set(&config.LogLevel, c.LogLevel)
	set(&config.LogFile, c.LogFile)
	set(&config.LogMaxSizeMB, c.LogMaxSizeMB)
	set(&config.LogMaxBackups, c.LogMaxBackups)
}
