package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {

	tests := []struct {
		expected    func() *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all short flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-d", "db", "-s", "secret", "-t", "60",
			"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
			"-m", "bolt", "-o", "meta.db", "-x", "local", "-l", "/data", "-k", "ff",
			"-w", "240h", "-n", "0 3 * * *", "-v", "debug",
		}, expected: func() *Config {
			c := defaults()
			c.EndpointAddrGRPC = "127.0.0.1:9090"
			c.DatabaseDSN = "db"
			c.SecretKey = "secret"
			c.AccessTokenValidityDuration = time.Hour
			c.S3RootUser = "user"
			c.S3RootPassword = "password"
			c.S3Bucket = "bucket"
			c.S3Region = "us-west-1"
			c.S3BaseEndpoint = "http://endpoint"
			c.MetadataBackend = "bolt"
			c.BoltPath = "meta.db"
			c.BlobBackend = "local"
			c.BlobDir = "/data"
			c.MasterKey = "ff"
			c.RetentionWindow = 240 * time.Hour
			c.RetentionSchedule = "0 3 * * *"
			c.LogLevel = "debug"
			return c
		}},
		{name: "unrelated flags ignored", args: []string{"cmd", "token", "-owner", "o1", "-a", ":7000"},
			expected: func() *Config {
				c := defaults()
				c.EndpointAddrGRPC = ":7000"
				return c
			}},
		{name: "bad duration", args: []string{"cmd", "-w", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origArgs := os.Args
			t.Cleanup(func() { os.Args = origArgs })
			os.Args = tt.args

			config := defaults()

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(tt.expected(), config))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
