package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/flagx"
)

// Flags lists the global flags consumed by LoadConfig, including the JSON
// config flags. Command parsers drop them with flagx.RemainingArgs.
var Flags = []string{"-a", "-t", "-token", "-c", "-config"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     address and port of the backend server (default from Config)
//	-t int        request timeout in seconds (default from Config)
//	-token string access token
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with command arguments.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-token"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.AccessToken, "token", cfg.AccessToken, "access token")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
