// Package config parses the demo daemon's command-line flags, in the style
// of the example wordcountctl CLI: a plain struct of long/description tags
// parsed once at startup.
package config

import (
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// Config configures cmd/raftproxyd: which session to bind, how many demo
// requests to issue, and where to expose Prometheus metrics.
type Config struct {
	SessionID   string `long:"session-id" description:"Resume an existing session id instead of generating one"`
	Requests    int    `long:"requests" default:"5" description:"Number of demo command requests to submit"`
	MetricsAddr string `long:"metrics-addr" default:":9090" description:"Address to serve Prometheus metrics on"`
	Verbose     bool   `long:"verbose" description:"Enable debug-level logging"`
}

// Parse parses args (typically os.Args[1:]) into a Config.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}
	if _, err := flags.NewParser(cfg, flags.Default).ParseArgs(args); err != nil {
		return nil, errors.Wrap(err, "parsing command-line flags")
	}
	return cfg, nil
}
