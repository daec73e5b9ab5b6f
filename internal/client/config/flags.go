package config

import (
	"flag"
	"strings"
	"time"

	"github.com/dmitrijs2005/pdfsigner/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-s string   base URL of the signing server
//	-t int      request timeout in seconds
//
// Only the flags listed here are looked at, so other components can share
// the same argument list.
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-s", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "base URL of the signing server")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
