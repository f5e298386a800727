package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/config"
)

// Precedence for every setting: explicit flag > config file > flag default.

func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if cfgVal != "" {
		return cfgVal
	}
	return c.String(name)
}

func resolveInt(c *cli.Context, name string, cfgVal *int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	if cfgVal != nil {
		return *cfgVal
	}
	return c.Int(name)
}

func resolveInt64(c *cli.Context, name string, cfgVal int64) int64 {
	if c.IsSet(name) {
		return c.Int64(name)
	}
	if cfgVal != 0 {
		return cfgVal
	}
	return c.Int64(name)
}

func resolveBool(c *cli.Context, name string, cfgVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return cfgVal || c.Bool(name)
}

func resolveDuration(c *cli.Context, name string, cfgVal config.Duration) time.Duration {
	if c.IsSet(name) {
		return c.Duration(name)
	}
	if cfgVal.Duration != 0 {
		return cfgVal.Duration
	}
	return c.Duration(name)
}

// orDefault returns v, or def when v is empty.
func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
