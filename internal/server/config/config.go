// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"time"

	"github.com/dmitrijs2005/sqlidentity/internal/common"
)

// Config holds runtime settings for the sqlidentity server.
//
// Fields:
//   - HTTPAddr: bind address of the HTTP API.
//   - DatabaseURI: mysql://, postgres:// (postgresql://) or a SQLite path.
//   - PoolSize: connections in the pool, also the number of store workers.
//   - ResponseHeader: header that carries newly issued tokens.
//   - Variant: forces a backend ("sqlite", "mysql", "postgres"); empty means
//     sniff it from DatabaseURI.
//   - OperationTimeout: upper bound for a single store call.
//   - LogLevel / LogFile: logger settings; an empty LogFile logs to stdout.
type Config struct {
	HTTPAddr         string
	DatabaseURI      string
	PoolSize         int
	ResponseHeader   string
	Variant          string
	OperationTimeout time.Duration
	LogLevel         string
	LogFile          string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.DatabaseURI = "sqlite://identities.db"
	c.PoolSize = common.DefaultPoolSize
	c.ResponseHeader = common.DefaultResponseHeaderName
	c.Variant = ""
	c.OperationTimeout = 5 * time.Second
	c.LogLevel = "info"
	c.LogFile = ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
