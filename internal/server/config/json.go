package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/sqlidentity/internal/flagx"
	"github.com/dmitrijs2005/sqlidentity/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration so
// both "5s" and integer nanoseconds are accepted. Pointers and zero values
// mark keys that were left out; those keep the current setting.
type JsonConfig struct {
	HTTPAddr         string         `json:"http_addr"`
	DatabaseURI      string         `json:"database_uri"`
	PoolSize         int            `json:"pool_size"`
	ResponseHeader   string         `json:"response_header"`
	Variant          *string        `json:"variant"`
	OperationTimeout timex.Duration `json:"operation_timeout"`
	LogLevel         string         `json:"log_level"`
	LogFile          *string        `json:"log_file"`
}

// parseJson overlays the JSON file named by -c or -config onto config.
// Without either flag nothing is loaded. An unreadable file or invalid JSON
// panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile()

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

	if c.HTTPAddr != "" {
		config.HTTPAddr = c.HTTPAddr
	}
	if c.DatabaseURI != "" {
		config.DatabaseURI = c.DatabaseURI
	}
	if c.PoolSize != 0 {
		config.PoolSize = c.PoolSize
	}
	if c.ResponseHeader != "" {
		config.ResponseHeader = c.ResponseHeader
	}
	if c.Variant != nil {
		config.Variant = *c.Variant
	}
	if c.OperationTimeout.Duration != 0 {
		config.OperationTimeout = c.OperationTimeout.Duration
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
	if c.LogFile != nil {
		config.LogFile = *c.LogFile
	}
}
