package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/sqlidentity/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   database URI
//	-p int      connection pool size
//	-r string   response header for issued tokens
//	-v string   forced backend variant
//	-t int      store operation timeout, seconds
//	-l string   log level
//	-f string   log file
//
// The arguments are first filtered with flagx.FilterArgs so the -c/-config
// flag consumed by parseJson does not trip this flag set.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-p", "-r", "-v", "-t", "-l", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseURI, "d", config.DatabaseURI, "database URI (mysql://, postgres://, or a SQLite path)")
	fs.IntVar(&config.PoolSize, "p", config.PoolSize, "connection pool size")
	fs.StringVar(&config.ResponseHeader, "r", config.ResponseHeader, "response header for issued tokens")
	fs.StringVar(&config.Variant, "v", config.Variant, "force backend variant (sqlite, mysql, postgres)")

	operationTimeout := fs.Int("t", int(config.OperationTimeout.Seconds()), "store operation timeout (in seconds)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&config.LogFile, "f", config.LogFile, "log file (stdout if empty)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// only an explicit -t overrides, sub-second values from JSON survive
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.OperationTimeout = time.Duration(*operationTimeout) * time.Second
		}
	})
}
