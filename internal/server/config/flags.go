package config

import (
	"flag"
	"os"
	"time"

	"github.com/glyphlab/moji/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-t int      default session TTL, minutes
//	-m int      maximum session TTL, minutes
//	-w int      bcrypt work factor
//	-o int      storage call timeout, seconds
//	-n int      max DB connections
//	-l string   log level (debug/info/warn/error)
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-t", "-m", "-w", "-o", "-n", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	sessionTTLDefault := fs.Int("t", int(config.SessionTTLDefault.Minutes()), "default session ttl (in minutes)")
	sessionTTLMax := fs.Int("m", int(config.SessionTTLMax.Minutes()), "maximum session ttl (in minutes)")
	storageTimeout := fs.Int("o", int(config.StorageTimeout.Seconds()), "storage call timeout (in seconds)")

	fs.IntVar(&config.BcryptCost, "w", config.BcryptCost, "bcrypt work factor")
	fs.IntVar(&config.MaxDBConns, "n", config.MaxDBConns, "max database connections")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTTLDefault = time.Duration(*sessionTTLDefault) * time.Minute
	config.SessionTTLMax = time.Duration(*sessionTTLMax) * time.Minute
	config.StorageTimeout = time.Duration(*storageTimeout) * time.Second
}
