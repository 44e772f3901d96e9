package config

import "os"

// parseEnv overlays environment values. DATABASE_DSN is the single
// connection-string variable the core depends on; everything else stays in
// the file/flag layers.
func parseEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.DatabaseDSN = dsn
	}
}
