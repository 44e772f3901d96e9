package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/glyphlab/moji/internal/flagx"
)

// duration wraps time.Duration to accept JSON strings such as "30m" as well
// as integer nanoseconds.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		d.Duration = time.Duration(t)
		return nil
	case string:
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return &json.UnsupportedTypeError{}
	}
}

// jsonConfig is the intermediate DTO for the JSON file layer. Zero values
// mean "not set" and leave the current Config value alone.
type jsonConfig struct {
	DatabaseDSN       string   `json:"database_dsn"`
	SessionTTLDefault duration `json:"session_ttl_default"`
	SessionTTLMax     duration `json:"session_ttl_max"`
	BcryptCost        int      `json:"bcrypt_cost"`
	StorageTimeout    duration `json:"storage_timeout"`
	MaxDBConns        int      `json:"max_db_conns"`
	LogLevel          string   `json:"log_level"`
}

// parseJSON overlays values from the JSON file named by the -c/-config flag,
// if any. Malformed files panic: a half-applied config is worse than a crash
// at startup.
func parseJSON(config *Config) {
	jsonConfigFile := flagx.JSONConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &jsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SessionTTLDefault.Duration > 0 {
		config.SessionTTLDefault = c.SessionTTLDefault.Duration
	}
	if c.SessionTTLMax.Duration > 0 {
		config.SessionTTLMax = c.SessionTTLMax.Duration
	}
	if c.BcryptCost > 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.StorageTimeout.Duration > 0 {
		config.StorageTimeout = c.StorageTimeout.Duration
	}
	if c.MaxDBConns > 0 {
		config.MaxDBConns = c.MaxDBConns
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
}
