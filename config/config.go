// Package config loads the process-wide configuration singleton: the
// debug flag, the default fragment fetch timeout, the debugger script
// link, the listen address, and the static asset cache lifetime. The
// engine itself never reads the environment — only config.Load does,
// and only when a caller (typically the CLI) asks it to.
package config

import (
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the process-wide configuration singleton.
type Config struct {
	Debug                bool          `env:"PUZZLE_DEBUG,default=false"`
	DefaultFragmentTimeout time.Duration `env:"PUZZLE_FRAGMENT_TIMEOUT,default=3s"`
	DebuggerLink         string        `env:"PUZZLE_DEBUGGER_LINK"`
	ListenAddr           string        `env:"PUZZLE_LISTEN_ADDR,default=:8080"`
	StaticCacheSeconds   int           `env:"PUZZLE_STATIC_CACHE_SECONDS,default=31557600"`
}

// StaticCacheMaxAge returns StaticCacheSeconds as a time.Duration.
func (c Config) StaticCacheMaxAge() time.Duration {
	return time.Duration(c.StaticCacheSeconds) * time.Second
}

// Default returns the configuration a caller gets without touching the
// environment at all — every field at its documented default.
func Default() Config {
	return Config{
		DefaultFragmentTimeout: 3 * time.Second,
		ListenAddr:             ":8080",
		StaticCacheSeconds:     31557600,
	}
}

// Load reads an optional .env file (missing is not an error) and then
// binds environment variables onto a Config, starting from Default's
// values as the fallback for anything unset.
func Load() (Config, error) {
	_ = godotenv.Load() // optional; absence is not an error

	cfg := Default()
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return cfg, err
	}
	return cfg, nil
}
