package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Addr is the HTTP listen address.
	Addr string
	// LogFile receives the rotated log stream.
	LogFile string
	// Origins are websocket origin patterns; empty means same-origin only.
	Origins []string
}

// Load reads .env if present, then the environment, falling back to
// defaults suitable for local runs.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Addr:    ":8080",
		LogFile: "stickduel.log",
	}
	if v := os.Getenv("STICKDUEL_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("STICKDUEL_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("STICKDUEL_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Origins = append(cfg.Origins, o)
			}
		}
	}
	return cfg
}
