package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrNoDatabase is returned alongside a usable Config when DATABASE_URL is
// unset. Callers may fall back to in-memory storage.
var ErrNoDatabase = errors.New("DATABASE_URL not set")

type Config struct {
	Env            string
	ListenAddr     string
	DatabaseURL    string
	ImportWorkers  int
	GeminiAPIKey   string
	GeminiModel    string
	CORSOrigins    []string
	MaxConns       int
	MaxUploadBytes int64
	Branches       []string
	SessionIdleTTL time.Duration
}

// Development reports whether the service runs with development defaults.
func (c Config) Development() bool { return c.Env == "" || c.Env == "development" }

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("IMPORT_WORKERS", 1)
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("MAX_CONNS", 256)
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("BRANCHES", "")
	v.SetDefault("SESSION_IDLE_TTL", "2h")
	return v
}

func Load() (Config, error) {
	v := newViper()
	cfg := Config{
		Env:            v.GetString("APP_ENV"),
		ListenAddr:     v.GetString("LISTEN_ADDR"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		ImportWorkers:  v.GetInt("IMPORT_WORKERS"),
		GeminiAPIKey:   v.GetString("GEMINI_API_KEY"),
		GeminiModel:    v.GetString("GEMINI_MODEL"),
		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
		MaxConns:       v.GetInt("MAX_CONNS"),
		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_MB") << 20,
		Branches:       splitList(v.GetString("BRANCHES")),
		SessionIdleTTL: v.GetDuration("SESSION_IDLE_TTL"),
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for local runs; callers decide.
		return cfg, ErrNoDatabase
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
