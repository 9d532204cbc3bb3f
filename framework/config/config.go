package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("config: invalid value")

// Config is the central typed configuration struct.
type Config struct {
	App AppConfig
	Log LogConfig
}

type AppConfig struct {
	Name  string
	Env   string // local | production | testing
	Debug bool
	Port  string

	// DebugRoutes mounts /debug/bindings and /debug/shadows/{abstract}.
	DebugRoutes bool

	ShutdownTimeout time.Duration
}

// Addr is the listen address for Port.
func (a AppConfig) Addr() string { return ":" + a.Port }

type LogConfig struct {
	Level  string // trace | debug | info | warn | error
	Format string // console | json
}

// Load reads the given dotenv files (.env by default) and populates a Config
// from environment variables. Missing files are ignored and variables already
// set in the environment win over file values.
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	_ = godotenv.Load(files...)

	debug := envBool("APP_DEBUG", false)
	level := "info"
	if debug {
		level = "debug"
	}

	return &Config{
		App: AppConfig{
			Name:            envString("APP_NAME", "guice"),
			Env:             envString("APP_ENV", "local"),
			Debug:           debug,
			Port:            envString("APP_PORT", "8000"),
			DebugRoutes:     envBool("APP_DEBUG_ROUTES", true),
			ShutdownTimeout: time.Duration(envInt("APP_SHUTDOWN_TIMEOUT", 5)) * time.Second,
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", level),
			Format: envString("LOG_FORMAT", "console"),
		},
	}
}

// Validate reports the first setting the server cannot start with.
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.App.Port); err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("%w: APP_PORT %q", ErrInvalid, c.App.Port)
	}
	if c.App.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: APP_SHUTDOWN_TIMEOUT must be positive", ErrInvalid)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("%w: LOG_FORMAT %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// ── helpers ─────────────────────────────────────────────────────────────────

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return i
}

func envBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}
