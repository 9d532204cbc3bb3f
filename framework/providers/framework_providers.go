package providers

import (
	"github.com/rs/zerolog"

	"github.com/jhaber/guice/framework/config"
	"github.com/jhaber/guice/framework/container"
	"github.com/jhaber/guice/framework/logging"
	"github.com/jhaber/guice/framework/routing"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider loads the application configuration from .env and
// binds it into the container.
//
// Bound abstracts:
//   - "config"         → *config.Config
//   - "configuration"  → alias of "config"
type ConfigServiceProvider struct {
	container.BaseProvider
	EnvFiles []string
}

func (p *ConfigServiceProvider) Register(app *container.Container) {
	envFiles := p.EnvFiles
	app.Singleton("config", func(c *container.Container) any {
		return config.Load(envFiles...)
	})
	app.Alias("config", "configuration")
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider builds the zerolog logger from "config" and installs
// it as the global logger at boot.
//
// Bound abstracts:
//   - "logger"  → zerolog.Logger
type LoggingServiceProvider struct {
	container.BaseProvider
}

func (p *LoggingServiceProvider) Register(app *container.Container) {
	app.Singleton("logger", func(c *container.Container) any {
		cfg := container.Resolve[*config.Config](c, "config")
		return logging.New(cfg.Log, nil)
	})
}

func (p *LoggingServiceProvider) Boot(app *container.Container) {
	logging.SetGlobalLogger(container.Resolve[zerolog.Logger](app, "logger"))
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router.
//
// Bound abstracts:
//   - "router"  → *routing.Router
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.Container) {
	app.Singleton("router", func(c *container.Container) any {
		return routing.New(container.Resolve[zerolog.Logger](c, "logger"))
	})
}
