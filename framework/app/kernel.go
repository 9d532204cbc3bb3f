package app

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/jhaber/guice/framework/config"
	"github.com/jhaber/guice/framework/container"
	gohttp "github.com/jhaber/guice/framework/http"
	"github.com/jhaber/guice/framework/logging"
	"github.com/jhaber/guice/framework/providers"
	"github.com/jhaber/guice/framework/routing"
)

// Application is the top-level application container.
// It embeds the root Container and its ProviderRegistry so user code can
// call app.Bind(), app.Singleton(), app.Register() directly.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry
}

// New creates the application and registers the framework providers.
func New(envFiles ...string) *Application {
	c := container.New()
	registry := container.NewProviderRegistry(c)

	app := &Application{
		Container: c,
		Providers: registry,
	}

	registry.Register(&providers.ConfigServiceProvider{EnvFiles: envFiles})
	registry.Register(&providers.LoggingServiceProvider{})
	registry.Register(&providers.RoutingServiceProvider{})

	return app
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(provider container.ServiceProvider) {
	a.Providers.Register(provider)
}

// Boot runs the Boot() phase on all providers and mounts the debug routes
// unless APP_DEBUG_ROUTES is off.
func (a *Application) Boot() {
	if a.Providers.Booted() {
		return
	}
	a.Providers.Boot()
	if a.Config().App.DebugRoutes {
		a.Router().Prefix("/debug", a.debugRoutes)
	}
}

// Scope creates a child container configured by providers.
// Close the returned container once the scope is done with.
func (a *Application) Scope(providers ...container.ServiceProvider) *container.Container {
	return a.Providers.ChildAt(container.Caller(1), providers...).Container()
}

// Config resolves *config.Config from the container.
func (a *Application) Config() *config.Config {
	return container.Resolve[*config.Config](a.Container, "config")
}

// Router resolves *routing.Router from the container.
func (a *Application) Router() *routing.Router {
	return container.Resolve[*routing.Router](a.Container, "router")
}

// Run boots the application (if needed) and serves HTTP until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	cfg := a.Config()
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.Boot()

	srv := &http.Server{
		Addr:              cfg.App.Addr(),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("app", cfg.App.Name).
			Str("env", cfg.App.Env).
			Str("addr", srv.Addr).
			Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	logging.Info().Msg("server shutting down")
	err := srv.Shutdown(shutdownCtx)

	// Run returns only once the serve goroutine has exited.
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	return err
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.Config().App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.Config().App.Debug }

// ── Debug routes ─────────────────────────────────────────────────────────────

// ShadowReport describes whether child containers bind an abstract.
type ShadowReport struct {
	Abstract string   `json:"abstract"`
	Shadowed bool     `json:"shadowed"`
	Sources  []string `json:"sources"`
}

// Shadow reports the current shadow state of abstract in the root container.
func (a *Application) Shadow(abstract string) ShadowReport {
	at := a.ShadowedAt(abstract)
	sources := make([]string, len(at))
	for i, s := range at {
		sources[i] = s.String()
	}
	return ShadowReport{
		Abstract: abstract,
		Shadowed: len(at) > 0,
		Sources:  sources,
	}
}

func (a *Application) debugRoutes(r *routing.Router) {
	r.Get("/bindings", func(w http.ResponseWriter, req *http.Request) {
		bindings := a.Bindings()
		sort.Strings(bindings)
		gohttp.NewResponse(w).Success(bindings)
	})

	r.Get("/shadows/{abstract}", func(w http.ResponseWriter, req *http.Request) {
		res := gohttp.NewResponse(w)
		abstract := gohttp.NewRequest(req).RouteParam("abstract")
		report := a.Shadow(abstract)
		if !report.Shadowed && gohttp.NewRequest(req).QueryBool("strict") {
			res.NotFound("[" + abstract + "] is not shadowed.")
			return
		}
		res.Success(report)
	})
}
