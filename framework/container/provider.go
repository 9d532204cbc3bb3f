package container

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups related registrations.
//
// Register is called first for every provider; Boot runs once all of them
// are registered, so it may resolve bindings from other providers.
//
//	type MailProvider struct{ container.BaseProvider }
//
//	func (p *MailProvider) Register(app *container.Container) {
//	    app.Singleton("mailer", func(c *container.Container) any {
//	        return mail.NewSMTP(container.Resolve[*config.Config](c, "config"))
//	    })
//	}
type ServiceProvider interface {
	// Register binds services into the container.
	Register(app *Container)

	// Boot is called after all providers are registered.
	Boot(app *Container)

	// Provides lists the abstracts a deferred provider registers.
	Provides() []string

	// IsDeferred reports whether Register should wait until one of
	// Provides() is first resolved.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider supplies no-op Boot, Provides and IsDeferred.
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container)  {}
func (p *BaseProvider) Provides() []string { return nil }
func (p *BaseProvider) IsDeferred() bool   { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry registers and boots the providers of one container.
type ProviderRegistry struct {
	app        *Container
	eager      []ServiceProvider
	deferred   map[string]ServiceProvider // abstract → provider
	booted     bool
	registered map[ServiceProvider]bool
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	return &ProviderRegistry{
		app:        app,
		deferred:   make(map[string]ServiceProvider),
		registered: make(map[ServiceProvider]bool),
	}
}

// Container returns the container the registry registers into.
func (r *ProviderRegistry) Container() *Container { return r.app }

// Register adds a provider and calls its Register() method (unless deferred).
// Registering the same provider twice is a no-op.
func (r *ProviderRegistry) Register(provider ServiceProvider) {
	r.register(provider, callerSource(1))
}

// register records src as the source of a deferred provider's placeholders,
// so a child's shadows point at the code that registered the provider.
func (r *ProviderRegistry) register(provider ServiceProvider, src Source) {
	if r.registered[provider] {
		return
	}
	r.registered[provider] = true

	if provider.IsDeferred() {
		for _, abstract := range provider.Provides() {
			r.deferred[abstract] = provider
		}
		r.interceptDeferred(provider, src)
		return
	}

	provider.Register(r.app)
	r.eager = append(r.eager, provider)

	if r.booted {
		provider.Boot(r.app)
	}
}

// interceptDeferred binds a placeholder for each deferred abstract. The first
// Make() swaps in the provider's real bindings.
func (r *ProviderRegistry) interceptDeferred(provider ServiceProvider, src Source) {
	for _, abstract := range provider.Provides() {
		r.app.register(abstract, func(c *Container) any {
			if r.deferred[abstract] != nil {
				for _, abs := range provider.Provides() {
					delete(r.deferred, abs)
				}
				provider.Register(c)
				if r.booted {
					provider.Boot(c)
				}
			}
			return c.Make(abstract)
		}, false, src)
	}
}

// Boot calls Boot() on all eager providers. Later calls are no-ops.
func (r *ProviderRegistry) Boot() {
	if r.booted {
		return
	}
	r.booted = true
	for _, provider := range r.eager {
		provider.Boot(r.app)
	}
}

// Booted returns true if Boot() has been called.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns all registered eager providers.
func (r *ProviderRegistry) Providers() []ServiceProvider { return r.eager }

// Child creates a child container with its own registry, registers
// providers into it and boots them. Bindings made by the providers shadow
// the same abstracts in every ancestor until the child is closed or
// collected.
//
//	child := registry.Child(&RequestProvider{})
//	defer child.Container().Close()
func (r *ProviderRegistry) Child(providers ...ServiceProvider) *ProviderRegistry {
	return r.ChildAt(callerSource(1), providers...)
}

// ChildAt is Child with the registration site of deferred providers given
// explicitly, for callers that wrap Child.
//
//	func (a *App) Scope(p ...container.ServiceProvider) *container.ProviderRegistry {
//	    return a.registry.ChildAt(container.Caller(1), p...)
//	}
func (r *ProviderRegistry) ChildAt(src Source, providers ...ServiceProvider) *ProviderRegistry {
	child := NewProviderRegistry(r.app.NewChild())
	for _, p := range providers {
		child.register(p, src)
	}
	child.Boot()
	return child
}
