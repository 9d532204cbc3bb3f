// Package container provides a hierarchical IoC container and the service
// provider system that fills it.
//
// Every binding is an explicit factory keyed by a string abstract. A
// container resolves its own bindings first and then asks its ancestors.
//
// # Lifecycle
//
//  1. c := container.New()
//  2. registry := container.NewProviderRegistry(c); registry.Register(...)
//  3. registry.Boot(); everything is resolvable from here on
//  4. per unit of work: scope := c.NewChild(), bind into it, scope.Close()
//
// # Bindings
//
//	c.Bind("clock", func(*container.Container) any { return time.Now })      // new value per Make
//	c.Singleton("db", func(c *container.Container) any { return openDB(c) }) // built once
//	c.Instance("config", cfg)                                                // prebuilt
//	c.Alias("config", "configuration")
//
//	db := container.Resolve[*sql.DB](c, "db")
//	db, ok := container.MustResolve[*sql.DB](c, "db")
//
// Tag, Extend, When/Needs/Give, Rebinding and AfterResolving work as in
// any Laravel-style container.
//
// # Child containers and shadowing
//
// A child may not bind an abstract that an ancestor binds; it panics with
// ErrBoundInParent. What a child does bind is recorded in every ancestor
// together with the call site of the registration:
//
//	scope := c.NewChild()
//	scope.Instance("request", req)   // handler.go:31
//
//	c.Shadowed("request")            // true
//	c.ShadowedAt("request")          // [handler.go:31]
//	c.Instance("request", other)     // panics with ErrShadowed
//	c.Make("request")                // panics, naming handler.go:31
//
// Ancestors hold their children weakly. The shadow goes away when the child
// is closed, or after a child that was simply dropped is garbage collected:
//
//	scope.Close()
//	c.Shadowed("request")            // false
//
// A closed child panics with ErrClosed on further registrations.
//
// # Service providers
//
// Register binds, Boot runs once every provider is registered. Deferred
// providers register on the first Make of one of their Provides():
//
//	type RequestProvider struct{ container.BaseProvider }
//
//	func (p *RequestProvider) Register(c *container.Container) {
//	    c.Singleton("request.id", func(*container.Container) any { return newID() })
//	}
//
// A registry spawns child containers configured by their own providers:
//
//	scoped := registry.Child(&RequestProvider{})
//	defer scoped.Container().Close()
package container
