package container

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/jhaber/guice/framework/logging"
	"github.com/jhaber/guice/framework/weakkeyset"
)

// ── Binding types ─────────────────────────────────────────────────────────────

// Factory is a function that builds a concrete value from the container.
type Factory func(c *Container) any

// binding holds a registered factory and whether it is a singleton.
type binding struct {
	factory   Factory
	singleton bool
	source    Source
}

// extender wraps an already-resolved instance with decorator logic.
type extender func(instance any, c *Container) any

// shadowSet records which abstracts are bound by live child containers.
type shadowSet = weakkeyset.Set[string, Source, Container]

var (
	// ErrShadowed indicates a registration for an abstract that a live child
	// container already binds.
	ErrShadowed = errors.New("container: abstract is bound in a child container")
	// ErrBoundInParent indicates a child registration for an abstract an
	// ancestor already binds.
	ErrBoundInParent = errors.New("container: abstract is bound in a parent container")
	// ErrClosed indicates a registration on a closed child container.
	ErrClosed = errors.New("container: container is closed")
)

// ── Container ─────────────────────────────────────────────────────────────────

// Container is a hierarchical IoC container.
//
// It supports:
//   - Bind / Singleton / Instance / Alias
//   - Make / Resolve (generic)
//   - Tags (group multiple abstractions under one tag)
//   - Extend (decorate / wrap resolved instances)
//   - Contextual binding (when A needs B, give it C)
//   - Rebound and resolved callbacks
//   - Child containers that fall back to their parent
//
// A child's registrations shadow the abstract in every ancestor until the
// child is closed or garbage collected. While shadowed, the ancestor refuses
// to bind the abstract itself.
type Container struct {
	mu sync.RWMutex

	// nil for a root container
	parent *Container

	// abstract → binding
	bindings map[string]*binding

	// abstract → resolved singleton instance
	instances map[string]any

	// abstract → where Instance() was called
	instanceSources map[string]Source

	// alias → abstract (canonical key)
	aliases map[string]string

	// abstract → extender funcs
	extenders map[string][]extender

	// tag → []abstract
	tags map[string][]string

	// contextual: when[concrete][abstract] = factory
	contextual map[string]map[string]Factory

	// rebound callbacks: abstract → []func(any)
	reboundCallbacks map[string][]func(any)

	// resolved callbacks: []func(abstract, instance)
	afterResolving []func(string, any)

	// stack of abstracts currently being resolved (for contextual lookup)
	buildStack []string

	// abstract → sources in descendants, owned weakly by the descendant
	shadows *shadowSet

	closed bool
}

// New creates an empty root container.
func New() *Container {
	return newContainer(nil)
}

func newContainer(parent *Container) *Container {
	c := &Container{
		parent:           parent,
		bindings:         make(map[string]*binding),
		instances:        make(map[string]any),
		instanceSources:  make(map[string]Source),
		aliases:          make(map[string]string),
		extenders:        make(map[string][]extender),
		tags:             make(map[string][]string),
		contextual:       make(map[string]map[string]Factory),
		reboundCallbacks: make(map[string][]func(any)),
		shadows:          weakkeyset.New[string, Source, Container](weakkeyset.WithLogger(&logging.Logger)),
	}
	// Every container resolves "container" to itself; children override it
	// without shadowing the parent.
	c.instances["container"] = c
	return c
}

// NewChild creates a container that resolves through c for anything it
// does not bind itself. The child holds c; c only holds the child weakly.
func (c *Container) NewChild() *Container {
	child := newContainer(c)
	logging.Debug().Int("depth", child.depth()).Msg("child container created")
	return child
}

// Parent returns the parent container, or nil for a root.
func (c *Container) Parent() *Container { return c.parent }

func (c *Container) depth() int {
	n := 0
	for p := c.parent; p != nil; p = p.parent {
		n++
	}
	return n
}

// Close withdraws the child's shadows from every ancestor immediately,
// without waiting for the child to be collected. Calling Close more than
// once, or on a root, is a no-op.
func (c *Container) Close() {
	if c.parent == nil {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	for p := c.parent; p != nil; p = p.parent {
		p.mu.Lock()
		p.shadows.Release(c)
		p.mu.Unlock()
	}
	logging.Debug().Int("depth", c.depth()).Msg("child container closed")
}

// ── Registration ──────────────────────────────────────────────────────────────

// Bind registers a transient (new instance each Make) factory.
//
//	c.Bind("UserRepository", func(c *container.Container) any {
//	    return &SQLUserRepository{DB: Resolve[*sql.DB](c, "db")}
//	})
func (c *Container) Bind(abstract string, factory Factory) {
	c.register(abstract, factory, false, callerSource(1))
}

// Singleton registers a factory whose result is cached after first resolution.
//
//	c.Singleton("cache", func(c *container.Container) any {
//	    return cache.New(Resolve[*config.Config](c, "config"))
//	})
func (c *Container) Singleton(abstract string, factory Factory) {
	c.register(abstract, factory, true, callerSource(1))
}

// Instance registers a pre-built value as a singleton.
//
//	c.Instance("config", myConfig)
func (c *Container) Instance(abstract string, instance any) {
	src := callerSource(1)
	key := c.canonicalKey(abstract)
	c.checkAncestors(key)

	c.mu.Lock()
	if err := c.writable(key); err != nil {
		c.mu.Unlock()
		panic(err)
	}
	delete(c.bindings, key)
	c.instances[key] = instance
	c.instanceSources[key] = src
	c.mu.Unlock()

	c.shadowAncestors(key, src)
	c.fireRebound(abstract, instance)
}

func (c *Container) register(abstract string, factory Factory, singleton bool, src Source) {
	key := c.canonicalKey(abstract)
	c.checkAncestors(key)

	c.mu.Lock()
	if err := c.writable(key); err != nil {
		c.mu.Unlock()
		panic(err)
	}
	c.bind(key, abstract, factory, singleton, src)
	c.mu.Unlock()

	c.shadowAncestors(key, src)
}

// bind is the internal registration helper (must hold mu.Lock).
func (c *Container) bind(key, abstract string, factory Factory, singleton bool, src Source) {
	// Drop existing singleton instance so it's rebuilt with the new factory
	wasBound := c.instances[key] != nil
	delete(c.instances, key)
	delete(c.instanceSources, key)

	c.bindings[key] = &binding{factory: factory, singleton: singleton, source: src}

	if wasBound {
		c.mu.Unlock()
		c.fireRebound(abstract, c.make(abstract))
		c.mu.Lock()
	}
}

// Alias registers an alternative name for an abstract.
//
//	c.Alias("cache", "cacheManager")
func (c *Container) Alias(abstract, alias string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if abstract == alias {
		panic(fmt.Sprintf("container: [%s] is aliased to itself", abstract))
	}
	c.aliases[alias] = c.canonical(abstract)
}

// ── Shadowing ─────────────────────────────────────────────────────────────────

// writable rejects registrations on a closed container and for abstracts a
// live descendant binds (must hold mu.Lock).
func (c *Container) writable(key string) error {
	if c.closed {
		return fmt.Errorf("%w: cannot bind [%s]", ErrClosed, key)
	}
	if !c.shadows.IsPresent(key) {
		return nil
	}
	return fmt.Errorf("%w: [%s] at %s", ErrShadowed, key, joinSources(sortSources(c.shadows.Sources(key))))
}

// checkAncestors panics when an ancestor already binds key.
func (c *Container) checkAncestors(key string) {
	for p := c.parent; p != nil; p = p.parent {
		if src, ok := p.ownSource(key); ok {
			panic(fmt.Errorf("%w: [%s] at %s", ErrBoundInParent, key, src))
		}
	}
}

// shadowAncestors records key in every ancestor, owned by c.
func (c *Container) shadowAncestors(key string, src Source) {
	for p := c.parent; p != nil; p = p.parent {
		p.mu.Lock()
		p.shadows.Add(key, c, src)
		p.mu.Unlock()
	}
	if c.parent != nil {
		logging.Debug().Str("abstract", key).Stringer("source", src).Msg("binding shadows ancestors")
	}
}

// ownSource reports whether c itself binds key, and where.
func (c *Container) ownSource(key string) (Source, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if b, ok := c.bindings[key]; ok {
		return b.source, true
	}
	if _, ok := c.instances[key]; ok && key != "container" {
		return c.instanceSources[key], true
	}
	return Source{}, false
}

// Shadowed reports whether a live child container binds abstract.
func (c *Container) Shadowed(abstract string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shadows.IsPresent(c.canonical(abstract))
}

// ShadowedAt returns where live child containers bind abstract, sorted by
// file and line. It returns nil when abstract is not shadowed.
func (c *Container) ShadowedAt(abstract string) []Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortSources(c.shadows.Sources(c.canonical(abstract)))
}

// Shadows returns the number of abstracts currently shadowed by children.
func (c *Container) Shadows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shadows.Len()
}

// ── Contextual Binding ────────────────────────────────────────────────────────

// When starts a contextual binding chain.
//
//	c.When("PhotoController").Needs("Filesystem").Give(func(c *container.Container) any {
//	    return filesystem.NewS3(...)
//	})
func (c *Container) When(concrete string) *ContextualBuilder {
	return &ContextualBuilder{container: c, concrete: concrete}
}

// getContextual returns the contextual factory for (concrete, abstract), or nil.
func (c *Container) getContextual(concrete, abstract string) Factory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.contextual[concrete]; ok {
		if f, ok := m[abstract]; ok {
			return f
		}
	}
	return nil
}

// ── Extend ────────────────────────────────────────────────────────────────────

// Extend decorates the resolved instance of an abstract. An instance that is
// already resolved is passed through fn once and rebound.
//
//	c.Extend("logger", func(instance any, c *container.Container) any {
//	    return logging.NewTimestampWrapper(instance.(*Logger))
//	})
func (c *Container) Extend(abstract string, fn extender) {
	c.mu.Lock()
	key := c.canonical(abstract)
	c.extenders[key] = append(c.extenders[key], fn)
	inst, resolved := c.instances[key]
	c.mu.Unlock()
	if !resolved {
		return
	}

	// A resolved singleton only receives the new extender, run unlocked.
	extended := fn(inst, c)

	c.mu.Lock()
	c.instances[key] = extended
	c.mu.Unlock()
	c.fireRebound(abstract, extended)
}

// ── Tags ──────────────────────────────────────────────────────────────────────

// Tag associates multiple abstracts under a named group.
//
//	c.Tag([]string{"CpuReport", "MemoryReport"}, "reports")
func (c *Container) Tag(abstracts []string, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[tag] = append(c.tags[tag], abstracts...)
}

// Tagged resolves all abstracts registered under a tag.
//
//	reports := c.Tagged("reports")  // []any
func (c *Container) Tagged(tag string) []any {
	c.mu.RLock()
	abstracts := c.tags[tag]
	c.mu.RUnlock()

	result := make([]any, 0, len(abstracts))
	for _, abs := range abstracts {
		result = append(result, c.make(abs))
	}
	return result
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Make resolves an abstract from the container, falling back to ancestors.
//
//	repo := c.Make("UserRepository")
func (c *Container) Make(abstract string) any {
	return c.make(abstract)
}

// make is the internal resolver (no outer lock — individual ops lock as needed).
func (c *Container) make(abstract string) any {
	for owner := c; owner != nil; owner = owner.parent {
		if inst, ok := owner.resolveOwn(abstract); ok {
			return inst
		}
	}

	key := c.canonicalKey(abstract)
	if sources := c.ShadowedAt(key); len(sources) > 0 {
		panic(fmt.Sprintf("container: no binding registered for [%s]; it is bound only in child containers at %s",
			abstract, joinSources(sources)))
	}
	panic(fmt.Sprintf("container: no binding registered for [%s]", abstract))
}

// resolveOwn resolves abstract from c's own registrations only.
func (c *Container) resolveOwn(abstract string) (any, bool) {
	c.mu.RLock()
	key := c.canonical(abstract)
	if inst, ok := c.instances[key]; ok {
		c.mu.RUnlock()
		return inst, true
	}
	c.mu.RUnlock()

	// Check contextual binding (look at current build stack top)
	if len(c.buildStack) > 0 {
		caller := c.buildStack[len(c.buildStack)-1]
		if f := c.getContextual(caller, abstract); f != nil {
			return c.runFactory(key, f, false), true
		}
	}

	c.mu.RLock()
	b, ok := c.bindings[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return c.runFactory(key, b.factory, b.singleton), true
}

// runFactory executes a factory, optionally caching the result.
func (c *Container) runFactory(key string, f Factory, singleton bool) any {
	c.buildStack = append(c.buildStack, key)

	instance := f(c)

	c.buildStack = c.buildStack[:len(c.buildStack)-1]

	c.mu.RLock()
	exts := slices.Clone(c.extenders[key])
	c.mu.RUnlock()
	for _, ext := range exts {
		instance = ext(instance, c)
	}

	if singleton {
		c.mu.Lock()
		c.instances[key] = instance
		c.mu.Unlock()
	}

	c.fireAfterResolving(key, instance)
	return instance
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// Bound returns true if an abstract is registered here or in an ancestor.
func (c *Container) Bound(abstract string) bool {
	for owner := c; owner != nil; owner = owner.parent {
		owner.mu.RLock()
		key := owner.canonical(abstract)
		_, hasBinding := owner.bindings[key]
		_, hasInstance := owner.instances[key]
		owner.mu.RUnlock()
		if hasBinding || hasInstance {
			return true
		}
	}
	return false
}

// Resolved returns true if the abstract has been resolved at least once.
func (c *Container) Resolved(abstract string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key := c.canonical(abstract)
	_, ok := c.instances[key]
	return ok
}

// Forget removes all registrations for an abstract (binding + instance).
// Shadows the abstract left in ancestors stay until the container is closed
// or collected.
func (c *Container) Forget(abstract string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.canonical(abstract)
	delete(c.bindings, key)
	delete(c.instances, key)
	delete(c.instanceSources, key)
}

// Flush resets the container's own registrations. Shadows recorded by
// children are kept.
func (c *Container) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = make(map[string]*binding)
	c.instances = map[string]any{"container": c}
	c.instanceSources = make(map[string]Source)
	c.aliases = make(map[string]string)
	c.extenders = make(map[string][]extender)
	c.tags = make(map[string][]string)
	c.contextual = make(map[string]map[string]Factory)
}

// Bindings returns a copy of all registered abstract keys (for debugging).
func (c *Container) Bindings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.bindings)+len(c.instances))
	for k := range c.bindings {
		out = append(out, k)
	}
	for k := range c.instances {
		if _, already := c.bindings[k]; !already {
			out = append(out, k)
		}
	}
	return out
}

// canonical resolves an alias to its canonical key (must hold mu).
func (c *Container) canonical(abstract string) string {
	if target, ok := c.aliases[abstract]; ok {
		return target
	}
	return abstract
}

func (c *Container) canonicalKey(abstract string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.canonical(abstract)
}

// ── Callbacks ─────────────────────────────────────────────────────────────────

// Rebinding registers a callback to be called whenever an abstract is re-bound.
func (c *Container) Rebinding(abstract string, cb func(any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reboundCallbacks[abstract] = append(c.reboundCallbacks[abstract], cb)
}

// AfterResolving registers a callback fired after any abstract is resolved.
func (c *Container) AfterResolving(cb func(abstract string, instance any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterResolving = append(c.afterResolving, cb)
}

func (c *Container) fireRebound(abstract string, instance any) {
	c.mu.RLock()
	cbs := c.reboundCallbacks[abstract]
	c.mu.RUnlock()
	for _, cb := range cbs {
		cb(instance)
	}
}

func (c *Container) fireAfterResolving(abstract string, instance any) {
	c.mu.RLock()
	cbs := c.afterResolving
	c.mu.RUnlock()
	for _, cb := range cbs {
		cb(abstract, instance)
	}
}

// ── Reflect helpers ───────────────────────────────────────────────────────────

// TypeKey returns the package-qualified type name of v, useful as a stable
// abstract key when working with interfaces.
//
//	key := container.TypeKey((*UserRepository)(nil))  // "main.UserRepository"
//	c.Singleton(key, factory)
//	repo := container.Resolve[UserRepository](c, key)
func TypeKey(v any) string {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.PkgPath() + "." + t.Name()
}

// ── Generics helper ───────────────────────────────────────────────────────────

// Resolve is a generic helper that calls Make and type-asserts the result.
//
//	db := container.Resolve[*sql.DB](c, "db")
func Resolve[T any](c *Container, abstract string) T {
	instance := c.Make(abstract)
	typed, ok := instance.(T)
	if !ok {
		panic(fmt.Sprintf("container: Resolve[%T]: [%s] resolved to %T", *new(T), abstract, instance))
	}
	return typed
}

// MustResolve is like Resolve but returns (T, bool) without panicking on a
// type mismatch.
func MustResolve[T any](c *Container, abstract string) (T, bool) {
	instance := c.Make(abstract)
	typed, ok := instance.(T)
	return typed, ok
}
