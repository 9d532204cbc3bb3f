package container

import "fmt"

// ContextualBuilder configures what an abstract resolves to while a specific
// concrete is being built.
//
//	c.When("PhotoController").Needs("Filesystem").Give(func(c *container.Container) any {
//	    return filesystem.NewS3(...)
//	})
//
// Contextual bindings are local to the container they are declared on and do
// not shadow anything in ancestors.
type ContextualBuilder struct {
	container *Container
	concrete  string
	needs     string
}

// Needs names the dependency being overridden.
func (b *ContextualBuilder) Needs(abstract string) *ContextualBuilder {
	b.needs = abstract
	return b
}

// Give sets the factory used for the dependency.
func (b *ContextualBuilder) Give(factory Factory) {
	if b.needs == "" {
		panic(fmt.Sprintf("container: contextual binding for [%s] is missing Needs()", b.concrete))
	}

	c := b.container
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.contextual[b.concrete]
	if !ok {
		m = make(map[string]Factory)
		c.contextual[b.concrete] = m
	}
	m[b.needs] = factory
}

// GiveValue is Give for a pre-built value.
//
//	c.When("PhotoController").Needs("storagePath").GiveValue("/tmp/photos")
func (b *ContextualBuilder) GiveValue(value any) {
	b.Give(func(*Container) any { return value })
}
