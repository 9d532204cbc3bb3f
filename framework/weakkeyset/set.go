package weakkeyset

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"weak"

	"github.com/rs/zerolog"
)

// ErrInvalidArgument is wrapped by the panic raised when Add is called with a
// nil key or when Add or Release is called with a nil owner. Zero values of
// non-nillable key types, such as 0 or "", are valid keys.
var ErrInvalidArgument = errors.New("weakkeyset: invalid argument")

// link is one ownership edge created by Add.
type link[K, S comparable, O any] struct {
	key     K
	source  S
	owner   weak.Pointer[O]
	cleanup runtime.Cleanup

	// applied is set once the link has been subtracted from the counts.
	applied bool
}

// Option configures a Set.
type Option func(*options)

type options struct {
	log *zerolog.Logger
}

// WithLogger sets the logger used for eviction debug events. The pointer is
// read on every event, so a logger swapped in later is picked up.
func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// Set is a key → sources registry whose entries are owned weakly.
type Set[K, S comparable, O any] struct {
	// key → source → number of live links
	entries map[K]map[S]int

	// weak owner handle → links it established
	owners map[weak.Pointer[O]]map[*link[K, S, O]]struct{}

	// fed by runtime cleanups, consumed by drain
	pending *queue[*link[K, S, O]]

	log *zerolog.Logger
}

// New creates an empty Set.
func New[K, S comparable, O any](opts ...Option) *Set[K, S, O] {
	nop := zerolog.Nop()
	o := options{log: &nop}
	for _, fn := range opts {
		fn(&o)
	}
	return &Set[K, S, O]{
		entries: make(map[K]map[S]int),
		owners:  make(map[weak.Pointer[O]]map[*link[K, S, O]]struct{}),
		pending: &queue[*link[K, S, O]]{},
		log:     o.log,
	}
}

// Add attributes key to source for as long as owner is reachable.
//
// The set holds key and source strongly and owner weakly. Each call is an
// independent link, so two calls with the same owner need two evictions.
//
// Precondition: key and source are used as map keys, so when K or S is an
// interface type their dynamic values must be comparable. An uncomparable
// value such as a slice or map makes Add panic with a runtime error and
// leaves the set unchanged. A nil source is allowed.
func (s *Set[K, S, O]) Add(key K, owner *O, source S) {
	if isNil(key) {
		panic(fmt.Errorf("%w: nil key", ErrInvalidArgument))
	}
	if owner == nil {
		panic(fmt.Errorf("%w: nil owner", ErrInvalidArgument))
	}
	s.drain()

	// Both lookups hash their argument, so an unhashable key or source
	// panics here, before anything is recorded.
	sources, ok := s.entries[key]
	_ = sources[source]
	if !ok {
		sources = make(map[S]int)
		s.entries[key] = sources
	}
	sources[source]++

	l := &link[K, S, O]{key: key, source: source, owner: weak.Make(owner)}
	links, ok := s.owners[l.owner]
	if !ok {
		links = make(map[*link[K, S, O]]struct{})
		s.owners[l.owner] = links
	}
	links[l] = struct{}{}

	// The cleanup must not reach owner, or owner would never be collected.
	l.cleanup = runtime.AddCleanup(owner, s.pending.push, l)
}

// IsPresent reports whether key has at least one live source.
func (s *Set[K, S, O]) IsPresent(key K) bool {
	s.drain()
	_, ok := s.entries[key]
	return ok
}

// Sources returns the distinct sources currently attributed to key, in no
// particular order. It returns nil when key is absent.
func (s *Set[K, S, O]) Sources(key K) []S {
	s.drain()
	sources, ok := s.entries[key]
	if !ok {
		return nil
	}
	out := make([]S, 0, len(sources))
	for src := range sources {
		out = append(out, src)
	}
	return out
}

// Len returns the number of keys with at least one live source.
func (s *Set[K, S, O]) Len() int {
	s.drain()
	return len(s.entries)
}

// Owners returns the number of owners that still hold at least one link.
func (s *Set[K, S, O]) Owners() int {
	s.drain()
	return len(s.owners)
}

// Release drops every link owner established, without waiting for the
// garbage collector. Releasing an owner with no links is a no-op.
func (s *Set[K, S, O]) Release(owner *O) {
	if owner == nil {
		panic(fmt.Errorf("%w: nil owner", ErrInvalidArgument))
	}
	s.drain()

	// owner is reachable here, so none of its cleanups can have been queued.
	for l := range s.owners[weak.Make(owner)] {
		l.cleanup.Stop()
		s.apply(l)
	}
	runtime.KeepAlive(owner)
}

// isNil reports whether v is a nil pointer, channel or interface.
func isNil[T comparable](v T) bool {
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// drain applies every link queued by the runtime since the last call.
func (s *Set[K, S, O]) drain() {
	for _, l := range s.pending.take() {
		s.apply(l)
	}
}

// apply subtracts one link from the counts. Missing entries and links that
// were already applied are ignored.
func (s *Set[K, S, O]) apply(l *link[K, S, O]) {
	if l.applied {
		return
	}
	l.applied = true

	if links, ok := s.owners[l.owner]; ok {
		delete(links, l)
		if len(links) == 0 {
			delete(s.owners, l.owner)
		}
	}

	sources, ok := s.entries[l.key]
	if !ok {
		return
	}
	n, ok := sources[l.source]
	if !ok {
		return
	}
	if n > 1 {
		sources[l.source] = n - 1
		return
	}

	delete(sources, l.source)
	s.log.Debug().
		Interface("key", l.key).
		Interface("source", l.source).
		Msg("source evicted")

	if len(sources) == 0 {
		delete(s.entries, l.key)
		s.log.Debug().Interface("key", l.key).Msg("key evicted")
	}
}
