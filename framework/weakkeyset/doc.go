// Package weakkeyset tracks keys that are asserted by short-lived owners and
// forgets them once those owners are gone.
//
// # Overview
//
// A Set maps a key to the sources it was registered from. Every Add ties one
// (key, source) pair to an owner. The set never keeps an owner alive: when the
// garbage collector reclaims the owner, the runtime queues the pair for
// removal and the next call on the set applies it.
//
//	shadows := weakkeyset.New[string, any, Container]()
//	shadows.Add("mailer", child, "providers.go:42")
//
//	shadows.IsPresent("mailer") // true while child is reachable
//	shadows.Sources("mailer")   // ["providers.go:42"]
//
// # Owner counts
//
// The same (key, source) pair may be asserted by several owners. The pair
// stays visible until every one of them has been collected or released.
// Adding the same pair twice for the same owner counts twice.
//
// # Deterministic release
//
// Collection timing is up to the runtime. Callers that know an owner is done
// can call Release to drop its pairs immediately; the pending runtime
// notifications for that owner are cancelled.
//
// # Concurrency
//
// A Set is not safe for concurrent use. Callers serialize access with their
// own lock. The only internal synchronization guards the queue that runtime
// cleanups write into.
package weakkeyset
