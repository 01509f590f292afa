// Package local implements an in-process Transport backed by a listener
// registry, used for tests and for composing uEntities that live in the
// same process.
package local

import (
	"reflect"
	"sync"

	"github.com/eclipse-uprotocol/up-go/transport"
	"github.com/eclipse-uprotocol/up-go/uri"
)

// registration is one (sourceFilter, sinkFilter, listener) triple.
type registration struct {
	sourceFilter uri.URI
	sinkFilter   *uri.URI
	listener     transport.Listener
}

// registry holds the set of active listener registrations and dispatches
// inbound messages by matching filters against a message's actual
// source/sink. Listener identity is by reference: the same handler
// registered under two different (source, sink) pairs is two entries, but
// registering the identical triple twice is rejected.
type registry struct {
	mu   sync.RWMutex
	regs []registration
}

func newRegistry() *registry {
	return &registry{}
}

// add inserts reg, returning false if an identical triple is already
// present.
func (r *registry) add(reg registration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.regs {
		if sameRegistration(existing, reg) {
			return false
		}
	}
	r.regs = append(r.regs, reg)
	return true
}

// remove deletes the first registration exactly matching reg, returning
// false if none was found.
func (r *registry) remove(reg registration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.regs {
		if sameRegistration(existing, reg) {
			r.regs = append(r.regs[:i], r.regs[i+1:]...)
			return true
		}
	}
	return false
}

// matching returns every registered listener whose filters match the
// given actual source/sink.
func (r *registry) matching(source uri.URI, sink *uri.URI) []transport.Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []transport.Listener
	for _, reg := range r.regs {
		if !reg.sourceFilter.Matches(source) {
			continue
		}
		if !sinkMatches(reg.sinkFilter, sink) {
			continue
		}
		out = append(out, reg.listener)
	}
	return out
}

func sinkMatches(filter, actual *uri.URI) bool {
	if filter == nil {
		return actual == nil
	}
	if actual == nil {
		return false
	}
	return filter.Matches(*actual)
}

func sameRegistration(a, b registration) bool {
	if a.sourceFilter != b.sourceFilter {
		return false
	}
	if (a.sinkFilter == nil) != (b.sinkFilter == nil) {
		return false
	}
	if a.sinkFilter != nil && *a.sinkFilter != *b.sinkFilter {
		return false
	}
	return sameListener(a.listener, b.listener)
}

// sameListener compares two Listener values by reference identity rather
// than by value, so a freshly built equivalent listener never collides
// with one already registered.
func sameListener(a, b transport.Listener) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Type() != bv.Type() {
		return false
	}
	switch av.Kind() {
	case reflect.Func, reflect.Ptr, reflect.Chan, reflect.Map, reflect.UnsafePointer:
		return av.Pointer() == bv.Pointer()
	default:
		return a == b
	}
}
