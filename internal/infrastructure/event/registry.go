package event

import (
	"slices"
	"sync"

	"github.com/storefront/backend/internal/domain/shared"
)

// subscription is one handler and the event types it listens to; a nil
// types set means every event.
type subscription struct {
	handler shared.EventHandler
	types   map[string]struct{}
}

func (s subscription) matches(eventType string) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// HandlerRegistry tracks which handlers receive which event types
type HandlerRegistry struct {
	mu   sync.RWMutex
	subs []subscription
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{}
}

// Register subscribes handler to eventTypes, or to every event when none are
// given. Registering the same handler again widens its subscription.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.subs, func(s subscription) bool { return s.handler == handler })
	if i < 0 {
		r.subs = append(r.subs, subscription{handler: handler, types: map[string]struct{}{}})
		i = len(r.subs) - 1
	}
	if len(eventTypes) == 0 {
		r.subs[i].types = nil
		return
	}
	if r.subs[i].types == nil {
		return
	}
	for _, t := range eventTypes {
		r.subs[i].types[t] = struct{}{}
	}
}

// Unregister removes handler entirely
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = slices.DeleteFunc(r.subs, func(s subscription) bool { return s.handler == handler })
}

// GetHandlers returns the handlers for eventType: type-specific ones first,
// then the catch-all ones, each in registration order.
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var specific, catchAll []shared.EventHandler
	for _, s := range r.subs {
		switch {
		case s.types == nil:
			catchAll = append(catchAll, s.handler)
		case s.matches(eventType):
			specific = append(specific, s.handler)
		}
	}
	return append(specific, catchAll...)
}

// Len returns the number of registered handlers
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
