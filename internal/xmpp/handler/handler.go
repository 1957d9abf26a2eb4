// Package handler routes inbound stanzas to ordered handler chains keyed by
// stanza name and type.
package handler

import (
	"fmt"
	"sync"

	"github.com/jackal-xmpp/stravaganza/v2"
	"go.uber.org/zap"

	"github.com/meszmate/wsroster/internal/metrics"
)

// Any matches every stanza name or type.
const Any = "any"

// Result tells Dispatch whether to keep running the current bucket.
type Result int

const (
	// Continue runs the next handler in the bucket.
	Continue Result = iota
	// Stop skips the remaining handlers of the bucket.
	Stop
)

// Func handles one stanza. A returned error is logged and treated as Continue.
type Func func(el stravaganza.Element) (Result, error)

// Registry maps name:type keys to handler lists.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]Func
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewRegistry creates an empty registry. logger and m may be nil.
func NewRegistry(logger *zap.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[string][]Func),
		logger:   logger,
		metrics:  m,
	}
}

// Add registers h for stanzas called name with the given type. Empty name or
// type means Any.
func (r *Registry) Add(name, typ string, h Func) {
	k := key(name, typ)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[k] = append(r.handlers[k], h)
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, hs := range r.handlers {
		n += len(hs)
	}
	return n
}

// Dispatch runs the handlers matching el. Buckets are tried in the order
// name:type, name:any, any:type, any:any.
func (r *Registry) Dispatch(name string, el stravaganza.Element) {
	typ := el.Attribute("type")
	if typ == "" {
		typ = Any
	}

	for _, k := range dispatchKeys(name, typ) {
		r.mu.RLock()
		bucket := append([]Func(nil), r.handlers[k]...)
		r.mu.RUnlock()

		for _, h := range bucket {
			if r.run(k, h, el) == Stop {
				break
			}
		}
	}
}

func (r *Registry) run(k string, h Func, el stravaganza.Element) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			r.fail(k, fmt.Errorf("handler panic: %v", p))
			res = Continue
		}
	}()

	res, err := h(el)
	if err != nil {
		r.fail(k, err)
		return Continue
	}
	return res
}

func (r *Registry) fail(k string, err error) {
	r.metrics.HandlerError()
	r.logger.Error("Handler error", zap.String("key", k), zap.Error(err))
}

func key(name, typ string) string {
	if name == "" {
		name = Any
	}
	if typ == "" {
		typ = Any
	}
	return name + ":" + typ
}

// dispatchKeys lists the buckets for a stanza, without duplicates.
func dispatchKeys(name, typ string) []string {
	candidates := []string{
		key(name, typ),
		key(name, Any),
		key(Any, typ),
		key(Any, Any),
	}

	keys := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, k := range candidates {
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}
