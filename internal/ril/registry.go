package ril

import (
	"fmt"
	"sync"

	"github.com/danmuck/rilctl/internal/protocol/parcel"
)

// Registry maps request types and event codes to decode functions. New
// payload types register here without touching the correlation core.
type Registry struct {
	mu       sync.RWMutex
	requests map[int32]DecodeFunc
	events   map[int32]DecodeFunc
}

func NewRegistry() *Registry {
	return &Registry{
		requests: make(map[int32]DecodeFunc),
		events:   make(map[int32]DecodeFunc),
	}
}

// DefaultRegistry returns a registry preloaded with the built-in decoders.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	registerBuiltins(reg)
	return reg
}

// RegisterRequest sets the decoder for responses to requestType.
func (r *Registry) RegisterRequest(requestType int32, fn DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[requestType] = fn
}

// RegisterEvent sets the decoder for unsolicited events with code.
func (r *Registry) RegisterEvent(code int32, fn DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[code] = fn
}

func (r *Registry) RequestDecoder(requestType int32) (DecodeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.requests[requestType]
	return fn, ok
}

func (r *Registry) EventDecoder(code int32) (DecodeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.events[code]
	return fn, ok
}

// decode runs fn over body. Errors and panics are reported as ErrDecode so a
// bad payload only affects its own frame.
func decode(fn DecodeFunc, body []byte) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			v = nil
			err = fmt.Errorf("%w: panic: %v", ErrDecode, rec)
		}
	}()
	v, err = fn(parcel.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return v, nil
}
