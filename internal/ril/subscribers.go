package ril

import (
	"sync"

	"github.com/danmuck/rilctl/internal/protocol"
	"github.com/rs/zerolog"
)

// heldEvents are kept when nobody is subscribed and handed to the first
// subscriber that registers for them.
var heldEvents = map[int32]bool{
	protocol.EventNITZTimeReceived: true,
}

// subscriberRegistry is append-only for the client's lifetime.
type subscriberRegistry struct {
	mu     sync.RWMutex
	byCode map[int32][]Subscriber
	held   map[int32]Event
	log    zerolog.Logger
}

func newSubscriberRegistry(log zerolog.Logger) *subscriberRegistry {
	return &subscriberRegistry{
		byCode: make(map[int32][]Subscriber),
		held:   make(map[int32]Event),
		log:    log,
	}
}

// Add registers fn for code. A held event for code is delivered to fn on the
// calling goroutine before Add returns.
func (s *subscriberRegistry) Add(code int32, fn Subscriber) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.byCode[code] = append(s.byCode[code], fn)
	ev, replay := s.held[code]
	delete(s.held, code)
	s.mu.Unlock()

	if replay {
		s.log.Debug().Str("event", protocol.EventName(code)).Msg("replaying held event")
		s.deliver(fn, ev)
	}
}

// Notify delivers ev to every subscriber of ev.Code in registration order and
// returns how many were called.
func (s *subscriberRegistry) Notify(ev Event) int {
	s.mu.Lock()
	subs := s.byCode[ev.Code]
	if len(subs) == 0 && heldEvents[ev.Code] && ev.Err == nil {
		s.held[ev.Code] = ev
	}
	s.mu.Unlock()

	for _, fn := range subs {
		s.deliver(fn, ev)
	}
	return len(subs)
}

func (s *subscriberRegistry) deliver(fn Subscriber, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Str("event", protocol.EventName(ev.Code)).Interface("panic", rec).Msg("subscriber panicked")
		}
	}()
	fn(ev)
}

func (s *subscriberRegistry) Count(code int32) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byCode[code])
}
