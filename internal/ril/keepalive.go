package ril

import (
	"sync"
	"time"

	"github.com/danmuck/rilctl/internal/observability"
	"github.com/rs/zerolog"
)

// KeepAlive is the external resource held while requests are outstanding,
// such as a suspend blocker.
type KeepAlive interface {
	Acquire()
	Release()
}

// NopKeepAlive satisfies KeepAlive for hosts with nothing to hold.
type NopKeepAlive struct{}

func (NopKeepAlive) Acquire() {}
func (NopKeepAlive) Release() {}

// keepAliveController holds the token whenever a request is queued, written
// or awaiting its response. inflight counts requests from submit until their
// completion is delivered. All transitions happen under mu; the pending-table
// size is read through pendingLen, which takes no lock.
type keepAliveController struct {
	mu         sync.Mutex
	res        KeepAlive
	timeout    time.Duration
	pendingLen func() int
	inflight   int
	held       bool
	timer      *time.Timer
	gen        uint64

	// onForcedRelease runs after mu is dropped, for diagnostics.
	onForcedRelease func(inflight int)
	log             zerolog.Logger
}

func newKeepAliveController(res KeepAlive, timeout time.Duration, pendingLen func() int, log zerolog.Logger) *keepAliveController {
	if res == nil {
		res = NopKeepAlive{}
	}
	return &keepAliveController{
		res:        res,
		timeout:    timeout,
		pendingLen: pendingLen,
		log:        log,
	}
}

// Acquire counts one more outstanding request and re-arms the idle timer.
func (k *keepAliveController) Acquire() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.inflight++
	observability.SetInflight(k.inflight)
	if !k.held {
		k.res.Acquire()
		k.held = true
		observability.RecordKeepAlive("acquire")
	}
	k.armLocked()
}

// Done marks one request as answered or failed.
func (k *keepAliveController) Done() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.inflight > 0 {
		k.inflight--
	} else {
		k.log.Error().Msg("keep-alive inflight counter underflow")
	}
	observability.SetInflight(k.inflight)
	k.releaseIfDoneLocked()
}

// ReleaseIfDone drops the token when nothing is outstanding.
func (k *keepAliveController) ReleaseIfDone() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.releaseIfDoneLocked()
}

func (k *keepAliveController) releaseIfDoneLocked() {
	if !k.held || k.inflight != 0 || k.pendingLen() != 0 {
		return
	}
	k.stopLocked()
	k.res.Release()
	k.held = false
	observability.RecordKeepAlive("release")
}

func (k *keepAliveController) armLocked() {
	if k.timeout <= 0 {
		return
	}
	k.stopLocked()
	k.gen++
	gen := k.gen
	k.timer = time.AfterFunc(k.timeout, func() { k.expire(gen) })
}

func (k *keepAliveController) stopLocked() {
	if k.timer != nil {
		k.timer.Stop()
		k.timer = nil
	}
}

// expire force-releases a token held past the timeout. Outstanding requests
// stay pending; the next Acquire takes the token again.
func (k *keepAliveController) expire(gen uint64) {
	k.mu.Lock()
	if gen != k.gen || !k.held {
		k.mu.Unlock()
		return
	}
	k.timer = nil
	k.res.Release()
	k.held = false
	inflight := k.inflight
	hook := k.onForcedRelease
	k.mu.Unlock()

	observability.RecordKeepAlive("forced_release")
	k.log.Warn().Int("inflight", inflight).Dur("timeout", k.timeout).Msg("keep-alive timeout, releasing token")
	if hook != nil {
		hook(inflight)
	}
}

func (k *keepAliveController) Held() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.held
}

func (k *keepAliveController) Inflight() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.inflight
}

// Close stops the idle timer.
func (k *keepAliveController) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.gen++
	k.stopLocked()
}
