package ril

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/danmuck/rilctl/internal/observability"
	"github.com/danmuck/rilctl/internal/protocol"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// link is one connection epoch. initial, when set, is written before any
// queued request; dead is set once the link has been torn down.
type link struct {
	conn    net.Conn
	epoch   uint64
	id      string
	initial atomic.Pointer[Request]
	dead    atomic.Bool
}

// DialFunc opens the daemon socket.
type DialFunc func(ctx context.Context) (net.Conn, error)

func (c *Client) defaultDial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	return dialer.DialContext(ctx, c.cfg.Network, c.cfg.Address)
}

// connectLoop cycles Disconnected -> Connecting -> Connected until ctx ends.
func (c *Client) connectLoop(ctx context.Context) {
	var attempt int
	failLog := &rate.Sometimes{First: c.cfg.MaxLoggedRetries}
	for ctx.Err() == nil {
		c.setState(Connecting)
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			observability.RecordConnection("connect_failed")
			attempt++
			c.logConnectFailure(failLog, attempt, err)
			if err := c.sleepRetry(ctx); err != nil {
				return
			}
			continue
		}
		attempt = 0
		failLog = &rate.Sometimes{First: c.cfg.MaxLoggedRetries}
		c.serve(ctx, conn)
	}
}

func (c *Client) logConnectFailure(failLog *rate.Sometimes, attempt int, err error) {
	failLog.Do(func() {
		c.log.Info().Err(err).Int("attempt", attempt).Str("addr", c.cfg.Address).Msg("daemon socket unavailable; retrying after timeout")
	})
	if attempt == c.cfg.MaxLoggedRetries {
		c.log.Error().Int("attempt", attempt).Str("addr", c.cfg.Address).Msg("daemon socket still unavailable, continuing to retry silently")
	}
}

func (c *Client) sleepRetry(ctx context.Context) error {
	timer := time.NewTimer(c.cfg.RetryInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// serve owns one connection epoch and returns once it has been torn down.
func (c *Client) serve(ctx context.Context, conn net.Conn) {
	epoch := c.serials.Reset()
	l := &link{conn: conn, epoch: epoch, id: uuid.NewString()}
	if c.firstConnect.CompareAndSwap(false, true) && c.cfg.PowerOffOnFirstConnect {
		c.log.Info().Msg("first connection, forcing radio power off")
		if req, ok := c.prepare(protocol.RequestRadioPower, boolInts(false), nil); ok {
			l.initial.Store(req)
		}
	}
	c.link.Store(l)
	select {
	case c.wake <- struct{}{}:
	default:
	}
	observability.RecordConnection("connected")
	c.log.Info().Str("addr", c.cfg.Address).Uint64("epoch", epoch).Str("epoch_id", l.id).Msg("connected to daemon socket")
	c.setState(Connected)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	err := c.readLoop(l)
	stop()

	reason := "daemon closed socket"
	if err != nil && !errors.Is(err, io.EOF) {
		reason = err.Error()
	}
	c.disconnect(l, reason)
}

// disconnect tears down l once; repeated calls for the same link are no-ops.
// The socket is closed last: closing it lets serve return and dial the next
// link, which must not overlap this sweep.
func (c *Client) disconnect(l *link, reason string) {
	if l == nil || !c.link.CompareAndSwap(l, nil) {
		return
	}
	l.dead.Store(true)
	c.serials.Reset()
	c.setState(Disconnected)
	c.setRadioState(protocol.RadioUnavailable)
	observability.RecordConnection("disconnected")

	cause := fmt.Errorf("%w: %s", ErrChannelUnavailable, reason)
	if req := l.initial.Swap(nil); req != nil {
		c.finish(req, nil, cause)
	}
	drained := c.pending.Drain()
	c.log.Info().Str("reason", reason).Uint64("epoch", l.epoch).Str("epoch_id", l.id).Int("failed_pending", len(drained)).Msg("disconnected from daemon socket")
	for _, req := range drained {
		c.finish(req, nil, cause)
	}
	_ = l.conn.Close()
}

// dropConnection tears down the current connection, if any.
func (c *Client) dropConnection(reason string) {
	c.disconnect(c.link.Load(), reason)
}

func (c *Client) setState(s ConnState) {
	if ConnState(c.state.Swap(int32(s))) == s {
		return
	}
	c.obsMu.Lock()
	observers := c.stateObservers
	c.obsMu.Unlock()
	for _, fn := range observers {
		c.notifyState(fn, s)
	}
}

func (c *Client) notifyState(fn func(ConnState), s ConnState) {
	defer func() {
		if rec := recover(); rec != nil {
			c.log.Error().Interface("panic", rec).Stringer("state", s).Msg("state observer panicked")
		}
	}()
	fn(s)
}
