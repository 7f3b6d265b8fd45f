package ril

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/rilctl/internal/protocol"
	"github.com/danmuck/rilctl/internal/protocol/frame"
)

// dispatchLoop is the only writer to the socket.
func (c *Client) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
			c.flushInitial(c.link.Load())
		case req := <-c.queue:
			c.send(req)
		}
	}
}

func (c *Client) send(req *Request) {
	l := c.link.Load()
	if l == nil {
		c.finish(req, nil, fmt.Errorf("%w: not connected", ErrChannelUnavailable))
		return
	}
	c.flushInitial(l)
	c.writeRequest(l, req)
}

// flushInitial writes the request l was published with, ahead of anything
// else on l.
func (c *Client) flushInitial(l *link) {
	if l == nil {
		return
	}
	if req := l.initial.Swap(nil); req != nil {
		c.writeRequest(l, req)
	}
}

func (c *Client) writeRequest(l *link, req *Request) {
	if err := frame.CheckSize(len(req.Payload()), c.cfg.limits()); err != nil {
		c.finish(req, nil, fmt.Errorf("%w: %w", ErrOversizeRequest, err))
		return
	}

	if req.epoch != l.epoch {
		serial, epoch := c.serials.Next()
		c.log.Debug().
			Int32("old_serial", req.Serial).
			Int32("serial", serial).
			Str("request", protocol.RequestName(req.Type)).
			Msg("restamping request queued across reconnect")
		req.restamp(serial, epoch)
	}

	// once registered, req may be completed and recycled by another goroutine
	serial, typ := req.Serial, req.Type
	payload := append([]byte(nil), req.Payload()...)
	if !c.pending.Register(req) {
		c.finish(req, nil, fmt.Errorf("%w: duplicate serial %d", ErrProtocolViolation, serial))
		return
	}
	// a sweep that ran before Register could not have seen req
	if l.dead.Load() {
		if r, ok := c.pending.FindAndRemove(serial); ok {
			c.finish(r, nil, fmt.Errorf("%w: connection closed", ErrChannelUnavailable))
		}
		return
	}
	c.log.Trace().Int32("serial", serial).Str("request", protocol.RequestName(typ)).Int("bytes", len(payload)).Msg("send")

	if c.cfg.WriteTimeout > 0 {
		_ = l.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := frame.WriteFrame(l.conn, payload, c.cfg.limits()); err != nil {
		c.log.Warn().Err(err).Int32("serial", serial).Str("request", protocol.RequestName(typ)).Msg("write failed")
		// a reset sweep may already have failed it
		if r, ok := c.pending.FindAndRemove(serial); ok {
			c.finish(r, nil, fmt.Errorf("%w: %w", ErrChannelUnavailable, err))
		}
	}
}
