package ril

import (
	"bufio"
	"fmt"

	"github.com/danmuck/rilctl/internal/observability"
	"github.com/danmuck/rilctl/internal/protocol"
	"github.com/danmuck/rilctl/internal/protocol/frame"
)

// readLoop processes frames until the stream ends or fails. Every error it
// returns is treated as a disconnect.
func (c *Client) readLoop(l *link) error {
	br := bufio.NewReaderSize(l.conn, int(c.cfg.MaxFrameBytes)+frame.HeaderLen)
	for {
		payload, err := frame.ReadFrame(br, c.cfg.limits())
		if err != nil {
			return err
		}
		c.processFrame(payload)
	}
}

func (c *Client) processFrame(payload []byte) {
	resp, err := protocol.ParseResponse(payload)
	if err != nil {
		observability.RecordFrame("violation")
		c.violation(fmt.Errorf("%w: %w", ErrProtocolViolation, err))
		return
	}
	switch resp.Kind {
	case protocol.KindSolicited:
		observability.RecordFrame("solicited")
		c.processSolicited(resp)
	case protocol.KindUnsolicited:
		observability.RecordFrame("unsolicited")
		c.processUnsolicited(resp)
	}
}

func (c *Client) processSolicited(resp protocol.Response) {
	req, ok := c.pending.FindAndRemove(resp.Serial)
	if !ok {
		observability.RecordFrame("stale")
		c.log.Warn().Int32("serial", resp.Serial).Stringer("status", resp.Status).Msg("unexpected solicited response")
		return
	}

	dec, known := c.registry.RequestDecoder(req.Type)
	if resp.Status != protocol.StatusSuccess {
		rse := &RemoteStatusError{Request: req.Type, Status: resp.Status}
		if known && len(resp.Body) > 0 {
			if v, err := decode(dec, resp.Body); err == nil {
				rse.Payload = v
			}
		}
		c.finish(req, nil, rse)
		return
	}
	if !known {
		err := fmt.Errorf("%w: no decoder for %s", ErrProtocolViolation, protocol.RequestName(req.Type))
		c.log.Warn().Err(err).Int32("serial", req.Serial).Msg("solicited response for request without decoder")
		c.finish(req, nil, err)
		return
	}

	v, err := decode(dec, resp.Body)
	if err != nil {
		c.log.Warn().Err(err).Int32("serial", req.Serial).Str("request", protocol.RequestName(req.Type)).Msg("response decode failed")
		c.finish(req, nil, err)
		return
	}
	c.finish(req, v, nil)
}

func (c *Client) processUnsolicited(resp protocol.Response) {
	dec, ok := c.registry.EventDecoder(resp.Event)
	if !ok {
		observability.RecordFrame("violation")
		c.violation(fmt.Errorf("%w: unrecognized event %d", ErrProtocolViolation, resp.Event))
		return
	}

	ev := Event{Code: resp.Event}
	ev.Value, ev.Err = decode(dec, resp.Body)
	if ev.Err != nil {
		c.log.Warn().Err(ev.Err).Str("event", protocol.EventName(resp.Event)).Msg("event decode failed")
	} else {
		c.log.Debug().Str("event", protocol.EventName(resp.Event)).Msg("unsolicited")
	}

	if resp.Event == protocol.EventRadioStateChanged && ev.Err == nil {
		if state, ok := ev.Value.(protocol.RadioState); ok {
			c.onRadioState(state)
		}
	}
	c.subs.Notify(ev)
}

// violation logs a discarded frame. The first few are logged at warn level,
// later ones are rate limited.
func (c *Client) violation(err error) {
	logged := false
	c.violationLog.Do(func() {
		logged = true
		c.log.Warn().Err(err).Msg("protocol violation, frame discarded")
	})
	if !logged {
		c.log.Debug().Err(err).Msg("protocol violation, frame discarded")
	}
}
