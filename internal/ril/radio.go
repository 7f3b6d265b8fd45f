package ril

import "github.com/danmuck/rilctl/internal/protocol"

// onRadioState applies a state pushed by the daemon.
func (c *Client) onRadioState(state protocol.RadioState) {
	prev := c.setRadioState(state)
	c.log.Info().Stringer("from", prev).Stringer("to", state).Msg("radio state changed")
	if !prev.IsAvailable() && state.IsAvailable() && c.cfg.ScreenOnWhenAvailable {
		// the daemon may have lost screen state if it restarted
		c.SendScreenState(true, nil)
	}
}

// setRadioState stores state and returns the previous one.
func (c *Client) setRadioState(state protocol.RadioState) protocol.RadioState {
	return protocol.RadioState(c.radio.Swap(int32(state)))
}

// RadioState returns the last radio state seen from the daemon.
func (c *Client) RadioState() protocol.RadioState {
	return protocol.RadioState(c.radio.Load())
}
