package ril

import (
	"github.com/danmuck/rilctl/internal/protocol"
	"github.com/danmuck/rilctl/internal/protocol/parcel"
)

func boolInts(v bool) EncodeFunc {
	return func(w *parcel.Writer) error {
		n := int32(0)
		if v {
			n = 1
		}
		w.WriteInt32s([]int32{n})
		return nil
	}
}

// SetRadioPower asks the daemon to power the radio on or off.
func (c *Client) SetRadioPower(on bool, done Completion) {
	c.Submit(protocol.RequestRadioPower, boolInts(on), done)
}

// SendScreenState tells the daemon whether the screen is on, which controls
// how chatty its unsolicited reporting is.
func (c *Client) SendScreenState(on bool, done Completion) {
	c.Submit(protocol.RequestScreenState, boolInts(on), done)
}

func (c *Client) GetIMEI(done Completion) {
	c.Submit(protocol.RequestGetIMEI, nil, done)
}

func (c *Client) GetIMSI(done Completion) {
	c.Submit(protocol.RequestGetIMSI, nil, done)
}

func (c *Client) GetBasebandVersion(done Completion) {
	c.Submit(protocol.RequestBasebandVersion, nil, done)
}

func (c *Client) GetSignalStrength(done Completion) {
	c.Submit(protocol.RequestSignalStrength, nil, done)
}
