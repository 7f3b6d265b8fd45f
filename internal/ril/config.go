package ril

import (
	"strings"
	"time"

	"github.com/danmuck/rilctl/internal/protocol/frame"
)

// Config defines client transport and reliability defaults.
type Config struct {
	Network string
	Address string

	ConnectTimeout   time.Duration
	RetryInterval    time.Duration
	MaxLoggedRetries int
	WriteTimeout     time.Duration
	KeepAliveTimeout time.Duration

	MaxFrameBytes uint32
	PoolSize      int
	QueueSize     int

	// PowerOffOnFirstConnect sends RADIO_POWER(off) as the first request of
	// the first connection, since the daemon may have outlived this process.
	PowerOffOnFirstConnect bool
	// ScreenOnWhenAvailable sends SCREEN_STATE(on) when the radio leaves the
	// unavailable state.
	ScreenOnWhenAvailable bool
}

const DefaultSocketPath = "/dev/socket/rild"

func DefaultConfig() Config {
	return Config{
		Network:                "unix",
		Address:                DefaultSocketPath,
		ConnectTimeout:         2 * time.Second,
		RetryInterval:          4 * time.Second,
		MaxLoggedRetries:       8,
		WriteTimeout:           5 * time.Second,
		KeepAliveTimeout:       5 * time.Second,
		MaxFrameBytes:          frame.DefaultLimits().MaxPayloadBytes,
		PoolSize:               4,
		QueueSize:              256,
		PowerOffOnFirstConnect: true,
		ScreenOnWhenAvailable:  true,
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if strings.TrimSpace(c.Network) == "" {
		c.Network = d.Network
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = d.RetryInterval
	}
	if c.MaxLoggedRetries <= 0 {
		c.MaxLoggedRetries = d.MaxLoggedRetries
	}
	if c.WriteTimeout < 0 {
		c.WriteTimeout = 0
	}
	if c.KeepAliveTimeout <= 0 {
		c.KeepAliveTimeout = d.KeepAliveTimeout
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = d.MaxFrameBytes
	}
	if c.PoolSize <= 0 {
		c.PoolSize = d.PoolSize
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	return c
}

func (c Config) limits() frame.Limits {
	return frame.Limits{MaxPayloadBytes: c.MaxFrameBytes}
}
