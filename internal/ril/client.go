package ril

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/rilctl/internal/logging"
	"github.com/danmuck/rilctl/internal/observability"
	"github.com/danmuck/rilctl/internal/protocol"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Option func(*Client)

// WithKeepAlive sets the resource held while requests are outstanding.
func WithKeepAlive(k KeepAlive) Option {
	return func(c *Client) { c.keepAliveRes = k }
}

// WithRegistry replaces the built-in decoder registry.
func WithRegistry(r *Registry) Option {
	return func(c *Client) { c.registry = r }
}

// WithDialer replaces the socket dialer.
func WithDialer(d DialFunc) Option {
	return func(c *Client) { c.dial = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client correlates requests with daemon responses and fans out events.
type Client struct {
	cfg      Config
	log      zerolog.Logger
	dial     DialFunc
	registry *Registry

	serials      *serialAllocator
	pool         *requestPool
	pending      *pendingTable
	subs         *subscriberRegistry
	keepAliveRes KeepAlive
	keepalive    *keepAliveController
	queue        chan *Request
	wake         chan struct{}

	link         atomic.Pointer[link]
	state        atomic.Int32
	radio        atomic.Int32
	firstConnect atomic.Bool
	running      atomic.Bool

	lifeMu sync.RWMutex
	closed bool

	obsMu          sync.Mutex
	stateObservers []func(ConnState)

	violationLog rate.Sometimes
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	cfg = cfg.WithDefaults()

	c := &Client{
		cfg:          cfg,
		log:          logging.Component("ril"),
		serials:      &serialAllocator{},
		pending:      newPendingTable(),
		queue:        make(chan *Request, cfg.QueueSize),
		wake:         make(chan struct{}, 1),
		violationLog: rate.Sometimes{First: 16, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	if c.dial == nil {
		c.dial = c.defaultDial
	}
	c.pool = newRequestPool(cfg.PoolSize, c.serials, c.log)
	c.subs = newSubscriberRegistry(c.log)
	c.keepalive = newKeepAliveController(c.keepAliveRes, cfg.KeepAliveTimeout, c.pending.Len, c.log)
	c.keepalive.onForcedRelease = c.logOutstanding
	c.radio.Store(int32(protocol.RadioUnavailable))
	return c, nil
}

// Run drives the dispatcher and the connection manager until ctx is done.
// Cancelling ctx stands in for process teardown: queued and pending requests
// fail with ErrChannelUnavailable and later submissions fail immediately.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.dispatchLoop(ctx)
	}()

	c.connectLoop(ctx)
	wg.Wait()
	c.shutdown()
	return ctx.Err()
}

func (c *Client) shutdown() {
	c.lifeMu.Lock()
	c.closed = true
	c.lifeMu.Unlock()

	c.dropConnection("client stopped")
	for {
		select {
		case req := <-c.queue:
			c.finish(req, nil, fmt.Errorf("%w: client stopped", ErrChannelUnavailable))
		default:
			c.setState(Disconnected)
			c.keepalive.Close()
			return
		}
	}
}

// Submit encodes and queues one request. It never blocks; the outcome is
// always delivered through done, possibly before Submit returns.
func (c *Client) Submit(requestType int32, encode EncodeFunc, done Completion) {
	req, ok := c.prepare(requestType, encode, done)
	if !ok {
		return
	}
	c.log.Debug().Int32("serial", req.Serial).Str("request", protocol.RequestName(requestType)).Msg("submit")

	c.lifeMu.RLock()
	if c.closed {
		c.lifeMu.RUnlock()
		c.finish(req, nil, fmt.Errorf("%w: client stopped", ErrChannelUnavailable))
		return
	}
	select {
	case c.queue <- req:
		c.lifeMu.RUnlock()
	default:
		c.lifeMu.RUnlock()
		c.finish(req, nil, fmt.Errorf("%w: dispatch queue full", ErrChannelUnavailable))
	}
}

// prepare obtains and encodes an envelope and counts it as outstanding. On
// encode failure the request has already been completed.
func (c *Client) prepare(requestType int32, encode EncodeFunc, done Completion) (*Request, bool) {
	req := c.pool.Obtain(requestType, done)
	c.keepalive.Acquire()
	if encode != nil {
		if err := encode(req.buf); err != nil {
			c.finish(req, nil, fmt.Errorf("%w: %w", ErrEncode, err))
			return nil, false
		}
	}
	return req, true
}

// Subscribe registers fn for unsolicited events with code. Subscriptions
// last for the client's lifetime. A NITZ event that arrived with nobody
// subscribed is delivered to the first NITZ subscriber before Subscribe returns.
func (c *Client) Subscribe(code int32, fn Subscriber) {
	c.subs.Add(code, fn)
}

// OnStateChange registers fn for connection state transitions. fn runs on
// the connection manager goroutine.
func (c *Client) OnStateChange(fn func(ConnState)) {
	if fn == nil {
		return
	}
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.stateObservers = append(c.stateObservers, fn)
}

// Call submits a request and waits for its result. Cancelling ctx stops the
// wait only; the request itself stays outstanding.
func (c *Client) Call(ctx context.Context, requestType int32, encode EncodeFunc) (any, error) {
	ch := make(chan Result, 1)
	c.Submit(requestType, encode, func(r Result) { ch <- r })
	select {
	case r := <-ch:
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CallAs is Call with the decoded value asserted to T.
func CallAs[T any](ctx context.Context, c *Client, requestType int32, encode EncodeFunc) (T, error) {
	var zero T
	v, err := c.Call(ctx, requestType, encode)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s decoded to %T", ErrDecode, protocol.RequestName(requestType), v)
	}
	return t, nil
}

func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Client) Status() Status {
	s := Status{
		State:         c.State(),
		Radio:         c.RadioState(),
		Pending:       c.pending.Len(),
		Inflight:      c.keepalive.Inflight(),
		KeepAliveHeld: c.keepalive.Held(),
	}
	if l := c.link.Load(); l != nil {
		s.Epoch = l.epoch
		s.EpochID = l.id
	}
	return s
}

// Pending lists requests written to the daemon and still unanswered.
func (c *Client) Pending() []PendingRequest {
	return c.pending.List()
}

// finish delivers the result, recycles the envelope and drops its keep-alive
// contribution, in that order.
func (c *Client) finish(req *Request, value any, err error) {
	res := Result{Serial: req.Serial, Request: req.Type, Value: value, Err: err}
	done := req.done
	elapsed := time.Since(req.submitted)

	if done != nil {
		c.deliver(done, res)
	} else if err != nil {
		c.log.Debug().Err(err).Int32("serial", res.Serial).Str("request", protocol.RequestName(res.Request)).Msg("internal request failed")
	}
	c.pool.Release(req)
	c.keepalive.Done()
	observability.RecordRequest(protocol.RequestName(res.Request), outcome(err), elapsed)
}

func (c *Client) deliver(done Completion, res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			c.log.Error().Interface("panic", rec).Int32("serial", res.Serial).Msg("completion panicked")
		}
	}()
	done(res)
}

func (c *Client) logOutstanding(inflight int) {
	pending := c.pending.List()
	c.log.Debug().Int("inflight", inflight).Int("pending", len(pending)).Msg("requests outstanding at keep-alive timeout")
	for _, p := range pending {
		c.log.Debug().Int32("serial", p.Serial).Str("request", protocol.RequestName(p.Request)).Msg("outstanding at keep-alive timeout")
	}
}
