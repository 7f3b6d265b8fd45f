package ril

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/rilctl/internal/protocol"
	"github.com/danmuck/rilctl/internal/protocol/frame"
	"github.com/danmuck/rilctl/internal/protocol/parcel"
	"github.com/danmuck/rilctl/internal/testutil/fakedaemon"
	"github.com/danmuck/rilctl/internal/testutil/testlog"
)

const waitTimeout = 3 * time.Second

func testConfig(addr string) Config {
	cfg := DefaultConfig()
	cfg.Address = addr
	cfg.RetryInterval = 20 * time.Millisecond
	cfg.PowerOffOnFirstConnect = false
	cfg.ScreenOnWhenAvailable = false
	return cfg
}

// runClient starts c and stops it when the test ends.
func runClient(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(waitTimeout):
			t.Errorf("client did not stop")
		}
	})
}

func startClient(t *testing.T, d *fakedaemon.Daemon, tweak func(*Config), opts ...Option) *Client {
	t.Helper()
	cfg := testConfig(d.Path())
	if tweak != nil {
		tweak(&cfg)
	}
	c, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	runClient(t, c)
	if err := d.WaitConnected(waitTimeout); err != nil {
		t.Fatalf("daemon never saw a connection: %v", err)
	}
	waitFor(t, "connected state", func() bool { return c.State() == Connected })
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func awaitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for completion")
		return Result{}
	}
}

func nextRequest(t *testing.T, d *fakedaemon.Daemon) protocol.Request {
	t.Helper()
	req, err := d.NextRequest(waitTimeout)
	if err != nil {
		t.Fatalf("daemon request: %v", err)
	}
	return req
}

func stringBody(s string) []byte {
	w := parcel.NewWriter(16)
	w.WriteString(s)
	return w.Bytes()
}

func intsBody(v ...int32) []byte {
	w := parcel.NewWriter(16)
	w.WriteInt32s(v)
	return w.Bytes()
}

func TestRoundTripUsesSerialZero(t *testing.T) {
	testlog.Start(t)

	res := &countingKeepAlive{}
	d := fakedaemon.Start(t)
	c := startClient(t, d, nil, WithKeepAlive(res))

	results := make(chan Result, 1)
	c.GetIMEI(func(r Result) { results <- r })

	req := nextRequest(t, d)
	if req.Type != protocol.RequestGetIMEI || req.Serial != 0 || len(req.Body) != 0 {
		t.Fatalf("unexpected request on the wire: %+v", req)
	}
	if err := d.SendSolicited(req.Serial, protocol.StatusSuccess, stringBody("358240051111110")); err != nil {
		t.Fatalf("send response: %v", err)
	}

	r := awaitResult(t, results)
	if r.Err != nil || r.Value != "358240051111110" || r.Serial != 0 {
		t.Fatalf("unexpected result: %+v", r)
	}
	waitFor(t, "keep-alive release", func() bool { return !c.Status().KeepAliveHeld })
	if a, rel := res.counts(); a != 1 || rel != 1 {
		t.Fatalf("expected balanced keep-alive, got acquires=%d releases=%d", a, rel)
	}
	if st := c.Status(); st.Pending != 0 || st.Inflight != 0 || st.EpochID == "" {
		t.Fatalf("unexpected status after round trip: %+v", st)
	}
}

func TestCallAsWithResponder(t *testing.T) {
	testlog.Start(t)

	d := fakedaemon.Start(t, fakedaemon.WithResponder(fakedaemon.DefaultResponder(fakedaemon.Identity{
		IMEI:     "000000000000001",
		Baseband: "sim-baseband-1",
	})))
	c := startClient(t, d, nil)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	version, err := CallAs[string](ctx, c, protocol.RequestBasebandVersion, nil)
	if err != nil || version != "sim-baseband-1" {
		t.Fatalf("baseband: %q err=%v", version, err)
	}

	_, err = c.Call(ctx, protocol.RequestDial, nil)
	if status, ok := StatusOf(err); !ok || status != protocol.StatusRequestNotSupported {
		t.Fatalf("expected REQUEST_NOT_SUPPORTED, got %v", err)
	}

	if _, err := CallAs[[]string](ctx, c, protocol.RequestGetIMEI, nil); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected type mismatch to report ErrDecode, got %v", err)
	}
}

func TestConcurrentRequestsCompleteOnce(t *testing.T) {
	testlog.Start(t)

	d := fakedaemon.Start(t, fakedaemon.WithResponder(fakedaemon.DefaultResponder(fakedaemon.Identity{IMEI: "1"})))
	c := startClient(t, d, nil)

	const total = 64
	var mu sync.Mutex
	calls := make(map[int32]int, total)
	var wg sync.WaitGroup
	wg.Add(total)
	for i := 0; i < total; i++ {
		go c.GetIMEI(func(r Result) {
			defer wg.Done()
			if r.Err != nil {
				t.Errorf("serial %d failed: %v", r.Serial, r.Err)
			}
			mu.Lock()
			calls[r.Serial]++
			mu.Unlock()
		})
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(waitTimeout):
		t.Fatalf("not every request completed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != total {
		t.Fatalf("expected %d distinct serials, got %d", total, len(calls))
	}
	for serial, n := range calls {
		if n != 1 {
			t.Fatalf("serial %d completed %d times", serial, n)
		}
	}
	waitFor(t, "idle client", func() bool {
		st := c.Status()
		return st.Pending == 0 && st.Inflight == 0 && !st.KeepAliveHeld
	})
}

func TestDisconnectFailsPendingAndResetsSerials(t *testing.T) {
	testlog.Start(t)

	d := fakedaemon.Start(t)
	c := startClient(t, d, nil)

	results := make(chan Result, 3)
	for i := 0; i < 3; i++ {
		c.GetIMEI(func(r Result) { results <- r })
	}
	for i := 0; i < 3; i++ {
		nextRequest(t, d)
	}
	waitFor(t, "three pending", func() bool { return len(c.Pending()) == 3 })

	d.DropConnection()
	for i := 0; i < 3; i++ {
		r := awaitResult(t, results)
		if !errors.Is(r.Err, ErrChannelUnavailable) {
			t.Fatalf("serial %d: expected ErrChannelUnavailable, got %v", r.Serial, r.Err)
		}
	}
	if n := len(c.Pending()); n != 0 {
		t.Fatalf("pending table not empty after disconnect: %d", n)
	}

	if err := d.WaitConnected(waitTimeout); err != nil {
		t.Fatalf("client did not reconnect: %v", err)
	}
	waitFor(t, "reconnected state", func() bool { return c.State() == Connected })

	c.GetIMEI(func(r Result) { results <- r })
	req := nextRequest(t, d)
	if req.Serial != 0 {
		t.Fatalf("expected serial 0 after reconnect, got %d", req.Serial)
	}
}

func TestMalformedStreamDisconnects(t *testing.T) {
	cases := []struct {
		name string
		send func(d *fakedaemon.Daemon) error
	}{
		{
			name: "declared length over limit",
			send: func(d *fakedaemon.Daemon) error {
				return d.SendRaw([]byte{0x00, 0x01, 0x00, 0x00})
			},
		},
		{
			name: "truncated payload",
			send: func(d *fakedaemon.Daemon) error {
				if err := d.SendRaw([]byte{0x00, 0x00, 0x00, 0x40, 0x00, 0x00}); err != nil {
					return err
				}
				d.DropConnection()
				return nil
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testlog.Start(t)

			d := fakedaemon.Start(t)
			c := startClient(t, d, nil)

			results := make(chan Result, 1)
			c.GetIMEI(func(r Result) { results <- r })
			nextRequest(t, d)

			if err := tc.send(d); err != nil {
				t.Fatalf("send: %v", err)
			}
			r := awaitResult(t, results)
			if !errors.Is(r.Err, ErrChannelUnavailable) {
				t.Fatalf("expected ErrChannelUnavailable, got %v", r.Err)
			}
			if err := d.WaitConnected(waitTimeout); err != nil {
				t.Fatalf("client did not reconnect: %v", err)
			}
		})
	}
}

func TestUnknownEventKeepsConnection(t *testing.T) {
	testlog.Start(t)

	d := fakedaemon.Start(t)
	c := startClient(t, d, nil)

	var unknownCalls atomic.Int32
	c.Subscribe(4242, func(Event) { unknownCalls.Add(1) })
	rings := make(chan Event, 1)
	c.Subscribe(protocol.EventCallRing, func(ev Event) { rings <- ev })

	if err := d.SendUnsolicited(4242, intsBody(1)); err != nil {
		t.Fatalf("send unknown event: %v", err)
	}
	// unknown discriminator is discarded the same way
	if err := d.SendPayload([]byte{0x00, 0x00, 0x00, 0x09}); err != nil {
		t.Fatalf("send bad discriminator: %v", err)
	}
	if err := d.SendSolicited(999, protocol.StatusSuccess, nil); err != nil {
		t.Fatalf("send stale response: %v", err)
	}
	if err := d.SendUnsolicited(protocol.EventCallRing, intsBody(1, 2)); err != nil {
		t.Fatalf("send ring: %v", err)
	}

	select {
	case ev := <-rings:
		if ev.Err != nil {
			t.Fatalf("ring decode: %v", ev.Err)
		}
		if ints, ok := ev.Value.([]int32); !ok || len(ints) != 2 {
			t.Fatalf("unexpected ring value: %#v", ev.Value)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("event after discarded frames was not processed")
	}
	if unknownCalls.Load() != 0 {
		t.Fatalf("subscriber for unknown event was called")
	}
	if c.State() != Connected || d.Connections() != 1 {
		t.Fatalf("connection did not survive: state=%s connections=%d", c.State(), d.Connections())
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	testlog.Start(t)

	d := fakedaemon.Start(t)
	c := startClient(t, d, nil)

	var disconnects atomic.Int32
	c.OnStateChange(func(s ConnState) {
		if s == Disconnected {
			disconnects.Add(1)
		}
	})

	var completions atomic.Int32
	c.GetIMEI(func(Result) { completions.Add(1) })
	nextRequest(t, d)
	waitFor(t, "pending request", func() bool { return len(c.Pending()) == 1 })

	l := c.link.Load()
	c.disconnect(l, "first")
	c.disconnect(l, "second")

	if err := d.WaitConnected(waitTimeout); err != nil {
		t.Fatalf("client did not reconnect: %v", err)
	}
	waitFor(t, "reconnected state", func() bool { return c.State() == Connected })
	if n := disconnects.Load(); n != 1 {
		t.Fatalf("expected one disconnect transition, got %d", n)
	}
	if n := completions.Load(); n != 1 {
		t.Fatalf("expected one completion, got %d", n)
	}
	if st := c.Status(); st.Epoch != c.serials.Epoch() || st.Pending != 0 {
		t.Fatalf("new link not in the current epoch: %+v epoch=%d", st, c.serials.Epoch())
	}

	c.GetIMEI(nil)
	if req := nextRequest(t, d); req.Type != protocol.RequestGetIMEI || req.Serial != 0 {
		t.Fatalf("expected GET_IMEI with serial 0 on the new link, got %+v", req)
	}
	if c.State() != Connected {
		t.Fatalf("expected connected after request on new link, got %s", c.State())
	}
}

func TestOversizeRequestRejectedLocally(t *testing.T) {
	testlog.Start(t)

	d := fakedaemon.Start(t, fakedaemon.WithResponder(fakedaemon.DefaultResponder(fakedaemon.Identity{IMEI: "1"})))
	c := startClient(t, d, nil)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	_, err := c.Call(ctx, protocol.RequestSendSMS, func(w *parcel.Writer) error {
		w.WriteBytes(make([]byte, 9000))
		return nil
	})
	if !errors.Is(err, ErrOversizeRequest) {
		t.Fatalf("expected ErrOversizeRequest, got %v", err)
	}

	imei, err := CallAs[string](ctx, c, protocol.RequestGetIMEI, nil)
	if err != nil || imei != "1" {
		t.Fatalf("connection unusable after oversize request: %q %v", imei, err)
	}
}

func TestRemoteStatusCarriesPayload(t *testing.T) {
	testlog.Start(t)

	d := fakedaemon.Start(t)
	c := startClient(t, d, nil)

	results := make(chan Result, 1)
	c.Submit(protocol.RequestEnterSIMPIN, func(w *parcel.Writer) error {
		w.WriteStrings([]string{"0000"})
		return nil
	}, func(r Result) { results <- r })

	req := nextRequest(t, d)
	if err := d.SendSolicited(req.Serial, protocol.StatusPasswordIncorrect, intsBody(2)); err != nil {
		t.Fatalf("send response: %v", err)
	}

	r := awaitResult(t, results)
	var rse *RemoteStatusError
	if !errors.As(r.Err, &rse) || !errors.Is(r.Err, ErrRemoteStatus) {
		t.Fatalf("expected RemoteStatusError, got %v", r.Err)
	}
	if rse.Status != protocol.StatusPasswordIncorrect {
		t.Fatalf("unexpected status %s", rse.Status)
	}
	if left, ok := rse.Payload.([]int32); !ok || len(left) != 1 || left[0] != 2 {
		t.Fatalf("unexpected error payload: %#v", rse.Payload)
	}
}

func TestDecodeFailureDeliveredToCaller(t *testing.T) {
	testlog.Start(t)

	d := fakedaemon.Start(t)
	c := startClient(t, d, nil)

	results := make(chan Result, 1)
	c.GetIMEI(func(r Result) { results <- r })
	req := nextRequest(t, d)
	// string length with no bytes behind it
	if err := d.SendSolicited(req.Serial, protocol.StatusSuccess, []byte{0x00, 0x00, 0x00, 0x20}); err != nil {
		t.Fatalf("send response: %v", err)
	}
	r := awaitResult(t, results)
	if !errors.Is(r.Err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", r.Err)
	}
	if c.State() != Connected {
		t.Fatalf("decode failure must not drop the connection")
	}
}

func TestSubmitWithoutConnection(t *testing.T) {
	testlog.Start(t)

	dir, err := os.MkdirTemp("", "ril")
	if err != nil {
		t.Fatalf("temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	c, err := New(testConfig(filepath.Join(dir, "missing")))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	callCtx, callCancel := context.WithTimeout(context.Background(), waitTimeout)
	defer callCancel()
	if _, err := c.Call(callCtx, protocol.RequestGetIMEI, nil); !errors.Is(err, ErrChannelUnavailable) {
		t.Fatalf("expected ErrChannelUnavailable, got %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected run error: %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("client did not stop")
	}

	results := make(chan Result, 1)
	c.GetIMEI(func(r Result) { results <- r })
	select {
	case r := <-results:
		if !errors.Is(r.Err, ErrChannelUnavailable) {
			t.Fatalf("expected ErrChannelUnavailable after stop, got %v", r.Err)
		}
	default:
		t.Fatalf("submit after stop must fail synchronously")
	}

	if err := c.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestQueueFullFailsImmediately(t *testing.T) {
	testlog.Start(t)

	cfg := testConfig("/nonexistent/rild")
	cfg.QueueSize = 1
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.keepalive.Close()

	first := make(chan Result, 1)
	second := make(chan Result, 1)
	c.GetIMEI(func(r Result) { first <- r })
	c.GetIMEI(func(r Result) { second <- r })

	select {
	case r := <-second:
		if !errors.Is(r.Err, ErrChannelUnavailable) {
			t.Fatalf("expected ErrChannelUnavailable, got %v", r.Err)
		}
	default:
		t.Fatalf("full queue must fail the submission synchronously")
	}
	select {
	case r := <-first:
		t.Fatalf("queued request completed early: %+v", r)
	default:
	}
	if st := c.Status(); st.Inflight != 1 || !st.KeepAliveHeld {
		t.Fatalf("queued request must hold the keep-alive: %+v", st)
	}
}

func TestNewRequiresAddress(t *testing.T) {
	testlog.Start(t)

	if _, err := New(Config{}); !errors.Is(err, ErrAddressRequired) {
		t.Fatalf("expected ErrAddressRequired, got %v", err)
	}
}

func TestSendRestampsRequestsFromOldEpoch(t *testing.T) {
	testlog.Start(t)

	c, err := New(testConfig("/nonexistent/rild"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.keepalive.Close()

	results := make(chan Result, 2)
	done := func(r Result) { results <- r }
	c.GetIMEI(done)
	c.GetIMSI(done)
	stale := <-c.queue
	stale2 := <-c.queue
	if stale2.Serial != 1 {
		t.Fatalf("expected serial 1 before reset, got %d", stale2.Serial)
	}

	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()
	c.link.Store(&link{conn: local, epoch: c.serials.Reset(), id: "test"})

	frames := make(chan protocol.Request, 2)
	go func() {
		for {
			payload, err := frame.ReadFrame(remote, frame.DefaultLimits())
			if err != nil {
				return
			}
			req, err := protocol.ParseRequest(payload)
			if err == nil {
				frames <- req
			}
		}
	}()

	c.send(stale2)
	c.send(stale)
	for want := int32(0); want < 2; want++ {
		select {
		case req := <-frames:
			if req.Serial != want {
				t.Fatalf("expected restamped serial %d, got %d", want, req.Serial)
			}
		case <-time.After(waitTimeout):
			t.Fatalf("no frame written")
		}
	}
	if got := c.Pending(); len(got) != 2 || got[0].Request != protocol.RequestGetIMSI {
		t.Fatalf("unexpected pending table: %+v", got)
	}
}

// hookConn runs onWrite before each Write reaches the wrapped conn. It hides
// the writev path, so a frame header and payload arrive as separate writes.
type hookConn struct {
	net.Conn
	onWrite func(n int) error
	writes  int
}

func (h *hookConn) Write(b []byte) (int, error) {
	h.writes++
	if h.onWrite != nil {
		if err := h.onWrite(h.writes); err != nil {
			return 0, err
		}
	}
	return h.Conn.Write(b)
}

// readFrames parses every request frame written to conn.
func readFrames(conn net.Conn) <-chan protocol.Request {
	frames := make(chan protocol.Request, 8)
	go func() {
		for {
			payload, err := frame.ReadFrame(conn, frame.DefaultLimits())
			if err != nil {
				return
			}
			if req, err := protocol.ParseRequest(payload); err == nil {
				frames <- req
			}
		}
	}()
	return frames
}

func nextFrame(t *testing.T, frames <-chan protocol.Request) protocol.Request {
	t.Helper()
	select {
	case req := <-frames:
		return req
	case <-time.After(waitTimeout):
		t.Fatalf("no frame written")
		return protocol.Request{}
	}
}

func TestWriteFailureFailsRequestAndKeepsLink(t *testing.T) {
	testlog.Start(t)

	d := fakedaemon.Start(t, fakedaemon.WithResponder(fakedaemon.DefaultResponder(fakedaemon.Identity{IMEI: "358240051111110"})))
	var failed atomic.Bool
	dial := func(ctx context.Context) (net.Conn, error) {
		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, "unix", d.Path())
		if err != nil {
			return nil, err
		}
		return &hookConn{Conn: conn, onWrite: func(int) error {
			if failed.CompareAndSwap(false, true) {
				return errors.New("write refused")
			}
			return nil
		}}, nil
	}
	c := startClient(t, d, nil, WithDialer(dial))

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if _, err := c.Call(ctx, protocol.RequestGetIMEI, nil); !errors.Is(err, ErrChannelUnavailable) {
		t.Fatalf("expected ErrChannelUnavailable, got %v", err)
	}
	if n := len(c.Pending()); n != 0 {
		t.Fatalf("failed write left %d pending", n)
	}
	if st := c.Status(); st.Pending != 0 {
		t.Fatalf("pending gauge not cleared: %+v", st)
	}

	imei, err := CallAs[string](ctx, c, protocol.RequestGetIMEI, nil)
	if err != nil || imei != "358240051111110" {
		t.Fatalf("request after write failure: %q %v", imei, err)
	}
	if d.Connections() != 1 {
		t.Fatalf("write failure should not redial, saw %d connections", d.Connections())
	}
}

func TestWrittenPayloadSurvivesEnvelopeReuse(t *testing.T) {
	testlog.Start(t)

	c, err := New(testConfig("/nonexistent/rild"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.keepalive.Close()

	results := make(chan Result, 1)
	c.GetIMEI(func(r Result) { results <- r })
	req := <-c.queue

	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	var reused *Request
	conn := &hookConn{Conn: local, onWrite: func(n int) error {
		if n != 1 {
			return nil
		}
		// completed and recycled between header and payload
		for _, r := range c.pending.Drain() {
			c.finish(r, nil, ErrChannelUnavailable)
		}
		reused = c.pool.Obtain(protocol.RequestHangup, nil)
		return nil
	}}
	c.link.Store(&link{conn: conn, epoch: req.epoch, id: "test"})
	frames := readFrames(remote)

	c.send(req)
	got := nextFrame(t, frames)
	if got.Type != protocol.RequestGetIMEI || got.Serial != 0 {
		t.Fatalf("written frame changed under reuse: %+v", got)
	}
	if reused != req {
		t.Fatalf("expected the envelope to be recycled during the write")
	}
	if r := awaitResult(t, results); !errors.Is(r.Err, ErrChannelUnavailable) {
		t.Fatalf("unexpected completion: %+v", r)
	}
}

func TestInitialRequestWrittenBeforeQueued(t *testing.T) {
	testlog.Start(t)

	c, err := New(testConfig("/nonexistent/rild"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.keepalive.Close()

	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()
	frames := readFrames(remote)

	l := &link{conn: local, epoch: c.serials.Reset(), id: "test"}
	powerOff, ok := c.prepare(protocol.RequestRadioPower, boolInts(false), nil)
	if !ok {
		t.Fatalf("prepare power off failed")
	}
	l.initial.Store(powerOff)
	c.link.Store(l)

	// a request that reached the queue before the dispatcher woke
	c.GetIMEI(nil)
	c.send(<-c.queue)

	if req := nextFrame(t, frames); req.Type != protocol.RequestRadioPower || req.Serial != 0 {
		t.Fatalf("expected RADIO_POWER first, got %+v", req)
	}
	if req := nextFrame(t, frames); req.Type != protocol.RequestGetIMEI || req.Serial != 1 {
		t.Fatalf("expected GET_IMEI second, got %+v", req)
	}

	c.flushInitial(l)
	if got := c.Pending(); len(got) != 2 {
		t.Fatalf("initial request written more than once: %+v", got)
	}
}

func TestDisconnectFailsUnsentInitialRequest(t *testing.T) {
	testlog.Start(t)

	c, err := New(testConfig("/nonexistent/rild"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.keepalive.Close()

	local, remote := net.Pipe()
	defer remote.Close()

	results := make(chan Result, 1)
	l := &link{conn: local, epoch: c.serials.Reset(), id: "test"}
	powerOff, ok := c.prepare(protocol.RequestRadioPower, boolInts(false), func(r Result) { results <- r })
	if !ok {
		t.Fatalf("prepare power off failed")
	}
	l.initial.Store(powerOff)
	c.link.Store(l)

	c.disconnect(l, "test")
	if r := awaitResult(t, results); !errors.Is(r.Err, ErrChannelUnavailable) {
		t.Fatalf("expected ErrChannelUnavailable, got %+v", r)
	}
	if !l.dead.Load() {
		t.Fatalf("link not marked dead")
	}

	// a dispatcher still holding l must not write to it
	c.GetIMEI(func(r Result) { results <- r })
	c.writeRequest(l, <-c.queue)
	if r := awaitResult(t, results); !errors.Is(r.Err, ErrChannelUnavailable) {
		t.Fatalf("expected write on dead link to fail, got %+v", r)
	}
	if n := len(c.Pending()); n != 0 {
		t.Fatalf("dead link left %d pending", n)
	}
}

func TestPowerOffOnlyOnFirstConnect(t *testing.T) {
	testlog.Start(t)

	d := fakedaemon.Start(t)
	c := startClient(t, d, func(cfg *Config) { cfg.PowerOffOnFirstConnect = true })

	req := nextRequest(t, d)
	if req.Type != protocol.RequestRadioPower || req.Serial != 0 {
		t.Fatalf("expected RADIO_POWER with serial 0 first, got %+v", req)
	}
	on, err := parcel.NewReader(req.Body).ReadInt32s()
	if err != nil || len(on) != 1 || on[0] != 0 {
		t.Fatalf("expected power off body, got %v err=%v", on, err)
	}
	if err := d.SendSolicited(req.Serial, protocol.StatusSuccess, nil); err != nil {
		t.Fatalf("send response: %v", err)
	}

	d.DropConnection()
	if err := d.WaitConnected(waitTimeout); err != nil {
		t.Fatalf("client did not reconnect: %v", err)
	}
	waitFor(t, "reconnected state", func() bool { return c.State() == Connected })

	c.GetIMEI(nil)
	req = nextRequest(t, d)
	if req.Type != protocol.RequestGetIMEI || req.Serial != 0 {
		t.Fatalf("expected GET_IMEI with serial 0 after reconnect, got %+v", req)
	}
}

func TestRadioStateBecomingAvailableSendsScreenOn(t *testing.T) {
	testlog.Start(t)

	d := fakedaemon.Start(t)
	c := startClient(t, d, func(cfg *Config) { cfg.ScreenOnWhenAvailable = true })

	events := make(chan Event, 2)
	c.Subscribe(protocol.EventRadioStateChanged, func(ev Event) { events <- ev })

	w := parcel.NewWriter(4)
	w.WriteInt32(int32(protocol.RadioSIMReady))
	if err := d.SendUnsolicited(protocol.EventRadioStateChanged, w.Bytes()); err != nil {
		t.Fatalf("send radio state: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Value != protocol.RadioSIMReady {
			t.Fatalf("unexpected event value %#v", ev.Value)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("radio state event not delivered")
	}
	if c.RadioState() != protocol.RadioSIMReady {
		t.Fatalf("radio state not tracked: %s", c.RadioState())
	}

	req := nextRequest(t, d)
	if req.Type != protocol.RequestScreenState {
		t.Fatalf("expected SCREEN_STATE, got %s", protocol.RequestName(req.Type))
	}
	on, err := parcel.NewReader(req.Body).ReadInt32s()
	if err != nil || len(on) != 1 || on[0] != 1 {
		t.Fatalf("expected screen on body, got %v err=%v", on, err)
	}

	// available to available does not repeat it
	w.Reset()
	w.WriteInt32(int32(protocol.RadioOff))
	if err := d.SendUnsolicited(protocol.EventRadioStateChanged, w.Bytes()); err != nil {
		t.Fatalf("send radio state: %v", err)
	}
	<-events
	if req, err := d.NextRequest(100 * time.Millisecond); err == nil {
		t.Fatalf("unexpected request %s", protocol.RequestName(req.Type))
	}

	d.DropConnection()
	waitFor(t, "radio unavailable after disconnect", func() bool {
		return c.RadioState() == protocol.RadioUnavailable
	})
}
