package ril

import (
	"sync"
	"time"

	"github.com/danmuck/rilctl/internal/protocol"
	"github.com/danmuck/rilctl/internal/protocol/parcel"
	"github.com/rs/zerolog"
)

const requestBufferCap = 256

// Request is one outbound envelope. It is owned by exactly one party at a
// time: the submitter, the dispatch queue, the pending table, or the party
// that removed it from the pending table to complete it.
type Request struct {
	Serial int32
	Type   int32

	epoch     uint64
	buf       *parcel.Writer
	done      Completion
	submitted time.Time
	released  bool
}

// Payload returns the encoded request, header included.
func (r *Request) Payload() []byte {
	return r.buf.Bytes()
}

// restamp moves the request into a newer epoch under a new serial.
func (r *Request) restamp(serial int32, epoch uint64) {
	// the header is written by obtain, so the offset is always in range
	_ = r.buf.PutInt32At(protocol.RequestSerialOffset, serial)
	r.Serial = serial
	r.epoch = epoch
}

// requestPool recycles envelopes through a bounded free list.
type requestPool struct {
	mu      sync.Mutex
	free    []*Request
	max     int
	serials *serialAllocator
	log     zerolog.Logger
}

func newRequestPool(limit int, serials *serialAllocator, log zerolog.Logger) *requestPool {
	return &requestPool{
		free:    make([]*Request, 0, limit),
		max:     limit,
		serials: serials,
		log:     log,
	}
}

// Obtain returns an envelope with a fresh serial and its header written.
func (p *requestPool) Obtain(requestType int32, done Completion) *Request {
	var r *Request
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		r = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	if r == nil {
		r = &Request{buf: parcel.NewWriter(requestBufferCap)}
	}

	serial, epoch := p.serials.Next()
	r.Serial = serial
	r.Type = requestType
	r.epoch = epoch
	r.done = done
	r.submitted = time.Now()
	r.released = false
	r.buf.Reset()
	protocol.WriteRequestHeader(r.buf, requestType, serial)
	return r
}

// Release returns r to the free list. It must be called once per Obtain,
// after the completion has been delivered.
func (p *requestPool) Release(r *Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.released {
		p.log.Error().Int32("serial", r.Serial).Str("request", protocol.RequestName(r.Type)).Msg("request released twice")
		return
	}
	r.released = true
	r.done = nil
	if len(p.free) < p.max {
		p.free = append(p.free, r)
	}
}

func (p *requestPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
