package ril

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/danmuck/rilctl/internal/observability"
)

// PendingRequest describes one request awaiting its response.
type PendingRequest struct {
	Serial  int32 `json:"serial"`
	Request int32 `json:"request"`
}

// pendingTable tracks written requests by serial. size mirrors len(items)
// so the keep-alive controller can read it without taking mu.
type pendingTable struct {
	mu    sync.Mutex
	items map[int32]*Request
	size  atomic.Int64
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		items: make(map[int32]*Request),
	}
}

// Register adds r under its serial. It reports false if the serial is taken.
func (t *pendingTable) Register(r *Request) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.items[r.Serial]; exists {
		return false
	}
	t.items[r.Serial] = r
	t.publishLocked()
	return true
}

func (t *pendingTable) FindAndRemove(serial int32) (*Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.items[serial]
	if !ok {
		return nil, false
	}
	delete(t.items, serial)
	t.publishLocked()
	return r, true
}

// Drain empties the table and returns its entries ordered by serial.
func (t *pendingTable) Drain() []*Request {
	t.mu.Lock()
	items := t.items
	t.items = make(map[int32]*Request)
	t.publishLocked()
	t.mu.Unlock()

	out := make([]*Request, 0, len(items))
	for _, r := range items {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Serial < out[j].Serial
	})
	return out
}

func (t *pendingTable) Len() int {
	return int(t.size.Load())
}

func (t *pendingTable) List() []PendingRequest {
	t.mu.Lock()
	out := make([]PendingRequest, 0, len(t.items))
	for serial, r := range t.items {
		out = append(out, PendingRequest{Serial: serial, Request: r.Type})
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Serial < out[j].Serial
	})
	return out
}

func (t *pendingTable) publishLocked() {
	n := len(t.items)
	t.size.Store(int64(n))
	observability.SetPending(n)
}
