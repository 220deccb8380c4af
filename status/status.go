// Package status implements the message delivery state machine.
//
// States are ordered sent < delivered < read and read is terminal. A transition
// never moves a message backwards, so applying the same update twice, or applying
// updates out of order, converges on the highest status seen.
package status

import (
	"sync"

	pb "github.com/mqy/pairchat/proto"
)

// Advance returns the status a message in cur ends up in after next is applied,
// and whether that differs from cur. Invalid next values are ignored.
func Advance(cur, next pb.Status) (pb.Status, bool) {
	if !next.Valid() || next <= cur {
		return cur, false
	}
	return next, true
}

// Terminal reports whether no further transition is possible from s.
func Terminal(s pb.Status) bool {
	return s == pb.StatusRead
}

// Pending buffers status updates that arrived before the message they refer to.
type Pending struct {
	sync.Mutex
	kv map[string]pb.Status
}

func NewPending() *Pending {
	return &Pending{kv: make(map[string]pb.Status)}
}

// Put records next for id, keeping the highest status buffered so far.
func (p *Pending) Put(id string, next pb.Status) {
	if !next.Valid() {
		return
	}
	p.Lock()
	if cur, ok := p.kv[id]; !ok || next > cur {
		p.kv[id] = next
	}
	p.Unlock()
}

// Take removes and returns the buffered status for id.
func (p *Pending) Take(id string) (pb.Status, bool) {
	p.Lock()
	defer p.Unlock()
	s, ok := p.kv[id]
	if ok {
		delete(p.kv, id)
	}
	return s, ok
}

func (p *Pending) Len() int {
	p.Lock()
	defer p.Unlock()
	return len(p.kv)
}
