// Package presence tracks which participants hold a live channel.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"

	pb "github.com/mqy/pairchat/proto"
)

const persistTimeout = 3 * time.Second

var onlineGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "pairchat_online_participants",
	Help: "Number of participants holding a live channel.",
})

func init() {
	prometheus.MustRegister(onlineGauge)
}

// Channel is one live connection bound to one identity.
type Channel interface {
	Identity() string
	// Push queues msg for the peer and reports whether it was accepted.
	// It must not block.
	Push(msg *pb.ServerMsg) bool
}

// Persister stores the online flag and last-seen of a participant.
type Persister interface {
	SetPresence(ctx context.Context, id string, online bool, lastSeen int64) error
}

// Registry maps an identity to zero or one live channel.
type Registry interface {
	// Register binds ch to id, replacing any previous binding, and tells every
	// online contact that id is online.
	Register(id string, ch Channel, contacts []string)

	// Unregister removes the binding of ch if ch is still the one bound to its identity.
	Unregister(ch Channel)

	ChannelOf(id string) (Channel, bool)

	// SetOnline overrides the online flag of a known identity.
	SetOnline(id string, online bool)

	// Online reports the online flag and last-seen (unix seconds) of id.
	Online(id string) (online bool, lastSeen int64)
}

type binding struct {
	ch       Channel
	online   bool
	lastSeen int64
	contacts []string

	seq       uint64     // bumped under the registry lock on every presence change
	persistMu sync.Mutex // serializes writes of this identity
	persisted uint64     // seq of the last state written
}

type registry struct {
	sync.RWMutex
	kv        map[string]*binding
	persister Persister
	now       func() time.Time
}

// NewRegistry creates an in-memory registry. persister may be nil.
func NewRegistry(persister Persister) *registry {
	return &registry{
		kv:        make(map[string]*binding),
		persister: persister,
		now:       time.Now,
	}
}

func (r *registry) Register(id string, ch Channel, contacts []string) {
	now := r.now().Unix()

	r.Lock()
	b, ok := r.kv[id]
	var old Channel
	if ok {
		old = b.ch
	} else {
		b = &binding{}
		r.kv[id] = b
	}
	wasOnline := b.online
	b.ch = ch
	b.online = true
	b.lastSeen = now
	b.contacts = append([]string(nil), contacts...)
	b.seq++
	seq := b.seq
	r.Unlock()

	if !wasOnline {
		onlineGauge.Inc()
	}
	if old != nil && old != ch {
		glog.V(5).Infof("presence: %s reconnected, kicking off previous channel", id)
		old.Push(&pb.ServerMsg{Kickoff: true})
	}

	r.persist(id, b, seq, true, now)
	r.broadcast(id, contacts, &pb.Presence{Id: id, Online: true, LastSeen: now})
}

func (r *registry) Unregister(ch Channel) {
	if ch == nil {
		return
	}
	id := ch.Identity()
	now := r.now().Unix()

	r.Lock()
	b, ok := r.kv[id]
	if !ok || b.ch != ch {
		r.Unlock()
		return
	}
	b.ch = nil
	wasOnline := b.online
	b.online = false
	b.lastSeen = now
	contacts := b.contacts
	b.seq++
	seq := b.seq
	r.Unlock()

	if wasOnline {
		onlineGauge.Dec()
	}
	r.persist(id, b, seq, false, now)
	r.broadcast(id, contacts, &pb.Presence{Id: id, Online: false, LastSeen: now})
}

func (r *registry) ChannelOf(id string) (Channel, bool) {
	r.RLock()
	defer r.RUnlock()
	if b, ok := r.kv[id]; ok && b.ch != nil {
		return b.ch, true
	}
	return nil, false
}

func (r *registry) SetOnline(id string, online bool) {
	now := r.now().Unix()

	r.Lock()
	b, ok := r.kv[id]
	if !ok || b.online == online {
		r.Unlock()
		return
	}
	b.online = online
	b.lastSeen = now
	b.seq++
	seq := b.seq
	r.Unlock()

	if online {
		onlineGauge.Inc()
	} else {
		onlineGauge.Dec()
	}
	r.persist(id, b, seq, online, now)
}

func (r *registry) Online(id string) (bool, int64) {
	r.RLock()
	defer r.RUnlock()
	if b, ok := r.kv[id]; ok {
		return b.online, b.lastSeen
	}
	return false, 0
}

func (r *registry) broadcast(id string, contacts []string, p *pb.Presence) {
	for _, c := range contacts {
		if c == id {
			continue
		}
		if ch, ok := r.ChannelOf(c); ok {
			ch.Push(&pb.ServerMsg{Presence: p})
		}
	}
}

// persist writes the state numbered seq unless a later state of b was written already.
func (r *registry) persist(id string, b *binding, seq uint64, online bool, lastSeen int64) {
	if r.persister == nil {
		return
	}
	b.persistMu.Lock()
	defer b.persistMu.Unlock()
	if seq <= b.persisted {
		glog.V(5).Infof("presence: stale state of %s online=%v not persisted", id, online)
		return
	}
	b.persisted = seq

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.persister.SetPresence(ctx, id, online, lastSeen); err != nil {
		glog.Errorf("presence: persist %s online=%v: %v", id, online, err)
	}
}
