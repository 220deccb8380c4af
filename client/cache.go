// Package client keeps a participant's local view of conversations and contacts in sync
// with the server, and owns the websocket connection that feeds it.
package client

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/mqy/pairchat/crypto"
	pb "github.com/mqy/pairchat/proto"
	"github.com/mqy/pairchat/status"
)

var ErrNoPeer = errors.New("client: peer is required")

type EventKind int

const (
	// EventMessages: the conversation with peer changed.
	EventMessages EventKind = iota + 1
	// EventContacts: the contact list changed, peer is the contact touched.
	EventContacts
	// EventUnread: the unread counter of peer changed.
	EventUnread
)

func (k EventKind) String() string {
	switch k {
	case EventMessages:
		return "messages"
	case EventContacts:
		return "contacts"
	case EventUnread:
		return "unread"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Listener is called after each state change, outside of any cache lock.
type Listener func(kind EventKind, peer string)

// Requester sends requests to the server. Implementations must not block on the network.
type Requester interface {
	Send(to, payload string) error
	Fetch(peer string) error
	Read(ids []string) error
	Contact(id string) error
	Contacts() error
}

// Entry is one message as displayed.
type Entry struct {
	// Token identifies a provisional entry; it is kept after confirmation.
	Token       string
	Provisional bool
	// Failed marks a provisional entry the server rejected or that was never written.
	// It is never confirmed.
	Failed  bool
	Message pb.Message
	// Text is the plaintext, or crypto.Placeholder when it could not be decrypted.
	Text string
}

type event struct {
	kind EventKind
	peer string
}

// Cache is the client-held optimistic view of messages and contacts.
type Cache struct {
	sync.Mutex

	self     string
	req      Requester
	listener Listener
	now      func() time.Time

	conv        map[string][]*Entry // peer -> entries, oldest first
	byId        map[string]*Entry
	provisional map[string][]*Entry // peer -> unconfirmed entries, oldest first
	seq         int

	contacts  map[string]*pb.Contact
	order     []string                 // contact ids in materialization order
	held      map[string][]*pb.Message // inbound from senders not yet materialized
	requested map[string]bool

	unread  map[string]int
	open    string
	pending *status.Pending
}

func NewCache(self string, req Requester, listener Listener) *Cache {
	if listener == nil {
		listener = func(EventKind, string) {}
	}
	return &Cache{
		self:        self,
		req:         req,
		listener:    listener,
		now:         time.Now,
		conv:        make(map[string][]*Entry),
		byId:        make(map[string]*Entry),
		provisional: make(map[string][]*Entry),
		contacts:    make(map[string]*pb.Contact),
		held:        make(map[string][]*pb.Message),
		requested:   make(map[string]bool),
		unread:      make(map[string]int),
		pending:     status.NewPending(),
	}
}

func (c *Cache) key(peer string) crypto.Key {
	return crypto.DeriveKey(c.self, peer)
}

// SendOptimistic shows the message locally as sent and hands it to the requester.
// It returns the provisional token of the new entry. A requester error leaves the entry
// in place, the requester is expected to retry it.
func (c *Cache) SendOptimistic(peer, text string) (string, error) {
	if peer == "" {
		return "", ErrNoPeer
	}
	payload, err := crypto.Seal([]byte(text), c.key(peer))
	if err != nil {
		return "", fmt.Errorf("client: seal: %w", err)
	}

	c.Lock()
	c.seq++
	e := &Entry{
		Token:       fmt.Sprintf("p-%d", c.seq),
		Provisional: true,
		Message: pb.Message{
			From:       c.self,
			To:         peer,
			Payload:    payload,
			CreateTime: c.now().UnixNano() / 1e3,
			Status:     pb.StatusSent,
		},
		Text: text,
	}
	c.conv[peer] = append(c.conv[peer], e)
	c.provisional[peer] = append(c.provisional[peer], e)
	events := []event{{EventMessages, peer}}
	lookup := c.materializeLocked(peer, &events)
	c.Unlock()

	if lookup {
		c.request(func() error { return c.req.Contact(peer) })
	}
	c.notify(events)
	return e.Token, c.req.Send(peer, payload)
}

// OnAck confirms the oldest provisional entry of the conversation with the server's message.
func (c *Cache) OnAck(m *pb.Message) {
	if m.From != c.self {
		glog.Errorf("client: ack for message %s from %s ignored", m.Id, m.From)
		return
	}
	peer := m.To

	c.Lock()
	if e, ok := c.byId[m.Id]; ok {
		e.Message.Status, _ = status.Advance(e.Message.Status, m.Status)
		c.Unlock()
		c.notify([]event{{EventMessages, peer}})
		return
	}

	var e *Entry
	if q := c.provisional[peer]; len(q) > 0 {
		e = q[0]
		c.provisional[peer] = q[1:]
		if len(q) == 1 {
			delete(c.provisional, peer)
		}
		e.Provisional = false
		cur := e.Message.Status
		e.Message = *m
		e.Message.Status, _ = status.Advance(cur, m.Status)
	} else {
		// sent from another session of ours
		e = &Entry{Message: *m, Text: crypto.Display(m.Payload, c.key(peer))}
		c.insertLocked(peer, e)
	}
	c.confirmLocked(e)
	c.Unlock()

	c.notify([]event{{EventMessages, peer}})
}

// OnSendFailed marks the provisional entry carrying payload as failed, so later acks
// are matched against the remaining ones.
func (c *Cache) OnSendFailed(to, payload string) {
	c.Lock()
	e := c.takeProvisionalLocked(to, payload)
	if e == nil {
		c.Unlock()
		glog.V(5).Infof("client: failed send to %s has no provisional entry", to)
		return
	}
	e.Provisional = false
	e.Failed = true
	c.Unlock()

	c.notify([]event{{EventMessages, to}})
}

// OnStatus applies a status update, or buffers it until the message shows up.
func (c *Cache) OnStatus(id string, s pb.Status) {
	c.Lock()
	e, ok := c.byId[id]
	if !ok {
		c.pending.Put(id, s)
		c.Unlock()
		glog.V(5).Infof("client: status %s for %s buffered", s, id)
		return
	}
	next, changed := status.Advance(e.Message.Status, s)
	e.Message.Status = next
	peer := e.Message.Peer(c.self)
	c.Unlock()

	if changed {
		c.notify([]event{{EventMessages, peer}})
	}
}

// OnInbound adds a message addressed to us. Redelivered ids are ignored. Messages from
// senders that are not contacts yet, or that still have held messages, are held until
// OnContact materializes the sender.
func (c *Cache) OnInbound(m *pb.Message) {
	if m.To != c.self {
		glog.Errorf("client: inbound message %s to %s ignored", m.Id, m.To)
		return
	}
	peer := m.From

	c.Lock()
	if _, ok := c.byId[m.Id]; ok {
		c.Unlock()
		return
	}
	if _, ok := c.contacts[peer]; !ok || len(c.held[peer]) > 0 {
		for _, h := range c.held[peer] {
			if h.Id == m.Id {
				c.Unlock()
				return
			}
		}
		c.held[peer] = append(c.held[peer], m)
		ask := !c.requested[peer]
		c.requested[peer] = true
		c.Unlock()

		if ask {
			c.request(func() error { return c.req.Contact(peer) })
		}
		return
	}

	var events []event
	read := c.addInboundLocked(m, true, &events)
	c.Unlock()

	if len(read) > 0 {
		c.request(func() error { return c.req.Read(read) })
	}
	c.notify(events)
}

// addInboundLocked inserts a materialized inbound message. It returns ids to mark read
// when markRead is set and the conversation is open.
func (c *Cache) addInboundLocked(m *pb.Message, markRead bool, events *[]event) []string {
	peer := m.From
	e := &Entry{Message: *m, Text: crypto.Display(m.Payload, c.key(peer))}
	c.insertLocked(peer, e)
	c.confirmLocked(e)
	*events = append(*events, event{EventMessages, peer})

	if status.Terminal(e.Message.Status) {
		return nil
	}
	if c.open == peer {
		e.Message.Status = pb.StatusRead
		if markRead {
			return []string{e.Message.Id}
		}
		return nil
	}
	c.unread[peer]++
	*events = append(*events, event{EventUnread, peer})
	return nil
}

// OpenConversation makes peer the open conversation, zeroes its unread counter and asks
// the server for the conversation, which marks it read there.
func (c *Cache) OpenConversation(peer string) error {
	if peer == "" {
		return ErrNoPeer
	}
	c.Lock()
	c.open = peer
	c.unread[peer] = 0
	for _, e := range c.conv[peer] {
		if e.Message.To == c.self {
			e.Message.Status, _ = status.Advance(e.Message.Status, pb.StatusRead)
		}
	}
	c.Unlock()

	c.notify([]event{{EventUnread, peer}, {EventMessages, peer}})
	return c.req.Fetch(peer)
}

// OnConversation merges a fetched conversation.
func (c *Cache) OnConversation(peer string, msgs []*pb.Message) {
	var events []event

	c.Lock()
	for _, m := range msgs {
		if e, ok := c.byId[m.Id]; ok {
			e.Message.Status, _ = status.Advance(e.Message.Status, m.Status)
			continue
		}
		if m.From == c.self {
			if e := c.takeProvisionalLocked(peer, m.Payload); e != nil {
				e.Provisional = false
				cur := e.Message.Status
				e.Message = *m
				e.Message.Status, _ = status.Advance(cur, m.Status)
				c.confirmLocked(e)
				continue
			}
			e := &Entry{Message: *m, Text: crypto.Display(m.Payload, c.key(peer))}
			c.insertLocked(peer, e)
			c.confirmLocked(e)
			continue
		}
		c.addInboundLocked(m, false, &events)
	}
	lookup := c.materializeLocked(peer, &events)
	c.Unlock()

	if lookup {
		c.request(func() error { return c.req.Contact(peer) })
	}
	c.notify(append(events, event{EventMessages, peer}))
}

// OnContact adds or refreshes a contact, and releases messages held for it.
func (c *Cache) OnContact(ct *pb.Contact) {
	var events []event
	var read []string

	c.Lock()
	if old, ok := c.contacts[ct.Id]; ok {
		*old = *ct
	} else {
		v := *ct
		c.contacts[ct.Id] = &v
		c.order = append(c.order, ct.Id)
	}
	delete(c.requested, ct.Id)
	events = append(events, event{EventContacts, ct.Id})

	held := c.held[ct.Id]
	delete(c.held, ct.Id)
	for _, m := range held {
		if _, ok := c.byId[m.Id]; ok {
			continue
		}
		read = append(read, c.addInboundLocked(m, true, &events)...)
	}
	// the server count already includes released messages
	if n := int(ct.UnreadCount); c.open != ct.Id && n > c.unread[ct.Id] {
		c.unread[ct.Id] = n
		events = append(events, event{EventUnread, ct.Id})
	}
	c.Unlock()

	if len(read) > 0 {
		c.request(func() error { return c.req.Read(read) })
	}
	c.notify(events)
}

func (c *Cache) OnContacts(cs []*pb.Contact) {
	for _, ct := range cs {
		c.OnContact(ct)
	}
}

// OnPresence updates the online flag of a contact, adding it if needed.
func (c *Cache) OnPresence(p *pb.Presence) {
	c.Lock()
	ct, ok := c.contacts[p.Id]
	if !ok {
		ct = &pb.Contact{Id: p.Id}
		c.contacts[p.Id] = ct
		c.order = append(c.order, p.Id)
	}
	ct.Online = p.Online
	if p.LastSeen > 0 {
		ct.LastSeen = p.LastSeen
	}
	c.Unlock()

	c.notify([]event{{EventContacts, p.Id}})
}

// Handle dispatches one server message.
func (c *Cache) Handle(msg *pb.ServerMsg) {
	switch {
	case msg.Inbound != nil:
		c.OnInbound(msg.Inbound)
	case msg.Ack != nil:
		c.OnAck(msg.Ack)
	case msg.Status != nil:
		c.OnStatus(msg.Status.Id, msg.Status.Status)
	case msg.Presence != nil:
		c.OnPresence(msg.Presence)
	case msg.Conversation != nil:
		c.OnConversation(msg.Conversation.Peer, msg.Conversation.Messages)
	case msg.Contact != nil:
		c.OnContact(msg.Contact)
	case msg.Contacts != nil:
		c.OnContacts(msg.Contacts.Contacts)
	case msg.Error != nil:
		glog.Errorf("client: server error: code: %d, params: %v", msg.Error.Code, msg.Error.Params)
		if req := msg.Error.Req; req != nil && req.Send != nil {
			c.OnSendFailed(req.Send.To, req.Send.Payload)
		}
	}
}

// Resync re-issues the requests a reconnect may have lost: the contact list, lookups of
// held senders and the open conversation.
func (c *Cache) Resync() {
	c.Lock()
	open := c.open
	var ids []string
	for id := range c.held {
		ids = append(ids, id)
		c.requested[id] = true
	}
	c.Unlock()

	sort.Strings(ids)
	c.request(c.req.Contacts)
	for _, id := range ids {
		id := id
		c.request(func() error { return c.req.Contact(id) })
	}
	if open != "" {
		c.request(func() error { return c.req.Fetch(open) })
	}
}

// Messages returns a copy of the conversation with peer, oldest first.
func (c *Cache) Messages(peer string) []Entry {
	c.Lock()
	defer c.Unlock()
	out := make([]Entry, 0, len(c.conv[peer]))
	for _, e := range c.conv[peer] {
		out = append(out, *e)
	}
	return out
}

// Contacts returns a copy of the contacts in the order they became known.
func (c *Cache) Contacts() []pb.Contact {
	c.Lock()
	defer c.Unlock()
	out := make([]pb.Contact, 0, len(c.order))
	for _, id := range c.order {
		ct := *c.contacts[id]
		ct.UnreadCount = int32(c.unread[id])
		out = append(out, ct)
	}
	return out
}

func (c *Cache) Unread(peer string) int {
	c.Lock()
	defer c.Unlock()
	return c.unread[peer]
}

// Open returns the open conversation, or "".
func (c *Cache) Open() string {
	c.Lock()
	defer c.Unlock()
	return c.open
}

// insertLocked places e by create time. Entries with equal time keep arrival order.
func (c *Cache) insertLocked(peer string, e *Entry) {
	list := c.conv[peer]
	i := sort.Search(len(list), func(i int) bool {
		return list[i].Message.CreateTime > e.Message.CreateTime
	})
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = e
	c.conv[peer] = list
}

// confirmLocked indexes a confirmed entry and applies any status buffered for it.
func (c *Cache) confirmLocked(e *Entry) {
	c.byId[e.Message.Id] = e
	if s, ok := c.pending.Take(e.Message.Id); ok {
		e.Message.Status, _ = status.Advance(e.Message.Status, s)
	}
}

func (c *Cache) takeProvisionalLocked(peer, payload string) *Entry {
	q := c.provisional[peer]
	for i, e := range q {
		if e.Message.Payload == payload {
			c.provisional[peer] = append(q[:i:i], q[i+1:]...)
			if len(c.provisional[peer]) == 0 {
				delete(c.provisional, peer)
			}
			return e
		}
	}
	return nil
}

// materializeLocked adds peer as a contact placeholder if unknown, and reports whether
// a lookup should be requested.
func (c *Cache) materializeLocked(peer string, events *[]event) bool {
	if _, ok := c.contacts[peer]; ok {
		return false
	}
	c.contacts[peer] = &pb.Contact{Id: peer}
	c.order = append(c.order, peer)
	*events = append(*events, event{EventContacts, peer})
	if c.requested[peer] {
		return false
	}
	c.requested[peer] = true
	return true
}

func (c *Cache) request(fn func() error) {
	if err := fn(); err != nil {
		glog.Errorf("client: request error: %v", err)
	}
}

func (c *Cache) notify(events []event) {
	for _, e := range events {
		c.listener(e.kind, e.peer)
	}
}
