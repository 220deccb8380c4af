package client

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqy/pairchat/crypto"
	pb "github.com/mqy/pairchat/proto"
)

type recorder struct {
	sync.Mutex
	sends    []*pb.SendReq
	fetches  []string
	reads    [][]string
	contacts []string
	lists    int
}

func (r *recorder) Send(to, payload string) error {
	r.Lock()
	defer r.Unlock()
	r.sends = append(r.sends, &pb.SendReq{To: to, Payload: payload})
	return nil
}

func (r *recorder) Fetch(peer string) error {
	r.Lock()
	defer r.Unlock()
	r.fetches = append(r.fetches, peer)
	return nil
}

func (r *recorder) Read(ids []string) error {
	r.Lock()
	defer r.Unlock()
	r.reads = append(r.reads, ids)
	return nil
}

func (r *recorder) Contact(id string) error {
	r.Lock()
	defer r.Unlock()
	r.contacts = append(r.contacts, id)
	return nil
}

func (r *recorder) Contacts() error {
	r.Lock()
	defer r.Unlock()
	r.lists++
	return nil
}

func sealFor(t *testing.T, a, b, text string) string {
	blob, err := crypto.Seal([]byte(text), crypto.DeriveKey(a, b))
	require.NoError(t, err)
	return blob
}

func newTestCache(self string, contacts ...string) (*Cache, *recorder) {
	rec := &recorder{}
	c := NewCache(self, rec, nil)
	for _, id := range contacts {
		c.OnContact(&pb.Contact{Id: id})
	}
	return c, rec
}

func TestSendOptimisticThenAck(t *testing.T) {
	c, rec := newTestCache("u1", "u2")

	token, err := c.SendOptimistic("u2", "hi")
	require.NoError(t, err)
	assert.Equal(t, "p-1", token)

	msgs := c.Messages("u2")
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Provisional)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, pb.StatusSent, msgs[0].Message.Status)
	assert.Empty(t, msgs[0].Message.Id)

	require.Len(t, rec.sends, 1)
	assert.Equal(t, "u2", rec.sends[0].To)
	assert.Equal(t, msgs[0].Message.Payload, rec.sends[0].Payload)

	c.OnAck(&pb.Message{Id: "m1", From: "u1", To: "u2", Payload: rec.sends[0].Payload, CreateTime: 10})
	msgs = c.Messages("u2")
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].Provisional)
	assert.Equal(t, "m1", msgs[0].Message.Id)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, token, msgs[0].Token)

	// redelivered ack
	c.OnAck(&pb.Message{Id: "m1", From: "u1", To: "u2", Payload: rec.sends[0].Payload, CreateTime: 10})
	assert.Len(t, c.Messages("u2"), 1)
}

func TestAckReplacesOldestProvisional(t *testing.T) {
	c, rec := newTestCache("u1", "u2")

	_, err := c.SendOptimistic("u2", "one")
	require.NoError(t, err)
	_, err = c.SendOptimistic("u2", "two")
	require.NoError(t, err)

	c.OnAck(&pb.Message{Id: "m1", From: "u1", To: "u2", Payload: rec.sends[0].Payload, CreateTime: 10})
	msgs := c.Messages("u2")
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].Message.Id)
	assert.Equal(t, "one", msgs[0].Text)
	assert.True(t, msgs[1].Provisional)

	c.OnAck(&pb.Message{Id: "m2", From: "u1", To: "u2", Payload: rec.sends[1].Payload, CreateTime: 11})
	msgs = c.Messages("u2")
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[1].Message.Id)
	assert.Equal(t, "two", msgs[1].Text)
}

func TestRejectedSendDoesNotTakeNextAck(t *testing.T) {
	c, rec := newTestCache("u1", "u2")

	_, err := c.SendOptimistic("u2", "too big")
	require.NoError(t, err)
	c.Handle(&pb.ServerMsg{Error: &pb.Error{
		Code: 3,
		Req:  &pb.ClientMsg{Send: rec.sends[0]},
	}})

	msgs := c.Messages("u2")
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Failed)
	assert.False(t, msgs[0].Provisional)

	_, err = c.SendOptimistic("u2", "second")
	require.NoError(t, err)
	c.OnAck(&pb.Message{Id: "m2", From: "u1", To: "u2", Payload: rec.sends[1].Payload, CreateTime: 11})

	msgs = c.Messages("u2")
	require.Len(t, msgs, 2)
	assert.Equal(t, "too big", msgs[0].Text)
	assert.Empty(t, msgs[0].Message.Id)
	assert.True(t, msgs[0].Failed)
	assert.Equal(t, "second", msgs[1].Text)
	assert.Equal(t, "m2", msgs[1].Message.Id)
	assert.False(t, msgs[1].Provisional)

	// errors of other requests, or for unknown payloads, change nothing
	c.Handle(&pb.ServerMsg{Error: &pb.Error{Code: 5, Req: &pb.ClientMsg{Fetch: &pb.FetchReq{Peer: "u2"}}}})
	c.OnSendFailed("u2", "unknown")
	assert.Equal(t, msgs, c.Messages("u2"))
}

// Scenario D: read arrives before the ack.
func TestStatusBeforeAckIsBuffered(t *testing.T) {
	c, rec := newTestCache("u1", "u2")
	_, err := c.SendOptimistic("u2", "hi")
	require.NoError(t, err)

	c.OnStatus("X", pb.StatusRead)
	c.OnStatus("X", pb.StatusDelivered)
	assert.Equal(t, pb.StatusSent, c.Messages("u2")[0].Message.Status)

	c.OnAck(&pb.Message{Id: "X", From: "u1", To: "u2", Payload: rec.sends[0].Payload, Status: pb.StatusSent})
	msgs := c.Messages("u2")
	require.Len(t, msgs, 1)
	assert.Equal(t, pb.StatusRead, msgs[0].Message.Status)
}

func TestStatusNeverRegresses(t *testing.T) {
	c, rec := newTestCache("u1", "u2")
	_, err := c.SendOptimistic("u2", "hi")
	require.NoError(t, err)
	c.OnAck(&pb.Message{Id: "m1", From: "u1", To: "u2", Payload: rec.sends[0].Payload})

	c.OnStatus("m1", pb.StatusRead)
	c.OnStatus("m1", pb.StatusDelivered)
	c.OnAck(&pb.Message{Id: "m1", From: "u1", To: "u2", Payload: rec.sends[0].Payload, Status: pb.StatusSent})
	assert.Equal(t, pb.StatusRead, c.Messages("u2")[0].Message.Status)
}

// Scenario E: first message from an unknown sender.
func TestInboundFromUnknownSender(t *testing.T) {
	c, rec := newTestCache("u2")
	m := &pb.Message{Id: "m1", From: "u3", To: "u2", Payload: sealFor(t, "u3", "u2", "hello"), CreateTime: 5}

	c.OnInbound(m)
	c.OnInbound(m)
	assert.Empty(t, c.Messages("u3"))
	assert.Empty(t, c.Contacts())
	assert.Equal(t, []string{"u3"}, rec.contacts)

	c.OnContact(&pb.Contact{Id: "u3", Online: true, UnreadCount: 1})
	c.OnInbound(m)

	cs := c.Contacts()
	require.Len(t, cs, 1)
	assert.Equal(t, "u3", cs[0].Id)
	assert.True(t, cs[0].Online)

	msgs := c.Messages("u3")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, 1, c.Unread("u3"))
}

func TestHeldMessagesKeepArrivalOrder(t *testing.T) {
	c, _ := newTestCache("u2")
	for i, id := range []string{"a", "b", "c"} {
		c.OnInbound(&pb.Message{Id: id, From: "u3", To: "u2", Payload: "x", CreateTime: int64(i + 1)})
	}
	c.OnContact(&pb.Contact{Id: "u3"})

	msgs := c.Messages("u3")
	require.Len(t, msgs, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, msgs[i].Message.Id)
		assert.Equal(t, crypto.Placeholder, msgs[i].Text)
	}
	assert.Equal(t, 3, c.Unread("u3"))
}

func TestPresenceDoesNotReleaseHeldMessages(t *testing.T) {
	c, rec := newTestCache("u2")
	c.OnInbound(&pb.Message{Id: "a", From: "u3", To: "u2", Payload: "x", CreateTime: 1})
	c.OnPresence(&pb.Presence{Id: "u3", Online: true})
	c.OnInbound(&pb.Message{Id: "b", From: "u3", To: "u2", Payload: "x", CreateTime: 2})
	assert.Empty(t, c.Messages("u3"))
	assert.Equal(t, []string{"u3"}, rec.contacts)

	c.OnContact(&pb.Contact{Id: "u3", Online: true})
	msgs := c.Messages("u3")
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Message.Id)
	assert.Equal(t, "b", msgs[1].Message.Id)
}

func TestOpenConversation(t *testing.T) {
	c, rec := newTestCache("u2", "u1")
	c.OnInbound(&pb.Message{Id: "m1", From: "u1", To: "u2", Payload: sealFor(t, "u1", "u2", "hi"), CreateTime: 1})
	c.OnInbound(&pb.Message{Id: "m2", From: "u1", To: "u2", Payload: sealFor(t, "u1", "u2", "there"), CreateTime: 2})
	assert.Equal(t, 2, c.Unread("u1"))

	require.NoError(t, c.OpenConversation("u1"))
	assert.Zero(t, c.Unread("u1"))
	assert.Equal(t, "u1", c.Open())
	assert.Equal(t, []string{"u1"}, rec.fetches)

	// an inbound message for the open conversation is read at once
	c.OnInbound(&pb.Message{Id: "m3", From: "u1", To: "u2", Payload: sealFor(t, "u1", "u2", "!"), CreateTime: 3})
	assert.Zero(t, c.Unread("u1"))
	assert.Equal(t, [][]string{{"m3"}}, rec.reads)

	msgs := c.Messages("u1")
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.Equal(t, pb.StatusRead, m.Message.Status)
	}

	assert.ErrorIs(t, c.OpenConversation(""), ErrNoPeer)
}

func TestOnConversationMerges(t *testing.T) {
	c, rec := newTestCache("u1")
	_, err := c.SendOptimistic("u2", "mine")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, rec.contacts)

	fetched := []*pb.Message{
		{Id: "m0", From: "u2", To: "u1", Payload: sealFor(t, "u2", "u1", "theirs"), CreateTime: 1, Status: pb.StatusRead},
		{Id: "m1", From: "u1", To: "u2", Payload: rec.sends[0].Payload, CreateTime: 2, Status: pb.StatusDelivered},
	}
	c.OnConversation("u2", fetched)
	c.OnConversation("u2", fetched)

	msgs := c.Messages("u2")
	require.Len(t, msgs, 2)
	assert.Equal(t, "m0", msgs[0].Message.Id)
	assert.Equal(t, "theirs", msgs[0].Text)
	assert.Equal(t, "m1", msgs[1].Message.Id)
	assert.Equal(t, "mine", msgs[1].Text)
	assert.False(t, msgs[1].Provisional)
	assert.Equal(t, pb.StatusDelivered, msgs[1].Message.Status)

	// the late ack finds the message already confirmed
	c.OnAck(fetched[1])
	assert.Len(t, c.Messages("u2"), 2)
	assert.Zero(t, c.Unread("u2"))
}

func TestPresenceAndListener(t *testing.T) {
	var events []string
	rec := &recorder{}
	c := NewCache("u1", rec, func(kind EventKind, peer string) {
		events = append(events, kind.String()+":"+peer)
	})

	c.OnPresence(&pb.Presence{Id: "u2", Online: true, LastSeen: 100})
	c.OnPresence(&pb.Presence{Id: "u2", Online: false, LastSeen: 200})

	cs := c.Contacts()
	require.Len(t, cs, 1)
	assert.False(t, cs[0].Online)
	assert.EqualValues(t, 200, cs[0].LastSeen)
	assert.Equal(t, []string{"contacts:u2", "contacts:u2"}, events)
}

func TestResync(t *testing.T) {
	c, rec := newTestCache("u2", "u1")
	c.OnInbound(&pb.Message{Id: "m1", From: "u3", To: "u2", Payload: "x"})
	require.NoError(t, c.OpenConversation("u1"))

	c.Resync()
	assert.Equal(t, 1, rec.lists)
	assert.Equal(t, []string{"u3", "u3"}, rec.contacts)
	assert.Equal(t, []string{"u1", "u1"}, rec.fetches)
}

func TestHandleDispatch(t *testing.T) {
	c, rec := newTestCache("u1", "u2")
	_, err := c.SendOptimistic("u2", "hi")
	require.NoError(t, err)

	c.Handle(&pb.ServerMsg{Ack: &pb.Message{Id: "m1", From: "u1", To: "u2", Payload: rec.sends[0].Payload}})
	c.Handle(&pb.ServerMsg{Status: &pb.StatusUpdate{Id: "m1", Status: pb.StatusDelivered}})
	c.Handle(&pb.ServerMsg{Error: &pb.Error{Code: 13}})

	msgs := c.Messages("u2")
	require.Len(t, msgs, 1)
	assert.Equal(t, pb.StatusDelivered, msgs[0].Message.Status)
}
