package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqy/pairchat/auth"
	"github.com/mqy/pairchat/journal"
	"github.com/mqy/pairchat/presence"
	pb "github.com/mqy/pairchat/proto"
	"github.com/mqy/pairchat/router"
	"github.com/mqy/pairchat/store"
	"github.com/mqy/pairchat/ws"
)

func newTestServer(t *testing.T) (string, store.IStore) {
	s, err := store.OpenBoltStore(filepath.Join(t.TempDir(), "client.bolt"))
	require.NoError(t, err)

	reg := presence.NewRegistry(s)
	rt := router.New(s, s, reg, journal.Nop, router.Config{})
	hub := ws.NewHub(&auth.MockClient{}, s, rt, reg, router.DefaultMaxPayloadBytes)
	srv := httptest.NewServer(hub)

	ctx, cancel := context.WithCancel(context.Background())
	stopDoneC := make(chan struct{}, 1)
	go hub.Run(ctx, stopDoneC)

	t.Cleanup(func() {
		cancel()
		<-stopDoneC
		srv.Close()
		_ = s.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), s
}

type session struct {
	conn  *Conn
	cache *Cache
	errC  chan error
}

func newSession(url, uid string) *session {
	header := http.Header{}
	header.Set("Cookie", auth.CookieName+"="+uid)
	conn := NewConn(url, header)
	return &session{
		conn:  conn,
		cache: NewCache(uid, conn, nil),
		errC:  make(chan error, 1),
	}
}

func (s *session) run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() { s.errC <- s.conn.Run(ctx, s.cache) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-s.errC:
		case <-time.After(3 * time.Second):
			t.Error("conn did not stop")
		}
	})
	require.Eventually(t, s.conn.Online, 3*time.Second, 5*time.Millisecond)
}

// Scenario A end to end: the recipient has the conversation open.
func TestReadReceiptOverWebsocket(t *testing.T) {
	url, _ := newTestServer(t)

	alice := newSession(url, "alice")
	alice.run(t)
	bob := newSession(url, "bob")
	bob.run(t)

	require.NoError(t, bob.cache.OpenConversation("alice"))
	require.Eventually(t, func() bool {
		cs := bob.cache.Contacts()
		return len(cs) == 1 && cs[0].Online
	}, 3*time.Second, 5*time.Millisecond)

	_, err := alice.cache.SendOptimistic("bob", "hi")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		msgs := alice.cache.Messages("bob")
		return len(msgs) == 1 && !msgs[0].Provisional && msgs[0].Message.Status == pb.StatusRead
	}, 3*time.Second, 5*time.Millisecond)

	msgs := bob.cache.Messages("alice")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Zero(t, bob.cache.Unread("alice"))
}

func TestQueuedSendFlushedOnConnect(t *testing.T) {
	url, st := newTestServer(t)
	require.NoError(t, st.EnsureParticipant(context.Background(), "bob"))

	alice := newSession(url, "alice")
	_, err := alice.cache.SendOptimistic("bob", "while offline")
	require.NoError(t, err)
	assert.True(t, alice.cache.Messages("bob")[0].Provisional)

	alice.run(t)
	require.Eventually(t, func() bool {
		msgs := alice.cache.Messages("bob")
		return len(msgs) == 1 && !msgs[0].Provisional
	}, 3*time.Second, 5*time.Millisecond)

	msgs, err := st.ListBetween(context.Background(), "alice", "bob", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, alice.cache.Messages("bob")[0].Message.Id, msgs[0].Id)
}

func TestKickedOffStopsReconnecting(t *testing.T) {
	url, _ := newTestServer(t)

	first := newSession(url, "alice")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { first.errC <- first.conn.Run(ctx, first.cache) }()
	require.Eventually(t, first.conn.Online, 3*time.Second, 5*time.Millisecond)

	second := newSession(url, "alice")
	second.run(t)

	select {
	case err := <-first.errC:
		assert.ErrorIs(t, err, ErrKickedOff)
	case <-time.After(3 * time.Second):
		t.Fatal("first session was not kicked off")
	}
	assert.True(t, second.conn.Online())
}

func TestRejectedSendOverWebsocket(t *testing.T) {
	url, st := newTestServer(t)
	require.NoError(t, st.EnsureParticipant(context.Background(), "bob"))

	alice := newSession(url, "alice")
	alice.run(t)

	_, err := alice.cache.SendOptimistic("ghost", "lost")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		msgs := alice.cache.Messages("ghost")
		return len(msgs) == 1 && msgs[0].Failed
	}, 3*time.Second, 5*time.Millisecond)

	_, err = alice.cache.SendOptimistic("bob", "hi")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		msgs := alice.cache.Messages("bob")
		return len(msgs) == 1 && !msgs[0].Provisional && msgs[0].Message.Id != ""
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, "hi", alice.cache.Messages("bob")[0].Text)
}

func TestDroppedQueuedSendsAreReported(t *testing.T) {
	url, _ := newTestServer(t)

	header := http.Header{}
	header.Set("Cookie", auth.CookieName+"=alice")
	c := NewConn(url, header)
	cache := NewCache("alice", c, nil)
	_, err := cache.SendOptimistic("bob", "one")
	require.NoError(t, err)
	_, err = cache.SendOptimistic("bob", "two")
	require.NoError(t, err)

	closed, _, err := c.dialer.Dial(url, header)
	require.NoError(t, err)
	closed.Close()

	dropped := c.connected(closed)
	require.Len(t, dropped, 2)
	for _, req := range dropped {
		cache.OnSendFailed(req.To, req.Payload)
	}
	c.disconnected(closed)

	for _, e := range cache.Messages("bob") {
		assert.True(t, e.Failed)
	}
	assert.Empty(t, c.queue)
}

func TestRequestsFailWhileOffline(t *testing.T) {
	c := NewConn("ws://127.0.0.1:1/ws", nil)
	assert.ErrorIs(t, c.Fetch("bob"), ErrOffline)
	assert.ErrorIs(t, c.Read([]string{"m1"}), ErrOffline)
	assert.NoError(t, c.Send("bob", "x"))
	assert.Len(t, c.queue, 1)
}

func TestBackoff(t *testing.T) {
	var d time.Duration
	backoff(&d)
	assert.Equal(t, BackoffMinInterval, d)
	backoff(&d)
	assert.Equal(t, 1500*time.Millisecond, d)
	for i := 0; i < 20; i++ {
		backoff(&d)
	}
	assert.Equal(t, BackoffMaxInterval, d)
}
