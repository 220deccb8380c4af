package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	pb "github.com/mqy/pairchat/proto"
)

const (
	writeWait = 3 * time.Second

	// the server pings every 20s
	readWait = 60 * time.Second

	BackoffMinInterval = 1 * time.Second
	BackoffMaxInterval = 60 * time.Second
	BackoffMultiplier  = 1.5
)

var (
	ErrKickedOff = errors.New("client: kicked off by a newer session")
	ErrOffline   = errors.New("client: offline")
)

// Handler consumes server messages. Cache implements it.
type Handler interface {
	Handle(msg *pb.ServerMsg)
	// Resync is called after every successful (re)connect.
	Resync()
	// OnSendFailed is called for each queued send dropped without reaching the server.
	OnSendFailed(to, payload string)
}

// Conn is a reconnecting websocket connection to the server. It implements Requester.
//
// Sends issued while offline are queued and written once on the next connect; if that
// write fails too they are dropped. Other requests fail with ErrOffline while offline.
type Conn struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	sleep  func(ctx context.Context, d time.Duration) bool

	mu     sync.Mutex // guards ws writes and the fields below
	ws     *websocket.Conn
	queue  []*pb.SendReq
	online bool
}

// NewConn creates a connection to url, e.g. ws://127.0.0.1:8000/ws. header carries the
// credentials, see package auth.
func NewConn(url string, header http.Header) *Conn {
	return &Conn{
		url:    url,
		header: header,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		sleep: sleepCtx,
	}
}

// Online reports whether the connection is up.
func (c *Conn) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// Run connects, feeds h and reconnects with backoff until ctx is done or the server
// kicks this session off.
func (c *Conn) Run(ctx context.Context, h Handler) error {
	var sleep time.Duration
	for {
		ws, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusForbidden {
				return fmt.Errorf("client: dial %s: %w", c.url, err)
			}
			glog.Errorf("client: dial %s: %v", c.url, err)
			backoff(&sleep)
			if !c.sleep(ctx, sleep) {
				return ctx.Err()
			}
			continue
		}
		sleep = 0
		glog.V(5).Infof("client: connected to %s", c.url)

		for _, req := range c.connected(ws) {
			h.OnSendFailed(req.To, req.Payload)
		}
		h.Resync()

		err = c.recvLoop(ctx, ws, h)
		c.disconnected(ws)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrKickedOff) {
			return err
		}
		glog.Errorf("client: connection lost: %v", err)
		backoff(&sleep)
		if !c.sleep(ctx, sleep) {
			return ctx.Err()
		}
	}
}

// connected publishes ws and flushes the sends queued while offline, exactly once.
// It returns the sends dropped because the flush failed.
func (c *Conn) connected(ws *websocket.Conn) []*pb.SendReq {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws = ws
	c.online = true

	queue := c.queue
	c.queue = nil
	for i, req := range queue {
		if err := c.writeLocked(&pb.ClientMsg{Send: req}); err != nil {
			glog.Errorf("client: retry of %d queued sends failed, dropped: %v", len(queue)-i, err)
			return queue[i:]
		}
	}
	return nil
}

func (c *Conn) disconnected(ws *websocket.Conn) {
	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
		c.online = false
	}
	c.mu.Unlock()
	ws.Close()
}

func (c *Conn) recvLoop(ctx context.Context, ws *websocket.Conn, h Handler) error {
	stop := context.AfterFunc(ctx, func() {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		ws.Close()
	})
	defer stop()

	ws.SetReadDeadline(time.Now().Add(readWait))
	ws.SetPingHandler(func(data string) error {
		ws.SetReadDeadline(time.Now().Add(readWait))
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		ws.SetReadDeadline(time.Now().Add(readWait))

		msg := &pb.ServerMsg{}
		if err := json.Unmarshal(data, msg); err != nil {
			glog.Errorf("client: bad server message: %s, err: %v", data, err)
			continue
		}
		if msg.Kickoff {
			return ErrKickedOff
		}
		h.Handle(msg)
	}
}

func (c *Conn) writeLocked(msg *pb.ClientMsg) error {
	if c.ws == nil {
		return ErrOffline
	}
	out, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("client: marshal: %w", err)
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, out); err != nil {
		// the read side notices the broken connection and reconnects
		c.online = false
		return fmt.Errorf("client: write: %w", err)
	}
	return nil
}

func (c *Conn) write(msg *pb.ClientMsg) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.online {
		return ErrOffline
	}
	return c.writeLocked(msg)
}

// Send writes a send request, or queues it while offline.
func (c *Conn) Send(to, payload string) error {
	req := &pb.SendReq{To: to, Payload: payload}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online {
		err := c.writeLocked(&pb.ClientMsg{Send: req})
		if err == nil {
			return nil
		}
		glog.Errorf("client: send to %s failed, queued: %v", to, err)
	}
	c.queue = append(c.queue, req)
	return nil
}

func (c *Conn) Fetch(peer string) error {
	return c.write(&pb.ClientMsg{Fetch: &pb.FetchReq{Peer: peer}})
}

func (c *Conn) Read(ids []string) error {
	return c.write(&pb.ClientMsg{Read: &pb.ReadReq{Ids: ids}})
}

func (c *Conn) Contact(id string) error {
	return c.write(&pb.ClientMsg{Contact: &pb.ContactReq{Id: id}})
}

func (c *Conn) Contacts() error {
	return c.write(&pb.ClientMsg{Contacts: &pb.ContactsReq{}})
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// backoff grows d by BackoffMultiplier up to BackoffMaxInterval.
func backoff(d *time.Duration) {
	if *d == 0 {
		*d = BackoffMinInterval
		return
	}
	*d = time.Duration(float64(*d) * BackoffMultiplier).Truncate(time.Millisecond)
	if *d > BackoffMaxInterval {
		*d = BackoffMaxInterval
	}
}
