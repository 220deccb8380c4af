package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	pb "github.com/mqy/pairchat/proto"
)

type SessionError int

const (
	ReadError    SessionError = 1
	WriteError   SessionError = 2
	PingError    SessionError = 3
	BadRequest   SessionError = 4
	ServerStop   SessionError = 5
	KickedOff    SessionError = 6
	SlowConsumer SessionError = 7
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 3 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 20 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 25 * time.Second

	// Time allowed to serve one client request.
	requestTimeout = 10 * time.Second

	// Frames queued for the peer before the session counts as a slow consumer.
	sendQueueSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin is checked by the reverse proxy in front of us.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler manages an active connection to end user.
// Every new websocket connection creates a new session.
type Handler struct {
	sync.Mutex

	api *Api
	hub *Hub

	session   *pb.Session
	conn      *websocket.Conn
	readLimit int64

	dataChan chan *SessionData
	closing  bool
}

// SessionData is the data structure for `dataChan`.
type SessionData struct {
	Error     SessionError  `json:"error,omitempty"`
	ServerMsg *pb.ServerMsg `json:"resp,omitempty"`
}

func (h *Handler) String() string {
	out, _ := json.Marshal(h.session)
	return string(out)
}

// Identity implements presence.Channel.
func (h *Handler) Identity() string {
	return h.session.Uid
}

// Push implements presence.Channel. It never blocks: a full queue closes the session.
func (h *Handler) Push(msg *pb.ServerMsg) bool {
	return h.appendDataChan(&SessionData{ServerMsg: msg})
}

func (h *Handler) close(cause SessionError) {
	h.Lock()
	if h.closing {
		h.Unlock()
		return
	}
	h.closing = true
	close(h.dataChan)
	h.Unlock()

	code := websocket.CloseNormalClosure
	switch cause {
	case ServerStop:
		code = websocket.CloseGoingAway
	case BadRequest:
		code = websocket.CloseUnsupportedData
	case SlowConsumer:
		code = websocket.CloseTryAgainLater
	}
	_ = h.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""),
		time.Now().Add(writeWait))
	h.conn.Close()

	glog.V(5).Infof("session closed, cause: %d, %s", cause, h)
	h.hub.delHandler(h)
}

func (h *Handler) isClosing() bool {
	h.Lock()
	defer h.Unlock()
	return h.closing
}

func (h *Handler) appendDataChan(v *SessionData) bool {
	h.Lock()
	if h.closing {
		h.Unlock()
		return false
	}
	select {
	case h.dataChan <- v:
		h.Unlock()
		return true
	default:
	}
	h.Unlock()

	glog.Errorf("session send queue is full, closing: %s", h)
	// close writes to the peer, keep it off the caller's path.
	go h.close(SlowConsumer)
	return false
}

func (h *Handler) reply(msg *pb.ServerMsg) {
	h.appendDataChan(&SessionData{ServerMsg: msg})
}

func (h *Handler) replyError(op string, err *pb.Error) {
	glog.Errorf("recvLoop(): %s error: %+v, session: %s", op, err, h)
	interceptError(err)
	h.reply(&pb.ServerMsg{Error: err})
}

func sendServerMsg(conn *websocket.Conn, msg *pb.ServerMsg) error {
	out, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal server message: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, out)
}

func (h *Handler) recvLoop() {
	defer func() { glog.V(5).Infof("recvLoop(): exited, session: %s", h) }()

	h.conn.SetReadLimit(h.readLimit)
	h.conn.SetReadDeadline(time.Now().Add(pongWait))
	h.conn.SetPongHandler(func(s string) error {
		h.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for !h.isClosing() {
		msgType, msg, err := h.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				glog.Errorf("recvLoop(): read error: %v", err)
			}
			h.appendDataChan(&SessionData{Error: ReadError})
			return
		}

		glog.V(5).Infof("recvLoop(): incoming client message: %s", msg)

		if msgType != websocket.TextMessage {
			glog.Errorf("recvLoop(): unexpected message type: %d", msgType)
			h.reply(&pb.ServerMsg{
				Error: newInvalidArgumentError(nil, "websocket only supports TextMessage"),
			})
			h.appendDataChan(&SessionData{Error: BadRequest})
			return
		}

		req := pb.ClientMsg{}
		if err := json.Unmarshal(msg, &req); err != nil {
			glog.Errorf("recvLoop(): message error: msg: %s, err: %v", msg, err)
			h.reply(&pb.ServerMsg{
				Error: newInvalidArgumentError(nil, fmt.Sprintf("unmarshal error: %v", err)),
			})
			h.appendDataChan(&SessionData{Error: BadRequest})
			return
		}

		if !h.serve(&req) {
			glog.Errorf("recvLoop(): unsupported request: %s", msg)
			h.reply(&pb.ServerMsg{
				Error: newInvalidArgumentError(&req, "unsupported request"),
			})
			h.appendDataChan(&SessionData{Error: BadRequest})
			return
		}
	}
}

// serve dispatches one request and reports whether it was recognized.
func (h *Handler) serve(req *pb.ClientMsg) bool {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	uid := h.session.Uid

	if v := req.Send; v != nil {
		if err := h.api.Send(ctx, uid, v); err != nil {
			h.replyError("Send", err)
		}
	} else if v := req.Fetch; v != nil {
		resp, err := h.api.Fetch(ctx, uid, v)
		if err != nil {
			h.replyError("Fetch", err)
			return true
		}
		h.reply(&pb.ServerMsg{Conversation: resp})
	} else if v := req.Read; v != nil {
		if err := h.api.Read(ctx, uid, v); err != nil {
			h.replyError("Read", err)
		}
	} else if v := req.Contact; v != nil {
		resp, err := h.api.Contact(ctx, uid, v)
		if err != nil {
			h.replyError("Contact", err)
			return true
		}
		h.reply(&pb.ServerMsg{Contact: resp})
	} else if v := req.Contacts; v != nil {
		resp, err := h.api.Contacts(ctx, uid, v)
		if err != nil {
			h.replyError("Contacts", err)
			return true
		}
		h.reply(&pb.ServerMsg{Contacts: resp})
	} else {
		return false
	}
	return true
}

func (h *Handler) sendLoop() {
	pingTicker := time.NewTicker(pingPeriod)
	defer func() {
		pingTicker.Stop()
		glog.V(5).Infof("sendLoop(): exited, session: %s", h)
	}()

	for {
		select {
		case v, ok := <-h.dataChan:
			if !ok { // chan was closed
				h.conn.Close()
				glog.V(5).Infof("sendLoop(): data chan closed, session: %s", h)
				return
			}

			if v.Error > 0 {
				h.close(v.Error)
				return
			} else if v.ServerMsg == nil {
				glog.Errorf("sendLoop(): empty data from dataChan, session: %s", h)
				continue
			}

			if err := sendServerMsg(h.conn, v.ServerMsg); err != nil {
				glog.Errorf("sendLoop(): error write message. session: %s, err: %v", h, err)
				h.close(WriteError)
				return
			}
			if v.ServerMsg.Kickoff {
				h.close(KickedOff)
				return
			}
		case <-pingTicker.C:
			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				glog.Errorf("sendLoop(): error write ping message. session: %s, err: %v", h, err)
				h.close(PingError)
				return
			}
		}
	}
}
