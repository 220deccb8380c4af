// Package proto defines the websocket envelopes exchanged between the router and its clients.
//
// Every frame is a JSON text message. A ClientMsg or ServerMsg carries exactly one
// non-nil field; receivers dispatch on the first one that is set.
package proto

// Message is a persisted message. Payload is opaque ciphertext.
type Message struct {
	Id         string `json:"id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Payload    string `json:"payload"`
	CreateTime int64  `json:"create_time"` // unix microseconds
	Status     Status `json:"status"`
}

// Peer returns the other participant of the message as seen by self.
func (m *Message) Peer(self string) string {
	if m.From == self {
		return m.To
	}
	return m.From
}

// Contact is a participant as seen by another participant.
type Contact struct {
	Id          string `json:"id"`
	Online      bool   `json:"online"`
	LastSeen    int64  `json:"last_seen,omitempty"` // unix seconds
	UnreadCount int32  `json:"unread_count,omitempty"`
}

// Session describes one live websocket connection.
type Session struct {
	Uid        string `json:"uid"`
	Sid        string `json:"sid"`
	CreateTime int64  `json:"create_time"`
	Ip         string `json:"ip,omitempty"`
}

type SendReq struct {
	To      string `json:"to"`
	Payload string `json:"payload"`
}

type FetchReq struct {
	Peer  string `json:"peer"`
	Limit int32  `json:"limit,omitempty"`
}

type ReadReq struct {
	Ids []string `json:"ids"`
}

type ContactReq struct {
	Id string `json:"id"`
}

type ContactsReq struct{}

// ClientMsg is a request from a client.
type ClientMsg struct {
	Send     *SendReq     `json:"send,omitempty"`
	Fetch    *FetchReq    `json:"fetch,omitempty"`
	Read     *ReadReq     `json:"read,omitempty"`
	Contact  *ContactReq  `json:"contact,omitempty"`
	Contacts *ContactsReq `json:"contacts,omitempty"`
}

type StatusUpdate struct {
	Id     string `json:"id"`
	Status Status `json:"status"`
}

type Presence struct {
	Id       string `json:"id"`
	Online   bool   `json:"online"`
	LastSeen int64  `json:"last_seen,omitempty"`
}

type Conversation struct {
	Peer     string     `json:"peer"`
	Messages []*Message `json:"messages"`
}

type ContactList struct {
	Contacts []*Contact `json:"contacts"`
}

type Error struct {
	Code   int32      `json:"code"`
	Params []string   `json:"params,omitempty"`
	Req    *ClientMsg `json:"req,omitempty"`
}

// ServerMsg is an event or response pushed to a client.
type ServerMsg struct {
	Inbound      *Message      `json:"inbound,omitempty"`
	Ack          *Message      `json:"ack,omitempty"`
	Status       *StatusUpdate `json:"status,omitempty"`
	Presence     *Presence     `json:"presence,omitempty"`
	Conversation *Conversation `json:"conversation,omitempty"`
	Contact      *Contact      `json:"contact,omitempty"`
	Contacts     *ContactList  `json:"contacts,omitempty"`
	Error        *Error        `json:"error,omitempty"`
	Kickoff      bool          `json:"kickoff,omitempty"`
}
