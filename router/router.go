// Package router accepts messages, persists them, forwards them to live recipients
// and drives their delivery status.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/mqy/pairchat/journal"
	"github.com/mqy/pairchat/presence"
	pb "github.com/mqy/pairchat/proto"
	"github.com/mqy/pairchat/status"
	"github.com/mqy/pairchat/store"
)

const (
	DefaultMaxPayloadBytes = 4096
	DefaultFetchLimit      = 100
	MaxFetchLimit          = 500
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownIdentity = errors.New("unknown identity")
)

type Config struct {
	MaxPayloadBytes int
	FetchLimit      int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxPayloadBytes <= 0 {
		out.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if out.FetchLimit <= 0 {
		out.FetchLimit = DefaultFetchLimit
	}
	return out
}

// Router owns message routing for all live channels of the process.
type Router struct {
	messages store.IMessageStore
	accounts store.IAccountStore
	registry presence.Registry
	journal  journal.Journal
	conf     Config

	lanes    *keyedMutex // sender -> recipient
	msgLocks *keyedMutex // message id
	clock    *senderClock
}

func New(messages store.IMessageStore, accounts store.IAccountStore, registry presence.Registry,
	jn journal.Journal, conf Config) *Router {
	if jn == nil {
		jn = journal.Nop
	}
	return &Router{
		messages: messages,
		accounts: accounts,
		registry: registry,
		journal:  jn,
		conf:     conf.withDefaults(),
		lanes:    newKeyedMutex(),
		msgLocks: newKeyedMutex(),
		clock:    newSenderClock(),
	}
}

// Send persists a message from `from` to `to`, forwards it to the recipient if online
// and acknowledges the sender with the persisted message.
//
// Sends of one direction are serialized, so the recipient observes them in call order.
// An offline recipient is not an error: the message stays sent.
func (r *Router) Send(ctx context.Context, from, to, payload string) (*pb.Message, error) {
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: sender and recipient are required", ErrInvalidArgument)
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: payload is required", ErrInvalidArgument)
	}
	if len(payload) > r.conf.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrInvalidArgument, r.conf.MaxPayloadBytes)
	}
	if _, err := r.accounts.Participant(ctx, to); errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, to)
	} else if err != nil {
		return nil, fmt.Errorf("router: lookup recipient: %w", err)
	}

	unlock := r.lanes.Lock(from + "\x00" + to)
	defer unlock()

	m, err := r.messages.Create(ctx, from, to, payload, r.clock.next(from))
	if err != nil {
		return nil, fmt.Errorf("router: persist message: %w", err)
	}
	messagesSent.Inc()
	r.journal.Publish(journal.NewEvent(journal.EventCreated, m))

	var forwarded bool
	if ch, ok := r.registry.ChannelOf(to); ok {
		forwarded = ch.Push(&pb.ServerMsg{Inbound: clone(m)})
	}
	if forwarded {
		messagesForwarded.WithLabelValues("pushed").Inc()
	} else {
		messagesForwarded.WithLabelValues("offline").Inc()
		glog.V(5).Infof("router: %s is offline, message %s stays sent", to, m.Id)
	}

	if ch, ok := r.registry.ChannelOf(from); ok {
		ch.Push(&pb.ServerMsg{Ack: clone(m)})
	}

	if forwarded {
		s, err := r.applyStatus(ctx, m.Id, pb.StatusDelivered, to)
		if err != nil {
			// the message itself is safely stored
			glog.Errorf("router: mark %s delivered: %v", m.Id, err)
		} else {
			m.Status = s
		}
	}
	return m, nil
}

// FetchConversation returns the latest messages between viewer and peer and marks every
// message addressed to viewer as read, including those older than the returned window.
func (r *Router) FetchConversation(ctx context.Context, viewer, peer string, limit int) ([]*pb.Message, error) {
	if viewer == "" || peer == "" {
		return nil, fmt.Errorf("%w: peer is required", ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = r.conf.FetchLimit
	} else if limit > MaxFetchLimit {
		limit = MaxFetchLimit
	}

	msgs, err := r.messages.ListBetween(ctx, viewer, peer, limit)
	if err != nil {
		return nil, fmt.Errorf("router: list conversation: %w", err)
	}

	unread, err := r.messages.ListUnread(ctx, viewer, peer)
	if err != nil {
		return nil, fmt.Errorf("router: list unread: %w", err)
	}
	marked := make(map[string]pb.Status, len(unread))
	for _, id := range unread {
		s, err := r.applyStatus(ctx, id, pb.StatusRead, viewer)
		if err != nil {
			return nil, err
		}
		marked[id] = s
	}

	for _, m := range msgs {
		if s, ok := marked[m.Id]; ok {
			m.Status, _ = status.Advance(m.Status, s)
		}
	}
	return msgs, nil
}

// MarkRead marks the given messages addressed to reader as read.
// Ids of unknown messages, or of messages reader did not receive, are ignored.
func (r *Router) MarkRead(ctx context.Context, reader string, ids []string) error {
	var firstErr error
	for _, id := range ids {
		if _, err := r.applyStatus(ctx, id, pb.StatusRead, reader); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// applyStatus advances message id to next on behalf of actor, who must be its recipient,
// and notifies the sender when the stored status changed. It returns the resulting status.
func (r *Router) applyStatus(ctx context.Context, id string, next pb.Status, actor string) (pb.Status, error) {
	unlock := r.msgLocks.Lock(id)
	defer unlock()

	m, err := r.messages.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		glog.V(5).Infof("router: status %s for unknown message %s ignored", next, id)
		return pb.StatusSent, nil
	} else if err != nil {
		return 0, fmt.Errorf("router: load message %s: %w", id, err)
	}

	if m.To != actor {
		glog.Errorf("router: %s may not set status of message %s addressed to %s", actor, id, m.To)
		return m.Status, nil
	}

	s, changed := status.Advance(m.Status, next)
	if !changed {
		return s, nil
	}
	if changed, err = r.messages.SetStatus(ctx, id, s); err != nil {
		return m.Status, fmt.Errorf("router: set status of %s: %w", id, err)
	} else if !changed {
		return s, nil
	}

	statusTransitions.WithLabelValues(s.String()).Inc()
	m.Status = s
	r.journal.Publish(journal.NewEvent(journal.EventStatus, m))

	if ch, ok := r.registry.ChannelOf(m.From); ok {
		ch.Push(&pb.ServerMsg{Status: &pb.StatusUpdate{Id: id, Status: s}})
	}
	return s, nil
}

// Contact resolves id as seen by viewer, with presence and viewer's unread count.
func (r *Router) Contact(ctx context.Context, viewer, id string) (*pb.Contact, error) {
	c, err := r.accounts.Participant(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, id)
	} else if err != nil {
		return nil, fmt.Errorf("router: lookup participant: %w", err)
	}

	if online, lastSeen := r.registry.Online(id); lastSeen > 0 {
		c.Online, c.LastSeen = online, lastSeen
	}

	n, err := r.messages.CountUnread(ctx, viewer, id)
	if err != nil {
		return nil, fmt.Errorf("router: count unread: %w", err)
	}
	c.UnreadCount = n
	return c, nil
}

// Contacts lists viewer's contacts.
func (r *Router) Contacts(ctx context.Context, viewer string) ([]*pb.Contact, error) {
	ids, err := r.ContactIds(ctx, viewer)
	if err != nil {
		return nil, err
	}
	out := make([]*pb.Contact, 0, len(ids))
	for _, id := range ids {
		c, err := r.Contact(ctx, viewer, id)
		if errors.Is(err, ErrUnknownIdentity) {
			continue
		} else if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ContactIds lists who should hear about id's presence changes.
func (r *Router) ContactIds(ctx context.Context, id string) ([]string, error) {
	ids, err := r.accounts.Contacts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("router: list contacts: %w", err)
	}
	return ids, nil
}

func clone(m *pb.Message) *pb.Message {
	out := *m
	return &out
}
