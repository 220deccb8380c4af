//go:generate mockgen -source=api.go -destination=mock/store.go -package=mock

package store

import (
	"context"
	"errors"
	"strings"

	"github.com/pborman/uuid"

	pb "github.com/mqy/pairchat/proto"
)

const DefaultListLimit = 100

var ErrNotFound = errors.New("store: not found")

// IMessageStore persists messages and their delivery status.
type IMessageStore interface {
	// Create persists a new message with status sent and a fresh id.
	Create(ctx context.Context, from, to, payload string, createTime int64) (*pb.Message, error)

	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*pb.Message, error)

	// ListBetween returns the latest `limit` messages exchanged by a and b, order by create_time ASC.
	ListBetween(ctx context.Context, a, b string, limit int) ([]*pb.Message, error)

	// SetStatus moves the message forward to status. It never moves a message backwards;
	// changed is false when the stored status is already at or past status.
	SetStatus(ctx context.Context, id string, status pb.Status) (changed bool, err error)

	// CountUnread counts messages from sender to recipient below read.
	CountUnread(ctx context.Context, recipient, sender string) (int32, error)

	// ListUnread returns ids of all messages from sender to recipient below read, oldest first.
	ListUnread(ctx context.Context, recipient, sender string) ([]string, error)

	Close() error
}

// IAccountStore persists participants and resolves contact lists.
type IAccountStore interface {
	// EnsureParticipant creates the participant if absent.
	EnsureParticipant(ctx context.Context, id string) error

	// Participant returns ErrNotFound for unknown ids.
	Participant(ctx context.Context, id string) (*pb.Contact, error)

	// Contacts lists everyone id has exchanged messages with.
	Contacts(ctx context.Context, id string) ([]string, error)

	// SetPresence updates the persisted online flag and last-seen. Unknown ids are ignored.
	SetPresence(ctx context.Context, id string, online bool, lastSeen int64) error
}

// IStore is implemented by every backend in this package.
type IStore interface {
	IMessageStore
	IAccountStore
}

func newMessageId() string {
	return strings.ReplaceAll(uuid.New(), "-", "")
}
