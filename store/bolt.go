package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	pb "github.com/mqy/pairchat/proto"
)

var (
	bucketMessages     = []byte("messages")     // id -> json message
	bucketPairs        = []byte("pairs")        // pair \0 create_time \0 id -> nil
	bucketParticipants = []byte("participants") // id -> json contact
	bucketContacts     = []byte("contacts")     // id \0 other -> nil
)

// boltStore implements `IStore` on a single bbolt file.
type boltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens (creating if needed) the bbolt file at path.
func OpenBoltStore(path string) (*boltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bolt %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMessages, bucketPairs, bucketParticipants, bucketContacts} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init bolt buckets: %w", err)
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}

func pairPrefix(a, b string) []byte {
	if b < a {
		a, b = b, a
	}
	return []byte(a + "\x00" + b + "\x00")
}

// pairKey sorts by create_time thanks to zero padding.
func pairKey(m *pb.Message) []byte {
	return append(pairPrefix(m.From, m.To), fmt.Sprintf("%020d\x00%s", m.CreateTime, m.Id)...)
}

func getMessage(tx *bbolt.Tx, id string) (*pb.Message, error) {
	v := tx.Bucket(bucketMessages).Get([]byte(id))
	if v == nil {
		return nil, ErrNotFound
	}
	var m pb.Message
	if err := json.Unmarshal(v, &m); err != nil {
		return nil, fmt.Errorf("store: decode message %s: %w", id, err)
	}
	return &m, nil
}

func putMessage(tx *bbolt.Tx, m *pb.Message) error {
	v, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketMessages).Put([]byte(m.Id), v)
}

func (s *boltStore) Create(ctx context.Context, from, to, payload string, createTime int64) (*pb.Message, error) {
	m := &pb.Message{
		From:       from,
		To:         to,
		Payload:    payload,
		CreateTime: createTime,
		Status:     pb.StatusSent,
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		msgs := tx.Bucket(bucketMessages)
		for {
			m.Id = newMessageId()
			if msgs.Get([]byte(m.Id)) == nil {
				break
			}
		}
		if err := putMessage(tx, m); err != nil {
			return err
		}
		if err := tx.Bucket(bucketPairs).Put(pairKey(m), nil); err != nil {
			return err
		}
		contacts := tx.Bucket(bucketContacts)
		if err := contacts.Put([]byte(from+"\x00"+to), nil); err != nil {
			return err
		}
		return contacts.Put([]byte(to+"\x00"+from), nil)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *boltStore) Get(ctx context.Context, id string) (*pb.Message, error) {
	var m *pb.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		m, err = getMessage(tx, id)
		return err
	})
	return m, err
}

// scanPair calls fn for messages between a and b, newest first, until fn returns false.
func scanPair(tx *bbolt.Tx, a, b string, fn func(m *pb.Message) bool) error {
	prefix := pairPrefix(a, b)
	c := tx.Bucket(bucketPairs).Cursor()

	// seek past the prefix, then walk back
	end := append(append([]byte{}, prefix...), 0xff)
	k, _ := c.Seek(end)
	if k == nil {
		k, _ = c.Last()
	} else {
		k, _ = c.Prev()
	}
	for ; k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Prev() {
		id := k[bytes.LastIndexByte(k, 0)+1:]
		m, err := getMessage(tx, string(id))
		if err != nil {
			return err
		}
		if !fn(m) {
			return nil
		}
	}
	return nil
}

func (s *boltStore) ListBetween(ctx context.Context, a, b string, limit int) ([]*pb.Message, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var out []*pb.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		return scanPair(tx, a, b, func(m *pb.Message) bool {
			out = append(out, m)
			return len(out) < limit
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreateTime != out[j].CreateTime {
			return out[i].CreateTime < out[j].CreateTime
		}
		return out[i].Id < out[j].Id
	})
	return out, nil
}

func (s *boltStore) SetStatus(ctx context.Context, id string, status pb.Status) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("store: invalid status %d", uint8(status))
	}
	var changed bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		m, err := getMessage(tx, id)
		if err == ErrNotFound {
			return nil
		} else if err != nil {
			return err
		}
		if m.Status >= status {
			return nil
		}
		m.Status = status
		changed = true
		return putMessage(tx, m)
	})
	return changed, err
}

func (s *boltStore) CountUnread(ctx context.Context, recipient, sender string) (int32, error) {
	var n int32
	err := s.db.View(func(tx *bbolt.Tx) error {
		return scanPair(tx, recipient, sender, func(m *pb.Message) bool {
			if m.To == recipient && m.From == sender && m.Status < pb.StatusRead {
				n++
			}
			return true
		})
	})
	return n, err
}

func (s *boltStore) ListUnread(ctx context.Context, recipient, sender string) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return scanPair(tx, recipient, sender, func(m *pb.Message) bool {
			if m.To == recipient && m.From == sender && m.Status < pb.StatusRead {
				out = append(out, m.Id)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	// newest first -> oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *boltStore) EnsureParticipant(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketParticipants)
		if b.Get([]byte(id)) != nil {
			return nil
		}
		v, err := json.Marshal(&pb.Contact{Id: id})
		if err != nil {
			return err
		}
		return b.Put([]byte(id), v)
	})
}

func (s *boltStore) Participant(ctx context.Context, id string) (*pb.Contact, error) {
	var c pb.Contact
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketParticipants).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *boltStore) Contacts(ctx context.Context, id string) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		prefix := []byte(id + "\x00")
		c := tx.Bucket(bucketContacts).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if other := string(k[len(prefix):]); other != id {
				out = append(out, other)
			}
		}
		return nil
	})
	return out, err
}

func (s *boltStore) SetPresence(ctx context.Context, id string, online bool, lastSeen int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketParticipants)
		if b.Get([]byte(id)) == nil {
			return nil
		}
		v, err := json.Marshal(&pb.Contact{Id: id, Online: online, LastSeen: lastSeen})
		if err != nil {
			return err
		}
		return b.Put([]byte(id), v)
	})
}
