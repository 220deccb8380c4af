package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
	"github.com/mattn/go-sqlite3"

	pb "github.com/mqy/pairchat/proto"
)

const (
	DialectMysql  = "mysql"
	DialectSqlite = "sqlite3"
)

var schema = map[string][]string{
	DialectMysql: {
		"CREATE TABLE IF NOT EXISTS messages (" +
			"id VARCHAR(32) NOT NULL PRIMARY KEY, " +
			"sender VARCHAR(64) NOT NULL, " +
			"recipient VARCHAR(64) NOT NULL, " +
			"payload TEXT NOT NULL, " +
			"create_time BIGINT NOT NULL, " +
			"status TINYINT NOT NULL DEFAULT 0, " +
			"INDEX idx_pair_time (sender, recipient, create_time), " +
			"INDEX idx_recipient_status (recipient, status)" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		"CREATE TABLE IF NOT EXISTS participants (" +
			"id VARCHAR(64) NOT NULL PRIMARY KEY, " +
			"online TINYINT NOT NULL DEFAULT 0, " +
			"last_seen BIGINT NOT NULL DEFAULT 0" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
	},
	DialectSqlite: {
		"CREATE TABLE IF NOT EXISTS messages (" +
			"id TEXT NOT NULL PRIMARY KEY, " +
			"sender TEXT NOT NULL, " +
			"recipient TEXT NOT NULL, " +
			"payload TEXT NOT NULL, " +
			"create_time INTEGER NOT NULL, " +
			"status INTEGER NOT NULL DEFAULT 0)",
		"CREATE INDEX IF NOT EXISTS idx_pair_time ON messages (sender, recipient, create_time)",
		"CREATE INDEX IF NOT EXISTS idx_recipient_status ON messages (recipient, status)",
		"CREATE TABLE IF NOT EXISTS participants (" +
			"id TEXT NOT NULL PRIMARY KEY, " +
			"online INTEGER NOT NULL DEFAULT 0, " +
			"last_seen INTEGER NOT NULL DEFAULT 0)",
	},
}

const (
	insertMessageSQL = "INSERT INTO messages (id,sender,recipient,payload,create_time,status) VALUES (?,?,?,?,?,?)"
	getMessageSQL    = "SELECT id,sender,recipient,payload,create_time,status FROM messages WHERE id=?"
	listBetweenSQL   = "SELECT id,sender,recipient,payload,create_time,status FROM messages " +
		"WHERE (sender=? AND recipient=?) OR (sender=? AND recipient=?) " +
		"ORDER BY create_time DESC, id DESC LIMIT ?"
	setStatusSQL   = "UPDATE messages SET status=? WHERE id=? AND status<?"
	countUnreadSQL = "SELECT COUNT(id) FROM messages WHERE recipient=? AND sender=? AND status<?"
	listUnreadSQL  = "SELECT id FROM messages WHERE recipient=? AND sender=? AND status<? " +
		"ORDER BY create_time ASC, id ASC"
)

const (
	insertParticipantSQL = "INSERT INTO participants (id,online,last_seen) VALUES (?,0,0)"
	getParticipantSQL    = "SELECT id,online,last_seen FROM participants WHERE id=?"
	setPresenceSQL       = "UPDATE participants SET online=?, last_seen=? WHERE id=?"
	contactsSQL          = "SELECT recipient FROM messages WHERE sender=? " +
		"UNION SELECT sender FROM messages WHERE recipient=?"
)

// sqlStore implements `IStore` on mysql or sqlite.
type sqlStore struct {
	*sql.DB
	dialect string
}

// NewSQLStore wraps an opened database. dialect is DialectMysql or DialectSqlite.
func NewSQLStore(db *sql.DB, dialect string) (*sqlStore, error) {
	if _, ok := schema[dialect]; !ok {
		return nil, fmt.Errorf("store: unsupported sql dialect %q", dialect)
	}
	return &sqlStore{DB: db, dialect: dialect}, nil
}

// Migrate creates tables and indexes if absent.
func (s *sqlStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema[s.dialect] {
		if _, err := s.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func (s *sqlStore) withTx(ctx context.Context, exec func(ctx context.Context, tx *sql.Tx) error, opts ...*sql.TxOptions) error {
	var txOpts *sql.TxOptions
	if len(opts) > 0 {
		txOpts = opts[0]
	}
	tx, err := s.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	if err := exec(ctx, tx); err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			glog.Errorf("failed to rollback: %v", err2)
		}
		return err
	}

	return tx.Commit()
}

// IsDupKeyError reports primary key conflicts of either dialect.
func (s *sqlStore) IsDupKeyError(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*pb.Message, error) {
	var m pb.Message
	var st uint8
	if err := row.Scan(&m.Id, &m.From, &m.To, &m.Payload, &m.CreateTime, &st); err != nil {
		return nil, err
	}
	m.Status = pb.Status(st)
	if !m.Status.Valid() {
		return nil, fmt.Errorf("store: message %s has invalid status %d", m.Id, st)
	}
	return &m, nil
}

func (s *sqlStore) Create(ctx context.Context, from, to, payload string, createTime int64) (*pb.Message, error) {
	m := &pb.Message{
		From:       from,
		To:         to,
		Payload:    payload,
		CreateTime: createTime,
		Status:     pb.StatusSent,
	}

	// retry once on an id collision
	for i := 0; ; i++ {
		m.Id = newMessageId()
		_, err := s.ExecContext(ctx, insertMessageSQL, m.Id, m.From, m.To, m.Payload, m.CreateTime, uint8(m.Status))
		if err == nil {
			return m, nil
		}
		if i == 0 && s.IsDupKeyError(err) {
			glog.Errorf("store: duplicate message id %s, retrying", m.Id)
			continue
		}
		glog.Errorf("insert message exec err: %v", err)
		return nil, err
	}
}

func (s *sqlStore) Get(ctx context.Context, id string) (*pb.Message, error) {
	m, err := scanMessage(s.QueryRowContext(ctx, getMessageSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (s *sqlStore) ListBetween(ctx context.Context, a, b string, limit int) ([]*pb.Message, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var out []*pb.Message
	if err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, listBetweenSQL, a, b, b, a, limit)
		if err != nil {
			glog.Errorf("list between query err: %v", err)
			return err
		}
		defer rows.Close()

		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				glog.Errorf("list between scan err: %v", err)
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	}, &sql.TxOptions{ReadOnly: true}); err != nil {
		return nil, err
	}

	// newest first -> oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *sqlStore) SetStatus(ctx context.Context, id string, status pb.Status) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("store: invalid status %d", uint8(status))
	}
	res, err := s.ExecContext(ctx, setStatusSQL, uint8(status), id, uint8(status))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *sqlStore) CountUnread(ctx context.Context, recipient, sender string) (int32, error) {
	var out sql.NullInt32
	row := s.QueryRowContext(ctx, countUnreadSQL, recipient, sender, uint8(pb.StatusRead))
	if err := row.Scan(&out); err != nil {
		glog.Errorf("count unread scan err: %v", err)
		return 0, err
	}
	if out.Valid {
		return out.Int32, nil
	}
	return 0, nil
}

func (s *sqlStore) ListUnread(ctx context.Context, recipient, sender string) ([]string, error) {
	rows, err := s.QueryContext(ctx, listUnreadSQL, recipient, sender, uint8(pb.StatusRead))
	if err != nil {
		glog.Errorf("list unread query err: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *sqlStore) EnsureParticipant(ctx context.Context, id string) error {
	if _, err := s.ExecContext(ctx, insertParticipantSQL, id); err != nil && !s.IsDupKeyError(err) {
		return err
	}
	return nil
}

func (s *sqlStore) Participant(ctx context.Context, id string) (*pb.Contact, error) {
	var c pb.Contact
	var online uint8
	err := s.QueryRowContext(ctx, getParticipantSQL, id).Scan(&c.Id, &online, &c.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	c.Online = online > 0
	return &c, nil
}

func (s *sqlStore) Contacts(ctx context.Context, id string) ([]string, error) {
	rows, err := s.QueryContext(ctx, contactsSQL, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v != id {
			out = append(out, v)
		}
	}
	return out, rows.Err()
}

func (s *sqlStore) SetPresence(ctx context.Context, id string, online bool, lastSeen int64) error {
	var v uint8
	if online {
		v = 1
	}
	_, err := s.ExecContext(ctx, setPresenceSQL, v, lastSeen, id)
	return err
}
