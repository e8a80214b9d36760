// Package sqlitedb stores whiteboards in a single SQLite file, for single-node deployments and the CLI.
package sqlitedb

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/trezcool/masomo-board/core/board"
)

const schema = `
CREATE TABLE IF NOT EXISTS whiteboard (
    room_id    TEXT    PRIMARY KEY,
    document   BLOB    NOT NULL,
    timestamp  INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);`

// nowFunc is mockable in tests
var nowFunc = time.Now

// Open opens (or creates) the database file at path and makes sure the schema exists.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}
	db.SetMaxOpenConns(1) // one writer at a time
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating schema")
	}
	return db, nil
}

type row struct {
	RoomID    string `db:"room_id"`
	Document  []byte `db:"document"`
	Timestamp int64  `db:"timestamp"`
	UpdatedAt int64  `db:"updated_at"` // Unix ms
}

func (r row) record() board.Record {
	return board.Record{
		RoomID:    r.RoomID,
		Document:  r.Document,
		Timestamp: r.Timestamp,
		UpdatedAt: time.Unix(0, r.UpdatedAt*int64(time.Millisecond)).UTC(),
	}
}

// whiteboardStore notifies subscribers of this process only.
type whiteboardStore struct {
	db    *sqlx.DB
	hub   *board.Hub
	pubMu sync.Mutex
}

var _ board.Store = (*whiteboardStore)(nil)

func NewWhiteboardStore(db *sqlx.DB) board.Store {
	return &whiteboardStore{db: db, hub: board.NewHub()}
}

func (s *whiteboardStore) Record(ctx context.Context, roomID string) (board.Record, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT room_id, document, timestamp, updated_at FROM whiteboard WHERE room_id = ?`, roomID)
	if errors.Cause(err) == sql.ErrNoRows {
		return board.Record{}, board.ErrNotFound
	}
	if err != nil {
		return board.Record{}, errors.Wrap(err, "selecting whiteboard")
	}
	return r.record(), nil
}

func (s *whiteboardStore) Overwrite(ctx context.Context, roomID string, doc []byte, timestamp int64) error {
	r := row{
		RoomID:    roomID,
		Document:  doc,
		Timestamp: timestamp,
		UpdatedAt: nowFunc().UnixNano() / int64(time.Millisecond),
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO whiteboard (room_id, document, timestamp, updated_at)
		VALUES (:room_id, :document, :timestamp, :updated_at)
		ON CONFLICT (room_id) DO UPDATE SET
			document = excluded.document,
			timestamp = excluded.timestamp,
			updated_at = excluded.updated_at
		WHERE whiteboard.timestamp < excluded.timestamp`, r)
	if err != nil {
		return errors.Wrap(err, "upserting whiteboard")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "upserting whiteboard")
	}
	if n == 0 { // stale write
		return nil
	}

	s.hub.Publish(r.record())
	return nil
}

func (s *whiteboardStore) Subscribe(ctx context.Context, roomID string, fn board.ChangeFunc) (board.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(roomID, fn), nil
}
