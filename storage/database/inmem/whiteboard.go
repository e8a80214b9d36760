package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/masomo-board/core/board"
)

type (
	DB struct {
		whiteboard *whiteboardTable
	}

	whiteboardTable struct {
		table map[string]board.Record
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		whiteboard: &whiteboardTable{table: make(map[string]board.Record)},
	}
}

// nowFunc is mockable in tests
var nowFunc = time.Now

type whiteboardStore struct {
	db    *whiteboardTable
	hub   *board.Hub
	pubMu sync.Mutex // keeps publications in commit order
}

var _ board.Store = (*whiteboardStore)(nil)

func NewWhiteboardStore(db *DB) board.Store {
	return &whiteboardStore{db: db.whiteboard, hub: board.NewHub()}
}

func (s *whiteboardStore) Record(ctx context.Context, roomID string) (board.Record, error) {
	if err := ctx.Err(); err != nil {
		return board.Record{}, err
	}
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	rec, ok := s.db.table[roomID]
	if !ok {
		return board.Record{}, board.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *whiteboardStore) Overwrite(ctx context.Context, roomID string, doc []byte, timestamp int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := board.Record{
		RoomID:    roomID,
		Document:  append([]byte(nil), doc...),
		Timestamp: timestamp,
		UpdatedAt: nowFunc().UTC(),
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.db.mutex.Lock()
	if cur, ok := s.db.table[roomID]; ok && cur.Timestamp >= timestamp {
		s.db.mutex.Unlock()
		return nil
	}
	s.db.table[roomID] = rec
	s.db.mutex.Unlock()

	s.hub.Publish(copyRecord(rec))
	return nil
}

func (s *whiteboardStore) Subscribe(ctx context.Context, roomID string, fn board.ChangeFunc) (board.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(roomID, fn), nil
}

func copyRecord(rec board.Record) board.Record {
	rec.Document = append([]byte(nil), rec.Document...)
	return rec
}
