package sqlxrepos

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-board/core"
	"github.com/trezcool/masomo-board/core/board"
)

// NotifyChannel is fed by the whiteboard_changed trigger with the room id of every written record.
const NotifyChannel = "whiteboard_changed"

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
	refreshTimeout       = 5 * time.Second
)

// WhiteboardStore keeps records in Postgres. Changes from every process reach subscribers through LISTEN/NOTIFY.
type WhiteboardStore struct {
	db  *sqlx.DB
	dsn string
	log core.Logger
	hub *board.Hub

	mu       sync.Mutex
	listener *pq.Listener
	stop     chan struct{}
	done     chan struct{}
	lastSeen map[string]board.Record
}

var _ board.Store = (*WhiteboardStore)(nil)

// NewWhiteboardStore needs the DSN of db to open its own listening connection.
func NewWhiteboardStore(db *sql.DB, dsn string, log core.Logger) *WhiteboardStore {
	return &WhiteboardStore{
		db:       sqlx.NewDb(db, "postgres"),
		dsn:      dsn,
		log:      log,
		hub:      board.NewHub(),
		lastSeen: make(map[string]board.Record),
	}
}

func (s *WhiteboardStore) Record(ctx context.Context, roomID string) (board.Record, error) {
	var rec board.Record
	err := s.db.GetContext(ctx, &rec, `SELECT room_id, document, timestamp, updated_at FROM whiteboard WHERE room_id = $1`, roomID)
	if errors.Cause(err) == sql.ErrNoRows {
		return board.Record{}, board.ErrNotFound
	}
	if err != nil {
		return board.Record{}, errors.Wrap(err, "selecting whiteboard")
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

// Overwrite leaves the row (and the trigger) untouched when timestamp is not newer than the stored one.
func (s *WhiteboardStore) Overwrite(ctx context.Context, roomID string, doc []byte, timestamp int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO whiteboard (room_id, document, timestamp, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (room_id) DO UPDATE SET
			document = EXCLUDED.document,
			timestamp = EXCLUDED.timestamp,
			updated_at = EXCLUDED.updated_at
		WHERE whiteboard.timestamp < EXCLUDED.timestamp`,
		roomID, doc, timestamp,
	)
	return errors.Wrap(err, "upserting whiteboard")
}

func (s *WhiteboardStore) Subscribe(ctx context.Context, roomID string, fn board.ChangeFunc) (board.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.listen(); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(roomID, fn), nil
}

// listen starts the notification loop once.
func (s *WhiteboardStore) listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	l := pq.NewListener(s.dsn, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.log.Warn("sqlx: listener event", err, map[string]interface{}{"event": ev})
		}
	})
	if err := l.Listen(NotifyChannel); err != nil {
		_ = l.Close()
		return errors.Wrap(err, "listening to "+NotifyChannel)
	}

	s.listener = l
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(l, s.stop, s.done)
	return nil
}

func (s *WhiteboardStore) loop(l *pq.Listener, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case n := <-l.Notify:
			if n == nil { // reconnected: notifications may have been lost
				for _, room := range s.hub.Rooms() {
					s.refresh(room)
				}
				continue
			}
			s.refresh(n.Extra)
		case <-ticker.C:
			go func() { _ = l.Ping() }()
		}
	}
}

// refresh loads the record of a room and publishes it unless subscribers already got it.
func (s *WhiteboardStore) refresh(roomID string) {
	if s.hub.Subscribers(roomID) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	rec, err := s.Record(ctx, roomID)
	if err != nil {
		s.log.Error("sqlx: refreshing whiteboard", err, map[string]interface{}{"room": roomID})
		return
	}
	if !s.markSeen(rec) {
		return
	}
	s.hub.Publish(rec)
}

func (s *WhiteboardStore) markSeen(rec board.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastSeen[rec.RoomID]
	if ok && last.Timestamp == rec.Timestamp && last.UpdatedAt.Equal(rec.UpdatedAt) {
		return false
	}
	s.lastSeen[rec.RoomID] = board.Record{RoomID: rec.RoomID, Timestamp: rec.Timestamp, UpdatedAt: rec.UpdatedAt}
	return true
}

// Close stops listening. Subscriptions stop receiving changes.
func (s *WhiteboardStore) Close() error {
	s.mu.Lock()
	l, stop, done := s.listener, s.stop, s.done
	s.listener = nil
	s.mu.Unlock()

	if l == nil {
		return nil
	}
	close(stop)
	<-done
	return errors.Wrap(l.Close(), "closing listener")
}
