package sqlxrepos

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-board/core/board"
	logsvc "github.com/trezcool/masomo-board/services/logger"
	"github.com/trezcool/masomo-board/tests"
)

func TestWhiteboardStore(t *testing.T) {
	db, dsn := testutil.PreparePostgres(t)
	conf := testutil.NewConfig(t)
	store := NewWhiteboardStore(db, dsn, logsvc.NewRollbarLogger(log.New(os.Stderr, "", 0), conf))
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	_, err := store.Record(ctx, "r1")
	assert.Equal(t, board.ErrNotFound, errors.Cause(err))

	changes := make(chan board.Record, 4)
	sub, err := store.Subscribe(ctx, "r1", func(rec board.Record) { changes <- rec })
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, store.Overwrite(ctx, "r1", []byte(`{"v":1}`), 100))

	select {
	case rec := <-changes:
		assert.Equal(t, "r1", rec.RoomID)
		assert.Equal(t, []byte(`{"v":1}`), rec.Document)
		assert.Equal(t, int64(100), rec.Timestamp)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification received")
	}

	// older writes are dropped
	require.NoError(t, store.Overwrite(ctx, "r1", []byte(`{"v":2}`), 90))
	rec, err := store.Record(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.Timestamp)
	assert.Equal(t, []byte(`{"v":1}`), rec.Document)

	require.NoError(t, store.Overwrite(ctx, "r1", []byte(`{"v":3}`), 110))
	rec, err = store.Record(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(110), rec.Timestamp)
	assert.Equal(t, []byte(`{"v":3}`), rec.Document)
}

func TestWhiteboardStore_markSeen(t *testing.T) {
	s := &WhiteboardStore{lastSeen: make(map[string]board.Record)}
	now := time.Now()

	assert.True(t, s.markSeen(board.Record{RoomID: "r1", Timestamp: 1, UpdatedAt: now}))
	assert.False(t, s.markSeen(board.Record{RoomID: "r1", Timestamp: 1, UpdatedAt: now}))
	assert.True(t, s.markSeen(board.Record{RoomID: "r1", Timestamp: 1, UpdatedAt: now.Add(time.Millisecond)}))
	assert.True(t, s.markSeen(board.Record{RoomID: "r2", Timestamp: 1, UpdatedAt: now}))
}
