package inmemdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-board/core/board"
)

func TestWhiteboardStore(t *testing.T) {
	now := time.Date(2021, 5, 1, 8, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	ctx := context.Background()
	store := NewWhiteboardStore(Open())

	_, err := store.Record(ctx, "r1")
	assert.Equal(t, board.ErrNotFound, errors.Cause(err))

	var got []board.Record
	sub, err := store.Subscribe(ctx, "r1", func(rec board.Record) { got = append(got, rec) })
	require.NoError(t, err)

	doc := []byte(`{"version":1}`)
	require.NoError(t, store.Overwrite(ctx, "r1", doc, 10))
	require.NoError(t, store.Overwrite(ctx, "r2", []byte("other"), 11))
	doc[0] = 'X' // the store keeps its own copy

	rec, err := store.Record(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, board.Record{RoomID: "r1", Document: []byte(`{"version":1}`), Timestamp: 10, UpdatedAt: now}, rec)

	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])

	require.NoError(t, sub.Close())
	require.NoError(t, store.Overwrite(ctx, "r1", []byte("{}"), 12))
	assert.Len(t, got, 1)

	rec, err = store.Record(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), rec.Timestamp)
}

func TestWhiteboardStore_staleWrite(t *testing.T) {
	ctx := context.Background()
	store := NewWhiteboardStore(Open())

	var got []int64
	_, err := store.Subscribe(ctx, "r1", func(rec board.Record) { got = append(got, rec.Timestamp) })
	require.NoError(t, err)

	require.NoError(t, store.Overwrite(ctx, "r1", []byte(`{"v":"new"}`), 20))
	require.NoError(t, store.Overwrite(ctx, "r1", []byte(`{"v":"old"}`), 10))
	require.NoError(t, store.Overwrite(ctx, "r1", []byte(`{"v":"same"}`), 20))

	rec, err := store.Record(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), rec.Timestamp)
	assert.Equal(t, []byte(`{"v":"new"}`), rec.Document)
	assert.Equal(t, []int64{20}, got, "dropped writes are not published")
}

func TestWhiteboardStore_canceledContext(t *testing.T) {
	store := NewWhiteboardStore(Open())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Overwrite(ctx, "r1", nil, 1))
	_, err := store.Record(ctx, "r1")
	assert.Error(t, err)
	_, err = store.Subscribe(ctx, "r1", func(board.Record) {})
	assert.Error(t, err)
}

func TestWhiteboardStore_publishOrder(t *testing.T) {
	ctx := context.Background()
	store := NewWhiteboardStore(Open())

	var (
		mu  sync.Mutex
		seq []int64
	)
	_, err := store.Subscribe(ctx, "r1", func(rec board.Record) {
		mu.Lock()
		seq = append(seq, rec.Timestamp)
		mu.Unlock()
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			_ = store.Overwrite(ctx, "r1", []byte("{}"), ts)
		}(int64(i))
	}
	wg.Wait()

	rec, err := store.Record(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), rec.Timestamp)
	require.NotEmpty(t, seq)
	assert.Equal(t, rec.Timestamp, seq[len(seq)-1], "last publication is the committed record")
	for i := 1; i < len(seq); i++ {
		assert.Less(t, seq[i-1], seq[i], "publications only move forward")
	}
}
