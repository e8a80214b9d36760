package storage

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-board/core/board"
	logsvc "github.com/trezcool/masomo-board/services/logger"
	"github.com/trezcool/masomo-board/tests"
)

func TestOpen(t *testing.T) {
	conf := testutil.NewConfig(t)
	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "", 0), conf)

	conf.Database.Path = filepath.Join(t.TempDir(), "board.sqlite3")
	for _, engine := range []string{"memory", "sqlite"} {
		t.Run(engine, func(t *testing.T) {
			conf.Database.Engine = engine
			store, closer, err := Open(conf, logger)
			require.NoError(t, err)
			defer func() { assert.NoError(t, closer()) }()

			ctx := context.Background()
			_, err = store.Record(ctx, "room-1")
			assert.Equal(t, board.ErrNotFound, errors.Cause(err))

			require.NoError(t, store.Overwrite(ctx, "room-1", testutil.Document(t), 1))
			rec, err := store.Record(ctx, "room-1")
			require.NoError(t, err)
			assert.Equal(t, int64(1), rec.Timestamp)
		})
	}

	conf.Database.Engine = "mongo"
	_, _, err := Open(conf, logger)
	assert.EqualError(t, err, `unknown database engine "mongo"`)
}
