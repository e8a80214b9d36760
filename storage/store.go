// Package storage opens the whiteboard store selected by the configuration.
package storage

import (
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-board/core"
	"github.com/trezcool/masomo-board/core/board"
	"github.com/trezcool/masomo-board/storage/database"
	inmemdb "github.com/trezcool/masomo-board/storage/database/inmem"
	sqlitedb "github.com/trezcool/masomo-board/storage/database/sqlite"
	sqlxrepos "github.com/trezcool/masomo-board/storage/database/sqlx"
)

// Closer releases a store and its database.
type Closer func() error

// Open opens the store of conf.Database.Engine: postgres (created and migrated if needed), sqlite or memory.
func Open(conf *core.Config, logger core.Logger) (board.Store, Closer, error) {
	switch conf.Database.Engine {
	case "postgres":
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, err
		}
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		store := sqlxrepos.NewWhiteboardStore(db, database.DSN(conf.Database.Name, false, conf), logger)
		return store, func() error {
			_ = store.Close()
			return db.Close()
		}, nil

	case "sqlite":
		db, err := sqlitedb.Open(conf.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		return sqlitedb.NewWhiteboardStore(db), db.Close, nil

	case "memory":
		return inmemdb.NewWhiteboardStore(inmemdb.Open()), func() error { return nil }, nil
	}
	return nil, nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
}
