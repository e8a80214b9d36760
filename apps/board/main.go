package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-board/core"
	"github.com/trezcool/masomo-board/core/board"
	"github.com/trezcool/masomo-board/core/surface"
	logsvc "github.com/trezcool/masomo-board/services/logger"
	"github.com/trezcool/masomo-board/storage"
	"github.com/trezcool/masomo-board/storage/database"
	"github.com/trezcool/masomo-board/storage/remote"
)

func main() {
	os.Exit(start())
}

func start() int {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "BOARD : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	surface.InitValidators(validate, translator)

	var closers []storage.Closer
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()

	// start CLI
	cli := commandLine{
		conf:     conf,
		logger:   logger,
		validate: validate,
		out:      os.Stdout,
		outFd:    int(os.Stdout.Fd()),
		openDB: func() (*sql.DB, error) {
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, err
			}
			return database.Open(conf)
		},
		openStore: func(remoteURL, token string) (board.Store, error) {
			if remoteURL != "" {
				return remote.NewClient(remoteURL, token, logger)
			}
			store, closer, err := storage.Open(conf, logger)
			if err != nil {
				return nil, err
			}
			closers = append(closers, closer)
			return store, nil
		},
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp && err != errDocumentsDiffer {
			logger.Error("error: "+err.Error(), err)
		}
		return 1
	}
	return 0
}
