package database

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-board/core"
)

func TestDSN(t *testing.T) {
	conf := &core.Config{Database: core.DatabaseConfig{
		Host: "db", Port: 5433, Name: "board", User: "app", Password: "p@ss",
		AdminUser: "postgres", AdminPassword: "root",
	}}

	assert.Equal(t, "postgres://app:p%40ss@db:5433/board?sslmode=require&timezone=utc", DSN("board", false, conf))

	conf.Database.DisableTLS = true
	assert.Equal(t, "postgres://postgres:root@db:5433/postgres?sslmode=disable&timezone=utc", DSN("postgres", true, conf))
}

func TestMigrationsAreEmbedded(t *testing.T) {
	files, err := fs.Glob(migrationsFS, migrationsDir+"/*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"migrations/00001_create_whiteboard.sql",
		"migrations/00002_whiteboard_notify.sql",
	}, files)
}
