package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/masomo-board/core"
	"github.com/trezcool/masomo-board/core/surface"
	"github.com/trezcool/masomo-board/storage/database"
)

// NewConfig returns the TEST configuration.
func NewConfig(t *testing.T) *core.Config {
	t.Helper()
	env := os.Getenv("ENV")
	_ = os.Setenv("ENV", "TEST")
	defer func() { _ = os.Setenv("ENV", env) }()
	return core.NewConfig()
}

// PreparePostgres connects to the TEST database, migrates it and empties it.
// The test is skipped when no server answers.
func PreparePostgres(t *testing.T) (db *sql.DB, dsn string) {
	t.Helper()
	conf := NewConfig(t)
	dsn = database.DSN(conf.Database.Name, false, conf)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Skipf("postgres unavailable: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if _, err = db.Exec("TRUNCATE whiteboard"); err != nil {
		t.Fatalf("truncating whiteboard failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, dsn
}

// Stroke returns a valid freehand object through pts (x1, y1, x2, y2, ...).
func Stroke(id string, pts ...float64) surface.Object {
	obj := surface.Object{
		ID:        id,
		Kind:      surface.KindPath,
		Style:     surface.Style{Color: "#000000", Width: 2},
		CreatedAt: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := 0; i+1 < len(pts); i += 2 {
		obj.Points = append(obj.Points, surface.Point{X: pts[i], Y: pts[i+1]})
	}
	if len(obj.Points) == 0 {
		obj.Points = []surface.Point{{X: 1, Y: 1}}
	}
	return obj
}

// Document encodes an 800x600 white snapshot holding objs.
func Document(t *testing.T, objs ...surface.Object) []byte {
	t.Helper()
	doc, err := surface.Encode(surface.Snapshot{Width: 800, Height: 600, Background: "#ffffff", Objects: objs}, 0)
	if err != nil {
		t.Fatalf("surface.Encode() failed: %v", err)
	}
	return doc
}

// Diff returns a unified diff of two texts, or "" when they are equal.
func Diff(fromName, toName string, from, to []byte) string {
	if bytes.Equal(from, to) {
		return ""
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(from)),
		B:        difflib.SplitLines(string(to)),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	})
	return diff
}

// CheckJSON fails the test with a readable diff when want and got are not the same JSON value.
func CheckJSON(t *testing.T, want, got []byte) {
	t.Helper()
	w, err := indentJSON(want)
	if err != nil {
		t.Fatalf("invalid want JSON: %v", err)
	}
	g, err := indentJSON(got)
	if err != nil {
		t.Fatalf("invalid got JSON: %v\n%s", err, got)
	}
	if diff := Diff("want", "got", w, g); diff != "" {
		t.Errorf("JSON mismatch:\n%s", diff)
	}
}

func indentJSON(b []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "json.MarshalIndent")
	}
	return append(out, '\n'), nil
}
