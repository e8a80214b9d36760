package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/masomo-board/core/board"
	"github.com/trezcool/masomo-board/core/surface"
)

var errDocumentsDiffer = errors.New("documents differ")

// diff prints a unified diff between the stored whiteboard of room and a local document.
// Both sides are normalized first so that only content changes show.
func (cli *commandLine) diff(room, file, remote, token string) error {
	local, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "reading document")
	}
	localText, err := cli.normalize(local)
	if err != nil {
		return errors.Wrap(err, file)
	}

	store, err := cli.store(remote, token)
	if err != nil {
		return err
	}
	var storedText []string
	rec, err := store.Record(context.Background(), room)
	switch {
	case err == nil:
		if storedText, err = cli.normalize(rec.Document); err != nil {
			return errors.Wrap(err, "stored document")
		}
	case errors.Cause(err) != board.ErrNotFound:
		return errors.Wrapf(err, "getting whiteboard of %s", room)
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        storedText,
		B:        localText,
		FromFile: room,
		ToFile:   file,
		Context:  3,
	})
	if err != nil {
		return errors.Wrap(err, "diffing")
	}
	if text == "" {
		_, _ = fmt.Fprintln(cli.out, "no differences")
		return nil
	}
	_, _ = fmt.Fprint(cli.out, text)
	return errDocumentsDiffer
}

func (cli *commandLine) normalize(doc []byte) ([]string, error) {
	snap, err := surface.Decode(doc, cli.validate)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "json.MarshalIndent")
	}
	return difflib.SplitLines(string(out) + "\n"), nil
}
