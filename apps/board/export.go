package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-board/core/surface"
)

var errTerminalOutput = errors.New("refusing to write a binary export to a terminal, use -out FILE")

// export renders the stored whiteboard of room to out (a file) or to the CLI output.
func (cli *commandLine) export(room, format, out, remote, token string) error {
	f, err := surface.ParseFormat(format)
	if err != nil {
		return err
	}
	if out == "" && cli.outFd >= 0 && isTerminalFunc(cli.outFd) {
		return errTerminalOutput
	}

	store, err := cli.store(remote, token)
	if err != nil {
		return err
	}
	rec, err := store.Record(context.Background(), room)
	if err != nil {
		return errors.Wrapf(err, "getting whiteboard of %s", room)
	}
	snap, err := surface.Decode(rec.Document, cli.validate)
	if err != nil {
		return err
	}
	exp, err := surface.RenderExport(snap, f)
	if err != nil {
		return err
	}

	if out == "" {
		_, err = cli.out.Write(exp.Data)
		return err
	}
	if err = os.WriteFile(out, exp.Data, 0o644); err != nil {
		return errors.Wrap(err, "writing export")
	}
	cli.logger.Info(fmt.Sprintf("exported %s (%d objects) to %s", room, len(snap.Objects), out))
	return nil
}
