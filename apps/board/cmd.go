package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/masomo-board/core"
	"github.com/trezcool/masomo-board/core/board"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf     *core.Config
	logger   core.Logger
	validate *validator.Validate
	out      io.Writer
	outFd    int // file descriptor of out, -1 when it is not a file

	openDB    func() (*sql.DB, error)
	openStore func(remote, token string) (board.Store, error)
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                           - run postgres migrations (up, down, status, version, redo, reset, ...)")
	_, _ = fmt.Fprintln(cli.out, "  export -room ID [-format png|jpeg|pdf] [-out FILE] - render a stored whiteboard")
	_, _ = fmt.Fprintln(cli.out, "  replay -room ID -file EVENTS.json                - draw recorded pointer events on a whiteboard and save it")
	_, _ = fmt.Fprintln(cli.out, "  diff -room ID -file DOC.json                     - compare a stored whiteboard with a local document")
	_, _ = fmt.Fprintln(cli.out, "  discover [-timeout 2s]                           - list board servers of the local network")
	_, _ = fmt.Fprintln(cli.out, "export, replay and diff use the configured store, or a board API with -remote URL -token JWT.")
}

// storeFlags adds the flags selecting a remote store.
func storeFlags(fs *flag.FlagSet) (remote, token *string) {
	remote = fs.String("remote", "", "Base URL of a board API. The configured database is used when empty.")
	token = fs.String("token", "", "JWT used to authenticate against -remote.")
	return remote, token
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportCmd.SetOutput(cli.out)
	exportRoom := exportCmd.String("room", "", "The class (room) id.")
	exportFormat := exportCmd.String("format", "png", "Output format: png, jpeg or pdf.")
	exportOut := exportCmd.String("out", "", "Output file. Defaults to stdout, which must not be a terminal.")
	exportRemote, exportToken := storeFlags(exportCmd)

	replayCmd := flag.NewFlagSet("replay", flag.ContinueOnError)
	replayCmd.SetOutput(cli.out)
	replayRoom := replayCmd.String("room", "", "The class (room) id.")
	replayFile := replayCmd.String("file", "", "JSON file of recorded events.")
	replayOwner := replayCmd.String("owner", "replay", "Owner id of the drawn objects.")
	replayRemote, replayToken := storeFlags(replayCmd)

	diffCmd := flag.NewFlagSet("diff", flag.ContinueOnError)
	diffCmd.SetOutput(cli.out)
	diffRoom := diffCmd.String("room", "", "The class (room) id.")
	diffFile := diffCmd.String("file", "", "JSON whiteboard document.")
	diffRemote, diffToken := storeFlags(diffCmd)

	discoverCmd := flag.NewFlagSet("discover", flag.ContinueOnError)
	discoverCmd.SetOutput(cli.out)
	discoverTimeout := discoverCmd.Duration("timeout", 2*time.Second, "How long to listen for answers.")

	parse := func(fs *flag.FlagSet) error {
		if err := fs.Parse(args[2:]); err != nil {
			if err == flag.ErrHelp {
				return errHelp
			}
			return err
		}
		return nil
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "export":
		if err := parse(exportCmd); err != nil {
			return err
		}
		room := core.CleanString(*exportRoom)
		if room == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(room, *exportFormat, *exportOut, *exportRemote, *exportToken)

	case "replay":
		if err := parse(replayCmd); err != nil {
			return err
		}
		room := core.CleanString(*replayRoom)
		if room == "" || *replayFile == "" {
			replayCmd.Usage()
			return errHelp
		}
		return cli.replay(room, *replayFile, *replayOwner, *replayRemote, *replayToken)

	case "diff":
		if err := parse(diffCmd); err != nil {
			return err
		}
		room := core.CleanString(*diffRoom)
		if room == "" || *diffFile == "" {
			diffCmd.Usage()
			return errHelp
		}
		return cli.diff(room, *diffFile, *diffRemote, *diffToken)

	case "discover":
		if err := parse(discoverCmd); err != nil {
			return err
		}
		return cli.discover(*discoverTimeout)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) store(remote, token string) (board.Store, error) {
	store, err := cli.openStore(remote, token)
	return store, errors.Wrap(err, "opening store")
}
