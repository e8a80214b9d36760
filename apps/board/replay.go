package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-board/core/board"
	"github.com/trezcool/masomo-board/core/canvas"
	notifysvc "github.com/trezcool/masomo-board/services/notify"
)

// Event is one recorded user action. Coordinates are in view pixels.
type Event struct {
	Type  string  `json:"type" validate:"oneof=down move up cancel undo clear mode tool color width resize"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     int     `json:"w" validate:"required_if=Type resize,gte=0"`
	H     int     `json:"h" validate:"required_if=Type resize,gte=0"`
	Value string  `json:"value" validate:"required_if=Type mode,required_if=Type tool,required_if=Type color,required_if=Type width"`
}

type replayFile struct {
	Width  int     `json:"width" validate:"gte=0"`
	Height int     `json:"height" validate:"gte=0"`
	Events []Event `json:"events" validate:"required,dive"`
}

// imageDisplay is a headless canvas.Display counting presented frames.
type imageDisplay struct {
	mu     sync.Mutex
	w, h   int
	frames int
}

var _ canvas.Display = (*imageDisplay)(nil)

func (d *imageDisplay) Size() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.w, d.h
}

func (d *imageDisplay) Present(image.Image) error {
	d.mu.Lock()
	d.frames++
	d.mu.Unlock()
	return nil
}

func (d *imageDisplay) presented() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

func (d *imageDisplay) resize(w, h int) {
	d.mu.Lock()
	d.w, d.h = w, h
	d.mu.Unlock()
}

func (cli *commandLine) loadEvents(file string) (replayFile, error) {
	var rf replayFile
	data, err := os.ReadFile(file)
	if err != nil {
		return rf, errors.Wrap(err, "reading events")
	}
	if err = json.Unmarshal(data, &rf); err != nil {
		return rf, errors.Wrap(err, "decoding events")
	}
	if err = cli.validate.Struct(rf); err != nil {
		return rf, errors.Wrap(err, "validating events")
	}
	return rf, nil
}

// replay opens a whiteboard session on room, plays the recorded events through the canvas and saves the result.
func (cli *commandLine) replay(room, file, owner, remote, token string) error {
	rf, err := cli.loadEvents(file)
	if err != nil {
		return err
	}
	store, err := cli.store(remote, token)
	if err != nil {
		return err
	}

	display := &imageDisplay{w: cli.conf.Board.Width, h: cli.conf.Board.Height}
	if rf.Width > 0 && rf.Height > 0 {
		display.resize(rf.Width, rf.Height)
	}
	console := notifysvc.NewConsole(cli.out)
	notifier := notifysvc.Multi{console, notifysvc.NewLogger(cli.logger, map[string]interface{}{"room": room})}

	ctx := context.Background()
	sess, err := board.OpenSession(ctx, board.SessionConfig{
		RoomID:   room,
		OwnerID:  owner,
		Store:    store,
		Display:  display,
		Notifier: notifier,
		Logger:   cli.logger,
		Board:    cli.conf.Board,
		Validate: cli.validate,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	for i, ev := range rf.Events {
		if err = play(sess, display, ev); err != nil {
			return errors.Wrapf(err, "events[%d]", i)
		}
	}
	if err = sess.Flush(ctx); err != nil {
		return err
	}

	status := sess.Status()
	_, _ = fmt.Fprintf(cli.out, "replayed %d events on %s: %d objects, saved at %d, %d frames rendered\n",
		len(rf.Events), room, sess.Surface().Len(), status.LastApplied, display.presented())
	return nil
}

func play(sess *board.Session, display *imageDisplay, ev Event) error {
	switch ev.Type {
	case "down":
		sess.PointerDown(ev.X, ev.Y)
	case "move":
		sess.PointerMove(ev.X, ev.Y)
	case "up":
		sess.PointerUp(ev.X, ev.Y)
	case "cancel":
		sess.PointerCancel()
	case "undo":
		sess.Undo()
	case "clear":
		sess.Clear()
	case "mode":
		sess.SetMode(canvas.Mode(ev.Value))
	case "tool":
		sess.SetTool(canvas.Tool(ev.Value))
	case "color":
		sess.SetColor(ev.Value)
	case "width":
		w, err := strconv.ParseFloat(ev.Value, 64)
		if err != nil {
			return errors.Wrap(err, "brush width")
		}
		sess.SetBrushWidth(w)
	case "resize":
		display.resize(ev.W, ev.H)
		sess.Resize(ev.W, ev.H)
	}
	return nil
}
