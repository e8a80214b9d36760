package board

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-board/core"
	"github.com/trezcool/masomo-board/core/canvas"
	"github.com/trezcool/masomo-board/core/surface"
)

type SessionConfig struct {
	RoomID    string
	OwnerID   string
	Store     Store
	Display   canvas.Display
	Notifier  Notifier
	Logger    core.Logger
	Board     core.BoardConfig
	Validate  *validator.Validate // optional
	AfterFunc AfterFunc           // optional
}

// Session is one user's whiteboard for one room: a surface, its canvas adapter and its sync controller.
// Component errors are turned into notifications; Close releases everything.
type Session struct {
	RoomID string

	surface    *surface.Surface
	canvas     *canvas.Adapter
	controller *Controller
	notifier   Notifier
	log        core.Logger

	closeOnce sync.Once
	closeErr  error
}

// OpenSession acquires every component of a session. On failure, whatever was acquired is released.
func OpenSession(ctx context.Context, conf SessionConfig) (_ *Session, err error) {
	if err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(conf.RoomID, "RoomID"),
		core.IsSet(conf.Notifier, "Notifier"),
		core.IsSet(conf.Logger, "Logger"),
	).Check(); err != nil {
		return nil, errors.Wrap(err, "board.OpenSession")
	}

	sess := &Session{RoomID: conf.RoomID, notifier: conf.Notifier, log: conf.Logger}
	defer func() {
		if err != nil {
			_ = sess.Close()
		}
	}()

	sess.surface = surface.New(surface.Config{
		Width:            conf.Board.Width,
		Height:           conf.Board.Height,
		Background:       conf.Board.Background,
		MaxDocumentBytes: conf.Board.MaxDocumentBytes,
		Validate:         conf.Validate,
	})

	sess.canvas, err = canvas.New(sess.surface, conf.Display, canvas.Options{
		OwnerID:    conf.OwnerID,
		Color:      conf.Board.BrushColor,
		BrushWidth: conf.Board.BrushWidth,
		OnError: func(err error) {
			sess.log.Error("board: render failed", err)
			sess.notifier.Notify(NotifyError, MsgRenderFailed)
		},
	})
	if err != nil {
		conf.Notifier.Notify(NotifyError, MsgRenderFailed)
		return nil, errors.Wrap(err, "opening canvas")
	}

	sess.controller, err = NewController(ControllerConfig{
		RoomID:    conf.RoomID,
		Store:     conf.Store,
		Surface:   sess.surface,
		Notifier:  conf.Notifier,
		Logger:    conf.Logger,
		SaveDelay: conf.Board.SaveDelay,
		AfterFunc: conf.AfterFunc,
	})
	if err != nil {
		return nil, err
	}

	if err = sess.controller.Start(ctx); err != nil {
		conf.Notifier.Notify(NotifyError, MsgLoadFailed)
		return nil, errors.Wrap(err, "starting sync")
	}
	return sess, nil
}

// Close is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.controller != nil {
			s.closeErr = s.controller.Close()
		}
		if s.canvas != nil {
			s.canvas.Close()
		}
	})
	return s.closeErr
}

func (s *Session) Surface() *surface.Surface { return s.surface }
func (s *Session) Status() Status            { return s.controller.Status() }

// guard turns a panic of a component into an error notification.
func (s *Session) guard(op string) {
	if r := recover(); r != nil {
		s.log.Error("board: recovered from panic", fmt.Errorf("%s: %v", op, r))
		s.notifier.Notify(NotifyError, "Something went wrong. Please retry.")
	}
}

func (s *Session) PointerDown(x, y float64) {
	defer s.guard("pointer down")
	s.canvas.PointerDown(x, y)
}

func (s *Session) PointerMove(x, y float64) {
	defer s.guard("pointer move")
	s.canvas.PointerMove(x, y)
}

func (s *Session) PointerUp(x, y float64) {
	defer s.guard("pointer up")
	s.rejected(s.canvas.PointerUp(x, y))
}

func (s *Session) PointerCancel() {
	defer s.guard("pointer cancel")
	s.rejected(s.canvas.PointerCancel())
}

// rejected reports objects the surface refused. Taps with shape tools commonly end up here.
func (s *Session) rejected(err error) {
	if err == nil {
		return
	}
	s.log.Debug("board: object rejected", err)
	s.notifier.Notify(NotifyInfo, MsgInvalidAction)
}

func (s *Session) SetMode(m canvas.Mode)   { s.canvas.SetMode(m) }
func (s *Session) SetTool(t canvas.Tool)   { s.canvas.SetTool(t) }
func (s *Session) SetBrushWidth(w float64) { s.canvas.SetBrushWidth(w) }

func (s *Session) SetColor(c string) {
	if err := s.canvas.SetColor(c); err != nil {
		s.notifier.Notify(NotifyWarning, fmt.Sprintf("Unknown color %q.", c))
	}
}

func (s *Session) Undo() bool { return s.canvas.Undo() }
func (s *Session) Clear()     { s.surface.Clear() }

func (s *Session) Resize(w, h int) {
	defer s.guard("resize")
	if err := s.canvas.Resize(w, h); err != nil {
		s.log.Error("board: render failed", err)
		s.notifier.Notify(NotifyError, MsgRenderFailed)
	}
}

// Export renders the surface. Failures are also notified.
func (s *Session) Export(format surface.Format) (surface.Export, error) {
	exp, err := s.canvas.Export(format)
	if err != nil {
		s.log.Error("board: export failed", err)
		s.notifier.Notify(NotifyError, MsgExportFailed)
		return surface.Export{}, err
	}
	return exp, nil
}

// Flush pushes pending edits immediately (eg: before leaving the room).
func (s *Session) Flush(ctx context.Context) error { return s.controller.Flush(ctx) }

// Retry re-attempts a failed push.
func (s *Session) Retry(ctx context.Context) error { return s.controller.Retry(ctx) }
