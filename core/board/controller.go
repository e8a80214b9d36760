package board

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-board/core"
	"github.com/trezcool/masomo-board/core/surface"
)

const DefaultSaveDelay = time.Second

// nowFunc is mockable in tests
var nowFunc = time.Now

type ControllerConfig struct {
	RoomID    string
	Store     Store
	Surface   *surface.Surface
	Notifier  Notifier
	Logger    core.Logger
	SaveDelay time.Duration // debounce of local edits; default: DefaultSaveDelay
	AfterFunc AfterFunc     // optional
}

// Status is a point-in-time view of a controller.
type Status struct {
	Loading     bool
	LastApplied int64 // timestamp of the last applied or pushed record
	Pending     int   // local edits not yet persisted
	LastError   error
}

// Controller keeps a surface and the remote record of its room in sync:
// remote changes replace the surface (newest timestamp wins) and local edits are pushed
// as whole documents after a quiet period.
type Controller struct {
	roomID   string
	store    Store
	surface  *surface.Surface
	notifier Notifier
	log      core.Logger
	sched    *Scheduler
	validate *validator.Validate

	applyMu sync.Mutex // serializes remote applies
	pushMu  sync.Mutex // serializes pushes

	mu          sync.Mutex
	ctx         context.Context
	loading     bool
	closed      bool
	lastApplied int64
	pending     []surface.Mutation
	pendingGen  uint64 // bumped when a remote apply drops the pending edits
	inFlight    map[int64]bool
	lastErr     error

	sub     Subscription
	stopObs func()
}

func NewController(conf ControllerConfig) (*Controller, error) {
	if err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(conf.RoomID, "RoomID"),
		core.IsSet(conf.Store, "Store"),
		vala.IsNotNil(conf.Surface, "Surface"),
		core.IsSet(conf.Notifier, "Notifier"),
		core.IsSet(conf.Logger, "Logger"),
	).Check(); err != nil {
		return nil, errors.Wrap(err, "board.NewController")
	}
	if conf.SaveDelay <= 0 {
		conf.SaveDelay = DefaultSaveDelay
	}
	return &Controller{
		roomID:   conf.RoomID,
		store:    conf.Store,
		surface:  conf.Surface,
		notifier: conf.Notifier,
		log:      conf.Logger,
		sched:    NewScheduler(conf.SaveDelay, conf.AfterFunc),
		validate: surface.NewValidator(),
		ctx:      context.Background(),
		loading:  true,
		inFlight: make(map[int64]bool),
	}, nil
}

// Start subscribes to the room, starts tracking local edits, then pulls the current record once.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("controller closed")
	}
	c.ctx = context.WithoutCancel(ctx)
	c.mu.Unlock()

	if c.sub == nil {
		sub, err := c.store.Subscribe(ctx, c.roomID, c.onRemoteChange)
		if err != nil {
			return errors.Wrap(err, "subscribing to room")
		}
		c.sub = sub
		c.stopObs = c.surface.Observe(c.onMutation)
	}
	return c.Pull(ctx)
}

// Pull fetches the current record and applies it if newer.
func (c *Controller) Pull(ctx context.Context) error {
	rec, err := c.store.Record(ctx, c.roomID)
	switch {
	case errors.Cause(err) == ErrNotFound:
		c.log.Debug("board: no record yet", map[string]interface{}{"room": c.roomID})
	case err != nil:
		c.setErr(err)
		return errors.Wrap(err, "pulling record")
	default:
		c.apply(rec)
	}

	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
	return nil
}

func (c *Controller) onRemoteChange(rec Record) {
	c.apply(rec)
}

func (c *Controller) apply(rec Record) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if rec.Timestamp <= c.lastApplied {
		c.mu.Unlock()
		c.log.Debug("board: stale record discarded", map[string]interface{}{"room": c.roomID, "ts": rec.Timestamp})
		return
	}
	if c.inFlight[rec.Timestamp] { // echo of our own push
		c.lastApplied = rec.Timestamp
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	snap, err := surface.Decode(rec.Document, c.validate)
	if err != nil {
		c.setErr(err)
		c.log.Error("board: corrupt remote record", err, map[string]interface{}{"room": c.roomID, "ts": rec.Timestamp})
		c.notify(NotifyError, MsgCorrupt)
		return
	}

	c.mu.Lock()
	if c.closed || rec.Timestamp <= c.lastApplied {
		c.mu.Unlock()
		return
	}
	c.lastApplied = rec.Timestamp
	if len(c.pending) > 0 {
		c.log.Warn("board: remote change overrides local edits", map[string]interface{}{
			"room": c.roomID, "dropped": len(c.pending),
		})
	}
	c.pending = nil
	c.pendingGen++
	c.sched.Cancel()
	c.mu.Unlock()

	c.surface.ReplaceAll(snap)
}

func (c *Controller) onMutation(m surface.Mutation) {
	if !m.IsLocal() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pending = append(c.pending, m)
	c.sched.Schedule(func() {
		_ = c.push(c.context())
	})
}

func (c *Controller) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// Flush pushes pending edits now.
func (c *Controller) Flush(ctx context.Context) error {
	c.sched.Cancel()
	return c.push(ctx)
}

// Retry re-attempts a failed push. Failed pushes are never retried on a timer.
func (c *Controller) Retry(ctx context.Context) error {
	return c.Flush(ctx)
}

func (c *Controller) push(ctx context.Context) error {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	c.mu.Lock()
	if c.closed || len(c.pending) == 0 {
		c.mu.Unlock()
		return nil
	}
	n, gen := len(c.pending), c.pendingGen
	ts := nowFunc().UnixNano() / int64(time.Millisecond)
	if ts <= c.lastApplied {
		ts = c.lastApplied + 1
	}
	c.inFlight[ts] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, ts)
		c.mu.Unlock()
	}()

	doc, err := c.surface.Serialize()
	if err != nil {
		err = errors.Wrap(ErrPushFailed, err.Error())
		if c.fail(err, MsgTooLarge) {
			c.log.Warn("board: document not pushed", err, map[string]interface{}{"room": c.roomID})
		}
		return err
	}

	if err := c.store.Overwrite(ctx, c.roomID, doc, ts); err != nil {
		err = errors.Wrap(ErrPushFailed, err.Error())
		if c.fail(err, MsgPushFailed) {
			c.log.Error("board: push failed", err, map[string]interface{}{"room": c.roomID, "ts": ts})
		}
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if gen == c.pendingGen {
		c.pending = c.pending[n:]
	}
	if ts > c.lastApplied {
		c.lastApplied = ts
	}
	c.lastErr = nil
	return nil
}

// fail records a push error and warns the user, unless the controller is closed.
func (c *Controller) fail(err error, msg string) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.lastErr = err
	c.mu.Unlock()
	c.notify(NotifyWarning, msg)
	return true
}

func (c *Controller) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Controller) notify(kind NotificationKind, msg string) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		c.notifier.Notify(kind, msg)
	}
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Loading:     c.loading,
		LastApplied: c.lastApplied,
		Pending:     len(c.pending),
		LastError:   c.lastErr,
	}
}

// Close unsubscribes and drops any scheduled push. The result of an in-flight push is ignored.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.sched.Cancel()
	c.mu.Unlock()

	if c.stopObs != nil {
		c.stopObs()
	}
	if c.sub != nil {
		return errors.Wrap(c.sub.Close(), "unsubscribing")
	}
	return nil
}
