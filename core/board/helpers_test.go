package board

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-board/core/surface"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type notification struct {
	kind NotificationKind
	msg  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(kind NotificationKind, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{kind, msg})
}

func (n *fakeNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

// fakeClock fires scheduled tasks on demand.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	fn   func()
	done bool // fired or stopped
}

func (t *fakeTimer) Stop() bool {
	was := !t.done
	t.done = true
	return was
}

func (c *fakeClock) AfterFunc(_ time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// fire runs every pending task.
func (c *fakeClock) fire() {
	c.mu.Lock()
	var fns []func()
	for _, t := range c.timers {
		if !t.done {
			t.done = true
			fns = append(fns, t.fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// fakeStore keeps records in memory. In manual mode, changes are queued until deliver is called.
type fakeStore struct {
	mu           sync.Mutex
	manual       bool
	records      map[string]Record
	subs         map[int]*fakeSub
	nextSub      int
	queue        []Record
	writes       []Record
	overwriteErr error
	subscribeErr error
	onOverwrite  func()
}

type fakeSub struct {
	store  *fakeStore
	id     int
	roomID string
	fn     ChangeFunc
}

func (s *fakeSub) Close() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	delete(s.store.subs, s.id)
	return nil
}

func newFakeStore(manual bool) *fakeStore {
	return &fakeStore{manual: manual, records: make(map[string]Record), subs: make(map[int]*fakeSub)}
}

func (s *fakeStore) Record(_ context.Context, roomID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[roomID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) Overwrite(_ context.Context, roomID string, doc []byte, timestamp int64) error {
	if s.onOverwrite != nil {
		s.onOverwrite()
	}
	s.mu.Lock()
	if s.overwriteErr != nil {
		s.mu.Unlock()
		return s.overwriteErr
	}
	if cur, ok := s.records[roomID]; ok && cur.Timestamp >= timestamp {
		s.mu.Unlock()
		return nil
	}
	rec := Record{RoomID: roomID, Document: doc, Timestamp: timestamp, UpdatedAt: time.Now()}
	s.records[roomID] = rec
	s.writes = append(s.writes, rec)
	s.mu.Unlock()

	s.emit(rec)
	return nil
}

func (s *fakeStore) Subscribe(_ context.Context, roomID string, fn ChangeFunc) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	sub := &fakeSub{store: s, id: s.nextSub, roomID: roomID, fn: fn}
	s.subs[sub.id] = sub
	s.nextSub++
	return sub, nil
}

// emit publishes a change (queued in manual mode).
func (s *fakeStore) emit(rec Record) {
	s.mu.Lock()
	if s.manual {
		s.queue = append(s.queue, rec)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.publish(rec)
}

// deliver publishes every queued change in commit order.
func (s *fakeStore) deliver() {
	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, rec := range queue {
		s.publish(rec)
	}
}

func (s *fakeStore) publish(rec Record) {
	s.mu.Lock()
	var fns []ChangeFunc
	for i := 0; i < s.nextSub; i++ {
		if sub, ok := s.subs[i]; ok && sub.roomID == rec.RoomID {
			fns = append(fns, sub.fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(rec)
	}
}

func (s *fakeStore) subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *fakeStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

var errStoreDown = errors.New("store unavailable")

type fakeDisplay struct {
	mu     sync.Mutex
	frames int
}

func (d *fakeDisplay) Size() (int, int) { return 800, 600 }

func (d *fakeDisplay) Present(image.Image) error {
	d.mu.Lock()
	d.frames++
	d.mu.Unlock()
	return nil
}

func object(id string, pts ...surface.Point) surface.Object {
	if len(pts) == 0 {
		pts = []surface.Point{{X: 1, Y: 1}}
	}
	return surface.Object{
		ID: id, Kind: surface.KindPath, Points: pts,
		Style: surface.Style{Color: "#000000", Width: 2},
	}
}

func document(ids ...string) []byte {
	snap := surface.Snapshot{Width: 800, Height: 600, Background: "#ffffff"}
	for _, id := range ids {
		snap.Objects = append(snap.Objects, object(id))
	}
	doc, err := surface.Encode(snap, 0)
	if err != nil {
		panic(err)
	}
	return doc
}

func objectIDs(s *surface.Surface) []string {
	ids := []string{}
	for _, o := range s.Objects() {
		ids = append(ids, o.ID)
	}
	return ids
}
