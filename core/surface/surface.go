package surface

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var (
	ErrInvalidGeometry   = errors.New("invalid geometry")
	ErrCorruptSnapshot   = errors.New("corrupt snapshot")
	ErrSnapshotTooLarge  = errors.New("snapshot too large")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

const (
	DefaultWidth      = 800
	DefaultHeight     = 600
	DefaultBackground = "#ffffff"
)

type Config struct {
	Width            int
	Height           int
	Background       string
	MaxDocumentBytes int                 // 0: unbounded
	Validate         *validator.Validate // optional
}

// Surface is the authoritative, ordered list of drawn objects of one room.
// All methods are safe for concurrent use.
type Surface struct {
	mu       sync.RWMutex
	snap     Snapshot
	validate *validator.Validate
	maxBytes int

	gesture bool
	parked  *Snapshot // remote snapshot received during a gesture

	obsMu     sync.Mutex
	observers map[int]func(Mutation)
	nextObsID int
}

func New(conf Config) *Surface {
	if conf.Width <= 0 || conf.Height <= 0 {
		conf.Width, conf.Height = DefaultWidth, DefaultHeight
	}
	if _, err := ParseColor(conf.Background); err != nil {
		conf.Background = DefaultBackground
	}
	if conf.Validate == nil {
		conf.Validate = NewValidator()
	}
	return &Surface{
		snap: Snapshot{
			Version:    DocumentVersion,
			Width:      conf.Width,
			Height:     conf.Height,
			Background: conf.Background,
			Objects:    []Object{},
		},
		validate:  conf.Validate,
		maxBytes:  conf.MaxDocumentBytes,
		observers: make(map[int]func(Mutation)),
	}
}

// Validate checks an object without committing it.
func (s *Surface) Validate(obj Object) error {
	if err := s.validate.Struct(obj); err != nil {
		return errors.Wrap(ErrInvalidGeometry, err.Error())
	}
	if reason := obj.degenerate(); reason != "" {
		return errors.Wrap(ErrInvalidGeometry, reason)
	}
	return nil
}

// AddObject appends an object at the top of the z-order.
func (s *Surface) AddObject(obj Object) error {
	if err := s.Validate(obj); err != nil {
		return err
	}
	obj = obj.clone()

	s.mu.Lock()
	s.snap.Objects = append(s.snap.Objects, obj)
	s.mu.Unlock()

	s.notify(Mutation{Kind: MutationAdd, Object: obj.clone()})
	return nil
}

// RemoveLast removes the most recently added object. It is a no-op on an empty surface.
func (s *Surface) RemoveLast() (Object, bool) {
	s.mu.Lock()
	n := len(s.snap.Objects)
	if n == 0 {
		s.mu.Unlock()
		return Object{}, false
	}
	obj := s.snap.Objects[n-1]
	s.snap.Objects[n-1] = Object{}
	s.snap.Objects = s.snap.Objects[:n-1]
	s.mu.Unlock()

	s.notify(Mutation{Kind: MutationRemove, Object: obj.clone()})
	return obj, true
}

// Clear removes every object. Clearing an empty surface is a no-op.
func (s *Surface) Clear() {
	s.mu.Lock()
	if len(s.snap.Objects) == 0 {
		s.mu.Unlock()
		return
	}
	s.snap.Objects = []Object{}
	s.mu.Unlock()

	s.notify(Mutation{Kind: MutationClear})
}

// ReplaceAll swaps the whole surface content with snap.
// While a gesture is in progress the swap is parked until EndGesture; it returns false in that case.
func (s *Surface) ReplaceAll(snap Snapshot) bool {
	snap = snap.clone()
	snap.Version = DocumentVersion

	s.mu.Lock()
	if s.gesture {
		s.parked = &snap
		s.mu.Unlock()
		return false
	}
	s.snap = snap
	s.mu.Unlock()

	s.notify(Mutation{Kind: MutationReplace})
	return true
}

// BeginGesture marks the start of a local gesture. Remote snapshots are parked until it ends.
func (s *Surface) BeginGesture() {
	s.mu.Lock()
	s.gesture = true
	s.mu.Unlock()
}

// EndGesture applies any parked snapshot, then commits obj (if not nil) on top of it.
func (s *Surface) EndGesture(obj *Object) error {
	var err error
	if obj != nil {
		err = s.Validate(*obj)
	}

	var muts []Mutation
	s.mu.Lock()
	s.gesture = false
	if s.parked != nil {
		s.snap = *s.parked
		s.parked = nil
		muts = append(muts, Mutation{Kind: MutationReplace})
	}
	if obj != nil && err == nil {
		o := obj.clone()
		s.snap.Objects = append(s.snap.Objects, o)
		muts = append(muts, Mutation{Kind: MutationAdd, Object: o.clone()})
	}
	s.mu.Unlock()

	for _, m := range muts {
		s.notify(m)
	}
	return err
}

// InGesture reports whether a local gesture is in progress.
func (s *Surface) InGesture() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gesture
}

// Serialize returns the document form of the current state.
func (s *Surface) Serialize() ([]byte, error) {
	return Encode(s.Snapshot(), s.maxBytes)
}

// Deserialize replaces the surface content with a document. The state is untouched on failure.
func (s *Surface) Deserialize(doc []byte) error {
	snap, err := Decode(doc, s.validate)
	if err != nil {
		return err
	}
	s.ReplaceAll(snap)
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Surface) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

func (s *Surface) Objects() []Object {
	return s.Snapshot().Objects
}

func (s *Surface) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snap.Objects)
}

// Size returns the logical surface dimensions.
func (s *Surface) Size() (w, h int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Width, s.snap.Height
}

// Observe registers fn to be called after every mutation. Calling the returned func unregisters it.
func (s *Surface) Observe(fn func(Mutation)) (cancel func()) {
	s.obsMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

func (s *Surface) notify(m Mutation) {
	s.obsMu.Lock()
	fns := make([]func(Mutation), 0, len(s.observers))
	for i := 0; i < s.nextObsID; i++ { // registration order
		if fn, ok := s.observers[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(m)
	}
}
