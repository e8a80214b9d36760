package surface

import (
	"math"
	"strings"
	"time"
)

// DocumentVersion is the version of the serialized document form.
const DocumentVersion = 1

// Kind of drawable object.
type Kind string

const (
	KindPath    Kind = "path" // freehand
	KindLine    Kind = "line"
	KindRect    Kind = "rect"
	KindEllipse Kind = "ellipse"
	KindText    Kind = "text"
)

var Kinds = []Kind{KindPath, KindLine, KindRect, KindEllipse, KindText}

func (k Kind) Valid() bool {
	for _, kind := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Composite tells how an object is combined with the content under it.
type Composite string

const (
	CompositeInk   Composite = "source-over"
	CompositeErase Composite = "destination-out" // masks underlying content
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) finite() bool {
	return !(math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0))
}

type Style struct {
	Color    string  `json:"color" validate:"required,color"`
	Fill     string  `json:"fill,omitempty" validate:"omitempty,color"`
	Width    float64 `json:"width" validate:"gt=0,lte=200"`
	FontSize float64 `json:"font_size,omitempty" validate:"omitempty,gt=0,lte=500"`
}

// Object is one drawable primitive committed to a surface.
// Rects, ellipses and texts are anchored at Points[0]; lines use Points[0] and Points[1].
type Object struct {
	ID        string    `json:"id" validate:"required,max=64"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Kind      Kind      `json:"type" validate:"required,objectkind"`
	Points    []Point   `json:"points"`
	Width     float64   `json:"width,omitempty"`
	Height    float64   `json:"height,omitempty"`
	Text      string    `json:"text,omitempty" validate:"max=2000"`
	Style     Style     `json:"style"`
	Composite Composite `json:"composite,omitempty" validate:"omitempty,composite"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

func (o Object) IsEraser() bool { return o.Composite == CompositeErase }

// degenerate returns why the object's geometry cannot be drawn, or "" if it can.
func (o Object) degenerate() string {
	for _, p := range o.Points {
		if !p.finite() {
			return "non-finite point"
		}
	}
	switch o.Kind {
	case KindPath:
		if len(o.Points) == 0 {
			return "path has no points"
		}
	case KindLine:
		if len(o.Points) != 2 {
			return "line needs exactly 2 points"
		}
		if o.Points[0] == o.Points[1] {
			return "line has zero length"
		}
	case KindRect, KindEllipse:
		if len(o.Points) != 1 {
			return string(o.Kind) + " needs exactly 1 anchor point"
		}
		if !(o.Width > 0 && o.Height > 0) {
			return string(o.Kind) + " has zero area"
		}
	case KindText:
		if len(o.Points) != 1 {
			return "text needs exactly 1 anchor point"
		}
		if strings.TrimSpace(o.Text) == "" {
			return "text is empty"
		}
	}
	return ""
}

// clone deep copies the object so callers can never alias committed geometry.
func (o Object) clone() Object {
	if o.Points != nil {
		pts := make([]Point, len(o.Points))
		copy(pts, o.Points)
		o.Points = pts
	}
	return o
}

// Snapshot is the complete state of a surface at one instant.
type Snapshot struct {
	Version    int      `json:"version"`
	Width      int      `json:"width" validate:"gt=0,lte=10000"`
	Height     int      `json:"height" validate:"gt=0,lte=10000"`
	Background string   `json:"background" validate:"required,color"`
	Objects    []Object `json:"objects" validate:"dive"`
}

func (s Snapshot) clone() Snapshot {
	objs := make([]Object, len(s.Objects))
	for i, o := range s.Objects {
		objs[i] = o.clone()
	}
	s.Objects = objs
	return s
}

// MutationKind tells what happened to a surface.
type MutationKind string

const (
	MutationAdd     MutationKind = "add"
	MutationRemove  MutationKind = "remove"
	MutationClear   MutationKind = "clear"
	MutationReplace MutationKind = "replace" // remote snapshot applied
)

// Mutation is delivered to surface observers after every change.
type Mutation struct {
	Kind   MutationKind
	Object Object // added or removed object; zero for clear & replace
}

// IsLocal reports whether the mutation came from local editing (as opposed to a remote snapshot).
func (m Mutation) IsLocal() bool { return m.Kind != MutationReplace }
