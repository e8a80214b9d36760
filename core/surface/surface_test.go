package surface

import (
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow   = time.Date(2021, 3, 14, 15, 9, 26, 0, time.UTC)
	testStyle = Style{Color: "#000000", Width: 2}
)

func newTestSurface() *Surface {
	return New(Config{Width: 400, Height: 300, Background: "#ffffff"})
}

func stroke(id string, pts ...Point) Object {
	return Object{ID: id, Kind: KindPath, Points: pts, Style: testStyle, CreatedAt: testNow}
}

func TestSurface_AddObject(t *testing.T) {
	tests := []struct {
		name    string
		obj     Object
		wantErr bool
	}{
		{name: "path", obj: stroke("a", Point{1, 1}, Point{2, 2})},
		{name: "single point path", obj: stroke("a", Point{1, 1})},
		{name: "empty path", obj: stroke("a"), wantErr: true},
		{name: "non-finite point", obj: stroke("a", Point{math.NaN(), 1}), wantErr: true},
		{name: "no id", obj: stroke("", Point{1, 1}), wantErr: true},
		{
			name: "line",
			obj:  Object{ID: "l", Kind: KindLine, Points: []Point{{0, 0}, {10, 10}}, Style: testStyle},
		},
		{
			name:    "zero length line",
			obj:     Object{ID: "l", Kind: KindLine, Points: []Point{{3, 3}, {3, 3}}, Style: testStyle},
			wantErr: true,
		},
		{
			name:    "line with one point",
			obj:     Object{ID: "l", Kind: KindLine, Points: []Point{{3, 3}}, Style: testStyle},
			wantErr: true,
		},
		{
			name: "rect",
			obj:  Object{ID: "r", Kind: KindRect, Points: []Point{{5, 5}}, Width: 10, Height: 4, Style: testStyle},
		},
		{
			name:    "flat rect",
			obj:     Object{ID: "r", Kind: KindRect, Points: []Point{{5, 5}}, Width: 10, Style: testStyle},
			wantErr: true,
		},
		{
			name:    "flat ellipse",
			obj:     Object{ID: "e", Kind: KindEllipse, Points: []Point{{5, 5}}, Height: 10, Style: testStyle},
			wantErr: true,
		},
		{
			name: "text",
			obj:  Object{ID: "t", Kind: KindText, Points: []Point{{5, 5}}, Text: "E=mc²", Style: testStyle},
		},
		{
			name:    "blank text",
			obj:     Object{ID: "t", Kind: KindText, Points: []Point{{5, 5}}, Text: "  ", Style: testStyle},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			obj:     Object{ID: "x", Kind: "star", Points: []Point{{5, 5}}, Style: testStyle},
			wantErr: true,
		},
		{
			name:    "invalid color",
			obj:     Object{ID: "a", Kind: KindPath, Points: []Point{{1, 1}}, Style: Style{Color: "#12345", Width: 1}},
			wantErr: true,
		},
		{
			name:    "zero width",
			obj:     Object{ID: "a", Kind: KindPath, Points: []Point{{1, 1}}, Style: Style{Color: "red"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSurface()
			err := s.AddObject(tt.obj)
			if tt.wantErr {
				assert.Equal(t, ErrInvalidGeometry, errors.Cause(err))
				assert.Equal(t, 0, s.Len())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, 1, s.Len())
			}
		})
	}
}

func TestSurface_AddObject_copiesGeometry(t *testing.T) {
	s := newTestSurface()
	obj := stroke("a", Point{1, 1}, Point{2, 2})
	require.NoError(t, s.AddObject(obj))

	obj.Points[0] = Point{99, 99}
	assert.Equal(t, Point{1, 1}, s.Objects()[0].Points[0])

	objs := s.Objects()
	objs[0].Points[1] = Point{42, 42}
	assert.Equal(t, Point{2, 2}, s.Objects()[0].Points[1])
}

func TestSurface_RemoveLast(t *testing.T) {
	s := newTestSurface()

	_, ok := s.RemoveLast()
	assert.False(t, ok, "undo on empty surface")
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.AddObject(stroke("a", Point{1, 1})))
	require.NoError(t, s.AddObject(stroke("b", Point{2, 2})))

	obj, ok := s.RemoveLast()
	assert.True(t, ok)
	assert.Equal(t, "b", obj.ID)
	assert.Equal(t, []string{"a"}, ids(s.Objects()))
}

func TestSurface_Clear(t *testing.T) {
	s := newTestSurface()
	var muts []MutationKind
	s.Observe(func(m Mutation) { muts = append(muts, m.Kind) })

	s.Clear() // no-op
	require.NoError(t, s.AddObject(stroke("a", Point{1, 1})))
	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, []MutationKind{MutationAdd, MutationClear}, muts)
}

func TestSurface_ReplaceAll_parkedDuringGesture(t *testing.T) {
	s := newTestSurface()
	require.NoError(t, s.AddObject(stroke("local-1", Point{1, 1})))

	var muts []MutationKind
	s.Observe(func(m Mutation) { muts = append(muts, m.Kind) })

	remote := Snapshot{Width: 400, Height: 300, Background: "#ffffff", Objects: []Object{stroke("remote-1", Point{3, 3})}}

	s.BeginGesture()
	assert.False(t, s.ReplaceAll(remote), "swap must be parked")
	assert.Equal(t, []string{"local-1"}, ids(s.Objects()))

	gestureObj := stroke("local-2", Point{4, 4}, Point{5, 5})
	require.NoError(t, s.EndGesture(&gestureObj))

	assert.False(t, s.InGesture())
	assert.Equal(t, []string{"remote-1", "local-2"}, ids(s.Objects()))
	assert.Equal(t, []MutationKind{MutationReplace, MutationAdd}, muts)
}

func TestSurface_EndGesture_invalidObjectStillAppliesParked(t *testing.T) {
	s := newTestSurface()
	remote := Snapshot{Width: 400, Height: 300, Background: "#ffffff", Objects: []Object{stroke("remote-1", Point{3, 3})}}

	s.BeginGesture()
	s.ReplaceAll(remote)
	bad := Object{ID: "l", Kind: KindLine, Points: []Point{{1, 1}, {1, 1}}, Style: testStyle}
	err := s.EndGesture(&bad)

	assert.Equal(t, ErrInvalidGeometry, errors.Cause(err))
	assert.Equal(t, []string{"remote-1"}, ids(s.Objects()))
}

func TestSurface_SerializeDeserialize(t *testing.T) {
	s := newTestSurface()
	require.NoError(t, s.AddObject(stroke("a", Point{1, 1}, Point{2, 3.5})))
	require.NoError(t, s.AddObject(Object{
		ID: "b", OwnerID: "prof", Kind: KindRect, Points: []Point{{10, 10}}, Width: 20, Height: 5,
		Style: Style{Color: "navy", Fill: "#fc0", Width: 1}, CreatedAt: testNow,
	}))
	require.NoError(t, s.AddObject(Object{
		ID: "c", Kind: KindPath, Points: []Point{{4, 4}, {6, 6}},
		Style: Style{Color: "#000", Width: 4}, Composite: CompositeErase, CreatedAt: testNow,
	}))

	doc, err := s.Serialize()
	require.NoError(t, err)

	other := New(Config{Width: 10, Height: 10})
	require.NoError(t, other.Deserialize(doc))
	assert.Equal(t, s.Snapshot(), other.Snapshot())

	doc2, err := other.Serialize()
	require.NoError(t, err)
	assert.JSONEq(t, string(doc), string(doc2))
}

func TestSurface_Deserialize_corrupt(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ""},
		{name: "not json", doc: "{lol"},
		{name: "unknown version", doc: `{"version":9,"width":10,"height":10,"background":"#fff","objects":[]}`},
		{name: "no dimensions", doc: `{"version":1,"background":"#fff","objects":[]}`},
		{name: "bad background", doc: `{"version":1,"width":10,"height":10,"background":"nope","objects":[]}`},
		{
			name: "degenerate object",
			doc: `{"version":1,"width":10,"height":10,"background":"#fff","objects":[
				{"id":"a","type":"line","points":[{"x":1,"y":1},{"x":1,"y":1}],"style":{"color":"#000","width":1}}]}`,
		},
		{
			name: "unknown kind",
			doc: `{"version":1,"width":10,"height":10,"background":"#fff","objects":[
				{"id":"a","type":"blob","points":[{"x":1,"y":1}],"style":{"color":"#000","width":1}}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSurface()
			require.NoError(t, s.AddObject(stroke("keep", Point{1, 1})))
			before := s.Snapshot()

			err := s.Deserialize([]byte(tt.doc))
			assert.Equal(t, ErrCorruptSnapshot, errors.Cause(err))
			assert.Equal(t, before, s.Snapshot(), "state must be untouched")
		})
	}
}

func TestSurface_Serialize_tooLarge(t *testing.T) {
	s := New(Config{Width: 100, Height: 100, MaxDocumentBytes: 512})
	pts := make([]Point, 100)
	for i := range pts {
		pts[i] = Point{float64(i), float64(i)}
	}
	require.NoError(t, s.AddObject(stroke("big", pts...)))

	_, err := s.Serialize()
	assert.Equal(t, ErrSnapshotTooLarge, errors.Cause(err))
}

func TestSurface_Observe(t *testing.T) {
	s := newTestSurface()

	var (
		mu   sync.Mutex
		seen []Mutation
	)
	cancel := s.Observe(func(m Mutation) {
		// the surface must not be locked while observers run
		_ = s.Len()
		mu.Lock()
		seen = append(seen, m)
		mu.Unlock()
	})

	require.NoError(t, s.AddObject(stroke("a", Point{1, 1})))
	s.RemoveLast()
	s.ReplaceAll(Snapshot{Width: 10, Height: 10, Background: "#fff"})
	cancel()
	cancel()
	require.NoError(t, s.AddObject(stroke("b", Point{1, 1})))

	require.Len(t, seen, 3)
	assert.Equal(t, MutationAdd, seen[0].Kind)
	assert.True(t, seen[0].IsLocal())
	assert.Equal(t, "a", seen[1].Object.ID)
	assert.Equal(t, MutationReplace, seen[2].Kind)
	assert.False(t, seen[2].IsLocal())
}

func TestNew_defaults(t *testing.T) {
	s := New(Config{Background: "not a color"})
	snap := s.Snapshot()
	assert.Equal(t, DefaultWidth, snap.Width)
	assert.Equal(t, DefaultHeight, snap.Height)
	assert.Equal(t, DefaultBackground, snap.Background)
	assert.NotNil(t, snap.Objects)
}

func TestParseColor(t *testing.T) {
	for _, c := range []string{"#000", "#FFFFFF", " Red ", "cornflowerblue"} {
		_, err := ParseColor(c)
		assert.NoError(t, err, c)
	}
	for _, c := range []string{"", "#", "#12", "#1234567", "#ggg", "reddish", strings.Repeat("a", 6)} {
		_, err := ParseColor(c)
		assert.Error(t, err, c)
	}
}

func ids(objs []Object) []string {
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.ID)
	}
	return out
}
