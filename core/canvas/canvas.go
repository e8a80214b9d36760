// Package canvas turns pointer input into surface objects and renders a surface onto a display.
package canvas

import (
	"image"
	"math"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-board/core"
	"github.com/trezcool/masomo-board/core/surface"
)

var (
	ErrInitializationFailed = errors.New("canvas initialization failed")
	ErrInvalidStyle         = errors.New("invalid style")
)

const (
	MinBrushWidth = 1
	MaxBrushWidth = 20
)

// mockable in tests
var (
	nowFunc = time.Now
	newID   = uuid.NewString
)

// Display is where rendered frames go (a window, a browser canvas, an image sink).
type Display interface {
	// Size of the container, in view pixels.
	Size() (w, h int)
	Present(img image.Image) error
}

type Mode string

const (
	ModeDraw  Mode = "draw"
	ModeErase Mode = "erase"
)

type Tool string

const (
	ToolPath    Tool = "path"
	ToolLine    Tool = "line"
	ToolRect    Tool = "rect"
	ToolEllipse Tool = "ellipse"
)

type Options struct {
	OwnerID    string
	Color      string  // default: black
	BrushWidth float64 // default: 2
	OnError    func(error)
}

// Adapter binds one surface to one display.
type Adapter struct {
	surface *surface.Surface
	display Display
	ownerID string
	onError func(error)

	mu      sync.Mutex
	viewW   int
	viewH   int
	scale   float64
	mode    Mode
	tool    Tool
	color   string
	width   float64
	drawing bool
	points  []surface.Point // in-progress gesture, in surface coordinates

	stopObserving func()
}

// New renders the surface once and starts re-rendering on every surface mutation.
func New(surf *surface.Surface, display Display, opts Options) (*Adapter, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(surf, "surface"),
		core.IsSet(display, "display"),
	).Check(); err != nil {
		return nil, errors.Wrap(ErrInitializationFailed, err.Error())
	}

	w, h := display.Size()
	if w <= 0 || h <= 0 {
		return nil, errors.Wrapf(ErrInitializationFailed, "display size %dx%d", w, h)
	}

	if opts.Color == "" {
		opts.Color = "#000000"
	}
	if _, err := surface.ParseColor(opts.Color); err != nil {
		return nil, errors.Wrapf(ErrInitializationFailed, "brush color %q", opts.Color)
	}
	if opts.BrushWidth == 0 {
		opts.BrushWidth = 2
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}

	sw, sh := surf.Size()
	a := &Adapter{
		surface: surf,
		display: display,
		ownerID: opts.OwnerID,
		onError: opts.OnError,
		viewW:   w,
		viewH:   h,
		scale:   surface.FitScale(sw, sh, w, h),
		mode:    ModeDraw,
		tool:    ToolPath,
		color:   opts.Color,
		width:   clampWidth(opts.BrushWidth),
	}

	if err := a.Render(); err != nil {
		return nil, errors.Wrap(ErrInitializationFailed, err.Error())
	}
	a.stopObserving = surf.Observe(func(m surface.Mutation) {
		if m.Kind == surface.MutationReplace { // a remote snapshot may change the surface size
			a.refit()
		}
		if err := a.Render(); err != nil {
			a.onError(err)
		}
	})
	return a, nil
}

// Close stops rendering surface mutations.
func (a *Adapter) Close() {
	a.stopObserving()
}

func (a *Adapter) SetMode(m Mode) {
	if m != ModeDraw && m != ModeErase {
		return
	}
	a.mu.Lock()
	a.mode = m
	a.mu.Unlock()
}

func (a *Adapter) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *Adapter) SetTool(t Tool) {
	switch t {
	case ToolPath, ToolLine, ToolRect, ToolEllipse:
		a.mu.Lock()
		a.tool = t
		a.mu.Unlock()
	}
}

func (a *Adapter) Tool() Tool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tool
}

func (a *Adapter) SetColor(c string) error {
	if _, err := surface.ParseColor(c); err != nil {
		return errors.Wrapf(ErrInvalidStyle, "color %q", c)
	}
	a.mu.Lock()
	a.color = c
	a.mu.Unlock()
	return nil
}

// SetBrushWidth sets the ink width, clamped to [MinBrushWidth, MaxBrushWidth].
func (a *Adapter) SetBrushWidth(w float64) {
	a.mu.Lock()
	a.width = clampWidth(w)
	a.mu.Unlock()
}

func (a *Adapter) BrushWidth() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.width
}

func clampWidth(w float64) float64 {
	if math.IsNaN(w) {
		return MinBrushWidth
	}
	return math.Max(MinBrushWidth, math.Min(MaxBrushWidth, w))
}

// Undo removes the most recently committed object of the surface.
func (a *Adapter) Undo() bool {
	_, ok := a.surface.RemoveLast()
	return ok
}

// Resize rescales the view uniformly (preserving the surface aspect ratio) and re-renders.
// Surface geometry is never touched.
func (a *Adapter) Resize(w, h int) error {
	if w <= 0 || h <= 0 {
		return nil // minimized
	}
	a.mu.Lock()
	a.viewW, a.viewH = w, h
	a.mu.Unlock()
	a.refit()
	return a.Render()
}

// refit recomputes the view scale from the current surface and view sizes.
func (a *Adapter) refit() {
	sw, sh := a.surface.Size()
	a.mu.Lock()
	a.scale = surface.FitScale(sw, sh, a.viewW, a.viewH)
	a.mu.Unlock()
}

// Scale returns the current view/surface scale.
func (a *Adapter) Scale() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scale
}

// Render draws the surface and the in-progress gesture, then presents the frame.
func (a *Adapter) Render() error {
	img := a.frame()
	return errors.Wrap(a.display.Present(img), "presenting frame")
}

func (a *Adapter) frame() image.Image {
	snap := a.surface.Snapshot()

	a.mu.Lock()
	w, h := a.viewW, a.viewH
	var preview *surface.Object
	if a.drawing {
		obj := a.buildObject()
		preview = &obj
	}
	a.mu.Unlock()

	dc := gg.NewContext(w, h)
	surface.Paint(dc, snap)
	if preview != nil {
		bg, _ := surface.ParseColor(snap.Background)
		surface.PaintObject(dc, *preview, bg, surface.FitScale(snap.Width, snap.Height, w, h))
	}
	return dc.Image()
}

// Export renders the surface at its logical size. It never touches synchronization.
func (a *Adapter) Export(format surface.Format) (surface.Export, error) {
	return a.surface.ToRasterExport(format)
}
