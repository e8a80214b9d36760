package canvas

import (
	"math"

	"github.com/trezcool/masomo-board/core/surface"
)

// PointerDown starts a gesture at view coordinates (x, y). It is ignored while a gesture is in progress.
func (a *Adapter) PointerDown(x, y float64) {
	a.mu.Lock()
	if a.drawing {
		a.mu.Unlock()
		return
	}
	a.drawing = true
	a.points = []surface.Point{a.toSurface(x, y)}
	a.mu.Unlock()

	a.surface.BeginGesture()
	a.renderOrReport()
}

// PointerMove records every sample, repeated positions included.
func (a *Adapter) PointerMove(x, y float64) {
	if !a.capture(x, y, false) {
		return
	}
	a.renderOrReport()
}

// PointerUp captures the release point, unless it repeats the last sample, and commits the gesture.
func (a *Adapter) PointerUp(x, y float64) error {
	a.capture(x, y, true)
	return a.finish()
}

// PointerCancel commits the gesture with the geometry captured so far (pointer left the view, touch cancelled).
func (a *Adapter) PointerCancel() error {
	return a.finish()
}

// Drawing reports whether a gesture is in progress.
func (a *Adapter) Drawing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.drawing
}

func (a *Adapter) capture(x, y float64, skipRepeat bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.drawing {
		return false
	}
	p := a.toSurface(x, y)
	if skipRepeat && p == a.points[len(a.points)-1] {
		return false
	}
	a.points = append(a.points, p)
	return true
}

func (a *Adapter) finish() error {
	a.mu.Lock()
	if !a.drawing {
		a.mu.Unlock()
		return nil
	}
	obj := a.buildObject()
	obj.ID = newID()
	obj.CreatedAt = nowFunc().UTC()
	a.drawing = false
	a.points = nil
	a.mu.Unlock()

	// the surface re-renders through our observer
	return a.surface.EndGesture(&obj)
}

// buildObject turns the captured points into an object of the current tool. a.mu must be held.
func (a *Adapter) buildObject() surface.Object {
	obj := surface.Object{
		OwnerID: a.ownerID,
		Style:   surface.Style{Color: a.color, Width: a.width},
	}
	if a.mode == ModeErase {
		obj.Composite = surface.CompositeErase
		obj.Style.Width = a.width * 2
	}

	first, last := a.points[0], a.points[len(a.points)-1]
	tool := a.tool
	if a.mode == ModeErase {
		tool = ToolPath
	}
	switch tool {
	case ToolLine:
		obj.Kind = surface.KindLine
		obj.Points = []surface.Point{first, last}
	case ToolRect, ToolEllipse:
		obj.Kind = surface.KindRect
		if tool == ToolEllipse {
			obj.Kind = surface.KindEllipse
		}
		obj.Points = []surface.Point{{X: math.Min(first.X, last.X), Y: math.Min(first.Y, last.Y)}}
		obj.Width = math.Abs(last.X - first.X)
		obj.Height = math.Abs(last.Y - first.Y)
	default:
		obj.Kind = surface.KindPath
		obj.Points = make([]surface.Point, len(a.points))
		copy(obj.Points, a.points)
	}
	return obj
}

// toSurface converts view coordinates to surface coordinates. a.mu must be held.
func (a *Adapter) toSurface(x, y float64) surface.Point {
	if a.scale <= 0 {
		return surface.Point{X: x, Y: y}
	}
	return surface.Point{X: x / a.scale, Y: y / a.scale}
}

func (a *Adapter) renderOrReport() {
	if err := a.Render(); err != nil {
		a.onError(err)
	}
}
