package surface

import (
	"bytes"
	"image/color"
	"image/jpeg"
	"math"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultFontSize applies to text objects without a font size, in surface units.
const DefaultFontSize = 16

var (
	textFontOnce sync.Once
	textFont     *opentype.Font
	textFontErr  error
)

// textFace returns the Go regular face at size pixels.
func textFace(size float64) (font.Face, error) {
	textFontOnce.Do(func() {
		textFont, textFontErr = opentype.Parse(goregular.TTF)
	})
	if textFontErr != nil {
		return nil, errors.Wrap(textFontErr, "parsing text font")
	}
	return opentype.NewFace(textFont, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
}

type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatPDF  Format = "pdf"
)

var contentTypes = map[Format]string{
	FormatPNG:  "image/png",
	FormatJPEG: "image/jpeg",
	FormatPDF:  "application/pdf",
}

// ParseFormat accepts png, jpeg (or jpg) and pdf.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if f == "jpg" {
		f = FormatJPEG
	}
	if _, ok := contentTypes[f]; !ok {
		return "", errors.Wrapf(ErrUnsupportedFormat, "%q", s)
	}
	return f, nil
}

// NowFunc is mockable in tests.
var NowFunc = time.Now

// Export is a rendered surface ready for download.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

func exportFilename(f Format) string {
	ext := string(f)
	if f == FormatJPEG {
		ext = "jpg"
	}
	// colons are not welcome in file names
	ts := NowFunc().UTC().Format("2006-01-02T15-04-05Z")
	return "whiteboard-" + ts + "." + ext
}

// ToRasterExport renders the current state without mutating it.
func (s *Surface) ToRasterExport(format Format) (Export, error) {
	return RenderExport(s.Snapshot(), format)
}

// RenderExport renders a snapshot in the given format, at its logical size.
func RenderExport(snap Snapshot, format Format) (Export, error) {
	ct, ok := contentTypes[format]
	if !ok {
		return Export{}, errors.Wrapf(ErrUnsupportedFormat, "%q", format)
	}

	var buf bytes.Buffer
	switch format {
	case FormatPDF:
		if err := writePDF(&buf, snap); err != nil {
			return Export{}, errors.Wrap(err, "writing pdf")
		}
	default:
		dc := gg.NewContext(snap.Width, snap.Height)
		Paint(dc, snap)
		if format == FormatPNG {
			if err := dc.EncodePNG(&buf); err != nil {
				return Export{}, errors.Wrap(err, "encoding png")
			}
		} else {
			if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: 90}); err != nil {
				return Export{}, errors.Wrap(err, "encoding jpeg")
			}
		}
	}

	return Export{
		Filename:    exportFilename(format),
		ContentType: ct,
		Data:        buf.Bytes(),
	}, nil
}

// Paint draws snap onto dc, uniformly scaled to fit the context.
func Paint(dc *gg.Context, snap Snapshot) {
	scale := FitScale(snap.Width, snap.Height, dc.Width(), dc.Height())
	bg := mustParseColor(snap.Background, color.White)

	dc.SetColor(bg)
	dc.Clear()
	for _, obj := range snap.Objects {
		PaintObject(dc, obj, bg, scale)
	}
}

// FitScale returns the uniform scale that fits a w×h surface into a viewW×viewH view.
func FitScale(w, h, viewW, viewH int) float64 {
	if w <= 0 || h <= 0 {
		return 1
	}
	return math.Min(float64(viewW)/float64(w), float64(viewH)/float64(h))
}

// PaintObject draws a single object. Erasers are painted with the background color.
func PaintObject(dc *gg.Context, obj Object, bg color.Color, scale float64) {
	if len(obj.Points) == 0 {
		return
	}
	stroke := mustParseColor(obj.Style.Color, color.Black)
	if obj.IsEraser() {
		stroke = bg
	}
	width := obj.Style.Width * scale
	p0 := obj.Points[0]

	dc.SetLineWidth(width)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	switch obj.Kind {
	case KindPath:
		if len(obj.Points) == 1 { // a dot
			dc.DrawCircle(p0.X*scale, p0.Y*scale, width/2)
			dc.SetColor(stroke)
			dc.Fill()
			return
		}
		dc.MoveTo(p0.X*scale, p0.Y*scale)
		for _, p := range obj.Points[1:] {
			dc.LineTo(p.X*scale, p.Y*scale)
		}
		dc.SetColor(stroke)
		dc.Stroke()
	case KindLine:
		if len(obj.Points) < 2 {
			return
		}
		p1 := obj.Points[1]
		dc.DrawLine(p0.X*scale, p0.Y*scale, p1.X*scale, p1.Y*scale)
		dc.SetColor(stroke)
		dc.Stroke()
	case KindRect, KindEllipse:
		x, y, w, h := p0.X*scale, p0.Y*scale, obj.Width*scale, obj.Height*scale
		if obj.Kind == KindRect {
			dc.DrawRectangle(x, y, w, h)
		} else {
			dc.DrawEllipse(x+w/2, y+h/2, w/2, h/2)
		}
		if obj.Style.Fill != "" {
			fill := mustParseColor(obj.Style.Fill, stroke)
			if obj.IsEraser() {
				fill = bg
			}
			dc.SetColor(fill)
			dc.FillPreserve()
		}
		dc.SetColor(stroke)
		dc.Stroke()
	case KindText:
		size := obj.Style.FontSize
		if size <= 0 {
			size = DefaultFontSize
		}
		if face, err := textFace(size * scale); err == nil {
			dc.SetFontFace(face)
		}
		dc.SetColor(stroke)
		dc.DrawString(obj.Text, p0.X*scale, p0.Y*scale)
	}
}
