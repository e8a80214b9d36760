package surface

import (
	"image/color"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// writePDF draws the snapshot as vector graphics on a single page of the surface size (1 unit = 1pt).
func writePDF(w io.Writer, snap Snapshot) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: float64(snap.Width), Ht: float64(snap.Height)},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Whiteboard", true)
	pdf.AddPage()

	bg := mustParseColor(snap.Background, color.White)
	pdf.SetFillColor(rgb(bg))
	pdf.Rect(0, 0, float64(snap.Width), float64(snap.Height), "F")

	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")
	for _, obj := range snap.Objects {
		pdfObject(pdf, obj, bg)
	}

	return pdf.Output(w)
}

func pdfObject(pdf *gofpdf.Fpdf, obj Object, bg color.Color) {
	if len(obj.Points) == 0 {
		return
	}
	stroke := mustParseColor(obj.Style.Color, color.Black)
	if obj.IsEraser() {
		stroke = bg
	}
	pdf.SetDrawColor(rgb(stroke))
	pdf.SetFillColor(rgb(stroke))
	pdf.SetLineWidth(obj.Style.Width)
	p0 := obj.Points[0]

	switch obj.Kind {
	case KindPath:
		if len(obj.Points) == 1 {
			pdf.Circle(p0.X, p0.Y, obj.Style.Width/2, "F")
			return
		}
		pdf.MoveTo(p0.X, p0.Y)
		for _, p := range obj.Points[1:] {
			pdf.LineTo(p.X, p.Y)
		}
		pdf.DrawPath("D")
	case KindLine:
		if len(obj.Points) < 2 {
			return
		}
		pdf.Line(p0.X, p0.Y, obj.Points[1].X, obj.Points[1].Y)
	case KindRect, KindEllipse:
		style := "D"
		if obj.Style.Fill != "" {
			fill := mustParseColor(obj.Style.Fill, stroke)
			if obj.IsEraser() {
				fill = bg
			}
			pdf.SetFillColor(rgb(fill))
			style = "FD"
		}
		if obj.Kind == KindRect {
			pdf.Rect(p0.X, p0.Y, obj.Width, obj.Height, style)
		} else {
			pdf.Ellipse(p0.X+obj.Width/2, p0.Y+obj.Height/2, obj.Width/2, obj.Height/2, 0, style)
		}
	case KindText:
		size := obj.Style.FontSize
		if size <= 0 {
			size = DefaultFontSize
		}
		pdf.SetFont("Helvetica", "", size)
		pdf.SetTextColor(rgb(stroke))
		pdf.Text(p0.X, p0.Y, obj.Text)
	}
}

func rgb(c color.Color) (r, g, b int) {
	cr, cg, cb, _ := c.RGBA()
	return int(cr >> 8), int(cg >> 8), int(cb >> 8)
}
