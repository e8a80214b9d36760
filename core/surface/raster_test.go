package surface

import (
	"bytes"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurface_ToRasterExport(t *testing.T) {
	NowFunc = func() time.Time { return testNow }
	defer func() { NowFunc = time.Now }()

	s := newTestSurface()
	require.NoError(t, s.AddObject(stroke("a", Point{10, 10}, Point{100, 100})))
	require.NoError(t, s.AddObject(Object{
		ID: "t", Kind: KindText, Points: []Point{{20, 40}}, Text: "hello", Style: Style{Color: "blue", Width: 1},
	}))
	before := s.Snapshot()

	tests := []struct {
		format   Format
		wantType string
		wantName string
	}{
		{FormatPNG, "image/png", "whiteboard-2021-03-14T15-09-26Z.png"},
		{FormatJPEG, "image/jpeg", "whiteboard-2021-03-14T15-09-26Z.jpg"},
		{FormatPDF, "application/pdf", "whiteboard-2021-03-14T15-09-26Z.pdf"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			exp, err := s.ToRasterExport(tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, exp.ContentType)
			assert.Equal(t, tt.wantName, exp.Filename)
			assert.NotEmpty(t, exp.Data)

			switch tt.format {
			case FormatPNG:
				img, err := png.Decode(bytes.NewReader(exp.Data))
				require.NoError(t, err)
				assert.Equal(t, 400, img.Bounds().Dx())
				assert.Equal(t, 300, img.Bounds().Dy())
			case FormatJPEG:
				_, err := jpeg.Decode(bytes.NewReader(exp.Data))
				require.NoError(t, err)
			case FormatPDF:
				assert.True(t, bytes.HasPrefix(exp.Data, []byte("%PDF-")))
			}
		})
	}
	assert.Equal(t, before, s.Snapshot(), "export must not mutate the surface")

	_, err := s.ToRasterExport("gif")
	assert.Equal(t, ErrUnsupportedFormat, errors.Cause(err))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("jpg")
	assert.NoError(t, err)
	assert.Equal(t, FormatJPEG, f)

	_, err = ParseFormat("bmp")
	assert.Equal(t, ErrUnsupportedFormat, errors.Cause(err))
}

func TestPaint_eraserUsesBackground(t *testing.T) {
	snap := Snapshot{
		Width: 20, Height: 20, Background: "#ffffff",
		Objects: []Object{
			{ID: "ink", Kind: KindRect, Points: []Point{{0, 0}}, Width: 20, Height: 20, Style: Style{Color: "#000", Fill: "#000", Width: 1}},
			{ID: "erase", Kind: KindPath, Points: []Point{{10, 10}}, Style: Style{Color: "#000", Width: 8}, Composite: CompositeErase},
		},
	}
	dc := gg.NewContext(20, 20)
	Paint(dc, snap)

	r, g, b, _ := dc.Image().At(10, 10).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b}, "erased pixel shows background")
	r, g, b, _ = dc.Image().At(2, 2).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0}, [3]uint32{r, g, b}, "ink kept outside the eraser")
}

func TestPaint_scalesToContext(t *testing.T) {
	snap := Snapshot{
		Width: 100, Height: 50, Background: "black",
		Objects: []Object{
			{ID: "r", Kind: KindRect, Points: []Point{{50, 0}}, Width: 50, Height: 50, Style: Style{Color: "white", Fill: "white", Width: 1}},
		},
	}
	dc := gg.NewContext(200, 100)
	Paint(dc, snap)

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, color.RGBAModel.Convert(dc.Image().At(150, 50)))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, color.RGBAModel.Convert(dc.Image().At(50, 50)))
}

func TestFitScale(t *testing.T) {
	assert.Equal(t, 0.5, FitScale(800, 600, 400, 600))
	assert.Equal(t, 2.0, FitScale(100, 100, 300, 200))
	assert.Equal(t, 1.0, FitScale(0, 100, 300, 200))
}

// inkHeight returns the number of rows holding at least one non-white pixel.
func inkHeight(dc *gg.Context) int {
	img := dc.Image()
	rows := 0
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r < 0x8000 {
				rows++
				break
			}
		}
	}
	return rows
}

func TestPaintObject_textUsesFontSize(t *testing.T) {
	draw := func(size, scale float64) int {
		dc := gg.NewContext(400, 200)
		dc.SetColor(color.White)
		dc.Clear()
		PaintObject(dc, Object{
			ID: "t", Kind: KindText, Points: []Point{{X: 10, Y: 150 / scale}}, Text: "Hello",
			Style: Style{Color: "#000000", Width: 1, FontSize: size},
		}, color.White, scale)
		return inkHeight(dc)
	}

	small, large := draw(12, 1), draw(48, 1)
	require.Greater(t, small, 0)
	assert.Greater(t, large, 3*small)
	assert.InDelta(t, large, draw(12, 4), 2, "the face follows the view scale")
	assert.InDelta(t, draw(DefaultFontSize, 1), draw(0, 1), 0, "missing size falls back to the default")
}
