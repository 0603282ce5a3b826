package tabimage

import (
	"errors"
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/cbegin/tabplay-go/internal/tab"
)

const (
	cellW   = 14.0
	rowH    = 22.0
	margin  = 16.0
	labelW  = 24.0
	fontPt  = 14.0
	lineGap = rowH / 2
)

// MaxColumns is the widest tab Render accepts.
const MaxColumns = 2048

var ErrTooWide = errors.New("tab too wide to render")

// Render draws t as six string lines with fret numbers on them. The column
// of step highlight is shaded; pass -1 for none.
func Render(t *tab.Tab, highlight int) (image.Image, error) {
	if t.Width > MaxColumns {
		return nil, fmt.Errorf("%w: %d columns, limit %d", ErrTooWide, t.Width, MaxColumns)
	}
	font, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("tab image: %w", err)
	}
	w := int(margin*2 + labelW + cellW*float64(t.Width))
	h := int(margin*2 + rowH*tab.Strings)
	dc := gg.NewContext(w, h)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: fontPt}))

	dc.SetRGB(0.12, 0.13, 0.16)
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()

	if highlight >= 0 && highlight < len(t.Events) {
		x := margin + labelW + cellW*float64(t.Events[highlight].Position)
		dc.SetRGBA(0.23, 0.51, 0.96, 0.35)
		dc.DrawRectangle(x, margin, cellW, rowH*tab.Strings)
		dc.Fill()
	}

	for s := 0; s < tab.Strings; s++ {
		y := margin + rowH*float64(s) + lineGap
		dc.SetRGB(0.55, 0.58, 0.62)
		dc.SetLineWidth(1)
		dc.DrawLine(margin+labelW, y, float64(w)-margin, y)
		dc.Stroke()

		if label := t.Labels[s]; label != "" {
			dc.SetRGB(0.9, 0.9, 0.9)
			dc.DrawStringAnchored(label[:1], margin+labelW/2, y, 0.5, 0.35)
		}
	}

	for _, ev := range t.Events {
		x := margin + labelW + cellW*float64(ev.Position) + cellW/2
		for _, n := range ev.Notes {
			y := margin + rowH*float64(n.String) + lineGap
			dc.SetRGB(0.12, 0.13, 0.16)
			dc.DrawCircle(x, y, cellW/2)
			dc.Fill()
			dc.SetRGB(0.29, 0.87, 0.5)
			dc.DrawStringAnchored(fmt.Sprint(n.Fret), x, y, 0.5, 0.35)
		}
	}
	return dc.Image(), nil
}

// SavePNG renders t and writes it to path.
func SavePNG(path string, t *tab.Tab, highlight int) error {
	img, err := Render(t, highlight)
	if err != nil {
		return err
	}
	return gg.SavePNG(path, img)
}
