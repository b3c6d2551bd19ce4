// Package render draws the countdown screens.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

const (
	Title       = "PI DAY!"
	Header      = "Days till Pi-day:"
	Celebration = "It's Pi Day!"

	SmallSize = 36
	LargeSize = 64
)

// Layout places the screen elements. Positions are the top left corner
// of the text or image.
type Layout struct {
	Title       image.Point
	Bitmap      image.Point
	Header      image.Point
	Count       image.Point
	Celebration image.Point
	// WipeTop is where the region redrawn on every update starts.
	WipeTop int
}

// Reference is the layout of the 250x122 landscape canvas of the 2.13"
// panel.
var Reference = Layout{
	Title:       image.Pt(0, 30),
	Bitmap:      image.Pt(150, 2),
	Header:      image.Pt(10, 10),
	Count:       image.Pt(70, 50),
	Celebration: image.Pt(0, 50),
	WipeTop:     50,
}

// ReferenceSize is the canvas size Reference is laid out for.
var ReferenceSize = image.Pt(250, 122)

// margin is kept clear at the right edge when text is pulled in.
const margin = 2

// LayoutFor scales Reference to a canvas with bounds b.
func LayoutFor(b image.Rectangle) Layout {
	pt := func(p image.Point) image.Point {
		return image.Pt(
			b.Min.X+p.X*b.Dx()/ReferenceSize.X,
			b.Min.Y+p.Y*b.Dy()/ReferenceSize.Y,
		)
	}
	return Layout{
		Title:       pt(Reference.Title),
		Bitmap:      pt(Reference.Bitmap),
		Header:      pt(Reference.Header),
		Count:       pt(Reference.Count),
		Celebration: pt(Reference.Celebration),
		WipeTop:     Reference.WipeTop * b.Dy() / ReferenceSize.Y,
	}
}

// Assets are loaded once at startup.
type Assets struct {
	Small  font.Face
	Large  font.Face
	Bitmap image.Image
}

// LoadAssets reads the font and the bitmap from dir.
func LoadAssets(dir, fontFile, imageFile string) (*Assets, error) {
	fontPath := filepath.Join(dir, fontFile)
	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	imagePath := filepath.Join(dir, imageFile)
	bmp, err := imaging.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	a, err := ParseAssets(data, bmp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fontPath, err)
	}
	return a, nil
}

// ParseAssets builds the two font sizes from TrueType or OpenType data.
func ParseAssets(fontData []byte, bitmap image.Image) (*Assets, error) {
	f, err := opentype.Parse(fontData)
	if err != nil {
		return nil, err
	}
	small, err := newFace(f, SmallSize)
	if err != nil {
		return nil, err
	}
	large, err := newFace(f, LargeSize)
	if err != nil {
		return nil, err
	}
	return &Assets{Small: small, Large: large, Bitmap: bitmap}, nil
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	// At 72 DPI a point is a pixel, so size is the em height in pixels.
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Text draws s in black with its top left corner at pt.
func Text(dst draw.Image, face font.Face, pt image.Point, s string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  &image.Uniform{image1bit.Off},
		Face: face,
		Dot:  fixed.P(pt.X, pt.Y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}

// fitText draws s with the first of faces that fits across dst, pulled
// left from pt if it would run off the right edge.
func fitText(dst draw.Image, pt image.Point, s string, faces ...font.Face) {
	b := dst.Bounds()
	right := b.Max.X - margin
	face := faces[len(faces)-1]
	for _, f := range faces {
		if font.MeasureString(f, s).Ceil() <= right-b.Min.X {
			face = f
			break
		}
	}
	if w := font.MeasureString(face, s).Ceil(); pt.X+w > right {
		pt.X = max(b.Min.X, right-w)
	}
	Text(dst, face, pt, s)
}

// Splash composes the title screen: the title in the large face and the
// bitmap beside it, on white.
func Splash(size image.Point, a *Assets) image.Image {
	l := LayoutFor(image.Rectangle{Max: size})
	dc := gg.NewContext(size.X, size.Y)
	dc.SetColor(color.White)
	dc.Clear()

	dc.SetFontFace(a.Large)
	dc.SetColor(color.Black)
	ascent := a.Large.Metrics().Ascent.Ceil()
	dc.DrawString(Title, float64(l.Title.X), float64(l.Title.Y+ascent))

	if a.Bitmap != nil {
		dc.DrawImage(a.Bitmap, l.Bitmap.X, l.Bitmap.Y)
	}
	return dc.Image()
}

// Wipe paints the lower, per-update region of canvas white.
func Wipe(canvas draw.Image) {
	b := canvas.Bounds()
	r := image.Rect(b.Min.X, b.Min.Y+LayoutFor(b).WipeTop, b.Max.X, b.Max.Y)
	draw.Draw(canvas, r, &image.Uniform{image1bit.On}, image.Point{}, draw.Src)
}

// Countdown redraws canvas for days remaining with the given unit. Text
// too wide for the canvas drops to the small face.
func Countdown(canvas draw.Image, a *Assets, days int, unit string) {
	l := LayoutFor(canvas.Bounds())
	Wipe(canvas)
	fitText(canvas, l.Header, Header, a.Small)
	if days == 0 {
		fitText(canvas, l.Celebration, Celebration, a.Large, a.Small)
		return
	}
	fitText(canvas, l.Count, CountText(days, unit), a.Large, a.Small)
}

// CountText is the line shown under the header, eg "3 days".
func CountText(days int, unit string) string {
	return fmt.Sprintf("%d %s", days, unit)
}
