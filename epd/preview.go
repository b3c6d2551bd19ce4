package epd

import (
	"image"
	"image/color"
	"log"

	"github.com/disintegration/imaging"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Preview is a Driver without hardware. Every frame that would reach the
// panel is written to a PNG file instead, which makes it possible to run
// the countdown on a desktop.
type Preview struct {
	Path string
	// Logical size, short side first like the vendor drivers.
	W, H int

	mode Mode
}

// NewPreview returns a Preview sized like the 2.13" V2 panel.
func NewPreview(path string) *Preview {
	return &Preview{Path: path, W: 122, H: 250}
}

func (p *Preview) Width() int  { return p.W }
func (p *Preview) Height() int { return p.H }

func (p *Preview) bounds() image.Rectangle {
	// Frames are kept landscape so the file reads the right way up.
	return image.Rect(0, 0, p.H, p.W)
}

func (p *Preview) Init(mode Mode) error {
	p.mode = mode
	log.Printf("preview: init %s", mode)
	return nil
}

func (p *Preview) Clear(c color.Color) error {
	return p.save(fill(p.bounds(), c))
}

func (p *Preview) Buffer(img image.Image) *image1bit.VerticalLSB {
	return toFrame(img, p.bounds())
}

func (p *Preview) Display(frame *image1bit.VerticalLSB) error {
	return p.save(frame)
}

func (p *Preview) DisplayPartBaseImage(frame *image1bit.VerticalLSB) error {
	return p.save(frame)
}

func (p *Preview) DisplayPartial(frame *image1bit.VerticalLSB) error {
	return p.save(frame)
}

func (p *Preview) Sleep() error { return nil }
func (p *Preview) Close() error { return nil }

func (p *Preview) save(frame image.Image) error {
	if p.Path == "" {
		return nil
	}
	return imaging.Save(frame, p.Path)
}
