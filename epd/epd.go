package epd

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/MaxHalford/halfgone"
	"github.com/disintegration/imaging"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Mode selects how the panel refreshes.
type Mode int

const (
	// FullUpdate redraws the whole panel. Slow, but clears ghosting.
	FullUpdate Mode = iota
	// PartUpdate redraws only what changed against the base image.
	PartUpdate
)

func (m Mode) String() string {
	switch m {
	case FullUpdate:
		return "full"
	case PartUpdate:
		return "partial"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ErrBusyTimeout is returned when the panel never releases its busy line.
var ErrBusyTimeout = errors.New("epd: timed out waiting for busy pin")

// Driver is everything the countdown needs from an e-paper panel.
//
// Width is the short side of the panel and Height the long side, as the
// vendor libraries report them. Canvases are drawn Height wide and Width
// tall; Buffer rotates them to the panel's own orientation.
type Driver interface {
	Init(mode Mode) error
	Clear(c color.Color) error
	Buffer(img image.Image) *image1bit.VerticalLSB
	Display(frame *image1bit.VerticalLSB) error
	DisplayPartBaseImage(frame *image1bit.VerticalLSB) error
	DisplayPartial(frame *image1bit.VerticalLSB) error
	// Sleep puts the panel into deep sleep. It needs Init to wake up.
	Sleep() error
	// Close releases the bus and pins. The driver is unusable afterwards.
	Close() error
	Width() int
	Height() int
}

var epd_types = map[string]func(spi.Port, gpio.PinOut, gpio.PinOut, gpio.PinOut, gpio.PinIO) (Driver, error){
	"2in13_v2":  NewEPD213V2FromSPI,
	"1in54_v2":  NewEPD154V2FromSPI,
	"1in54_m09": NewEPD154M09FromSPI,
}

func SupportedTypes() []string {
	retval := make([]string, 0, len(epd_types))
	for k := range epd_types {
		retval = append(retval, k)
	}
	sort.Strings(retval)
	return retval
}

func NewFromSPI(epd_type string, s spi.Port, dc, cs, rst gpio.PinOut, busy gpio.PinIO) (Driver, error) {
	if v, ok := epd_types[epd_type]; ok {
		return v(s, dc, cs, rst, busy)
	}
	return nil, fmt.Errorf("unknown epd type %q", epd_type)
}

// Canvas returns a white canvas in the drawing orientation of d.
func Canvas(d Driver) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, d.Height(), d.Width()))
	draw.Draw(img, img.Bounds(), &image.Uniform{image1bit.On}, image.Point{}, draw.Src)
	return img
}

// toFrame converts img into a 1-bit frame covering bounds. A canvas with
// its axes swapped relative to bounds is rotated a quarter turn, anything
// else of the wrong size is scaled up or down to fit, keeping its aspect
// ratio, and centred on white. Sources that are not already 1-bit are
// dithered.
func toFrame(img image.Image, bounds image.Rectangle) *image1bit.VerticalLSB {
	_, bilevel := img.(*image1bit.VerticalLSB)

	src := img
	sb := src.Bounds()
	if sb.Size() != bounds.Size() && sb.Dx() == bounds.Dy() && sb.Dy() == bounds.Dx() {
		src = imaging.Rotate90(src)
	}
	if src.Bounds().Size() != bounds.Size() {
		bg := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
		if !src.Bounds().Empty() {
			bg = imaging.PasteCenter(bg, scale(src, bounds.Size()))
		}
		src = bg
		bilevel = false
	}

	frame := fill(bounds, color.White)
	if bilevel {
		draw.Draw(frame, bounds, src, src.Bounds().Min, draw.Src)
		return frame
	}

	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	draw.Draw(gray, gray.Bounds(), src, src.Bounds().Min, draw.Over)
	draw.Draw(frame, bounds, halfgone.FloydSteinbergDitherer{}.Apply(gray), image.Point{}, draw.Src)
	return frame
}

// scale resizes img to the largest size that fits in size.
func scale(img image.Image, size image.Point) *image.NRGBA {
	b := img.Bounds()
	if b.Dx()*size.Y > b.Dy()*size.X {
		return imaging.Resize(img, size.X, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, size.Y, imaging.Lanczos)
}

func fill(bounds image.Rectangle, c color.Color) *image1bit.VerticalLSB {
	frame := image1bit.NewVerticalLSB(bounds)
	draw.Draw(frame, bounds, &image.Uniform{c}, image.Point{}, draw.Src)
	return frame
}
