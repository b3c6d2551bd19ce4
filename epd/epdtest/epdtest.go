// Package epdtest provides a fake epd.Driver that records what it is asked
// to do.
package epdtest

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/AndreRenaud/piday_eink/epd"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Recorder implements epd.Driver. Each call is appended to Ops, eg
// "init(full)", "clear", "display", "partial".
type Recorder struct {
	W, H int

	Ops []string
	// Frames holds a copy of every frame that was displayed, in order.
	Frames []*image1bit.VerticalLSB

	// FailOn makes the named op ("display", "partial", ...) return Err.
	// FailAfter skips that many matching calls before failing.
	FailOn    string
	FailAfter int
	Err       error

	// OnOp, when set, is called after every recorded op.
	OnOp func(op string)
}

// New returns a Recorder shaped like the 2.13" V2 panel.
func New() *Recorder {
	return &Recorder{W: 122, H: 250}
}

func (r *Recorder) Width() int  { return r.W }
func (r *Recorder) Height() int { return r.H }

// Count returns how many times op was called.
func (r *Recorder) Count(op string) int {
	n := 0
	for _, o := range r.Ops {
		if o == op {
			n++
		}
	}
	return n
}

func (r *Recorder) record(op string) error {
	r.Ops = append(r.Ops, op)
	if r.OnOp != nil {
		defer r.OnOp(op)
	}
	if r.FailOn == op {
		if r.FailAfter > 0 {
			r.FailAfter--
			return nil
		}
		return r.Err
	}
	return nil
}

func (r *Recorder) Init(mode epd.Mode) error {
	return r.record(fmt.Sprintf("init(%s)", mode))
}

func (r *Recorder) Clear(c color.Color) error {
	return r.record("clear")
}

// Buffer keeps the canvas orientation, it only copies img into a frame.
func (r *Recorder) Buffer(img image.Image) *image1bit.VerticalLSB {
	frame := image1bit.NewVerticalLSB(image.Rect(0, 0, r.H, r.W))
	draw.Draw(frame, frame.Bounds(), img, img.Bounds().Min, draw.Src)
	return frame
}

func (r *Recorder) keep(frame *image1bit.VerticalLSB) {
	c := image1bit.NewVerticalLSB(frame.Bounds())
	copy(c.Pix, frame.Pix)
	r.Frames = append(r.Frames, c)
}

func (r *Recorder) Display(frame *image1bit.VerticalLSB) error {
	r.keep(frame)
	return r.record("display")
}

func (r *Recorder) DisplayPartBaseImage(frame *image1bit.VerticalLSB) error {
	r.keep(frame)
	return r.record("base")
}

func (r *Recorder) DisplayPartial(frame *image1bit.VerticalLSB) error {
	r.keep(frame)
	return r.record("partial")
}

func (r *Recorder) Sleep() error {
	return r.record("sleep")
}

func (r *Recorder) Close() error {
	return r.record("close")
}
