package epd

import (
	"errors"
	"image"
	"image/color"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/devices/v3/waveshare2in13v2"
)

// epd213v2 adapts periph's driver for the 122x250 2.13" V2 panel.
// periph waits on the busy line without a deadline, so every call into it
// is bounded by busyTimeout. After a timeout the panel is considered wedged
// and only Close still works.
type epd213v2 struct {
	dev  *waveshare2in13v2.Dev
	opts waveshare2in13v2.Opts
	mode Mode

	dc, rst gpio.PinOut
	busy    gpio.PinIO
	wedged  bool
}

func NewEPD213V2FromSPI(s spi.Port, dc, cs, rst gpio.PinOut, busy gpio.PinIO) (Driver, error) {
	if dc == nil || dc == gpio.INVALID {
		return nil, errDCRequired
	}
	opts := waveshare2in13v2.EPD2in13v2
	dev, err := waveshare2in13v2.New(s, dc, cs, rst, busy, &opts)
	if err != nil {
		return nil, err
	}
	return &epd213v2{dev: dev, opts: opts, dc: dc, rst: rst, busy: busy}, nil
}

// waitIdle polls the busy line until the controller is idle.
func (e *epd213v2) waitIdle() error {
	deadline := time.Now().Add(busyTimeout)
	for e.busy.Read() == gpio.High {
		if time.Now().After(deadline) {
			e.wedged = true
			return ErrBusyTimeout
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// do runs f against the controller once it is idle and gives up after
// busyTimeout. A reset wakes the controller from deep sleep, so callers
// that start with one pass idle=false to skip the initial wait.
func (e *epd213v2) do(idle bool, f func() error) error {
	if e.wedged {
		return ErrBusyTimeout
	}
	if idle {
		if err := e.waitIdle(); err != nil {
			return err
		}
	}
	done := make(chan error, 1)
	go func() { done <- f() }()
	t := time.NewTimer(busyTimeout)
	defer t.Stop()
	select {
	case err := <-done:
		return err
	case <-t.C:
		e.wedged = true
		return ErrBusyTimeout
	}
}

func (e *epd213v2) Width() int  { return e.opts.Width }
func (e *epd213v2) Height() int { return e.opts.Height }

func (e *epd213v2) Init(mode Mode) error {
	err := e.do(false, func() error {
		if err := e.dev.Init(); err != nil {
			return err
		}
		return e.dev.SetUpdateMode(updateMode(mode))
	})
	if err != nil {
		return err
	}
	e.mode = mode
	return nil
}

func (e *epd213v2) Clear(c color.Color) error {
	return e.do(true, func() error { return e.dev.Clear(c) })
}

func (e *epd213v2) Buffer(img image.Image) *image1bit.VerticalLSB {
	return toFrame(img, e.dev.Bounds())
}

func (e *epd213v2) Display(frame *image1bit.VerticalLSB) error {
	return e.draw(frame)
}

func (e *epd213v2) draw(frame *image1bit.VerticalLSB) error {
	return e.do(true, func() error {
		return e.dev.Draw(frame.Bounds(), frame, frame.Bounds().Min)
	})
}

// setMode switches the refresh mode without a reset.
func (e *epd213v2) setMode(mode Mode) error {
	if e.mode == mode {
		return nil
	}
	if err := e.do(true, func() error { return e.dev.SetUpdateMode(updateMode(mode)) }); err != nil {
		return err
	}
	e.mode = mode
	return nil
}

// DisplayPartBaseImage draws frame with a full refresh, which leaves it in
// both controller RAM banks as the reference for partial refreshes.
func (e *epd213v2) DisplayPartBaseImage(frame *image1bit.VerticalLSB) error {
	if err := e.setMode(FullUpdate); err != nil {
		return err
	}
	return e.draw(frame)
}

func (e *epd213v2) DisplayPartial(frame *image1bit.VerticalLSB) error {
	if err := e.setMode(PartUpdate); err != nil {
		return err
	}
	return e.draw(frame)
}

func (e *epd213v2) Sleep() error {
	return e.do(true, e.dev.Sleep)
}

// Close leaves the controller alone, it may be asleep, and parks the
// reset and data/command lines low.
func (e *epd213v2) Close() error {
	return errors.Join(e.rst.Out(gpio.Low), e.dc.Out(gpio.Low))
}

func updateMode(m Mode) waveshare2in13v2.PartialUpdate {
	if m == PartUpdate {
		return waveshare2in13v2.Partial
	}
	return waveshare2in13v2.Full
}
