package epd

// Based on https://github.com/GoodDisplay/E-paper-Display-Library-of-GoodDisplay/blob/main/Monochrome_E-paper-Display/1.54inch_JD79653_GDEW0154M09_200x200/Arduino/GDEW0154M09_Arduino.ino

import (
	"image"
	"image/color"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// epd154m09 drives the 200x200 GDEW0154M09 panel (JD79653 controller).
//
// The controller refreshes from two RAM banks, "old" (0x10) and "new"
// (0x13). Partial refresh is done by loading the previous frame as old
// data, so only pixels that differ are driven.
type epd154m09 struct {
	*panel
	bounds image.Rectangle
	// last frame sent, the reference for the next partial refresh
	base *image1bit.VerticalLSB
}

func NewEPD154M09FromSPI(s spi.Port, dc, cs, rst gpio.PinOut, busy gpio.PinIO) (Driver, error) {
	c, err := s.Connect(20*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}
	return newEPD154M09(c, dc, cs, rst, busy)
}

func newEPD154M09(c conn.Conn, dc, cs, rst gpio.PinOut, busy gpio.PinIO) (*epd154m09, error) {
	p, err := newPanel(c, dc, cs, rst, busy, gpio.High)
	if err != nil {
		return nil, err
	}
	bounds := image.Rect(0, 0, 200, 200)
	return &epd154m09{panel: p, bounds: bounds, base: fill(bounds, color.White)}, nil
}

func (e *epd154m09) Width() int  { return e.bounds.Dx() }
func (e *epd154m09) Height() int { return e.bounds.Dy() }

// Init wakes and configures the controller. The JD79653 needs no separate
// partial setup, so both modes share the same register sequence.
func (e *epd154m09) Init(mode Mode) error {
	e.reset(10 * time.Millisecond)
	e.sleep(100 * time.Millisecond)

	e.sendCommand(0x00) // panel setting
	e.sendData(0xDf, 0x0e)

	e.sendCommand(0x4D) // FITI internal code
	e.sendData(0x55)

	e.sendCommand(0xaa)
	e.sendData(0x0f)

	e.sendCommand(0xE9)
	e.sendData(0x02)

	e.sendCommand(0xb6)
	e.sendData(0x11)

	e.sendCommand(0xF3)
	e.sendData(0x0a)

	e.sendCommand(0x61) // resolution setting
	e.sendData(0xc8, 0x00, 0xc8)

	e.sendCommand(0x60) // Tcon setting
	e.sendData(0x00)

	e.sendCommand(0x50)
	e.sendData(0x97)

	e.sendCommand(0xE3)
	e.sendData(0x00)

	e.sendCommand(0x04) // power on
	e.sleep(100 * time.Millisecond)
	e.readBusy()
	return e.result()
}

func (e *epd154m09) refresh() {
	e.sendCommand(0x12) // display refresh
	// at least 200us before busy is valid
	e.sleep(10 * time.Millisecond)
	e.readBusy()
}

func (e *epd154m09) write(old, next *image1bit.VerticalLSB) error {
	e.sendCommand(0x10)
	e.sendImage(old)
	e.sendCommand(0x13)
	e.sendImage(next)
	e.refresh()
	if err := e.result(); err != nil {
		return err
	}
	e.base = next
	return nil
}

func (e *epd154m09) Clear(c color.Color) error {
	return e.write(fill(e.bounds, c), fill(e.bounds, c))
}

func (e *epd154m09) Buffer(img image.Image) *image1bit.VerticalLSB {
	return toFrame(img, e.bounds)
}

func (e *epd154m09) Display(frame *image1bit.VerticalLSB) error {
	return e.write(fill(e.bounds, color.White), frame)
}

func (e *epd154m09) DisplayPartBaseImage(frame *image1bit.VerticalLSB) error {
	return e.write(frame, frame)
}

func (e *epd154m09) DisplayPartial(frame *image1bit.VerticalLSB) error {
	return e.write(e.base, frame)
}

func (e *epd154m09) Sleep() error {
	e.sendCommand(0x02) // power off
	e.readBusy()
	e.sleep(time.Second)
	e.sendCommand(0x07) // deep sleep
	e.sendData(0xA5)
	return e.result()
}

func (e *epd154m09) Close() error {
	e.out(e.rst, gpio.Low)
	e.out(e.dc, gpio.Low)
	return e.result()
}
