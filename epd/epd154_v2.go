package epd

// Based on https://github.com/waveshare/e-Paper/blob/master/RaspberryPi_JetsonNano/c/lib/e-Paper/EPD_1in54_V2.c

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

// waveform full refresh
var wf_full_1in54 = []byte{
	0x80, 0x48, 0x40, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x40, 0x48, 0x80, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x80, 0x48, 0x40, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x40, 0x48, 0x80, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0xA, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x8, 0x1, 0x0, 0x8, 0x1, 0x0, 0x2,
	0xA, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x0, 0x0, 0x0,
	0x22, 0x17, 0x41, 0x0, 0x32, 0x20,
}

// waveform partial refresh(fast)
var wf_partial_1in54_0 = []byte{
	0x0, 0x40, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x80, 0x80, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x40, 0x40, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x80, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0xF, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x1, 0x1, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x0, 0x0, 0x0,
	0x02, 0x17, 0x41, 0xB0, 0x32, 0x28,
}

// epd154v2 drives the 200x200 1.54" V2 panel (SSD1681 controller).
type epd154v2 struct {
	*panel
	bounds image.Rectangle
	mode   Mode
}

func NewEPD154V2FromSPI(s spi.Port, dc, cs, rst gpio.PinOut, busy gpio.PinIO) (Driver, error) {
	c, err := s.Connect(20*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}
	return newEPD154V2(c, dc, cs, rst, busy)
}

func newEPD154V2(c conn.Conn, dc, cs, rst gpio.PinOut, busy gpio.PinIO) (*epd154v2, error) {
	p, err := newPanel(c, dc, cs, rst, busy, gpio.High)
	if err != nil {
		return nil, err
	}
	return &epd154v2{panel: p, bounds: image.Rect(0, 0, 200, 200)}, nil
}

func (e *epd154v2) Width() int  { return e.bounds.Dx() }
func (e *epd154v2) Height() int { return e.bounds.Dy() }

func (e *epd154v2) Init(mode Mode) error {
	switch mode {
	case PartUpdate:
		e.initPartial()
	default:
		e.init()
	}
	e.mode = mode
	return e.result()
}

func (e *epd154v2) init() {
	e.reset(2 * time.Millisecond)

	e.readBusy()
	e.sendCommand(0x12) // SWRESET
	e.readBusy()

	e.sendCommand(0x01) // driver output control
	e.sendData(0xC7, 0x00, 0x01)

	e.sendCommand(0x11) // data entry mode
	e.sendData(0x01)

	e.setWindows(0, e.bounds.Dy()-1, e.bounds.Dx()-1, 0)

	e.sendCommand(0x3C) // border waveform
	e.sendData(0x01)

	e.sendCommand(0x18)
	e.sendData(0x80)

	e.sendCommand(0x22) // load temperature and waveform setting
	e.sendData(0xB1)
	e.sendCommand(0x20)

	e.setCursor(0, e.bounds.Dy()-1)
	e.readBusy()

	e.setLut(wf_full_1in54)
}

func (e *epd154v2) initPartial() {
	e.reset(2 * time.Millisecond)
	e.readBusy()

	e.setLut(wf_partial_1in54_0)
	e.sendCommand(0x37)
	e.sendData(0x00, 0x00, 0x00, 0x00, 0x00, 0x40, 0x00, 0x00, 0x00, 0x00)

	e.sendCommand(0x3C) // border waveform
	e.sendData(0x80)

	e.sendCommand(0x22)
	e.sendData(0xc0)
	e.sendCommand(0x20)
	e.readBusy()
}

func (e *epd154v2) lut(lut []byte) {
	e.sendCommand(0x32)
	e.sendDataBulk(lut[0:153])
	e.readBusy()
}

func (e *epd154v2) setLut(lut []byte) {
	e.lut(lut)

	e.sendCommand(0x3f)
	e.sendData(lut[153])

	e.sendCommand(0x03)
	e.sendData(lut[154])

	e.sendCommand(0x04)
	e.sendData(lut[155], lut[156], lut[157])

	e.sendCommand(0x2c)
	e.sendData(lut[158])
}

func (e *epd154v2) setWindows(xstart int, ystart int, xend int, yend int) {
	e.sendCommand(0x44) // SET_RAM_X_ADDRESS_START_END_POSITION
	e.sendData(byte(xstart>>3), byte(xend>>3))

	e.sendCommand(0x45) // SET_RAM_Y_ADDRESS_START_END_POSITION
	e.sendData(byte(ystart), byte(ystart>>8), byte(yend), byte(yend>>8))
}

func (e *epd154v2) setCursor(xstart int, ystart int) {
	e.sendCommand(0x4E) // SET_RAM_X_ADDRESS_COUNTER
	e.sendData(byte(xstart))

	e.sendCommand(0x4F) // SET_RAM_Y_ADDRESS_COUNTER
	e.sendData(byte(ystart), byte(ystart>>8))
}

func (e *epd154v2) turnOnDisplay() {
	e.sendCommand(0x22)
	e.sendData(0xc7)
	e.sendCommand(0x20)
	e.readBusy()
}

func (e *epd154v2) turnOnDisplayPart() {
	e.sendCommand(0x22)
	e.sendData(0xcF)
	e.sendCommand(0x20)
	e.readBusy()
}

func (e *epd154v2) Clear(c color.Color) error {
	frame := fill(e.bounds, c)
	e.sendCommand(0x24)
	e.sendImage(frame)
	e.sendCommand(0x26)
	e.sendImage(frame)
	e.turnOnDisplay()
	return e.result()
}

func (e *epd154v2) Buffer(img image.Image) *image1bit.VerticalLSB {
	return toFrame(img, e.bounds)
}

func (e *epd154v2) Display(frame *image1bit.VerticalLSB) error {
	e.sendCommand(0x24)
	e.sendImage(frame)
	e.turnOnDisplay()
	return e.result()
}

// DisplayPartBaseImage loads frame into both RAM banks so the next partial
// refresh diffs against it.
func (e *epd154v2) DisplayPartBaseImage(frame *image1bit.VerticalLSB) error {
	e.sendCommand(0x24)
	e.sendImage(frame)
	e.sendCommand(0x26)
	e.sendImage(frame)
	e.turnOnDisplay()
	return e.result()
}

func (e *epd154v2) DisplayPartial(frame *image1bit.VerticalLSB) error {
	if e.mode != PartUpdate {
		e.initPartial()
		e.mode = PartUpdate
	}
	e.sendCommand(0x24)
	e.sendImage(frame)
	e.turnOnDisplayPart()
	return e.result()
}

func (e *epd154v2) Sleep() error {
	e.sendCommand(0x10) // enter deep sleep
	e.sendData(0x01)
	e.sleep(100 * time.Millisecond)
	return e.result()
}

func (e *epd154v2) Close() error {
	e.out(e.rst, gpio.Low)
	e.out(e.dc, gpio.Low)
	return e.result()
}
