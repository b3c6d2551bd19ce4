package epd

import (
	"errors"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

var busyTimeout = 10 * time.Second

var errDCRequired = errors.New("epd: dc pin is required, 3-wire SPI is not supported")

// panel is the 4-wire SPI plumbing shared by the register level drivers.
// The first error is sticky: later sends are dropped and err reports it.
type panel struct {
	c    conn.Conn
	dc   gpio.PinOut
	cs   gpio.PinOut
	rst  gpio.PinOut
	busy gpio.PinIO

	// level the busy pin reads while the controller is working
	busyLevel gpio.Level
	err       error
}

func newPanel(c conn.Conn, dc, cs, rst gpio.PinOut, busy gpio.PinIO, busyLevel gpio.Level) (*panel, error) {
	if dc == nil || dc == gpio.INVALID {
		return nil, errDCRequired
	}
	p := &panel{c: c, dc: dc, cs: cs, rst: rst, busy: busy, busyLevel: busyLevel}
	p.out(rst, gpio.High)
	p.out(dc, gpio.Low)
	p.out(cs, gpio.High)
	if p.err == nil {
		p.err = busy.In(gpio.PullDown, gpio.NoEdge)
	}
	return p, p.result()
}

func (p *panel) out(pin gpio.PinOut, l gpio.Level) {
	if p.err == nil {
		p.err = pin.Out(l)
	}
}

func (p *panel) sleep(d time.Duration) {
	if p.err == nil {
		time.Sleep(d)
	}
}

// reset pulses the reset line low for low.
func (p *panel) reset(low time.Duration) {
	p.out(p.rst, gpio.High)
	p.sleep(20 * time.Millisecond)
	p.out(p.rst, gpio.Low)
	p.sleep(low)
	p.out(p.rst, gpio.High)
	p.sleep(20 * time.Millisecond)
}

func (p *panel) sendCommand(cmd byte) {
	p.out(p.dc, gpio.Low)
	p.tx([]byte{cmd})
}

func (p *panel) sendData(data ...byte) {
	p.sendDataBulk(data)
}

func (p *panel) sendDataBulk(data []byte) {
	p.out(p.dc, gpio.High)
	p.tx(data)
}

func (p *panel) tx(w []byte) {
	p.out(p.cs, gpio.Low)
	if p.err != nil {
		return
	}
	p.err = p.c.Tx(w, nil)
	// release chip select even when the transfer failed
	if err := p.cs.Out(gpio.High); p.err == nil {
		p.err = err
	}
}

// readBusy waits until the controller is idle.
func (p *panel) readBusy() {
	if p.err != nil {
		return
	}
	deadline := time.Now().Add(busyTimeout)
	for p.busy.Read() == p.busyLevel {
		if time.Now().After(deadline) {
			p.err = ErrBusyTimeout
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// sendImage streams frame row by row, eight pixels per byte, MSB first.
// A set bit is a white pixel.
func (p *panel) sendImage(frame *image1bit.VerticalLSB) {
	b := frame.Bounds()
	stride := (b.Dx() + 7) / 8
	tosend := make([]byte, stride*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if frame.BitAt(b.Min.X+x, b.Min.Y+y) {
				tosend[y*stride+x/8] |= 0x80 >> (x % 8)
			}
		}
	}
	p.sendDataBulk(tosend)
}

// result returns the sticky error and clears it so the next operation
// starts afresh.
func (p *panel) result() error {
	err := p.err
	p.err = nil
	return err
}
