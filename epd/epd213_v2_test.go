package epd

import (
	"bytes"
	"errors"
	"image/color"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi/spitest"
)

func newTestEPD213V2(t *testing.T) (*epd213v2, pins, *bytes.Buffer) {
	t.Helper()
	p := newPins()
	p.busy.EdgesChan = make(chan gpio.Level, 1)
	var buf bytes.Buffer
	d, err := NewEPD213V2FromSPI(spitest.NewRecordRaw(&buf), p.dc, p.cs, p.rst, p.busy)
	if err != nil {
		t.Fatal(err)
	}
	return d.(*epd213v2), p, &buf
}

func TestEPD213V2Size(t *testing.T) {
	e, _, _ := newTestEPD213V2(t)
	if e.Width() != 122 || e.Height() != 250 {
		t.Errorf("size %dx%d, want 122x250", e.Width(), e.Height())
	}
	if got := Canvas(e).Bounds().Size(); got.X != 250 || got.Y != 122 {
		t.Errorf("canvas %v, want 250x122", got)
	}
}

func TestEPD213V2RequiresDC(t *testing.T) {
	p := newPins()
	p.busy.EdgesChan = make(chan gpio.Level, 1)
	var buf bytes.Buffer
	if _, err := NewEPD213V2FromSPI(spitest.NewRecordRaw(&buf), nil, p.cs, p.rst, p.busy); err != errDCRequired {
		t.Errorf("err = %v, want %v", err, errDCRequired)
	}
}

func TestEPD213V2Modes(t *testing.T) {
	e, _, buf := newTestEPD213V2(t)

	if err := e.Init(PartUpdate); err != nil {
		t.Fatal(err)
	}
	if e.mode != PartUpdate {
		t.Errorf("mode after Init(partial) = %v", e.mode)
	}
	if buf.Len() == 0 {
		t.Error("Init wrote nothing")
	}

	frame := e.Buffer(Canvas(e))
	if err := e.DisplayPartBaseImage(frame); err != nil {
		t.Fatal(err)
	}
	if e.mode != FullUpdate {
		t.Errorf("base image should be drawn with a full refresh, mode = %v", e.mode)
	}

	if err := e.DisplayPartial(frame); err != nil {
		t.Fatal(err)
	}
	if e.mode != PartUpdate {
		t.Errorf("mode after DisplayPartial = %v", e.mode)
	}

	if err := e.Init(FullUpdate); err != nil {
		t.Fatal(err)
	}
	if e.mode != FullUpdate {
		t.Errorf("mode after Init(full) = %v", e.mode)
	}
	n := buf.Len()
	if err := e.DisplayPartial(frame); err != nil {
		t.Fatal(err)
	}
	if e.mode != PartUpdate || buf.Len() == n {
		t.Errorf("DisplayPartial after a full init: mode = %v, %d bytes", e.mode, buf.Len()-n)
	}
}

func TestEPD213V2CloseAfterSleep(t *testing.T) {
	e, p, buf := newTestEPD213V2(t)
	if err := e.Init(FullUpdate); err != nil {
		t.Fatal(err)
	}
	if err := e.Clear(color.White); err != nil {
		t.Fatal(err)
	}
	if err := e.Sleep(); err != nil {
		t.Fatal(err)
	}
	// deep sleep holds busy high
	p.busy.Out(gpio.High)
	n := buf.Len()

	done := make(chan error, 1)
	go func() { done <- e.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close() blocked on a sleeping panel")
	}
	if buf.Len() != n {
		t.Errorf("Close wrote %d bytes to a sleeping panel", buf.Len()-n)
	}
	if p.rst.L != gpio.Low || p.dc.L != gpio.Low {
		t.Errorf("rst=%v dc=%v, want both low", p.rst.L, p.dc.L)
	}
}

func TestEPD213V2BusyTimeout(t *testing.T) {
	e, p, buf := newTestEPD213V2(t)
	if err := e.Init(FullUpdate); err != nil {
		t.Fatal(err)
	}

	defer func(d time.Duration) { busyTimeout = d }(busyTimeout)
	busyTimeout = 20 * time.Millisecond
	p.busy.Out(gpio.High)
	n := buf.Len()

	if err := e.Display(e.Buffer(Canvas(e))); !errors.Is(err, ErrBusyTimeout) {
		t.Errorf("Display() = %v, want %v", err, ErrBusyTimeout)
	}
	// once wedged the panel fails fast, even after busy drops
	p.busy.Out(gpio.Low)
	if err := e.Init(FullUpdate); !errors.Is(err, ErrBusyTimeout) {
		t.Errorf("Init() = %v, want %v", err, ErrBusyTimeout)
	}
	if buf.Len() != n {
		t.Errorf("wrote %d bytes to a busy panel", buf.Len()-n)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
