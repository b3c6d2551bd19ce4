package epd

import (
	"bytes"
	"errors"
	"image/color"
	"testing"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

type pins struct {
	dc, cs, rst, busy *gpiotest.Pin
}

func newPins() pins {
	return pins{
		dc:   &gpiotest.Pin{N: "DC"},
		cs:   &gpiotest.Pin{N: "CS"},
		rst:  &gpiotest.Pin{N: "RST"},
		busy: &gpiotest.Pin{N: "BUSY"},
	}
}

// failConn fails every transfer.
type failConn struct{ err error }

func (f *failConn) String() string       { return "fail" }
func (f *failConn) Tx(w, r []byte) error { return f.err }
func (f *failConn) Duplex() conn.Duplex  { return conn.Half }

func commands(ops []conntest.IO) []byte {
	var cmds []byte
	for _, op := range ops {
		if len(op.W) == 1 {
			cmds = append(cmds, op.W[0])
		}
	}
	return cmds
}

func TestNewPanelRejectsInvalidDC(t *testing.T) {
	p := newPins()
	if _, err := newEPD154V2(&conntest.Record{}, gpio.INVALID, p.cs, p.rst, p.busy); err != errDCRequired {
		t.Errorf("gpio.INVALID dc: err = %v, want %v", err, errDCRequired)
	}
	if _, err := newEPD154M09(&conntest.Record{}, nil, p.cs, p.rst, p.busy); err != errDCRequired {
		t.Errorf("nil dc: err = %v, want %v", err, errDCRequired)
	}
}

func TestNewPanelIdlePins(t *testing.T) {
	p := newPins()
	if _, err := newEPD154V2(&conntest.Record{}, p.dc, p.cs, p.rst, p.busy); err != nil {
		t.Fatal(err)
	}
	if p.rst.L != gpio.High || p.cs.L != gpio.High || p.dc.L != gpio.Low {
		t.Errorf("idle levels rst=%v cs=%v dc=%v", p.rst.L, p.cs.L, p.dc.L)
	}
}

func TestEPD154V2Display(t *testing.T) {
	p := newPins()
	rec := &conntest.Record{}
	e, err := newEPD154V2(rec, p.dc, p.cs, p.rst, p.busy)
	if err != nil {
		t.Fatal(err)
	}

	frame := e.Buffer(fill(e.bounds, color.White))
	if err := e.Display(frame); err != nil {
		t.Fatal(err)
	}

	if len(rec.Ops) < 2 || !bytes.Equal(rec.Ops[0].W, []byte{0x24}) {
		t.Fatalf("first op %v, want write RAM command", rec.Ops)
	}
	data := rec.Ops[1].W
	if len(data) != 200*200/8 {
		t.Fatalf("frame was %d bytes, want %d", len(data), 200*200/8)
	}
	for i, b := range data {
		if b != 0xFF {
			t.Fatalf("byte %d = %#x, white should be 0xff", i, b)
		}
	}
	if got, want := commands(rec.Ops[2:]), []byte{0x22, 0xc7, 0x20}; !bytes.Equal(got, want) {
		t.Errorf("turn on sequence %#v, want %#v", got, want)
	}
	if p.cs.L != gpio.High {
		t.Error("chip select left asserted")
	}
}

func TestEPD154V2ClearBlack(t *testing.T) {
	p := newPins()
	rec := &conntest.Record{}
	e, err := newEPD154V2(rec, p.dc, p.cs, p.rst, p.busy)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Clear(color.Black); err != nil {
		t.Fatal(err)
	}
	// both RAM banks are written
	if !bytes.Equal(rec.Ops[0].W, []byte{0x24}) || !bytes.Equal(rec.Ops[2].W, []byte{0x26}) {
		t.Fatalf("unexpected ops %v", commands(rec.Ops))
	}
	for _, b := range rec.Ops[1].W {
		if b != 0 {
			t.Fatalf("black should be 0x00, got %#x", b)
		}
	}
}

func TestEPD154V2PartialSwitchesMode(t *testing.T) {
	p := newPins()
	rec := &conntest.Record{}
	e, err := newEPD154V2(rec, p.dc, p.cs, p.rst, p.busy)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.DisplayPartial(fill(e.bounds, color.White)); err != nil {
		t.Fatal(err)
	}
	if e.mode != PartUpdate {
		t.Error("DisplayPartial should switch to partial mode")
	}
	cmds := commands(rec.Ops)
	if cmds[0] != 0x32 {
		t.Errorf("partial init should load the LUT first, got %#x", cmds[0])
	}
	if got := cmds[len(cmds)-3:]; !bytes.Equal(got, []byte{0x22, 0xcf, 0x20}) {
		t.Errorf("partial turn on %#v", got)
	}
}

func TestEPD154V2TxError(t *testing.T) {
	p := newPins()
	want := errors.New("spi gone")
	e, err := newEPD154V2(&failConn{err: want}, p.dc, p.cs, p.rst, p.busy)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Sleep(); !errors.Is(err, want) {
		t.Errorf("Sleep() = %v, want %v", err, want)
	}
	if p.cs.L != gpio.High {
		t.Error("chip select should be released after a failed transfer")
	}
}

func TestBusyTimeout(t *testing.T) {
	defer func(d time.Duration) { busyTimeout = d }(busyTimeout)
	busyTimeout = 20 * time.Millisecond

	p := newPins()
	e, err := newEPD154V2(&conntest.Record{}, p.dc, p.cs, p.rst, p.busy)
	if err != nil {
		t.Fatal(err)
	}
	p.busy.L = gpio.High
	if err := e.Init(FullUpdate); !errors.Is(err, ErrBusyTimeout) {
		t.Errorf("Init() = %v, want %v", err, ErrBusyTimeout)
	}

	// the error is not sticky across operations
	p.busy.L = gpio.Low
	if err := e.Init(FullUpdate); err != nil {
		t.Errorf("Init() after recovery = %v", err)
	}
}

func TestEPD154M09PartialUsesBase(t *testing.T) {
	p := newPins()
	rec := &conntest.Record{}
	e, err := newEPD154M09(rec, p.dc, p.cs, p.rst, p.busy)
	if err != nil {
		t.Fatal(err)
	}

	base := fill(e.bounds, color.Black)
	if err := e.DisplayPartBaseImage(base); err != nil {
		t.Fatal(err)
	}
	rec.Ops = nil

	next := fill(e.bounds, color.White)
	if err := e.DisplayPartial(next); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rec.Ops[0].W, []byte{0x10}) || !bytes.Equal(rec.Ops[2].W, []byte{0x13}) {
		t.Fatalf("unexpected ops %v", commands(rec.Ops))
	}
	if rec.Ops[1].W[0] != 0x00 {
		t.Errorf("old data should be the black base, got %#x", rec.Ops[1].W[0])
	}
	if rec.Ops[3].W[0] != 0xFF {
		t.Errorf("new data should be white, got %#x", rec.Ops[3].W[0])
	}
	if e.base != next {
		t.Error("partial frame should become the next base")
	}
}

func TestEPD154M09FailedWriteKeepsBase(t *testing.T) {
	p := newPins()
	e, err := newEPD154M09(&failConn{err: errors.New("boom")}, p.dc, p.cs, p.rst, p.busy)
	if err != nil {
		t.Fatal(err)
	}
	base := e.base
	if err := e.DisplayPartial(fill(e.bounds, color.Black)); err == nil {
		t.Fatal("expected error")
	}
	if e.base != base {
		t.Error("base changed after failed write")
	}
}

func TestClosePullsPinsLow(t *testing.T) {
	p := newPins()
	e, err := newEPD154V2(&conntest.Record{}, p.dc, p.cs, p.rst, p.busy)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if p.rst.L != gpio.Low || p.dc.L != gpio.Low {
		t.Error("Close should drive rst and dc low")
	}
}
