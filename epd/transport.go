package epd

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// Waveshare HAT wiring on the Raspberry Pi header.
const (
	hatRST  = "GPIO17"
	hatDC   = "GPIO25"
	hatCS   = "GPIO8"
	hatBusy = "GPIO24"
)

// FT232H wiring used with the USB adapter.
const (
	ftdiDC   = "FT232H.C0"
	ftdiCS   = "FT232H.C1"
	ftdiRST  = "FT232H.C2"
	ftdiBusy = "FT232H.C3"
)

// closer wraps a Driver so that Close also releases the SPI port.
type closer struct {
	Driver
	port spi.PortCloser
}

func (c *closer) Close() error {
	return errors.Join(c.Driver.Close(), c.port.Close())
}

// OpenHat opens a panel attached through a Waveshare HAT on the named SPI
// bus ("" for the first one available).
func OpenHat(epd_type, bus string) (Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	pins := make([]gpio.PinIO, 0, 4)
	for _, name := range []string{hatDC, hatCS, hatRST, hatBusy} {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("no such gpio %s", name)
		}
		pins = append(pins, p)
	}

	b, err := spireg.Open(bus)
	if err != nil {
		return nil, err
	}
	d, err := NewFromSPI(epd_type, b, pins[0], pins[1], pins[2], pins[3])
	if err != nil {
		b.Close()
		return nil, err
	}
	return &closer{Driver: d, port: b}, nil
}

func findGPIO(ft232h *ftdi.FT232H, name string) (gpio.PinIO, error) {
	headers := ft232h.Header()
	for _, h := range headers {
		if h.Name() == name {
			return h, nil
		}
	}
	return nil, fmt.Errorf("no such gpio %s", name)
}

// OpenFTDI opens a panel wired to the first FT232H on the USB bus.
func OpenFTDI(epd_type string) (Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	all := ftdi.All()
	if len(all) == 0 {
		return nil, errors.New("found no FTDI device on the USB bus")
	}
	ft232h, ok := all[0].(*ftdi.FT232H)
	if !ok {
		return nil, errors.New("not FTDI device on the USB bus")
	}

	pins := make([]gpio.PinIO, 0, 4)
	for _, name := range []string{ftdiDC, ftdiCS, ftdiRST, ftdiBusy} {
		p, err := findGPIO(ft232h, name)
		if err != nil {
			return nil, err
		}
		pins = append(pins, p)
	}

	s, err := ft232h.SPI()
	if err != nil {
		return nil, fmt.Errorf("spi: %w", err)
	}
	d, err := NewFromSPI(epd_type, s, pins[0], pins[1], pins[2], pins[3])
	if err != nil {
		s.Close()
		return nil, err
	}
	return &closer{Driver: d, port: s}, nil
}
