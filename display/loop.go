// Package display runs the countdown on an e-paper panel: one full
// refresh with the title screen, then a partial refresh of the day count
// at a fixed interval until the context is cancelled.
package display

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"time"

	"github.com/AndreRenaud/piday_eink/countdown"
	"github.com/AndreRenaud/piday_eink/epd"
	"github.com/AndreRenaud/piday_eink/render"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultPause    = time.Second
)

// Loop owns the panel for the life of the countdown.
type Loop struct {
	Driver epd.Driver
	Assets *render.Assets
	Target countdown.MonthDay

	// Interval between partial refreshes.
	Interval time.Duration
	// Pause between clearing the panel and releasing it on shutdown.
	Pause time.Duration
	// Now is the clock, time.Now if nil.
	Now func() time.Time

	canvas   *image1bit.VerticalLSB
	shutdown bool
}

// New returns a Loop counting down to Pi day with the default timings.
func New(d epd.Driver, a *render.Assets) *Loop {
	return &Loop{
		Driver:   d,
		Assets:   a,
		Target:   countdown.PiDay,
		Interval: DefaultInterval,
		Pause:    DefaultPause,
		Now:      time.Now,
	}
}

func (l *Loop) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

// Setup clears the panel, shows the title screen with a full refresh and
// prepares the panel for partial refreshes.
func (l *Loop) Setup() error {
	d := l.Driver

	log.Printf("Initialize and clear...")
	if err := d.Init(epd.FullUpdate); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := d.Clear(color.White); err != nil {
		return fmt.Errorf("clear: %w", err)
	}

	// Height is the long side, so it is the canvas width.
	log.Printf("Creating canvas - height: %d, width: %d", d.Height(), d.Width())
	splash := render.Splash(image.Pt(d.Height(), d.Width()), l.Assets)
	log.Printf("Display text and BMP")
	if err := d.Display(d.Buffer(splash)); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	l.canvas = epd.Canvas(d)
	if err := d.DisplayPartBaseImage(d.Buffer(l.canvas)); err != nil {
		return fmt.Errorf("base image: %w", err)
	}
	if err := d.Init(epd.PartUpdate); err != nil {
		return fmt.Errorf("init partial: %w", err)
	}
	return nil
}

// Step redraws the day count with one partial refresh.
func (l *Loop) Step() error {
	if l.canvas == nil {
		return errors.New("display: Step called before Setup")
	}
	days := countdown.Days(l.now(), l.Target)
	log.Printf("Days till %s: %d", l.Target, days)

	render.Countdown(l.canvas, l.Assets, days, countdown.Unit(days))
	if err := l.Driver.DisplayPartial(l.Driver.Buffer(l.canvas)); err != nil {
		return fmt.Errorf("display partial: %w", err)
	}
	return nil
}

// Run calls Setup and then Step every Interval until ctx is done. On
// cancellation it shuts the panel down and returns nil. A driver error is
// returned after the same shutdown has been attempted. A non-positive
// Interval is rejected before the panel is touched.
func (l *Loop) Run(ctx context.Context) error {
	if l.Interval <= 0 {
		return fmt.Errorf("display: interval %v must be positive", l.Interval)
	}
	err := l.run(ctx)
	if err != nil {
		log.Printf("%v", err)
	} else {
		log.Printf("Exiting...")
	}
	if serr := l.Shutdown(); serr != nil {
		log.Printf("shutdown: %v", serr)
		if err == nil {
			err = serr
		}
	}
	return err
}

func (l *Loop) run(ctx context.Context) error {
	if err := l.Setup(); err != nil {
		return err
	}
	log.Printf("Pi Day countdown; press CTRL-C to exit")

	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		if ctx.Err() != nil {
			return nil
		}
		if err := l.Step(); err != nil {
			return err
		}
		t.Reset(l.Interval)
	}
}

// Shutdown blanks the panel with a full refresh, puts it to sleep and
// releases it. The driver is closed even when the panel stops responding.
// Only the first call does anything.
func (l *Loop) Shutdown() error {
	if l.shutdown {
		return nil
	}
	l.shutdown = true

	d := l.Driver
	var errs []error
	if err := d.Init(epd.FullUpdate); err != nil {
		errs = append(errs, fmt.Errorf("init: %w", err))
	} else if err := d.Clear(color.White); err != nil {
		errs = append(errs, fmt.Errorf("clear: %w", err))
	} else if err := d.Sleep(); err != nil {
		errs = append(errs, fmt.Errorf("sleep: %w", err))
	}
	time.Sleep(l.Pause)
	if err := d.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	return errors.Join(errs...)
}
