package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/AndreRenaud/piday_eink/countdown"
	"github.com/AndreRenaud/piday_eink/display"
	"github.com/AndreRenaud/piday_eink/epd"
	"github.com/AndreRenaud/piday_eink/render"
)

var (
	assetDir  = flag.String("assets", "", "Directory holding the font and image (default: next to the executable)")
	fontFile  = flag.String("font", "Bangers-Regular.ttf", "TrueType font, relative to -assets")
	imageFile = flag.String("image", "img/pie.bmp", "Bitmap shown on the title screen, relative to -assets")
	panelType = flag.String("panel", "2in13_v2", "Panel type: preview, "+strings.Join(epd.SupportedTypes(), ", "))
	transport = flag.String("transport", "hat", "How the panel is attached: hat or ftdi")
	spiBus    = flag.String("spi", "", "SPI bus name for the HAT (empty for default)")
	interval  = flag.Duration("interval", display.DefaultInterval, "Time between countdown refreshes")
	target    = flag.String("target", countdown.PiDay.String(), "Date to count down to, MM-DD")
	preview   = flag.String("preview", "preview.png", "Output file for -panel=preview")
)

func resolveAssetDir(dir string) (string, error) {
	if dir != "" {
		return filepath.Abs(dir)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

func openDriver(panel, via string) (epd.Driver, error) {
	if panel == "preview" {
		return epd.NewPreview(*preview), nil
	}
	switch via {
	case "hat":
		return epd.OpenHat(panel, *spiBus)
	case "ftdi":
		return epd.OpenFTDI(panel)
	}
	return nil, fmt.Errorf("unknown transport %q", via)
}

func checkInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("-interval must be positive, got %v", d)
	}
	return nil
}

func main() {
	flag.Parse()

	if err := checkInterval(*interval); err != nil {
		log.Fatal(err)
	}
	md, err := countdown.Parse(*target)
	if err != nil {
		log.Fatal(err)
	}

	dir, err := resolveAssetDir(*assetDir)
	if err != nil {
		log.Fatalf("assets: %s", err)
	}
	log.Printf("Loading assets from %s...", dir)
	assets, err := render.LoadAssets(dir, *fontFile, *imageFile)
	if err != nil {
		log.Fatalf("assets: %s", err)
	}

	log.Printf("Starting...")
	d, err := openDriver(*panelType, *transport)
	if err != nil {
		log.Fatalf("open %s: %s", *panelType, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// A second interrupt during shutdown kills the process.
	go func() {
		<-ctx.Done()
		stop()
	}()

	loop := display.New(d, assets)
	loop.Target = md
	loop.Interval = *interval
	if err := loop.Run(ctx); err != nil {
		stop()
		log.Fatalf("countdown stopped: %s", err)
	}
}
