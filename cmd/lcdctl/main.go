package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"gpiolcd/internal/hd44780"
	"gpiolcd/internal/lcd"
	"gpiolcd/internal/sysfs"
)

var (
	app        = kingpin.New("lcdctl", "Control an HD44780 character LCD wired to GPIO pins.")
	debug      = app.Flag("debug", "Turn on debug logging.").Bool()
	configFile = app.Flag("config", "Configuration file with the display wiring.").String()
	gpioRoot   = app.Flag("gpio-root", "Root of the GPIO control tree.").Default(sysfs.DefaultRoot).String()
	usePeriph  = app.Flag("periph", "Look pins up through the periph.io host instead of raw sysfs.").Bool()

	show     = app.Command("show", "Show text on the display until interrupted, one argument per row.")
	showText = show.Arg("text", "Rows of text.").Required().Strings()

	clearCmd = app.Command("clear", "Clear the display.")

	backlightCmd   = app.Command("backlight", "Switch the backlight.")
	backlightState = backlightCmd.Arg("state", "on or off.").Required().Enum("on", "off")

	offCmd = app.Command("off", "Turn the display off and release the pins.")
)

func main() {
	cmd, err := app.Parse(os.Args[1:])
	if err != nil {
		fmt.Printf("%v: Try --help\n", err.Error())
		os.Exit(1)
	}

	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if *debug {
		log.Info("Enabling debug output...")
		log.SetLevel(log.DebugLevel)
	}

	conf, err := getConfig(*configFile)
	if err != nil {
		log.Fatal(err)
	}

	// Errors surface here, after the deferred release in run has already put
	// every pin back to input.
	if err := run(cmd, conf); err != nil {
		log.Fatal(err)
	}
}

func run(cmd string, conf *Config) error {
	conn, err := openConn(conf)
	if err != nil {
		return err
	}

	display, err := hd44780.New(conn, conf.Rows, conf.Cols)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() {
		if err := display.Close(); err != nil {
			log.Errorf("Shutdown: %v", err)
		}
	}()

	switch cmd {
	case show.FullCommand():
		for i, row := range *showText {
			if i >= display.Rows() {
				log.Warnf("Display has only %d rows, dropping %q", display.Rows(), row)
				break
			}
			if err := display.WriteLine(i+1, row); err != nil {
				return err
			}
		}
		waitForInterrupt()
		return nil
	case clearCmd.FullCommand():
		return display.Clear()
	case backlightCmd.FullCommand():
		return display.Backlight(*backlightState == "on")
	case offCmd.FullCommand():
		// The deferred Close blanks the display and releases the pins.
		return nil
	}
	return fmt.Errorf("unrecognized command %q", cmd)
}

// openConn brings up the gpio connection, either over raw sysfs or through
// the periph.io host registry.
func openConn(conf *Config) (hd44780.Conn, error) {
	opts := lcd.Opts{
		Pinout:      conf.pinout(),
		Controllers: conf.Controllers,
		Backlight:   conf.Backlight,
	}
	if !*usePeriph {
		return lcd.Open(sysfs.New(*gpioRoot), opts)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialize periph host: %w", err)
	}
	p := conf.pinout()
	byName := func(role string, number int) (gpio.PinOut, error) {
		pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", number))
		if pin == nil {
			return nil, fmt.Errorf("pin %s: no GPIO%d on this host", role, number)
		}
		return pin, nil
	}

	var pins lcd.Pins
	var err error
	for _, assign := range []struct {
		role   string
		number int
		dst    *gpio.PinOut
	}{
		{"EN", p.EN, &pins.EN},
		{"RS", p.RS, &pins.RS},
		{"D4", p.D4, &pins.D4},
		{"D5", p.D5, &pins.D5},
		{"D6", p.D6, &pins.D6},
		{"D7", p.D7, &pins.D7},
	} {
		if *assign.dst, err = byName(assign.role, assign.number); err != nil {
			return nil, err
		}
	}
	if conf.Controllers == 2 {
		if pins.EN2, err = byName("EN2", p.EN2); err != nil {
			return nil, err
		}
	}
	if conf.Backlight {
		if pins.BL, err = byName("BL", p.BL); err != nil {
			return nil, err
		}
	}
	return lcd.New(pins, opts)
}

func waitForInterrupt() {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-signalChan
	log.Info("Shutting down...")
}
