// Package lcd is the gpio connection type for HD44780 character displays:
// it owns the GPIO pins for the 4-bit interface and clocks bytes into one or
// two ganged controllers. The display logic on top lives in
// internal/hd44780; this package only moves bits.
//
// The controller gives no feedback of any kind. Correctness rests on the
// wiring matching the pinout and on the minimum hold times between protocol
// steps.
package lcd

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"gpiolcd/internal/hd44780"
	"gpiolcd/internal/sysfs"
)

// Opts configures a connection. The zero value drives a single controller
// without backlight on the default pinout.
type Opts struct {
	// Pinout overrides the physical pin mapping. Nil selects DefaultPinout.
	Pinout *Pinout
	// Controllers is the number of ganged controllers, 1 or 2. 0 means 1.
	Controllers int
	// Backlight enables the backlight pin.
	Backlight bool
	// NibbleHold overrides the minimum delay between protocol steps. 0 means
	// DefaultNibbleHold.
	NibbleHold time.Duration
}

// LCD is an open connection to the display. It implements hd44780.Conn.
// Calls must not overlap; the display layer is the single caller and invokes
// it strictly sequentially.
type LCD struct {
	s      sender
	pins   []*sysfs.Pin // owned pins in acquisition order, nil when not ours
	closed bool
}

var _ hd44780.Conn = &LCD{}

// Open claims all pins of the active configuration from the given GPIO tree,
// runs the 4-bit mode bring-up and returns the connection ready for use. On
// any failure every pin claimed so far is released before the error is
// returned, naming the signal and pin that failed.
func Open(g *sysfs.GPIO, opts Opts) (*LCD, error) {
	pinout := DefaultPinout
	if opts.Pinout != nil {
		pinout = *opts.Pinout
	}
	controllers := opts.Controllers
	if controllers == 0 {
		controllers = 1
	}
	if controllers < 1 || controllers > 2 {
		return nil, fmt.Errorf("lcd: unsupported controller count %d", controllers)
	}
	backlight := opts.Backlight
	if backlight && (pinout.BL < 0 || pinout.BL > maxBacklightPin) {
		log.Warnf("lcd: backlight pin %d out of range, backlight disabled", pinout.BL)
		backlight = false
	}
	if err := pinout.validate(controllers, backlight); err != nil {
		return nil, err
	}

	l := &LCD{}
	l.s.twoControllers = controllers == 2
	l.s.hold = opts.NibbleHold
	if l.s.hold == 0 {
		l.s.hold = DefaultNibbleHold
	}
	l.s.sleep = time.Sleep

	for _, a := range pinout.assignments(controllers, backlight) {
		p, err := g.OpenPin(a.pin)
		if err != nil {
			l.releasePins()
			return nil, fmt.Errorf("lcd: acquire %s: %w", a.role, err)
		}
		l.pins = append(l.pins, p)
		l.assign(a.role, p)
		log.Debugf("lcd: pin %s mapped to GPIO%d", a.role, a.pin)
	}

	if err := l.bringUp(); err != nil {
		l.releasePins()
		return nil, err
	}
	log.Infof("lcd: gpio connection up, %d controller(s), backlight=%v", controllers, backlight)
	return l, nil
}

// Pins is a set of already configured output pins for New. EN2 and BL may be
// nil when unused.
type Pins struct {
	EN  gpio.PinOut
	RS  gpio.PinOut
	D4  gpio.PinOut
	D5  gpio.PinOut
	D6  gpio.PinOut
	D7  gpio.PinOut
	EN2 gpio.PinOut
	BL  gpio.PinOut
}

// New builds a connection over caller-supplied pins, for example periph host
// pins looked up by name. The caller keeps ownership of the pins; Close does
// not release them. The bring-up sequence runs before New returns.
func New(pins Pins, opts Opts) (*LCD, error) {
	controllers := opts.Controllers
	if controllers == 0 {
		controllers = 1
	}
	if controllers < 1 || controllers > 2 {
		return nil, fmt.Errorf("lcd: unsupported controller count %d", controllers)
	}
	for _, req := range []struct {
		role role
		pin  gpio.PinOut
	}{
		{roleEN, pins.EN},
		{roleRS, pins.RS},
		{roleD7, pins.D7},
		{roleD6, pins.D6},
		{roleD5, pins.D5},
		{roleD4, pins.D4},
	} {
		if req.pin == nil {
			return nil, fmt.Errorf("lcd: pin %s is not connected", req.role)
		}
	}
	if controllers == 2 && pins.EN2 == nil {
		return nil, fmt.Errorf("lcd: two controllers need an EN2 pin")
	}

	l := &LCD{}
	l.s.rs = pins.RS
	l.s.en = pins.EN
	l.s.data = [4]gpio.PinOut{pins.D4, pins.D5, pins.D6, pins.D7}
	if controllers == 2 {
		l.s.en2 = pins.EN2
	}
	l.s.bl = pins.BL
	l.s.twoControllers = controllers == 2
	l.s.hold = opts.NibbleHold
	if l.s.hold == 0 {
		l.s.hold = DefaultNibbleHold
	}
	l.s.sleep = time.Sleep

	if err := l.bringUp(); err != nil {
		return nil, err
	}
	return l, nil
}

// bringUp forces the controller into 4-bit mode no matter what state it was
// in: the 8-bit function set three times, then the switch to 4 bits. 0x33
// carries the first two repeats, 0x32 the third plus the mode change.
func (l *LCD) bringUp() error {
	if err := l.s.sendByte(hd44780.All, hd44780.Instruction, 0x33); err != nil {
		return fmt.Errorf("lcd: bring-up: %w", err)
	}
	l.s.sleep(4100 * time.Microsecond)
	if err := l.s.sendByte(hd44780.All, hd44780.Instruction, 0x32); err != nil {
		return fmt.Errorf("lcd: bring-up: %w", err)
	}
	l.s.sleep(150 * time.Microsecond)
	return nil
}

// SendByte transmits one byte to the selected controller(s).
func (l *LCD) SendByte(t hd44780.Target, m hd44780.Mode, b byte) error {
	if l.closed {
		return fmt.Errorf("lcd: connection is closed")
	}
	return l.s.sendByte(t, m, b)
}

// SetBacklight switches the backlight. Without a backlight pin this does
// nothing.
func (l *LCD) SetBacklight(on bool) error {
	if l.closed {
		return fmt.Errorf("lcd: connection is closed")
	}
	return l.s.setBacklight(on)
}

// Close releases every pin this connection acquired, restoring each to input
// direction. Closing twice is a no-op.
func (l *LCD) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return l.releasePins()
}

func (l *LCD) releasePins() error {
	var first error
	for _, p := range l.pins {
		if err := p.Close(); err != nil {
			log.Warnf("lcd: release %s: %v", p.Name(), err)
			if first == nil {
				first = err
			}
		}
	}
	l.pins = nil
	return first
}

func (l *LCD) assign(r role, p gpio.PinOut) {
	switch r {
	case roleEN:
		l.s.en = p
	case roleRS:
		l.s.rs = p
	case roleD7:
		l.s.data[3] = p
	case roleD6:
		l.s.data[2] = p
	case roleD5:
		l.s.data[1] = p
	case roleD4:
		l.s.data[0] = p
	case roleBL:
		l.s.bl = p
	case roleEN2:
		l.s.en2 = p
	}
}
