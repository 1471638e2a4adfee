package lcd

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"

	"gpiolcd/internal/hd44780"
)

// DefaultNibbleHold is the minimum settle time between protocol steps. The
// controller tolerates longer gaps but never shorter ones; there is no busy
// flag to poll with the R/W line tied low.
const DefaultNibbleHold = 50 * time.Microsecond

// sender clocks bytes into the controller(s) as two 4-bit transfers. Each
// nibble is latched by the falling edge of the selected enable line(s).
type sender struct {
	rs  gpio.PinOut
	en  gpio.PinOut
	en2 gpio.PinOut // nil on single controller displays
	bl  gpio.PinOut // nil without a backlight

	// data lines in D4..D7 order, so index i carries bit i of a nibble.
	data [4]gpio.PinOut

	twoControllers bool
	hold           time.Duration
	sleep          func(time.Duration)
}

func (s *sender) sendByte(t hd44780.Target, m hd44780.Mode, b byte) error {
	en1, en2, err := s.selectEnables(t)
	if err != nil {
		return err
	}
	rs := gpio.Low
	if m == hd44780.Data {
		rs = gpio.High
	}
	if err := s.rs.Out(rs); err != nil {
		return err
	}
	if err := s.writeNibble(en1, en2, b>>4); err != nil {
		return err
	}
	return s.writeNibble(en1, en2, b&0x0f)
}

// writeNibble clears the data lines, drives the nibble onto D4..D7 and
// pulses the selected enable lines, with the hold time between every step.
func (s *sender) writeNibble(en1, en2 bool, nibble byte) error {
	for _, p := range s.data {
		if err := p.Out(gpio.Low); err != nil {
			return err
		}
	}
	s.sleep(s.hold)

	for i, p := range s.data {
		if err := p.Out(gpio.Level(nibble&(1<<uint(i)) != 0)); err != nil {
			return err
		}
	}
	s.sleep(s.hold)

	if err := s.driveEnables(en1, en2, gpio.High); err != nil {
		return err
	}
	s.sleep(s.hold)
	// The falling edge latches the nibble.
	if err := s.driveEnables(en1, en2, gpio.Low); err != nil {
		return err
	}
	s.sleep(s.hold)
	return nil
}

func (s *sender) driveEnables(en1, en2 bool, l gpio.Level) error {
	if en1 {
		if err := s.en.Out(l); err != nil {
			return err
		}
	}
	if en2 {
		if err := s.en2.Out(l); err != nil {
			return err
		}
	}
	return nil
}

// selectEnables resolves a target to the enable line(s) to pulse. A
// broadcast reaches the second controller only when one is configured.
func (s *sender) selectEnables(t hd44780.Target) (en1, en2 bool, err error) {
	switch t {
	case hd44780.First:
		en1 = true
	case hd44780.Second:
		en2 = true
	case hd44780.All:
		en1 = true
		en2 = s.twoControllers
	default:
		return false, false, fmt.Errorf("lcd: unknown target display %d", t)
	}
	if en2 && s.en2 == nil {
		return false, false, fmt.Errorf("lcd: target %v needs a second controller", t)
	}
	return en1, en2, nil
}

func (s *sender) setBacklight(on bool) error {
	if s.bl == nil {
		return nil
	}
	return s.bl.Out(gpio.Level(on))
}
