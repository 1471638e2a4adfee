// Package sysfs drives GPIO pins through the kernel's /sys/class/gpio
// interface. Pins are exported on open, configured as outputs, and written
// through a file handle that stays open for the lifetime of the pin.
package sysfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// DefaultRoot is where the kernel mounts the GPIO control files.
const DefaultRoot = "/sys/class/gpio"

// ErrUnavailable is returned when the kernel refuses to hand over a pin:
// already claimed by another process, out of range, or permission denied.
var ErrUnavailable = errors.New("pin unavailable")

// GPIO is a handle to one GPIO control tree. The root is configurable so
// that tests can point it at a fake tree.
type GPIO struct {
	root string
}

// New returns a GPIO handle rooted at the given path. An empty root selects
// DefaultRoot.
func New(root string) *GPIO {
	if root == "" {
		root = DefaultRoot
	}
	return &GPIO{root: root}
}

// OpenPin claims the numbered pin, configures it as an output driven low and
// opens its value file for writing. The returned pin stays claimed until
// Close is called on it.
func (g *GPIO) OpenPin(number int) (*Pin, error) {
	if number < 0 {
		return nil, fmt.Errorf("%w: invalid pin number %d", ErrUnavailable, number)
	}
	if err := writeFile(filepath.Join(g.root, "export"), fmt.Sprintf("%d\n", number)); err != nil {
		return nil, fmt.Errorf("%w: export gpio%d: %v", ErrUnavailable, number, err)
	}
	p := &Pin{number: number, root: g.root}
	// "low" puts the pin in output direction with the level already low, in
	// one write.
	if err := writeFile(p.file("direction"), "low"); err != nil {
		p.unexport()
		return nil, fmt.Errorf("%w: gpio%d direction: %v", ErrUnavailable, number, err)
	}
	f, err := os.OpenFile(p.file("value"), os.O_RDWR, 0)
	if err != nil {
		p.resetDirection()
		p.unexport()
		return nil, fmt.Errorf("%w: gpio%d value: %v", ErrUnavailable, number, err)
	}
	p.value = f
	log.Debugf("sysfs: exported gpio%d as output", number)
	return p, nil
}

// Pin is one exported GPIO line in output direction. It implements
// gpio.PinOut. Not safe for concurrent use.
type Pin struct {
	number int
	root   string
	value  *os.File
}

var _ gpio.PinOut = &Pin{}

// Out sets the output level of the pin.
func (p *Pin) Out(l gpio.Level) error {
	if p.value == nil {
		return fmt.Errorf("gpio%d: pin is closed", p.number)
	}
	b := []byte{'0'}
	if l {
		b[0] = '1'
	}
	if _, err := p.value.WriteAt(b, 0); err != nil {
		return fmt.Errorf("gpio%d: write value: %w", p.number, err)
	}
	return nil
}

// Halt drives the pin low.
func (p *Pin) Halt() error {
	return p.Out(gpio.Low)
}

// PWM is not supported on sysfs pins.
func (p *Pin) PWM(gpio.Duty, physic.Frequency) error {
	return fmt.Errorf("gpio%d: pwm not supported", p.number)
}

// Name returns the sysfs name of the pin, e.g. "gpio18".
func (p *Pin) Name() string {
	return fmt.Sprintf("gpio%d", p.number)
}

// Number returns the pin number as claimed from the kernel.
func (p *Pin) Number() int {
	return p.number
}

// Function returns "Out"; pins are only ever opened as outputs.
func (p *Pin) Function() string {
	return "Out"
}

func (p *Pin) String() string {
	return p.Name()
}

// Close restores the pin to input direction, closes the value handle and
// releases the pin back to the kernel. Closing an already closed pin is a
// no-op.
func (p *Pin) Close() error {
	if p.value == nil {
		return nil
	}
	err := p.resetDirection()
	if cerr := p.value.Close(); err == nil {
		err = cerr
	}
	p.value = nil
	if uerr := p.unexport(); err == nil {
		err = uerr
	}
	log.Debugf("sysfs: released gpio%d", p.number)
	return err
}

func (p *Pin) file(name string) string {
	return filepath.Join(p.root, fmt.Sprintf("gpio%d", p.number), name)
}

func (p *Pin) resetDirection() error {
	return writeFile(p.file("direction"), "in")
}

func (p *Pin) unexport() error {
	return writeFile(filepath.Join(p.root, "unexport"), fmt.Sprintf("%d\n", p.number))
}

func writeFile(name, contents string) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(contents)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}
