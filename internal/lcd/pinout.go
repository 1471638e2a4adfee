package lcd

import "fmt"

// role is a logical signal of the 4-bit interface.
type role int

const (
	roleEN role = iota
	roleRS
	roleD7
	roleD6
	roleD5
	roleD4
	roleBL
	roleEN2
)

func (r role) String() string {
	switch r {
	case roleEN:
		return "EN"
	case roleRS:
		return "RS"
	case roleD7:
		return "D7"
	case roleD6:
		return "D6"
	case roleD5:
		return "D5"
	case roleD4:
		return "D4"
	case roleBL:
		return "BL"
	case roleEN2:
		return "EN2"
	}
	return "unknown"
}

// Pinout maps every logical signal to a physical GPIO number. EN2 is only
// used with a second controller, BL only when a backlight is configured.
type Pinout struct {
	EN  int
	RS  int
	D4  int
	D5  int
	D6  int
	D7  int
	EN2 int
	BL  int
}

// DefaultPinout is the classic Raspberry Pi header wiring. R/W must be hard
// wired low; there is no pin for it.
var DefaultPinout = Pinout{
	EN:  8,
	RS:  7,
	D4:  25,
	D5:  24,
	D6:  23,
	D7:  18,
	EN2: 22,
	BL:  17,
}

// A backlight number outside this range means "no backlight wired"; the
// feature is disabled rather than treated as a configuration error.
const maxBacklightPin = 31

type assignment struct {
	role role
	pin  int
}

// assignments lists the active signals in acquisition order.
func (p Pinout) assignments(controllers int, backlight bool) []assignment {
	a := []assignment{
		{roleEN, p.EN},
		{roleRS, p.RS},
		{roleD7, p.D7},
		{roleD6, p.D6},
		{roleD5, p.D5},
		{roleD4, p.D4},
	}
	if backlight {
		a = append(a, assignment{roleBL, p.BL})
	}
	if controllers > 1 {
		a = append(a, assignment{roleEN2, p.EN2})
	}
	return a
}

// validate rejects negative pin numbers and two roles sharing one physical
// pin. Only active roles count: an EN2 clash does not matter on a single
// controller display.
func (p Pinout) validate(controllers int, backlight bool) error {
	seen := make(map[int]role)
	for _, a := range p.assignments(controllers, backlight) {
		if a.pin < 0 {
			return fmt.Errorf("lcd: pin %s has invalid number %d", a.role, a.pin)
		}
		if other, ok := seen[a.pin]; ok {
			return fmt.Errorf("lcd: pins %s and %s both mapped to GPIO%d", other, a.role, a.pin)
		}
		seen[a.pin] = a.role
	}
	return nil
}
