// Package hd44780 implements the controller-independent half of a Hitachi
// HD44780 character LCD driver: the instruction encoding, display geometry
// and text operations. The electrical transfer itself is delegated to a Conn,
// so the same display logic works over any connection type.
//
// Datasheet: https://www.sparkfun.com/datasheets/LCD/HD44780.pdf
package hd44780

import (
	"fmt"
	"time"
)

// Target selects which of up to two ganged controllers a byte is sent to.
type Target int

const (
	// All broadcasts to every configured controller.
	All Target = iota
	// First addresses controller 1 only.
	First
	// Second addresses controller 2 only.
	Second
)

func (t Target) String() string {
	switch t {
	case All:
		return "all"
	case First:
		return "first"
	case Second:
		return "second"
	}
	return "unknown"
}

// Mode selects the controller register a byte is written to.
type Mode int

const (
	// Instruction writes to the instruction register (RS low).
	Instruction Mode = iota
	// Data writes to the data register (RS high).
	Data
)

// Conn transfers bytes to the controller(s). It is the hook surface a
// connection type registers during its own initialization; the display layer
// calls it strictly sequentially.
type Conn interface {
	// SendByte transmits one instruction or data byte. Errors are fatal for
	// the operation; the channel is open-loop and nothing is retried.
	SendByte(t Target, m Mode, b byte) error
	// SetBacklight switches the backlight circuit, if one is wired.
	SetBacklight(on bool) error
	// Close releases the underlying connection resources.
	Close() error
}

// HD44780 instruction set.
const (
	cmdClear          byte = 0x01
	cmdHome           byte = 0x02
	cmdEntryModeSet   byte = 0x04
	cmdDisplayControl byte = 0x08
	cmdFunctionSet    byte = 0x20
	cmdSetDDRAMAddr   byte = 0x80

	entryIncrement byte = 0x02

	displayOn byte = 0x04
	cursorOn  byte = 0x02
	blinkOn   byte = 0x01

	functionTwoLine byte = 0x08
)

// Clear and return-home run the controller's busy period; everything else
// finishes well inside the transfer time of the next byte.
const slowCommandDelay = 1520 * time.Microsecond

// DDRAM address of the first column of each row.
var rowOffsets = [4]byte{0x00, 0x40, 0x14, 0x54}

// Display is a character display of up to 4 rows and 40 columns backed by a
// Conn. Rows and columns are 1-based.
type Display struct {
	conn  Conn
	rows  int
	cols  int
	sleep func(time.Duration)

	on     bool
	cursor bool
	blink  bool
}

// New configures the controller for the given geometry and returns the
// display ready for text output: function set, display on with the cursor
// off, left-to-right entry mode, cleared screen.
func New(conn Conn, rows, cols int) (*Display, error) {
	return newDisplay(conn, rows, cols, time.Sleep)
}

func newDisplay(conn Conn, rows, cols int, sleep func(time.Duration)) (*Display, error) {
	if rows < 1 || rows > 4 {
		return nil, fmt.Errorf("hd44780: unsupported row count %d", rows)
	}
	if cols < 1 || cols > 40 {
		return nil, fmt.Errorf("hd44780: unsupported column count %d", cols)
	}
	d := &Display{conn: conn, rows: rows, cols: cols, sleep: sleep, on: true}

	function := cmdFunctionSet // 4-bit interface, 5x8 font
	if rows > 1 {
		function |= functionTwoLine
	}
	if err := d.command(function); err != nil {
		return nil, err
	}
	if err := d.applyDisplayControl(); err != nil {
		return nil, err
	}
	if err := d.command(cmdEntryModeSet | entryIncrement); err != nil {
		return nil, err
	}
	if err := d.Clear(); err != nil {
		return nil, err
	}
	return d, nil
}

// Rows returns the number of rows of the display.
func (d *Display) Rows() int {
	return d.rows
}

// Cols returns the number of columns of the display.
func (d *Display) Cols() int {
	return d.cols
}

// Clear wipes the display and moves the cursor to the first position.
func (d *Display) Clear() error {
	if err := d.command(cmdClear); err != nil {
		return err
	}
	d.sleep(slowCommandDelay)
	return nil
}

// Home moves the cursor to row 1, column 1.
func (d *Display) Home() error {
	if err := d.command(cmdHome); err != nil {
		return err
	}
	d.sleep(slowCommandDelay)
	return nil
}

// MoveTo positions the cursor on the 1-based row and column.
func (d *Display) MoveTo(row, col int) error {
	if row < 1 || row > d.rows || col < 1 || col > d.cols {
		return fmt.Errorf("hd44780: position (%d,%d) out of range for %dx%d display", row, col, d.rows, d.cols)
	}
	return d.command(cmdSetDDRAMAddr | (rowOffsets[row-1] + byte(col-1)))
}

// WriteString writes text at the current cursor position.
func (d *Display) WriteString(text string) error {
	for i := 0; i < len(text); i++ {
		if err := d.conn.SendByte(First, Data, text[i]); err != nil {
			return err
		}
	}
	return nil
}

// WriteLine writes text on the given 1-based row, padded or truncated to the
// display width.
func (d *Display) WriteLine(row int, text string) error {
	if err := d.MoveTo(row, 1); err != nil {
		return err
	}
	if len(text) > d.cols {
		text = text[:d.cols]
	}
	return d.WriteString(fmt.Sprintf("%-*s", d.cols, text))
}

// Display switches the whole display on or off without losing its contents.
func (d *Display) Display(on bool) error {
	d.on = on
	return d.applyDisplayControl()
}

// Cursor sets the cursor style.
func (d *Display) Cursor(underline, blink bool) error {
	d.cursor = underline
	d.blink = blink
	return d.applyDisplayControl()
}

// Backlight switches the backlight, if the connection has one wired.
func (d *Display) Backlight(on bool) error {
	return d.conn.SetBacklight(on)
}

// Close blanks the display and closes the underlying connection.
func (d *Display) Close() error {
	if err := d.Display(false); err != nil {
		_ = d.conn.Close()
		return err
	}
	return d.conn.Close()
}

func (d *Display) String() string {
	return fmt.Sprintf("hd44780: %dx%d", d.rows, d.cols)
}

func (d *Display) applyDisplayControl() error {
	control := cmdDisplayControl
	if d.on {
		control |= displayOn
	}
	if d.cursor {
		control |= cursorOn
	}
	if d.blink {
		control |= blinkOn
	}
	return d.command(control)
}

// Instructions go to every controller so that ganged displays stay in the
// same mode; data goes to the first controller only (see WriteString).
func (d *Display) command(b byte) error {
	return d.conn.SendByte(All, Instruction, b)
}
