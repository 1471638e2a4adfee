package hd44780

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentByte struct {
	target Target
	mode   Mode
	value  byte
}

// connRecorder is a Conn that records everything instead of driving pins.
type connRecorder struct {
	sent      []sentByte
	backlight []bool
	closed    bool
}

func (c *connRecorder) SendByte(t Target, m Mode, b byte) error {
	c.sent = append(c.sent, sentByte{t, m, b})
	return nil
}

func (c *connRecorder) SetBacklight(on bool) error {
	c.backlight = append(c.backlight, on)
	return nil
}

func (c *connRecorder) Close() error {
	c.closed = true
	return nil
}

func instructions(c *connRecorder) []byte {
	var out []byte
	for _, s := range c.sent {
		if s.mode == Instruction {
			out = append(out, s.value)
		}
	}
	return out
}

func data(c *connRecorder) []byte {
	var out []byte
	for _, s := range c.sent {
		if s.mode == Data {
			out = append(out, s.value)
		}
	}
	return out
}

// testDisplay builds a display over the recorder without real delays.
func testDisplay(t *testing.T, c *connRecorder, rows, cols int) *Display {
	t.Helper()
	d, err := newDisplay(c, rows, cols, func(time.Duration) {})
	require.NoError(t, err)
	return d
}

func TestNewRunsCommonInit(t *testing.T) {
	c := &connRecorder{}

	_, err := New(c, 2, 16)
	require.NoError(t, err)

	// Function set 4-bit/2-line, display on with cursor off, entry mode
	// increment, clear.
	assert.Equal(t, []byte{0x28, 0x0C, 0x06, 0x01}, instructions(c))
	for _, s := range c.sent {
		assert.Equal(t, All, s.target, "init instructions go to every controller")
	}
}

func TestNewSingleRowFunctionSet(t *testing.T) {
	c := &connRecorder{}

	testDisplay(t, c, 1, 16)

	assert.Equal(t, byte(0x20), c.sent[0].value)
}

func TestNewRejectsBadGeometry(t *testing.T) {
	for _, tc := range []struct{ rows, cols int }{
		{0, 16}, {5, 16}, {2, 0}, {2, 41},
	} {
		_, err := New(&connRecorder{}, tc.rows, tc.cols)
		assert.Error(t, err, "rows=%d cols=%d", tc.rows, tc.cols)
	}
}

func TestWriteString(t *testing.T) {
	c := &connRecorder{}
	d := testDisplay(t, c, 2, 16)

	require.NoError(t, d.WriteString("Hi!"))

	assert.Equal(t, []byte("Hi!"), data(c))
	for _, s := range c.sent {
		if s.mode == Data {
			assert.Equal(t, First, s.target, "characters go to the first controller")
		}
	}
}

func TestMoveTo(t *testing.T) {
	c := &connRecorder{}
	d := testDisplay(t, c, 4, 20)

	for _, tc := range []struct {
		row, col int
		addr     byte
	}{
		{1, 1, 0x80},
		{2, 1, 0xC0},
		{3, 1, 0x94},
		{4, 1, 0xD4},
		{1, 5, 0x84},
	} {
		c.sent = nil
		require.NoError(t, d.MoveTo(tc.row, tc.col))
		assert.Equal(t, []byte{tc.addr}, instructions(c), "(%d,%d)", tc.row, tc.col)
	}

	assert.Error(t, d.MoveTo(0, 1))
	assert.Error(t, d.MoveTo(5, 1))
	assert.Error(t, d.MoveTo(1, 21))
}

func TestWriteLinePadsAndTruncates(t *testing.T) {
	c := &connRecorder{}
	d := testDisplay(t, c, 2, 8)

	require.NoError(t, d.WriteLine(2, "hi"))
	assert.Equal(t, []byte("hi      "), data(c))

	c.sent = nil
	require.NoError(t, d.WriteLine(1, "much too long"))
	assert.Equal(t, []byte("much too"), data(c))
}

func TestDisplayAndCursorControl(t *testing.T) {
	c := &connRecorder{}
	d := testDisplay(t, c, 2, 16)

	c.sent = nil
	require.NoError(t, d.Display(false))
	assert.Equal(t, []byte{0x08}, instructions(c))

	c.sent = nil
	require.NoError(t, d.Display(true))
	assert.Equal(t, []byte{0x0C}, instructions(c))

	c.sent = nil
	require.NoError(t, d.Cursor(true, false))
	assert.Equal(t, []byte{0x0E}, instructions(c))

	c.sent = nil
	require.NoError(t, d.Cursor(true, true))
	assert.Equal(t, []byte{0x0F}, instructions(c))
}

func TestSlowCommandsPause(t *testing.T) {
	c := &connRecorder{}
	var pauses []time.Duration
	d, err := newDisplay(c, 2, 16, func(p time.Duration) { pauses = append(pauses, p) })
	require.NoError(t, err)

	// Clear and return-home are the only instructions with a busy period to
	// wait out.
	pauses = nil
	require.NoError(t, d.Clear())
	require.NoError(t, d.Home())
	assert.Equal(t, []time.Duration{slowCommandDelay, slowCommandDelay}, pauses)

	pauses = nil
	require.NoError(t, d.MoveTo(1, 1))
	require.NoError(t, d.WriteString("x"))
	assert.Empty(t, pauses)
}

func TestBacklight(t *testing.T) {
	c := &connRecorder{}
	d := testDisplay(t, c, 2, 16)

	require.NoError(t, d.Backlight(true))
	require.NoError(t, d.Backlight(false))
	assert.Equal(t, []bool{true, false}, c.backlight)
}

func TestClose(t *testing.T) {
	c := &connRecorder{}
	d := testDisplay(t, c, 2, 16)

	require.NoError(t, d.Close())
	assert.True(t, c.closed)
	// Display off goes out before the connection goes away.
	assert.Equal(t, byte(0x08), c.sent[len(c.sent)-1].value)
}

func TestGeometryAccessors(t *testing.T) {
	d := testDisplay(t, &connRecorder{}, 2, 16)

	assert.Equal(t, 2, d.Rows())
	assert.Equal(t, 16, d.Cols())
	assert.Equal(t, "hd44780: 2x16", d.String())
}
