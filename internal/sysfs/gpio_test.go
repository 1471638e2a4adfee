package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

// fakeRoot builds a GPIO control tree like the kernel would present it, with
// control files for the given pin numbers already in place.
func fakeRoot(t *testing.T, pins ...int) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{"export", "unexport"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), nil, 0644))
	}
	for _, n := range pins {
		dir := filepath.Join(root, fmt.Sprintf("gpio%d", n))
		require.NoError(t, os.Mkdir(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "direction"), nil, 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "value"), nil, 0644))
	}
	return root
}

func fileContent(t *testing.T, parts ...string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(parts...))
	require.NoError(t, err)
	return string(b)
}

func TestOpenPin(t *testing.T) {
	root := fakeRoot(t, 18)

	p, err := New(root).OpenPin(18)
	require.NoError(t, err)

	assert.Equal(t, "18\n", fileContent(t, root, "export"))
	assert.Equal(t, "low", fileContent(t, root, "gpio18", "direction"))
	assert.Equal(t, "gpio18", p.Name())
	assert.Equal(t, 18, p.Number())
	assert.Equal(t, "Out", p.Function())
	assert.Equal(t, "gpio18", p.String())

	require.NoError(t, p.Close())
}

func TestOut(t *testing.T) {
	root := fakeRoot(t, 7)

	p, err := New(root).OpenPin(7)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Out(gpio.High))
	assert.Equal(t, "1", fileContent(t, root, "gpio7", "value"))

	require.NoError(t, p.Out(gpio.Low))
	assert.Equal(t, "0", fileContent(t, root, "gpio7", "value"))

	require.NoError(t, p.Halt())
	assert.Equal(t, "0", fileContent(t, root, "gpio7", "value"))
}

func TestPWMNotSupported(t *testing.T) {
	root := fakeRoot(t, 7)

	p, err := New(root).OpenPin(7)
	require.NoError(t, err)
	defer p.Close()

	assert.Error(t, p.PWM(gpio.DutyMax, 0))
}

func TestClose(t *testing.T) {
	root := fakeRoot(t, 23)

	p, err := New(root).OpenPin(23)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	assert.Equal(t, "in", fileContent(t, root, "gpio23", "direction"))
	assert.Equal(t, "23\n", fileContent(t, root, "unexport"))

	// Closing again is a no-op, writing is not possible anymore.
	require.NoError(t, p.Close())
	assert.Error(t, p.Out(gpio.High))
}

func TestOpenPinInvalidNumber(t *testing.T) {
	root := fakeRoot(t)

	_, err := New(root).OpenPin(-1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenPinExportRefused(t *testing.T) {
	// No export file at all, like a tree without GPIO support.
	root := t.TempDir()

	_, err := New(root).OpenPin(18)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenPinMissingControlFiles(t *testing.T) {
	// Export succeeds but the per-pin files never appear.
	root := fakeRoot(t)

	_, err := New(root).OpenPin(25)
	assert.ErrorIs(t, err, ErrUnavailable)
	// The pin must have been handed back.
	assert.Equal(t, "25\n", fileContent(t, root, "unexport"))
}

func TestDefaultRoot(t *testing.T) {
	assert.Equal(t, DefaultRoot, New("").root)
}
