package alsa

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miditools/go-mididev"
)

func fakeSndDir(t *testing.T, nodes ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range nodes {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o600))
	}
	return dir
}

func TestRegistryEnumerate(t *testing.T) {
	dir := fakeSndDir(t, "midiC1D0", "midiC0D0", "midiC0D1", "controlC0", "pcmC0D0p")
	r := NewWithRoot(dir)

	inputs, err := r.Inputs()
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	// Sorted by node name, IDs assigned in order
	assert.Equal(t, "midiC0D0", inputs[0].Name)
	assert.Equal(t, "midiC0D1", inputs[1].Name)
	assert.Equal(t, "midiC1D0", inputs[2].Name)
	for i, info := range inputs {
		assert.Equal(t, i, info.ID)
		assert.Equal(t, mididev.DirectionInput, info.Direction)
	}

	outputs, err := r.Outputs()
	require.NoError(t, err)
	require.Len(t, outputs, 3)
	assert.Equal(t, mididev.DirectionOutput, outputs[0].Direction)
}

func TestRegistryEnumerateEmpty(t *testing.T) {
	r := NewWithRoot(t.TempDir())

	inputs, err := r.Inputs()
	require.NoError(t, err)
	assert.Empty(t, inputs)
}

func TestRegistryOpenUnknownDevice(t *testing.T) {
	r := NewWithRoot(t.TempDir())

	_, err := r.OpenInput(0, func(mididev.Event) {})
	assert.True(t, errors.Is(err, mididev.ErrDeviceNotFound), "got %v", err)

	_, err = r.OpenOutput(5, func(mididev.Event) {})
	assert.True(t, errors.Is(err, mididev.ErrDeviceNotFound), "got %v", err)
}
