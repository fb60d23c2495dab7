//go:build !linux

package alsa

import (
	"github.com/miditools/go-mididev"
)

// Registry is a stub on platforms without ALSA. Every operation reports
// mididev.ErrNotSupported.
type Registry struct{}

func New() *Registry { return &Registry{} }

// NewWithRoot matches the Linux constructor signature; the root is unused.
func NewWithRoot(string) *Registry { return &Registry{} }

func (r *Registry) Inputs() ([]mididev.DeviceInfo, error) {
	return nil, mididev.NewError("ENUMERATE", mididev.ErrCodeNotSupported, "alsa is linux-only")
}

func (r *Registry) Outputs() ([]mididev.DeviceInfo, error) {
	return nil, mididev.NewError("ENUMERATE", mididev.ErrCodeNotSupported, "alsa is linux-only")
}

func (r *Registry) OpenInput(deviceID int, _ mididev.EventFunc) (mididev.Port, error) {
	return nil, mididev.NewDeviceError("OPEN", deviceID, mididev.ErrCodeNotSupported, "alsa is linux-only")
}

func (r *Registry) OpenOutput(deviceID int, _ mididev.EventFunc) (mididev.Port, error) {
	return nil, mididev.NewDeviceError("OPEN", deviceID, mididev.ErrCodeNotSupported, "alsa is linux-only")
}

var _ mididev.Registry = (*Registry)(nil)
