//go:build !linux

package gpio

import "errors"

// RealGate is not available on non-Linux platforms.
type RealGate struct{}

// NewRealGate returns an error on non-Linux platforms.
func NewRealGate(chipName string, pin int) (*RealGate, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (g *RealGate) Set(bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (g *RealGate) Close() error {
	return nil
}
