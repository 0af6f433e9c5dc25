// Package gpio drives the motor e-stop output line with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Gate drives the e-stop output that inhibits motion.
type Gate interface {
	// Set drives the output: true = stop asserted (line high).
	Set(stop bool) error

	// Close asserts stop and releases GPIO resources.
	Close() error
}

// Defaults (BCM numbering).
const (
	DefaultChip    = "gpiochip0"
	DefaultPinStop = 17
)

// NopGate is used when no output line is configured.
type NopGate struct{}

// Set does nothing.
func (NopGate) Set(bool) error { return nil }

// Close does nothing.
func (NopGate) Close() error { return nil }
