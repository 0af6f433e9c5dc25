//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealGate drives the e-stop line using Linux GPIO character device.
type RealGate struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealGate requests pin on chip as an output. The line starts asserted;
// the control loop keeps it that way until the first samples line arrives.
func NewRealGate(chipName string, pin int) (*RealGate, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(1), gpiocdev.WithConsumer("rangeguard"))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request stop pin %d: %w", pin, err)
	}

	return &RealGate{chip: chip, line: line}, nil
}

// Set drives the line high for stop and low for run.
func (g *RealGate) Set(stop bool) error {
	v := 0
	if stop {
		v = 1
	}
	if err := g.line.SetValue(v); err != nil {
		return fmt.Errorf("set stop pin: %w", err)
	}
	return nil
}

// Close asserts stop before releasing the line. The kernel keeps the last
// driven value after release, so the motor stays inhibited once we exit.
func (g *RealGate) Close() error {
	var errs []error

	if g.line != nil {
		if err := g.line.SetValue(1); err != nil {
			errs = append(errs, fmt.Errorf("assert stop pin: %w", err))
		}
		if err := g.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stop pin: %w", err))
		}
	}
	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
