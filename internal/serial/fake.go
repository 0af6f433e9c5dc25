package serial

import (
	"io"
	"sync"
)

// FakeSource is a test double that returns scripted lines.
type FakeSource struct {
	mu sync.Mutex

	// Lines contains scripted lines; each ReadLine consumes the next one.
	Lines []string

	// ReadError, if set, is returned once the lines are exhausted instead of io.EOF.
	ReadError error

	// Block makes ReadLine wait for Close once the lines are exhausted,
	// like a quiet serial port.
	Block bool

	// Closed tracks if Close was called.
	Closed bool

	index int
	done  chan struct{}
}

// NewFakeSource creates a FakeSource with the given lines.
func NewFakeSource(lines ...string) *FakeSource {
	return &FakeSource{
		Lines: lines,
		done:  make(chan struct{}),
	}
}

// ReadLine returns the next scripted line.
func (f *FakeSource) ReadLine() (string, error) {
	f.mu.Lock()
	if f.Closed {
		f.mu.Unlock()
		return "", ErrClosed
	}
	if f.index < len(f.Lines) {
		line := f.Lines[f.index]
		f.index++
		f.mu.Unlock()
		return line, nil
	}
	block, readErr := f.Block, f.ReadError
	f.mu.Unlock()

	if block {
		<-f.done
		return "", ErrClosed
	}
	if readErr != nil {
		return "", readErr
	}
	return "", io.EOF
}

// Close marks the source as closed and releases a blocked ReadLine.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Closed {
		f.Closed = true
		close(f.done)
	}
	return nil
}

// IsClosed reports whether Close was called. Safe for concurrent use.
func (f *FakeSource) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}
