package gpio

import "sync"

// FakeGate is a test double that records every value written to the line.
type FakeGate struct {
	mu sync.Mutex

	// Values holds each value passed to Set, in order.
	Values []bool

	// Closed tracks if Close was called
	Closed bool

	// SetError, if set, will be returned by Set()
	SetError error
}

// NewFakeGate creates a FakeGate.
func NewFakeGate() *FakeGate {
	return &FakeGate{}
}

// Set records the value.
func (f *FakeGate) Set(stop bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.Values = append(f.Values, stop)
	return nil
}

// FailWith makes subsequent Set calls return err; nil clears it.
// Safe while another goroutine is calling Set.
func (f *FakeGate) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetError = err
}

// Close asserts stop and marks the gate as closed.
func (f *FakeGate) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Values = append(f.Values, true)
	f.Closed = true
	return nil
}

// Stopped reports the last value written, and whether anything was written.
func (f *FakeGate) Stopped() (stop, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Values) == 0 {
		return false, false
	}
	return f.Values[len(f.Values)-1], true
}

// Writes returns a copy of the recorded values.
func (f *FakeGate) Writes() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.Values...)
}

// IsClosed reports whether Close was called.
func (f *FakeGate) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}
