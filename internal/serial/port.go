package serial

import (
	"fmt"
	"io"
	"os"

	"go.bug.st/serial"
)

// Open opens the serial device at path and returns a line source over it.
// Bytes buffered by the driver before the open are discarded so the first
// line is not a stale fragment.
func Open(path string, opts PortOptions) (*ReaderSource, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("reset input buffer on %s: %w", path, err)
	}

	return NewReaderSource(port), nil
}

// OpenReplay returns a line source over a recorded capture. "-" reads stdin.
func OpenReplay(path string) (*ReaderSource, error) {
	if path == "-" {
		return NewReaderSource(io.NopCloser(os.Stdin)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	return NewReaderSource(f), nil
}

// ListPorts returns the serial devices visible to the OS.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
