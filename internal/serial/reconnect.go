package serial

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Opener opens a fresh Source. It is called again after every transport error.
type Opener func() (Source, error)

// Reconnector is a Source that survives transport errors: on a failed open
// or read it logs, waits, and reopens. Only Close ends it.
type Reconnector struct {
	open  Opener
	retry time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	cur Source

	connected atomic.Bool
}

// NewReconnector creates a Reconnector. Nothing is opened until the first ReadLine.
func NewReconnector(open Opener, retry time.Duration) *Reconnector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconnector{
		open:   open,
		retry:  retry,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ReadLine returns the next line from the current connection, reconnecting
// as needed. It blocks across reconnects and returns ErrClosed after Close.
func (r *Reconnector) ReadLine() (string, error) {
	for {
		src, err := r.current()
		if err != nil {
			if r.ctx.Err() != nil {
				return "", ErrClosed
			}
			log.Printf("serial: open failed: %v (retrying in %v)", err, r.retry)
			if !r.wait() {
				return "", ErrClosed
			}
			continue
		}

		line, err := src.ReadLine()
		if err == nil {
			return line, nil
		}
		if r.ctx.Err() != nil {
			return "", ErrClosed
		}

		if errors.Is(err, io.EOF) {
			log.Printf("serial: device closed the stream, reconnecting")
		} else {
			log.Printf("serial: read error: %v, reconnecting", err)
		}
		r.drop(src)
		if !r.wait() {
			return "", ErrClosed
		}
	}
}

// IsConnected reports whether a device is currently open.
func (r *Reconnector) IsConnected() bool {
	return r.connected.Load()
}

// Close stops reconnecting and closes the current device, unblocking ReadLine.
func (r *Reconnector) Close() error {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return nil
	}
	err := r.cur.Close()
	r.cur = nil
	r.setConnected(false)
	return err
}

func (r *Reconnector) current() (Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cur != nil {
		return r.cur, nil
	}
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}
	src, err := r.open()
	if err != nil {
		return nil, err
	}
	r.cur = src
	r.setConnected(true)
	return src, nil
}

func (r *Reconnector) drop(src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur != src {
		return
	}
	if err := r.cur.Close(); err != nil {
		log.Printf("serial: close after error: %v", err)
	}
	r.cur = nil
	r.setConnected(false)
}

func (r *Reconnector) setConnected(v bool) {
	if r.connected.Swap(v) == v {
		return
	}
	if v {
		log.Printf("serial: connected")
	} else {
		log.Printf("serial: disconnected")
	}
}

// wait sleeps for the retry interval. It returns false if closed meanwhile.
func (r *Reconnector) wait() bool {
	t := time.NewTimer(r.retry)
	defer t.Stop()
	select {
	case <-r.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
