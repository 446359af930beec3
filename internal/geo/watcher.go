// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
)

// Watcher delivers fixes from a serial receiver until cleared. At most one
// watch is active; starting a new one clears the previous.
type Watcher struct {
	open   func() (io.ReadCloser, error)
	logger *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher for the receiver on portName.
func NewWatcher(portName string, baudRate int, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.Default()
	}
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	return &Watcher{
		open: func() (io.ReadCloser, error) {
			port, err := serial.Open(opts)
			if err != nil {
				return nil, fmt.Errorf("open GPS serial port %s: %w", portName, err)
			}
			logger.Printf("geo: serial port opened on %s at %d baud", portName, baudRate)
			return port, nil
		},
		logger: logger,
	}
}

// Watch opens the receiver and calls onFix for every valid fix until ctx
// is done or Clear is called. Only the open error is returned; read and
// parse problems are logged.
func (w *Watcher) Watch(ctx context.Context, onFix func(Fix)) error {
	w.Clear()

	port, err := w.open()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	w.mu.Lock()
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	// Closing the port unblocks the pending read.
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	go func() {
		defer close(done)
		defer cancel()
		err := Scan(ctx, port, onFix, w.logger)
		if err != nil && ctx.Err() == nil {
			w.logger.Printf("geo: watch ended: %v", err)
		}
	}()
	return nil
}

// Clear stops the active watch, if any, and waits for it to finish.
func (w *Watcher) Clear() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Watching reports whether a watch is active.
func (w *Watcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == nil {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Scan reads NMEA lines from r and calls onFix for each completed fix. It
// returns nil at end of input or when ctx is done.
func Scan(ctx context.Context, r io.Reader, onFix func(Fix), logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	parser := NewParser()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		fix, ok, err := parser.Feed(scanner.Text())
		switch {
		case errors.Is(err, ErrNoFix):
			logger.Printf("geo: %v", err)
		case err != nil:
			// Noisy receivers emit partial sentences.
			continue
		case ok:
			onFix(fix)
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}
