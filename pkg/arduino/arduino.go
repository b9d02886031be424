// Copyright (c) Jeff Berkowitz 2021, 2026. All rights reserved.

// Package arduino provides a synchronous byte I/O interface to an Arduino
// running the EEPROM loader firmware. The loader speaks a line oriented
// protocol back to the host (acks and free text diagnostics) while the host
// sends it raw binary headers and blocks, so the interface offers both a
// line reader and raw byte reads.
//
// Opening a standard USB serial port activates the DTR signal, which resets
// the Arduino. The loader announces itself with "ready" after the reset; it
// is up to the caller to wait for that.
//
// The serial port object isn't threadsafe in general. The one exception
// this package relies on is that a single reader and a single writer may
// run at the same time on a full duplex link. To make that discipline hard
// to get wrong, callers that share the port get two capability handles:
// Receiver() for the reader and Transmitter() for the writer. Closing the
// Arduino invalidates both.

package arduino

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// ErrClosed is wrapped by every TransportError returned after Close.
var ErrClosed = errors.New("serial port closed")

// TransportError reports a failed open, read or write. Callers must stop
// using the Arduino after one of these.
type TransportError struct {
	Op  string
	Err error
}

func (te *TransportError) Error() string {
	return fmt.Sprintf("serial %s: %v", te.Op, te.Err)
}

func (te *TransportError) Unwrap() error {
	return te.Err
}

// port is the part of serial.Port used here.
type port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

type Arduino struct {
	port   port
	closed atomic.Bool

	rxLock  sync.Mutex
	pending []byte // received but not yet returned
	rxBuf   []byte
}

// New opens deviceName 8-N-1 at baudRate. Reads give up after readTimeout.
func New(deviceName string, baudRate int, readTimeout time.Duration) (*Arduino, error) {
	mode := &serial.Mode{BaudRate: baudRate, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	p, err := serial.Open(deviceName, mode)
	if err != nil {
		return nil, &TransportError{"open " + deviceName, err}
	}
	arduino, err := newWithPort(p, readTimeout)
	if err != nil {
		p.Close()
		return nil, err
	}
	log.Info().Str("device", deviceName).Int("baud", baudRate).Msg("serial port is open")
	return arduino, nil
}

func newWithPort(p port, readTimeout time.Duration) (*Arduino, error) {
	if err := p.SetReadTimeout(readTimeout); err != nil {
		return nil, &TransportError{"set read timeout", err}
	}
	return &Arduino{port: p, rxBuf: make([]byte, 256)}, nil
}

// Public interface

// ReadLine returns the next line including its terminating newline. If the
// read timeout elapses first, it returns whatever partial line has arrived,
// or nil with a nil error if nothing has.
func (arduino *Arduino) ReadLine() ([]byte, error) {
	arduino.rxLock.Lock()
	defer arduino.rxLock.Unlock()

	for {
		if i := bytes.IndexByte(arduino.pending, '\n'); i >= 0 {
			return arduino.take(i + 1), nil
		}
		n, err := arduino.readPort(arduino.rxBuf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			if len(arduino.pending) == 0 {
				return nil, nil
			}
			return arduino.take(len(arduino.pending)), nil
		}
		arduino.pending = append(arduino.pending, arduino.rxBuf[:n]...)
	}
}

// Read implements io.Reader. Bytes left over from an earlier ReadLine are
// returned first. A read that times out returns 0, nil.
func (arduino *Arduino) Read(p []byte) (int, error) {
	arduino.rxLock.Lock()
	defer arduino.rxLock.Unlock()

	if len(arduino.pending) > 0 {
		n := copy(p, arduino.pending)
		arduino.take(n)
		return n, nil
	}
	return arduino.readPort(p)
}

// Write implements io.Writer. The whole slice is written or an error
// is returned.
func (arduino *Arduino) Write(p []byte) (int, error) {
	if arduino.closed.Load() {
		return 0, &TransportError{"write", ErrClosed}
	}
	log.Debug().Int("len", len(p)).Msg("write")

	written := 0
	for written < len(p) {
		n, err := arduino.port.Write(p[written:])
		// Drop out on success or error, but not on EINTR.
		if isRetryableSyscallError(err) {
			continue
		}
		if err != nil {
			return written, arduino.failed("write", err)
		}
		if n == 0 {
			return written, &TransportError{"write", fmt.Errorf("write consumed 0 bytes")}
		}
		written += n
	}
	return written, nil
}

// Close the connection to the Arduino. Readers blocked in the port return
// when their timeout elapses and see ErrClosed from then on.
func (arduino *Arduino) Close() error {
	if !arduino.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := arduino.port.Close(); err != nil {
		log.Error().Err(err).Msg("close serial port")
		return &TransportError{"close", err}
	}
	log.Info().Msg("serial port closed")
	return nil
}

// Receiver is the read-only half of an Arduino.
type Receiver struct {
	arduino *Arduino
}

func (arduino *Arduino) Receiver() Receiver {
	return Receiver{arduino}
}

func (r Receiver) Read(p []byte) (int, error) {
	return r.arduino.Read(p)
}

func (r Receiver) ReadLine() ([]byte, error) {
	return r.arduino.ReadLine()
}

// Transmitter is the write-only half of an Arduino.
type Transmitter struct {
	arduino *Arduino
}

func (arduino *Arduino) Transmitter() Transmitter {
	return Transmitter{arduino}
}

func (t Transmitter) Write(p []byte) (int, error) {
	return t.arduino.Write(p)
}

// Implementation

// take removes and returns the first n pending bytes. Caller holds rxLock.
func (arduino *Arduino) take(n int) []byte {
	line := make([]byte, n)
	copy(line, arduino.pending)
	arduino.pending = arduino.pending[n:]
	if len(arduino.pending) == 0 {
		arduino.pending = nil
	}
	return line
}

// The for-loop is -solely- to handle EINTR, which occurs constantly as a
// result of Golang's Goroutine-level context switching mechanism.
func (arduino *Arduino) readPort(p []byte) (int, error) {
	if arduino.closed.Load() {
		return 0, &TransportError{"read", ErrClosed}
	}
	var n int
	var err error
	for {
		n, err = arduino.port.Read(p)
		if !isRetryableSyscallError(err) {
			break
		}
		if n != 0 {
			panic("bytes returned despite EINTR")
		}
	}
	if err != nil {
		return 0, arduino.failed("read", err)
	}
	if n > 0 {
		log.Debug().Int("len", n).Msg("read")
	}
	return n, nil
}

// A port closed underneath a blocked reader reports some driver specific
// error; after Close that is always ErrClosed.
func (arduino *Arduino) failed(op string, err error) error {
	if arduino.closed.Load() {
		return &TransportError{op, ErrClosed}
	}
	return &TransportError{op, err}
}

func isRetryableSyscallError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINTR
	}
	return false
}
