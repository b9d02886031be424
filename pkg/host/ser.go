// Copyright (c) Jeff Berkowitz 2021, 2026. All rights reserved.

package host

// Sessions with the EEPROM loader firmware.
//
// The loader protocol is strictly one thing at a time: the host sends a
// three byte header, waits for "ok", sends a block (writes only), and waits
// for "ok" again. Nothing here is concurrent. The interactive console is the
// only place where a reader and a writer share the port, and it doesn't use
// a Session.

import (
	"io"
	"time"

	"github.com/rs/zerolog/log"
)

// Transport is what a Session needs from the serial connection. It is
// satisfied by *arduino.Arduino and by the simulator.
type Transport interface {
	io.Writer

	// ReadLine returns the next line, or nil with a nil error if the
	// read timed out with nothing received.
	ReadLine() ([]byte, error)
}

type State int

const (
	Disconnected State = iota
	AwaitingReady
	Idle
	Writing
	Reading
	Failed
	Closed
)

var stateNames = [...]string{"disconnected", "awaiting ready", "idle", "writing", "reading", "failed", "closed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

const (
	defaultAckTimeout   = 10 * time.Second
	defaultReadyTimeout = 10 * time.Second
)

type Session struct {
	t     Transport
	state State

	diag         io.Writer
	ackTimeout   time.Duration
	readyTimeout time.Duration
	progress     ProgressFunc
}

type Option func(*Session)

// WithAckTimeout bounds how long the loader may stay silent while we wait
// for "ok". Zero waits forever.
func WithAckTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.ackTimeout = d
	}
}

// WithReadyTimeout bounds the wait for "ready" after the port opens.
// Zero waits forever.
func WithReadyTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.readyTimeout = d
	}
}

// WithDiagnostics sets where lines from the loader that aren't acks go.
// Without it they are only logged at debug level.
func WithDiagnostics(w io.Writer) Option {
	return func(s *Session) {
		s.diag = w
	}
}

func WithProgress(pf ProgressFunc) Option {
	return func(s *Session) {
		s.progress = pf
	}
}

// NewSession starts a session on a freshly opened transport. The loader
// has to announce itself with AwaitReady before anything can be sent.
func NewSession(t Transport, opts ...Option) *Session {
	s := &Session{
		t:            t,
		state:        AwaitingReady,
		ackTimeout:   defaultAckTimeout,
		readyTimeout: defaultReadyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	return s.state
}

// Close ends the session, closing the transport if it can be closed.
func (s *Session) Close() error {
	if s.state == Closed {
		return nil
	}
	s.state = Closed
	if c, ok := s.t.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Session) begin(op State) error {
	if s.state != Idle {
		return &StateError{Op: op, State: s.state}
	}
	s.state = op
	return nil
}

// end returns the session to idle. After any error the loader is in an
// unknown state (it may still be waiting for a block) so the session is
// unusable.
func (s *Session) end(err error) error {
	if err != nil {
		s.state = Failed
		log.Error().Err(err).Msg("session failed")
		return err
	}
	s.state = Idle
	return nil
}
