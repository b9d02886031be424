// Copyright (c) Jeff Berkowitz 2021, 2026. All rights reserved.

// Package console is a simple serial console for the EEPROM loader. Type
// a line and press enter and it goes to the serial port; bytes from the
// loader are echoed as they arrive. Lines starting with "local" are not
// sent. They are commands for the console itself, the useful one being
// "local upload", which pushes part of a file down the wire raw.
//
// Two goroutines share the port. The echo goroutine only reads and the
// input loop only writes, each through its own handle, which is safe on
// a full duplex link without locking. Closing the port is what stops the
// echo goroutine.
package console

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"
)

const defaultBlockPause = 50 * time.Millisecond

type Console struct {
	rx     io.Reader
	tx     io.Writer
	closer io.Closer
	in     LineSource
	out    io.Writer

	blockPause time.Duration
}

type Option func(*Console)

// WithBlockPause sets the delay between the blocks of a local upload.
func WithBlockPause(d time.Duration) Option {
	return func(c *Console) {
		c.blockPause = d
	}
}

// New makes a console. rx and tx are the two halves of the serial link
// and closer closes it; in supplies the user's lines and out receives
// both the echo and the console's own messages.
func New(rx io.Reader, tx io.Writer, closer io.Closer, in LineSource, out io.Writer, opts ...Option) *Console {
	c := &Console{
		rx:         rx,
		tx:         tx,
		closer:     closer,
		in:         in,
		out:        &lockedWriter{w: out},
		blockPause: defaultBlockPause,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run runs the console until ctx is cancelled, input ends, or the link
// fails. The link is closed on return. The error is nil unless a write
// to the link failed.
func (c *Console) Run(ctx context.Context) error {
	var t tomb.Tomb
	t.Go(func() error {
		c.echo(&t)
		return nil
	})
	lines := pump(c.in, t.Dying())

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("console interrupted")
			break loop
		case <-t.Dying():
			// the echo loop saw the link close
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if err = c.process(line); err != nil {
				break loop
			}
		}
	}

	t.Kill(nil)
	if cerr := c.closer.Close(); cerr != nil {
		log.Debug().Err(cerr).Msg("closing link")
	}
	c.in.Close()
	t.Wait()
	return err
}

// echo copies whatever the loader sends to out until the link is closed.
// Reads time out regularly, which is when we notice the tomb is dying.
// Read errors just end the loop: closing the link is the normal way out.
func (c *Console) echo(t *tomb.Tomb) {
	buf := make([]byte, 256)
	for {
		select {
		case <-t.Dying():
			return
		default:
		}
		n, err := c.rx.Read(buf)
		if n > 0 {
			c.out.Write(buf[:n])
		}
		if err != nil {
			log.Debug().Err(err).Msg("echo loop done")
			return
		}
	}
}

// process handles one input line. Only a failed write to the link is
// returned; problems with local commands are reported to the user.
func (c *Console) process(line string) error {
	if isLocal(line) {
		err := c.local(line)
		if err != nil && isUserError(err) {
			c.printf("%v\n", err)
			return nil
		}
		return err
	}
	if _, err := c.tx.Write([]byte(line + "\n")); err != nil {
		return errors.Wrap(err, "console write")
	}
	return nil
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}
