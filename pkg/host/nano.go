// Copyright (c) Jeff Berkowitz 2021, 2026. All rights reserved.

package host

// Line protocol reader. Everything the loader sends is a line: "ready"
// once after reset, "ok" after each header and block, and free text
// diagnostics in between. The loader is allowed to chatter as much as it
// likes before the ack we want shows up.
//
// A dead loader used to hang the host forever. Now the wait ends with an
// AckTimeoutError if the loader goes completely quiet for longer than the
// timeout; any line at all restarts the clock. A zero timeout waits
// forever.

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gmofishsauce/romload/pkg/proto"
	"github.com/rs/zerolog/log"
)

// AwaitReady waits for the loader to announce itself after reset. The
// loader's boot chatter goes to the diagnostic writer.
func (s *Session) AwaitReady(ctx context.Context) error {
	if s.state != AwaitingReady {
		return &StateError{Op: AwaitingReady, State: s.state}
	}
	log.Debug().Msg("waiting for loader")
	if err := s.waitFor(ctx, proto.TokenReady, s.readyTimeout, true); err != nil {
		return s.end(err)
	}
	log.Info().Msg("loader ready")
	return s.end(nil)
}

// waitFor reads lines until one starts with token. Other lines are
// diagnostics: forwarded to the user if forward is set, otherwise
// only logged.
func (s *Session) waitFor(ctx context.Context, token string, timeout time.Duration, forward bool) error {
	for {
		line, err := s.nextLine(ctx, token, timeout)
		if err != nil {
			return err
		}
		if strings.HasPrefix(line, token) {
			return nil
		}
		s.diagnostic(line, forward)
	}
}

// nextLine returns the next non-empty line without its line ending.
// Empty reads (timeouts) are retried until the timeout for token has
// elapsed with nothing received.
func (s *Session) nextLine(ctx context.Context, token string, timeout time.Duration) (string, error) {
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, err := s.t.ReadLine()
		if err != nil {
			return "", err
		}
		line := strings.TrimRight(string(raw), "\r\n")
		if len(line) > 0 {
			return line, nil
		}
		if timeout > 0 && time.Since(start) >= timeout {
			return "", &AckTimeoutError{Token: token, Waited: timeout}
		}
	}
}

func (s *Session) diagnostic(line string, forward bool) {
	if forward && s.diag != nil {
		fmt.Fprintln(s.diag, line)
		return
	}
	log.Debug().Str("line", line).Msg("loader")
}
