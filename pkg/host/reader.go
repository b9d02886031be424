// Copyright (c) Jeff Berkowitz 2021, 2026. All rights reserved.

package host

import (
	"context"
	"fmt"
	"strings"

	"github.com/gmofishsauce/romload/pkg/proto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ReadAt asks the loader to report on address. After acking the header
// the loader sends any number of text lines and then "ok". The lines are
// passed to the diagnostic writer as they arrive and also returned.
func (s *Session) ReadAt(ctx context.Context, address uint16) ([]string, error) {
	if err := s.begin(Reading); err != nil {
		return nil, err
	}
	lines, err := s.readAt(ctx, address)
	return lines, s.end(err)
}

func (s *Session) readAt(ctx context.Context, address uint16) ([]string, error) {
	log.Debug().Uint16("address", address).Msg("reading")
	if _, err := s.t.Write(proto.Header(address, proto.OpRead)); err != nil {
		return nil, &BlockError{address, errors.Wrap(err, "header")}
	}
	if err := s.waitFor(ctx, proto.TokenOK, s.ackTimeout, false); err != nil {
		return nil, &BlockError{address, errors.Wrap(err, "header ack")}
	}

	var lines []string
	for {
		line, err := s.nextLine(ctx, proto.TokenOK, s.ackTimeout)
		if err != nil {
			return lines, &BlockError{address, errors.Wrap(err, "read response")}
		}
		if strings.HasPrefix(line, proto.TokenOK) {
			return lines, nil
		}
		lines = append(lines, line)
		if s.diag != nil {
			fmt.Fprintln(s.diag, line)
		}
	}
}
