// Copyright (c) Jeff Berkowitz 2021, 2026. All rights reserved.

package host

// Downloader for the EEPROM loader. The image is sent in 64 byte blocks
// starting at address 0, each preceded by a header naming its address.
// Both the header and the block must be acked before the next header goes
// out; there is no pipelining and no retry.

import (
	"context"
	"os"
	"time"

	"github.com/gmofishsauce/romload/pkg/proto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Progress is reported every proto.ProgressStep bytes and once at the end.
type Progress struct {
	Bytes   int // written so far
	Total   int // padded image size
	Elapsed time.Duration
}

type ProgressFunc func(Progress)

type Stats struct {
	Blocks  int
	Bytes   int
	Elapsed time.Duration
}

// LoadImage reads an image file, rejecting files larger than the device.
func LoadImage(path string) ([]byte, error) {
	image, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(image) > proto.ImageSize {
		return nil, &ImageTooLargeError{Size: len(image), Max: proto.ImageSize}
	}
	return image, nil
}

// ReadFile reads a whole file into memory.
func ReadFile(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileAccessError{Path: path, Err: err}
	}
	return content, nil
}

// PaddedSize is the number of bytes Program sends for an n byte image.
func PaddedSize(n int) int {
	return (n + proto.BlockSize - 1) / proto.BlockSize * proto.BlockSize
}

// WriteBlock writes one 64 byte block at address.
func (s *Session) WriteBlock(ctx context.Context, address uint16, payload []byte) error {
	if len(payload) != proto.BlockSize {
		return BlockSizeError(len(payload))
	}
	if err := s.begin(Writing); err != nil {
		return err
	}
	return s.end(s.writeBlock(ctx, address, payload))
}

// Program writes image to the device from address 0. A short final block
// is padded with zeros.
func (s *Session) Program(ctx context.Context, image []byte) (Stats, error) {
	var stats Stats
	if len(image) > proto.ImageSize {
		return stats, &ImageTooLargeError{Size: len(image), Max: proto.ImageSize}
	}
	if err := s.begin(Writing); err != nil {
		return stats, err
	}

	total := PaddedSize(len(image))
	log.Info().Int("bytes", len(image)).Int("blocks", total/proto.BlockSize).Msg("programming")

	start := time.Now()
	block := make([]byte, proto.BlockSize)
	for addr := 0; addr < len(image); addr += proto.BlockSize {
		n := copy(block, image[addr:])
		for i := n; i < proto.BlockSize; i++ {
			block[i] = 0
		}
		if err := s.writeBlock(ctx, uint16(addr), block); err != nil {
			stats.Elapsed = time.Since(start)
			return stats, s.end(err)
		}
		stats.Blocks++
		stats.Bytes += proto.BlockSize
		if stats.Bytes%proto.ProgressStep == 0 || stats.Bytes == total {
			s.reportProgress(Progress{Bytes: stats.Bytes, Total: total, Elapsed: time.Since(start)})
		}
	}
	stats.Elapsed = time.Since(start)
	log.Info().Int("blocks", stats.Blocks).Dur("elapsed", stats.Elapsed).Msg("programming complete")
	return stats, s.end(nil)
}

// writeBlock does the header / ack / block / ack exchange. The caller
// owns the session state.
func (s *Session) writeBlock(ctx context.Context, address uint16, payload []byte) error {
	log.Debug().Uint16("address", address).Msg("writing block")
	if _, err := s.t.Write(proto.Header(address, proto.OpWrite)); err != nil {
		return &BlockError{address, errors.Wrap(err, "header")}
	}
	if err := s.waitFor(ctx, proto.TokenOK, s.ackTimeout, true); err != nil {
		return &BlockError{address, errors.Wrap(err, "header ack")}
	}
	if _, err := s.t.Write(payload); err != nil {
		return &BlockError{address, errors.Wrap(err, "payload")}
	}
	if err := s.waitFor(ctx, proto.TokenOK, s.ackTimeout, true); err != nil {
		return &BlockError{address, errors.Wrap(err, "payload ack")}
	}
	return nil
}

func (s *Session) reportProgress(p Progress) {
	if s.progress != nil {
		s.progress(p)
		return
	}
	log.Info().Int("bytes", p.Bytes).Int("total", p.Total).Dur("elapsed", p.Elapsed).Msg("progress")
}
