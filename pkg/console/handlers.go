// Copyright (c) Jeff Berkowitz 2021, 2026. All rights reserved.

package console

// Local commands. These are typed at the console like anything else but
// are handled here instead of being sent to the loader.
//
// "local upload" writes 256 bytes of a file straight down the wire: no
// header, no acks. It only makes sense after the user has typed whatever
// command puts the loader into raw receive mode. The loader's receive
// buffer is small, so the data goes in four 64 byte blocks with a pause
// after each one instead of flow control.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gmofishsauce/romload/pkg/host"
	"github.com/gmofishsauce/romload/pkg/proto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	localPrefix  = "local"
	uploadBlocks = 4
	uploadSize   = uploadBlocks * proto.BlockSize
)

// MalformedCommandError is a local command we couldn't make sense of.
// It is reported, never sent to the loader.
type MalformedCommandError struct {
	Line string
}

func (mce *MalformedCommandError) Error() string {
	return fmt.Sprintf("%s: unknown or malformed local command (try \"local help\")", mce.Line)
}

// UploadRangeError means the file is too short for a 256 byte upload
// at the requested offset.
type UploadRangeError struct {
	Path   string
	Offset int
	Size   int
}

func (ure *UploadRangeError) Error() string {
	return fmt.Sprintf("%s: upload of %d bytes at 0x%04X runs past end of file (%d bytes)",
		ure.Path, uploadSize, ure.Offset, ure.Size)
}

type localCommand struct {
	usage   string
	pattern *regexp.Regexp
	handler func(c *Console, args []string) error
}

// Because of Golang's "initialization loop" restriction, help can't be
// in the table literal: it refers to the table. It is filled in by init.
func seeInitBelow(c *Console, args []string) error {
	return nil
}

var localCommands = []localCommand{
	{"local help", regexp.MustCompile(`^local\s+help\s*$`), seeInitBelow},
	{"local upload <path> <hhhh>", regexp.MustCompile(`^local\s+upload\s+(\S+)\s+([0-9A-Fa-f]{4})\s*$`), upload},
}

func init() {
	localCommands[0].handler = help
}

func isLocal(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && fields[0] == localPrefix
}

func (c *Console) local(line string) error {
	for _, cmd := range localCommands {
		if m := cmd.pattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			return cmd.handler(c, m[1:])
		}
	}
	return &MalformedCommandError{Line: strings.TrimSpace(line)}
}

// isUserError separates mistakes worth telling the user about from
// failures of the link itself.
func isUserError(err error) bool {
	var mce *MalformedCommandError
	var ure *UploadRangeError
	var fae *host.FileAccessError
	return errors.As(err, &mce) || errors.As(err, &ure) || errors.As(err, &fae)
}

func help(c *Console, args []string) error {
	c.printf("local commands:\n")
	for _, cmd := range localCommands {
		c.printf("  %s\n", cmd.usage)
	}
	return nil
}

func upload(c *Console, args []string) error {
	return c.localUpload(args[0], args[1])
}

func (c *Console) localUpload(path string, offsetHex string) error {
	content, err := host.ReadFile(path)
	if err != nil {
		return err
	}
	n, err := strconv.ParseUint(offsetHex, 16, 16)
	if err != nil {
		return &MalformedCommandError{Line: "local upload " + path + " " + offsetHex}
	}
	offset := int(n)
	if offset+uploadSize > len(content) {
		return &UploadRangeError{Path: path, Offset: offset, Size: len(content)}
	}

	log.Debug().Str("path", path).Int("offset", offset).Msg("local upload")
	for i := 0; i < uploadBlocks; i++ {
		start := offset + i*proto.BlockSize
		if _, err := c.tx.Write(content[start : start+proto.BlockSize]); err != nil {
			return errors.Wrapf(err, "local upload block %d", i)
		}
		time.Sleep(c.blockPause)
	}
	c.printf("uploaded %d bytes of %s from 0x%04X\n", uploadSize, path, offset)
	return nil
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}
