// Copyright (c) Jeff Berkowitz 2021, 2026. All rights reserved.

// Package proto holds the constants shared between the host and the
// EEPROM loader firmware, plus the few helpers that put them on the wire.
// The firmware gets the same values from the C header written by protogen,
// so anything changed here requires a firmware rebuild.
package proto

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const (
	BaudRate    = 57600 // Note: change requires updating the Arduino firmware
	ReadTimeout = 1 * time.Second

	BlockSize    = 64
	ImageSize    = 0x8000
	HeaderSize   = 3
	MaxBlocks    = ImageSize / BlockSize
	ProgressStep = 0x1000
)

// Opcodes. The header is always three bytes; the two byte header of the
// very first loader firmware is not supported.
const (
	OpWrite byte = 0x00
	OpRead  byte = 0x01
)

// Ack tokens are newline terminated lines. Anything else the device
// sends is a diagnostic for the user.
const (
	TokenReady = "ready"
	TokenOK    = "ok"
)

// Header returns the command header for address and op: low byte,
// high byte, opcode.
func Header(address uint16, op byte) []byte {
	return []byte{byte(address & 0xFF), byte(address >> 8), op}
}

// SplitAddress returns the low and high bytes of address.
func SplitAddress(address uint16) (lo byte, hi byte) {
	return byte(address & 0xFF), byte(address >> 8)
}

// ParseAddress parses a hex address with or without a 0x prefix. The
// address must lie inside the image.
func ParseAddress(s string) (uint16, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, errors.Wrapf(err, "address %q", s)
	}
	if n >= ImageSize {
		return 0, errors.Errorf("address 0x%04X: outside the 0x%04X byte image", n, ImageSize)
	}
	return uint16(n), nil
}
