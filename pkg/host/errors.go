// Copyright (c) Jeff Berkowitz 2021, 2026. All rights reserved.

package host

import (
	"fmt"
	"time"
)

// AckTimeoutError means the loader went quiet while we waited for Token.
type AckTimeoutError struct {
	Token  string
	Waited time.Duration
}

func (ate *AckTimeoutError) Error() string {
	return fmt.Sprintf("waiting for %q: no response after %v", ate.Token, ate.Waited)
}

// StateError is returned when an operation is attempted in a session
// state that doesn't allow it, e.g. writing before the loader is ready.
type StateError struct {
	Op    State
	State State
}

func (se *StateError) Error() string {
	return fmt.Sprintf("cannot start %s: session is %s", se.Op, se.State)
}

// BlockError carries the address of the block that failed so a caller
// can restart from there.
type BlockError struct {
	Address uint16
	Err     error
}

func (be *BlockError) Error() string {
	return fmt.Sprintf("block at 0x%04X: %v", be.Address, be.Err)
}

func (be *BlockError) Unwrap() error {
	return be.Err
}

type BlockSizeError int

func (bse BlockSizeError) Error() string {
	return fmt.Sprintf("block is %d bytes, must be exactly 64", int(bse))
}

// ImageTooLargeError rejects images that don't fit the 32K address space.
// Images are never truncated.
type ImageTooLargeError struct {
	Size int
	Max  int
}

func (itl *ImageTooLargeError) Error() string {
	return fmt.Sprintf("image is %d bytes, larger than the %d byte device", itl.Size, itl.Max)
}

// FileAccessError reports an image or upload file that couldn't be read.
type FileAccessError struct {
	Path string
	Err  error
}

func (fae *FileAccessError) Error() string {
	return fmt.Sprintf("reading %s: %v", fae.Path, fae.Err)
}

func (fae *FileAccessError) Unwrap() error {
	return fae.Err
}
