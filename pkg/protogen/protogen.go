// Copyright (c) Jeff Berkowitz 2022, 2026. All rights reserved.

// Package protogen writes the loader protocol constants as a C header for
// the Arduino firmware build, so the host and the firmware can't disagree
// about block size, opcodes or tokens.
package protogen

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gmofishsauce/romload/pkg/proto"
)

const HeaderFile = "romload_protocol.h"

type define struct {
	name  string
	value string
}

var defines = []define{
	{"PROTOCOL_BAUD_RATE", fmt.Sprintf("%dUL", proto.BaudRate)},
	{"PROTOCOL_BLOCK_SIZE", fmt.Sprint(proto.BlockSize)},
	{"PROTOCOL_IMAGE_SIZE", fmt.Sprintf("0x%04X", proto.ImageSize)},
	{"PROTOCOL_HEADER_SIZE", fmt.Sprint(proto.HeaderSize)},
	{"PROTOCOL_OP_WRITE", fmt.Sprintf("0x%02X", proto.OpWrite)},
	{"PROTOCOL_OP_READ", fmt.Sprintf("0x%02X", proto.OpRead)},
	{"PROTOCOL_TOKEN_READY", fmt.Sprintf("%q", proto.TokenReady)},
	{"PROTOCOL_TOKEN_OK", fmt.Sprintf("%q", proto.TokenOK)},
}

// Generate writes the header to w.
func Generate(w io.Writer) error {
	lines := []string{
		"// Generated by romload protogen. DO NOT EDIT.",
		"#ifndef ROMLOAD_PROTOCOL_H",
		"#define ROMLOAD_PROTOCOL_H",
		"",
	}
	for _, d := range defines {
		lines = append(lines, fmt.Sprintf("#define %-24s %s", d.name, d.value))
	}
	lines = append(lines, "", "#endif // ROMLOAD_PROTOCOL_H")

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return errors.Wrap(err, "protogen")
		}
	}
	return nil
}

// GenerateFile writes the header to path.
func GenerateFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "protogen")
	}
	if err := Generate(f); err != nil {
		f.Close()
		return err
	}
	log.Info().Str("file", path).Msg("protocol header written")
	return f.Close()
}
