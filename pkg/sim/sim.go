/*
Copyright © 2023 Jeff Berkowitz (pdxjjb@gmail.com)

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package sim simulates the EEPROM loader firmware: a 32K memory behind
// the same header / ack / block protocol the Arduino speaks. It runs in
// process and answers synchronously, so a read never has to wait for the
// loader. An empty ReadLine means the loader has nothing more to say.

package sim

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gmofishsauce/romload/pkg/proto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const dumpWidth = 16

var ErrClosed = errors.New("simulated device closed")

type phase int

const (
	wantHeader phase = iota
	wantBlock
)

type Device struct {
	mu     sync.Mutex
	mem    [proto.ImageSize]byte
	out    bytes.Buffer // lines for the host
	in     []byte       // bytes of the command being received
	phase  phase
	addr   uint16
	closed bool

	Headers int // headers received
	Blocks  int // blocks stored
}

// New returns a device that has just come out of reset: its memory is
// erased (0xFF) and it has already said "ready".
func New() *Device {
	d := &Device{}
	for i := range d.mem {
		d.mem[i] = 0xFF
	}
	d.println(proto.TokenReady)
	return d
}

// Write feeds bytes to the loader.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	for _, b := range p {
		d.in = append(d.in, b)
		switch {
		case d.phase == wantHeader && len(d.in) == proto.HeaderSize:
			d.header()
		case d.phase == wantBlock && len(d.in) == proto.BlockSize:
			d.block()
		}
	}
	return len(p), nil
}

// ReadLine returns the next line the loader has sent, or nil if there
// is none.
func (d *Device) ReadLine() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if d.out.Len() == 0 {
		return nil, nil
	}
	line, err := d.out.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, nil
	}
	return line, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Chatter queues a diagnostic line, as the firmware's debug prints do.
func (d *Device) Chatter(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.println(line)
}

// Memory returns a copy of the simulated EEPROM.
func (d *Device) Memory() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := make([]byte, len(d.mem))
	copy(m, d.mem[:])
	return m
}

func (d *Device) header() {
	d.Headers++
	d.addr = (uint16(d.in[0]) | uint16(d.in[1])<<8) & (proto.ImageSize - 1)
	op := d.in[2]
	d.in = d.in[:0]

	switch op {
	case proto.OpWrite:
		d.println(proto.TokenOK)
		d.phase = wantBlock
	case proto.OpRead:
		d.println(proto.TokenOK)
		for i := 0; i < proto.BlockSize; i += dumpWidth {
			d.println(d.dumpLine(d.addr + uint16(i)))
		}
		d.println(proto.TokenOK)
	default:
		// The real loader ignores the header; the host times out.
		log.Warn().Uint8("op", op).Msg("sim: unknown opcode")
		d.println(fmt.Sprintf("bad opcode 0x%02X", op))
	}
}

func (d *Device) block() {
	for i, b := range d.in {
		d.mem[(int(d.addr)+i)&(proto.ImageSize-1)] = b
	}
	d.Blocks++
	d.in = d.in[:0]
	d.phase = wantHeader
	d.println(proto.TokenOK)
}

func (d *Device) dumpLine(addr uint16) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%04X:", addr)
	for i := 0; i < dumpWidth; i++ {
		fmt.Fprintf(&sb, " %02X", d.mem[(int(addr)+i)&(proto.ImageSize-1)])
	}
	return sb.String()
}

func (d *Device) println(s string) {
	d.out.WriteString(s)
	d.out.WriteByte('\n')
}

// ParseDumpLine decodes a line of the form "AAAA: xx xx ...", as sent by
// the loader in response to a read.
func ParseDumpLine(line string) (uint16, []byte, error) {
	addrText, rest, found := strings.Cut(line, ":")
	if !found {
		return 0, nil, errors.Errorf("dump line %q: no address", line)
	}
	addr, err := strconv.ParseUint(strings.TrimSpace(addrText), 16, 16)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "dump line %q", line)
	}
	var data []byte
	for _, field := range strings.Fields(rest) {
		b, err := strconv.ParseUint(field, 16, 8)
		if err != nil {
			return 0, nil, errors.Wrapf(err, "dump line %q", line)
		}
		data = append(data, byte(b))
	}
	return uint16(addr), data, nil
}
