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

package sim

import (
	"bytes"
	"context"

	"github.com/gmofishsauce/romload/pkg/host"
	"github.com/gmofishsauce/romload/pkg/proto"
	"github.com/pkg/errors"
)

// Verify reads back each block of image with ReadAt and compares the
// loader's dump lines against it. The final block is compared against
// its zero padding, the way Program wrote it.
func Verify(ctx context.Context, s *host.Session, image []byte) error {
	for addr := 0; addr < len(image); addr += proto.BlockSize {
		want := make([]byte, proto.BlockSize)
		copy(want, image[addr:])

		lines, err := s.ReadAt(ctx, uint16(addr))
		if err != nil {
			return err
		}
		var got []byte
		for _, line := range lines {
			_, data, err := ParseDumpLine(line)
			if err != nil {
				return err
			}
			got = append(got, data...)
		}
		if !bytes.Equal(want, got) {
			return errors.Errorf("verify: block at 0x%04X differs", addr)
		}
	}
	return nil
}
