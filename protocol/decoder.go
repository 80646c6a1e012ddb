/*
	launchpad-bootloader
	Copyright (c) 2023 Arduino LLC.  All right reserved.

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/arduino/launchpad-bootloader/attributes"
)

var (
	// ErrOverflow is returned once for a frame that did not fit the buffer.
	ErrOverflow = errors.New("frame overflows the receive buffer")
	// ErrBadLength is returned when a payload does not match its command.
	ErrBadLength = errors.New("bad payload length")
	// ErrUnknownCommand is returned for a command code the decoder does not know.
	ErrUnknownCommand = errors.New("unknown command")
)

// DecodeError describes a frame the decoder could not turn into a Command.
type DecodeError struct {
	Code   CommandCode
	Length int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s (%d payload bytes): %s", e.Code, e.Length, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder turns the host byte stream into Commands one byte at a time. The
// zero value is ready to use; it never allocates.
type Decoder struct {
	buf      [BufferSize]byte
	n        int
	escaped  bool
	overflow bool
}

// Reset drops any partially received frame.
func (d *Decoder) Reset() {
	d.n = 0
	d.escaped = false
	d.overflow = false
}

// Receive feeds one byte. It reports a Command when b completes a frame,
// ok is false while the frame is still incomplete.
func (d *Decoder) Receive(b byte) (cmd Command, ok bool, err error) {
	if !d.escaped {
		if b == Escape {
			d.escaped = true
		} else {
			d.push(b)
		}
		return cmd, false, nil
	}

	d.escaped = false
	if b == Escape {
		d.push(Escape)
		return cmd, false, nil
	}

	payload := d.buf[:d.n]
	overflow := d.overflow
	d.n = 0
	d.overflow = false
	if overflow {
		return cmd, false, &DecodeError{Code: CommandCode(b), Length: len(payload), Err: ErrOverflow}
	}
	cmd, err = parse(CommandCode(b), payload)
	if err != nil {
		return cmd, false, err
	}
	return cmd, true, nil
}

func (d *Decoder) push(b byte) {
	if d.n == len(d.buf) {
		d.overflow = true
		return
	}
	d.buf[d.n] = b
	d.n++
}

func parse(code CommandCode, p []byte) (Command, error) {
	cmd := Command{Code: code}
	bad := func(err error) (Command, error) {
		return Command{}, &DecodeError{Code: code, Length: len(p), Err: err}
	}
	le := binary.LittleEndian

	switch code {
	case CmdPing, CmdInfo, CmdCrcRxBuffer, CmdExtFlashInit, CmdClockOut:
		if len(p) != 0 {
			return bad(ErrBadLength)
		}
	case CmdReset:
	case CmdErasePage, CmdEraseExBlock, CmdEraseExPage:
		if len(p) != 4 {
			return bad(ErrBadLength)
		}
		cmd.Address = le.Uint32(p)
	case CmdWritePage, CmdWriteExPage:
		if len(p) < 4 {
			return bad(ErrBadLength)
		}
		cmd.Address = le.Uint32(p)
		cmd.Data = p[4:]
	case CmdReadRange, CmdExReadRange:
		if len(p) != 6 {
			return bad(ErrBadLength)
		}
		cmd.Address = le.Uint32(p)
		cmd.Length = uint32(le.Uint16(p[4:]))
	case CmdSetAttr:
		const fixed = 1 + attributes.KeySize + 1
		if len(p) < fixed || len(p) != fixed+int(p[fixed-1]) {
			return bad(ErrBadLength)
		}
		cmd.Index = p[0]
		copy(cmd.Key[:], p[1:1+attributes.KeySize])
		cmd.Value = p[fixed:]
	case CmdGetAttr:
		if len(p) != 1 {
			return bad(ErrBadLength)
		}
		cmd.Index = p[0]
	case CmdCrcIntFlash, CmdCrcExtFlash:
		if len(p) != 8 {
			return bad(ErrBadLength)
		}
		cmd.Address = le.Uint32(p)
		cmd.Length = le.Uint32(p[4:])
	case CmdWriteFlashUserPages:
		if len(p) != 8 {
			return bad(ErrBadLength)
		}
		cmd.Pages = [2]uint32{le.Uint32(p), le.Uint32(p[4:])}
	case CmdChangeBaud:
		if len(p) != 5 {
			return bad(ErrBadLength)
		}
		cmd.BaudMode = p[0]
		cmd.Baud = le.Uint32(p[1:])
	default:
		return bad(ErrUnknownCommand)
	}
	return cmd, nil
}

// Codec is the device side codec: a Decoder plus the response encoder.
type Codec struct {
	Decoder
}

// Encode writes the framed response to w.
func (c *Codec) Encode(w io.ByteWriter, r Response) error {
	return EncodeResponse(w, r)
}
