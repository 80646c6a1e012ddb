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

// ErrBadFrame is returned by ReadResponse when the stream does not start
// with a response header or a payload escape is broken.
var ErrBadFrame = errors.New("malformed response frame")

type escaper struct {
	w   io.ByteWriter
	err error
}

func (e *escaper) byte(b byte) {
	if e.err != nil {
		return
	}
	if e.err = e.w.WriteByte(b); e.err == nil && b == Escape {
		e.err = e.w.WriteByte(Escape)
	}
}

func (e *escaper) bytes(p []byte) {
	for _, b := range p {
		e.byte(b)
	}
}

func (e *escaper) uint16(v uint16) {
	var p [2]byte
	binary.LittleEndian.PutUint16(p[:], v)
	e.bytes(p[:])
}

func (e *escaper) uint32(v uint32) {
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], v)
	e.bytes(p[:])
}

// raw writes a frame marker, never escaped.
func (e *escaper) raw(b byte) {
	if e.err != nil {
		return
	}
	e.err = e.w.WriteByte(Escape)
	if e.err == nil {
		e.err = e.w.WriteByte(b)
	}
}

// EncodeResponse writes r as a device to host frame.
func EncodeResponse(w io.ByteWriter, r Response) error {
	e := &escaper{w: w}
	e.raw(byte(r.Code))
	switch r.Code {
	case RespInfo:
		var text [InfoSize]byte
		n := copy(text[:], r.Info)
		e.byte(byte(n))
		e.bytes(text[:])
	case RespReadRange:
		e.bytes(r.Data)
	case RespGetAttr:
		e.bytes(r.Attribute.Key[:])
		e.byte(r.Attribute.Length)
		e.bytes(r.Attribute.Value[:])
	case RespCrcIntFlash:
		e.uint32(r.CRC)
	}
	return e.err
}

// EncodeCommand writes c as a host to device frame.
func EncodeCommand(w io.ByteWriter, c Command) error {
	e := &escaper{w: w}
	switch c.Code {
	case CmdErasePage, CmdEraseExBlock, CmdEraseExPage:
		e.uint32(c.Address)
	case CmdWritePage, CmdWriteExPage:
		e.uint32(c.Address)
		e.bytes(c.Data)
	case CmdReadRange, CmdExReadRange:
		if c.Length > 0xFFFF {
			return fmt.Errorf("%s length %d does not fit 16 bits", c.Code, c.Length)
		}
		e.uint32(c.Address)
		e.uint16(uint16(c.Length))
	case CmdSetAttr:
		if len(c.Value) > attributes.ValueSize {
			return fmt.Errorf("attribute value is longer than %d bytes", attributes.ValueSize)
		}
		e.byte(c.Index)
		e.bytes(c.Key[:])
		e.byte(byte(len(c.Value)))
		e.bytes(c.Value)
	case CmdGetAttr:
		e.byte(c.Index)
	case CmdCrcIntFlash, CmdCrcExtFlash:
		e.uint32(c.Address)
		e.uint32(c.Length)
	case CmdWriteFlashUserPages:
		e.uint32(c.Pages[0])
		e.uint32(c.Pages[1])
	case CmdChangeBaud:
		e.byte(c.BaudMode)
		e.uint32(c.Baud)
	}
	e.raw(byte(c.Code))
	return e.err
}

// PayloadSize returns the payload length carried by a response with the
// given code. readLength is the length requested by the ReadRange command
// being answered.
func PayloadSize(code ResponseCode, readLength int) int {
	switch code {
	case RespInfo:
		return 1 + InfoSize
	case RespReadRange:
		return readLength
	case RespGetAttr:
		return attributes.RecordSize
	case RespCrcIntFlash:
		return 4
	}
	return 0
}

// ReadResponse reads one device to host frame from r.
func ReadResponse(r io.ByteReader, readLength int) (Response, error) {
	var resp Response
	b, err := r.ReadByte()
	if err != nil {
		return resp, err
	}
	if b != Escape {
		return resp, fmt.Errorf("%w: got 0x%02x instead of the frame marker", ErrBadFrame, b)
	}
	code, err := r.ReadByte()
	if err != nil {
		return resp, err
	}
	resp.Code = ResponseCode(code)

	payload := make([]byte, PayloadSize(resp.Code, readLength))
	for i := range payload {
		if payload[i], err = r.ReadByte(); err != nil {
			return resp, err
		}
		if payload[i] != Escape {
			continue
		}
		if next, err := r.ReadByte(); err != nil {
			return resp, err
		} else if next != Escape {
			return resp, fmt.Errorf("%w: unescaped 0x%02x in %s payload", ErrBadFrame, Escape, resp.Code)
		}
	}

	switch resp.Code {
	case RespInfo:
		n := min(int(payload[0]), InfoSize)
		resp.Info = string(payload[1 : 1+n])
	case RespReadRange:
		resp.Data = payload
	case RespGetAttr:
		a := &resp.Attribute
		copy(a.Key[:], payload[:attributes.KeySize])
		a.Length = payload[attributes.KeySize]
		copy(a.Value[:], payload[attributes.KeySize+1:])
	case RespCrcIntFlash:
		resp.CRC = binary.LittleEndian.Uint32(payload)
	}
	return resp, nil
}
