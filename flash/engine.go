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

package flash

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/sirupsen/logrus"
)

// Hardware is the flash controller. Implementations perform exactly the
// requested operation; all validation happens in the Engine.
type Hardware interface {
	// ErasePage erases the page starting at addr to the blank value.
	ErasePage(addr uint32) error
	// WriteChunk programs at most PageLengthWords words starting at addr.
	WriteChunk(addr uint32, words []uint32) error
}

// Memory gives read access to the flash contents.
type Memory interface {
	// View returns the length bytes starting at addr, or nil if the range
	// cannot be mapped. The slice must not be modified and is only valid
	// until the next mutation.
	View(addr, length uint32) []byte
}

// Engine performs validated, chunked flash mutations and reads.
type Engine struct {
	hw     Hardware
	mem    Memory
	layout Layout
}

// New returns an Engine driving hw and reading through mem. The layout is
// validated first.
func New(hw Hardware, mem Memory, layout Layout) (*Engine, error) {
	if err := layout.Validate(); err != nil {
		logrus.Error(err)
		return nil, err
	}
	return &Engine{hw: hw, mem: mem, layout: layout}, nil
}

// Layout returns the address layout the engine enforces.
func (e *Engine) Layout() Layout {
	return e.layout
}

// ErasePage erases the page starting at addr. addr must be page aligned and
// the whole page must lie in the writable region.
func (e *Engine) ErasePage(addr uint32) error {
	if !e.layout.Writable.Contains(addr, PageSize) {
		return &Error{Op: "erase", Addr: addr, Err: ErrInvalidAddress}
	}
	if !IsAligned(addr, PageSize) {
		return &Error{Op: "erase", Addr: addr, Err: ErrMisaligned}
	}
	if err := e.hw.ErasePage(addr); err != nil {
		logrus.WithError(err).Errorf("Erasing page 0x%08x", addr)
		return &Error{Op: "erase", Addr: addr, Err: fmt.Errorf("%w: %w", ErrHardware, err)}
	}
	return nil
}

// WritePage writes words starting at addr, one hardware chunk of at most
// PageLengthWords words at a time. addr must be chunk aligned and the whole
// span must lie in the writable region; addr itself must be inside it even
// when words is empty. The first failing chunk stops the operation; chunks
// already written are left in place.
func (e *Engine) WritePage(addr uint32, words []uint32) error {
	if !IsAligned(addr, uint32(ChunkSize)) {
		return &Error{Op: "write", Addr: addr, Err: ErrMisaligned}
	}
	if addr < e.layout.Writable.Start || addr >= e.layout.Writable.End ||
		uint64(len(words))*4 > uint64(e.layout.Writable.Size()) ||
		!e.layout.Writable.Contains(addr, uint32(len(words))*4) {
		return &Error{Op: "write", Addr: addr, Err: ErrInvalidAddress}
	}

	for len(words) > 0 {
		n := min(len(words), PageLengthWords)
		length := uint32(n) * 4
		if !e.layout.Writable.Contains(addr, length) {
			return &Error{Op: "write", Addr: addr, Err: ErrInvalidAddress}
		}
		if err := e.hw.WriteChunk(addr, words[:n]); err != nil {
			logrus.WithError(err).Errorf("Writing chunk at 0x%08x", addr)
			return &Error{Op: "write", Addr: addr, Err: fmt.Errorf("%w: %w", ErrHardware, err)}
		}
		addr += length
		words = words[n:]
	}
	return nil
}

// Checksum computes the IEEE CRC-32 of length bytes starting at addr, the
// variant the host tool expects (zero seed, inverted register, inverted
// output). Only the physical flash bound is checked.
func (e *Engine) Checksum(addr, length uint32) (uint32, error) {
	if !e.layout.Flash.Contains(addr, length) {
		return 0, &Error{Op: "crc", Addr: addr, Err: ErrOutOfBounds}
	}
	if length == 0 {
		return crc32.ChecksumIEEE(nil), nil
	}
	data, err := e.view("crc", addr, length)
	if err != nil {
		return 0, err
	}
	return crc32.ChecksumIEEE(data), nil
}

// ReadRange returns a read-only view of length bytes starting at addr.
func (e *Engine) ReadRange(addr uint32, length uint16) ([]byte, error) {
	if !e.layout.Flash.Contains(addr, uint32(length)) {
		return nil, &Error{Op: "read", Addr: addr, Err: ErrOutOfBounds}
	}
	if length == 0 {
		return nil, nil
	}
	return e.view("read", addr, uint32(length))
}

// view returns the bytes at addr, failing if the memory cannot map the
// whole range.
func (e *Engine) view(op string, addr, length uint32) ([]byte, error) {
	data := e.mem.View(addr, length)
	if uint32(len(data)) != length {
		return nil, &Error{Op: op, Addr: addr, Err: ErrOutOfBounds}
	}
	return data, nil
}

// PackWords packs data into little endian 32-bit words, reusing dst.
func PackWords(dst []uint32, data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return nil, ErrUnalignedLength
	}
	dst = dst[:0]
	for i := 0; i < len(data); i += 4 {
		dst = append(dst, binary.LittleEndian.Uint32(data[i:]))
	}
	return dst, nil
}
