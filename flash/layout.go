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

// Package flash implements the flash programming engine of the bootloader.
//
// The engine owns no state. Every operation validates the target range
// against the Layout before any hardware primitive is called: erase and
// write are confined to the writable application region, checksum and read
// are confined to the physical flash. Addresses are never clamped or
// aligned down; a misaligned or out of range request is rejected.
package flash

import (
	"golang.org/x/exp/constraints"
)

const (
	// PageSize is the erase granularity of the internal flash, in bytes.
	PageSize = 1024

	// PageLengthWords is the number of 32-bit words the hardware write
	// buffer accepts in a single write operation.
	PageLengthWords = 32

	// ChunkSize is the byte length of a full write chunk.
	ChunkSize = PageLengthWords * 4
)

// Region is the half-open address range [Start, End).
type Region struct {
	Start uint32
	End   uint32
}

// Size returns the number of bytes in the region.
func (r Region) Size() uint32 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether the range [addr, addr+length) lies entirely
// inside the region. The computation cannot overflow.
func (r Region) Contains(addr, length uint32) bool {
	if addr < r.Start || addr > r.End {
		return false
	}
	return length <= r.End-addr
}

// Overlaps reports whether the two regions share at least one byte.
func (r Region) Overlaps(o Region) bool {
	return r.Start < o.End && o.Start < r.End
}

// Layout describes the flash address space of a board.
type Layout struct {
	// Flash is the whole physical flash.
	Flash Region
	// Bootloader is the region holding the bootloader code and its
	// attribute block. It is never writable.
	Bootloader Region
	// Writable is the region reserved for the user application.
	Writable Region
}

// Launchpad is the layout of the LM4F120H5QR / TM4C123GH6PM: 256 KiB of
// flash, the first 16 KiB hold the bootloader.
var Launchpad = Layout{
	Flash:      Region{Start: 0x0000_0000, End: 0x0004_0000},
	Bootloader: Region{Start: 0x0000_0000, End: 0x0000_4000},
	Writable:   Region{Start: 0x0000_4000, End: 0x0004_0000},
}

// Validate checks the internal consistency of the layout.
func (l Layout) Validate() error {
	switch {
	case l.Flash.Size() == 0:
		return &LayoutError{Reason: "empty flash region"}
	case !l.Flash.Contains(l.Writable.Start, l.Writable.Size()):
		return &LayoutError{Reason: "writable region outside flash"}
	case l.Writable.Size() == 0:
		return &LayoutError{Reason: "empty writable region"}
	case l.Writable.Overlaps(l.Bootloader):
		return &LayoutError{Reason: "writable region overlaps the bootloader"}
	case !IsAligned(l.Writable.Start, PageSize) || !IsAligned(l.Writable.End, PageSize):
		return &LayoutError{Reason: "writable region is not page aligned"}
	}
	return nil
}

// IsAligned reports whether v is a multiple of to. to must be a power of two.
func IsAligned[T constraints.Unsigned](v, to T) bool {
	return v&(to-1) == 0
}

// AlignUp rounds v up to the next multiple of to. to must be a power of two.
func AlignUp[T constraints.Unsigned](v, to T) T {
	return (v + to - 1) &^ (to - 1)
}
