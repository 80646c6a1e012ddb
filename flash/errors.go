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
	"errors"
	"fmt"
)

var (
	// ErrInvalidAddress is returned when a mutation targets an address
	// outside the writable region.
	ErrInvalidAddress = errors.New("address outside the writable region")
	// ErrMisaligned is returned when an erase is not page aligned or a
	// write is not chunk aligned.
	ErrMisaligned = errors.New("address is not aligned")
	// ErrOutOfBounds is returned when a read or checksum would leave the
	// physical flash.
	ErrOutOfBounds = errors.New("range outside the physical flash")
	// ErrUnalignedLength is returned when a byte buffer cannot be packed
	// into whole 32-bit words.
	ErrUnalignedLength = errors.New("data length is not a multiple of 4")
	// ErrHardware wraps a failure reported by the flash controller.
	ErrHardware = errors.New("flash controller failure")
)

// Error reports a failed flash operation.
type Error struct {
	Op   string
	Addr uint32
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("flash %s at 0x%08x: %s", e.Op, e.Addr, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// LayoutError reports an inconsistent Layout.
type LayoutError struct {
	Reason string
}

func (e *LayoutError) Error() string {
	return "invalid flash layout: " + e.Reason
}
