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

// Package board describes the hardware the bootloader runs on: a byte
// transport, the tri-colour LED and a millisecond delay.
package board

import "fmt"

// Led is one colour of the Launchpad tri-colour LED.
type Led uint8

// The three LEDs, on PF1, PF2 and PF3.
const (
	Red Led = iota
	Blue
	Green
)

func (l Led) String() string {
	switch l {
	case Red:
		return "red"
	case Blue:
		return "blue"
	case Green:
		return "green"
	}
	return fmt.Sprintf("led(%d)", uint8(l))
}

// Board is what the dispatcher and the fault policy need from the
// hardware.
type Board interface {
	// TryReadByte returns the next received byte if one is available. It
	// never blocks.
	TryReadByte() (byte, bool)
	// WriteByte transmits one byte, blocking until the transport accepts
	// it.
	WriteByte(b byte) error
	LedOn(led Led)
	LedOff(led Led)
	// Delay busy-waits for ms milliseconds.
	Delay(ms uint32)
}

// Flusher is implemented by boards that buffer transmitted bytes.
type Flusher interface {
	Flush() error
}
