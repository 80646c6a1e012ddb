//go:build tinygo

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

package tinygoflash

import (
	"errors"
	"runtime/volatile"
	"unsafe"

	"github.com/arduino/launchpad-bootloader/flash"
)

const (
	flashCtrlBase = 0x400F_D000

	// wrKey unlocks FMC/FMC2 writes while BOOTCFG.KEY is set, the reset
	// default.
	wrKey = 0xA442 << 16

	fmcErase  = 1 << 1
	fmc2WrBuf = 1 << 0

	// FCRIS: access, voltage, invalid data, erase verify and program
	// verify errors.
	fcrisErrors = 1<<0 | 1<<9 | 1<<10 | 1<<11 | 1<<13
)

type flashCtrl struct {
	fma    volatile.Register32 // 0x000
	fmd    volatile.Register32 // 0x004
	fmc    volatile.Register32 // 0x008
	fcris  volatile.Register32 // 0x00C
	fcim   volatile.Register32 // 0x010
	fcmisc volatile.Register32 // 0x014
	_      [2]uint32
	fmc2   volatile.Register32 // 0x020
	_      [3]uint32
	fwbval volatile.Register32 // 0x030
	_      [51]uint32
	fwb    [flash.PageLengthWords]volatile.Register32 // 0x100
}

var ctrl = (*flashCtrl)(unsafe.Pointer(uintptr(flashCtrlBase)))

var (
	errErase = errors.New("erase failed")
	errWrite = errors.New("program failed")
)

// Controller is the on-chip flash: it implements flash.Hardware and
// flash.Memory over the memory mapped array.
type Controller struct{}

// ErasePage implements flash.Hardware.
func (Controller) ErasePage(addr uint32) error {
	clearErrors()
	ctrl.fma.Set(addr)
	ctrl.fmc.Set(wrKey | fmcErase)
	for ctrl.fmc.HasBits(fmcErase) {
	}
	if ctrl.fcris.Get()&fcrisErrors != 0 {
		return errErase
	}
	return nil
}

// WriteChunk implements flash.Hardware. addr is chunk aligned, so the
// buffered write covers exactly words.
func (Controller) WriteChunk(addr uint32, words []uint32) error {
	clearErrors()
	for i, w := range words {
		ctrl.fwb[i].Set(w)
	}
	ctrl.fma.Set(addr)
	ctrl.fmc2.Set(wrKey | fmc2WrBuf)
	for ctrl.fmc2.HasBits(fmc2WrBuf) {
	}
	if ctrl.fcris.Get()&fcrisErrors != 0 {
		return errWrite
	}
	return nil
}

// View implements flash.Memory over the memory mapped array, including
// the page at address zero.
func (Controller) View(addr, length uint32) []byte {
	return mapped(uintptr(addr), length)
}

func clearErrors() {
	ctrl.fcmisc.Set(fcrisErrors)
}
