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

// Package simflash emulates the internal NOR flash of the board in memory,
// so the bootloader can run on a development host.
package simflash

import (
	"encoding/binary"
	"fmt"

	"github.com/arduino/go-paths-helper"
	"github.com/arduino/launchpad-bootloader/flash"
	"github.com/sirupsen/logrus"
)

// Blank is the value of an erased flash byte.
const Blank = 0xFF

// Memory is an emulated flash array. Erasing sets a page to Blank, writing
// can only clear bits, as on the real part.
type Memory struct {
	base uint32
	data []byte
}

// New returns a blank flash of size bytes mapped at base.
func New(base, size uint32) *Memory {
	m := &Memory{base: base, data: make([]byte, size)}
	for i := range m.data {
		m.data[i] = Blank
	}
	return m
}

// Load returns a flash of size bytes mapped at base, initialised with the
// content of the image file. A missing image yields a blank flash.
func Load(image *paths.Path, base, size uint32) (*Memory, error) {
	m := New(base, size)
	if image == nil || !image.Exist() {
		return m, nil
	}
	data, err := image.ReadFile()
	if err != nil {
		return nil, err
	}
	if len(data) > len(m.data) {
		return nil, fmt.Errorf("image %s is %d bytes, flash is only %d", image, len(data), len(m.data))
	}
	copy(m.data, data)
	logrus.Debugf("Loaded %d bytes of flash image from %s", len(data), image)
	return m, nil
}

// Save writes the whole flash content to the image file.
func (m *Memory) Save(image *paths.Path) error {
	if err := image.Parent().MkdirAll(); err != nil {
		return err
	}
	return image.WriteFile(m.data)
}

func (m *Memory) offset(addr, length uint32) (uint32, error) {
	if addr < m.base || addr-m.base > uint32(len(m.data)) || length > uint32(len(m.data))-(addr-m.base) {
		return 0, fmt.Errorf("range 0x%08x+%d outside emulated flash", addr, length)
	}
	return addr - m.base, nil
}

// ErasePage implements flash.Hardware.
func (m *Memory) ErasePage(addr uint32) error {
	off, err := m.offset(addr, flash.PageSize)
	if err != nil {
		return err
	}
	page := m.data[off : off+flash.PageSize]
	for i := range page {
		page[i] = Blank
	}
	return nil
}

// WriteChunk implements flash.Hardware.
func (m *Memory) WriteChunk(addr uint32, words []uint32) error {
	if len(words) > flash.PageLengthWords {
		return fmt.Errorf("chunk of %d words exceeds the write buffer", len(words))
	}
	off, err := m.offset(addr, uint32(len(words))*4)
	if err != nil {
		return err
	}
	var w [4]byte
	for i, word := range words {
		binary.LittleEndian.PutUint32(w[:], word)
		for j, b := range w {
			m.data[off+uint32(i*4+j)] &= b
		}
	}
	return nil
}

// View implements flash.Memory.
func (m *Memory) View(addr, length uint32) []byte {
	off, err := m.offset(addr, length)
	if err != nil {
		return nil
	}
	return m.data[off : off+length : off+length]
}

// Program copies p into the flash at addr regardless of its previous
// content, the way a debugger or the linker places the image.
func (m *Memory) Program(addr uint32, p []byte) error {
	off, err := m.offset(addr, uint32(len(p)))
	if err != nil {
		return err
	}
	copy(m.data[off:], p)
	return nil
}

// Bytes returns the whole flash content.
func (m *Memory) Bytes() []byte {
	return m.data
}
