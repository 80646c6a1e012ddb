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

// Package attributes holds the identification records baked into the
// bootloader image: a fixed table of key/value attributes preceded by the
// "bootloader present" marker and the bootloader version.
package attributes

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	// KeySize is the fixed size of an attribute key.
	KeySize = 8
	// ValueSize is the capacity of an attribute value.
	ValueSize = 47
	// RecordSize is the persisted size of one attribute.
	RecordSize = KeySize + 1 + ValueSize
	// Slots is the number of attributes in the table.
	Slots = 16
)

// ErrBadIndex is returned when an attribute index is not below Slots.
var ErrBadIndex = errors.New("attribute index out of range")

// Attribute is a single key/value record. An all-zero record is a blank
// slot.
type Attribute struct {
	Key    [KeySize]byte
	Length uint8
	Value  [ValueSize]byte
}

// New builds an attribute from a key of at most KeySize bytes and a value
// of at most ValueSize bytes.
func New(key, value string) (Attribute, error) {
	var a Attribute
	if key == "" {
		return a, errors.New("attribute key is empty")
	}
	if len(key) > KeySize {
		return a, fmt.Errorf("attribute key %q is longer than %d bytes", key, KeySize)
	}
	if len(value) > ValueSize {
		return a, fmt.Errorf("value of attribute %q is longer than %d bytes", key, ValueSize)
	}
	copy(a.Key[:], key)
	copy(a.Value[:], value)
	a.Length = uint8(len(value))
	return a, nil
}

// MustNew is like New but panics on error. It is meant for tables built at
// package initialisation.
func MustNew(key, value string) Attribute {
	a, err := New(key, value)
	if err != nil {
		panic(err)
	}
	return a
}

// KeyString returns the key without its NUL padding.
func (a *Attribute) KeyString() string {
	return string(bytes.TrimRight(a.Key[:], "\x00"))
}

// ValueBytes returns the declared portion of the value.
func (a *Attribute) ValueBytes() []byte {
	return a.Value[:min(int(a.Length), ValueSize)]
}

// IsBlank reports whether the slot is unused.
func (a *Attribute) IsBlank() bool {
	return *a == Attribute{}
}

func (a *Attribute) String() string {
	if a.IsBlank() {
		return "<blank>"
	}
	return fmt.Sprintf("%s=%s", a.KeyString(), a.ValueBytes())
}

// Table is the ordered, fixed-size attribute table.
type Table [Slots]Attribute

// Get returns the attribute stored at index. Blank slots are returned as
// they are; only an index past the table is an error.
func (t *Table) Get(index uint8) (Attribute, error) {
	if int(index) >= len(t) {
		return Attribute{}, ErrBadIndex
	}
	return t[index], nil
}

var defaultTable = Table{
	MustNew("board", "stellaris launchpad"),
	MustNew("arch", "cortex-m4"),
	MustNew("jldevice", "LM4F120H5QR"),
	MustNew("appaddr", "0x4000"),
	MustNew("pagesize", "1024"),
}

// Default returns a copy of the compiled-in attribute table.
func Default() *Table {
	t := defaultTable
	return &t
}
