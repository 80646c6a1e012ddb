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

package attributes

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	semver "go.bug.st/relaxed-semver"
)

const (
	// Marker identifies a flash image that carries a bootloader.
	Marker = "TOCKBOOTLOADER"
	// VersionSize is the size of the NUL padded version string.
	VersionSize = 8
	// HeaderSize is the size of marker, version and reserved area.
	HeaderSize = 512
	// BlockSize is the persisted size of the whole attribute block.
	BlockSize = HeaderSize + Slots*RecordSize
	// Offset is where the linker places the block in the bootloader image.
	Offset = 0x400

	versionOffset = len(Marker)
)

// ErrNoMarker is returned when a block does not start with Marker.
var ErrNoMarker = errors.New("bootloader marker not found")

// DefaultVersion is the bootloader version stamped in the default block.
const DefaultVersion = "1.1.0"

// Block is the attribute block as stored in flash.
type Block struct {
	Version [VersionSize]byte
	Table   Table
}

// NewBlock returns a block stamping version over table. The version must
// be a valid semantic version of at most VersionSize bytes.
func NewBlock(version string, table *Table) (*Block, error) {
	if len(version) > VersionSize {
		return nil, fmt.Errorf("version %q is longer than %d bytes", version, VersionSize)
	}
	if _, err := semver.Parse(version); err != nil {
		return nil, fmt.Errorf("invalid bootloader version %q: %w", version, err)
	}
	b := &Block{Table: *table}
	copy(b.Version[:], version)
	return b, nil
}

// DefaultBlock returns the block carrying the compiled-in table.
func DefaultBlock() *Block {
	b, err := NewBlock(DefaultVersion, Default())
	if err != nil {
		panic(err)
	}
	return b
}

// VersionString returns the version without its NUL padding.
func (b *Block) VersionString() string {
	return string(bytes.TrimRight(b.Version[:], "\x00"))
}

// MarshalBinary encodes the block in its persisted layout.
func (b *Block) MarshalBinary() ([]byte, error) {
	data := make([]byte, BlockSize)
	copy(data, Marker)
	copy(data[versionOffset:], b.Version[:])
	for i := range b.Table {
		a := &b.Table[i]
		rec := data[HeaderSize+i*RecordSize:]
		copy(rec, a.Key[:])
		rec[KeySize] = a.Length
		copy(rec[KeySize+1:RecordSize], a.Value[:])
	}
	return data, nil
}

// MarshalLinkerScript encodes the block as linker script data statements,
// to be included in the output section reserved for it at Offset.
func (b *Block) MarshalLinkerScript() ([]byte, error) {
	data, err := b.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "/* attribute block %s, %d bytes */\n", b.VersionString(), len(data))
	for i := 0; i < len(data); i += 16 {
		for j := i; j < i+16; j += 4 {
			if j > i {
				buf.WriteByte(' ')
			}
			fmt.Fprintf(&buf, "LONG(0x%08x);", binary.LittleEndian.Uint32(data[j:]))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a block from its persisted layout. Bytes past
// BlockSize are ignored.
func (b *Block) UnmarshalBinary(data []byte) error {
	if len(data) < BlockSize {
		return fmt.Errorf("attribute block is %d bytes, want %d", len(data), BlockSize)
	}
	if string(data[:len(Marker)]) != Marker {
		return ErrNoMarker
	}
	copy(b.Version[:], data[versionOffset:versionOffset+VersionSize])
	for i := range b.Table {
		a := &b.Table[i]
		rec := data[HeaderSize+i*RecordSize : HeaderSize+(i+1)*RecordSize]
		copy(a.Key[:], rec[:KeySize])
		a.Length = rec[KeySize]
		copy(a.Value[:], rec[KeySize+1:])
	}
	return nil
}

// Parse decodes the block found at the start of view, typically a view of
// the flash at Offset.
func Parse(view []byte) (*Block, error) {
	b := &Block{}
	if err := b.UnmarshalBinary(view); err != nil {
		return nil, err
	}
	return b, nil
}
