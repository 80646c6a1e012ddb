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

package flash_test

import (
	"errors"
	"testing"

	"github.com/arduino/launchpad-bootloader/flash"
	"github.com/arduino/launchpad-bootloader/flash/simflash"
	"github.com/stretchr/testify/require"
)

type chunkCall struct {
	addr  uint32
	words []uint32
}

// recorder counts hardware calls and forwards them to an emulated flash.
type recorder struct {
	mem       *simflash.Memory
	erases    []uint32
	chunks    []chunkCall
	failChunk int // 1-based index of the chunk write that fails, 0 never
}

func (r *recorder) ErasePage(addr uint32) error {
	r.erases = append(r.erases, addr)
	return r.mem.ErasePage(addr)
}

func (r *recorder) WriteChunk(addr uint32, words []uint32) error {
	r.chunks = append(r.chunks, chunkCall{addr: addr, words: append([]uint32(nil), words...)})
	if r.failChunk == len(r.chunks) {
		return errors.New("program verify failed")
	}
	return r.mem.WriteChunk(addr, words)
}

func newEngine() (*flash.Engine, *recorder) {
	layout := flash.Launchpad
	mem := simflash.New(layout.Flash.Start, layout.Flash.Size())
	rec := &recorder{mem: mem}
	engine, err := flash.New(rec, mem, layout)
	if err != nil {
		panic(err)
	}
	return engine, rec
}

func TestLayout(t *testing.T) {
	require.NoError(t, flash.Launchpad.Validate())

	bad := flash.Launchpad
	bad.Writable.Start = 0x3000
	require.Error(t, bad.Validate())

	bad = flash.Launchpad
	bad.Writable.End = 0x50000
	require.Error(t, bad.Validate())

	bad = flash.Launchpad
	bad.Writable.Start = 0x4200
	require.Error(t, bad.Validate())

	engine, err := flash.New(simflash.New(0, 0x1000), simflash.New(0, 0x1000), bad)
	require.Nil(t, engine)
	var lerr *flash.LayoutError
	require.ErrorAs(t, err, &lerr)

	r := flash.Region{Start: 0x100, End: 0x200}
	require.True(t, r.Contains(0x100, 0x100))
	require.True(t, r.Contains(0x200, 0))
	require.False(t, r.Contains(0x1FF, 2))
	require.False(t, r.Contains(0xFF, 1))
	require.False(t, r.Contains(0x100, 0xFFFFFFFF))
}

func TestAlignment(t *testing.T) {
	require.True(t, flash.IsAligned(uint32(0x4000), flash.PageSize))
	require.False(t, flash.IsAligned(uint32(0x4004), flash.PageSize))
	require.Equal(t, uint32(0x400), flash.AlignUp(uint32(1), flash.PageSize))
	require.Equal(t, uint32(0x400), flash.AlignUp(uint32(0x400), flash.PageSize))
	require.Equal(t, uint(512), flash.AlignUp(uint(300), 256))
}

func TestErasePage(t *testing.T) {
	engine, rec := newEngine()

	require.NoError(t, engine.ErasePage(0x4000))
	require.NoError(t, engine.ErasePage(0x3FC00))
	require.Equal(t, []uint32{0x4000, 0x3FC00}, rec.erases)

	for _, addr := range []uint32{0x0, 0x400, 0x3C00, 0x40000, 0xFFFFFC00} {
		err := engine.ErasePage(addr)
		require.ErrorIs(t, err, flash.ErrInvalidAddress, "address 0x%08x", addr)
	}
	require.ErrorIs(t, engine.ErasePage(0x4004), flash.ErrMisaligned)
	require.ErrorIs(t, engine.ErasePage(0x4200), flash.ErrMisaligned)
	require.Len(t, rec.erases, 2, "rejected erases must not reach the hardware")

	var ferr *flash.Error
	require.ErrorAs(t, engine.ErasePage(0x0), &ferr)
	require.Equal(t, "erase", ferr.Op)
	require.Equal(t, uint32(0), ferr.Addr)
}

func TestWritePageChunking(t *testing.T) {
	for _, n := range []int{1, 2, 31, 32, 33, 64, 100, 128, 256} {
		engine, rec := newEngine()
		words := make([]uint32, n)
		for i := range words {
			words[i] = uint32(i)
		}
		require.NoError(t, engine.WritePage(0x8000, words))

		want := (n + flash.PageLengthWords - 1) / flash.PageLengthWords
		require.Len(t, rec.chunks, want, "%d words", n)
		for i, c := range rec.chunks {
			require.Equal(t, uint32(0x8000+i*flash.ChunkSize), c.addr)
			if i < want-1 {
				require.Len(t, c.words, flash.PageLengthWords)
			}
		}
		last := rec.chunks[want-1]
		require.Len(t, last.words, n-(want-1)*flash.PageLengthWords)
		require.Equal(t, uint32(n-1), last.words[len(last.words)-1])
	}
}

func TestWritePageRejects(t *testing.T) {
	engine, rec := newEngine()

	require.ErrorIs(t, engine.WritePage(0x8004, []uint32{0}), flash.ErrMisaligned)
	require.ErrorIs(t, engine.WritePage(0x0, []uint32{0}), flash.ErrInvalidAddress)
	require.ErrorIs(t, engine.WritePage(0x3F80, []uint32{0}), flash.ErrInvalidAddress)
	// Starts inside the region but runs past its end.
	require.ErrorIs(t, engine.WritePage(0x3FF80, make([]uint32, 64)), flash.ErrInvalidAddress)
	require.Empty(t, rec.chunks, "rejected writes must not reach the hardware")

	// An empty write still needs an address inside the region.
	require.ErrorIs(t, engine.WritePage(0x40000, nil), flash.ErrInvalidAddress)
	require.ErrorIs(t, engine.WritePage(0x3F80, nil), flash.ErrInvalidAddress)

	require.NoError(t, engine.WritePage(0x4000, nil))
	require.Empty(t, rec.chunks)
}

func TestWritePageStopsOnFailure(t *testing.T) {
	engine, rec := newEngine()
	rec.failChunk = 2

	words := make([]uint32, 128)
	err := engine.WritePage(0x4000, words)
	require.ErrorIs(t, err, flash.ErrHardware)

	var ferr *flash.Error
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, uint32(0x4000+flash.ChunkSize), ferr.Addr)
	require.Len(t, rec.chunks, 2)

	// The first chunk stays written.
	require.Equal(t, make([]byte, flash.ChunkSize), rec.mem.View(0x4000, flash.ChunkSize))
	require.Equal(t, byte(simflash.Blank), rec.mem.View(0x4000+flash.ChunkSize, 1)[0])
}

func TestChecksum(t *testing.T) {
	engine, rec := newEngine()
	require.NoError(t, rec.mem.Program(0x4000, make([]byte, 4)))
	require.NoError(t, rec.mem.Program(0x5000, []byte("123456789")))

	crc, err := engine.Checksum(0x4000, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(0x00000000), crc)

	crc, err = engine.Checksum(0x4000, 4)
	require.NoError(t, err)
	require.Equal(t, uint32(0x2144DF1C), crc)

	crc, err = engine.Checksum(0x5000, 9)
	require.NoError(t, err)
	require.Equal(t, uint32(0xCBF43926), crc)

	// Checksums may cover the bootloader itself.
	_, err = engine.Checksum(0x0, 0x4000)
	require.NoError(t, err)

	_, err = engine.Checksum(0x3FFFF, 2)
	require.ErrorIs(t, err, flash.ErrOutOfBounds)
}

func TestReadRange(t *testing.T) {
	engine, rec := newEngine()
	require.NoError(t, rec.mem.Program(0x100, []byte{0xDE, 0xAD, 0xBE, 0xEF}))

	data, err := engine.ReadRange(0x100, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, data)

	data, err = engine.ReadRange(0x100, 0)
	require.NoError(t, err)
	require.Empty(t, data)

	_, err = engine.ReadRange(0x3FFFF, 2)
	require.ErrorIs(t, err, flash.ErrOutOfBounds)
}

func TestPackWords(t *testing.T) {
	words, err := flash.PackWords(nil, []byte{1, 2, 3, 4, 0xFC, 0, 0, 0x80})
	require.NoError(t, err)
	require.Equal(t, []uint32{0x04030201, 0x800000FC}, words)

	words, err = flash.PackWords(make([]uint32, 0, 8), nil)
	require.NoError(t, err)
	require.Empty(t, words)

	for _, n := range []int{1, 2, 3, 5, 511} {
		_, err := flash.PackWords(nil, make([]byte, n))
		require.ErrorIs(t, err, flash.ErrUnalignedLength)
	}
}

func TestUnmappedMemory(t *testing.T) {
	// Only the first 4 KiB are backed.
	mem := simflash.New(0, 0x1000)
	engine, err := flash.New(mem, mem, flash.Launchpad)
	require.NoError(t, err)

	_, err = engine.Checksum(0x0, 0x1000)
	require.NoError(t, err)
	_, err = engine.Checksum(0x0, 0x1001)
	require.ErrorIs(t, err, flash.ErrOutOfBounds)
	_, err = engine.ReadRange(0x2000, 4)
	require.ErrorIs(t, err, flash.ErrOutOfBounds)
}
