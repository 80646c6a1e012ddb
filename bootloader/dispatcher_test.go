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

package bootloader_test

import (
	"bytes"
	"context"
	"errors"
	"hash/crc32"
	"io"
	"testing"
	"time"

	"github.com/arduino/launchpad-bootloader/attributes"
	"github.com/arduino/launchpad-bootloader/board"
	"github.com/arduino/launchpad-bootloader/bootloader"
	"github.com/arduino/launchpad-bootloader/flash"
	"github.com/arduino/launchpad-bootloader/flash/simflash"
	"github.com/arduino/launchpad-bootloader/protocol"
	"github.com/stretchr/testify/require"
)

// fakeBoard serves queued input bytes and collects the output.
type fakeBoard struct {
	in      []byte
	out     bytes.Buffer
	leds    map[board.Led]bool
	flushes int
}

func (b *fakeBoard) TryReadByte() (byte, bool) {
	if len(b.in) == 0 {
		return 0, false
	}
	c := b.in[0]
	b.in = b.in[1:]
	return c, true
}

func (b *fakeBoard) WriteByte(c byte) error { return b.out.WriteByte(c) }
func (b *fakeBoard) LedOn(l board.Led)      { b.leds[l] = true }
func (b *fakeBoard) LedOff(l board.Led)     { b.leds[l] = false }
func (b *fakeBoard) Delay(uint32)           {}
func (b *fakeBoard) Flush() error           { b.flushes++; return nil }

type chunkCall struct {
	addr  uint32
	words []uint32
}

// hardware records the calls reaching the flash controller.
type hardware struct {
	mem    *simflash.Memory
	erases []uint32
	chunks []chunkCall
	fail   bool
}

func (h *hardware) ErasePage(addr uint32) error {
	h.erases = append(h.erases, addr)
	return h.mem.ErasePage(addr)
}

func (h *hardware) WriteChunk(addr uint32, words []uint32) error {
	h.chunks = append(h.chunks, chunkCall{addr, append([]uint32(nil), words...)})
	if h.fail {
		return errors.New("flash controller error")
	}
	return h.mem.WriteChunk(addr, words)
}

type fixture struct {
	dispatcher *bootloader.Dispatcher
	board      *fakeBoard
	hw         *hardware
	mem        *simflash.Memory
}

func newFixture(opts ...bootloader.Option) *fixture {
	layout := flash.Launchpad
	mem := simflash.New(layout.Flash.Start, layout.Flash.Size())
	hw := &hardware{mem: mem}
	b := &fakeBoard{leds: map[board.Led]bool{}}
	engine, err := flash.New(hw, mem, layout)
	if err != nil {
		panic(err)
	}
	d := bootloader.New(&protocol.Codec{}, b, engine, attributes.Default(), opts...)
	return &fixture{dispatcher: d, board: b, hw: hw, mem: mem}
}

// exchange sends cmd, polls until the input is consumed and decodes the
// response.
func (f *fixture) exchange(t *testing.T, cmd protocol.Command) protocol.Response {
	require.NoError(t, protocol.EncodeCommand(sliceWriter{&f.board.in}, cmd))
	f.drain()
	resp, err := protocol.ReadResponse(&f.board.out, int(cmd.Length))
	require.NoError(t, err)
	require.Zero(t, f.board.out.Len(), "trailing output")
	return resp
}

func (f *fixture) drain() {
	for f.dispatcher.Poll() {
	}
}

type sliceWriter struct{ p *[]byte }

func (w sliceWriter) WriteByte(c byte) error {
	*w.p = append(*w.p, c)
	return nil
}

func TestPing(t *testing.T) {
	f := newFixture()
	resp := f.exchange(t, protocol.Command{Code: protocol.CmdPing})
	require.Equal(t, protocol.RespPong, resp.Code)
	require.Equal(t, 1, f.board.flushes)
}

func TestInfo(t *testing.T) {
	f := newFixture()
	resp := f.exchange(t, protocol.Command{Code: protocol.CmdInfo})
	require.Equal(t, protocol.RespInfo, resp.Code)
	require.Equal(t, bootloader.DefaultInfo, resp.Info)
	require.Contains(t, resp.Info, attributes.DefaultVersion)

	f = newFixture(bootloader.WithInfo("custom build"))
	resp = f.exchange(t, protocol.Command{Code: protocol.CmdInfo})
	require.Equal(t, "custom build", resp.Info)
}

func TestGetAttr(t *testing.T) {
	f := newFixture()
	resp := f.exchange(t, protocol.Command{Code: protocol.CmdGetAttr, Index: 0})
	require.Equal(t, protocol.RespGetAttr, resp.Code)
	require.Equal(t, "board", resp.Attribute.KeyString())
	require.Equal(t, []byte("stellaris launchpad"), resp.Attribute.ValueBytes())
	var want [attributes.ValueSize]byte
	copy(want[:], "stellaris launchpad")
	require.Equal(t, want, resp.Attribute.Value)

	resp = f.exchange(t, protocol.Command{Code: protocol.CmdGetAttr, Index: attributes.Slots - 1})
	require.Equal(t, protocol.RespGetAttr, resp.Code)
	require.True(t, resp.Attribute.IsBlank())

	for _, index := range []uint8{attributes.Slots, 100, 255} {
		resp = f.exchange(t, protocol.Command{Code: protocol.CmdGetAttr, Index: index})
		require.Equal(t, protocol.RespBadArguments, resp.Code)
	}
}

func TestSetAttrRejected(t *testing.T) {
	f := newFixture()
	cmd := protocol.Command{Code: protocol.CmdSetAttr, Index: 6, Value: []byte("x")}
	copy(cmd.Key[:], "owner")
	resp := f.exchange(t, cmd)
	require.Equal(t, protocol.RespBadArguments, resp.Code)

	resp = f.exchange(t, protocol.Command{Code: protocol.CmdGetAttr, Index: 6})
	require.True(t, resp.Attribute.IsBlank())
}

func TestErasePage(t *testing.T) {
	f := newFixture()
	for _, addr := range []uint32{0x0000, 0x3C00, 0x4004, 0x40000, 0xFFFFFC00} {
		resp := f.exchange(t, protocol.Command{Code: protocol.CmdErasePage, Address: addr})
		require.Equal(t, protocol.RespBadArguments, resp.Code, "address 0x%x", addr)
	}
	require.Empty(t, f.hw.erases)

	require.NoError(t, f.mem.Program(0x4400, []byte{1, 2, 3, 4}))
	resp := f.exchange(t, protocol.Command{Code: protocol.CmdErasePage, Address: 0x4400})
	require.Equal(t, protocol.RespOk, resp.Code)
	require.Equal(t, []uint32{0x4400}, f.hw.erases)
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, f.mem.View(0x4400, 4))
	require.False(t, f.board.leds[board.Blue])
}

func TestWritePage(t *testing.T) {
	f := newFixture()
	resp := f.exchange(t, protocol.Command{Code: protocol.CmdWritePage, Address: 0x4000, Data: []byte{0, 0, 0, 0}})
	require.Equal(t, protocol.RespOk, resp.Code)
	require.Equal(t, []chunkCall{{0x4000, []uint32{0}}}, f.hw.chunks)

	resp = f.exchange(t, protocol.Command{Code: protocol.CmdCrcIntFlash, Address: 0x4000, Length: 4})
	require.Equal(t, protocol.RespCrcIntFlash, resp.Code)
	require.Equal(t, uint32(0x2144DF1C), resp.CRC)
}

func TestWritePageChunks(t *testing.T) {
	f := newFixture()
	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i)
	}
	resp := f.exchange(t, protocol.Command{Code: protocol.CmdWritePage, Address: 0x8000, Data: data})
	require.Equal(t, protocol.RespOk, resp.Code)
	require.Len(t, f.hw.chunks, 4)
	for i, c := range f.hw.chunks {
		require.Equal(t, uint32(0x8000+i*flash.ChunkSize), c.addr)
		require.Len(t, c.words, flash.PageLengthWords)
	}
	require.Equal(t, uint32(0x03020100), f.hw.chunks[0].words[0])
	require.Equal(t, data, f.mem.View(0x8000, 512))

	resp = f.exchange(t, protocol.Command{Code: protocol.CmdReadRange, Address: 0x8000, Length: 512})
	require.Equal(t, protocol.RespReadRange, resp.Code)
	require.Equal(t, data, resp.Data)
}

func TestWritePageRejected(t *testing.T) {
	f := newFixture()
	for _, cmd := range []protocol.Command{
		{Code: protocol.CmdWritePage, Address: 0x4000, Data: []byte{1, 2, 3}},
		{Code: protocol.CmdWritePage, Address: 0x4000, Data: []byte{1, 2, 3, 4, 5}},
		{Code: protocol.CmdWritePage, Address: 0x0000, Data: []byte{1, 2, 3, 4}},
		{Code: protocol.CmdWritePage, Address: 0x4004, Data: []byte{1, 2, 3, 4}},
		{Code: protocol.CmdWritePage, Address: 0x3FF80, Data: make([]byte, 256)},
		{Code: protocol.CmdWritePage, Address: 0x40000},
	} {
		resp := f.exchange(t, cmd)
		require.Equal(t, protocol.RespBadArguments, resp.Code, "%s", cmd)
	}
	require.Empty(t, f.hw.chunks)
}

func TestWritePageHardwareFailure(t *testing.T) {
	f := newFixture()
	f.hw.fail = true
	resp := f.exchange(t, protocol.Command{Code: protocol.CmdWritePage, Address: 0x4000, Data: make([]byte, 256)})
	require.Equal(t, protocol.RespBadArguments, resp.Code)
	require.Len(t, f.hw.chunks, 1)

	// The loop keeps serving requests.
	f.hw.fail = false
	resp = f.exchange(t, protocol.Command{Code: protocol.CmdPing})
	require.Equal(t, protocol.RespPong, resp.Code)
}

func TestCrcIntFlash(t *testing.T) {
	f := newFixture()
	resp := f.exchange(t, protocol.Command{Code: protocol.CmdCrcIntFlash, Address: 0x4000, Length: 0})
	require.Equal(t, protocol.RespCrcIntFlash, resp.Code)
	require.Equal(t, uint32(0), resp.CRC)

	resp = f.exchange(t, protocol.Command{Code: protocol.CmdCrcIntFlash, Address: 0x4000, Length: 0x100})
	require.Equal(t, crc32.ChecksumIEEE(bytes.Repeat([]byte{0xFF}, 0x100)), resp.CRC)

	// The bootloader region can be checked, the end of flash cannot be crossed.
	resp = f.exchange(t, protocol.Command{Code: protocol.CmdCrcIntFlash, Address: 0, Length: 0x4000})
	require.Equal(t, protocol.RespCrcIntFlash, resp.Code)
	resp = f.exchange(t, protocol.Command{Code: protocol.CmdCrcIntFlash, Address: 0x3FF00, Length: 0x200})
	require.Equal(t, protocol.RespBadArguments, resp.Code)
}

func TestReadRange(t *testing.T) {
	f := newFixture()
	block, err := attributes.DefaultBlock().MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, f.mem.Program(attributes.Offset, block))

	resp := f.exchange(t, protocol.Command{Code: protocol.CmdReadRange, Address: attributes.Offset, Length: attributes.BlockSize})
	require.Equal(t, protocol.RespReadRange, resp.Code)
	parsed, err := attributes.Parse(resp.Data)
	require.NoError(t, err)
	require.Equal(t, attributes.DefaultVersion, parsed.VersionString())

	resp = f.exchange(t, protocol.Command{Code: protocol.CmdReadRange, Address: 0x3FFFF, Length: 2})
	require.Equal(t, protocol.RespBadArguments, resp.Code)
}

func TestUnsupportedCommands(t *testing.T) {
	f := newFixture()
	for _, cmd := range []protocol.Command{
		{Code: protocol.CmdEraseExBlock, Address: 0},
		{Code: protocol.CmdWriteExPage, Address: 0, Data: []byte{1, 2, 3, 4}},
		{Code: protocol.CmdCrcRxBuffer},
		{Code: protocol.CmdExReadRange, Address: 0, Length: 4},
		{Code: protocol.CmdCrcExtFlash, Address: 0, Length: 4},
		{Code: protocol.CmdEraseExPage, Address: 0},
		{Code: protocol.CmdExtFlashInit},
		{Code: protocol.CmdClockOut},
		{Code: protocol.CmdWriteFlashUserPages},
		{Code: protocol.CmdChangeBaud, BaudMode: 1, Baud: 230400},
	} {
		require.NoError(t, protocol.EncodeCommand(sliceWriter{&f.board.in}, cmd))
		f.drain()
		resp, err := protocol.ReadResponse(&f.board.out, 0)
		require.NoError(t, err)
		require.Equal(t, protocol.RespUnknown, resp.Code, "%s", cmd)
	}
}

func TestDecodeErrorAnswered(t *testing.T) {
	f := newFixture()
	f.board.in = []byte{0x01, 0x02, 0xFC, 0x01}
	f.drain()
	resp, err := protocol.ReadResponse(&f.board.out, 0)
	require.NoError(t, err)
	require.Equal(t, protocol.RespInternalError, resp.Code)

	f.board.in = []byte{0xFC, 0x7E}
	f.drain()
	resp, err = protocol.ReadResponse(&f.board.out, 0)
	require.NoError(t, err)
	require.Equal(t, protocol.RespInternalError, resp.Code)

	resp = f.exchange(t, protocol.Command{Code: protocol.CmdPing})
	require.Equal(t, protocol.RespPong, resp.Code)
}

func TestResetIsSilent(t *testing.T) {
	f := newFixture()
	f.board.in = []byte{0x00, 0x40, 0xFC, 0x05}
	f.drain()
	require.Zero(t, f.board.out.Len())

	resp := f.exchange(t, protocol.Command{Code: protocol.CmdPing})
	require.Equal(t, protocol.RespPong, resp.Code)
}

// scriptedCodec returns canned results and records the calls it receives.
type scriptedCodec struct {
	calls   []string
	results map[byte]protocol.Command
}

func (c *scriptedCodec) Receive(b byte) (protocol.Command, bool, error) {
	c.calls = append(c.calls, "receive")
	cmd, ok := c.results[b]
	return cmd, ok, nil
}

func (c *scriptedCodec) Reset() {
	c.calls = append(c.calls, "reset")
}

func (c *scriptedCodec) Encode(w io.ByteWriter, r protocol.Response) error {
	c.calls = append(c.calls, "encode "+r.Code.String())
	return w.WriteByte(byte(r.Code))
}

func TestResetOrdering(t *testing.T) {
	codec := &scriptedCodec{results: map[byte]protocol.Command{
		1: {Code: protocol.CmdPing},
		5: {Code: protocol.CmdReset},
	}}
	b := &fakeBoard{in: []byte{1, 0, 5}, leds: map[board.Led]bool{}}
	mem := simflash.New(0, flash.Launchpad.Flash.Size())
	engine, err := flash.New(mem, mem, flash.Launchpad)
	require.NoError(t, err)
	d := bootloader.New(codec, b, engine, attributes.Default())

	for d.Poll() {
	}
	require.Equal(t, []string{"receive", "encode Pong", "receive", "receive", "reset"}, codec.calls)
	require.Equal(t, []byte{byte(protocol.RespPong)}, b.out.Bytes())
}

func TestRun(t *testing.T) {
	idles := 0
	f := newFixture(bootloader.WithIdle(func() { idles++ }))
	f.board.in = []byte{0xFC, 0x01}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := f.dispatcher.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Positive(t, idles)
	require.False(t, f.board.leds[board.Green])

	resp, err := protocol.ReadResponse(&f.board.out, 0)
	require.NoError(t, err)
	require.Equal(t, protocol.RespPong, resp.Code)
}
