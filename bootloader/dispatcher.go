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

// Package bootloader implements the command dispatcher: the run loop that
// pulls bytes from the board, decodes commands, drives the flash engine
// and the attribute table, and sends the responses back.
package bootloader

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/arduino/launchpad-bootloader/attributes"
	"github.com/arduino/launchpad-bootloader/board"
	"github.com/arduino/launchpad-bootloader/flash"
	"github.com/arduino/launchpad-bootloader/protocol"
	"github.com/sirupsen/logrus"
)

// DefaultInfo is the build string answered to Info commands.
var DefaultInfo = InfoString(attributes.DefaultVersion)

// InfoString returns the build string of a bootloader version.
func InfoString(version string) string {
	return fmt.Sprintf(`{"version":"%s", "name":"launchpad-bootloader"}`, version)
}

// ErrReadOnlyAttributes is the reason SetAttr commands are rejected.
var ErrReadOnlyAttributes = errors.New("attributes are read-only")

// Codec turns received bytes into commands and responses into bytes.
type Codec interface {
	// Receive feeds one byte and reports a command when it completes a
	// frame.
	Receive(b byte) (protocol.Command, bool, error)
	// Reset drops any partially decoded frame.
	Reset()
	// Encode writes the framed response to w.
	Encode(w io.ByteWriter, r protocol.Response) error
}

// Dispatcher is the device run loop. It owns the codec state; the flash
// engine and the attribute table are shared read-only collaborators.
type Dispatcher struct {
	codec  Codec
	board  board.Board
	engine *flash.Engine
	table  *attributes.Table
	info   string
	idle   func()
	log    logrus.FieldLogger

	words [protocol.BufferSize / 4]uint32
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithInfo sets the string answered to Info commands.
func WithInfo(info string) Option {
	return func(d *Dispatcher) { d.info = info }
}

// WithIdle sets a function called whenever no input byte is available.
func WithIdle(idle func()) Option {
	return func(d *Dispatcher) { d.idle = idle }
}

// WithLogger sets the logger used for command traces.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// New returns a dispatcher serving table and driving engine over b.
func New(codec Codec, b board.Board, engine *flash.Engine, table *attributes.Table, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		codec:  codec,
		board:  b,
		engine: engine,
		table:  table,
		info:   DefaultInfo,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run polls until ctx is done. On the device ctx is never cancelled and Run
// never returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.board.LedOn(board.Green)
	defer d.board.LedOff(board.Green)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.Poll()
	}
}

// Poll runs one iteration of the loop: it consumes at most one byte and,
// if that byte completes a frame, answers it before returning. It reports
// whether a byte was available.
func (d *Dispatcher) Poll() bool {
	b, ok := d.board.TryReadByte()
	if !ok {
		if d.idle != nil {
			d.idle()
		}
		return false
	}

	cmd, complete, err := d.codec.Receive(b)
	switch {
	case err != nil:
		d.log.WithError(err).Debug("Decoding command")
		d.send(protocol.Response{Code: protocol.RespInternalError})
	case complete:
		d.log.Debugf("Received %s", cmd)
		if resp, ok := d.handle(cmd); ok {
			d.send(resp)
		}
		if cmd.Code == protocol.CmdReset {
			d.codec.Reset()
		}
	}
	return true
}

func (d *Dispatcher) send(resp protocol.Response) {
	d.log.Debugf("Sending %s", resp)
	if err := d.codec.Encode(d.board, resp); err != nil {
		d.log.WithError(err).Error("Sending response")
		return
	}
	if f, ok := d.board.(board.Flusher); ok {
		if err := f.Flush(); err != nil {
			d.log.WithError(err).Error("Sending response")
		}
	}
}

func (d *Dispatcher) handle(cmd protocol.Command) (protocol.Response, bool) {
	switch cmd.Code {
	case protocol.CmdPing:
		return respond(protocol.RespPong)
	case protocol.CmdInfo:
		return protocol.Response{Code: protocol.RespInfo, Info: d.info}, true
	case protocol.CmdReset:
		return protocol.Response{}, false
	case protocol.CmdErasePage:
		d.board.LedOn(board.Blue)
		err := d.engine.ErasePage(cmd.Address)
		d.board.LedOff(board.Blue)
		return d.result(err)
	case protocol.CmdWritePage:
		words, err := flash.PackWords(d.words[:0], cmd.Data)
		if err != nil {
			return d.result(&flash.Error{Op: "write", Addr: cmd.Address, Err: err})
		}
		d.board.LedOn(board.Blue)
		err = d.engine.WritePage(cmd.Address, words)
		d.board.LedOff(board.Blue)
		return d.result(err)
	case protocol.CmdReadRange:
		data, err := d.engine.ReadRange(cmd.Address, uint16(cmd.Length))
		if err != nil {
			return d.result(err)
		}
		return protocol.Response{Code: protocol.RespReadRange, Data: data}, true
	case protocol.CmdCrcIntFlash:
		crc, err := d.engine.Checksum(cmd.Address, cmd.Length)
		if err != nil {
			return d.result(err)
		}
		return protocol.Response{Code: protocol.RespCrcIntFlash, CRC: crc}, true
	case protocol.CmdGetAttr:
		attr, err := d.table.Get(cmd.Index)
		if err != nil {
			return d.result(err)
		}
		return protocol.Response{Code: protocol.RespGetAttr, Attribute: attr}, true
	case protocol.CmdSetAttr:
		return d.result(ErrReadOnlyAttributes)
	}
	return respond(protocol.RespUnknown)
}

// result maps the outcome of a flash or attribute operation to a response.
func (d *Dispatcher) result(err error) (protocol.Response, bool) {
	if err != nil {
		d.log.WithError(err).Debug("Rejecting command")
		return respond(protocol.RespBadArguments)
	}
	return respond(protocol.RespOk)
}

func respond(code protocol.ResponseCode) (protocol.Response, bool) {
	return protocol.Response{Code: code}, true
}
