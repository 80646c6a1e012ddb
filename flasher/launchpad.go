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

package flasher

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/arduino/go-paths-helper"
	"github.com/arduino/launchpad-bootloader/attributes"
	"github.com/arduino/launchpad-bootloader/flash"
	"github.com/arduino/launchpad-bootloader/protocol"
	"github.com/sirupsen/logrus"
)

const (
	// WriteSize is the payload of a single WritePage command.
	WriteSize = 512
	// ReadSize is the largest range requested by a single ReadRange command.
	ReadSize = 4096
)

// Info is the identification string of a bootloader.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	// Raw is the string as sent by the bootloader.
	Raw string `json:"-"`
}

// Flasher talks to a running bootloader.
type Flasher struct {
	port             io.ReadWriter
	reader           *bufio.Reader
	progressCallback func(int)
}

// New returns a Flasher speaking over rw.
func New(rw io.ReadWriter) *Flasher {
	return &Flasher{
		port:   rw,
		reader: bufio.NewReader(timeoutReader{rw}),
	}
}

// Open opens the serial port the bootloader is attached to. A zero
// baudRate tries the standard baud rates in turn.
func Open(portAddress string, baudRate int, readTimeout time.Duration) (*Flasher, error) {
	port, err := openSerial(portAddress, baudRate, readTimeout)
	if err != nil {
		logrus.Error(err)
		return nil, err
	}
	return New(port), nil
}

// Close the port used by this flasher
func (f *Flasher) Close() error {
	if c, ok := f.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// SetProgressCallback sets a function receiving the upload progress in
// percent.
func (f *Flasher) SetProgressCallback(callback func(progress int)) {
	f.progressCallback = callback
}

// timeoutReader reports a read returning nothing, which is how a serial
// port signals its read timeout.
type timeoutReader struct {
	r io.Reader
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n == 0 && err == nil {
		err = FlasherError{err: "Timeout waiting for the bootloader"}
	}
	return n, err
}

// sendCommand sends the framed command over the port
func (f *Flasher) sendCommand(cmd protocol.Command) error {
	logrus.Debugf("sending command %s", cmd)
	buff := new(bytes.Buffer)
	if err := protocol.EncodeCommand(buff, cmd); err != nil {
		logrus.Error(err)
		return err
	}
	bufferData := buff.Bytes()
	for {
		sent, err := f.port.Write(bufferData)
		if err != nil {
			err = fmt.Errorf("writing data: %s", err)
			logrus.Error(err)
			return err
		}
		if sent == len(bufferData) {
			break
		}
		logrus.Debugf("Sent %d bytes out of %d", sent, len(bufferData))
		bufferData = bufferData[sent:]
	}
	return nil
}

// transact sends cmd and waits for a response with the expected code.
func (f *Flasher) transact(cmd protocol.Command, expected protocol.ResponseCode) (protocol.Response, error) {
	if err := f.sendCommand(cmd); err != nil {
		return protocol.Response{}, err
	}
	resp, err := protocol.ReadResponse(f.reader, int(cmd.Length))
	if err != nil {
		err = fmt.Errorf("reading %s response: %w", cmd.Code, err)
		logrus.Error(err)
		return resp, err
	}
	logrus.Debugf("received response %s", resp)
	if resp.Code != expected {
		err = FlasherError{err: fmt.Sprintf("%s: bootloader answered %s", cmd, resp.Code)}
		logrus.Error(err)
		return resp, err
	}
	return resp, nil
}

// Hello checks that a bootloader is listening. Any partially received
// frame on the device is discarded first.
func (f *Flasher) Hello() error {
	if err := f.Reset(); err != nil {
		return err
	}
	return f.Ping()
}

// Ping the bootloader.
func (f *Flasher) Ping() error {
	_, err := f.transact(protocol.Command{Code: protocol.CmdPing}, protocol.RespPong)
	return err
}

// Reset resynchronises the bootloader decoder. The bootloader does not
// answer.
func (f *Flasher) Reset() error {
	return f.sendCommand(protocol.Command{Code: protocol.CmdReset})
}

// Info reads the bootloader identification string.
func (f *Flasher) Info() (*Info, error) {
	resp, err := f.transact(protocol.Command{Code: protocol.CmdInfo}, protocol.RespInfo)
	if err != nil {
		return nil, err
	}
	info := &Info{Raw: resp.Info}
	if err := json.Unmarshal([]byte(resp.Info), info); err != nil {
		logrus.WithError(err).Debug("Bootloader info is not JSON")
	}
	return info, nil
}

// ErasePage erases the flash page at address.
func (f *Flasher) ErasePage(address uint32) error {
	_, err := f.transact(protocol.Command{Code: protocol.CmdErasePage, Address: address}, protocol.RespOk)
	return err
}

// WritePage writes data at address. len(data) must be a multiple of 4.
func (f *Flasher) WritePage(address uint32, data []byte) error {
	if len(data)+4 > protocol.BufferSize {
		return FlasherError{err: fmt.Sprintf("page of %d bytes exceeds the bootloader buffer", len(data))}
	}
	_, err := f.transact(protocol.Command{Code: protocol.CmdWritePage, Address: address, Data: data}, protocol.RespOk)
	return err
}

// ReadRange reads length bytes of flash starting at address.
func (f *Flasher) ReadRange(address uint32, length uint16) ([]byte, error) {
	resp, err := f.transact(protocol.Command{Code: protocol.CmdReadRange, Address: address, Length: uint32(length)}, protocol.RespReadRange)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Read reads length bytes of flash starting at address with as many
// ReadRange commands as needed.
func (f *Flasher) Read(address, length uint32) ([]byte, error) {
	data := make([]byte, 0, length)
	for uint32(len(data)) < length {
		n := min(length-uint32(len(data)), ReadSize)
		chunk, err := f.ReadRange(address+uint32(len(data)), uint16(n))
		if err != nil {
			return nil, err
		}
		data = append(data, chunk...)
	}
	return data, nil
}

// GetAttribute reads the attribute stored at index.
func (f *Flasher) GetAttribute(index uint8) (attributes.Attribute, error) {
	resp, err := f.transact(protocol.Command{Code: protocol.CmdGetAttr, Index: index}, protocol.RespGetAttr)
	if err != nil {
		return attributes.Attribute{}, err
	}
	return resp.Attribute, nil
}

// Attributes reads the whole attribute table.
func (f *Flasher) Attributes() (*attributes.Table, error) {
	var table attributes.Table
	for i := range table {
		attr, err := f.GetAttribute(uint8(i))
		if err != nil {
			return nil, err
		}
		table[i] = attr
	}
	return &table, nil
}

// CrcIntFlash asks the bootloader for the CRC-32 of a flash range.
func (f *Flasher) CrcIntFlash(address, length uint32) (uint32, error) {
	resp, err := f.transact(protocol.Command{Code: protocol.CmdCrcIntFlash, Address: address, Length: length}, protocol.RespCrcIntFlash)
	if err != nil {
		return 0, err
	}
	return resp.CRC, nil
}

// FlashFirmware writes firmwareFile at address and verifies it. address
// must be page aligned.
func (f *Flasher) FlashFirmware(firmwareFile *paths.Path, address uint32, flasherOut io.Writer) (*FlashResult, error) {
	logrus.Infof("Flashing firmware %s", firmwareFile)
	fmt.Fprintf(flasherOut, "Flashing firmware %s\n", firmwareFile)
	if !flash.IsAligned(address, flash.PageSize) {
		err := FlasherError{err: fmt.Sprintf("address 0x%08x is not aligned to a %d bytes page", address, flash.PageSize)}
		logrus.Error(err)
		return nil, err
	}
	if err := f.Hello(); err != nil {
		logrus.Error(err)
		return nil, err
	}
	info, err := f.Info()
	if err != nil {
		return nil, err
	}

	logrus.Debugf("Reading file %s", firmwareFile)
	data, err := firmwareFile.ReadFile()
	if err != nil {
		logrus.Error(err)
		return nil, err
	}
	if len(data) == 0 {
		err = FlasherError{err: fmt.Sprintf("firmware file %s is empty", firmwareFile)}
		logrus.Error(err)
		return nil, err
	}
	// Words are the write unit, pad with erased flash.
	padded := int(flash.AlignUp(uint32(len(data)), 4))
	for len(data) < padded {
		data = append(data, 0xFF)
	}

	if err := f.flashChunk(address, data); err != nil {
		return nil, err
	}

	logrus.Debugf("Checking crc")
	crc, err := f.CrcIntFlash(address, uint32(len(data)))
	if err != nil {
		return nil, err
	}
	if expected := crc32.ChecksumIEEE(data); crc != expected {
		err = FlasherError{err: fmt.Sprintf("CRC mismatch: bootloader reports 0x%08x, expected 0x%08x", crc, expected)}
		logrus.Error(err)
		return nil, err
	}
	logrus.Infof("Flashed all the things")
	fmt.Fprintln(flasherOut, "Flashing progress: 100%")
	return &FlashResult{
		Bootloader: info.Raw,
		Address:    address,
		Size:       len(data),
		CRC:        crc,
	}, nil
}

// flashChunk erases the pages covering buffer and writes it
func (f *Flasher) flashChunk(offset uint32, buffer []byte) error {
	bufferLength := len(buffer)
	end := offset + uint32(bufferLength)

	for page := offset; page < end; page += flash.PageSize {
		logrus.Debugf("Erasing page 0x%08x", page)
		if err := f.ErasePage(page); err != nil {
			return err
		}
	}

	for i := 0; i < bufferLength; i += WriteSize {
		progress := (i * 100) / bufferLength
		logrus.Debugf("Flashing chunk: %d%%", progress)
		if f.progressCallback != nil {
			f.progressCallback(progress)
		}
		if err := f.WritePage(offset+uint32(i), buffer[i:min(i+WriteSize, bufferLength)]); err != nil {
			return err
		}
	}
	if f.progressCallback != nil {
		f.progressCallback(100)
	}
	return nil
}
