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
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// FlasherError is an error reported by the bootloader or by the link to it.
type FlasherError struct {
	err string
}

func (e FlasherError) Error() string {
	return e.err
}

// ExecOutput is the output captured from one step of an upload.
type ExecOutput struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// FlashResult is the outcome of a firmware upload.
type FlashResult struct {
	Flasher *ExecOutput `json:"flasher,omitempty"`
	// Bootloader is the Info string of the bootloader that received the
	// firmware.
	Bootloader string `json:"bootloader,omitempty"`
	Address    uint32 `json:"address"`
	Size       int    `json:"size"`
	CRC        uint32 `json:"crc"`
}

func (r *FlashResult) String() string {
	return fmt.Sprintf("Flashed %d bytes at 0x%08x, CRC 0x%08x", r.Size, r.Address, r.CRC)
}

// Data implements feedback.Result interface
func (r *FlashResult) Data() interface{} {
	return r
}

// http://www.ni.com/product-documentation/54548/en/
// Standard baud rates supported by most serial ports
var baudRates = []int{
	115200,
	57600,
	56000,
	38400,
}

// openSerial opens the port at baudRate or, when baudRate is 0, at the
// first standard baud rate the port accepts.
func openSerial(portAddress string, baudRate int, readTimeout time.Duration) (serial.Port, error) {
	var lastError error

	rates := baudRates
	if baudRate != 0 {
		rates = []int{baudRate}
	}
	for _, baudRate := range rates {
		port, err := serial.Open(portAddress, &serial.Mode{BaudRate: baudRate})
		if err != nil {
			lastError = err
			// Try another baudrate
			continue
		}
		logrus.Infof("Opened port %s at %d", portAddress, baudRate)

		if err := port.SetReadTimeout(readTimeout); err != nil {
			err = fmt.Errorf("could not set timeout on serial port: %s", err)
			logrus.Error(err)
			port.Close()
			return nil, err
		}

		return port, nil
	}

	return nil, lastError
}
