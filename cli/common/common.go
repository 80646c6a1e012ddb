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

package common

import (
	"fmt"
	"strconv"
	"time"

	"github.com/arduino/launchpad-bootloader/cli/arguments"
	"github.com/arduino/launchpad-bootloader/cli/feedback"
	"github.com/arduino/launchpad-bootloader/flasher"
	"github.com/sirupsen/logrus"
)

// CheckFlags runs a basic check, errors if the flags are not defined
func CheckFlags(flags arguments.Flags) {
	if flags.Address == "" {
		feedback.Fatal("Error: missing bootloader address", feedback.ErrBadArgument)
	}
	if flags.Timeout < 1 {
		feedback.Fatal("Error: timeout should be at least 1 second", feedback.ErrBadArgument)
	}
	logrus.Debugf("address: %s, baudrate: %d", flags.Address, flags.BaudRate)
}

// OpenFlasher connects to the bootloader described by flags and checks
// that it is answering.
func OpenFlasher(flags arguments.Flags) *flasher.Flasher {
	CheckFlags(flags)
	f, err := flasher.Open(flags.Address, flags.BaudRate, time.Duration(flags.Timeout)*time.Second)
	if err != nil {
		feedback.Fatal(fmt.Sprintf("Error opening %s: %s", flags.Address, err), feedback.ErrGeneric)
	}
	if err := f.Hello(); err != nil {
		f.Close()
		feedback.Fatal(fmt.Sprintf("No bootloader answering on %s: %s", flags.Address, err), feedback.ErrGeneric)
	}
	return f
}

// ParseAddress parses a flash address given in decimal, 0x hex or 0 octal.
func ParseAddress(flag, value string) uint32 {
	addr, err := strconv.ParseUint(value, 0, 32)
	if err != nil {
		feedback.Fatal(fmt.Sprintf("Invalid --%s value %q: %s", flag, value, err), feedback.ErrBadArgument)
	}
	return uint32(addr)
}
