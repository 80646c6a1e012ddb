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

// Command firmware is the bootloader image for the Launchpad. From the
// repository root:
//
//	launchpad-bootloader attributes build -i attributes.yaml -o firmware/attributes.ld
//	tinygo build -target=firmware/lm4f120.json -o bootloader.bin ./firmware
//
// lm4f120.ld places the attribute block of firmware/attributes.ld at
// attributes.Offset; the committed file carries the default table.
package main

import (
	"context"
	"io"

	"github.com/arduino/launchpad-bootloader/attributes"
	"github.com/arduino/launchpad-bootloader/board/launchpad"
	"github.com/arduino/launchpad-bootloader/bootloader"
	"github.com/arduino/launchpad-bootloader/fault"
	"github.com/arduino/launchpad-bootloader/flash"
	"github.com/arduino/launchpad-bootloader/flash/tinygoflash"
	"github.com/arduino/launchpad-bootloader/protocol"
	"github.com/sirupsen/logrus"
)

func main() {
	// Nothing to log to, the UART carries the protocol.
	logrus.SetOutput(io.Discard)

	b := launchpad.New(115200)
	policy := fault.New(b)
	defer policy.Recover()

	ctrl := tinygoflash.Controller{}
	engine, err := flash.New(ctrl, ctrl, flash.Launchpad)
	if err != nil {
		policy.Fail(err.Error())
	}

	block, err := attributes.Parse(ctrl.View(attributes.Offset, attributes.BlockSize))
	if err != nil {
		policy.Fail("attribute block: " + err.Error())
	}

	d := bootloader.New(&protocol.Codec{}, b, engine, &block.Table,
		bootloader.WithInfo(bootloader.InfoString(block.VersionString())))
	if err := d.Run(context.Background()); err != nil {
		policy.Fail("run loop exited: " + err.Error())
	}
	policy.Fail("run loop exited")
}
