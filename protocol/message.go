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

package protocol

import (
	"fmt"

	"github.com/arduino/launchpad-bootloader/attributes"
)

// Command is a decoded host request. Only the fields relevant to Code are
// set. Data and Value alias the decoder buffer and are valid until the next
// byte is fed to the decoder.
type Command struct {
	Code CommandCode

	// Address is the target of erase, write, read and CRC commands.
	Address uint32
	// Length is the u16 length of ReadRange/ExReadRange or the u32 length
	// of CrcIntFlash/CrcExtFlash.
	Length uint32
	// Data is the page content of WritePage/WriteExPage.
	Data []byte

	// Index, Key and Value describe GetAttr/SetAttr.
	Index uint8
	Key   [attributes.KeySize]byte
	Value []byte

	// Pages holds the two configuration words of WriteFlashUserPages.
	Pages [2]uint32

	// BaudMode and Baud describe ChangeBaud.
	BaudMode uint8
	Baud     uint32
}

func (c Command) String() string {
	switch c.Code {
	case CmdErasePage, CmdEraseExBlock, CmdEraseExPage:
		return fmt.Sprintf("%s{address: 0x%08x}", c.Code, c.Address)
	case CmdWritePage, CmdWriteExPage:
		return fmt.Sprintf("%s{address: 0x%08x, %d bytes}", c.Code, c.Address, len(c.Data))
	case CmdReadRange, CmdExReadRange, CmdCrcIntFlash, CmdCrcExtFlash:
		return fmt.Sprintf("%s{address: 0x%08x, length: %d}", c.Code, c.Address, c.Length)
	case CmdGetAttr, CmdSetAttr:
		return fmt.Sprintf("%s{index: %d}", c.Code, c.Index)
	case CmdChangeBaud:
		return fmt.Sprintf("%s{mode: %d, baud: %d}", c.Code, c.BaudMode, c.Baud)
	}
	return c.Code.String()
}

// Response is a device reply. Only the fields relevant to Code are set.
type Response struct {
	Code ResponseCode

	// Info is the build string of an Info response.
	Info string
	// Data is the content of a ReadRange response.
	Data []byte
	// Attribute is the record of a GetAttr response.
	Attribute attributes.Attribute
	// CRC is the checksum of a CrcIntFlash response.
	CRC uint32
}

func (r Response) String() string {
	switch r.Code {
	case RespReadRange:
		return fmt.Sprintf("%s{%d bytes}", r.Code, len(r.Data))
	case RespGetAttr:
		return fmt.Sprintf("%s{%s}", r.Code, &r.Attribute)
	case RespCrcIntFlash:
		return fmt.Sprintf("%s{crc: 0x%08x}", r.Code, r.CRC)
	case RespInfo:
		return fmt.Sprintf("%s{%q}", r.Code, r.Info)
	}
	return r.Code.String()
}
