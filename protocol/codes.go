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

// Package protocol implements the serial framing spoken between the
// bootloader and the host tool.
//
// Host to device, a frame is the escaped payload followed by the two byte
// trailer Escape, command code. Device to host, a frame is the header
// Escape, response code followed by the escaped payload. Escaping doubles
// every Escape byte found in a payload. Multi-byte fields are little
// endian.
package protocol

import "fmt"

// Escape marks a frame boundary; a literal 0xFC in a payload is sent twice.
const Escape byte = 0xFC

const (
	// BufferSize is the capacity of the device side frame buffer.
	BufferSize = 520
	// InfoSize is the size of the text carried by an Info response.
	InfoSize = 192
)

// CommandCode identifies a host request.
type CommandCode byte

// Commands understood by the decoder.
const (
	CmdPing                CommandCode = 0x01
	CmdInfo                CommandCode = 0x03
	CmdReset               CommandCode = 0x05
	CmdErasePage           CommandCode = 0x06
	CmdWritePage           CommandCode = 0x07
	CmdEraseExBlock        CommandCode = 0x08
	CmdWriteExPage         CommandCode = 0x09
	CmdCrcRxBuffer         CommandCode = 0x10
	CmdReadRange           CommandCode = 0x11
	CmdExReadRange         CommandCode = 0x12
	CmdSetAttr             CommandCode = 0x13
	CmdGetAttr             CommandCode = 0x14
	CmdCrcIntFlash         CommandCode = 0x15
	CmdCrcExtFlash         CommandCode = 0x16
	CmdEraseExPage         CommandCode = 0x17
	CmdExtFlashInit        CommandCode = 0x18
	CmdClockOut            CommandCode = 0x19
	CmdWriteFlashUserPages CommandCode = 0x20
	CmdChangeBaud          CommandCode = 0x21
)

var commandNames = map[CommandCode]string{
	CmdPing:                "Ping",
	CmdInfo:                "Info",
	CmdReset:               "Reset",
	CmdErasePage:           "ErasePage",
	CmdWritePage:           "WritePage",
	CmdEraseExBlock:        "EraseExBlock",
	CmdWriteExPage:         "WriteExPage",
	CmdCrcRxBuffer:         "CrcRxBuffer",
	CmdReadRange:           "ReadRange",
	CmdExReadRange:         "ExReadRange",
	CmdSetAttr:             "SetAttr",
	CmdGetAttr:             "GetAttr",
	CmdCrcIntFlash:         "CrcIntFlash",
	CmdCrcExtFlash:         "CrcExtFlash",
	CmdEraseExPage:         "EraseExPage",
	CmdExtFlashInit:        "ExtFlashInit",
	CmdClockOut:            "ClockOut",
	CmdWriteFlashUserPages: "WriteFlashUserPages",
	CmdChangeBaud:          "ChangeBaud",
}

func (c CommandCode) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(0x%02x)", byte(c))
}

// ResponseCode identifies a device reply.
type ResponseCode byte

// Responses produced by the device.
const (
	RespOverflow      ResponseCode = 0x10
	RespPong          ResponseCode = 0x11
	RespBadAddress    ResponseCode = 0x12
	RespInternalError ResponseCode = 0x13
	RespBadArguments  ResponseCode = 0x14
	RespOk            ResponseCode = 0x15
	RespUnknown       ResponseCode = 0x16
	RespReadRange     ResponseCode = 0x20
	RespGetAttr       ResponseCode = 0x22
	RespCrcIntFlash   ResponseCode = 0x23
	RespInfo          ResponseCode = 0x25
)

var responseNames = map[ResponseCode]string{
	RespOverflow:      "Overflow",
	RespPong:          "Pong",
	RespBadAddress:    "BadAddress",
	RespInternalError: "InternalError",
	RespBadArguments:  "BadArguments",
	RespOk:            "Ok",
	RespUnknown:       "Unknown",
	RespReadRange:     "ReadRange",
	RespGetAttr:       "GetAttr",
	RespCrcIntFlash:   "CrcIntFlash",
	RespInfo:          "Info",
}

func (r ResponseCode) String() string {
	if name, ok := responseNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Response(0x%02x)", byte(r))
}
