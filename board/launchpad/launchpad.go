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

package launchpad

import (
	"device/arm"
	"runtime/volatile"
	"unsafe"

	"github.com/arduino/launchpad-bootloader/board"
)

const (
	// ClockHz is the precision internal oscillator the core runs from
	// out of reset.
	ClockHz = 16_000_000

	sysctlBase = 0x400F_E000
	gpioABase  = 0x4000_4000
	gpioFBase  = 0x4002_5000
	uart0Base  = 0x4000_C000

	rcgcGPIO = 0x608
	rcgcUART = 0x618
	prGPIO   = 0xA08
	prUART   = 0xA18

	portA = 1 << 0
	portF = 1 << 5

	uartFrRXFE = 1 << 4
	uartFrTXFF = 1 << 5
	uartFrBUSY = 1 << 3

	uartLcrhWLen8 = 3 << 5
	uartLcrhFEN   = 1 << 4

	uartCtlEN  = 1 << 0
	uartCtlTXE = 1 << 8
	uartCtlRXE = 1 << 9

	// Busy loop iterations per millisecond, about four cycles each.
	loopsPerMs = ClockHz / 1000 / 4
)

type gpioPort struct {
	data  [256]volatile.Register32 // 0x000, address masked
	dir   volatile.Register32      // 0x400
	_     [7]uint32
	afsel volatile.Register32 // 0x420
	_     [62]uint32
	den   volatile.Register32 // 0x51C
	_     [3]uint32
	pctl  volatile.Register32 // 0x52C
}

type uart struct {
	dr   volatile.Register32 // 0x000
	_    [5]uint32
	fr   volatile.Register32 // 0x018
	_    [2]uint32
	ibrd volatile.Register32 // 0x024
	fbrd volatile.Register32 // 0x028
	lcrh volatile.Register32 // 0x02C
	ctl  volatile.Register32 // 0x030
}

var (
	gpioA = (*gpioPort)(unsafe.Pointer(uintptr(gpioABase)))
	gpioF = (*gpioPort)(unsafe.Pointer(uintptr(gpioFBase)))
	uart0 = (*uart)(unsafe.Pointer(uintptr(uart0Base)))
)

func sysctl(offset uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(sysctlBase) + offset))
}

var ledPins = [...]uint32{
	board.Red:   1 << 1,
	board.Blue:  1 << 2,
	board.Green: 1 << 3,
}

// Board implements board.Board on the Launchpad peripherals.
type Board struct{}

// New powers the GPIO ports and UART0, configures the LEDs and opens the
// UART at baudRate, 8N1.
func New(baudRate uint32) *Board {
	sysctl(rcgcGPIO).SetBits(portA | portF)
	sysctl(rcgcUART).SetBits(1)
	for !sysctl(prGPIO).HasBits(portA|portF) || !sysctl(prUART).HasBits(1) {
	}

	leds := ledPins[board.Red] | ledPins[board.Blue] | ledPins[board.Green]
	gpioF.dir.SetBits(leds)
	gpioF.den.SetBits(leds)
	gpioF.data[leds].Set(0)

	// PA0 = U0RX, PA1 = U0TX.
	gpioA.afsel.SetBits(0x3)
	gpioA.pctl.ReplaceBits(0x11, 0xFF, 0)
	gpioA.den.SetBits(0x3)

	// Divisor in 1/64ths: clock / (16 * baud) = 4 * clock / baud.
	div := (4*ClockHz + baudRate/2) / baudRate
	uart0.ctl.ClearBits(uartCtlEN)
	uart0.ibrd.Set(div >> 6)
	uart0.fbrd.Set(div & 0x3F)
	uart0.lcrh.Set(uartLcrhWLen8 | uartLcrhFEN)
	uart0.ctl.Set(uartCtlEN | uartCtlTXE | uartCtlRXE)
	return &Board{}
}

// TryReadByte implements board.Board.
func (*Board) TryReadByte() (byte, bool) {
	if uart0.fr.HasBits(uartFrRXFE) {
		return 0, false
	}
	return byte(uart0.dr.Get()), true
}

// WriteByte implements board.Board.
func (*Board) WriteByte(b byte) error {
	for uart0.fr.HasBits(uartFrTXFF) {
	}
	uart0.dr.Set(uint32(b))
	return nil
}

// Flush waits until the last byte has left the shift register.
func (*Board) Flush() error {
	for uart0.fr.HasBits(uartFrBUSY) {
	}
	return nil
}

// LedOn implements board.Board.
func (*Board) LedOn(led board.Led) {
	if int(led) < len(ledPins) {
		pin := ledPins[led]
		gpioF.data[pin].Set(pin)
	}
}

// LedOff implements board.Board.
func (*Board) LedOff(led board.Led) {
	if int(led) < len(ledPins) {
		pin := ledPins[led]
		gpioF.data[pin].Set(0)
	}
}

// Delay implements board.Board.
func (*Board) Delay(ms uint32) {
	for ; ms > 0; ms-- {
		for i := 0; i < loopsPerMs; i++ {
			arm.Asm("nop")
		}
	}
}
