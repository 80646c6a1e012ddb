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

// Package fault implements the fail-stop policy of the bootloader. A
// fatal fault never returns: the device stops answering and blinks its
// fault LED until it is reset.
package fault

import (
	"fmt"

	"github.com/arduino/launchpad-bootloader/board"
	"github.com/sirupsen/logrus"
)

// Policy blinks an LED forever once the device has failed.
type Policy struct {
	board    board.Board
	led      board.Led
	interval uint32
}

// Option configures a Policy.
type Option func(*Policy)

// WithLed selects the fault LED (red by default).
func WithLed(led board.Led) Option {
	return func(p *Policy) { p.led = led }
}

// WithInterval sets the blink half period in milliseconds (200 by default).
func WithInterval(ms uint32) Option {
	return func(p *Policy) { p.interval = ms }
}

// New returns the fail-stop policy of b.
func New(b board.Board, opts ...Option) *Policy {
	p := &Policy{board: b, led: board.Red, interval: 200}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EnterFailStop never returns.
func (p *Policy) EnterFailStop() {
	for {
		p.board.LedOn(p.led)
		p.board.Delay(p.interval)
		p.board.LedOff(p.led)
		p.board.Delay(p.interval)
	}
}

// Fail reports reason on the transport and enters fail-stop. It never
// returns.
func (p *Policy) Fail(reason string) {
	logrus.WithField("reason", reason).Error("Fatal fault, entering fail-stop")
	p.report(reason)
	p.EnterFailStop()
}

func (p *Policy) report(reason string) {
	for _, b := range []byte("FAULT: " + reason + "\r\n") {
		if err := p.board.WriteByte(b); err != nil {
			return
		}
	}
	if fl, ok := p.board.(board.Flusher); ok {
		fl.Flush()
	}
}

// Recover turns a panic of the calling goroutine into a fail-stop. It
// must be deferred directly.
func (p *Policy) Recover() {
	if r := recover(); r != nil {
		p.Fail(fmt.Sprint("panic: ", r))
	}
}
