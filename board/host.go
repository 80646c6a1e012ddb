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

package board

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	hostQueueSize = 4096
	hostIdleWait  = 10 * time.Millisecond
)

// ErrHostClosed is returned by Err once Close stopped the reader.
var ErrHostClosed = errors.New("host board closed")

// Host is a Board running on a development machine over any
// io.ReadWriter: a serial port, a pseudo-terminal or a pipe in tests. A
// background goroutine reads the transport; LEDs are kept in memory and
// logged.
type Host struct {
	w    *bufio.Writer
	in   chan byte
	done chan struct{}
	quit chan struct{}
	stop sync.Once
	err  error

	pending    byte
	hasPending bool

	mu   sync.Mutex
	leds [3]bool
}

// NewHost starts reading rw and returns the board. The reader goroutine
// stops when rw returns an error or on Close, see Done and Err.
func NewHost(rw io.ReadWriter) *Host {
	h := &Host{
		w:    bufio.NewWriter(rw),
		in:   make(chan byte, hostQueueSize),
		done: make(chan struct{}),
		quit: make(chan struct{}),
	}
	go h.readLoop(rw)
	return h
}

func (h *Host) readLoop(r io.Reader) {
	defer close(h.done)
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			select {
			case h.in <- b:
			case <-h.quit:
				h.err = ErrHostClosed
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logrus.WithError(err).Debug("Host board transport closed")
			}
			h.err = err
			return
		}
	}
}

// TryReadByte implements Board.
func (h *Host) TryReadByte() (byte, bool) {
	if h.hasPending {
		h.hasPending = false
		return h.pending, true
	}
	select {
	case b := <-h.in:
		return b, true
	default:
		return 0, false
	}
}

// Idle waits a short while for input to arrive, so that a polling loop
// does not spin on the host CPU.
func (h *Host) Idle() {
	if h.hasPending {
		return
	}
	select {
	case h.pending = <-h.in:
		h.hasPending = true
	case <-h.done:
	case <-time.After(hostIdleWait):
	}
}

// WriteByte implements Board. Bytes are buffered until Flush.
func (h *Host) WriteByte(b byte) error {
	return h.w.WriteByte(b)
}

// Flush transmits buffered bytes.
func (h *Host) Flush() error {
	return h.w.Flush()
}

// LedOn implements Board.
func (h *Host) LedOn(led Led) {
	h.setLed(led, true)
}

// LedOff implements Board.
func (h *Host) LedOff(led Led) {
	h.setLed(led, false)
}

func (h *Host) setLed(led Led, on bool) {
	if int(led) >= len(h.leds) {
		return
	}
	h.mu.Lock()
	changed := h.leds[led] != on
	h.leds[led] = on
	h.mu.Unlock()
	if changed {
		logrus.WithField("led", led).Tracef("LED on: %v", on)
	}
}

// Led reports whether led is lit.
func (h *Host) Led(led Led) bool {
	if int(led) >= len(h.leds) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leds[led]
}

// Delay implements Board.
func (h *Host) Delay(ms uint32) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// Close stops the reader goroutine, even when nobody drains the queue
// anymore. A reader blocked on the transport stops once the transport is
// closed by its owner.
func (h *Host) Close() {
	h.stop.Do(func() { close(h.quit) })
}

// Done is closed once the transport can no longer be read.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

// Err returns the error that stopped the reader, once Done is closed.
func (h *Host) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}
