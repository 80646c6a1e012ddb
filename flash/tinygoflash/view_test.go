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

package tinygoflash

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestMapped(t *testing.T) {
	buf := []byte{0xDE, 0xAD, 0xBE, 0xEF, 1, 2, 3, 4}
	view := mapped(uintptr(unsafe.Pointer(&buf[0]))+2, 4)
	require.Equal(t, []byte{0xBE, 0xEF, 1, 2}, view)
	require.Equal(t, 4, cap(view))
	runtime.KeepAlive(buf)
}

func TestMappedAddressZero(t *testing.T) {
	// The bootloader image starts at zero: the view must have the full
	// length. Its content is not readable on the host.
	view := mapped(0, 0x4000)
	require.Equal(t, 0x4000, len(view))
	require.Equal(t, 0x4000, cap(view))
}
