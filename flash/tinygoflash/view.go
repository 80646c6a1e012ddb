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

import "unsafe"

// sliceHeader has the layout of a []byte.
type sliceHeader struct {
	data uintptr
	len  int
	cap  int
}

// mapped returns the length bytes of memory at addr. Flash starts at
// address zero, which unsafe.Slice refuses as a nil pointer, so the slice
// is assembled from its header.
func mapped(addr uintptr, length uint32) []byte {
	h := sliceHeader{data: addr, len: int(length), cap: int(length)}
	return *(*[]byte)(unsafe.Pointer(&h))
}
