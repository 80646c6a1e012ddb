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

package serve

import (
	"testing"

	"github.com/arduino/go-paths-helper"
	"github.com/arduino/launchpad-bootloader/attributes"
	"github.com/stretchr/testify/require"
)

func TestLoadFlashDefaultBlock(t *testing.T) {
	mem, block, err := loadFlash(nil, "")
	require.NoError(t, err)
	require.Equal(t, attributes.DefaultVersion, block.VersionString())

	stored, err := attributes.Parse(mem.View(attributes.Offset, attributes.BlockSize))
	require.NoError(t, err)
	require.Equal(t, block, stored)
	// The application region stays blank.
	require.Equal(t, byte(0xFF), mem.View(0x4000, 1)[0])
}

func TestLoadFlashKeepsImageBlock(t *testing.T) {
	image := paths.New(t.TempDir()).Join("flash.bin")

	mem, _, err := loadFlash(image, "../../attributes/testdata/attributes.yaml")
	require.NoError(t, err)
	require.NoError(t, mem.Save(image))

	_, block, err := loadFlash(image, "")
	require.NoError(t, err)
	require.Equal(t, "1.2.0", block.VersionString())
}
