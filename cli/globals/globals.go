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

package globals

import "github.com/arduino/go-paths-helper"

var (
	// DownloadPath is where downloaded firmwares are stored.
	DownloadPath = paths.TempDir().Join("launchpad-bootloader")
	// LogLevel is the --log-level flag value.
	LogLevel string
	// Verbose is the --verbose flag value.
	Verbose bool
)
