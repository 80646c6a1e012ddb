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

package arguments

import (
	"github.com/spf13/cobra"
)

// Flags contains various common flags.
// This is useful so all flags used by commands that need
// this information are consistent with each other.
type Flags struct {
	Address  string
	BaudRate int
	Timeout  int
}

// AddToCommand adds the flags used to reach the bootloader to the specified Command
func (f *Flags) AddToCommand(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Address, "address", "a", "", "Bootloader port, e.g.: COM10, /dev/ttyACM0")
	cmd.Flags().IntVar(&f.BaudRate, "baudrate", 115200, "Baud rate of the bootloader port, 0 tries the standard rates")
	cmd.Flags().IntVar(&f.Timeout, "timeout", 10, "Seconds to wait for a bootloader response")
}
