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

package attributes

import (
	"os"

	"github.com/spf13/cobra"
)

// NewCommand created a new `attributes` command
func NewCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "attributes",
		Short: "Attribute table commands.",
		Long:  "A subset of commands to build and inspect the bootloader attribute table.",
		Example: "" +
			"  " + os.Args[0] + " attributes build -i attributes.yaml -o attributes.bin\n" +
			"  " + os.Args[0] + " attributes show -a /dev/ttyACM0\n",
		Args: cobra.NoArgs,
	}

	command.AddCommand(NewBuildCommand())
	command.AddCommand(NewShowCommand())
	return command
}
