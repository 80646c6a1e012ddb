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

package ports

import (
	"fmt"
	"os"
	"strings"

	"github.com/arduino/launchpad-bootloader/cli/feedback"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

// NewCommand creates a new `ports` command
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ports",
		Short:   "Lists the serial ports.",
		Long:    "Lists the serial ports a bootloader may be answering on.",
		Example: "  " + os.Args[0] + " ports",
		Args:    cobra.NoArgs,
		Run:     runPorts,
	}
}

func runPorts(cmd *cobra.Command, args []string) {
	list, err := serial.GetPortsList()
	if err != nil {
		feedback.Fatal(fmt.Sprintf("Error listing serial ports: %s", err), feedback.ErrGeneric)
	}
	feedback.PrintResult(result(list))
}

type result []string

func (r result) String() string {
	if len(r) == 0 {
		return "No serial ports found."
	}
	return strings.Join(r, "\n")
}

// Data implements feedback.Result interface
func (r result) Data() interface{} {
	if r == nil {
		return []string{}
	}
	return []string(r)
}
