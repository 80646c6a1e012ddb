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
	"fmt"
	"os"
	"strings"

	"github.com/arduino/launchpad-bootloader/attributes"
	"github.com/arduino/launchpad-bootloader/cli/arguments"
	"github.com/arduino/launchpad-bootloader/cli/common"
	"github.com/arduino/launchpad-bootloader/cli/feedback"
	"github.com/spf13/cobra"
)

var commonFlags arguments.Flags // contains address, baudrate and timeout

// NewShowCommand creates a new `show` command
func NewShowCommand() *cobra.Command {
	command := &cobra.Command{
		Use:     "show",
		Short:   "Shows the bootloader info and attributes.",
		Long:    "Asks a running bootloader for its info string and its whole attribute table.",
		Example: "  " + os.Args[0] + " attributes show -a /dev/ttyACM0",
		Args:    cobra.NoArgs,
		Run:     runShow,
	}
	commonFlags.AddToCommand(command)
	return command
}

func runShow(cmd *cobra.Command, args []string) {
	f := common.OpenFlasher(commonFlags)
	defer f.Close()

	info, err := f.Info()
	if err != nil {
		feedback.Fatal(fmt.Sprintf("Error getting the bootloader info: %s", err), feedback.ErrBootloader)
	}
	table, err := f.Attributes()
	if err != nil {
		feedback.Fatal(fmt.Sprintf("Error reading the attributes: %s", err), feedback.ErrBootloader)
	}
	res := newTableResult(info.Version, table)
	res.Info = info.Raw
	feedback.PrintResult(res)
}

type attributeEntry struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type tableResult struct {
	Info       string           `json:"info,omitempty"`
	Version    string           `json:"version,omitempty"`
	Attributes []attributeEntry `json:"attributes"`
}

// newTableResult lists the non blank slots of table.
func newTableResult(version string, table *attributes.Table) *tableResult {
	res := &tableResult{Version: version, Attributes: []attributeEntry{}}
	for i := range table {
		a := &table[i]
		if a.IsBlank() {
			continue
		}
		res.Attributes = append(res.Attributes, attributeEntry{
			Index: i,
			Key:   a.KeyString(),
			Value: string(a.ValueBytes()),
		})
	}
	return res
}

func (r *tableResult) String() string {
	var b strings.Builder
	if r.Info != "" {
		fmt.Fprintf(&b, "Bootloader: %s\n", r.Info)
	} else if r.Version != "" {
		fmt.Fprintf(&b, "Version: %s\n", r.Version)
	}
	for _, a := range r.Attributes {
		fmt.Fprintf(&b, "%2d  %-8s  %s\n", a.Index, a.Key, a.Value)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Data implements feedback.Result interface
func (r *tableResult) Data() interface{} {
	return r
}
