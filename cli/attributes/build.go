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

	"github.com/arduino/go-paths-helper"
	"github.com/arduino/launchpad-bootloader/attributes"
	"github.com/arduino/launchpad-bootloader/cli/feedback"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	inputFile  string
	outputFile string
)

// NewBuildCommand creates a new `build` command
func NewBuildCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "build",
		Short: "Builds an attribute block.",
		Long:  "Builds the attribute block linked into the bootloader image from a YAML description. A .ld output is a linker script fragment for firmware/lm4f120.ld, any other extension gets the raw block.",
		Example: "" +
			"  " + os.Args[0] + " attributes build -i attributes.yaml -o attributes.bin\n" +
			"  " + os.Args[0] + " attributes build -i attributes.yaml -o firmware/attributes.ld\n" +
			"  " + os.Args[0] + " attributes build -o default.bin\n",
		Args: cobra.NoArgs,
		Run:  runBuild,
	}
	command.Flags().StringVarP(&inputFile, "input-file", "i", "", "YAML attribute description, the default table when omitted")
	command.Flags().StringVarP(&outputFile, "output-file", "o", "", "Path of the block to write")
	command.MarkFlagRequired("output-file")
	return command
}

func runBuild(cmd *cobra.Command, args []string) {
	block := attributes.DefaultBlock()
	if inputFile != "" {
		var err error
		if block, err = attributes.LoadFile(paths.New(inputFile)); err != nil {
			feedback.Fatal(fmt.Sprintf("Error loading %s: %s", inputFile, err), feedback.ErrBadArgument)
		}
	}
	output := paths.New(outputFile)
	var data []byte
	var err error
	if output.Ext() == ".ld" {
		data, err = block.MarshalLinkerScript()
	} else {
		data, err = block.MarshalBinary()
	}
	if err != nil {
		feedback.Fatal(fmt.Sprintf("Error encoding the attribute block: %s", err), feedback.ErrGeneric)
	}
	if err := output.WriteFile(data); err != nil {
		feedback.Fatal(fmt.Sprintf("Error writing %s: %s", outputFile, err), feedback.ErrGeneric)
	}
	logrus.Infof("Wrote attribute block to %s", outputFile)
	feedback.PrintResult(newTableResult(block.VersionString(), &block.Table))
}
