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

package read

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/arduino/go-paths-helper"
	"github.com/arduino/launchpad-bootloader/cli/arguments"
	"github.com/arduino/launchpad-bootloader/cli/common"
	"github.com/arduino/launchpad-bootloader/cli/feedback"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"zappem.net/pub/debug/xxd"
)

var (
	commonFlags arguments.Flags // contains address, baudrate and timeout
	start       string
	length      string
	outputFile  string
)

// NewCommand creates a new `read` command
func NewCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "read",
		Short: "Reads a range of flash through the bootloader.",
		Long:  "Reads a range of the internal flash through the bootloader and dumps it in hex or saves it to a file.",
		Example: "" +
			"  " + os.Args[0] + " read -a /dev/ttyACM0 --start 0x4000 --length 256\n" +
			"  " + os.Args[0] + " read -a /dev/ttyACM0 --start 0 --length 0x40000 -o flash.bin\n",
		Args: cobra.NoArgs,
		Run:  runRead,
	}
	commonFlags.AddToCommand(command)
	command.Flags().StringVar(&start, "start", "0x4000", "First flash address to read")
	command.Flags().StringVar(&length, "length", "256", "Number of bytes to read")
	command.Flags().StringVarP(&outputFile, "output-file", "o", "", "File where the data is saved instead of being dumped")
	return command
}

func runRead(cmd *cobra.Command, args []string) {
	address := common.ParseAddress("start", start)
	size := common.ParseAddress("length", length)

	f := common.OpenFlasher(commonFlags)
	defer f.Close()

	logrus.Debugf("Reading %d bytes at 0x%08x", size, address)
	data, err := f.Read(address, size)
	if err != nil {
		feedback.Fatal(fmt.Sprintf("Error reading flash: %s", err), feedback.ErrBootloader)
	}

	res := &result{Address: address, Length: len(data)}
	if outputFile != "" {
		if err := paths.New(outputFile).WriteFile(data); err != nil {
			feedback.Fatal(fmt.Sprintf("Error writing %s: %s", outputFile, err), feedback.ErrGeneric)
		}
		res.File = outputFile
		feedback.PrintResult(res)
		return
	}
	if feedback.GetFormat() == feedback.Text {
		xxd.Print(int(address), data)
		return
	}
	res.Hex = hex.EncodeToString(data)
	feedback.PrintResult(res)
}

type result struct {
	Address uint32 `json:"address"`
	Length  int    `json:"length"`
	File    string `json:"file,omitempty"`
	Hex     string `json:"data,omitempty"`
}

func (r *result) String() string {
	return fmt.Sprintf("Read %d bytes at 0x%08x into %s", r.Length, r.Address, r.File)
}

// Data implements feedback.Result interface
func (r *result) Data() interface{} {
	return r
}
