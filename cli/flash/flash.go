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

package flash

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/arduino/go-paths-helper"
	"github.com/arduino/launchpad-bootloader/cli/arguments"
	"github.com/arduino/launchpad-bootloader/cli/common"
	"github.com/arduino/launchpad-bootloader/cli/feedback"
	"github.com/arduino/launchpad-bootloader/download"
	"github.com/arduino/launchpad-bootloader/flasher"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	commonFlags arguments.Flags // contains address, baudrate and timeout
	fwFile      string
	fwURL       string
	checksum    string
	start       string
	retries     int
)

// NewCommand creates a new `flash` command
func NewCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "flash",
		Short: "Flashes a firmware through the bootloader.",
		Long:  "Erases the pages covering the firmware, writes it through the bootloader and verifies the flash CRC.",
		Example: "" +
			"  " + os.Args[0] + " flash -a /dev/ttyACM0 -i blink.bin\n" +
			"  " + os.Args[0] + " flash -a /dev/ttyACM0 -i app.bin --start 0x8000\n" +
			"  " + os.Args[0] + " flash -a COM10 --url https://example.com/app.bin --checksum SHA-256:<hash>\n",
		Args: cobra.NoArgs,
		Run:  runFlash,
	}
	commonFlags.AddToCommand(command)
	command.Flags().StringVarP(&fwFile, "input-file", "i", "", "Path of the firmware to upload")
	command.Flags().StringVar(&fwURL, "url", "", "URL of the firmware to download and upload")
	command.Flags().StringVar(&checksum, "checksum", "", "Checksum of the downloaded firmware, e.g.: SHA-256:<hash>")
	command.Flags().StringVar(&start, "start", "0x4000", "Flash address where the firmware is written")
	command.Flags().IntVar(&retries, "retries", 9, "Number of retries in case of upload failure (default 9)")
	return command
}

func runFlash(cmd *cobra.Command, args []string) {
	if retries < 1 {
		feedback.Fatal("Number of retries should be at least 1", feedback.ErrBadArgument)
	}
	if (fwFile == "") == (fwURL == "") {
		feedback.Fatal("Error: exactly one of --input-file and --url is required", feedback.ErrBadArgument)
	}
	address := common.ParseAddress("start", start)
	common.CheckFlags(commonFlags)

	var firmwareFilePath *paths.Path
	// If a local firmware file has been specified
	if fwFile != "" {
		firmwareFilePath = paths.New(fwFile)
		if !firmwareFilePath.Exist() {
			feedback.Fatal(fmt.Sprintf("firmware file not found in %s", firmwareFilePath), feedback.ErrGeneric)
		}
	} else {
		fwPath, err := download.DownloadFirmware(fwURL, checksum)
		if err != nil {
			feedback.Fatal(fmt.Sprintf("Error downloading firmware from %s: %s", fwURL, err), feedback.ErrNetwork)
		}
		firmwareFilePath = fwPath
		logrus.Debugf("firmware file downloaded in %s", firmwareFilePath)
	}

	retry := 0
	for {
		retry++
		logrus.Infof("Uploading firmware (try %d of %d)", retry, retries)

		res, err := updateFirmware(firmwareFilePath, address)
		if err == nil {
			feedback.PrintResult(res)
			logrus.Info("Operation completed: success! :-)")
			break
		}
		logrus.Error(err)

		if retry == retries {
			feedback.Fatal(fmt.Sprintf("Operation failed: %s", err), feedback.ErrBootloader)
		}

		logrus.Info("Waiting 1 second before retrying...")
		time.Sleep(time.Second)
	}
}

func updateFirmware(firmwareFile *paths.Path, address uint32) (*flasher.FlashResult, error) {
	f, err := flasher.Open(commonFlags.Address, commonFlags.BaudRate, time.Duration(commonFlags.Timeout)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %s", commonFlags.Address, err)
	}
	defer f.Close()

	flasherOut := new(bytes.Buffer)
	var out io.Writer = flasherOut
	if feedback.GetFormat() == feedback.Text {
		f.SetProgressCallback(printProgress)
		out = io.MultiWriter(flasherOut, os.Stdout)
	}
	res, err := f.FlashFirmware(firmwareFile, address, out)
	if err != nil {
		return nil, fmt.Errorf("error during firmware flashing: %w", err)
	}
	res.Flasher = &flasher.ExecOutput{Stdout: flasherOut.String()}
	return res, nil
}

// callback used to print the progress
func printProgress(progress int) {
	fmt.Printf("Flashing progress: %d%%\r", progress)
}
