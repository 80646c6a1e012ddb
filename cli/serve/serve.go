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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/arduino/go-paths-helper"
	"github.com/arduino/launchpad-bootloader/attributes"
	"github.com/arduino/launchpad-bootloader/board"
	"github.com/arduino/launchpad-bootloader/bootloader"
	"github.com/arduino/launchpad-bootloader/cli/feedback"
	"github.com/arduino/launchpad-bootloader/flash"
	"github.com/arduino/launchpad-bootloader/flash/simflash"
	"github.com/arduino/launchpad-bootloader/protocol"
	"github.com/pkg/term"
	"github.com/pkg/term/termios"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

var (
	imageFile      string
	attributesFile string
	portAddress    string
	usePty         bool
	baudRate       int
)

// NewCommand creates a new `serve` command
func NewCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "serve",
		Short: "Runs the bootloader on an emulated flash.",
		Long:  "Runs the bootloader on this machine, backed by a flash image file, answering on a serial port or on a new pseudo-terminal.",
		Example: "" +
			"  " + os.Args[0] + " serve --image flash.bin --pty\n" +
			"  " + os.Args[0] + " serve --image flash.bin --attributes attributes.yaml --port /dev/ttyUSB0\n",
		Args: cobra.NoArgs,
		Run:  runServe,
	}
	command.Flags().StringVar(&imageFile, "image", "", "Flash image file, created when missing and updated on exit")
	command.Flags().StringVar(&attributesFile, "attributes", "", "YAML file describing the attribute table to program")
	command.Flags().StringVarP(&portAddress, "port", "p", "", "Serial port to answer on, e.g.: /dev/ttyUSB0")
	command.Flags().BoolVar(&usePty, "pty", false, "Answer on a new pseudo-terminal")
	command.Flags().IntVar(&baudRate, "baudrate", 115200, "Baud rate of the serial port")
	return command
}

func runServe(cmd *cobra.Command, args []string) {
	if usePty == (portAddress != "") {
		feedback.Fatal("Error: exactly one of --port and --pty is required", feedback.ErrBadArgument)
	}

	var image *paths.Path
	if imageFile != "" {
		image = paths.New(imageFile)
	}
	mem, block, err := loadFlash(image, attributesFile)
	if err != nil {
		feedback.Fatal(fmt.Sprintf("Error preparing the flash: %s", err), feedback.ErrGeneric)
	}

	link, name, err := openLink()
	if err != nil {
		feedback.Fatal(fmt.Sprintf("Error opening the bootloader port: %s", err), feedback.ErrGeneric)
	}
	defer link.Close()

	host := board.NewHost(link)
	defer host.Close()
	engine, err := flash.New(mem, mem, flash.Launchpad)
	if err != nil {
		feedback.Fatal(fmt.Sprintf("Error preparing the flash: %s", err), feedback.ErrGeneric)
	}
	d := bootloader.New(&protocol.Codec{}, host, engine, &block.Table,
		bootloader.WithInfo(bootloader.InfoString(block.VersionString())),
		bootloader.WithIdle(host.Idle))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		select {
		case <-host.Done():
			stop()
		case <-ctx.Done():
		}
	}()

	feedback.Print(fmt.Sprintf("Bootloader %s listening on %s", block.VersionString(), name))
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logrus.Error(err)
	}
	if err := host.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, board.ErrHostClosed) {
		logrus.WithError(err).Warn("Bootloader port closed")
	}

	if image != nil {
		if err := mem.Save(image); err != nil {
			feedback.Fatal(fmt.Sprintf("Error saving flash image %s: %s", image, err), feedback.ErrGeneric)
		}
		logrus.Infof("Saved flash image to %s", image)
	}
	feedback.PrintResult(&result{Image: imageFile, Version: block.VersionString()})
}

// loadFlash loads the flash image and programs the attribute block into
// it. Without an attributes file the block already in the image is kept,
// or the default one is programmed.
func loadFlash(image *paths.Path, attributesFile string) (*simflash.Memory, *attributes.Block, error) {
	layout := flash.Launchpad
	mem, err := simflash.Load(image, layout.Flash.Start, layout.Flash.Size())
	if err != nil {
		return nil, nil, err
	}

	var block *attributes.Block
	if attributesFile != "" {
		block, err = attributes.LoadFile(paths.New(attributesFile))
		if err != nil {
			return nil, nil, err
		}
	} else if block, err = attributes.Parse(mem.View(attributes.Offset, attributes.BlockSize)); err != nil {
		logrus.WithError(err).Debug("No attribute block in the image, using the default one")
		block = attributes.DefaultBlock()
	}

	data, err := block.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	if err := mem.Program(attributes.Offset, data); err != nil {
		return nil, nil, err
	}
	return mem, block, nil
}

// openLink opens the transport the bootloader answers on and returns its
// name as seen by a host tool.
func openLink() (io.ReadWriteCloser, string, error) {
	if !usePty {
		port, err := serial.Open(portAddress, &serial.Mode{BaudRate: baudRate})
		if err != nil {
			return nil, "", err
		}
		logrus.Infof("Opened port %s at %d", portAddress, baudRate)
		return port, portAddress, nil
	}

	ptm, pts, err := termios.Pty()
	if err != nil {
		return nil, "", err
	}
	// Keep the slave side open in raw mode so that the line discipline
	// does not mangle the frames, and so that ptm reads do not fail
	// before a client connects.
	tty, err := term.Open(pts.Name(), term.Speed(baudRate), term.RawMode)
	if err != nil {
		ptm.Close()
		pts.Close()
		return nil, "", err
	}
	return &ptyLink{File: ptm, pts: pts, tty: tty}, pts.Name(), nil
}

type ptyLink struct {
	*os.File
	pts *os.File
	tty *term.Term
}

func (p *ptyLink) Close() error {
	p.tty.Close()
	p.pts.Close()
	return p.File.Close()
}

type result struct {
	Image   string `json:"image,omitempty"`
	Version string `json:"version"`
}

func (r *result) String() string {
	if r.Image == "" {
		return "Bootloader stopped"
	}
	return fmt.Sprintf("Bootloader stopped, flash saved to %s", r.Image)
}

// Data implements feedback.Result interface
func (r *result) Data() interface{} {
	return r
}
