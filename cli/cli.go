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

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/arduino/launchpad-bootloader/cli/attributes"
	"github.com/arduino/launchpad-bootloader/cli/feedback"
	"github.com/arduino/launchpad-bootloader/cli/flash"
	"github.com/arduino/launchpad-bootloader/cli/globals"
	"github.com/arduino/launchpad-bootloader/cli/ports"
	"github.com/arduino/launchpad-bootloader/cli/read"
	"github.com/arduino/launchpad-bootloader/cli/serve"
	"github.com/arduino/launchpad-bootloader/cli/version"
	v "github.com/arduino/launchpad-bootloader/version"
	"github.com/mattn/go-colorable"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	outputFormat string
	logFile      string
	logFormat    string
)

// NewCommand returns the launchpad-bootloader root command
func NewCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:              "launchpad-bootloader",
		Short:            "Serial bootloader for Tiva C LaunchPad boards.",
		Long:             "launchpad-bootloader runs the serial bootloader against an emulated flash and flashes, reads and inspects boards running it.",
		Example:          "  " + os.Args[0] + " <command> [flags...]",
		Args:             cobra.NoArgs,
		PersistentPreRun: preRun,
	}

	rootCommand.AddCommand(version.NewCommand())
	rootCommand.AddCommand(serve.NewCommand())
	rootCommand.AddCommand(flash.NewCommand())
	rootCommand.AddCommand(read.NewCommand())
	rootCommand.AddCommand(attributes.NewCommand())
	rootCommand.AddCommand(ports.NewCommand())

	rootCommand.PersistentFlags().StringVar(&outputFormat, "format", "text", "The output format, can be {text|json}.")

	rootCommand.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to the file where logs will be written")
	rootCommand.PersistentFlags().StringVar(&logFormat, "log-format", "", "The output format for the logs, can be {text|json}.")
	rootCommand.PersistentFlags().StringVar(&globals.LogLevel, "log-level", "info", "Messages with this level and above will be logged. Valid levels are: trace, debug, info, warn, error, fatal, panic")
	rootCommand.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "Print the logs on the standard output.")

	return rootCommand
}

// Convert the string passed to the `--log-level` option to the corresponding
// logrus formal level.
func toLogLevel(s string) (t logrus.Level, found bool) {
	t, found = map[string]logrus.Level{
		"trace": logrus.TraceLevel,
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}[s]

	return
}

func preRun(cmd *cobra.Command, args []string) {
	// Prepare the Feedback system first, errors below are reported through it

	// normalize the format strings
	outputFormat = strings.ToLower(outputFormat)
	// check the right output format was passed
	format, found := feedback.ParseOutputFormat(outputFormat)
	if !found {
		feedback.Fatal(fmt.Sprintf("Invalid output format: %s", outputFormat), feedback.ErrBadArgument)
	}
	// use the output format to configure the Feedback
	feedback.SetFormat(format)

	// Prepare logging
	if globals.Verbose {
		// if we print on stdout, do it in full colors
		logrus.SetOutput(colorable.NewColorableStdout())
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors: true,
		})
	} else {
		logrus.SetOutput(io.Discard)
	}

	// Normalize the format strings
	logFormat = strings.ToLower(logFormat)
	if logFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			feedback.Fatal(fmt.Sprintf("Unable to open file for logging: %s", logFile), feedback.ErrBadArgument)
		}

		// Use a hook so we don't get color codes in the log file
		if logFormat == "json" {
			logrus.AddHook(lfshook.NewHook(file, &logrus.JSONFormatter{}))
		} else {
			logrus.AddHook(lfshook.NewHook(file, &logrus.TextFormatter{}))
		}
	}

	// Configure logging filter
	if lvl, found := toLogLevel(globals.LogLevel); !found {
		feedback.Fatal(fmt.Sprintf("Invalid option for --log-level: %s", globals.LogLevel), feedback.ErrBadArgument)
	} else {
		logrus.SetLevel(lvl)
	}

	logrus.Info(v.VersionInfo)

	if outputFormat != "text" {
		cmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
			logrus.Warn("Calling help on JSON format")
			feedback.Fatal("Invalid Call : should show Help, but it is available only in TEXT mode.", feedback.ErrBadArgument)
		})
	}
}
