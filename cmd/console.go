/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gmofishsauce/romload/pkg/arduino"
	"github.com/gmofishsauce/romload/pkg/console"
)

var blockPause time.Duration

// consoleCmd represents the console command
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Serial line console for the loader",
	Long: `Console opens the serial line to the Arduino. Lines typed at the
terminal are sent to the loader and everything the loader sends is echoed.

Lines starting with "local" are handled by the console itself:

  local upload <path> <hhhh>   send 256 bytes of <path> starting at hex
                               offset hhhh, raw, in four 64 byte blocks
  local help                   list local commands

The console must be terminated (^C or ^D) to release the serial port
before new loader firmware can be flashed from the Arduino IDE.`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if useSim {
			return errors.New("console needs a serial port; --sim is not supported")
		}
		nano, err := arduino.New(portName, baudRate, readTimeout)
		if err != nil {
			return err
		}

		ctx, stop := interruptContext()
		defer stop()

		c := console.New(nano.Receiver(), nano.Transmitter(), nano, console.NewTerminalInput(), os.Stdout,
			console.WithBlockPause(blockPause))
		return c.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().DurationVar(&blockPause, "block-pause", 50*time.Millisecond, "pause between blocks of a local upload")
}
