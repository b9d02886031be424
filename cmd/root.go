/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gmofishsauce/romload/pkg/arduino"
	"github.com/gmofishsauce/romload/pkg/host"
	"github.com/gmofishsauce/romload/pkg/proto"
	"github.com/gmofishsauce/romload/pkg/sim"
)

const defaultDevice = "/dev/ttyUSB0"

var (
	portName     string
	baudRate     int
	readTimeout  time.Duration
	ackTimeout   time.Duration
	readyTimeout time.Duration
	useSim       bool
	debug        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "romload",
	Short: "Program and inspect the Arduino EEPROM loader",
	Long: `Romload talks to the EEPROM loader firmware over a serial line. It
can write a whole 32K image to the EEPROM, ask the loader about a single
address, or run a console on the serial line that can also push parts of
local files to the loader.

Opening the USB serial port resets the Arduino. Every command waits for
the loader to say "ready" before sending anything.`,

	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd.Name())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&portName, "port", "p", defaultDevice, "serial device the loader is attached to")
	pf.IntVarP(&baudRate, "baud", "b", proto.BaudRate, "baud rate (must match the loader firmware)")
	pf.DurationVar(&readTimeout, "timeout", proto.ReadTimeout, "serial read timeout")
	pf.DurationVar(&ackTimeout, "ack-timeout", 10*time.Second, "give up when the loader is silent this long waiting for ok (0 waits forever)")
	pf.DurationVar(&readyTimeout, "ready-timeout", 10*time.Second, "give up when the loader doesn't say ready this soon (0 waits forever)")
	pf.BoolVar(&useSim, "sim", false, "talk to the simulated loader instead of a serial port")
	pf.BoolVarP(&debug, "debug", "d", false, "debug logging")
}

func setupLogging(name string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000000"}).
		With().Timestamp().Str("cmd", name).Logger()
}

// interruptContext is cancelled by ^C or SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openSession opens the loader, or the simulator with --sim, and waits
// for it to be ready. Loader chatter goes to standard output.
func openSession(ctx context.Context, opts ...host.Option) (*host.Session, error) {
	var t host.Transport
	if useSim {
		t = sim.New()
	} else {
		a, err := arduino.New(portName, baudRate, readTimeout)
		if err != nil {
			return nil, err
		}
		t = a
	}

	opts = append([]host.Option{
		host.WithAckTimeout(ackTimeout),
		host.WithReadyTimeout(readyTimeout),
		host.WithDiagnostics(os.Stdout),
	}, opts...)
	s := host.NewSession(t, opts...)
	if err := s.AwaitReady(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
