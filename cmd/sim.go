/*
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gmofishsauce/romload/pkg/host"
	"github.com/gmofishsauce/romload/pkg/sim"
)

// simCmd represents the sim command
var simCmd = &cobra.Command{
	Use:   "sim [imageFile]",
	Short: "Program an image into the simulated loader and verify it",
	Long: `Sim runs the whole programming protocol against a simulated loader
with a 32K EEPROM, then reads every block back and compares it with the
image. The image defaults to ./rom.bin.
`,

	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := defaultImage
		if len(args) > 0 {
			path = args[0]
		}
		image, err := host.LoadImage(path)
		if err != nil {
			return err
		}

		ctx, stop := interruptContext()
		defer stop()

		bar := newProgressBar(host.PaddedSize(len(image)), "Simulating")
		device := sim.New()
		s := host.NewSession(device, host.WithAckTimeout(ackTimeout), host.WithProgress(func(p host.Progress) {
			_ = bar.Set(p.Bytes)
		}))
		defer s.Close()

		if err := s.AwaitReady(ctx); err != nil {
			return err
		}
		stats, err := s.Program(ctx, image)
		if err != nil {
			return err
		}
		if err := sim.Verify(ctx, s, image); err != nil {
			return err
		}
		fmt.Printf("%s: %d blocks written and verified (%d headers)\n", path, stats.Blocks, device.Headers)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(simCmd)
}
