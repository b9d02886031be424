/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/gmofishsauce/romload/pkg/host"
)

const defaultImage = "rom.bin"

var imagePath string

// programCmd represents the program command
var programCmd = &cobra.Command{
	Use:   "program",
	Short: "Write an image to the EEPROM",
	Long: `Program writes a raw binary image of up to 32K to the EEPROM, starting
at address 0, in 64 byte blocks. Each block is acknowledged by the loader
before the next is sent. A short final block is padded with zeros. The
image is ./rom.bin (or ../rom.bin) unless --image is given.`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := imagePath
		if !cmd.Flags().Changed("image") {
			if _, err := os.Stat(path); err != nil {
				path = "../" + defaultImage
			}
		}
		image, err := host.LoadImage(path)
		if err != nil {
			return err
		}

		ctx, stop := interruptContext()
		defer stop()

		bar := newProgressBar(host.PaddedSize(len(image)), "Writing")
		s, err := openSession(ctx, host.WithProgress(func(p host.Progress) {
			_ = bar.Set(p.Bytes)
		}))
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.Program(ctx, image)
		if err != nil {
			return errors.Wrapf(err, "programming %s", path)
		}
		fmt.Printf("wrote %d bytes in %d blocks in %v\n", stats.Bytes, stats.Blocks, stats.Elapsed)
		return nil
	},
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)
}

func init() {
	rootCmd.AddCommand(programCmd)
	programCmd.Flags().StringVarP(&imagePath, "image", "i", defaultImage, "image file to program")
}
