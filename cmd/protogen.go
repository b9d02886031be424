/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gmofishsauce/romload/pkg/protogen"
)

var protogenOut string

// protogenCmd represents the protogen command
var protogenCmd = &cobra.Command{
	Use:   "protogen",
	Short: "Generate the loader protocol header for the firmware",
	Long: `Protogen creates a C header defining the serial protocol constants
(block size, opcodes, ack tokens, baud rate) used by this program. The file
is generated in "." and must be manually placed in the loader firmware
sketch before recompiling it.`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return protogen.GenerateFile(protogenOut)
	},
}

func init() {
	rootCmd.AddCommand(protogenCmd)
	protogenCmd.Flags().StringVarP(&protogenOut, "out", "o", protogen.HeaderFile, "output file")
}
