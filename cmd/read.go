/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gmofishsauce/romload/pkg/proto"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read hexAddress",
	Short: "Ask the loader about one address",
	Long: `Read sends a read request for the given hex address and prints
whatever the loader sends back until it says ok.`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := proto.ParseAddress(args[0])
		if err != nil {
			return err
		}

		ctx, stop := interruptContext()
		defer stop()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		_, err = s.ReadAt(ctx, address)
		return err
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
}
