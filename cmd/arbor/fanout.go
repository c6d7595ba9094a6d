package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var fanoutCmd = &cobra.Command{
	Use:   "fanout",
	Short: "Inspect fan-out batches",
}

var fanoutStatusCmd = &cobra.Command{
	Use:   "status <fanout-id>",
	Short: "Print the aggregate state of a fan-out batch",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, engine, cleanup, err := setup(cmd)
		if err != nil {
			fmt.Printf("Error initializing arbor: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		status, err := engine.Coordinator().Status(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error loading fan-out '%s': %v\n", args[0], err)
			os.Exit(1)
		}

		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			fmt.Printf("Error marshaling status: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(fanoutCmd)
	fanoutCmd.AddCommand(fanoutStatusCmd)
}
