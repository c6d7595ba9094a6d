package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/pkg/domain"
)

var execCmd = &cobra.Command{
	Use:   "exec <action> [key=value]...",
	Short: "Execute one action and print its envelope",
	Long: `Dispatches a single action over a cli connection and prints the response
envelope as JSON. The process exits non-zero when the envelope carries an
error.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, engine, cleanup, err := setup(cmd)
		if err != nil {
			fmt.Printf("Error initializing arbor: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		raw := make(map[string]any, len(args)-1)
		for _, arg := range args[1:] {
			key, value, found := strings.Cut(arg, "=")
			if !found || key == "" {
				fmt.Printf("Invalid parameter %q: expected key=value\n", arg)
				os.Exit(1)
			}
			raw[key] = value
		}

		sessionID, _ := cmd.Flags().GetString("session")
		conn := engine.NewConnection(domain.ConnectionCLI, sessionID)

		resp := conn.Act(cmd.Context(), args[0], raw)

		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			fmt.Printf("Error marshaling response: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))

		if resp.Error != nil {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().String("session", "", "Connection id to reuse a persistent session")
}
