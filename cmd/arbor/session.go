package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/pkg/domain"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persistent sessions",
	Long:  `List, inspect, and remove sessions in the configured session store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all live sessions",
	Run: func(cmd *cobra.Command, args []string) {
		_, engine, cleanup, err := setup(cmd)
		if err != nil {
			fmt.Printf("Error initializing arbor: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		ids, err := engine.Sessions().List(cmd.Context())
		if err != nil {
			fmt.Printf("Error listing sessions: %v\n", err)
			os.Exit(1)
		}

		if len(ids) == 0 {
			fmt.Println("No live sessions found.")
			return
		}
		for _, id := range ids {
			fmt.Println("- " + id)
		}
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <connection-id>",
	Short: "Print one session as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, engine, cleanup, err := setup(cmd)
		if err != nil {
			fmt.Printf("Error initializing arbor: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		sess, err := engine.Sessions().Peek(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error loading session '%s': %v\n", args[0], err)
			os.Exit(1)
		}

		out, err := json.MarshalIndent(sess, "", "  ")
		if err != nil {
			fmt.Printf("Error marshaling session: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <connection-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, engine, cleanup, err := setup(cmd)
		if err != nil {
			fmt.Printf("Error initializing arbor: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		hasError := false
		for _, id := range args {
			err := engine.Sessions().Destroy(cmd.Context(), id)
			switch {
			case errors.Is(err, domain.ErrSessionNotFound):
				fmt.Printf("No session '%s'\n", id)
				hasError = true
			case err != nil:
				fmt.Printf("Error removing '%s': %v\n", id, err)
				hasError = true
			default:
				fmt.Printf("Removed session '%s'\n", id)
			}
		}
		if hasError {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}
