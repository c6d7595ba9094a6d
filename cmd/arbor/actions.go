package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/presentation"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Inspect the registered actions",
	Long:  `List registered actions or render the full documentation of one.`,
	Run: func(cmd *cobra.Command, args []string) {
		actionsLsCmd.Run(cmd, args)
	},
}

var actionsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all registered actions",
	Run: func(cmd *cobra.Command, args []string) {
		_, engine, cleanup, err := setup(cmd)
		if err != nil {
			fmt.Printf("Error initializing arbor: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		render := presentation.NewRenderer()
		out, err := render(presentation.ActionList(engine.Registry().List()))
		if err != nil {
			fmt.Printf("Error rendering action list: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(out)
	},
}

var actionsDescribeCmd = &cobra.Command{
	Use:   "describe <name>",
	Short: "Render the documentation of one action",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, engine, cleanup, err := setup(cmd)
		if err != nil {
			fmt.Printf("Error initializing arbor: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		action, ok := engine.Registry().Resolve(args[0])
		if !ok {
			fmt.Printf("Unknown action %q\n", args[0])
			os.Exit(1)
		}

		render := presentation.NewRenderer()
		out, err := render(presentation.ActionDoc(action))
		if err != nil {
			fmt.Printf("Error rendering action doc: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(out)
	},
}

func init() {
	rootCmd.AddCommand(actionsCmd)
	actionsCmd.AddCommand(actionsLsCmd)
	actionsCmd.AddCommand(actionsDescribeCmd)
}
