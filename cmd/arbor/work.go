package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Run a task worker",
	Long: `Runs a worker pool that dequeues tasks from the configured queues and
executes them through the engine. Stop with SIGINT or SIGTERM.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, engine, cleanup, err := setup(cmd)
		if err != nil {
			fmt.Printf("Error initializing arbor: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		worker := engine.NewWorker(workerOptions(cfg, concurrency)...)

		queues := cfg.Worker.Queues
		if len(queues) == 0 {
			queues = engine.Registry().Queues()
		}
		fmt.Printf("Worker draining queues: %s\n", strings.Join(queues, ", "))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- worker.Run(ctx) }()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-done:
			cancel()
			if err != nil {
				fmt.Printf("Worker error: %v\n", err)
				os.Exit(1)
			}
		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)
			cancel()
			if err := <-done; err != nil {
				fmt.Printf("Worker stopped with error: %v\n", err)
				os.Exit(1)
			}
		}
		fmt.Println("Worker stopped gracefully")
	},
}

// workerOptions maps worker config onto options, with the CLI
// concurrency override applied when positive.
func workerOptions(cfg *config.Config, concurrency int) []arbor.WorkerOption {
	if concurrency <= 0 {
		concurrency = cfg.Worker.Concurrency
	}
	opts := []arbor.WorkerOption{
		arbor.WithConcurrency(concurrency),
		arbor.WithDequeueTimeout(cfg.Worker.DequeueTimeout.Std()),
	}
	if len(cfg.Worker.Queues) > 0 {
		opts = append(opts, arbor.WithQueues(cfg.Worker.Queues...))
	}
	if !cfg.Worker.Scheduler {
		opts = append(opts, arbor.WithoutScheduler())
	}
	return opts
}

func init() {
	rootCmd.AddCommand(workCmd)
	workCmd.Flags().Int("concurrency", 0, "Worker pool size (overrides config)")
}
