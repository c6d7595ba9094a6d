package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/presentation"
	httpadapter "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/adapters/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	Long: `Starts the engine's HTTP server with the WebSocket endpoint mounted at /ws.
With --worker an embedded task worker processes queues in the same process.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, engine, cleanup, err := setup(cmd)
		if err != nil {
			fmt.Printf("Error initializing arbor: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		addr := cfg.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		srv := httpadapter.NewServer(engine,
			httpadapter.WithAddr(addr),
			httpadapter.WithShutdownTimeout(cfg.Server.ShutdownTimeout.Std()),
			httpadapter.WithWebSocket(websocket.NewServer(engine)),
		)

		presentation.PrintBanner(arbor.Version)

		if err := srv.Start(); err != nil {
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Serving %d actions on http://%s\n", engine.Registry().Len(), srv.Addr())

		// Embedded worker, canceled on shutdown.
		workerCtx, stopWorker := context.WithCancel(context.Background())
		workerDone := make(chan error, 1)
		if embedded, _ := cmd.Flags().GetBool("worker"); embedded {
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			worker := engine.NewWorker(workerOptions(cfg, concurrency)...)
			go func() { workerDone <- worker.Run(workerCtx) }()
			fmt.Println("Embedded worker started")
		} else {
			close(workerDone)
		}

		// Blocking main and waiting for shutdown.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		sig := <-shutdown
		fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

		stopWorker()
		if err := <-workerDone; err != nil {
			fmt.Printf("Worker stopped with error: %v\n", err)
		}

		if err := srv.Stop(context.Background()); err != nil {
			fmt.Printf("Graceful shutdown did not complete: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Arbor server stopped gracefully")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (overrides config)")
	serveCmd.Flags().Bool("worker", false, "Run an embedded task worker")
	serveCmd.Flags().Int("concurrency", 0, "Embedded worker pool size (overrides config)")
}
