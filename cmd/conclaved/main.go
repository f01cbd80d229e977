package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/conclave/pkg/config"
	"github.com/cuemby/conclave/pkg/httpapi"
	"github.com/cuemby/conclave/pkg/knowledge"
	"github.com/cuemby/conclave/pkg/log"
	"github.com/cuemby/conclave/pkg/metrics"
	"github.com/cuemby/conclave/pkg/orchestrator"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "conclaved",
	Short: "Conclave - a message-driven multi-agent coordination runtime",
	Long: `Conclave runs a supervised pool of actor-model agents behind a
single process: mailboxes and circuit breakers per agent, a supervision
tree with restart policies, a shared document coordinator, a priority
task scheduler, a consensus manager, and a versioned knowledge base,
all reachable over one HTTP/JSON facade.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"conclaved version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config manifest (optional, defaults applied otherwise)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordination runtime and its HTTP facade",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		orch := orchestrator.New(cfg.ToOrchestratorConfig())

		var store *knowledge.Store
		if cfg.Knowledge.Persistence {
			if cfg.Knowledge.StoragePath == "" {
				return fmt.Errorf("knowledge.persistence is enabled but knowledge.storage_path is empty")
			}
			store, err = knowledge.OpenStore(cfg.Knowledge.StoragePath)
			if err != nil {
				return fmt.Errorf("open knowledge store: %w", err)
			}
			defer store.Close()

			if err := store.Load(orch.Knowledge); err != nil {
				return fmt.Errorf("load knowledge store: %w", err)
			}
			log.Info("knowledge store loaded")
		}

		ctx := context.Background()
		if err := orch.Start(ctx); err != nil {
			return fmt.Errorf("start orchestrator: %w", err)
		}
		log.Info("orchestrator started")

		collector := metrics.NewCollector(orch, 15*time.Second)
		collector.Start()
		defer collector.Stop()

		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: httpapi.NewServer(orch).Router(),
		}

		errCh := make(chan error, 1)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()
		fmt.Printf("conclaved listening on %s\n", cfg.HTTPAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\n%v\n", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "http server shutdown error: %v\n", err)
		}
		if err := orch.Stop(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "orchestrator shutdown error: %v\n", err)
		}

		if store != nil {
			if err := store.Save(orch.Knowledge); err != nil {
				fmt.Fprintf(os.Stderr, "knowledge store save error: %v\n", err)
			} else {
				log.Info("knowledge store saved")
			}
		}

		fmt.Println("Shutdown complete")
		return nil
	},
}

