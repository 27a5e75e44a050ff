package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jvanek/facegroups/internal/config"
	"github.com/jvanek/facegroups/internal/registry"
	"github.com/jvanek/facegroups/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Groups web server. The API exposes folder scanning
with live progress, group listing and editing, merge suggestions and
known-person matching.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	reg, cleanup, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	if reg != nil {
		fmt.Printf("Person registry enabled (%s)\n", cfg.Registry.Backend)
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, st, newDetector(cfg), reg, port, host)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		savePersonIndex(cfg, reg)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Groups API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// savePersonIndex persists the in-memory person index on shutdown when
// one is in use and an index path is configured.
func savePersonIndex(cfg *config.Config, reg registry.Registry) {
	idx, ok := reg.(*registry.PersonIndex)
	if !ok || cfg.Registry.IndexPath == "" {
		return
	}
	if err := idx.SaveIndex(cfg.Registry.IndexPath); err != nil {
		fmt.Printf("Warning: failed to save person index: %v\n", err)
	} else {
		fmt.Println("Person index saved to disk")
	}
}
