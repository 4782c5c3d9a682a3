package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/axiom-network/axiomd/internal/config"
	"github.com/axiom-network/axiomd/internal/daemonlock"
	"github.com/axiom-network/axiomd/internal/node"
	"github.com/axiom-network/axiomd/internal/telemetry"
)

const telemetryShutdownTimeout = 5 * time.Second

var (
	serveBootstrap bool
	serveLockDir   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start this node's HTTP surface and background scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveBootstrap, "bootstrap", false, "run as the bootstrap node (listens on the default port)")
	serveCmd.Flags().StringVar(&serveLockDir, "lock-dir", ".", "directory for this node's single-instance lock file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	role := "peer"
	if serveBootstrap {
		role = "bootstrap"
	}

	cfg, err := config.Load(role)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lock, err := daemonlock.Acquire(serveLockDir, cfg.Port, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	defer func() { _ = lock.Close() }()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, cfg.AdvertisedURL)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	n, err := node.New(ctx, cfg, log, providers, node.Collaborators{})
	if err != nil {
		return fmt.Errorf("build node: %w", err)
	}
	defer func() { _ = n.Close() }()

	log.Info("axiomd starting", "port", cfg.Port, "role", role, "db_path", cfg.DBPath)
	return n.Run(ctx)
}
