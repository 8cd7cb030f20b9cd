package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kanzleiwerk/aktenregister/internal/casefile"
	"github.com/kanzleiwerk/aktenregister/internal/httpapi"
	"github.com/kanzleiwerk/aktenregister/internal/settings"
	"github.com/kanzleiwerk/aktenregister/internal/store"
)

// NewServeCommand creates the serve command: the HTTP API plus the periodic
// passive checkpoint loop. Clean shutdown runs a full checkpoint via
// store.Close.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the back-office API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = opts.DBPath
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}

			logger, err := buildLogger(opts.Verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return runServer(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config)")
	return cmd
}

func runServer(ctx context.Context, cfg Config, logger *zap.Logger) error {
	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	server := httpapi.NewServer(
		st,
		casefile.NewRepository(st, logger),
		settings.NewStore(st, logger),
		logger,
	)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go checkpointLoop(ctx, st, cfg.CheckpointInterval(), logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// checkpointLoop periodically flushes the WAL without blocking readers.
func checkpointLoop(ctx context.Context, st *store.Store, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := st.Checkpoint(ctx, store.CheckpointPassive); err != nil {
				logger.Warn("periodic checkpoint failed", zap.Error(err))
			}
		}
	}
}
