package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ogulcanaydogan/finalert/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the notification API",
	Long:  `Start the HTTP API for listing, reading and creating notifications and for on-demand alert checks.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Listen address (overrides server.listen)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	listen, _ := cmd.Flags().GetString("listen")
	if listen == "" {
		listen = a.cfg.Server.Listen
	}

	gin.SetMode(a.cfg.Server.Mode)
	srv := server.NewServer(a.manager, a.runner, a.metrics, a.logger).
		WithCheckTimeout(a.cfg.Check.Timeout)

	httpServer := &http.Server{
		Addr:         listen,
		Handler:      srv.Handler(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("api server listening", zap.String("addr", listen))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
