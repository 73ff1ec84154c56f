package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragchat/internal/api"
)

const (
	defaultServeAddr = "127.0.0.1:3400"

	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // streaming responses can run long
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [addr]",
	Short: "Run the HTTP API server",
	Long: `Serve exposes the chat pipeline over HTTP: POST /chat for one-shot
answers, POST /chat/stream for SSE streaming, POST /search for retrieval
and GET /healthz for probes.

The listen address defaults to ` + defaultServeAddr + ` and can be set
with the positional argument or --addr:

  ragchat serve
  ragchat serve 0.0.0.0:8080
  ragchat serve --addr :8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", defaultServeAddr, "listen address (host:port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr, err := resolveServeAddr(args, serveAddr)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Config.RequireChat(); err != nil {
		return err
	}

	server, err := api.NewServer(api.ServerConfig{
		Logger:           a.Logger,
		Engine:           a.Engine,
		Model:            a.Config.ChatDeployment,
		SearchConfigured: a.SearchConfigured(),
		OpenAIConfigured: a.OpenAIConfigured(),
		Version:          AppVersion,
		CORSOrigins:      a.Config.CORSOrigins,
		TrustProxy:       a.Config.TrustProxy,
		RateBurst:        a.Config.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server listening", "addr", addr)
		fmt.Fprintf(os.Stderr, "ragchat API listening on http://%s\n", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.Logger.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
