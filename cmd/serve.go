package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/correction"
	"github.com/sells-group/utility-cli/internal/market"
	"github.com/sells-group/utility-cli/internal/registry"
	"github.com/sells-group/utility-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve override, context, classification, and consensus lookups over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		canon, err := newCanonicalizer()
		if err != nil {
			return err
		}

		mk, err := market.New()
		if err != nil {
			return err
		}

		points, err := loadLookupPoints(ctx, canon)
		if err != nil {
			return err
		}

		reg := registry.New(st, lookupConfig())
		if err := reg.Load(ctx, points); err != nil {
			return err
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port()),
			Handler: server.New(reg, mk, correction.NewWorkflow(st, canon)).Router(),
		}

		go shutdownGracefully(ctx, srv, 10*time.Second)

		zap.L().Info("starting server", zap.Int("port", port()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// shutdownGracefully drains in-flight requests once ctx is done. The drain
// runs on its own clock because the signal context is already canceled by the
// time shutdown starts.
func shutdownGracefully(ctx context.Context, srv *http.Server, grace time.Duration) {
	<-ctx.Done()
	zap.L().Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

func port() int {
	if servePort != 0 {
		return servePort
	}
	return cfg.Server.Port
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
