package main

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

	"mlesc/internal/app"
	"mlesc/internal/relay"
)

func main() {
	var (
		addr     string
		history  int
		logLevel string
	)
	cmd := &cobra.Command{
		Use:          "mles-relay",
		Short:        "In-memory Mles channel server for local use",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := app.NewLogger(os.Stderr, logLevel)
			hub := relay.NewHub(history, []byte(os.Getenv(app.EnvServerKey)), log)
			srv := &http.Server{Addr: addr, Handler: hub, ReadHeaderTimeout: 10 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(sctx)
			}()

			log.Info().Str("addr", addr).Int("history", history).Msg("relay listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8077", "listen address")
	cmd.Flags().IntVar(&history, "history", relay.DefaultHistorySize, "frames replayed to new joiners")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "mles-relay:", err)
		os.Exit(1)
	}
}
