package app

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"mlesc/internal/metrics"
	"mlesc/internal/services/chat"
)

// App runs a Wire.
type App struct {
	wire *Wire
	in   io.Reader
	out  io.Writer
}

// New returns an App. in and out are the terminal, used in direct mode only.
func New(w *Wire, in io.Reader, out io.Writer) *App {
	return &App{wire: w, in: in, out: out}
}

// Run blocks until ctx is cancelled or the run ends on its own: end of input
// in direct mode, both sides gone in bridge modes.
func (a *App) Run(ctx context.Context) error {
	if a.wire.Mode == ModeDirect {
		return a.runDirect(ctx)
	}
	return a.runBridge(ctx)
}

func (a *App) runDirect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := a.wire
	c := chat.New(w.Config.UID, w.Primary, w.Cache, nil, w.Log)

	var g errgroup.Group
	g.Go(func() error {
		defer cancel()
		return w.Primary.Run(ctx)
	})
	g.Go(func() error {
		defer cancel()
		return c.Run(ctx, a.in, a.out)
	})
	return g.Wait()
}

func (a *App) runBridge(ctx context.Context) error {
	w := a.wire
	if addr := w.Config.MetricsAddr; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		srv := &http.Server{Handler: metrics.Handler(w.Bridge), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				w.Log.Error().Err(err).Msg("metrics server")
			}
		}()
		w.Log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}
	return w.Bridge.Run(ctx)
}
