// SPDX-License-Identifier: EPL-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/ik5/slaudio/internal/config"
	"github.com/ik5/slaudio/opensl"
)

const shutdownTimeout = 5 * time.Second

var errStreamFailed = errors.New("stream reported an error")

type app struct {
	v           *viper.Viper
	cfgFile     string
	newPlatform PlatformFactory

	settings *config.Settings
	log      *slog.Logger
	registry *prometheus.Registry
}

func (a *app) setup(logOut io.Writer) error {
	settings, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.settings = settings
	a.log = settings.Logger(logOut)
	a.registry = prometheus.NewRegistry()
	return nil
}

func (a *app) openEngine() (*opensl.Engine, error) {
	p, err := a.newPlatform(a.settings, a.log)
	if err != nil {
		return nil, fmt.Errorf("opening audio platform: %w", err)
	}
	return opensl.Init(p, opensl.WithLogger(a.log), opensl.WithRegisterer(a.registry))
}

func streamName(kind string) string {
	return kind + "-" + uuid.NewString()[:8]
}

// closeStream stops and destroys stm, logging failures.
func (a *app) closeStream(stm *opensl.Stream) {
	if err := stm.Stop(context.Background()); err != nil {
		a.log.Warn("stopping stream", "stream", stm.Name(), "error", err)
	}
	if err := stm.Destroy(); err != nil {
		a.log.Warn("destroying stream", "stream", stm.Name(), "error", err)
	}
}

// serve runs fn, keeping the metrics endpoint up meanwhile when one is
// configured.
func (a *app) serve(ctx context.Context, fn func(context.Context) error) error {
	listen := a.settings.Metrics.Listen
	if listen == "" {
		return fn(ctx)
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: shutdownTimeout}
	a.log.Info("serving metrics", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()
		return fn(gctx)
	})
	return g.Wait()
}

// stateWaiter turns stream state callbacks into something a command can
// block on.
type stateWaiter struct {
	ch chan opensl.State
}

func newStateWaiter() *stateWaiter {
	return &stateWaiter{ch: make(chan opensl.State, 16)}
}

func (w *stateWaiter) callback(s opensl.State) {
	select {
	case w.ch <- s:
	default:
	}
}

// wait blocks until the stream drained, failed or ctx ended.
func (w *stateWaiter) wait(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-w.ch:
			switch s {
			case opensl.StateDrained:
				return nil
			case opensl.StateError:
				return errStreamFailed
			}
		}
	}
}

// interrupted reports whether err only says that the user stopped the
// command.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
