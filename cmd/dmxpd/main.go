// Command dmxpd is the long-running daemon side of the control plane:
// it attaches a region once, serves the diagnostics HTTP server
// (internal/diag) and the Unix-socket reset protocol (internal/ctl) for
// as long as it runs, and exits cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/neerajchowdary889/DMXP-MPMC/bus"
	"github.com/neerajchowdary889/DMXP-MPMC/config"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/ctl"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/diag"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/logx"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "path to a TOML config file")
		path    = flag.String("path", "", "override the region file path")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			panic(err) // no logger constructed yet to report through
		}
	}
	cfg = config.LoadEnv(cfg, os.Getenv("DMXP_ENV_FILE"))
	if *path != "" {
		cfg.RegionPath = *path
	}

	logger := logx.New(logx.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}, "dmxpd")

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug().Msgf(format, args...)
	})); err != nil {
		logger.Warn().Err(err).Msg("automaxprocs: could not adjust GOMAXPROCS")
	}

	b, err := bus.Attach(cfg.RegionPath, bus.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.RegionPath).Msg("attach")
	}
	defer b.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup

	if cfg.Diagnostics.Enabled {
		metrics := diag.NewMetrics(prometheus.NewRegistry())
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv := &http.Server{Addr: cfg.Diagnostics.Listen, Handler: diag.NewServer(diag.ServerConfig{Bus: b, Logger: logger, Metrics: metrics})}
			go func() {
				<-ctx.Done()
				_ = srv.Close()
			}()
			logger.Info().Str("listen", cfg.Diagnostics.Listen).Msg("diagnostics: listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("diagnostics: server stopped")
			}
		}()
	}

	ctlSrv, err := ctl.NewServer(cfg.Control.SocketPath, b, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Control.SocketPath).Msg("ctl: listen")
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Str("path", cfg.Control.SocketPath).Msg("ctl: listening")
		ctlSrv.Serve()
	}()
	go func() {
		<-ctx.Done()
		ctlSrv.Close()
	}()

	<-ctx.Done()
	logger.Info().Msg("dmxpd: shutting down")
	wg.Wait()
}
