// Command rhald serves the SPI buses, I2C buses and GPIO pins of this host to rhal clients.
//
// Usage:
//
//	rhald [-bind 0.0.0.0:10004] [-driver linux|sim] [-log-level info] [-metrics-addr :9100]
//	      [-release-on-disconnect] [-max-inflight 16] [-config rhald.yaml]
//
// The config file uses the same keys in snake case: bind, driver, log_level, metrics_addr,
// release_on_disconnect and max_inflight.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arloliu/go-rhal/driver"
	"github.com/arloliu/go-rhal/driver/sim"
	"github.com/arloliu/go-rhal/logger"
	"github.com/arloliu/go-rhal/metric"
	"github.com/arloliu/go-rhal/server"
)

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "rhald:", err)
		os.Exit(2)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	log := logger.NewSlog(level, false)
	logger.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, nil); err != nil {
		log.Error("rhald stopped", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx ends. ready, when not nil, receives the server once it is created.
func run(ctx context.Context, cfg *daemonConfig, log logger.Logger, ready chan<- *server.Server) error {
	opener, err := newOpener(cfg.Driver)
	if err != nil {
		return err
	}

	host, port, err := splitBind(cfg.Bind)
	if err != nil {
		return err
	}

	srvCfg, err := server.NewConfig(host, port,
		server.WithLogger(log),
		server.WithMaxInflight(cfg.MaxInflight),
		server.WithReleaseOnDisconnect(cfg.ReleaseOnDisconnect),
	)
	if err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	reg := server.NewRegistry(opener, log)
	defer func() {
		if err := reg.Close(); err != nil {
			log.Warn("failed to release devices", "error", err)
		}
	}()

	srv, err := server.NewServer(ctx, srvCfg, reg)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		metrics := metric.NewRegistry()
		if err := metrics.RegisterServer(srv.Metrics()); err != nil {
			return err
		}

		ms := metric.NewServer(cfg.MetricsAddr, metrics, log)
		go func() {
			if err := ms.ListenAndServe(); err != nil {
				log.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = ms.Shutdown(shutdownCtx)
		}()
	}

	if ready != nil {
		ready <- srv
	}

	log.Info("starting rhal server", "bind", cfg.Bind, "driver", cfg.Driver, "releaseOnDisconnect", cfg.ReleaseOnDisconnect)

	err = srv.ListenAndServe()
	if errors.Is(err, server.ErrServerClosed) {
		log.Info("exit signal received, rhal server stopped")
		return nil
	}

	_ = srv.Close()
	return err
}

func newOpener(name string) (driver.Opener, error) {
	switch name {
	case driverLinux:
		return driver.Linux(), nil
	case driverSim:
		return sim.New(), nil
	default:
		return nil, fmt.Errorf("invalid driver %q", name)
	}
}
