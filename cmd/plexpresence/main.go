package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"plexpresence/internal/config"
	"plexpresence/internal/httputil"
	xlog "plexpresence/internal/log"
	"plexpresence/internal/media/omdb"
	"plexpresence/internal/media/plex"
	"plexpresence/internal/metrics"
	"plexpresence/internal/poller"
	"plexpresence/internal/presence"
	"plexpresence/internal/server"
	"plexpresence/internal/tray"
)

var errServerUnreachable = errors.New("cannot reach Plex server")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "plexpresence: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	console := isatty.IsTerminal(os.Stderr.Fd())
	xlog.Configure(xlog.Config{Console: console})

	path := config.Path()
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, config.ErrConfigCreated) {
			return err
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	xlog.Configure(xlog.Config{Level: cfg.LogLevel, Console: console})
	logger := xlog.WithComponent("main")

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	var plexOpts []plex.Option
	if cfg.OMDbAPIKey != "" {
		plexOpts = append(plexOpts, plex.WithArtwork(omdb.New(cfg.OMDbAPIKey)))
	}
	src := plex.New(cfg.ServerURL, cfg.Token, plexOpts...)
	checkCtx, checkCancel := context.WithTimeout(ctx, httputil.DefaultTimeout)
	err = src.TestConnection(checkCtx)
	checkCancel()
	if err != nil {
		return fmt.Errorf("%w at %s: %v\ncheck server_url and token in %s", errServerUnreachable, cfg.ServerURL, err, path)
	}
	logger.Info().Str("server", src.URL()).Msg("connected to Plex")

	clientID := cfg.DiscordClientID
	if clientID == "" {
		clientID = presence.DefaultClientID
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	p := poller.New(src,
		presence.NewChannel(presence.IPCDialer(clientID)),
		cfg.PollingInterval(),
		poller.WithMetrics(metrics.New(reg)),
	)

	holder := config.NewHolder(cfg, path)
	reloads := make(chan config.Config, 1)
	holder.Subscribe(reloads)

	actions := make(chan tray.Action, 1)
	// stdin reads cannot be interrupted, so this goroutine is left to die
	// with the process.
	go func() {
		if err := tray.ReadActions(ctx, os.Stdin, actions); err != nil {
			logger.Debug().Err(err).Msg("reading console input")
		}
	}()
	fmt.Fprintf(os.Stdout, "plexpresence running. Commands: open, quit\n")
	shell := tray.New(p.Status(), actions, path, tray.WithOutput(os.Stdout))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := holder.Watch(gctx); err != nil {
			logger.Warn().Err(err).Msg("config hot reload disabled")
		}
		return nil
	})
	g.Go(func() error {
		applyReloads(gctx, reloads, p)
		return nil
	})
	if cfg.DiagnosticsAddr != "" {
		g.Go(func() error {
			srv := server.NewServer(p, server.WithGatherer(reg))
			if err := srv.ListenAndServe(gctx, cfg.DiagnosticsAddr); err != nil {
				logger.Error().Err(err).Str("addr", cfg.DiagnosticsAddr).Msg("diagnostics server failed")
			}
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		return shell.Run(gctx)
	})

	err = g.Wait()
	logger.Info().Msg("shut down")
	return err
}

// applyReloads applies the settings that can change without a restart.
func applyReloads(ctx context.Context, reloads <-chan config.Config, p *poller.Poller) {
	logger := xlog.WithComponent("config")
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-reloads:
			p.SetInterval(cfg.PollingInterval())
			if cfg.LogLevel != "" {
				if err := xlog.SetLevel(cfg.LogLevel); err != nil {
					logger.Warn().Err(err).Str("level", cfg.LogLevel).Msg("ignoring invalid log level")
				}
			}
		}
	}
}
