package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/yourorg/liveview/internal/api"
	"github.com/yourorg/liveview/internal/auth"
	"github.com/yourorg/liveview/internal/config"
	"github.com/yourorg/liveview/internal/export"
	"github.com/yourorg/liveview/internal/ingest"
	"github.com/yourorg/liveview/internal/render"
	"github.com/yourorg/liveview/internal/session"
	"github.com/yourorg/liveview/internal/ui"
	"github.com/yourorg/liveview/internal/ws"
)

const (
	shutdownTimeout = 10 * time.Second
	statusInterval  = time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "liveview: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("liveview", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(fs, os.LookupEnv)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("ingest.timezone: %w", err)
	}
	axis, err := cfg.AxisPolicy()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exporter := export.NewPrometheusExporter()
	coord := ingest.NewCoordinator(ingest.Config{
		Capacity:        cfg.Store.Capacity,
		RedrawThreshold: cfg.Ingest.RedrawThreshold,
		Decoder:         ingest.Decoder{Location: loc},
		Observer:        exporter,
		Logger:          logger.With("component", "ingest"),
	})

	sess := session.New(coord, session.Config{
		Sources:        cfg.Sources,
		QueueSize:      cfg.Ingest.QueueSize,
		ReconnectDelay: cfg.ReconnectDelay,
	}, logger.With("component", "session"))

	authenticator := auth.NewAuthenticator(cfg.Auth.APIKeys, logger.With("component", "auth"))
	hub := ws.NewHub(axis, logger.With("component", "ws"))

	surfaces := []render.Surface{hub, exporter}
	var feed *render.Feed
	if cfg.Render.Mode == config.ModeTUI {
		feed = render.NewFeed()
		surfaces = append(surfaces, feed)
	}
	loop := render.NewLoop(coord, coord.Redraw(), cfg.RenderOptions(), cfg.Render.Refresh,
		logger.With("component", "render"), surfaces...)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error {
		return exporter.UpdateLoop(gctx, statusInterval, export.Status{
			Viewers: hub.ClientCount,
			Running: sess.Running,
		})
	})

	if cfg.Listen.HTTP != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", authenticator.Middleware(http.HandlerFunc(hub.HandleWebSocket)))
		api.NewServer(coord, sess.Control(gctx)).
			WithGuard(authenticator.Middleware).
			RegisterRoutes(mux)
		serveHTTP(gctx, g, "http", cfg.Listen.HTTP, mux, logger)
	}

	if cfg.Listen.Metrics != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if err := exporter.Register(reg); err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		serveHTTP(gctx, g, "metrics", cfg.Listen.Metrics, mux, logger)
	}

	if cfg.Listen.GRPC != "" {
		lis, err := net.Listen("tcp", cfg.Listen.GRPC)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.Listen.GRPC, err)
		}
		grpcServer := grpc.NewServer(grpc.StreamInterceptor(authenticator.StreamInterceptor()))
		ingest.RegisterSampleIngestorServer(grpcServer, ingest.NewServer(sess, logger.With("component", "grpc")))

		g.Go(func() error {
			logger.Info("gRPC ingest listening", "addr", cfg.Listen.GRPC)
			return grpcServer.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	sess.Start(gctx)
	logger.Info("session started", "sources", len(cfg.Sources), "mode", cfg.Render.Mode)

	if feed != nil {
		model := ui.New(feed.Frames(), sess.Control(gctx), coord, ui.Options{
			Axis:   axis,
			Recent: cfg.Render.Recent,
		})
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			logger.Error("terminal UI failed", "error", err)
		}
		stop()
	}

	<-gctx.Done()
	logger.Info("shutting down")
	sess.Stop()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := coord.Stats()
	logger.Info("stopped", "ingested", stats.Ingested, "dropped", stats.Dropped, "redraws", stats.Redraws)
	return nil
}

// serveHTTP runs srv in g and shuts it down once ctx is done
func serveHTTP(ctx context.Context, g *errgroup.Group, name, addr string, handler http.Handler, logger *slog.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info("server listening", "server", name, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// newLogger builds the slog handler. The terminal UI owns stdout and
// stderr, so it always logs to a file.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}

	switch {
	case cfg.Log.File != "":
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w, closeFn = f, func() { f.Close() }
	case cfg.Render.Mode == config.ModeTUI:
		f, err := os.CreateTemp("", "liveview-*.log")
		if err != nil {
			return nil, nil, fmt.Errorf("creating log file: %w", err)
		}
		w, closeFn = f, func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), closeFn, nil
}
