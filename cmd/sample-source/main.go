// Command sample-source emits a synthetic waveform for the viewer, either
// as a WebSocket server the viewer dials or as a gRPC stream pushed to it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/yourorg/liveview/internal/generator"
)

const connectAttempts = 30

type options struct {
	mode      string
	listen    string
	path      string
	id        int64
	wave      string
	interval  time.Duration
	min       float64
	max       float64
	frequency float64
	timezone  string
	target    string
	apiKey    string
	batch     int
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		logger.Error("sample source failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	var opts options
	fs := pflag.NewFlagSet("sample-source", pflag.ContinueOnError)
	fs.StringVar(&opts.mode, "mode", "ws", "ws serves samples over WebSocket, grpc pushes them to the viewer")
	fs.StringVar(&opts.listen, "listen", ":8765", "WebSocket listen address (ws mode)")
	fs.StringVar(&opts.path, "path", "/", "WebSocket path (ws mode)")
	fs.Int64Var(&opts.id, "id", 1, "channel id stamped on every sample")
	fs.StringVar(&opts.wave, "wave", "sawtooth", "waveform: sawtooth or sine")
	fs.DurationVar(&opts.interval, "interval", 3*time.Millisecond, "time between samples")
	fs.Float64Var(&opts.min, "min", 0, "waveform minimum")
	fs.Float64Var(&opts.max, "max", 1, "waveform maximum")
	fs.Float64Var(&opts.frequency, "frequency", 1, "sine rate: the phase advances frequency*0.01 radians per sample, so the period in time also depends on --interval")
	fs.StringVar(&opts.timezone, "timezone", "", "zone of emitted timestamps (default local)")
	fs.StringVar(&opts.target, "target", "localhost:9000", "viewer gRPC address (grpc mode)")
	fs.StringVar(&opts.apiKey, "api-key", "", "API key sent to the viewer (grpc mode)")
	fs.IntVar(&opts.batch, "batch", 100, "samples per gRPC message (grpc mode)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	wave, err := generator.NewWaveform(opts.wave, opts.min, opts.max, opts.frequency)
	if err != nil {
		return err
	}
	loc := time.Local
	if opts.timezone != "" {
		if loc, err = time.LoadLocation(opts.timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	gen := &generator.Generator{ID: opts.id, Wave: wave, Location: loc}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting sample source", "mode", opts.mode, "id", opts.id, "wave", wave.Name(), "interval", opts.interval)

	switch opts.mode {
	case "ws":
		return serveWebSocket(ctx, opts, gen, logger)
	case "grpc":
		return pushGRPC(ctx, opts, gen, logger)
	default:
		return fmt.Errorf("unknown mode %q (want ws or grpc)", opts.mode)
	}
}

func serveWebSocket(ctx context.Context, opts options, gen *generator.Generator, logger *slog.Logger) error {
	server := generator.NewServer(gen, opts.interval, logger)
	go server.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc(opts.path, server.HandleWebSocket)
	srv := &http.Server{
		Addr:              opts.listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving samples", "addr", opts.listen, "path", opts.path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func pushGRPC(ctx context.Context, opts options, gen *generator.Generator, logger *slog.Logger) error {
	config := generator.DefaultPusherConfig()
	config.Target = opts.target
	config.APIKey = opts.apiKey
	config.SampleInterval = opts.interval
	config.BatchSize = opts.batch
	config.SourceName = fmt.Sprintf("sample-source-%d", opts.id)

	pusher := generator.NewPusher(config, gen, logger)

	// Retry with a linearly growing delay while the viewer comes up
	var err error
	for i := 0; i < connectAttempts; i++ {
		if err = pusher.Connect(); err == nil {
			break
		}
		logger.Warn("connect failed", "attempt", i+1, "of", connectAttempts, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(i+1) * time.Second):
		}
	}
	if err != nil {
		return err
	}

	pusher.Start()
	<-ctx.Done()

	ack, err := pusher.Stop()
	if err != nil {
		return fmt.Errorf("closing stream: %w", err)
	}
	logger.Info("stream closed", "sent", pusher.Sent(), "queued", ack.Queued, "rejected", ack.Rejected)
	return nil
}
