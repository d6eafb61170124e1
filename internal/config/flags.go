package config

import (
	"strings"

	"github.com/spf13/pflag"
)

// Flag names shared by RegisterFlags and ApplyFlags
const (
	FlagConfig          = "config"
	FlagSource          = "source"
	FlagCapacity        = "capacity"
	FlagRedrawThreshold = "redraw-threshold"
	FlagQueueSize       = "queue-size"
	FlagTimezone        = "timezone"
	FlagReconnect       = "reconnect"
	FlagHTTP            = "http"
	FlagGRPC            = "grpc"
	FlagMetrics         = "metrics"
	FlagMode            = "mode"
	FlagAxis            = "axis"
	FlagRefresh         = "refresh"
	FlagWindow          = "window"
	FlagRecent          = "recent"
	FlagAPIKey          = "api-key"
	FlagLogLevel        = "log-level"
	FlagLogFormat       = "log-format"
	FlagLogFile         = "log-file"
)

// RegisterFlags defines every override flag on fs. Defaults shown in the
// usage text are the built-in ones; only flags that are set on the command
// line override the file and environment.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.StringP(FlagConfig, "c", "", "path to a YAML configuration file")
	fs.StringSliceP(FlagSource, "s", nil, "WebSocket source URL (repeatable)")
	fs.Int(FlagCapacity, d.Store.Capacity, "samples kept per channel")
	fs.Int(FlagRedrawThreshold, d.Ingest.RedrawThreshold, "accepted samples between redraws")
	fs.Int(FlagQueueSize, d.Ingest.QueueSize, "units buffered for the ingestion worker")
	fs.String(FlagTimezone, d.Ingest.Timezone, "zone for timestamps without an offset (default local)")
	fs.Duration(FlagReconnect, d.ReconnectDelay, "redial delay after a source drops (0 disables)")
	fs.String(FlagHTTP, d.Listen.HTTP, "HTTP API and viewer WebSocket address (empty disables)")
	fs.String(FlagGRPC, d.Listen.GRPC, "gRPC ingest address (empty disables)")
	fs.String(FlagMetrics, d.Listen.Metrics, "Prometheus metrics address (empty disables)")
	fs.String(FlagMode, d.Render.Mode, "render mode: tui or headless")
	fs.String(FlagAxis, d.Render.Axis, "shared x-axis: union or intersection")
	fs.Duration(FlagRefresh, d.Render.Refresh, "periodic redraw interval (0 disables)")
	fs.Int(FlagWindow, d.Render.Window, "plot only the newest N samples per channel (0 = all)")
	fs.Int(FlagRecent, d.Render.Recent, "samples shown per channel by the list view")
	fs.StringSlice(FlagAPIKey, nil, "accepted API key (repeatable)")
	fs.String(FlagLogLevel, d.Log.Level, "log level: debug, info, warn, error")
	fs.String(FlagLogFormat, d.Log.Format, "log format: text or json")
	fs.String(FlagLogFile, d.Log.File, "write logs to this file")
}

// ApplyFlags copies every flag that was set on the command line into c
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && fs.Changed(name) {
			err = apply()
		}
	}
	intFlag := func(name string, dst *int) {
		set(name, func() (e error) { *dst, e = fs.GetInt(name); return })
	}
	stringFlag := func(name string, dst *string) {
		set(name, func() (e error) { *dst, e = fs.GetString(name); return })
	}

	intFlag(FlagCapacity, &c.Store.Capacity)
	intFlag(FlagRedrawThreshold, &c.Ingest.RedrawThreshold)
	intFlag(FlagQueueSize, &c.Ingest.QueueSize)
	intFlag(FlagWindow, &c.Render.Window)
	intFlag(FlagRecent, &c.Render.Recent)

	stringFlag(FlagTimezone, &c.Ingest.Timezone)
	stringFlag(FlagHTTP, &c.Listen.HTTP)
	stringFlag(FlagGRPC, &c.Listen.GRPC)
	stringFlag(FlagMetrics, &c.Listen.Metrics)
	stringFlag(FlagMode, &c.Render.Mode)
	stringFlag(FlagAxis, &c.Render.Axis)
	stringFlag(FlagLogLevel, &c.Log.Level)
	stringFlag(FlagLogFormat, &c.Log.Format)
	stringFlag(FlagLogFile, &c.Log.File)

	set(FlagReconnect, func() (e error) { c.ReconnectDelay, e = fs.GetDuration(FlagReconnect); return })
	set(FlagRefresh, func() (e error) { c.Render.Refresh, e = fs.GetDuration(FlagRefresh); return })
	set(FlagSource, func() error {
		urls, e := fs.GetStringSlice(FlagSource)
		c.Sources = ParseSources(strings.Join(urls, ","))
		return e
	})
	set(FlagAPIKey, func() (e error) { c.Auth.APIKeys, e = fs.GetStringSlice(FlagAPIKey); return })

	return err
}

// Load builds the configuration from all layers: defaults, the file named
// by --config, LIVEVIEW_* variables found by lookup, and set flags.
func Load(fs *pflag.FlagSet, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	path, _ := fs.GetString(FlagConfig)
	if path == "" {
		path, _ = lookup(EnvPrefix + "CONFIG")
	}
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.ApplyFlags(fs); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
