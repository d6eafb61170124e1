// Package config loads the viewer configuration.
//
// Values are layered: built-in defaults, then the YAML file named by
// --config, then LIVEVIEW_* environment variables, then command-line flags.
// Each layer only overrides what it sets.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/liveview/internal/buffer"
	"github.com/yourorg/liveview/internal/ingest"
	"github.com/yourorg/liveview/internal/render"
	"github.com/yourorg/liveview/internal/transport"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "LIVEVIEW_"

// Render modes
const (
	ModeTUI      = "tui"
	ModeHeadless = "headless"
)

// Config is the complete viewer configuration
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Ingest IngestConfig `yaml:"ingest"`

	// Sources are the WebSocket endpoints to read samples from.
	Sources []transport.Source `yaml:"sources"`

	// ReconnectDelay makes source clients redial after a dropped
	// connection. Zero disables reconnecting.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	Listen ListenConfig `yaml:"listen"`
	Render RenderConfig `yaml:"render"`
	Auth   AuthConfig   `yaml:"auth"`
	Log    LogConfig    `yaml:"log"`
}

// StoreConfig sizes the per-channel rings
type StoreConfig struct {
	// Capacity is the number of samples kept per channel.
	// Default: 1000
	Capacity int `yaml:"capacity"`
}

// IngestConfig controls the ingestion worker
type IngestConfig struct {
	// RedrawThreshold is the number of accepted samples between redraws.
	// Default: 100
	RedrawThreshold int `yaml:"redraw_threshold"`

	// QueueSize bounds the units waiting for the worker.
	// Default: 1024
	QueueSize int `yaml:"queue_size"`

	// Timezone interprets zone-less timestamps. Empty means the local zone.
	Timezone string `yaml:"timezone"`
}

// ListenConfig holds listen addresses. An empty address disables that server.
type ListenConfig struct {
	HTTP    string `yaml:"http"`
	GRPC    string `yaml:"grpc"`
	Metrics string `yaml:"metrics"`
}

// RenderConfig controls frames and the terminal chart
type RenderConfig struct {
	// Mode is "tui" or "headless"
	Mode string `yaml:"mode"`

	// Axis is the shared x-axis policy, "union" or "intersection"
	Axis string `yaml:"axis"`

	// Refresh draws a frame periodically even without a redraw signal.
	Refresh time.Duration `yaml:"refresh"`

	// Window limits each plotted series to its newest samples. Zero plots
	// the whole store.
	Window int `yaml:"window"`

	// Recent is how many samples the list view shows per channel.
	Recent int `yaml:"recent"`

	// Subsample keeps every k-th sample of a channel when plotting.
	Subsample map[buffer.ChannelID]int `yaml:"subsample"`
}

// AuthConfig configures API-key authentication
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// File receives logs instead of stderr. The terminal UI uses a
	// temporary file when this is empty.
	File string `yaml:"file"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Capacity: buffer.DefaultCapacity,
		},
		Ingest: IngestConfig{
			RedrawThreshold: ingest.DefaultRedrawThreshold,
			QueueSize:       ingest.DefaultQueueSize,
		},
		Listen: ListenConfig{
			HTTP:    ":8080",
			GRPC:    ":9000",
			Metrics: ":9100",
		},
		Render: RenderConfig{
			Mode:    ModeTUI,
			Axis:    render.AxisUnion.String(),
			Refresh: 250 * time.Millisecond,
			Recent:  10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFile reads a YAML file over the defaults
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// ApplyEnv overrides fields from LIVEVIEW_* variables found by lookup.
// Pass os.LookupEnv in production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	ints := map[string]*int{
		"CAPACITY":         &c.Store.Capacity,
		"REDRAW_THRESHOLD": &c.Ingest.RedrawThreshold,
		"QUEUE_SIZE":       &c.Ingest.QueueSize,
		"WINDOW":           &c.Render.Window,
		"RECENT":           &c.Render.Recent,
	}
	for name, dst := range ints {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"RECONNECT_DELAY": &c.ReconnectDelay,
		"REFRESH":         &c.Render.Refresh,
	}
	for name, dst := range durations {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	strs := map[string]*string{
		"TIMEZONE":     &c.Ingest.Timezone,
		"HTTP_ADDR":    &c.Listen.HTTP,
		"GRPC_ADDR":    &c.Listen.GRPC,
		"METRICS_ADDR": &c.Listen.Metrics,
		"MODE":         &c.Render.Mode,
		"AXIS":         &c.Render.Axis,
		"LOG_LEVEL":    &c.Log.Level,
		"LOG_FORMAT":   &c.Log.Format,
		"LOG_FILE":     &c.Log.File,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	if v, ok := get("SOURCES"); ok {
		c.Sources = ParseSources(v)
	}
	if v, ok := get("API_KEYS"); ok {
		c.Auth.APIKeys = splitList(v)
	}
	return nil
}

// ParseSources turns a comma-separated URL list into sources without
// control messages
func ParseSources(list string) []transport.Source {
	var sources []transport.Source
	for _, u := range splitList(list) {
		sources = append(sources, transport.Source{URL: u})
	}
	return sources
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every invalid field
func (c *Config) Validate() error {
	var errs []error

	if c.Store.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("store.capacity must be positive, got %d", c.Store.Capacity))
	}
	if c.Ingest.RedrawThreshold <= 0 {
		errs = append(errs, fmt.Errorf("ingest.redraw_threshold must be positive, got %d", c.Ingest.RedrawThreshold))
	}
	if c.Ingest.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest.queue_size must be positive, got %d", c.Ingest.QueueSize))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("ingest.timezone: %w", err))
	}
	if c.ReconnectDelay < 0 {
		errs = append(errs, fmt.Errorf("reconnect_delay must not be negative, got %s", c.ReconnectDelay))
	}

	for i, src := range c.Sources {
		u, err := url.Parse(src.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("sources[%d]: %w", i, err))
			continue
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			errs = append(errs, fmt.Errorf("sources[%d]: scheme must be ws or wss, got %q", i, src.URL))
		}
	}

	if c.Render.Mode != ModeTUI && c.Render.Mode != ModeHeadless {
		errs = append(errs, fmt.Errorf("render.mode must be %q or %q, got %q", ModeTUI, ModeHeadless, c.Render.Mode))
	}
	if _, err := c.AxisPolicy(); err != nil {
		errs = append(errs, fmt.Errorf("render.axis: %w", err))
	}
	if c.Render.Refresh < 0 {
		errs = append(errs, fmt.Errorf("render.refresh must not be negative, got %s", c.Render.Refresh))
	}
	if c.Render.Window < 0 {
		errs = append(errs, fmt.Errorf("render.window must not be negative, got %d", c.Render.Window))
	}
	if c.Render.Recent <= 0 {
		errs = append(errs, fmt.Errorf("render.recent must be positive, got %d", c.Render.Recent))
	}
	for ch, k := range c.Render.Subsample {
		if k < 1 {
			errs = append(errs, fmt.Errorf("render.subsample[%d] must be at least 1, got %d", ch, k))
		}
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Location resolves the ingest timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Ingest.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Ingest.Timezone)
}

// AxisPolicy parses the render axis
func (c *Config) AxisPolicy() (render.AxisPolicy, error) {
	return render.ParseAxisPolicy(c.Render.Axis)
}

// LogLevel parses the log level
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Log.Level))
	return level, err
}

// RenderOptions returns the frame options for the render loop
func (c *Config) RenderOptions() render.Options {
	return render.Options{
		Subsample: c.Render.Subsample,
		Window:    c.Render.Window,
	}
}
