package config

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"spiral-forge/internal/logging"
	"spiral-forge/internal/render"
	"spiral-forge/internal/trainer"
)

// EnvPrefix prefixes every environment override, e.g. SPIRAL_STEPS.
const EnvPrefix = "spiral"

// Config captures the runtime knobs for a training run.
type Config struct {
	Radius       float64 `mapstructure:"radius" yaml:"radius"`
	Span         float64 `mapstructure:"span" yaml:"span"`
	TotalSamples int     `mapstructure:"total_samples" yaml:"total_samples"`
	NumClasses   int     `mapstructure:"num_classes" yaml:"num_classes"`
	DataRandMax  float64 `mapstructure:"data_rand_max" yaml:"data_rand_max"`

	NetworkRandMax float64 `mapstructure:"network_rand_max" yaml:"network_rand_max"`
	HiddenSize     int     `mapstructure:"hidden_size" yaml:"hidden_size"`
	DescentRate    float64 `mapstructure:"descent_rate" yaml:"descent_rate"`
	RegularRate    float64 `mapstructure:"regular_rate" yaml:"regular_rate"`

	Steps    int `mapstructure:"steps" yaml:"steps"`
	LogEvery int `mapstructure:"log_every" yaml:"log_every"`

	RenderWidth  int     `mapstructure:"render_width" yaml:"render_width"`
	RenderHeight int     `mapstructure:"render_height" yaml:"render_height"`
	RenderSpan   float64 `mapstructure:"render_span" yaml:"render_span"`
	RenderOut    string  `mapstructure:"render_out" yaml:"render_out"`

	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`

	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
	LogPath    string `mapstructure:"log_path" yaml:"log_path"`
	LogConsole bool   `mapstructure:"log_console" yaml:"log_console"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Steps        int
	LogEvery     int
	TotalSamples int
	NumClasses   int
	HiddenSize   int
	DescentRate  float64
	RegularRate  float64
	RenderOut    string
	ListenAddr   string
	LogLevel     string
}

var defaults = map[string]any{
	"radius":           1.0,
	"span":             math.Pi,
	"total_samples":    300,
	"num_classes":      3,
	"data_rand_max":    0.25,
	"network_rand_max": 0.1,
	"hidden_size":      100,
	"descent_rate":     1.0,
	"regular_rate":     0.001,
	"steps":            1000,
	"log_every":        50,
	"render_width":     256,
	"render_height":    256,
	"render_span":      2.0,
	"render_out":       "",
	"listen_addr":      "127.0.0.1:50051",
	"log_level":        "info",
	"log_path":         "",
	"log_console":      true,
}

// Load reads and validates a Config from YAML. An empty path uses the built-in
// defaults. SPIRAL_* environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config{}
	if err := v.UnmarshalExact(cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Steps > 0 {
		c.Steps = o.Steps
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.TotalSamples > 0 {
		c.TotalSamples = o.TotalSamples
	}
	if o.NumClasses > 0 {
		c.NumClasses = o.NumClasses
	}
	if o.HiddenSize > 0 {
		c.HiddenSize = o.HiddenSize
	}
	if o.DescentRate > 0 {
		c.DescentRate = o.DescentRate
	}
	if o.RegularRate > 0 {
		c.RegularRate = o.RegularRate
	}
	if o.RenderOut != "" {
		c.RenderOut = o.RenderOut
	}
	if o.ListenAddr != "" {
		c.ListenAddr = o.ListenAddr
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.SessionParams().Validate(); err != nil {
		return err
	}
	if c.Steps <= 0 {
		return errors.Errorf("steps must be > 0 (got %d)", c.Steps)
	}
	if c.RenderWidth <= 0 || c.RenderHeight <= 0 {
		return errors.Errorf("render size must be positive (got %dx%d)", c.RenderWidth, c.RenderHeight)
	}
	if c.RenderSpan <= 0 {
		return errors.Errorf("render_span must be > 0 (got %v)", c.RenderSpan)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 50
	}
	return nil
}

// SessionParams returns the dataset, network and optimizer settings.
func (c *Config) SessionParams() trainer.SessionParams {
	return trainer.SessionParams{
		Radius:         c.Radius,
		Span:           c.Span,
		TotalSamples:   c.TotalSamples,
		NumClasses:     c.NumClasses,
		DataRandMax:    c.DataRandMax,
		NetworkRandMax: c.NetworkRandMax,
		HiddenSize:     c.HiddenSize,
		DescentRate:    c.DescentRate,
		RegularRate:    c.RegularRate,
	}
}

// Viewport returns the canvas used for PNG output.
func (c *Config) Viewport() render.Viewport {
	return render.Viewport{Width: c.RenderWidth, Height: c.RenderHeight, SpanLeast: c.RenderSpan}
}

// LogConfig builds the logging configuration. Validate must have succeeded.
func (c *Config) LogConfig() *logging.LogConfig {
	lc := logging.DefaultLogConfig(c.LogPath == "")
	lc.LogPath = c.LogPath
	lc.LogLevel, _ = logging.ParseLevel(c.LogLevel)
	lc.LogInConsole = c.LogConsole
	return lc
}
