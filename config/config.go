package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/heizmon/heizdiag/observe"
	"github.com/heizmon/heizdiag/onewire"
)

// Duration wraps time.Duration so yaml values can use Go duration syntax
// ("5s", "1h"), which yaml.v3 does not decode into time.Duration itself.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String formats like time.Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config is the complete configuration for a diagnostic run, sourced once
// by the caller and passed into each component at construction.
type Config struct {
	Influx     InfluxConfig     `yaml:"influx"`
	Service    ServiceConfig    `yaml:"service"`
	Containers ContainersConfig `yaml:"containers"`
	Bus        BusConfig        `yaml:"bus"`
	Probe      ProbeConfig      `yaml:"probe"`
	Serve      ServeConfig      `yaml:"serve"`
	History    HistoryConfig    `yaml:"history"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// InfluxConfig describes the time-series database.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`

	// Token is sourced from INFLUXDB_TOKEN, never from the yaml file.
	Token string `yaml:"-"`

	// Categories are the measurements the pipeline is expected to write.
	Categories []string `yaml:"categories"`

	Timeout Duration `yaml:"timeout"`
}

// ServiceConfig describes the collector service.
type ServiceConfig struct {
	Name      string   `yaml:"name"`
	LogWindow Duration `yaml:"log_window"`
}

// ContainersConfig describes the expected container workloads.
type ContainersConfig struct {
	// Expected are name substrings of workloads that must be running.
	Expected []string `yaml:"expected"`

	// Critical names the container hosting the database.
	Critical string `yaml:"critical"`
}

// BusConfig describes the 1-Wire bus.
type BusConfig struct {
	Dir string `yaml:"dir"`
}

// ProbeConfig bounds the diagnostic run.
type ProbeConfig struct {
	Timeout           Duration `yaml:"timeout"`
	SensorRetries     int      `yaml:"sensor_retries"`
	SensorRetryDelay  Duration `yaml:"sensor_retry_delay"`
	SensorConcurrency int      `yaml:"sensor_concurrency"`
}

// ServeConfig configures the long-running HTTP mode.
type ServeConfig struct {
	Addr string `yaml:"addr"`

	// Interval between background diagnostic runs in serve mode.
	Interval Duration `yaml:"interval"`

	// Secret signs and verifies bearer tokens; sourced from
	// HEIZDIAG_SECRET, never from the yaml file. Empty disables auth.
	Secret string `yaml:"-"`
}

// HistoryConfig configures the run journal.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// TelemetryConfig mirrors observe.Config with yaml tags.
type TelemetryConfig struct {
	Tracing struct {
		Enabled   bool    `yaml:"enabled"`
		Exporter  string  `yaml:"exporter"`
		SamplePct float64 `yaml:"sample_pct"`
	} `yaml:"tracing"`
	Metrics struct {
		Enabled  bool   `yaml:"enabled"`
		Exporter string `yaml:"exporter"`
	} `yaml:"metrics"`
	// Logging defaults to enabled; Enabled is a pointer so an explicit
	// false in the file survives defaulting.
	Logging struct {
		Enabled *bool  `yaml:"enabled"`
		Level   string `yaml:"level"`
	} `yaml:"logging"`
}

// Observe converts the telemetry section for observe.NewObserver.
func (t TelemetryConfig) Observe(serviceName, version string) observe.Config {
	return observe.Config{
		ServiceName: serviceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   t.Tracing.Enabled,
			Exporter:  t.Tracing.Exporter,
			SamplePct: t.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  t.Metrics.Enabled,
			Exporter: t.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: t.Logging.Enabled == nil || *t.Logging.Enabled,
			Level:   t.Logging.Level,
		},
	}
}

// Load reads the configuration. A .env file in the working directory is
// merged into the environment first, matching how the deployment's other
// tooling carries the database token. path may be empty for defaults only.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("config: load .env: %w", err)
		}
	}

	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Influx.URL == "" {
		c.Influx.URL = "http://localhost:8086"
	}
	if c.Influx.Org == "" {
		c.Influx.Org = "heizung"
	}
	if c.Influx.Bucket == "" {
		c.Influx.Bucket = "heizung-daten"
	}
	if len(c.Influx.Categories) == 0 {
		c.Influx.Categories = []string{"heating_temperature", "heating_efficiency", "room_climate"}
	}
	if c.Influx.Timeout == 0 {
		c.Influx.Timeout = Duration(5 * time.Second)
	}
	if c.Service.Name == "" {
		c.Service.Name = "heizung-monitor"
	}
	if c.Service.LogWindow == 0 {
		c.Service.LogWindow = Duration(time.Hour)
	}
	if len(c.Containers.Expected) == 0 {
		c.Containers.Expected = []string{"influxdb", "grafana"}
	}
	if c.Containers.Critical == "" {
		c.Containers.Critical = "influxdb"
	}
	if c.Bus.Dir == "" {
		c.Bus.Dir = onewire.DefaultBusDir
	}
	if c.Probe.Timeout == 0 {
		c.Probe.Timeout = Duration(10 * time.Second)
	}
	if c.Probe.SensorRetries == 0 {
		c.Probe.SensorRetries = 3
	}
	if c.Probe.SensorRetryDelay == 0 {
		c.Probe.SensorRetryDelay = Duration(250 * time.Millisecond)
	}
	if c.Probe.SensorConcurrency == 0 {
		c.Probe.SensorConcurrency = 4
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = ":8799"
	}
	if c.Serve.Interval == 0 {
		c.Serve.Interval = Duration(5 * time.Minute)
	}
	if c.History.Path == "" {
		c.History.Path = "/var/lib/heizdiag/history.db"
	}
	if c.Telemetry.Logging.Level == "" {
		c.Telemetry.Logging.Level = "info"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		c.Influx.Token = v
	}
	if v := os.Getenv("INFLUXDB_URL"); v != "" {
		c.Influx.URL = v
	}
	if v := os.Getenv("INFLUXDB_ORG"); v != "" {
		c.Influx.Org = v
	}
	if v := os.Getenv("HEIZDIAG_SECRET"); v != "" {
		c.Serve.Secret = v
	}
}

func (c *Config) validate() error {
	if c.Influx.URL == "" {
		return fmt.Errorf("config: influx.url is required")
	}
	if c.Influx.Bucket == "" {
		return fmt.Errorf("config: influx.bucket is required")
	}
	if c.Containers.Critical == "" {
		return fmt.Errorf("config: containers.critical is required")
	}
	if !contains(c.Containers.Expected, c.Containers.Critical) {
		return fmt.Errorf("config: containers.critical %q must be listed in containers.expected", c.Containers.Critical)
	}
	if c.Probe.SensorRetries < 1 {
		return fmt.Errorf("config: probe.sensor_retries must be at least 1")
	}
	return nil
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
