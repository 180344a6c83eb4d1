package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/loykin/linesink/cmd/linesink/sink/console"
	"github.com/loykin/linesink/cmd/linesink/sink/file"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

// RunConfig drives the demo writers.
type RunConfig struct {
	Writers      int           `mapstructure:"writers"`
	Lines        int           `mapstructure:"lines"`      // lines per writer
	Width        int           `mapstructure:"width"`      // body width of each line
	ChunkSize    int           `mapstructure:"chunk-size"` // bytes per Write call; 0 writes whole lines
	Safe         bool          `mapstructure:"safe"`       // route writers through the line-synchronizing writer
	Trailer      string        `mapstructure:"trailer"`    // unterminated fragment written by each writer before close
	CloseRetries int           `mapstructure:"close-retries"`
	CloseBackoff time.Duration `mapstructure:"close-backoff"`
	Verify       bool          `mapstructure:"verify"` // verify the file sink after the run
}

// SinkConfig selects the wrapped sink.
type SinkConfig struct {
	Type    string         `mapstructure:"type"` // "console" or "file"
	Console console.Config `mapstructure:"console"`
	File    file.Config    `mapstructure:"file"`
}

// VerifyConfig holds options of the verify command.
type VerifyConfig struct {
	AllowPartial bool `mapstructure:"allow-partial"`
}

// PrometheusConfig holds metrics endpoint options.
type PrometheusConfig struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
}

// Config holds all configuration options for the linesink application.
type Config struct {
	// Optional config file path (flag/env only)
	ConfigFile string

	Log        LogConfig        `mapstructure:"log"`
	Run        RunConfig        `mapstructure:"run"`
	Sink       SinkConfig       `mapstructure:"sink"`
	Verify     VerifyConfig     `mapstructure:"verify"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// flagKeys maps command line flags to their nested configuration keys.
var flagKeys = map[string]string{
	"log-level":         "log.level",
	"log-format":        "log.format",
	"writers":           "run.writers",
	"lines":             "run.lines",
	"width":             "run.width",
	"chunk-size":        "run.chunk-size",
	"safe":              "run.safe",
	"trailer":           "run.trailer",
	"close-retries":     "run.close-retries",
	"close-backoff":     "run.close-backoff",
	"verify":            "run.verify",
	"sink":              "sink.type",
	"console.stream":    "sink.console.stream",
	"file.path":         "sink.file.path",
	"file.max-size":     "sink.file.max-size",
	"file.max-backups":  "sink.file.max-backups",
	"file.max-age":      "sink.file.max-age",
	"file.compress":     "sink.file.compress",
	"file.truncate":     "sink.file.truncate",
	"allow-partial":     "verify.allow-partial",
	"prometheus.enable": "prometheus.enable",
	"prometheus.addr":   "prometheus.addr",
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.InheritedFlags().Lookup(name)
}

// LoadFromViper binds flags to viper, reads file/env, and populates the Config fields via mapstructure.
// Precedence: flags set on the command line, then LINESINK_* environment, then the config file, then defaults.
func (c *Config) LoadFromViper(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix("LINESINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		f := lookupFlag(cmd, name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}

	// Determine config file path: --config flag or LINESINK_CONFIG env
	if c.ConfigFile == "" {
		c.ConfigFile = v.GetString("config")
	}
	if c.ConfigFile != "" {
		v.SetConfigFile(c.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v.Unmarshal(c)
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Run: RunConfig{
			Writers:      4,
			Lines:        1000,
			Width:        32,
			ChunkSize:    4,
			Safe:         true,
			CloseRetries: 3,
			CloseBackoff: 100 * time.Millisecond,
		},
		Sink: SinkConfig{
			Type:    "console",
			Console: console.Config{Stream: "stdout"},
			File:    file.Config{Path: "linesink.out", MaxSizeMB: 100, Truncate: true},
		},
		Prometheus: PrometheusConfig{Enable: false, Addr: ":2112"},
	}
}

// SetupPersistentFlags adds flags shared by all commands.
func (c *Config) SetupPersistentFlags(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Path to config file (yaml/json/toml)")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "Log format (text or json)")
}

func (c *Config) setupPatternFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&c.Run.Writers, "writers", "w", c.Run.Writers, "Number of concurrent writers")
	fs.IntVarP(&c.Run.Lines, "lines", "n", c.Run.Lines, "Lines per writer")
	fs.IntVar(&c.Run.Width, "width", c.Run.Width, "Body width of each line")
}

// SetupRunFlags adds the flags of the run command.
func (c *Config) SetupRunFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	c.setupPatternFlags(fs)
	fs.IntVar(&c.Run.ChunkSize, "chunk-size", c.Run.ChunkSize, "Bytes per write call (0 writes whole lines)")
	fs.BoolVar(&c.Run.Safe, "safe", c.Run.Safe, "Synchronize lines across writers (--safe=false shows interleaving)")
	fs.StringVar(&c.Run.Trailer, "trailer", c.Run.Trailer, "Unterminated fragment each writer leaves for close to drain")
	fs.IntVar(&c.Run.CloseRetries, "close-retries", c.Run.CloseRetries, "Retries when closing the sink fails")
	fs.DurationVar(&c.Run.CloseBackoff, "close-backoff", c.Run.CloseBackoff, "Initial backoff between close retries")
	fs.BoolVar(&c.Run.Verify, "verify", c.Run.Verify, "Verify the output file after the run (file sink only)")

	fs.StringVar(&c.Sink.Type, "sink", c.Sink.Type, "Sink type (console or file)")
	fs.StringVar(&c.Sink.Console.Stream, "console.stream", c.Sink.Console.Stream, "Console stream (stdout or stderr)")
	fs.StringVarP(&c.Sink.File.Path, "file.path", "o", c.Sink.File.Path, "Output file for the file sink")
	fs.IntVar(&c.Sink.File.MaxSizeMB, "file.max-size", c.Sink.File.MaxSizeMB, "Rotate the output file after this many megabytes")
	fs.IntVar(&c.Sink.File.MaxBackups, "file.max-backups", c.Sink.File.MaxBackups, "Rotated files to keep (0 keeps all)")
	fs.IntVar(&c.Sink.File.MaxAgeDays, "file.max-age", c.Sink.File.MaxAgeDays, "Days to keep rotated files (0 keeps all)")
	fs.BoolVar(&c.Sink.File.Compress, "file.compress", c.Sink.File.Compress, "Gzip rotated files")
	fs.BoolVar(&c.Sink.File.Truncate, "file.truncate", c.Sink.File.Truncate, "Remove an existing output file before the run")

	fs.BoolVar(&c.Prometheus.Enable, "prometheus.enable", c.Prometheus.Enable, "Enable Prometheus metrics HTTP endpoint")
	fs.StringVar(&c.Prometheus.Addr, "prometheus.addr", c.Prometheus.Addr, "Prometheus metrics listen address (e.g., :2112)")
}

// SetupVerifyFlags adds the flags of the verify command.
func (c *Config) SetupVerifyFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	c.setupPatternFlags(fs)
	fs.BoolVar(&c.Verify.AllowPartial, "allow-partial", c.Verify.AllowPartial, "Ignore an unterminated final line")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log.format: %s", c.Log.Format)
	}

	if c.Run.Writers <= 0 {
		return fmt.Errorf("run.writers must be > 0")
	}
	if c.Run.Lines < 0 {
		return fmt.Errorf("run.lines must be >= 0")
	}
	if c.Run.Width <= 0 {
		return fmt.Errorf("run.width must be > 0")
	}
	if c.Run.ChunkSize < 0 {
		return fmt.Errorf("run.chunk-size must be >= 0")
	}
	if strings.Contains(c.Run.Trailer, "\n") {
		return fmt.Errorf("run.trailer must not contain a newline")
	}
	if c.Run.CloseRetries < 0 {
		return fmt.Errorf("run.close-retries must be >= 0")
	}

	switch c.Sink.Type {
	case "console":
		if err := c.Sink.Console.Validate(); err != nil {
			return err
		}
		if c.Run.Verify {
			return fmt.Errorf("run.verify requires sink.type 'file'")
		}
	case "file":
		if err := c.Sink.File.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid sink.type: %s", c.Sink.Type)
	}

	if c.Prometheus.Enable && c.Prometheus.Addr == "" {
		return fmt.Errorf("prometheus.addr must be set when prometheus.enable is true")
	}
	return nil
}
