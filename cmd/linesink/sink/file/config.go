package file

import "fmt"

// Config holds file sink options. Rotation follows lumberjack semantics.
type Config struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max-size"`    // megabytes before rotation; 0 means lumberjack's default
	MaxBackups int    `mapstructure:"max-backups"` // rotated files to keep; 0 keeps all
	MaxAgeDays int    `mapstructure:"max-age"`     // days to keep rotated files; 0 keeps all
	Compress   bool   `mapstructure:"compress"`
	Truncate   bool   `mapstructure:"truncate"` // remove an existing file before the run
}

func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("sink.file.path must be set when sink.type is 'file'")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("sink.file rotation limits must be >= 0")
	}
	return nil
}
