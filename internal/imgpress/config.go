package imgpress

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the compression options for a run. It is treated as
// immutable once validated; Quality only affects JPEG and WEBP output.
type Config struct {
	// Quality is the encode quality for lossy formats (1-100).
	Quality int `mapstructure:"quality"`
	// Format is the target format name (JPEG, PNG, WEBP, BMP, TIFF).
	Format string `mapstructure:"format"`
	// MaxWidth caps the output width in pixels (0 = no cap).
	MaxWidth int `mapstructure:"max_width"`
	// MaxHeight caps the output height in pixels (0 = no cap).
	MaxHeight int `mapstructure:"max_height"`
	// Optimize requests the slower, smaller encoder settings.
	Optimize bool `mapstructure:"optimize"`
	// Progressive requests progressive JPEG output.
	Progressive bool `mapstructure:"progressive"`
	// BackupOriginal keeps the original file when the format is unchanged.
	BackupOriginal bool `mapstructure:"backup_original"`
	// OutputSuffix is appended to the stem when BackupOriginal is set.
	OutputSuffix string `mapstructure:"output_suffix"`
	// DeleteOriginalOnFormatChange removes the input file after a
	// successful format conversion.
	DeleteOriginalOnFormatChange bool `mapstructure:"delete_original_on_format_change"`
}

// DefaultConfig returns the documented default options.
func DefaultConfig() Config {
	return Config{
		Quality:                      85,
		Format:                       string(FormatJPEG),
		Optimize:                     true,
		Progressive:                  true,
		BackupOriginal:               false,
		OutputSuffix:                 "_compressed",
		DeleteOriginalOnFormatChange: true,
	}
}

// Validate checks the configuration before any file is processed.
// An unsupported target format fails the whole run here, never per file.
func (c Config) Validate() error {
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", c.Quality)
	}
	if c.MaxWidth < 0 {
		return fmt.Errorf("max_width must not be negative, got %d", c.MaxWidth)
	}
	if c.MaxHeight < 0 {
		return fmt.Errorf("max_height must not be negative, got %d", c.MaxHeight)
	}
	if _, err := ParseFormat(c.Format); err != nil {
		return err
	}
	return nil
}

// TargetFormat returns the parsed target format. Only meaningful after
// Validate has succeeded.
func (c Config) TargetFormat() Format {
	f, _ := ParseFormat(c.Format)
	return f
}

// configKeys mirrors the mapstructure tags on Config.
var configDefaults = map[string]any{
	"quality":                          85,
	"format":                           string(FormatJPEG),
	"max_width":                        0,
	"max_height":                       0,
	"optimize":                         true,
	"progressive":                      true,
	"backup_original":                  false,
	"output_suffix":                    "_compressed",
	"delete_original_on_format_change": true,
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("IMGPRESS")
	v.AutomaticEnv()
	return v
}

// LoadConfig reads the configuration from the given file, or from
// imgpress.yaml in the working directory when path is empty. A missing
// default file falls back to the documented defaults; a malformed file
// is an error.
func LoadConfig(path string) (Config, error) {
	v := newConfigViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("imgpress")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// WriteDefaultConfig writes the documented defaults to the given path.
// An existing file is only replaced when force is set.
func WriteDefaultConfig(path string, force bool) error {
	v := newConfigViper()
	if force {
		if err := v.WriteConfigAs(path); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		return nil
	}
	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
