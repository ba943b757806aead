package configs

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the hexcap runtime configuration.
// Env vars use the HEXCAP_ prefix, e.g. HEXCAP_PACKET_MTU.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Packet PacketConfig `mapstructure:"packet"`
}

type LogConfig struct {
	Level string        `mapstructure:"level"`
	File  LogFileConfig `mapstructure:"file"`
}

type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// PacketConfig holds the limits applied to every decoded packet.
type PacketConfig struct {
	MTU               int  `mapstructure:"mtu"`                 // floor of the default max size
	MaxGeneratorCount int  `mapstructure:"max_generator_count"` // upper bound of one generator's count
	MaxExpansion      int  `mapstructure:"max_expansion"`       // upper bound of packets one template expands to
	FixLengths        bool `mapstructure:"fix_lengths"`
	ComputeChecksums  bool `mapstructure:"compute_checksums"`
}

const minMTU = 64

// Load reads the config file at path, if any, and applies env overrides
// and defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HEXCAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	Log.WithFields(logrus.Fields{
		"component": "configs",
		"category":  "load",
	}).Debugf("config loaded from %q", path)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "hexcap.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("packet.mtu", 1500)
	v.SetDefault("packet.max_generator_count", 65535)
	v.SetDefault("packet.max_expansion", 65536)
	v.SetDefault("packet.fix_lengths", false)
	v.SetDefault("packet.compute_checksums", false)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.File.Enabled && c.Log.File.Path == "" {
		return fmt.Errorf("log.file.path is required when file logging is enabled")
	}
	if c.Packet.MTU < minMTU {
		return fmt.Errorf("packet.mtu %d below %d", c.Packet.MTU, minMTU)
	}
	if c.Packet.MaxGeneratorCount < 1 {
		return fmt.Errorf("packet.max_generator_count must be positive, got %d", c.Packet.MaxGeneratorCount)
	}
	if c.Packet.MaxExpansion < 1 {
		return fmt.Errorf("packet.max_expansion must be positive, got %d", c.Packet.MaxExpansion)
	}
	return nil
}
