// Package config provides YAML-based configuration loading for the mesh
// node supervisor, layered with environment overrides.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/spf13/viper"
)

// Config is the root node configuration.
type Config struct {
    // AppName is the logical node name.
    AppName string `mapstructure:"app_name"`

    // DataDir is the base directory for persistent data.
    DataDir string `mapstructure:"data_dir"`

    // DisplayName is the local human-readable name announced to peers.
    DisplayName string `mapstructure:"display_name"`

    Log         LogConfig         `mapstructure:"log"`
    Transports  []TransportConfig `mapstructure:"transports"`
    Identity    IdentityConfig    `mapstructure:"identity"`
    Net         NetConfig         `mapstructure:"net"`
    Retention   RetentionConfig   `mapstructure:"retention"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    Level   string   `mapstructure:"level"`
    Format  string   `mapstructure:"format"`
    Outputs []string `mapstructure:"outputs"`

    Rotation    RotationConfig `mapstructure:"rotation"`
    Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// RetentionConfig controls the router's store-and-forward replay window
// and the persistence retention sweep, per §4.5.7.
type RetentionConfig struct {
    ReplayWindow      time.Duration `mapstructure:"replay_window"`
    PersistenceWindow time.Duration `mapstructure:"persistence_window"`
    SweepInterval     time.Duration `mapstructure:"sweep_interval"`
    LostThreshold     time.Duration `mapstructure:"lost_threshold"`
}

// Default returns a Config populated with the spec's documented defaults.
func Default() *Config {
    return &Config{
        AppName:     "meshnode",
        DataDir:     "./data",
        DisplayName: "",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stdout"},
            Development: true,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/meshnode.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Transports: []TransportConfig{
            {Kind: "neighbor", Listen: []string{":7777"}},
        },
        Identity: IdentityConfig{Alg: "ed25519"},
        Net:      NetConfig{DialBackoffInitialMS: 500, DialBackoffMaxMS: 30000, DialBackoffJitterMS: 100},
        Retention: RetentionConfig{
            ReplayWindow:      24 * time.Hour,
            PersistenceWindow: 30 * 24 * time.Hour,
            SweepInterval:     time.Hour,
            LostThreshold:     5 * time.Minute,
        },
    }
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment
// overrides. Environment variables use the prefix MESHNODE and `.`/`-`
// are replaced with `_`. Example: MESHNODE_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("MESHNODE")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    v.SetDefault("app_name", cfg.AppName)
    v.SetDefault("data_dir", cfg.DataDir)
    v.SetDefault("display_name", cfg.DisplayName)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    v.SetDefault("transports", cfg.Transports)
    v.SetDefault("identity.alg", cfg.Identity.Alg)
    v.SetDefault("identity.private_key", cfg.Identity.PrivateKey)
    v.SetDefault("identity.private_key_file", cfg.Identity.PrivateKeyFile)
    v.SetDefault("net.dial_backoff_initial_ms", cfg.Net.DialBackoffInitialMS)
    v.SetDefault("net.dial_backoff_max_ms", cfg.Net.DialBackoffMaxMS)
    v.SetDefault("net.dial_backoff_jitter_ms", cfg.Net.DialBackoffJitterMS)
    v.SetDefault("retention.replay_window", cfg.Retention.ReplayWindow)
    v.SetDefault("retention.persistence_window", cfg.Retention.PersistenceWindow)
    v.SetDefault("retention.sweep_interval", cfg.Retention.SweepInterval)
    v.SetDefault("retention.lost_threshold", cfg.Retention.LostThreshold)

    if path == "" {
        if envPath := os.Getenv("MESHNODE_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        v.SetConfigName("meshnode")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".meshnode"))
        }
    }

    if err := v.ReadInConfig(); err != nil {
        var notFound viper.ConfigFileNotFoundError
        if !errors.As(err, &notFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }
    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stdout"}
    }
    if len(c.Transports) == 0 {
        return errors.New("config: at least one transport must be configured")
    }
    for i := range c.Transports {
        kind := strings.ToLower(strings.TrimSpace(c.Transports[i].Kind))
        c.Transports[i].Kind = kind
        switch kind {
        case "neighbor", "pairedradio", "directip", "directip-quic", "audiobeacon":
        default:
            return fmt.Errorf("config: unknown transport kind %q", c.Transports[i].Kind)
        }
    }
    if c.Retention.ReplayWindow <= 0 {
        return errors.New("config: retention.replay_window must be positive")
    }
    if c.Retention.PersistenceWindow <= 0 {
        return errors.New("config: retention.persistence_window must be positive")
    }
    if c.Retention.SweepInterval <= 0 {
        return errors.New("config: retention.sweep_interval must be positive")
    }
    if c.Retention.LostThreshold <= 0 {
        return errors.New("config: retention.lost_threshold must be positive")
    }
    return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}
