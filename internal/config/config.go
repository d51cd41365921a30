package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Library     LibraryConfig     `yaml:"library"`
	Database    DatabaseConfig    `yaml:"database"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Tracker     TrackerConfig     `yaml:"tracker"`
	Bridge      BridgeConfig      `yaml:"bridge"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LibraryConfig struct {
	Path       string        `yaml:"path"`
	ScanOnBoot bool          `yaml:"scan_on_boot"`
	BatchSize  int           `yaml:"batch_size"`
	ProbeDelay time.Duration `yaml:"probe_delay"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PersistenceConfig controls when editor state is written.
type PersistenceConfig struct {
	CriticalDelay    time.Duration `yaml:"critical_delay"`
	StructuralDelay  time.Duration `yaml:"structural_delay"`
	TimeSaveInterval time.Duration `yaml:"time_save_interval"`
	MinSaveInterval  time.Duration `yaml:"min_save_interval"`
	// PeriodicInterval enables the background save loop when positive.
	PeriodicInterval time.Duration `yaml:"periodic_interval"`
	MaxSnapshots     int           `yaml:"max_snapshots"`
}

type TrackerConfig struct {
	Epsilon       float64       `yaml:"epsilon"`
	FrameInterval time.Duration `yaml:"frame_interval"`
	DedupWindow   time.Duration `yaml:"dedup_window"`
}

type BridgeConfig struct {
	DedupWindow time.Duration `yaml:"dedup_window"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         6540,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0,
		},
		Library: LibraryConfig{
			ScanOnBoot: true,
			BatchSize:  100,
			ProbeDelay: 50 * time.Millisecond,
		},
		Database: DatabaseConfig{
			Path: "data/editor.db",
		},
		Persistence: PersistenceConfig{
			CriticalDelay:    500 * time.Millisecond,
			StructuralDelay:  2 * time.Second,
			TimeSaveInterval: 5 * time.Second,
			MinSaveInterval:  10 * time.Second,
			PeriodicInterval: 0,
			MaxSnapshots:     50,
		},
		Tracker: TrackerConfig{
			Epsilon:       0.01,
			FrameInterval: 16 * time.Millisecond,
			DedupWindow:   50 * time.Millisecond,
		},
		Bridge: BridgeConfig{
			DedupWindow: 100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	p := c.Persistence
	for name, d := range map[string]time.Duration{
		"persistence.critical_delay":     p.CriticalDelay,
		"persistence.structural_delay":   p.StructuralDelay,
		"persistence.time_save_interval": p.TimeSaveInterval,
		"persistence.min_save_interval":  p.MinSaveInterval,
		"tracker.frame_interval":         c.Tracker.FrameInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if p.PeriodicInterval < 0 {
		errs = append(errs, errors.New("persistence.periodic_interval must not be negative"))
	}
	if p.MaxSnapshots <= 0 {
		errs = append(errs, errors.New("persistence.max_snapshots must be positive"))
	}
	if c.Tracker.Epsilon < 0 {
		errs = append(errs, errors.New("tracker.epsilon must not be negative"))
	}
	if c.Tracker.DedupWindow < 0 || c.Bridge.DedupWindow < 0 {
		errs = append(errs, errors.New("dedup windows must not be negative"))
	}
	return errors.Join(errs...)
}
