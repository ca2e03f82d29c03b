// Package model defines the data structures for waved's configuration,
// operation records, and identifiers.
package model

import (
	"fmt"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"
)

type Config struct {
	Project  ProjectConfig  `yaml:"project"`
	Runner   RunnerConfig   `yaml:"runner"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Daemon   DaemonConfig   `yaml:"daemon"`
	Logging  LoggingConfig  `yaml:"logging"`
	Limits   LimitsConfig   `yaml:"limits"`
}

type ProjectConfig struct {
	Name    string `yaml:"name"`
	Created string `yaml:"created"`
	Root    string `yaml:"root"`
}

type RunnerConfig struct {
	Rank string `yaml:"rank"`
	Wave int    `yaml:"wave"`
}

// AnalyzerConfig selects how analysis confidence is produced.
// Mode "fixed" uses Confidence verbatim; mode "random" draws uniformly
// from [0,1) using a source seeded at daemon start.
type AnalyzerConfig struct {
	Mode       string  `yaml:"mode"`
	Confidence float64 `yaml:"confidence"`
	Seed       int64   `yaml:"seed"`
}

type DaemonConfig struct {
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
	HeartbeatSec       int `yaml:"heartbeat_sec"`
}

type LoggingConfig struct {
	Level           string `yaml:"level"`
	AuditMaxBytes   int64  `yaml:"audit_max_bytes"`
	AuditBufferSize int    `yaml:"audit_buffer_size"`
	AuditChecksums  bool   `yaml:"audit_checksums"`
}

type LimitsConfig struct {
	MaxParamBytes   int `yaml:"max_param_bytes"`
	MaxStateResults int `yaml:"max_state_results"`
}

const (
	AnalyzerModeFixed  = "fixed"
	AnalyzerModeRandom = "random"

	DefaultWave       = 4
	DefaultRank       = "colonel"
	DefaultConfidence = 0.65
)

// DefaultConfig returns the configuration written by `waved setup`.
func DefaultConfig() Config {
	return Config{
		Runner: RunnerConfig{
			Rank: DefaultRank,
			Wave: DefaultWave,
		},
		Analyzer: AnalyzerConfig{
			Mode:       AnalyzerModeFixed,
			Confidence: DefaultConfidence,
		},
		Daemon: DaemonConfig{
			ShutdownTimeoutSec: 10,
			HeartbeatSec:       30,
		},
		Logging: LoggingConfig{
			Level:           "info",
			AuditMaxBytes:   100 * 1024 * 1024,
			AuditBufferSize: 100,
			AuditChecksums:  true,
		},
		Limits: LimitsConfig{
			MaxParamBytes:   1024 * 1024,
			MaxStateResults: 50,
		},
	}
}

// LoadConfig reads and parses config.yaml from the .waved directory.
func LoadConfig(wavedDir string) (Config, error) {
	data, err := os.ReadFile(filepath.Join(wavedDir, "config.yaml"))
	if err != nil {
		return Config{}, fmt.Errorf("read config.yaml: %w", err)
	}
	var cfg Config
	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config.yaml: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields the daemon depends on. Wave is a small positive
// integer; the source corpus only ever used 4 and 5 but nothing constrains the
// upper end beyond sanity.
func (c Config) Validate() error {
	if c.Runner.Wave < 1 || c.Runner.Wave > 99 {
		return fmt.Errorf("runner.wave must be 1-99, got %d", c.Runner.Wave)
	}
	switch c.Analyzer.Mode {
	case AnalyzerModeFixed, AnalyzerModeRandom:
	default:
		return fmt.Errorf("analyzer.mode must be %q or %q, got %q",
			AnalyzerModeFixed, AnalyzerModeRandom, c.Analyzer.Mode)
	}
	if c.Analyzer.Confidence < 0 || c.Analyzer.Confidence > 1 {
		return fmt.Errorf("analyzer.confidence must be in [0,1], got %v", c.Analyzer.Confidence)
	}
	return nil
}
