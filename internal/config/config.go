package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Ingest
	RowLimit int `mapstructure:"row_limit" yaml:"row_limit"`

	// Emit
	OutputDir     string  `mapstructure:"output_dir" yaml:"output_dir"`
	ChartNaming   string  `mapstructure:"chart_naming" yaml:"chart_naming"`
	ChartWidthIn  float64 `mapstructure:"chart_width_in" yaml:"chart_width_in"`
	ChartHeightIn float64 `mapstructure:"chart_height_in" yaml:"chart_height_in"`

	// Cleaning and analysis thresholds
	ZScoreThreshold      float64 `mapstructure:"zscore_threshold" yaml:"zscore_threshold"`
	IQRMultiplier        float64 `mapstructure:"iqr_multiplier" yaml:"iqr_multiplier"`
	CorrelationThreshold float64 `mapstructure:"correlation_threshold" yaml:"correlation_threshold"`

	// Clustering
	Clusters       int   `mapstructure:"clusters" yaml:"clusters"`
	ElbowMaxK      int   `mapstructure:"elbow_max_k" yaml:"elbow_max_k"`
	ClusterSeed    int64 `mapstructure:"cluster_seed" yaml:"cluster_seed"`
	ClusterMaxIter int   `mapstructure:"cluster_max_iter" yaml:"cluster_max_iter"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Chart naming policies.
const (
	NamingFixed     = "fixed"
	NamingTimestamp = "timestamp"
)

// Default returns the built-in configuration.
func Default() *Global {
	return &Global{
		RowLimit:             500,
		OutputDir:            "data_visualisations",
		ChartNaming:          NamingTimestamp,
		ChartWidthIn:         10,
		ChartHeightIn:        6,
		ZScoreThreshold:      3,
		IQRMultiplier:        1.5,
		CorrelationThreshold: 0.5,
		Clusters:             3,
		ElbowMaxK:            10,
		ClusterSeed:          42,
		ClusterMaxIter:       300,
		LogLevel:             "info",
		LogFormat:            "console",
	}
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".edaloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.edaloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("EDALOOM")
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("row_limit", d.RowLimit)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("chart_naming", d.ChartNaming)
	v.SetDefault("chart_width_in", d.ChartWidthIn)
	v.SetDefault("chart_height_in", d.ChartHeightIn)
	v.SetDefault("zscore_threshold", d.ZScoreThreshold)
	v.SetDefault("iqr_multiplier", d.IQRMultiplier)
	v.SetDefault("correlation_threshold", d.CorrelationThreshold)
	v.SetDefault("clusters", d.Clusters)
	v.SetDefault("elbow_max_k", d.ElbowMaxK)
	v.SetDefault("cluster_seed", d.ClusterSeed)
	v.SetDefault("cluster_max_iter", d.ClusterMaxIter)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values no command can work with.
func (c *Global) Validate() error {
	switch c.ChartNaming {
	case NamingFixed, NamingTimestamp:
	default:
		return fmt.Errorf("invalid chart_naming: %s (use fixed or timestamp)", c.ChartNaming)
	}
	if c.Clusters < 1 {
		return fmt.Errorf("invalid clusters: %d", c.Clusters)
	}
	if c.ZScoreThreshold <= 0 || c.IQRMultiplier <= 0 {
		return fmt.Errorf("outlier thresholds must be positive")
	}
	if c.CorrelationThreshold < 0 || c.CorrelationThreshold >= 1 {
		return fmt.Errorf("invalid correlation_threshold: %v", c.CorrelationThreshold)
	}
	return nil
}
