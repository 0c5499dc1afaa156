package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfgpkg "github.com/KaramelBytes/edaloom-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set edaloom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := yaml.Marshal(settings())
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(b))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		// Start from the file on disk so flag overrides are not persisted
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := setKey(c, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		cfg = c
		fmt.Fprintf(cmd.OutOrStdout(), "%s Saved %s\n", okMark, key)
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid int for %s: %w", key, err)
		}
		return i, nil
	}
	atof := func() (float64, error) {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid float for %s: %w", key, err)
		}
		return f, nil
	}
	var err error
	switch key {
	case "row_limit":
		c.RowLimit, err = atoi()
	case "output_dir":
		c.OutputDir = val
	case "chart_naming":
		c.ChartNaming = val
	case "chart_width_in":
		c.ChartWidthIn, err = atof()
	case "chart_height_in":
		c.ChartHeightIn, err = atof()
	case "zscore_threshold":
		c.ZScoreThreshold, err = atof()
	case "iqr_multiplier":
		c.IQRMultiplier, err = atof()
	case "correlation_threshold":
		c.CorrelationThreshold, err = atof()
	case "clusters":
		c.Clusters, err = atoi()
	case "elbow_max_k":
		c.ElbowMaxK, err = atoi()
	case "cluster_seed":
		var i int
		i, err = atoi()
		c.ClusterSeed = int64(i)
	case "cluster_max_iter":
		c.ClusterMaxIter, err = atoi()
	case "log_level":
		c.LogLevel = val
	case "log_format":
		c.LogFormat = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
