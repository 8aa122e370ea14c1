package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/chrissnell/deltah/internal/log"
	"github.com/chrissnell/deltah/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

var (
	cfgFile    string
	cfgBackend string
	debug      bool
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "deltah",
	Short: "Glacier lookup table preprocessing for catchment simulations",
	Long: `deltah computes glacier lookup tables (ice area and volume per spatial unit
for every melt increment) with the delta-h method on elevation bands or with
uniform melt on raster pixels, and schedules them for a hydrological simulation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.InitWithFile(debug, logFile)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "deltah %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "deltah.yaml", "Path to configuration source (YAML file or SQLite database)")
	rootCmd.PersistentFlags().StringVar(&cfgBackend, "config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Turn on debugging output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file, rotated by size")

	rootCmd.AddCommand(computeCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(configConvertCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadProvider(cfgFile, cfgBackend string) (config.ConfigProvider, error) {
	filename, _ := filepath.Abs(cfgFile)

	switch cfgBackend {
	case "yaml":
		return config.NewYAMLProvider(filename), nil
	case "sqlite":
		provider, err := config.NewSQLiteProvider(filename, log.GetSugaredLogger())
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	}
	return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
}
