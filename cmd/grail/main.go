// Command grail is the CLI front end for the script gateway: init, check,
// run, watch and clean sub-commands, grounded on the teacher CLI's cobra
// root-command wiring and zap logger lifecycle (cmd/nerd/main.go).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"grail/internal/config"
	"grail/internal/gaillog"
)

var (
	verbose     bool
	cfgPath     string
	artifactDir string
	presetName  string

	logger *zap.Logger
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "grail",
	Short: "grail - a sandboxed scripting gateway for host-embedded scripts",
	Long: `grail loads, checks and runs restricted-Python scripts that declare
their inputs and the host functions ("externals") they need, without
granting the script access to anything else.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = gaillog.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if artifactDir != "" {
			cfg.ArtifactDir = artifactDir
		}
		if presetName != "" {
			cfg.Preset = presetName
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		gaillog.Sync(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "grail.yaml", "path to grail config file")
	rootCmd.PersistentFlags().StringVar(&artifactDir, "artifact-dir", "", "directory to write per-script artifacts into (overrides config)")
	rootCmd.PersistentFlags().StringVar(&presetName, "preset", "", "limits preset: strict, default, permissive (overrides config)")

	rootCmd.AddCommand(initCmd, checkCmd, runCmd, watchCmd, cleanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
