package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cleanAll bool

// cleanCmd removes generated per-script artifact directories. With no
// arguments and --all it removes cfg.ArtifactDir entirely (without --all
// it refuses); given script stems it removes only those scripts'
// subdirectories.
var cleanCmd = &cobra.Command{
	Use:   "clean [stem...]",
	Short: "remove generated artifact directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.ArtifactDir == "" {
			return fmt.Errorf("no artifact directory configured")
		}

		if len(args) == 0 {
			if !cleanAll {
				return fmt.Errorf("refusing to remove %s without --all or an explicit stem", cfg.ArtifactDir)
			}
			if err := os.RemoveAll(cfg.ArtifactDir); err != nil {
				return fmt.Errorf("removing %s: %w", cfg.ArtifactDir, err)
			}
			logger.Info("removed artifact directory", zap.String("dir", cfg.ArtifactDir))
			fmt.Printf("removed %s\n", cfg.ArtifactDir)
			return nil
		}

		for _, stem := range args {
			dir := filepath.Join(cfg.ArtifactDir, stem)
			if err := os.RemoveAll(dir); err != nil {
				logger.Warn("failed to remove artifact subdirectory", zap.String("dir", dir), zap.Error(err))
				continue
			}
			fmt.Printf("removed %s\n", dir)
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "remove the entire artifact directory")
}
