package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"grail/internal/checker"
	"grail/internal/script"
)

var (
	checkStrict bool
	checkFormat string
)

var checkCmd = &cobra.Command{
	Use:   "check <path> [path...]",
	Short: "parse and compatibility-check one or more scripts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results := make([]checker.Result, len(args))
		loadErrs := make([]error, len(args))

		g, _ := errgroup.WithContext(context.Background())
		for i, path := range args {
			i, path := i, path
			g.Go(func() error {
				bundle, err := script.Load(path, script.LoadOptions{ArtifactDir: cfg.ArtifactDir, Logger: logger})
				if err != nil {
					loadErrs[i] = err
					return nil
				}
				results[i] = bundle.CheckResult
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		anyInvalid := false
		for i, path := range args {
			if loadErrs[i] != nil {
				anyInvalid = true
				logger.Warn("check failed to load script", zap.String("path", path), zap.Error(loadErrs[i]))
				continue
			}
			if !results[i].Valid {
				anyInvalid = true
			}
		}

		if checkFormat == "json" {
			if err := json.NewEncoder(os.Stdout).Encode(results); err != nil {
				return err
			}
		} else {
			for i, path := range args {
				if loadErrs[i] != nil {
					fmt.Printf("%s: FAILED TO LOAD: %v\n", path, loadErrs[i])
					continue
				}
				printCheckResult(path, results[i])
			}
		}

		if anyInvalid && checkStrict {
			return fmt.Errorf("one or more scripts failed compatibility checking")
		}
		return nil
	},
}

func printCheckResult(path string, r checker.Result) {
	status := "OK"
	if !r.Valid {
		status = "INVALID"
	}
	fmt.Printf("%s: %s (%d externals, %d inputs, %d lines)\n", path, status, r.Info.ExternalsCount, r.Info.InputsCount, r.Info.LinesOfCode)
	for _, e := range r.Errors {
		fmt.Printf("  error   %s line %d: %s\n", e.Code, e.Line, e.Message)
	}
	for _, w := range r.Warnings {
		fmt.Printf("  warning %s line %d: %s\n", w.Code, w.Line, w.Message)
	}
}

func init() {
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "exit non-zero if any script fails checking")
	checkCmd.Flags().StringVar(&checkFormat, "format", "text", "output format: text or json")
}
