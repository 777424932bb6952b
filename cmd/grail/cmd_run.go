package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"grail/internal/sandbox"
	"grail/internal/sandbox/yaegibridge"
	"grail/internal/script"
)

var (
	runInputs    []string
	stubExternal bool
)

// runCmd executes a script via the reference yaegi sandbox. The original
// CLI could dynamically import a host module to supply externals; Go has
// no equivalent of importing an arbitrary caller-supplied module at
// runtime, so externals here are either stubbed (--stub-externals, each
// returns nil — useful for smoke-testing a script's input wiring) or left
// unbound, which fails validation when strict validation is on (the
// default) unless the script declares none.
var runCmd = &cobra.Command{
	Use:   "run <path>",
	Short: "run a script against the reference yaegi sandbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		limitsVal, err := cfg.ResolveLimits()
		if err != nil {
			return err
		}

		bundle, err := script.Load(path, script.LoadOptions{
			ArtifactDir: cfg.ArtifactDir,
			Limits:      &limitsVal,
			Logger:      logger,
		})
		if err != nil {
			return err
		}

		inputs, err := parseInputFlags(runInputs)
		if err != nil {
			return err
		}

		externals := map[string]sandbox.ExternalFunc{}
		if stubExternal {
			for _, name := range bundle.ExternalNames() {
				externals[name] = func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
					return nil, nil
				}
			}
		}

		result, err := bundle.Run(cmd.Context(), yaegibridge.New(), script.RunOptions{
			Inputs:           inputs,
			Externals:        externals,
			StrictValidation: cfg.StrictValidation,
			Print:            func(line string) { fmt.Println(line) },
			OnEvent: func(e script.Event) {
				logger.Debug("script event", zap.String("type", string(e.Type)), zap.String("request_id", e.RequestID))
			},
		})
		if err != nil {
			return err
		}

		fmt.Printf("result: %v\n", result)
		return nil
	},
}

// parseInputFlags parses repeated --input name=value flags. Each value is
// first tried as JSON (so numbers/booleans/lists round-trip); a value that
// isn't valid JSON is kept as a plain string.
func parseInputFlags(flags []string) (map[string]any, error) {
	out := map[string]any{}
	for _, f := range flags {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --input %q: expected name=value", f)
		}
		name, raw := parts[0], parts[1]
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[name] = v
	}
	return out, nil
}

func init() {
	runCmd.Flags().StringArrayVar(&runInputs, "input", nil, "input binding as name=value (value parsed as JSON, falling back to a plain string)")
	runCmd.Flags().BoolVar(&stubExternal, "stub-externals", false, "bind every declared external to a stub returning nil")
}
