package script_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"grail/internal/grailerr"
	"grail/internal/limits"
	"grail/internal/sandbox"
	"grail/internal/script"
)

type fakeInstance struct{ name string }

func (f *fakeInstance) Name() string { return f.name }

type fakeSandbox struct {
	runResult any
	runErr    error
}

func (f *fakeSandbox) Prepare(ctx context.Context, req sandbox.PrepareRequest) (sandbox.Instance, error) {
	return &fakeInstance{name: req.ScriptName}, nil
}

func (f *fakeSandbox) RunAsync(ctx context.Context, inst sandbox.Instance, req sandbox.RunRequest) (any, error) {
	return f.runResult, f.runErr
}

func writeScript(t *testing.T, src string) string {
	path := filepath.Join(t.TempDir(), "pricer.pym")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

const validScript = `from grail import external, Input

ticker: str = Input("ticker")

@external
def fetch_price(symbol: str) -> float:
    ...

price = fetch_price(ticker)
price
`

func TestLoadValidScriptProducesBundle(t *testing.T) {
	path := writeScript(t, validScript)
	bundle, err := script.Load(path, script.LoadOptions{})
	require.NoError(t, err)
	require.True(t, bundle.CheckResult.Valid)
	require.Equal(t, []string{"ticker"}, bundle.InputNames())
	require.Equal(t, []string{"fetch_price"}, bundle.ExternalNames())
	require.NotContains(t, bundle.ExecutableText, "Input(")
	require.Contains(t, bundle.TypeStubs, "ticker: str")
}

func TestLoadInvalidScriptReturnsCheckError(t *testing.T) {
	path := writeScript(t, "class Foo:\n    pass\n")
	_, err := script.Load(path, script.LoadOptions{})
	require.Error(t, err)
	var checkErr *grailerr.CheckError
	require.ErrorAs(t, err, &checkErr)
}

func TestLoadWritesArtifacts(t *testing.T) {
	path := writeScript(t, validScript)
	artifactDir := t.TempDir()
	_, err := script.Load(path, script.LoadOptions{ArtifactDir: artifactDir})
	require.NoError(t, err)

	for _, name := range []string{"stubs.pyi", "monty_code.py", "check.json", "externals.json", "inputs.json"} {
		_, statErr := os.Stat(filepath.Join(artifactDir, "pricer", name))
		require.NoError(t, statErr, "expected artifact %s", name)
	}
}

func TestRunMissingRequiredInputIsInputError(t *testing.T) {
	path := writeScript(t, validScript)
	bundle, err := script.Load(path, script.LoadOptions{})
	require.NoError(t, err)

	sb := &fakeSandbox{runResult: 1.0}
	_, err = bundle.Run(context.Background(), sb, script.RunOptions{
		Externals:        map[string]sandbox.ExternalFunc{"fetch_price": func(ctx context.Context, args []any, kwargs map[string]any) (any, error) { return 1.0, nil }},
		StrictValidation: true,
	})
	require.Error(t, err)
	var inputErr *grailerr.InputError
	require.ErrorAs(t, err, &inputErr)
}

func TestRunSuccessEmitsLifecycleEvents(t *testing.T) {
	path := writeScript(t, validScript)
	bundle, err := script.Load(path, script.LoadOptions{})
	require.NoError(t, err)

	sb := &fakeSandbox{runResult: 99.5}
	var events []script.EventType
	_, err = bundle.Run(context.Background(), sb, script.RunOptions{
		Inputs:    map[string]any{"ticker": "AAPL"},
		Externals: map[string]sandbox.ExternalFunc{"fetch_price": func(ctx context.Context, args []any, kwargs map[string]any) (any, error) { return 99.5, nil }},
		StrictValidation: true,
		OnEvent: func(e script.Event) { events = append(events, e.Type) },
	})
	require.NoError(t, err)
	require.Equal(t, []script.EventType{script.EventRunStart, script.EventRunComplete}, events)
}

func TestMergeLimitsFallsBackToDefault(t *testing.T) {
	path := writeScript(t, validScript)
	bundle, err := script.Load(path, script.LoadOptions{})
	require.NoError(t, err)
	require.Nil(t, bundle.Limits)

	sb := &fakeSandbox{runResult: 1.0}
	_, err = bundle.Run(context.Background(), sb, script.RunOptions{
		Inputs:           map[string]any{"ticker": "AAPL"},
		Externals:        map[string]sandbox.ExternalFunc{"fetch_price": func(ctx context.Context, args []any, kwargs map[string]any) (any, error) { return 1.0, nil }},
		StrictValidation: true,
		Limits:           &limits.Strict,
	})
	require.NoError(t, err)
}
