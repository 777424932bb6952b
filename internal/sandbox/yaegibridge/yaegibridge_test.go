package yaegibridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"grail/internal/limits"
	"grail/internal/sandbox"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBridgePrepareAndRunAsyncArithmetic(t *testing.T) {
	b := New()
	ctx := context.Background()

	inst, err := b.Prepare(ctx, sandbox.PrepareRequest{
		ExecutableText: "doubled = count * 2\ndoubled\n",
		ScriptName:     "doubler",
		InputNames:     []string{"count"},
	})
	require.NoError(t, err)
	require.Equal(t, "doubler", inst.Name())

	result, err := b.RunAsync(ctx, inst, sandbox.RunRequest{
		Inputs: map[string]any{"count": int64(21)},
		Limits: limits.Default.ToRuntime(),
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), result)
}

func TestBridgeRunAsyncCallsExternal(t *testing.T) {
	b := New()
	ctx := context.Background()

	inst, err := b.Prepare(ctx, sandbox.PrepareRequest{
		ExecutableText: "price = fetch_price(symbol)\nprice\n",
		ScriptName:     "pricer",
		InputNames:     []string{"symbol"},
		ExternalNames:  []string{"fetch_price"},
	})
	require.NoError(t, err)

	called := false
	result, err := b.RunAsync(ctx, inst, sandbox.RunRequest{
		Inputs: map[string]any{"symbol": "AAPL"},
		Externals: map[string]sandbox.ExternalFunc{
			"fetch_price": func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
				called = true
				require.Equal(t, []any{"AAPL"}, args)
				return 101.5, nil
			},
		},
		Limits: limits.Default.ToRuntime(),
	})
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, 101.5, result)
}

func TestBridgeRunAsyncUnboundExternalErrors(t *testing.T) {
	b := New()
	ctx := context.Background()

	inst, err := b.Prepare(ctx, sandbox.PrepareRequest{
		ExecutableText: "price = fetch_price(symbol)\nprice\n",
		ScriptName:     "pricer",
		InputNames:     []string{"symbol"},
		ExternalNames:  []string{"fetch_price"},
	})
	require.NoError(t, err)

	_, err = b.RunAsync(ctx, inst, sandbox.RunRequest{
		Inputs: map[string]any{"symbol": "AAPL"},
		Limits: limits.Default.ToRuntime(),
	})
	require.Error(t, err)
	var runtimeErr *sandbox.RuntimeError
	require.ErrorAs(t, err, &runtimeErr)
}

func TestBridgePrepareRejectsControlFlow(t *testing.T) {
	b := New()
	ctx := context.Background()

	_, err := b.Prepare(ctx, sandbox.PrepareRequest{
		ExecutableText: "if count > 0:\n    y = 1\n",
		ScriptName:     "bad",
		InputNames:     []string{"count"},
	})
	require.Error(t, err)
	var typingErr *sandbox.TypingError
	require.ErrorAs(t, err, &typingErr)
}

func TestBridgeRunAsyncExceedsDurationLimit(t *testing.T) {
	b := New()
	ctx := context.Background()

	inst, err := b.Prepare(ctx, sandbox.PrepareRequest{
		ExecutableText: "slow = spin()\nslow\n",
		ScriptName:     "spinner",
		ExternalNames:  []string{"spin"},
	})
	require.NoError(t, err)

	tiny := 0.001
	_, err = b.RunAsync(ctx, inst, sandbox.RunRequest{
		Externals: map[string]sandbox.ExternalFunc{
			"spin": func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
				time.Sleep(50 * time.Millisecond)
				return nil, nil
			},
		},
		Limits: limits.RuntimeLimits{MaxDurationSecs: &tiny},
	})
	require.Error(t, err)
	var limitErr *sandbox.LimitError
	require.ErrorAs(t, err, &limitErr)
	require.Equal(t, sandbox.LimitKindDuration, limitErr.Kind)
}
