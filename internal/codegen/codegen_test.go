package codegen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"grail/internal/codegen"
	"grail/internal/decls"
	"grail/internal/parser"
)

func TestGenerateStripsDeclarations(t *testing.T) {
	src := `from grail import external, Input

@external
def fetch_price(symbol: str) -> float:
    ...

ticker: str = Input("ticker", default="AAPL")

def compute() -> float:
    return fetch_price(ticker)
`
	res, err := parser.Parse(src)
	require.NoError(t, err)
	d, err := decls.Extract(res.Module)
	require.NoError(t, err)

	out, err := codegen.Generate(src, res.Module, d)
	require.NoError(t, err)

	require.NotContains(t, out.ExecutableText, "from grail import")
	require.NotContains(t, out.ExecutableText, "def fetch_price")
	require.NotContains(t, out.ExecutableText, "Input(")
	require.Contains(t, out.ExecutableText, "def compute")
	require.Contains(t, out.ExecutableText, "fetch_price(ticker)")

	require.Greater(t, out.LineMap.Len(), 0)
}

func TestGeneratedTextReparses(t *testing.T) {
	src := "x = 1\ny = x + 2\n"
	res, err := parser.Parse(src)
	require.NoError(t, err)
	d, err := decls.Extract(res.Module)
	require.NoError(t, err)

	out, err := codegen.Generate(src, res.Module, d)
	require.NoError(t, err)
	require.True(t, strings.Contains(out.ExecutableText, "y = x + 2"))

	_, err = parser.Parse(out.ExecutableText)
	require.NoError(t, err)
}

// TestLineMapRoundTripsNestedStatements exercises P2 ("for every top-level
// statement in the source, its source line is mapped to an executable
// line; mapping that executable line back yields the same source line")
// against an if containing a nested for, so that statements below the
// top level are paired and round-tripped too.
func TestLineMapRoundTripsNestedStatements(t *testing.T) {
	src := `x = 1
if x > 0:
    for i in range(x):
        y = i
z = 2
`
	res, err := parser.Parse(src)
	require.NoError(t, err)
	d, err := decls.Extract(res.Module)
	require.NoError(t, err)

	out, err := codegen.Generate(src, res.Module, d)
	require.NoError(t, err)

	for sourceLine := 1; sourceLine <= 5; sourceLine++ {
		execLine, ok := out.LineMap.SourceToExecutable(sourceLine)
		if !ok {
			continue
		}
		back, ok := out.LineMap.ExecutableToSource(execLine)
		require.True(t, ok)
		require.Equal(t, sourceLine, back)
	}
}

func TestLineMapHasNoInterpolation(t *testing.T) {
	lm := codegen.NewLineMap()
	lm.Add(5, 3)
	_, ok := lm.ExecutableToSource(4)
	require.False(t, ok)
	line, ok := lm.ExecutableToSource(3)
	require.True(t, ok)
	require.Equal(t, 5, line)
}
