package decls_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"grail/internal/decls"
	"grail/internal/grailerr"
	"grail/internal/parser"
)

func TestExtractExternalAndInput(t *testing.T) {
	src := `from grail import external, Input

@external
def fetch_price(symbol: str) -> float:
    ...

ticker = Input("ticker", default="AAPL")

def compute() -> float:
    return fetch_price(ticker)
`
	res, err := parser.Parse(src)
	require.NoError(t, err)

	d, err := decls.Extract(res.Module)
	require.NoError(t, err)

	require.Len(t, d.Externals, 1)
	require.Equal(t, "fetch_price", d.Externals[0].Name)
	require.Equal(t, "float", d.Externals[0].ReturnAnnotation)
	require.Len(t, d.Externals[0].Parameters, 1)
	require.Equal(t, "symbol", d.Externals[0].Parameters[0].Name)

	require.Len(t, d.Inputs, 1)
	require.Equal(t, "ticker", d.Inputs[0].Name)
	require.True(t, d.Inputs[0].HasDefault)
}

func TestInputNameMismatchIsParseError(t *testing.T) {
	src := `x = Input("y")`
	res, err := parser.Parse(src)
	require.NoError(t, err)

	_, err = decls.Extract(res.Module)
	require.Error(t, err)
	var parseErr *grailerr.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestNestedDeclarationsAreIgnored(t *testing.T) {
	src := `def outer():
    @external
    def inner() -> int:
        ...
    return 1
`
	res, err := parser.Parse(src)
	require.NoError(t, err)

	d, err := decls.Extract(res.Module)
	require.NoError(t, err)
	require.Empty(t, d.Externals)
}
