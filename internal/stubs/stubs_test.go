package stubs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"grail/internal/decls"
	"grail/internal/parser"
	"grail/internal/stubs"
)

func TestGenerateStubsImportsOnlyReferencedTypingNames(t *testing.T) {
	src := `from grail import external, Input

ticker: str = Input("ticker")

@external
def fetch(symbol: str) -> Optional[float]:
    ...
`
	res, err := parser.Parse(src)
	require.NoError(t, err)
	d, err := decls.Extract(res.Module)
	require.NoError(t, err)

	text := stubs.Generate(d)
	require.Contains(t, text, "from typing import Optional")
	require.NotContains(t, text, ", Any")
	require.Contains(t, text, "ticker: str")
	require.Contains(t, text, "def fetch(symbol: str) -> Optional[float]: ...")
}

func TestGenerateStubsSkipsTypingImportWhenUnused(t *testing.T) {
	src := `from grail import Input

count: int = Input("count")
`
	res, err := parser.Parse(src)
	require.NoError(t, err)
	d, err := decls.Extract(res.Module)
	require.NoError(t, err)

	text := stubs.Generate(d)
	require.NotContains(t, text, "from typing import")
}
