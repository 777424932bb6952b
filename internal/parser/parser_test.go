package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"grail/internal/grailerr"
	"grail/internal/parser"
	"grail/internal/pyast"
)

func TestParseSimpleFunction(t *testing.T) {
	src := "def add(a: int, b: int = 1) -> int:\n    return a + b\n"
	res, err := parser.Parse(src)
	require.NoError(t, err)
	require.Len(t, res.Module.Body, 1)

	fn, ok := res.Module.Body[0].(pyast.FunctionDef)
	require.True(t, ok)
	require.Equal(t, "add", fn.Name)
	require.Len(t, fn.Params, 2)
	require.Equal(t, "b", fn.Params[1].Name)
	require.NotNil(t, fn.Params[1].Default)
	require.Len(t, fn.Body, 1)

	ret, ok := fn.Body[0].(pyast.Return)
	require.True(t, ok)
	require.NotNil(t, ret.Value)
}

func TestParseSyntaxErrorReturnsParseError(t *testing.T) {
	_, err := parser.Parse("def bad(:\n    pass\n")
	require.Error(t, err)
	var parseErr *grailerr.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseImports(t *testing.T) {
	src := "import os\nfrom typing import List, Dict as D\n"
	res, err := parser.Parse(src)
	require.NoError(t, err)
	require.Len(t, res.Module.Body, 2)

	imp, ok := res.Module.Body[0].(pyast.Import)
	require.True(t, ok)
	require.Equal(t, "os", imp.Names[0].Name)

	impFrom, ok := res.Module.Body[1].(pyast.ImportFrom)
	require.True(t, ok)
	require.Equal(t, "typing", impFrom.Module)
	require.Len(t, impFrom.Names, 2)
	require.Equal(t, "D", impFrom.Names[1].AsName)
}

func TestParseFString(t *testing.T) {
	src := "x = f\"hello {name}!\"\n"
	res, err := parser.Parse(src)
	require.NoError(t, err)

	assign, ok := res.Module.Body[0].(pyast.Assign)
	require.True(t, ok)
	joined, ok := assign.Value.(pyast.JoinedStr)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(joined.Parts), 2)
}
