package checker_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"grail/internal/checker"
	"grail/internal/decls"
	"grail/internal/parser"
)

func check(t *testing.T, src string) checker.Result {
	t.Helper()
	res, err := parser.Parse(src)
	require.NoError(t, err)
	d, err := decls.Extract(res.Module)
	require.NoError(t, err)
	return checker.Check("test.pym", res.Module, len(res.SourceLines), d)
}

func TestClassDefinitionIsE001(t *testing.T) {
	r := check(t, "class Foo:\n    pass\n")
	require.False(t, r.Valid)
	require.Equal(t, "E001", r.Errors[0].Code)
}

func TestDisallowedImportIsE005(t *testing.T) {
	r := check(t, "import requests\n")
	require.False(t, r.Valid)
	require.Equal(t, "E005", r.Errors[0].Code)
}

func TestAllowedImportsPass(t *testing.T) {
	r := check(t, "import typing\nfrom grail import external, Input\n")
	require.True(t, r.Valid)
}

func TestLambdaIsE012(t *testing.T) {
	r := check(t, "f = lambda x: x + 1\n")
	require.False(t, r.Valid)
	require.Equal(t, "E012", r.Errors[0].Code)
}

func TestExternalMissingAnnotationIsE006(t *testing.T) {
	src := `from grail import external

@external
def fetch(symbol):
    ...
`
	r := check(t, src)
	require.False(t, r.Valid)
	found := false
	for _, e := range r.Errors {
		if e.Code == "E006" {
			found = true
		}
	}
	require.True(t, found)
}

func TestExternalBadBodyIsE007(t *testing.T) {
	src := `from grail import external

@external
def fetch(symbol: str) -> float:
    return 1.0
`
	r := check(t, src)
	require.False(t, r.Valid)
	found := false
	for _, e := range r.Errors {
		if e.Code == "E007" {
			found = true
		}
	}
	require.True(t, found)
}

func TestInputMissingAnnotationIsE008(t *testing.T) {
	src := `from grail import Input

ticker = Input("ticker")
`
	r := check(t, src)
	require.False(t, r.Valid)
	require.Equal(t, "E008", r.Errors[0].Code)
}

func TestUnreferencedInputIsW003(t *testing.T) {
	src := `from grail import Input

ticker: str = Input("ticker")
`
	r := check(t, src)
	require.True(t, r.Valid)
	require.Len(t, r.Warnings, 1)
	require.Equal(t, "W003", r.Warnings[0].Code)
}

func TestBareDictLiteralTailIsW001(t *testing.T) {
	r := check(t, "x = 1\n{\"a\": x}\n")
	require.True(t, r.Valid)
	require.Len(t, r.Warnings, 1)
	require.Equal(t, "W001", r.Warnings[0].Code)
}

func TestFeaturesUsedTracksForLoopAndFString(t *testing.T) {
	src := "for i in range(3):\n    y = f\"{i}\"\n"
	r := check(t, src)
	require.Contains(t, r.Info.FeaturesUsed, "for_loop")
	require.Contains(t, r.Info.FeaturesUsed, "f_string")
}

func TestInfoMatchesExpectedCountsForValidScript(t *testing.T) {
	src := `from grail import external, Input

ticker: str = Input("ticker")

@external
def fetch_price(symbol: str) -> float:
    ...

price = fetch_price(ticker)
`
	r := check(t, src)
	want := checker.Info{
		ExternalsCount: 1,
		InputsCount:    1,
		LinesOfCode:    r.Info.LinesOfCode, // line count is source-derived, not worth hardcoding
		FeaturesUsed:   []string{},
	}
	if diff := cmp.Diff(want, r.Info); diff != "" {
		t.Errorf("Info mismatch (-want +got):\n%s", diff)
	}
}
