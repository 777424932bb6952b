package yaegibridge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"grail/internal/parser"
)

func mustModule(t *testing.T, src string) *transpilerInput {
	res, err := parser.Parse(src)
	require.NoError(t, err)
	return &transpilerInput{res}
}

type transpilerInput struct {
	res *parser.Result
}

func TestTranspileStraightLineArithmetic(t *testing.T) {
	src := "x = 1 + 2\ny = x * 3\ny\n"
	in := mustModule(t, src)
	body, resultVar, err := Transpile(in.res.Module)
	require.NoError(t, err)
	require.Contains(t, body, "pyval.Add")
	require.Contains(t, body, "pyval.Mul")
	require.NotEmpty(t, resultVar)
}

func TestTranspileRejectsControlFlow(t *testing.T) {
	src := "if True:\n    x = 1\n"
	in := mustModule(t, src)
	_, _, err := Transpile(in.res.Module)
	require.Error(t, err)
}

func TestTranspileExternalCall(t *testing.T) {
	src := "price = fetch_price(\"AAPL\")\nprice\n"
	in := mustModule(t, src)
	body, resultVar, err := Transpile(in.res.Module)
	require.NoError(t, err)
	require.Contains(t, body, "grailCallExternal(externals, \"fetch_price\"")
	require.NotEmpty(t, resultVar)
}

func TestRenderProgramBindsInputs(t *testing.T) {
	program := renderProgram("result := ticker\n", "result", []string{"ticker"})
	require.Contains(t, program, `ticker := inputs["ticker"]`)
	require.Contains(t, program, "package main")
	require.Contains(t, program, "func Run(")
}
