package artifacts_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"grail/internal/artifacts"
	"grail/internal/checker"
)

func TestWriteLoadCreatesExpectedFiles(t *testing.T) {
	tmp := t.TempDir()
	m := artifacts.New(tmp, "pricer", nil)

	m.WriteLoad("count: int\n", "count = inputs['count']\n",
		map[string]any{"fetch_price": "float"},
		map[string]any{"count": "int"},
	)
	m.WriteCheck(checker.Result{File: "pricer.pym", Valid: true})
	m.AppendRunLog("run_complete")

	dir := filepath.Join(tmp, "pricer")
	for _, name := range []string{"stubs.pyi", "monty_code.py", "externals.json", "inputs.json", "check.json", "run.log"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, "expected %s to exist", name)
	}
}

func TestAppendRunLogAccumulatesLines(t *testing.T) {
	tmp := t.TempDir()
	m := artifacts.New(tmp, "pricer", nil)
	m.AppendRunLog("run_complete")
	m.AppendRunLog("run_error")

	data, err := os.ReadFile(filepath.Join(tmp, "pricer", "run.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "run_complete")
	require.Contains(t, string(data), "run_error")
}

func TestWriteToUnwritableDirDoesNotPanic(t *testing.T) {
	m := artifacts.New("/nonexistent-root-for-grail-tests/deep/path", "x", nil)
	require.NotPanics(t, func() {
		m.WriteLoad("", "", nil, nil)
		m.AppendRunLog("run_complete")
	})
}
