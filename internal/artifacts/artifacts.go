// Package artifacts writes the on-disk artifact directory a loaded script
// bundle produces for IDE/debugging consumption (spec.md §6 "Artifact
// directory layout"). Writing is a pure side effect: callers treat every
// failure here as non-fatal and log it rather than propagate it, per
// spec.md §7's "Local recovery" policy for artifact I/O.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"grail/internal/checker"
)

// Manager writes a single script's artifact directory, scoped to one
// `<artifact_dir>/<script_stem>/` path.
type Manager struct {
	dir    string
	logger *zap.Logger
}

// New returns a Manager rooted at <artifactDir>/<scriptStem>. The
// directory is not created until the first Write call, so constructing a
// Manager for a script that never writes an artifact costs nothing.
func New(artifactDir, scriptStem string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{dir: filepath.Join(artifactDir, scriptStem), logger: logger}
}

// Dir returns the directory this manager writes into.
func (m *Manager) Dir() string { return m.dir }

// WriteLoad persists the artifacts produced once, at load time: the IDE
// stub text, the stripped executable source (kept as "monty_code.py" for
// compatibility with tooling that already expects that filename), and the
// externals/inputs declaration maps.
func (m *Manager) WriteLoad(stubsText, executableText string, externals, inputs map[string]any) {
	m.ensureDir()
	m.writeText("stubs.pyi", stubsText)
	m.writeText("monty_code.py", executableText)
	m.writeJSON("externals.json", externals)
	m.writeJSON("inputs.json", inputs)
}

// WriteCheck persists a fresh compatibility-check result. Called both at
// load time and by any later re-check.
func (m *Manager) WriteCheck(result checker.Result) {
	m.ensureDir()
	m.writeJSON("check.json", result)
}

// AppendRunLog appends one line describing a completed run to the
// artifact directory's run.log, creating the file if absent.
func (m *Manager) AppendRunLog(outcome string) {
	m.ensureDir()
	path := filepath.Join(m.dir, "run.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		m.logger.Warn("artifact run.log append failed", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339), outcome)
	if _, err := f.WriteString(line); err != nil {
		m.logger.Warn("artifact run.log write failed", zap.String("path", path), zap.Error(err))
	}
}

// ensureDir creates the artifact directory tree, tolerating a directory
// that already exists from a concurrent check call (spec.md §5).
func (m *Manager) ensureDir() {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		m.logger.Warn("artifact directory creation failed", zap.String("dir", m.dir), zap.Error(err))
	}
}

func (m *Manager) writeText(name, content string) {
	path := filepath.Join(m.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		m.logger.Warn("artifact write failed", zap.String("path", path), zap.Error(err))
	}
}

func (m *Manager) writeJSON(name string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		m.logger.Warn("artifact JSON encode failed", zap.String("path", name), zap.Error(err))
		return
	}
	m.writeText(name, string(data))
}
