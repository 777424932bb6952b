// Package codegen produces the executable form of a script — host-only
// declarations stripped out — plus a LineMap tying executable lines back
// to the lines they came from in the original source (spec.md §4.4/§4.5).
package codegen

// LineMap is a bidirectional mapping between source lines and executable
// lines. Construction follows first-writer-wins: once an executable line
// or a source line has been mapped, later Add calls for that same key are
// no-ops. There is no interpolation — a miss from either lookup is a
// miss, never a guess.
type LineMap struct {
	execToSource map[int]int
	sourceToExec map[int]int
}

// NewLineMap returns an empty LineMap ready for Add calls.
func NewLineMap() *LineMap {
	return &LineMap{
		execToSource: map[int]int{},
		sourceToExec: map[int]int{},
	}
}

// Add records a (sourceLine, executableLine) pair, honoring first-writer-
// wins independently in each direction.
func (m *LineMap) Add(sourceLine, executableLine int) {
	if _, ok := m.execToSource[executableLine]; !ok {
		m.execToSource[executableLine] = sourceLine
	}
	if _, ok := m.sourceToExec[sourceLine]; !ok {
		m.sourceToExec[sourceLine] = executableLine
	}
}

// ExecutableToSource translates an executable line to its source line.
func (m *LineMap) ExecutableToSource(executableLine int) (int, bool) {
	line, ok := m.execToSource[executableLine]
	return line, ok
}

// SourceToExecutable translates a source line to its executable line.
func (m *LineMap) SourceToExecutable(sourceLine int) (int, bool) {
	line, ok := m.sourceToExec[sourceLine]
	return line, ok
}

// Len reports how many executable-line entries the map holds, mostly
// useful for tests asserting the map isn't empty.
func (m *LineMap) Len() int { return len(m.execToSource) }
