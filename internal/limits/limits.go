// Package limits models the resource budgets a script is allowed to
// consume while running in the sandbox, and the human-readable string
// forms callers and config files use to express them (spec.md §3/§4.6).
package limits

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Limits bounds memory, wall-clock duration, recursion depth, total
// allocation count and GC cadence for a single script run. Zero fields
// mean "unconstrained" / "no override" — see Merge. Pointers are used
// (rather than 0-means-unset on a plain int) so a caller can distinguish
// "not specified" from "explicitly zero", matching the optional fields in
// spec.md's data model.
type Limits struct {
	MaxMemoryBytes *int64
	MaxDuration    *time.Duration
	MaxRecursion   *int
	MaxAllocations *int64
	GCInterval     *time.Duration
}

// Strict, Default and Permissive are the three presets spec.md names.
var (
	Strict     = newLimits(8*mib, 500*time.Millisecond, 120, 0, 0)
	Default    = newLimits(16*mib, 2*time.Second, 200, 0, 0)
	Permissive = newLimits(64*mib, 5*time.Second, 400, 0, 0)
)

const mib = 1024 * 1024

func newLimits(memBytes int64, dur time.Duration, recursion int, allocations int64, gc time.Duration) Limits {
	l := Limits{
		MaxMemoryBytes: ptr(memBytes),
		MaxDuration:    ptrDur(dur),
		MaxRecursion:   ptr(recursion),
	}
	if allocations != 0 {
		l.MaxAllocations = ptr(allocations)
	}
	if gc != 0 {
		l.GCInterval = ptrDur(gc)
	}
	return l
}

func ptr[T any](v T) *T       { return &v }
func ptrDur(d time.Duration) *time.Duration { return &d }

// Merge returns a new Limits where each field is the override's value if
// present, else the base (receiver's) value. Neither argument is mutated.
func (l Limits) Merge(override Limits) Limits {
	out := l
	if override.MaxMemoryBytes != nil {
		out.MaxMemoryBytes = override.MaxMemoryBytes
	}
	if override.MaxDuration != nil {
		out.MaxDuration = override.MaxDuration
	}
	if override.MaxRecursion != nil {
		out.MaxRecursion = override.MaxRecursion
	}
	if override.MaxAllocations != nil {
		out.MaxAllocations = override.MaxAllocations
	}
	if override.GCInterval != nil {
		out.GCInterval = override.GCInterval
	}
	return out
}

// RuntimeLimits is the shape the sandbox's Prepare contract expects, key
// names renamed per spec.md §4.6 (max_memory -> bytes, max_duration ->
// max_duration_secs, max_recursion -> max_recursion_depth). Fields the
// source Limits left unset are omitted entirely rather than zero-valued,
// since 0 is a meaningful budget to a sandbox and "no budget" is not the
// same thing.
type RuntimeLimits struct {
	Bytes             *int64   `json:"bytes,omitempty"`
	MaxDurationSecs   *float64 `json:"max_duration_secs,omitempty"`
	MaxRecursionDepth *int     `json:"max_recursion_depth,omitempty"`
	MaxAllocations    *int64   `json:"max_allocations,omitempty"`
	GCIntervalSecs    *float64 `json:"gc_interval_secs,omitempty"`
}

// ToRuntime converts to the sandbox-facing representation.
func (l Limits) ToRuntime() RuntimeLimits {
	out := RuntimeLimits{
		MaxRecursionDepth: l.MaxRecursion,
		MaxAllocations:    l.MaxAllocations,
	}
	out.Bytes = l.MaxMemoryBytes
	if l.MaxDuration != nil {
		secs := l.MaxDuration.Seconds()
		out.MaxDurationSecs = &secs
	}
	if l.GCInterval != nil {
		secs := l.GCInterval.Seconds()
		out.GCIntervalSecs = &secs
	}
	return out
}

// memoryPattern and durationPattern follow spec.md §3 exactly: memory
// units are kb/mb/gb (binary multipliers despite the decimal-looking
// suffix) and duration units are ms/s (ms values are divided by 1000 to
// produce seconds).
var (
	memoryPattern   = regexp.MustCompile(`(?i)^([0-9]+(?:\.[0-9]+)?)(kb|mb|gb)$`)
	durationPattern = regexp.MustCompile(`(?i)^([0-9]+(?:\.[0-9]+)?)(ms|s)$`)
)

// ParseMemory parses a string like "128mb" or "2.5gb" into a byte count.
func ParseMemory(s string) (int64, error) {
	m := memoryPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid memory value %q: expected digits followed by kb/mb/gb", s)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory value %q: %w", s, err)
	}

	var multiplier float64
	switch toLower(m[2]) {
	case "kb":
		multiplier = 1024
	case "mb":
		multiplier = 1024 * 1024
	case "gb":
		multiplier = 1024 * 1024 * 1024
	}
	return int64(value * multiplier), nil
}

// ParseDuration parses a string like "500ms" or "2s" into a time.Duration.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration value %q: expected digits followed by ms/s", s)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", s, err)
	}

	if toLower(m[2]) == "ms" {
		value = value / 1000
	}
	return time.Duration(value * float64(time.Second)), nil
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func eqFold(a, b string) bool {
	return toLower(a) == toLower(b)
}

// Config is the YAML-friendly shape used by internal/config, where every
// field is optional free-form text and gets resolved through ParseMemory
// / ParseDuration before becoming a Limits value.
type Config struct {
	MaxMemory      string `yaml:"max_memory,omitempty"`
	MaxDuration    string `yaml:"max_duration,omitempty"`
	MaxRecursion   int    `yaml:"max_recursion,omitempty"`
	MaxAllocations int64  `yaml:"max_allocations,omitempty"`
}

// Resolve turns a Config into Limits, parsing the human-readable fields.
// Fields left blank/zero in the config stay unset in the result.
func (c Config) Resolve() (Limits, error) {
	var out Limits
	if c.MaxMemory != "" {
		bytes, err := ParseMemory(c.MaxMemory)
		if err != nil {
			return Limits{}, err
		}
		out.MaxMemoryBytes = &bytes
	}
	if c.MaxDuration != "" {
		d, err := ParseDuration(c.MaxDuration)
		if err != nil {
			return Limits{}, err
		}
		out.MaxDuration = &d
	}
	if c.MaxRecursion != 0 {
		out.MaxRecursion = &c.MaxRecursion
	}
	if c.MaxAllocations != 0 {
		out.MaxAllocations = &c.MaxAllocations
	}
	return out, nil
}

// PresetByName resolves "strict", "default" or "permissive" (case
// insensitive) to its Limits value.
func PresetByName(name string) (Limits, bool) {
	switch {
	case eqFold(name, "strict"):
		return Strict, true
	case eqFold(name, "default"), name == "":
		return Default, true
	case eqFold(name, "permissive"):
		return Permissive, true
	default:
		return Limits{}, false
	}
}
