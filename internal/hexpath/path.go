// Package hexpath implements the PathClassifier: the pure predicate that
// tells an output artifact from a source one.
package hexpath

import "strings"

// outputRoot is the reserved first path segment that marks an artifact as
// living under the build tool's managed output tree.
const outputRoot = "out"

// separator is the path separator used throughout rule specs. Hexmake paths
// are always forward-slash-separated, regardless of host OS.
const separator = "/"

// outputPrefix is the literal prefix that marks a path as an output path.
const outputPrefix = outputRoot + separator

// Path is an immutable, opaque path value, equal by its text.
type Path struct {
	text string
}

// New wraps a raw path string as a Path value.
func New(text string) Path {
	return Path{text: text}
}

// String returns the raw path text.
func (p Path) String() string {
	return p.text
}

// IsOutput reports whether p names an artifact under the reserved output
// root. The bare string "out" (no trailing separator) is not an output
// path; "output/…" is a source path, since only the exact segment "out"
// counts.
func (p Path) IsOutput() bool {
	return strings.HasPrefix(p.text, outputPrefix)
}

// Child returns the path formed by joining name onto p as a child segment.
func (p Path) Child(name string) Path {
	return Path{text: p.text + separator + name}
}

// Equal reports whether two paths carry identical text.
func (p Path) Equal(other Path) bool {
	return p.text == other.text
}

// IsOutput is the free-function form of Path.IsOutput, for callers holding
// a raw string rather than a Path value.
func IsOutput(text string) bool {
	return New(text).IsOutput()
}
