// Package source holds the immutable raw bytes of a LaTeX document.
package source

import (
	"bytes"
	"fmt"
	"os"
)

// Raw is an immutable byte sequence plus the path it was read from.
// Edits never mutate a Raw; they produce a new one.
type Raw struct {
	path string
	data []byte
}

// New copies data into a Raw bound to path.
func New(path string, data []byte) Raw {
	return Raw{path: path, data: bytes.Clone(data)}
}

// Read loads path from disk.
func Read(path string) (Raw, error) {
	// #nosec G304 -- path is the document the caller asked for
	data, err := os.ReadFile(path)
	if err != nil {
		return Raw{}, fmt.Errorf("read source %s: %w", path, err)
	}
	return Raw{path: path, data: data}, nil
}

// Path returns the originating path (may be empty for in-memory sources).
func (r Raw) Path() string { return r.path }

// Bytes returns a copy of the content.
func (r Raw) Bytes() []byte { return bytes.Clone(r.data) }

// String returns the content as a string.
func (r Raw) String() string { return string(r.data) }

// Len returns the content size in bytes.
func (r Raw) Len() int { return len(r.data) }

// Equal reports whether both sources hold identical bytes.
func (r Raw) Equal(other Raw) bool { return bytes.Equal(r.data, other.data) }

// WithBytes returns a new Raw with the same path and different content.
func (r Raw) WithBytes(data []byte) Raw {
	return New(r.path, data)
}

// WithPath returns a new Raw sharing the content under another path.
func (r Raw) WithPath(path string) Raw {
	return Raw{path: path, data: r.data}
}

// View exposes the content without copying. Callers must not modify it.
func (r Raw) View() []byte { return r.data }

// Newline returns the line ending used by the first line break, "\n" by default.
func (r Raw) Newline() string {
	return DetectNewline(r.data)
}

// DetectNewline returns "\r\n" when the first line break is CRLF, "\n" otherwise.
func DetectNewline(content []byte) string {
	i := bytes.IndexByte(content, '\n')
	if i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

// Line is one line of a source with byte offsets. End excludes the line
// terminator; Next is the offset of the following line.
type Line struct {
	Number int
	Start  int
	End    int
	Next   int
}

// Text returns the line content without its terminator.
func (l Line) Text(data []byte) []byte { return data[l.Start:l.End] }

// Lines splits data into lines, keeping offsets. A trailing line without
// terminator is included; an empty input yields no lines.
func Lines(data []byte) []Line {
	var lines []Line
	start := 0
	for n := 1; start < len(data); n++ {
		i := bytes.IndexByte(data[start:], '\n')
		if i < 0 {
			lines = append(lines, Line{Number: n, Start: start, End: len(data), Next: len(data)})
			break
		}
		end := start + i
		next := end + 1
		if end > start && data[end-1] == '\r' {
			end--
		}
		lines = append(lines, Line{Number: n, Start: start, End: end, Next: next})
		start = next
	}
	return lines
}

// LineAt returns the 1-based line number containing offset.
func LineAt(data []byte, offset int) int {
	if offset > len(data) {
		offset = len(data)
	}
	return bytes.Count(data[:offset], []byte{'\n'}) + 1
}
