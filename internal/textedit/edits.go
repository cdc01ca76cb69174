// Package textedit applies byte-range replacements to a source buffer.
package textedit

import (
	"errors"
	"fmt"
	"sort"
)

// Edit represents a targeted byte-range replacement.
//
// Start and End are byte offsets into the original source, with End exclusive.
// Replacement replaces source[Start:End]. Start == End inserts.
type Edit struct {
	Start       int
	End         int
	Replacement []byte
}

// ErrOverlap is returned when two edits touch the same bytes.
var ErrOverlap = errors.New("invalid edits: overlapping ranges")

// Apply applies a set of byte-range edits to source and returns the updated content.
//
// Edits must be non-overlapping and refer to offsets in the original source.
// They are applied from the end of the buffer toward the beginning so earlier
// edits do not invalidate offsets for later edits. Insertions at the same
// offset keep their input order.
func Apply(source []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return append([]byte(nil), source...), nil
	}

	type indexed struct {
		Edit
		order int
	}
	sorted := make([]indexed, len(edits))
	for i, e := range edits {
		sorted[i] = indexed{Edit: e, order: i}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start > sorted[j].Start
		}
		if sorted[i].End != sorted[j].End {
			return sorted[i].End > sorted[j].End
		}
		return sorted[i].order > sorted[j].order
	})

	for i, e := range sorted {
		if e.Start < 0 || e.End < 0 {
			return nil, fmt.Errorf("invalid edit[%d]: negative range", e.order)
		}
		if e.End < e.Start {
			return nil, fmt.Errorf("invalid edit[%d]: end before start", e.order)
		}
		if e.End > len(source) {
			return nil, fmt.Errorf("invalid edit[%d]: range out of bounds", e.order)
		}
		if i > 0 {
			prev := sorted[i-1]
			// Sorted by Start descending: the current edit must end at or before
			// the previous edit's start. Two insertions at one offset are allowed.
			if e.End > prev.Start {
				return nil, ErrOverlap
			}
		}
	}

	out := make([]byte, 0, len(source))
	cursor := len(source)
	chunks := make([][]byte, 0, 2*len(sorted)+1)
	for _, e := range sorted {
		chunks = append(chunks, source[e.End:cursor], e.Replacement)
		cursor = e.Start
	}
	chunks = append(chunks, source[:cursor])
	for i := len(chunks) - 1; i >= 0; i-- {
		out = append(out, chunks[i]...)
	}
	return out, nil
}
