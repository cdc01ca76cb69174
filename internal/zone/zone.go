// Package zone locates named regions delimited by marker comments:
//
//	%### BEGIN contenu_document ###
//	...
//	%### END contenu_document ###
//
// Markers must sit alone on their line. A doubled comment (%%###) disables a marker.
package zone

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	foundationerrors "git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/source"
)

var markerRe = regexp.MustCompile(`^[ \t]*%###[ \t]+(BEGIN|END)[ \t]+([A-Za-z0-9_-]+)[ \t]+###[ \t]*$`)

// Zone is a named region. Start/End cover both marker lines including the
// END line terminator; ContentStart/ContentEnd cover the lines in between.
type Zone struct {
	Name         string
	Start        int
	End          int
	ContentStart int
	ContentEnd   int
	BeginLine    int
	EndLine      int
}

// Content returns the bytes between the markers.
func (z Zone) Content(data []byte) []byte {
	return data[z.ContentStart:z.ContentEnd]
}

// Marker is a parsed marker line.
type Marker struct {
	Begin bool
	Name  string
}

// ParseMarker reports whether line (without terminator) is a zone marker.
func ParseMarker(line []byte) (Marker, bool) {
	m := markerRe.FindSubmatch(line)
	if m == nil {
		return Marker{}, false
	}
	return Marker{Begin: string(m[1]) == "BEGIN", Name: string(m[2])}, true
}

// BeginMarker renders the opening marker for name.
func BeginMarker(name string) string { return "%### BEGIN " + name + " ###" }

// EndMarker renders the closing marker for name.
func EndMarker(name string) string { return "%### END " + name + " ###" }

// Wrap renders a complete zone around content using newline as terminator.
func Wrap(name, content, newline string) string {
	var b strings.Builder
	b.WriteString(BeginMarker(name))
	b.WriteString(newline)
	b.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		b.WriteString(newline)
	}
	b.WriteString(EndMarker(name))
	b.WriteString(newline)
	return b.String()
}

// Disable doubles the comment sign of every marker line in data so Scan no
// longer sees it. Other bytes are unchanged.
func Disable(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data) + 16)
	last := 0
	for _, line := range source.Lines(data) {
		text := line.Text(data)
		if _, ok := ParseMarker(text); !ok {
			continue
		}
		at := line.Start + bytes.IndexByte(text, '%')
		out.Write(data[last:at])
		out.WriteByte('%')
		last = at
	}
	out.Write(data[last:])
	return out.Bytes()
}

type open struct {
	name  string
	start int
	body  int
	line  int
}

// Scan returns every zone of data ordered by start offset. Zones with
// different names may nest; a name may appear only once per document.
// Malformed marker structure yields a parse-category ClassifiedError.
func Scan(data []byte) ([]Zone, error) {
	var (
		stack []open
		zones []Zone
		seen  = map[string]int{}
	)
	for _, line := range source.Lines(data) {
		m, ok := ParseMarker(line.Text(data))
		if !ok {
			continue
		}
		if m.Begin {
			for _, o := range stack {
				if o.name == m.Name {
					return nil, parseError("nested zone with the same name", m.Name, line.Number)
				}
			}
			if _, dup := seen[m.Name]; dup {
				return nil, parseError("duplicate zone", m.Name, line.Number)
			}
			stack = append(stack, open{name: m.Name, start: line.Start, body: line.Next, line: line.Number})
			continue
		}
		if len(stack) == 0 {
			return nil, parseError("END marker without BEGIN", m.Name, line.Number)
		}
		top := stack[len(stack)-1]
		if top.name != m.Name {
			return nil, parseError(fmt.Sprintf("END marker closes %q while %q is open", m.Name, top.name), m.Name, line.Number)
		}
		stack = stack[:len(stack)-1]
		seen[m.Name] = len(zones)
		zones = append(zones, Zone{
			Name:         m.Name,
			Start:        top.start,
			End:          line.Next,
			ContentStart: top.body,
			ContentEnd:   line.Start,
			BeginLine:    top.line,
			EndLine:      line.Number,
		})
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return nil, parseError("zone is never closed", top.name, top.line)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Start < zones[j].Start })
	return zones, nil
}

// Find returns the zone called name.
func Find(zones []Zone, name string) (Zone, bool) {
	for _, z := range zones {
		if z.Name == name {
			return z, true
		}
	}
	return Zone{}, false
}

// Names lists zone names in document order.
func Names(zones []Zone) []string {
	names := make([]string, len(zones))
	for i, z := range zones {
		names[i] = z.Name
	}
	return names
}

func parseError(msg, name string, line int) error {
	return foundationerrors.ParseError(fmt.Sprintf("zone %q: %s (line %d)", name, msg, line)).
		WithContext("zone", name).
		WithContext("line", line).
		Build()
}
