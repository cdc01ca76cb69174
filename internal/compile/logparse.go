package compile

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

var (
	fileLineErrorRe = regexp.MustCompile(`^(?:\./)?[^:\s]+\.(?:tex|sty|cls|ltx):(\d+):\s*(.+)$`)
	contextLineRe   = regexp.MustCompile(`^l\.(\d+)\s`)
	warningRe       = regexp.MustCompile(`^(?:LaTeX|Package [\w-]+|Class [\w-]+) Warning:\s*(.+)$`)
	inputLineRe     = regexp.MustCompile(`on input line (\d+)\.?`)
	boxRe           = regexp.MustCompile(`^(?:Overfull|Underfull) \\[hv]box .*?(?:at lines? (\d+)|$)`)
)

// maxDiagnostics bounds what a runaway log can produce.
const maxDiagnostics = 200

// ParseLog extracts diagnostics from a TeX log in order of appearance.
func ParseLog(log []byte) []Diagnostic {
	var (
		out     []Diagnostic
		pending = -1 // index of a "!" error still waiting for its l.<n> line
	)
	sc := bufio.NewScanner(bytes.NewReader(log))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() && len(out) < maxDiagnostics {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case strings.HasPrefix(line, "! "):
			out = append(out, Diagnostic{Severity: SeverityError, Message: strings.TrimSpace(line[2:])})
			pending = len(out) - 1
		case pending >= 0 && contextLineRe.MatchString(line):
			m := contextLineRe.FindStringSubmatch(line)
			out[pending].Line = atoi(m[1])
			pending = -1
		case fileLineErrorRe.MatchString(line):
			m := fileLineErrorRe.FindStringSubmatch(line)
			out = append(out, Diagnostic{Severity: SeverityError, Message: strings.TrimSpace(m[2]), Line: atoi(m[1])})
			pending = -1
		case warningRe.MatchString(line):
			m := warningRe.FindStringSubmatch(line)
			d := Diagnostic{Severity: SeverityWarning, Message: strings.TrimSpace(m[1])}
			if lm := inputLineRe.FindStringSubmatch(line); lm != nil {
				d.Line = atoi(lm[1])
			}
			out = append(out, d)
		case boxRe.MatchString(line):
			m := boxRe.FindStringSubmatch(line)
			out = append(out, Diagnostic{Severity: SeverityInfo, Message: strings.TrimSpace(line), Line: atoi(m[1])})
		}
	}
	return dedupe(out)
}

// dedupe drops a "!" error repeated by file:line:error output.
func dedupe(in []Diagnostic) []Diagnostic {
	out := in[:0]
	for i, d := range in {
		if i > 0 {
			prev := out[len(out)-1]
			if prev.Severity == d.Severity && prev.Message == d.Message && (prev.Line == d.Line || prev.Line == 0 || d.Line == 0) {
				if prev.Line == 0 {
					out[len(out)-1].Line = d.Line
				}
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
