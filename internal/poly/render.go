package poly

import (
	"strconv"
	"strings"
	"text/template"
)

// Data is everything a poly skeleton template can use.
type Data struct {
	Title      string
	Variant    string
	RectoVerso bool
	Parts      []Part
	// Template overrides the built-in skeleton when non-empty.
	Template string
}

// Part is one block of the merged body.
type Part struct {
	Source  string
	Zone    string // empty for an included PDF
	Content string
	PDF     string
}

// DefaultTemplate is the built-in skeleton. Delimiters are [[ ]] so LaTeX
// braces need no escaping.
const DefaultTemplate = `\documentclass{upsti}
%### BEGIN metadonnees_yaml ###
% titre: [[ quote .Title ]]
% type_document: poly
%### END metadonnees_yaml ###
\usepackage{pdfpages}
[[- if .RectoVerso ]]
\newcommand{\polyRectoVerso}{1}
[[- end ]]
\begin{document}
[[ range .Parts -]]
[[ if .PDF -]]
% --- [[ .Source ]]
\includepdf[pages=-]{[[ .PDF ]]}
[[ else -]]
% --- [[ .Source ]] :: [[ .Zone ]]
[[ .Content ]]
[[- end ]]
[[ end -]]
\end{document}
`

var funcs = template.FuncMap{
	"quote": yamlQuote,
}

// Render produces the merged source. It has no side effects.
func Render(data Data) (string, error) {
	text := data.Template
	if text == "" {
		text = DefaultTemplate
	}
	t, err := template.New("poly").Delims("[[", "]]").Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// yamlQuote renders s as a YAML double-quoted scalar.
func yamlQuote(s string) string {
	return strconv.Quote(s)
}
