package compile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLog(t *testing.T) {
	log := `This is pdfTeX, Version 3.141592653
(./TD1-Eleve.tex
LaTeX Warning: Citation 'x' on page 2 undefined on input line 41.
Package hyperref Warning: Token not allowed in a PDF string on input line 7.
Overfull \hbox (12.0pt too wide) in paragraph at lines 20--22
./TD1-Eleve.tex:55: Undefined control sequence.
l.55 \foo
! Emergency stop.
<*> TD1-Eleve.tex
LaTeX Warning: There were undefined references.
`
	want := []Diagnostic{
		{Severity: SeverityWarning, Message: "Citation 'x' on page 2 undefined on input line 41.", Line: 41},
		{Severity: SeverityWarning, Message: "Token not allowed in a PDF string on input line 7.", Line: 7},
		{Severity: SeverityInfo, Message: `Overfull \hbox (12.0pt too wide) in paragraph at lines 20--22`, Line: 20},
		{Severity: SeverityError, Message: "Undefined control sequence.", Line: 55},
		{Severity: SeverityError, Message: "Emergency stop."},
		{Severity: SeverityWarning, Message: "There were undefined references."},
	}
	if diff := cmp.Diff(want, ParseLog([]byte(log))); diff != "" {
		t.Fatalf("ParseLog mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLog_BangErrorTakesContextLine(t *testing.T) {
	log := "! Missing $ inserted.\r\n<inserted text>\r\n l.9 x^2\r\nl.9 x^2\r\n"
	got := ParseLog([]byte(log))
	want := []Diagnostic{{Severity: SeverityError, Message: "Missing $ inserted.", Line: 9}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLog_Empty(t *testing.T) {
	if got := ParseLog(nil); len(got) != 0 {
		t.Fatalf("expected no diagnostics, got %v", got)
	}
}
