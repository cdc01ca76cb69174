package compile

import (
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/foundation/normalization"
)

// Mode selects how much compiler state survives between runs.
type Mode int

const (
	// Normal lets the compiler reuse its auxiliary files.
	Normal Mode = iota
	// Deep deletes the auxiliary files of the job and forces a full rebuild.
	Deep
)

func (m Mode) String() string {
	if m == Deep {
		return "deep"
	}
	return "normal"
}

var modeNames = normalization.New("compile mode", map[string]Mode{
	"normal": Normal,
	"deep":   Deep,
}, Normal)

// ParseMode converts "normal" or "deep". Empty input means normal.
func ParseMode(s string) (Mode, error) {
	if strings.TrimSpace(s) == "" {
		return Normal, nil
	}
	return modeNames.Parse(s)
}
