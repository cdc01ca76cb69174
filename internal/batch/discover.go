package batch

import (
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

// Sources are the file extensions Discover returns.
var Sources = []string{".tex", ".ltx"}

// Discover lists the source files under root, sorted. excludes are slash
// glob patterns relative to root; "**" matches any number of directories.
// Hidden directories are skipped.
func Discover(root string, excludes []string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || Excluded(rel+"/", excludes)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsSource(p) || Excluded(rel, excludes) {
			return nil
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to scan directory").
			WithContext("path", root).
			Build()
	}
	slices.Sort(out)
	return out, nil
}

// IsSource reports whether p has one of the Sources extensions.
func IsSource(p string) bool {
	return slices.Contains(Sources, strings.ToLower(filepath.Ext(p)))
}

// Excluded reports whether the slash path rel matches any pattern. Directory
// paths end in "/".
func Excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if MatchGlob(p, rel) {
			return true
		}
	}
	return false
}

// MatchGlob matches a slash path against a pattern whose segments follow
// path.Match, plus "**" for zero or more segments. A name ending in "/" is
// a directory and also matches patterns that cover everything below it.
func MatchGlob(pattern, name string) bool {
	dir := strings.HasSuffix(name, "/")
	segs := strings.Split(strings.Trim(name, "/"), "/")
	pats := strings.Split(strings.Trim(pattern, "/"), "/")
	if dir && len(pats) > 0 && pats[len(pats)-1] == "**" {
		pats = pats[:len(pats)-1]
	}
	return matchSegments(pats, segs)
}

func matchSegments(pats, segs []string) bool {
	for len(pats) > 0 {
		if pats[0] == "**" {
			for i := 0; i <= len(segs); i++ {
				if matchSegments(pats[1:], segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pats[0], segs[0]); !ok {
			return false
		}
		pats, segs = pats[1:], segs[1:]
	}
	return len(segs) == 0
}
