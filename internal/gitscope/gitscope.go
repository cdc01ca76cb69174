// Package gitscope narrows a batch to the sources git reports as changed.
package gitscope

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/texbuilder/internal/batch"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

// repoFor opens the repository enclosing path and returns it with its
// worktree root.
func repoFor(path string) (*git.Repository, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", path, err)
	}
	start := abs
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		start = filepath.Dir(abs)
	}
	repo, err := git.PlainOpenWithOptions(start, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, "", errors.WrapError(err, errors.CategoryNotFound, "no git repository encloses path").
			WithContext("path", path).
			Build()
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, "", fmt.Errorf("open worktree: %w", err)
	}
	return repo, wt.Filesystem.Root(), nil
}

// Changed returns the sources under paths that are modified, staged or
// untracked in their git worktree. Deleted files are omitted.
func Changed(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range paths {
		repo, root, err := repoFor(p)
		if err != nil {
			return nil, err
		}
		wt, err := repo.Worktree()
		if err != nil {
			return nil, fmt.Errorf("open worktree: %w", err)
		}
		status, err := wt.Status()
		if err != nil {
			return nil, fmt.Errorf("git status: %w", err)
		}
		scope, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		for name, st := range status {
			if st.Worktree == git.Deleted || (st.Staging == git.Deleted && st.Worktree == git.Unmodified) {
				continue
			}
			if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
				continue
			}
			full := filepath.Join(root, filepath.FromSlash(name))
			if hidden(name) || !batch.IsSource(full) || !within(scope, full) || seen[full] {
				continue
			}
			seen[full] = true
			out = append(out, full)
		}
	}
	slices.Sort(out)
	return out, nil
}

// ChangedSince returns the sources under paths that differ between rev and
// HEAD, plus those Changed reports.
func ChangedSince(paths []string, rev string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range paths {
		repo, root, err := repoFor(p)
		if err != nil {
			return nil, err
		}
		scope, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		names, err := diffNames(repo, rev)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			full := filepath.Join(root, filepath.FromSlash(name))
			if hidden(name) || !batch.IsSource(full) || !within(scope, full) {
				continue
			}
			if _, err := os.Stat(full); err != nil {
				continue
			}
			add(full)
		}
	}
	dirty, err := Changed(paths)
	if err != nil {
		return nil, err
	}
	for _, p := range dirty {
		add(p)
	}
	slices.Sort(out)
	return out, nil
}

func diffNames(repo *git.Repository, rev string) ([]string, error) {
	from, err := treeAt(repo, rev)
	if err != nil {
		return nil, err
	}
	to, err := treeAt(repo, "HEAD")
	if err != nil {
		return nil, err
	}
	changes, err := object.DiffTree(from, to)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	names := make([]string, 0, len(changes))
	for _, c := range changes {
		if c.To.Name != "" {
			names = append(names, c.To.Name)
		}
	}
	return names, nil
}

func treeAt(repo *git.Repository, rev string) (*object.Tree, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "unknown revision").
			WithContext("revision", rev).
			Build()
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("get commit object: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}
	return tree, nil
}

// hidden reports whether the slash path crosses a dot directory, such as
// the compiler's scratch space.
func hidden(name string) bool {
	dir, _ := path.Split(name)
	for _, seg := range strings.Split(dir, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func within(scope, p string) bool {
	return p == scope || strings.HasPrefix(p, scope+string(filepath.Separator))
}
