package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// maxSymlinkHops bounds how many dangling symlinks are followed by hand when validating a path
// that does not exist yet.
const maxSymlinkHops = 40

// AllowedRoots is the immutable set of directories every operation is confined to. Each root is
// absolute, symlink-resolved and known to be an existing directory. The zero value allows
// nothing.
//
// AllowedRoots is safe for concurrent use: it is never mutated after NewAllowedRoots returns.
type AllowedRoots struct {
	// resolved holds the symlink-resolved roots, in configuration order.
	resolved []string
	// lexical additionally holds the cleaned, unresolved spelling of each root, so a request
	// spelled through a symlinked root (e.g. /tmp on macOS) passes the first, lexical check.
	lexical []string
}

// ValidatedPath is a path that passed sandbox validation. Path is absolute; for existing
// targets it is the fully resolved real path, otherwise the cleaned requested path whose
// parent resolves inside the roots.
type ValidatedPath struct {
	Path   string
	Exists bool
}

// NewAllowedRoots resolves and deduplicates dirs. It fails if any directory does not exist,
// cannot be resolved or is not a directory.
func NewAllowedRoots(dirs []string) (AllowedRoots, error) {
	var r AllowedRoots
	seen := make(map[string]bool)
	seenLexical := make(map[string]bool)

	for _, dir := range dirs {
		expanded, err := expandHome(dir)
		if err != nil {
			return AllowedRoots{}, fmt.Errorf("failed to expand root directory %s: %w", dir, err)
		}
		absolute, err := filepath.Abs(expanded)
		if err != nil {
			return AllowedRoots{}, fmt.Errorf("failed to resolve root directory %s: %w", dir, err)
		}
		resolvedRoot, err := filepath.EvalSymlinks(absolute)
		if err != nil {
			return AllowedRoots{}, fmt.Errorf("failed to resolve root directory %s: %w", dir, err)
		}
		info, err := os.Stat(resolvedRoot)
		if err != nil {
			return AllowedRoots{}, fmt.Errorf("failed to stat root directory: %w", err)
		}
		if !info.IsDir() {
			return AllowedRoots{}, fmt.Errorf("root directory is not a directory: %s", dir)
		}

		if !seen[resolvedRoot] {
			seen[resolvedRoot] = true
			r.resolved = append(r.resolved, resolvedRoot)
		}
		for _, p := range []string{resolvedRoot, filepath.Clean(absolute)} {
			if !seenLexical[p] {
				seenLexical[p] = true
				r.lexical = append(r.lexical, p)
			}
		}
	}

	return r, nil
}

// Dirs returns the resolved roots in configuration order.
func (r AllowedRoots) Dirs() []string {
	dirs := make([]string, len(r.resolved))
	copy(dirs, r.resolved)
	return dirs
}

// Validate checks requested against the roots. Anything that exists is checked through its
// fully resolved real path, so a symlink planted inside a root that points outside of it is
// rejected. A path that does not exist yet is accepted when its parent directory exists and
// resolves inside the roots.
func (r AllowedRoots) Validate(requested string) (ValidatedPath, error) {
	if strings.TrimSpace(requested) == "" {
		return ValidatedPath{}, newError(KindInvalidParameter, "", "path is required")
	}

	expanded, err := expandHome(requested)
	if err != nil {
		return ValidatedPath{}, &Error{Kind: KindSecurity, Path: requested, Msg: "cannot expand home directory", Err: err}
	}
	absolute, err := filepath.Abs(expanded)
	if err != nil {
		return ValidatedPath{}, &Error{Kind: KindSecurity, Path: requested, Msg: "cannot resolve path", Err: err}
	}
	normalized := filepath.Clean(absolute)

	if !within(normalized, r.lexical) {
		return ValidatedPath{}, r.denied(requested, "path outside allowed directories")
	}

	realPath, err := filepath.EvalSymlinks(normalized)
	if err == nil {
		if !within(realPath, r.resolved) {
			return ValidatedPath{}, r.denied(requested, "symlink target outside allowed directories")
		}
		return ValidatedPath{Path: realPath, Exists: true}, nil
	}
	if isPermission(err) {
		return ValidatedPath{}, &Error{Kind: KindSecurity, Path: requested, Msg: "permission denied while resolving path", Err: err}
	}
	if !isMissing(err) {
		return ValidatedPath{}, wrapFSError("resolve path", requested, err)
	}

	if err := r.checkMissing(normalized, 0); err != nil {
		return ValidatedPath{}, err
	}
	return ValidatedPath{Path: normalized, Exists: false}, nil
}

// validateNested is Validate for targets that may be several levels below the deepest existing
// directory, as create_directory needs. The deepest existing ancestor must resolve inside the
// roots.
func (r AllowedRoots) validateNested(requested string) (ValidatedPath, error) {
	vp, err := r.Validate(requested)
	if err == nil || KindOf(err) != KindSecurity {
		return vp, err
	}

	expanded, expandErr := expandHome(requested)
	if expandErr != nil {
		return ValidatedPath{}, err
	}
	absolute, absErr := filepath.Abs(expanded)
	if absErr != nil {
		return ValidatedPath{}, err
	}
	normalized := filepath.Clean(absolute)
	if !within(normalized, r.lexical) {
		return ValidatedPath{}, err
	}

	ancestor := normalized
	for {
		if _, statErr := os.Lstat(ancestor); statErr == nil {
			break
		} else if !isMissing(statErr) {
			return ValidatedPath{}, &Error{Kind: KindSecurity, Path: requested, Msg: "cannot inspect ancestor directory", Err: statErr}
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			return ValidatedPath{}, err
		}
		ancestor = parent
	}

	realAncestor, evalErr := filepath.EvalSymlinks(ancestor)
	if evalErr != nil {
		return ValidatedPath{}, &Error{Kind: KindSecurity, Path: requested, Msg: "cannot resolve ancestor directory", Err: evalErr}
	}
	if !within(realAncestor, r.resolved) {
		return ValidatedPath{}, r.denied(requested, "ancestor directory outside allowed directories")
	}
	return ValidatedPath{Path: normalized, Exists: false}, nil
}

// checkMissing validates a path that does not resolve: its parent must exist inside the roots,
// and if the leaf is a dangling symlink its target must satisfy the same rule, so a later write
// through the link cannot land outside the roots.
func (r AllowedRoots) checkMissing(p string, hops int) error {
	parent := filepath.Dir(p)
	realParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		if isPermission(err) {
			return &Error{Kind: KindSecurity, Path: p, Msg: "permission denied while resolving parent directory", Err: err}
		}
		if isMissing(err) {
			return newError(KindSecurity, p, "parent directory %s does not exist", parent)
		}
		return wrapFSError("resolve parent directory", p, err)
	}
	if !within(realParent, r.resolved) {
		return r.denied(p, "parent directory outside allowed directories")
	}

	info, err := os.Lstat(p)
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return nil
	}
	if hops >= maxSymlinkHops {
		return newError(KindSecurity, p, "too many levels of symbolic links")
	}
	target, err := os.Readlink(p)
	if err != nil {
		return &Error{Kind: KindSecurity, Path: p, Msg: "cannot read symlink", Err: err}
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(realParent, target)
	}
	target = filepath.Clean(target)
	if !within(target, r.resolved) {
		return r.denied(p, "symlink target outside allowed directories")
	}
	return r.checkMissing(target, hops+1)
}

// Rel returns p relative to the root containing it, slash separated, or p itself when no root
// contains it.
func (r AllowedRoots) Rel(p string) string {
	for _, root := range r.resolved {
		if !within(p, []string{root}) {
			continue
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			break
		}
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(p)
}

func (r AllowedRoots) denied(path, reason string) *Error {
	return newError(KindSecurity, path, "%s (allowed: %s)", reason, strings.Join(r.resolved, ", "))
}

// within reports whether p equals one of dirs or lies below one of them. The separator is used
// as the boundary so /allowed never matches /allowed-other.
func within(p string, dirs []string) bool {
	for _, dir := range dirs {
		if p == dir {
			return true
		}
		prefix := dir
		if !strings.HasSuffix(prefix, string(filepath.Separator)) {
			prefix += string(filepath.Separator)
		}
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, p[1:]), nil
}

func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

func isPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}
