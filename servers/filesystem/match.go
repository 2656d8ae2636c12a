package filesystem

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
)

// namePattern matches entry basenames case-insensitively. Dots are literal, so *.txt matches
// .txt files as well.
type namePattern struct {
	g glob.Glob
}

func compileNamePattern(pattern string) (namePattern, error) {
	if pattern == "" {
		return namePattern{}, newError(KindInvalidParameter, "", "pattern is required")
	}
	g, err := glob.Compile(strings.ToLower(pattern), '/')
	if err != nil {
		return namePattern{}, &Error{Kind: KindInvalidParameter, Msg: "invalid pattern " + pattern, Err: err}
	}
	return namePattern{g: g}, nil
}

func (p namePattern) match(name string) bool {
	return p.g.Match(strings.ToLower(name))
}

// excludeSet holds exclude patterns. An entry is excluded when any pattern matches either its
// slash separated path relative to the search root or its basename. ** spans directories.
type excludeSet struct {
	patterns []string
}

func compileExcludes(patterns []string) (excludeSet, error) {
	var set excludeSet
	for _, p := range patterns {
		if p == "" {
			continue
		}
		lower := strings.ToLower(p)
		if !doublestar.ValidatePattern(lower) {
			return excludeSet{}, newError(KindInvalidParameter, "", "invalid exclude pattern %s", p)
		}
		set.patterns = append(set.patterns, lower)
	}
	return set, nil
}

func (s excludeSet) match(rel, name string) bool {
	if len(s.patterns) == 0 {
		return false
	}
	rel = strings.ToLower(rel)
	name = strings.ToLower(name)
	for _, p := range s.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
