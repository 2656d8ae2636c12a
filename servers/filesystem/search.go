package filesystem

import (
	"context"

	"go.uber.org/zap"
)

// Search returns the paths below root whose basename matches pattern, in depth-first discovery
// order. Entries matching any of excludePatterns are skipped, and excluded directories are not
// descended into. Entries that disappear or cannot be read are skipped without failing the
// search. An empty, nil-error result means nothing matched.
func (w *Workspace) Search(ctx context.Context, root, pattern string, excludePatterns []string) ([]string, error) {
	dir, err := w.directory(root)
	if err != nil {
		return nil, err
	}
	matcher, err := compileNamePattern(pattern)
	if err != nil {
		return nil, err
	}
	excludes, err := compileExcludes(excludePatterns)
	if err != nil {
		return nil, err
	}

	var results []string
	err = w.walker().walk(ctx, dir, func(n node) bool {
		if excludes.match(n.rel, n.entry.Name()) {
			return false
		}
		if matcher.match(n.entry.Name()) {
			results = append(results, n.path)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	w.logger.Debug("search finished",
		zap.String("root", dir), zap.String("pattern", pattern), zap.Int("matches", len(results)))
	return results, nil
}
