package filesystem

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"

	"go.uber.org/zap"
)

// node is one entry discovered while walking a tree.
type node struct {
	path  string      // absolute path
	rel   string      // slash separated, relative to the walk root
	entry fs.DirEntry // as returned by the directory read, never followed
}

// treeWalker performs the depth-first traversal shared by search, find and directory_tree.
// It keeps an explicit stack, so pruning a subtree means not pushing its children, and it
// never follows symlinks into directories.
type treeWalker struct {
	roots   AllowedRoots
	logger  *zap.Logger
	readDir func(string) ([]fs.DirEntry, error)
}

// walk visits every descendant of root in depth-first pre-order, entries of one directory in
// name order. visit reports whether a directory should be descended into. Failing to read the
// root itself is an error; failing to read any directory below it only prunes that directory.
func (w treeWalker) walk(ctx context.Context, root string, visit func(node) bool) error {
	entries, err := w.readDir(root)
	if err != nil {
		return wrapFSError("read directory", root, err)
	}

	stack := pushChildren(nil, root, "", entries)
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return &Error{Kind: KindUnexpected, Path: root, Msg: "walk interrupted", Err: err}
		}

		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// Only symlinks can point outside the roots: everything else sits below a directory that
		// was reached without following links.
		if n.entry.Type()&fs.ModeSymlink != 0 {
			if _, err := w.roots.Validate(n.path); err != nil {
				w.logger.Debug("skipping symlink outside allowed directories",
					zap.String("path", n.path), zap.Error(err))
				continue
			}
		}

		if !visit(n) || !n.entry.IsDir() {
			continue
		}

		children, err := w.readDir(n.path)
		if err != nil {
			w.logger.Warn("skipping unreadable directory", zap.String("path", n.path), zap.Error(err))
			continue
		}
		stack = pushChildren(stack, n.path, n.rel, children)
	}

	return nil
}

// pushChildren pushes entries in reverse so they pop in directory order.
func pushChildren(stack []node, dir, rel string, entries []fs.DirEntry) []node {
	for i := len(entries) - 1; i >= 0; i-- {
		name := entries[i].Name()
		stack = append(stack, node{
			path:  filepath.Join(dir, name),
			rel:   path.Join(rel, name),
			entry: entries[i],
		})
	}
	return stack
}
