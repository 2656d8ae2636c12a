package filesystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultFileMode = 0600
	defaultDirMode  = 0700
)

// Workspace performs file operations confined to a set of allowed roots. Every path argument
// goes through AllowedRoots.Validate before anything touches the filesystem, and every
// failure is returned as an *Error.
type Workspace struct {
	roots   AllowedRoots
	logger  *zap.Logger
	readDir func(string) ([]fs.DirEntry, error)
}

// EditOperation replaces the first occurrence of OldText with NewText.
type EditOperation struct {
	OldText string `json:"oldText"`
	NewText string `json:"newText"`
}

// FileContent is the outcome of reading one file of a batch.
type FileContent struct {
	Path    string
	Content string
	Err     error
}

// DirEntry is one entry of a directory listing. Type is "file", "directory" or "error"; the
// metadata fields are only filled when requested.
type DirEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Size        int64  `json:"size,omitempty"`
	Modified    string `json:"modified,omitempty"`
	Created     string `json:"created,omitempty"`
	Permissions string `json:"permissions,omitempty"`
	Error       string `json:"error,omitempty"`
}

// TreeEntry is a node of DirectoryTree's output.
type TreeEntry struct {
	Name     string       `json:"name"`
	Type     string       `json:"type"`
	Children []*TreeEntry `json:"children,omitempty"`
}

// FileInfo is the metadata reported for a single path.
type FileInfo struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
	Accessed    string `json:"accessed"`
	IsDirectory bool   `json:"isDirectory"`
	IsFile      bool   `json:"isFile"`
	Permissions string `json:"permissions"`
}

// InfoError describes why metadata could not be fetched for one path.
type InfoError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// InfoRecord is the per-path outcome of GetFilesInfo.
type InfoRecord struct {
	Path    string     `json:"path"`
	Success bool       `json:"success"`
	Info    *FileInfo  `json:"info,omitempty"`
	Error   *InfoError `json:"error,omitempty"`
}

// InfoSummary counts the outcomes of GetFilesInfo, failures included even when they are left out
// of the results.
type InfoSummary struct {
	TotalRequested int `json:"total_requested"`
	Successful     int `json:"successful"`
	Errors         int `json:"errors"`
}

// BulkInfo is the result of GetFilesInfo.
type BulkInfo struct {
	Summary InfoSummary  `json:"summary"`
	Results []InfoRecord `json:"results"`
}

// NewWorkspace returns a Workspace confined to roots. A nil logger discards logs.
func NewWorkspace(roots AllowedRoots, logger *zap.Logger) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{roots: roots, logger: logger, readDir: os.ReadDir}
}

// Roots returns the roots the workspace is confined to.
func (w *Workspace) Roots() AllowedRoots {
	return w.roots
}

// ReadFile returns the whole content of the file at path.
func (w *Workspace) ReadFile(path string) (string, error) {
	p, err := w.file(path)
	if err != nil {
		return "", err
	}
	bs, err := os.ReadFile(p)
	if err != nil {
		return "", wrapFSError("read file", path, err)
	}
	return string(bs), nil
}

// ReadFileHead returns the first n lines of the file at path.
func (w *Workspace) ReadFileHead(path string, n int) (string, error) {
	if n <= 0 {
		return "", newError(KindInvalidParameter, path, "head must be positive")
	}
	p, err := w.file(path)
	if err != nil {
		return "", err
	}
	f, err := os.Open(p)
	if err != nil {
		return "", wrapFSError("open file", path, err)
	}
	defer f.Close()

	var b strings.Builder
	r := bufio.NewReader(f)
	for i := 0; i < n; i++ {
		line, err := r.ReadString('\n')
		b.WriteString(line)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", wrapFSError("read file", path, err)
		}
	}
	return b.String(), nil
}

// ReadFileTail returns the last n lines of the file at path.
func (w *Workspace) ReadFileTail(path string, n int) (string, error) {
	if n <= 0 {
		return "", newError(KindInvalidParameter, path, "tail must be positive")
	}
	content, err := w.ReadFile(path)
	if err != nil {
		return "", err
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, ""), nil
}

// ReadMultipleFiles reads every path, recording failures per file instead of stopping.
func (w *Workspace) ReadMultipleFiles(paths []string) []FileContent {
	results := make([]FileContent, 0, len(paths))
	for _, p := range paths {
		content, err := w.ReadFile(p)
		if err != nil {
			w.logger.Warn("failed to read file", zap.String("path", p), zap.Error(err))
		}
		results = append(results, FileContent{Path: p, Content: content, Err: err})
	}
	return results
}

// WriteFile creates or replaces the file at path with content. The new content is written to a
// temporary file next to the target and renamed over it, so readers never observe a partial
// write. An existing file keeps its permission bits.
func (w *Workspace) WriteFile(path, content string) error {
	vp, err := w.roots.Validate(path)
	if err != nil {
		return err
	}

	mode := fs.FileMode(defaultFileMode)
	if vp.Exists {
		info, err := os.Stat(vp.Path)
		if err != nil {
			return wrapFSError("stat file", path, err)
		}
		if info.IsDir() {
			return newError(KindNotAFile, path, "is a directory")
		}
		mode = info.Mode().Perm()
	}

	if err := writeFileAtomic(vp.Path, []byte(content), mode); err != nil {
		return wrapFSError("write file", path, err)
	}
	return nil
}

// EditFile applies edits in order to the file at path and returns a fenced unified diff followed
// by a status line. An edit whose OldText is empty or absent is skipped with a warning line. The
// file is written only when dryRun is false and the content changed.
func (w *Workspace) EditFile(path string, edits []EditOperation, dryRun bool) (string, error) {
	p, err := w.file(path)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		return "", wrapFSError("read file", path, err)
	}

	updated, warnings := applyEdits(string(raw), edits)
	original, modified := normalizeLineEndings(string(raw)), normalizeLineEndings(updated)
	for _, warning := range warnings {
		w.logger.Warn("edit skipped", zap.String("path", p), zap.String("reason", warning))
	}

	var out strings.Builder
	changed := modified != original
	if changed {
		out.WriteString(formatDiffOutput(UnifiedDiff(original, modified, w.roots.Rel(p))))
	} else {
		out.WriteString(NoChangesMessage + "\n\n")
	}
	for _, warning := range warnings {
		fmt.Fprintf(&out, "Warning: %s\n", warning)
	}

	switch {
	case !changed:
		out.WriteString("No changes written: content unchanged.")
	case dryRun:
		out.WriteString("Dry run: changes were not written.")
	default:
		info, err := os.Stat(p)
		if err != nil {
			return "", wrapFSError("stat file", path, err)
		}
		if err := writeFileAtomic(p, []byte(updated), info.Mode().Perm()); err != nil {
			return "", wrapFSError("write file", path, err)
		}
		added, removed := diffStats(original, modified)
		fmt.Fprintf(&out, "Changes written to %s (+%d -%d lines).", path, added, removed)
	}

	return out.String(), nil
}

// CreateDirectory creates path and any missing parents. It succeeds if the directory exists.
func (w *Workspace) CreateDirectory(path string) (string, error) {
	vp, err := w.roots.validateNested(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(vp.Path, defaultDirMode); err != nil {
		return "", wrapFSError("create directory", path, err)
	}
	return vp.Path, nil
}

// ListDirectory lists the entries of the directory at path sorted by type then lowercase name.
// Symlinks are reported as what they point to. An entry whose metadata cannot be fetched, or
// that links outside the allowed roots, is reported with type "error".
func (w *Workspace) ListDirectory(path string, includeMetadata bool) ([]DirEntry, error) {
	dir, err := w.directory(path)
	if err != nil {
		return nil, err
	}
	entries, err := w.readDir(dir)
	if err != nil {
		return nil, wrapFSError("read directory", path, err)
	}

	result := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		de := DirEntry{Name: e.Name()}

		info, err := w.entryInfo(full, e)
		if err != nil {
			w.logger.Debug("failed to stat directory entry", zap.String("path", full), zap.Error(err))
			de.Type = "error"
			de.Error = err.Error()
			result = append(result, de)
			continue
		}

		de.Type = entryType(info)
		if includeMetadata {
			created, _ := fileTimes(info)
			de.Size = info.Size()
			de.Modified = formatTimestamp(info.ModTime())
			de.Created = formatTimestamp(created)
			de.Permissions = formatPermissions(info.Mode())
		}
		result = append(result, de)
	}

	slices.SortStableFunc(result, func(a, b DirEntry) int {
		if c := strings.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return result, nil
}

// DirectoryTree returns the entries below path as a tree. Entries matching excludePatterns are
// left out, excluded directories with their contents. Unreadable directories appear without
// children.
func (w *Workspace) DirectoryTree(ctx context.Context, path string, excludePatterns []string) ([]*TreeEntry, error) {
	dir, err := w.directory(path)
	if err != nil {
		return nil, err
	}
	excludes, err := compileExcludes(excludePatterns)
	if err != nil {
		return nil, err
	}

	root := &TreeEntry{Type: "directory"}
	dirs := map[string]*TreeEntry{dir: root}
	err = w.walker().walk(ctx, dir, func(n node) bool {
		if excludes.match(n.rel, n.entry.Name()) {
			return false
		}
		parent := dirs[filepath.Dir(n.path)]
		entry := &TreeEntry{Name: n.entry.Name(), Type: "file"}
		if n.entry.IsDir() {
			entry.Type = "directory"
			dirs[n.path] = entry
		}
		parent.Children = append(parent.Children, entry)
		return true
	})
	if err != nil {
		return nil, err
	}
	if root.Children == nil {
		return []*TreeEntry{}, nil
	}
	return root.Children, nil
}

// MoveFile renames source to destination. It never overwrites: an existing destination fails with
// KindAlreadyExists and leaves both paths untouched.
func (w *Workspace) MoveFile(source, destination string) error {
	src, err := w.roots.Validate(source)
	if err != nil {
		return err
	}
	if !src.Exists {
		return newError(KindNotFound, source, "no such file or directory")
	}
	dst, err := w.roots.Validate(destination)
	if err != nil {
		return err
	}
	if dst.Exists {
		return newError(KindAlreadyExists, destination, "destination already exists")
	}
	if _, err := os.Lstat(dst.Path); err == nil {
		return newError(KindAlreadyExists, destination, "destination already exists")
	}

	if err := os.Rename(src.Path, dst.Path); err != nil {
		return wrapFSError("move", source, err)
	}
	return nil
}

// GetFileInfo returns the metadata of the file or directory at path.
func (w *Workspace) GetFileInfo(path string) (FileInfo, error) {
	vp, err := w.roots.Validate(path)
	if err != nil {
		return FileInfo{}, err
	}
	if !vp.Exists {
		return FileInfo{}, newError(KindNotFound, path, "no such file or directory")
	}
	info, err := os.Stat(vp.Path)
	if err != nil {
		return FileInfo{}, wrapFSError("stat", path, err)
	}

	created, accessed := fileTimes(info)
	return FileInfo{
		Path:        vp.Path,
		Name:        info.Name(),
		Type:        entryType(info),
		Size:        info.Size(),
		Created:     formatTimestamp(created),
		Modified:    formatTimestamp(info.ModTime()),
		Accessed:    formatTimestamp(accessed),
		IsDirectory: info.IsDir(),
		IsFile:      info.Mode().IsRegular(),
		Permissions: formatPermissions(info.Mode()),
	}, nil
}

// GetFilesInfo fetches the metadata of every path. A failing path becomes an error record and
// never stops the batch; includeErrors only controls whether those records are returned.
func (w *Workspace) GetFilesInfo(paths []string, includeErrors bool) BulkInfo {
	out := BulkInfo{
		Summary: InfoSummary{TotalRequested: len(paths)},
		Results: make([]InfoRecord, 0, len(paths)),
	}
	for _, p := range paths {
		info, err := w.GetFileInfo(p)
		if err != nil {
			out.Summary.Errors++
			w.logger.Debug("failed to get file info", zap.String("path", p), zap.Error(err))
			if includeErrors {
				out.Results = append(out.Results, InfoRecord{
					Path:  p,
					Error: &InfoError{Type: KindOf(err).String(), Message: err.Error()},
				})
			}
			continue
		}
		out.Summary.Successful++
		out.Results = append(out.Results, InfoRecord{Path: p, Success: true, Info: &info})
	}
	return out
}

func (w *Workspace) walker() treeWalker {
	return treeWalker{roots: w.roots, logger: w.logger, readDir: w.readDir}
}

// directory validates path and requires it to be an existing directory.
func (w *Workspace) directory(path string) (string, error) {
	vp, err := w.roots.Validate(path)
	if err != nil {
		return "", err
	}
	if !vp.Exists {
		return "", newError(KindNotFound, path, "no such directory")
	}
	info, err := os.Stat(vp.Path)
	if err != nil {
		return "", wrapFSError("stat", path, err)
	}
	if !info.IsDir() {
		return "", newError(KindNotADirectory, path, "not a directory")
	}
	return vp.Path, nil
}

// file validates path and requires it to be an existing non-directory.
func (w *Workspace) file(path string) (string, error) {
	vp, err := w.roots.Validate(path)
	if err != nil {
		return "", err
	}
	if !vp.Exists {
		return "", newError(KindNotFound, path, "no such file")
	}
	info, err := os.Stat(vp.Path)
	if err != nil {
		return "", wrapFSError("stat", path, err)
	}
	if info.IsDir() {
		return "", newError(KindNotAFile, path, "is a directory")
	}
	return vp.Path, nil
}

// entryInfo stats a directory entry, following symlinks only when they stay inside the roots.
func (w *Workspace) entryInfo(full string, e fs.DirEntry) (fs.FileInfo, error) {
	if e.Type()&fs.ModeSymlink != 0 {
		vp, err := w.roots.Validate(full)
		if err != nil {
			return nil, err
		}
		if !vp.Exists {
			return nil, newError(KindNotFound, full, "dangling symlink")
		}
		return os.Stat(vp.Path)
	}
	return e.Info()
}

// applyEdits replaces the first occurrence of each OldText in order and reports the edits it
// had to skip. Matching ignores line endings; lines outside a replacement keep their terminators
// and replacement text takes the file's dominant one.
func applyEdits(content string, edits []EditOperation) (string, []string) {
	eol := dominantLineEnding(content)
	var warnings []string
	for i, edit := range edits {
		oldText := normalizeLineEndings(edit.OldText)
		if oldText == "" {
			warnings = append(warnings, fmt.Sprintf("edit %d skipped: oldText is empty", i+1))
			continue
		}
		normalized := normalizeLineEndings(content)
		idx := strings.Index(normalized, oldText)
		if idx < 0 {
			warning := fmt.Sprintf("edit %d skipped: oldText not found: %q", i+1, edit.OldText)
			if line, text := closestLine(normalized, oldText); line > 0 {
				warning += fmt.Sprintf("; closest match on line %d: %q", line, text)
			}
			warnings = append(warnings, warning)
			continue
		}
		start, end := rawOffset(content, idx), rawOffset(content, idx+len(oldText))
		newText := strings.ReplaceAll(normalizeLineEndings(edit.NewText), "\n", eol)
		content = content[:start] + newText + content[end:]
	}
	return content, warnings
}

// writeFileAtomic writes data to a uniquely named temporary file in the target's directory and
// renames it over path.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) (err error) {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Chmod(perm); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
