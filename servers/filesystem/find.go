package filesystem

import (
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"go.uber.org/zap"
)

// Sort keys and orders accepted by Find.
const (
	SortByName     = "name"
	SortByModified = "modified"
	SortByCreated  = "created"
	SortBySize     = "size"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// timestampLayout is ISO-8601 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// FindOptions filters, sorts and limits the entries returned by Find. The zero value keeps
// every entry, directories included, sorted by name ascending.
type FindOptions struct {
	// FileTypes is an extension allow-list without the leading dot, compared case-insensitively.
	// It never applies to directories.
	FileTypes []string
	// ModifiedAfter and ModifiedBefore bound the modification time, both ends inclusive. Zero
	// values leave the bound open. They apply to directories too.
	ModifiedAfter  time.Time
	ModifiedBefore time.Time
	// MinSize and MaxSize bound the size in bytes of non-directory entries.
	MinSize *int64
	MaxSize *int64
	// ExcludeDirectories drops directories from the results; they are still traversed.
	ExcludeDirectories bool

	SortBy string
	Order  string
	// Limit truncates the sorted results when positive.
	Limit int
}

// FindResult describes one entry matched by Find.
type FindResult struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	Modified    string `json:"modified"`
	Created     string `json:"created"`
	Permissions string `json:"permissions"`

	modTime     time.Time
	createdTime time.Time
}

// Find walks every descendant of root, keeps the entries that pass opts, sorts them and applies
// the limit. Entries that cannot be stat'ed are logged and skipped; a directory that cannot be
// stat'ed is not descended into.
func (w *Workspace) Find(ctx context.Context, root string, opts FindOptions) ([]FindResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	dir, err := w.directory(root)
	if err != nil {
		return nil, err
	}

	fileTypes := make(map[string]bool, len(opts.FileTypes))
	for _, t := range opts.FileTypes {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "."))
		if t != "" {
			fileTypes[t] = true
		}
	}

	var results []FindResult
	err = w.walker().walk(ctx, dir, func(n node) bool {
		info, err := n.entry.Info()
		if err != nil {
			w.logger.Warn("skipping entry", zap.String("path", n.path), zap.Error(err))
			return false
		}
		if info.IsDir() && opts.ExcludeDirectories {
			return true
		}
		if opts.keep(info, fileTypes) {
			results = append(results, newFindResult(n.path, info))
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	desc := opts.Order == OrderDesc
	slices.SortStableFunc(results, func(a, b FindResult) int {
		c := compareFindResults(a, b, opts.SortBy)
		if desc {
			return -c
		}
		return c
	})

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// ParseTimestamp parses a date filter value. An empty value yields the zero time; anything that
// is not a recognizable date fails with KindInvalidParameter.
func ParseTimestamp(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, &Error{
			Kind: KindInvalidParameter,
			Msg:  fmt.Sprintf("invalid %s %q: expected an ISO-8601 date", field, value),
			Err:  err,
		}
	}
	return t, nil
}

func (o FindOptions) validate() error {
	switch o.SortBy {
	case "", SortByName, SortByModified, SortByCreated, SortBySize:
	default:
		return newError(KindInvalidParameter, "", "invalid sort_by %q: must be one of name, modified, created, size", o.SortBy)
	}
	switch o.Order {
	case "", OrderAsc, OrderDesc:
	default:
		return newError(KindInvalidParameter, "", "invalid order %q: must be asc or desc", o.Order)
	}
	if o.Limit < 0 {
		return newError(KindInvalidParameter, "", "invalid limit %d: must not be negative", o.Limit)
	}
	if o.MinSize != nil && *o.MinSize < 0 {
		return newError(KindInvalidParameter, "", "invalid min_size %d", *o.MinSize)
	}
	if o.MaxSize != nil && *o.MaxSize < 0 {
		return newError(KindInvalidParameter, "", "invalid max_size %d", *o.MaxSize)
	}
	return nil
}

func (o FindOptions) keep(info fs.FileInfo, fileTypes map[string]bool) bool {
	mod := info.ModTime()
	if !o.ModifiedAfter.IsZero() && mod.Before(o.ModifiedAfter) {
		return false
	}
	if !o.ModifiedBefore.IsZero() && mod.After(o.ModifiedBefore) {
		return false
	}
	if info.IsDir() {
		return true
	}
	if len(fileTypes) > 0 {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(info.Name()), "."))
		if !fileTypes[ext] {
			return false
		}
	}
	if o.MinSize != nil && info.Size() < *o.MinSize {
		return false
	}
	if o.MaxSize != nil && info.Size() > *o.MaxSize {
		return false
	}
	return true
}

func newFindResult(path string, info fs.FileInfo) FindResult {
	created, _ := fileTimes(info)
	return FindResult{
		Path:        path,
		Name:        info.Name(),
		Type:        entryType(info),
		Size:        info.Size(),
		Modified:    formatTimestamp(info.ModTime()),
		Created:     formatTimestamp(created),
		Permissions: formatPermissions(info.Mode()),
		modTime:     info.ModTime(),
		createdTime: created,
	}
}

func compareFindResults(a, b FindResult, sortBy string) int {
	switch sortBy {
	case SortByModified:
		return a.modTime.Compare(b.modTime)
	case SortByCreated:
		return a.createdTime.Compare(b.createdTime)
	case SortBySize:
		return cmp.Compare(a.Size, b.Size)
	default:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	}
}

func entryType(info fs.FileInfo) string {
	if info.IsDir() {
		return "directory"
	}
	return "file"
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatPermissions(mode fs.FileMode) string {
	return fmt.Sprintf("%03o", mode.Perm())
}
