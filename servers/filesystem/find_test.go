package filesystem

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFindPDFsBySize(t *testing.T) {
	tempDir := createTempDir(t)
	defer cleanup(t, tempDir)

	createSizedFile(t, filepath.Join(tempDir, "report.pdf"), 1200000)
	createSizedFile(t, filepath.Join(tempDir, "small.pdf"), 10)
	createSizedFile(t, filepath.Join(tempDir, "Big.PDF"), 1000000)
	createSizedFile(t, filepath.Join(tempDir, "notes.txt"), 2000000)
	ws := newTestWorkspace(t, tempDir)

	results, err := ws.Find(context.Background(), tempDir, FindOptions{
		FileTypes: []string{"pdf"},
		MinSize:   int64Ptr(1000000),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got, want := findNames(results), []string{"Big.PDF", "report.pdf"}; !slices.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestFindDirectories(t *testing.T) {
	tempDir := createTempDir(t)
	defer cleanup(t, tempDir)

	writeTestFile(t, filepath.Join(tempDir, "docs", "guide.md"), "guide")
	writeTestFile(t, filepath.Join(tempDir, "docs", "api", "ref.md"), "ref")
	writeTestFile(t, filepath.Join(tempDir, "main.go"), "package main")
	ws := newTestWorkspace(t, tempDir)

	results, err := ws.Find(context.Background(), tempDir, FindOptions{FileTypes: []string{".MD"}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got, want := findNames(results), []string{"api", "docs", "guide.md", "ref.md"}; !slices.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	results, err = ws.Find(context.Background(), tempDir, FindOptions{
		FileTypes:          []string{"md"},
		ExcludeDirectories: true,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got, want := findNames(results), []string{"guide.md", "ref.md"}; !slices.Equal(got, want) {
		t.Errorf("Expected excluded directories to still be traversed: want %v, got %v", want, got)
	}
	for _, r := range results {
		if r.Type != "file" {
			t.Errorf("Expected only files, got %+v", r)
		}
	}
}

func TestFindSortAndLimit(t *testing.T) {
	tempDir := createTempDir(t)
	defer cleanup(t, tempDir)

	createSizedFile(t, filepath.Join(tempDir, "b.bin"), 3)
	createSizedFile(t, filepath.Join(tempDir, "a.bin"), 1)
	createSizedFile(t, filepath.Join(tempDir, "c.bin"), 2)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	setModTime(t, filepath.Join(tempDir, "a.bin"), base.Add(2*time.Hour))
	setModTime(t, filepath.Join(tempDir, "b.bin"), base)
	setModTime(t, filepath.Join(tempDir, "c.bin"), base.Add(time.Hour))
	ws := newTestWorkspace(t, tempDir)

	tests := []struct {
		name string
		opts FindOptions
		want []string
	}{
		{name: "default name", opts: FindOptions{}, want: []string{"a.bin", "b.bin", "c.bin"}},
		{name: "name desc", opts: FindOptions{Order: OrderDesc}, want: []string{"c.bin", "b.bin", "a.bin"}},
		{name: "size", opts: FindOptions{SortBy: SortBySize}, want: []string{"a.bin", "c.bin", "b.bin"}},
		{name: "size desc limited", opts: FindOptions{SortBy: SortBySize, Order: OrderDesc, Limit: 2}, want: []string{"b.bin", "c.bin"}},
		{name: "modified", opts: FindOptions{SortBy: SortByModified}, want: []string{"b.bin", "c.bin", "a.bin"}},
		{name: "limit after sort", opts: FindOptions{SortBy: SortByModified, Order: OrderDesc, Limit: 1}, want: []string{"a.bin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := ws.Find(context.Background(), tempDir, tt.opts)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got := findNames(results); !slices.Equal(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFindModifiedBoundsInclusive(t *testing.T) {
	tempDir := createTempDir(t)
	defer cleanup(t, tempDir)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"old.log", "mid.log", "new.log"} {
		p := filepath.Join(tempDir, name)
		writeTestFile(t, p, name)
		setModTime(t, p, base.Add(time.Duration(i)*24*time.Hour))
	}
	ws := newTestWorkspace(t, tempDir)

	results, err := ws.Find(context.Background(), tempDir, FindOptions{
		ModifiedAfter:  base.Add(24 * time.Hour),
		ModifiedBefore: base.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got, want := findNames(results), []string{"mid.log", "new.log"}; !slices.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestFindResultFormat(t *testing.T) {
	tempDir := createTempDir(t)
	defer cleanup(t, tempDir)

	p := filepath.Join(tempDir, "file.txt")
	writeTestFile(t, p, "hello")
	if err := os.Chmod(p, 0644); err != nil {
		t.Fatalf("Failed to chmod: %v", err)
	}
	setModTime(t, p, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))
	ws := newTestWorkspace(t, tempDir)

	results, err := ws.Find(context.Background(), tempDir, FindOptions{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Path != p || r.Name != "file.txt" || r.Type != "file" || r.Size != 5 {
		t.Errorf("Unexpected result %+v", r)
	}
	if r.Modified != "2024-05-06T07:08:09.000Z" {
		t.Errorf("Unexpected modified timestamp %s", r.Modified)
	}
	if !regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`).MatchString(r.Created) {
		t.Errorf("Unexpected created timestamp %s", r.Created)
	}
	if r.Permissions != "644" {
		t.Errorf("Expected permissions 644, got %s", r.Permissions)
	}
}

func TestFindSkipsVanishedEntries(t *testing.T) {
	tempDir := createTempDir(t)
	defer cleanup(t, tempDir)

	for _, name := range []string{"a.txt", "gone.txt", "sub/inner.txt", "z.txt"} {
		writeTestFile(t, filepath.Join(tempDir, filepath.FromSlash(name)), name)
	}
	core, logs := observer.New(zapcore.WarnLevel)
	ws := NewWorkspace(mustRoots(t, tempDir), zap.New(core))
	// gone.txt and sub are listed but removed before they can be stat'ed.
	ws.readDir = func(dir string) ([]fs.DirEntry, error) {
		entries, err := os.ReadDir(dir)
		if dir == tempDir {
			for _, name := range []string{"gone.txt", "sub"} {
				if err := os.RemoveAll(filepath.Join(tempDir, name)); err != nil {
					t.Fatalf("Failed to remove %s: %v", name, err)
				}
			}
		}
		return entries, err
	}

	results, err := ws.Find(context.Background(), tempDir, FindOptions{FileTypes: []string{"txt"}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got, want := findNames(results), []string{"a.txt", "z.txt"}; !slices.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if n := logs.FilterMessage("skipping entry").Len(); n != 2 {
		t.Errorf("Expected two logged warnings, got %d", n)
	}
}

func TestFindSkipsUnreadableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced")
	}
	tempDir := createTempDir(t)
	defer cleanup(t, tempDir)

	writeTestFile(t, filepath.Join(tempDir, "locked", "secret.txt"), "x")
	writeTestFile(t, filepath.Join(tempDir, "open", "ok.txt"), "x")
	locked := filepath.Join(tempDir, "locked")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatalf("Failed to chmod: %v", err)
	}
	defer os.Chmod(locked, 0o700)
	ws := newTestWorkspace(t, tempDir)

	results, err := ws.Find(context.Background(), tempDir, FindOptions{ExcludeDirectories: true})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got, want := findNames(results), []string{"ok.txt"}; !slices.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestFindInvalidOptions(t *testing.T) {
	tempDir := createTempDir(t)
	defer cleanup(t, tempDir)

	ws := newTestWorkspace(t, tempDir)

	for _, opts := range []FindOptions{
		{SortBy: "color"},
		{Order: "sideways"},
		{Limit: -1},
		{MinSize: int64Ptr(-5)},
	} {
		if _, err := ws.Find(context.Background(), tempDir, opts); KindOf(err) != KindInvalidParameter {
			t.Errorf("Find(%+v): expected invalid parameter, got %v", opts, err)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		value   string
		want    time.Time
		wantErr bool
	}{
		{value: "", want: time.Time{}},
		{value: "2024-01-15T10:30:00Z", want: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{value: "2024-01-15", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{value: "not-a-date", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseTimestamp("modified_after", tt.value)
			if tt.wantErr {
				if KindOf(err) != KindInvalidParameter {
					t.Errorf("Expected invalid parameter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func createSizedFile(t *testing.T, path string, size int64) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		t.Fatalf("Failed to size file: %v", err)
	}
}

func setModTime(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Failed to set times: %v", err)
	}
}

func findNames(results []FindResult) []string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	return names
}

func int64Ptr(n int64) *int64 {
	return &n
}
