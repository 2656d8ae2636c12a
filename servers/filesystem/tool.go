package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type toolDefinition struct {
	name        string
	description string
	schema      []byte
}

// mutatingTools are the tools gated by WithAuthorizer.
var mutatingTools = map[string]bool{
	"write_file":       true,
	"edit_file":        true,
	"create_directory": true,
	"move_file":        true,
}

var toolDefinitions = []toolDefinition{
	{
		name: "read_file",
		description: `Read the complete contents of a file from the file system.
Use 'head' or 'tail' to read only the first or last N lines of a large file.
Only works within allowed directories.`,
		schema: readFileSchema,
	},
	{
		name: "read_multiple_files",
		description: `Read the contents of multiple files simultaneously. This is more
efficient than reading files one by one when you need to analyze
or compare multiple files. Each file's content is returned with its
path as a reference. Failed reads for individual files won't stop
the entire operation. Only works within allowed directories.`,
		schema: readMultipleFilesSchema,
	},
	{
		name: "write_file",
		description: `Create a new file or completely overwrite an existing file with new content.
Use with caution as it will overwrite existing files without warning.
Only works within allowed directories.`,
		schema: writeFileSchema,
	},
	{
		name: "edit_file",
		description: `Make text replacements in a file. Each edit replaces the first exact
occurrence of oldText with newText, in order; edits whose oldText is not
found are skipped with a warning. Returns a git-style diff of the changes.
Set dryRun to preview the diff without writing. Only works within allowed directories.`,
		schema: editFileSchema,
	},
	{
		name: "create_directory",
		description: `Create a new directory or ensure a directory exists. Can create multiple
nested directories in one operation. If the directory already exists,
this operation will succeed silently. Only works within allowed directories.`,
		schema: createDirectorySchema,
	},
	{
		name: "list_directory",
		description: `Get a detailed listing of all files and directories in a specified path.
Results clearly distinguish between files and directories with [FILE] and [DIR]
prefixes. Set includeMetadata to add size, modification time and permissions.
Only works within allowed directories.`,
		schema: listDirectorySchema,
	},
	{
		name: "directory_tree",
		description: `Get a recursive tree view of files and directories as a JSON structure.
Each entry includes 'name', 'type' (file/directory) and, for non-empty
directories, 'children'. Entries matching excludePatterns are left out.
Only works within allowed directories.`,
		schema: directoryTreeSchema,
	},
	{
		name: "move_file",
		description: `Move or rename files and directories. Can move files between directories
and rename them in a single operation. If the destination exists, the
operation will fail. Both source and destination must be within allowed directories.`,
		schema: moveFileSchema,
	},
	{
		name: "search_files",
		description: `Recursively search for files and directories whose name matches a glob
pattern such as '*.go'. The match is case-insensitive. Entries matching
excludePatterns are skipped, '**' spanning directories. Returns full paths
to all matching items. Only searches within allowed directories.`,
		schema: searchFilesSchema,
	},
	{
		name: "find_files",
		description: `Find files and directories below a path filtered by extension,
modification date and size, sorted by name, modified, created or size.
Returns a JSON object with the number of results and their metadata.
Only searches within allowed directories.`,
		schema: findFilesSchema,
	},
	{
		name: "get_file_info",
		description: `Retrieve detailed metadata about a file or directory: size, creation time,
last modified time, last access time, permissions and type.
Only works within allowed directories.`,
		schema: getFileInfoSchema,
	},
	{
		name: "get_multiple_file_info",
		description: `Retrieve metadata for several files or directories at once. Failures are
reported per path and counted in the summary. Set include_errors to false
to leave failed paths out of the results. Only works within allowed directories.`,
		schema: getMultipleFileInfoSchema,
	},
	{
		name:        "list_allowed_directories",
		description: `Returns the list of directories that this server is allowed to access.`,
		schema:      listAllowedDirectoriesSchema,
	},
}

func (s Server) readFile(args json.RawMessage) (string, error) {
	var rfArgs ReadFileArgs
	if err := decodeArgs(args, &rfArgs); err != nil {
		return "", err
	}

	switch {
	case rfArgs.Head != nil && rfArgs.Tail != nil:
		return "", newError(KindInvalidParameter, rfArgs.Path, "head and tail cannot be used together")
	case rfArgs.Head != nil:
		return s.ws.ReadFileHead(rfArgs.Path, *rfArgs.Head)
	case rfArgs.Tail != nil:
		return s.ws.ReadFileTail(rfArgs.Path, *rfArgs.Tail)
	default:
		return s.ws.ReadFile(rfArgs.Path)
	}
}

func (s Server) readMultipleFiles(args json.RawMessage) (string, error) {
	var rmfArgs ReadMultipleFilesArgs
	if err := decodeArgs(args, &rmfArgs); err != nil {
		return "", err
	}
	if len(rmfArgs.Paths) == 0 {
		return "", newError(KindInvalidParameter, "", "paths must not be empty")
	}

	blocks := make([]string, 0, len(rmfArgs.Paths))
	for _, fc := range s.ws.ReadMultipleFiles(rmfArgs.Paths) {
		if fc.Err != nil {
			blocks = append(blocks, fmt.Sprintf("%s: Error - %v", fc.Path, fc.Err))
			continue
		}
		blocks = append(blocks, fmt.Sprintf("%s:\n%s", fc.Path, fc.Content))
	}
	return strings.Join(blocks, "\n---\n"), nil
}

func (s Server) writeFile(args json.RawMessage) (string, error) {
	var wfArgs WriteFileArgs
	if err := decodeArgs(args, &wfArgs); err != nil {
		return "", err
	}
	if err := s.ws.WriteFile(wfArgs.Path, wfArgs.Content); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully wrote to %s", wfArgs.Path), nil
}

func (s Server) editFile(args json.RawMessage) (string, error) {
	var efArgs EditFileArgs
	if err := decodeArgs(args, &efArgs); err != nil {
		return "", err
	}
	if len(efArgs.Edits) == 0 {
		return "", newError(KindInvalidParameter, efArgs.Path, "edits must not be empty")
	}
	return s.ws.EditFile(efArgs.Path, efArgs.Edits, efArgs.DryRun)
}

func (s Server) createDirectory(args json.RawMessage) (string, error) {
	var cdArgs CreateDirectoryArgs
	if err := decodeArgs(args, &cdArgs); err != nil {
		return "", err
	}
	if _, err := s.ws.CreateDirectory(cdArgs.Path); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully created directory %s", cdArgs.Path), nil
}

func (s Server) listDirectory(args json.RawMessage) (string, error) {
	var ldArgs ListDirectoryArgs
	if err := decodeArgs(args, &ldArgs); err != nil {
		return "", err
	}
	entries, err := s.ws.ListDirectory(ldArgs.Path, ldArgs.IncludeMetadata)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "Directory is empty", nil
	}

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch e.Type {
		case "directory":
			fmt.Fprintf(&b, "[DIR] %s", e.Name)
		case "error":
			fmt.Fprintf(&b, "[ERROR] %s: %s", e.Name, e.Error)
			continue
		default:
			fmt.Fprintf(&b, "[FILE] %s", e.Name)
		}
		if ldArgs.IncludeMetadata {
			fmt.Fprintf(&b, " (size: %d, modified: %s, permissions: %s)", e.Size, e.Modified, e.Permissions)
		}
	}
	return b.String(), nil
}

func (s Server) directoryTree(ctx context.Context, args json.RawMessage) (string, error) {
	var dtArgs DirectoryTreeArgs
	if err := decodeArgs(args, &dtArgs); err != nil {
		return "", err
	}
	tree, err := s.ws.DirectoryTree(ctx, dtArgs.Path, dtArgs.ExcludePatterns)
	if err != nil {
		return "", err
	}
	return marshalIndent(tree)
}

func (s Server) moveFile(args json.RawMessage) (string, error) {
	var mfArgs MoveFileArgs
	if err := decodeArgs(args, &mfArgs); err != nil {
		return "", err
	}
	if err := s.ws.MoveFile(mfArgs.Source, mfArgs.Destination); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully moved %s to %s", mfArgs.Source, mfArgs.Destination), nil
}

func (s Server) searchFiles(ctx context.Context, args json.RawMessage) (string, error) {
	var sfArgs SearchFilesArgs
	if err := decodeArgs(args, &sfArgs); err != nil {
		return "", err
	}
	results, err := s.ws.Search(ctx, sfArgs.Path, sfArgs.Pattern, sfArgs.ExcludePatterns)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No matches found", nil
	}
	return strings.Join(results, "\n"), nil
}

func (s Server) findFiles(ctx context.Context, args json.RawMessage) (string, error) {
	var ffArgs FindFilesArgs
	if err := decodeArgs(args, &ffArgs); err != nil {
		return "", err
	}

	after, err := ParseTimestamp("modified_after", ffArgs.ModifiedAfter)
	if err != nil {
		return "", err
	}
	before, err := ParseTimestamp("modified_before", ffArgs.ModifiedBefore)
	if err != nil {
		return "", err
	}

	results, err := s.ws.Find(ctx, ffArgs.Path, FindOptions{
		FileTypes:          ffArgs.FileTypes,
		ModifiedAfter:      after,
		ModifiedBefore:     before,
		MinSize:            ffArgs.MinSize,
		MaxSize:            ffArgs.MaxSize,
		ExcludeDirectories: ffArgs.IncludeDirectories != nil && !*ffArgs.IncludeDirectories,
		SortBy:             ffArgs.SortBy,
		Order:              ffArgs.Order,
		Limit:              ffArgs.Limit,
	})
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No files found", nil
	}

	return marshalIndent(struct {
		Count   int          `json:"count"`
		Results []FindResult `json:"results"`
	}{Count: len(results), Results: results})
}

func (s Server) getFileInfo(args json.RawMessage) (string, error) {
	var gfiArgs GetFileInfoArgs
	if err := decodeArgs(args, &gfiArgs); err != nil {
		return "", err
	}
	info, err := s.ws.GetFileInfo(gfiArgs.Path)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`path: %s
type: %s
size: %d
created: %s
modified: %s
accessed: %s
isDirectory: %t
isFile: %t
permissions: %s`,
		info.Path, info.Type, info.Size, info.Created, info.Modified, info.Accessed,
		info.IsDirectory, info.IsFile, info.Permissions), nil
}

func (s Server) getMultipleFileInfo(args json.RawMessage) (string, error) {
	var gmfiArgs GetMultipleFileInfoArgs
	if err := decodeArgs(args, &gmfiArgs); err != nil {
		return "", err
	}
	if len(gmfiArgs.Paths) == 0 {
		return "", newError(KindInvalidParameter, "", "paths must not be empty")
	}
	includeErrors := gmfiArgs.IncludeErrors == nil || *gmfiArgs.IncludeErrors
	return marshalIndent(s.ws.GetFilesInfo(gmfiArgs.Paths, includeErrors))
}

func (s Server) listAllowedDirectories() (string, error) {
	return "Allowed directories:\n" + strings.Join(s.ws.Roots().Dirs(), "\n"), nil
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &Error{Kind: KindInvalidParameter, Msg: fmt.Sprintf("invalid arguments: %v", err), Err: err}
	}
	return nil
}

func marshalIndent(v any) (string, error) {
	bs, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", &Error{Kind: KindUnexpected, Msg: "failed to encode result", Err: err}
	}
	return string(bs), nil
}
