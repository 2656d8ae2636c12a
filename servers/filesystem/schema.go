package filesystem

// ReadFileArgs is an argument struct for the read_file tool. Head and Tail are mutually exclusive.
type ReadFileArgs struct {
	Path string `json:"path"`
	Head *int   `json:"head,omitempty"`
	Tail *int   `json:"tail,omitempty"`
}

// ReadMultipleFilesArgs is an argument struct for the read_multiple_files tool.
type ReadMultipleFilesArgs struct {
	Paths []string `json:"paths"`
}

// WriteFileArgs is an argument struct for the write_file tool.
type WriteFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// EditFileArgs is an argument struct for the edit_file tool.
type EditFileArgs struct {
	Path   string          `json:"path"`
	Edits  []EditOperation `json:"edits"`
	DryRun bool            `json:"dryRun"`
}

// CreateDirectoryArgs is an argument struct for the create_directory tool.
type CreateDirectoryArgs struct {
	Path string `json:"path"`
}

// ListDirectoryArgs is an argument struct for the list_directory tool.
type ListDirectoryArgs struct {
	Path            string `json:"path"`
	IncludeMetadata bool   `json:"includeMetadata"`
}

// DirectoryTreeArgs is an argument struct for the directory_tree tool.
type DirectoryTreeArgs struct {
	Path            string   `json:"path"`
	ExcludePatterns []string `json:"excludePatterns"`
}

// MoveFileArgs is an argument struct for the move_file tool.
type MoveFileArgs struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// SearchFilesArgs is an argument struct for the search_files tool.
type SearchFilesArgs struct {
	Path            string   `json:"path"`
	Pattern         string   `json:"pattern"`
	ExcludePatterns []string `json:"excludePatterns"`
}

// FindFilesArgs is an argument struct for the find_files tool.
type FindFilesArgs struct {
	Path               string   `json:"path"`
	FileTypes          []string `json:"file_types"`
	ModifiedAfter      string   `json:"modified_after"`
	ModifiedBefore     string   `json:"modified_before"`
	MinSize            *int64   `json:"min_size"`
	MaxSize            *int64   `json:"max_size"`
	IncludeDirectories *bool    `json:"include_directories"`
	SortBy             string   `json:"sort_by"`
	Order              string   `json:"order"`
	Limit              int      `json:"limit"`
}

// GetFileInfoArgs is an argument struct for the get_file_info tool.
type GetFileInfoArgs struct {
	Path string `json:"path"`
}

// GetMultipleFileInfoArgs is an argument struct for the get_multiple_file_info tool.
// IncludeErrors defaults to true.
type GetMultipleFileInfoArgs struct {
	Paths         []string `json:"paths"`
	IncludeErrors *bool    `json:"include_errors"`
}

var readFileSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "path": {
        "type": "string"
      },
      "head": {
        "type": "integer",
        "minimum": 1,
        "description": "Return only the first N lines"
      },
      "tail": {
        "type": "integer",
        "minimum": 1,
        "description": "Return only the last N lines"
      }
    },
    "required": ["path"]
  }
`)

var readMultipleFilesSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "paths": {
        "type": "array",
        "items": {
          "type": "string"
        }
      }
    },
    "required": ["paths"]
  }
`)

var writeFileSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "path": {
        "type": "string"
      },
      "content": {
        "type": "string"
      }
    },
    "required": ["path", "content"]
  }
`)

var editFileSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "path": {
        "type": "string"
      },
      "edits": {
        "type": "array",
        "items": {
          "type": "object",
          "properties": {
            "oldText": {
              "type": "string",
              "description": "Text to search for, must match exactly"
            },
            "newText": {
              "type": "string",
              "description": "Text to replace it with"
            }
          },
          "required": ["oldText", "newText"]
        }
      },
      "dryRun": {
        "type": "boolean",
        "default": false,
        "description": "Preview the changes as a diff without writing them"
      }
    },
    "required": ["path", "edits"]
  }
`)

var createDirectorySchema = []byte(`
  {
    "type": "object",
    "properties": {
      "path": {
        "type": "string"
      }
    },
    "required": ["path"]
  }
`)

var listDirectorySchema = []byte(`
  {
    "type": "object",
    "properties": {
      "path": {
        "type": "string"
      },
      "includeMetadata": {
        "type": "boolean",
        "default": false
      }
    },
    "required": ["path"]
  }
`)

var directoryTreeSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "path": {
        "type": "string"
      },
      "excludePatterns": {
        "type": "array",
        "items": {
          "type": "string"
        }
      }
    },
    "required": ["path"]
  }
`)

var moveFileSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "source": {
        "type": "string"
      },
      "destination": {
        "type": "string"
      }
    },
    "required": ["source", "destination"]
  }
`)

var searchFilesSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "path": {
        "type": "string"
      },
      "pattern": {
        "type": "string"
      },
      "excludePatterns": {
        "type": "array",
        "items": {
          "type": "string"
        }
      }
    },
    "required": ["path", "pattern"]
  }
`)

var findFilesSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "path": {
        "type": "string"
      },
      "file_types": {
        "type": "array",
        "items": {
          "type": "string"
        },
        "description": "Extensions to keep, without the leading dot"
      },
      "modified_after": {
        "type": "string",
        "description": "ISO-8601 date, inclusive"
      },
      "modified_before": {
        "type": "string",
        "description": "ISO-8601 date, inclusive"
      },
      "min_size": {
        "type": "integer",
        "minimum": 0
      },
      "max_size": {
        "type": "integer",
        "minimum": 0
      },
      "include_directories": {
        "type": "boolean",
        "default": true
      },
      "sort_by": {
        "type": "string",
        "enum": ["name", "modified", "created", "size"],
        "default": "name"
      },
      "order": {
        "type": "string",
        "enum": ["asc", "desc"],
        "default": "asc"
      },
      "limit": {
        "type": "integer",
        "minimum": 1
      }
    },
    "required": ["path"]
  }
`)

var getFileInfoSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "path": {
        "type": "string"
      }
    },
    "required": ["path"]
  }
`)

var getMultipleFileInfoSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "paths": {
        "type": "array",
        "items": {
          "type": "string"
        }
      },
      "include_errors": {
        "type": "boolean",
        "default": true
      }
    },
    "required": ["paths"]
  }
`)

var listAllowedDirectoriesSchema = []byte(`
  {
    "type": "object",
    "properties": {}
  }
`)
