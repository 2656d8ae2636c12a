package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// ErrAuthRequired is returned when a tool that modifies files is called by an unauthenticated
// caller while authentication is enforced.
var ErrAuthRequired = errors.New("authentication required")

// Server exposes filesystem operations as MCP tools. All operations are confined to the allowed
// root directories given to NewServer, including paths reached through symlinks.
//
// Server never fails a tool call at the protocol level: every error is rendered into the text
// of a result marked as an error.
type Server struct {
	ws        *Workspace
	logger    *zap.Logger
	authorize func(context.Context) bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ToolResult is the rendered outcome of a tool call.
type ToolResult struct {
	Text    string
	IsError bool
}

// WithLogger sets the logger for warnings about skipped entries and failed calls.
func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAuthorizer enforces authentication for the tools that modify files: they only run when
// authorize reports true for the call context. Without it every caller may use every tool.
func WithAuthorizer(authorize func(context.Context) bool) ServerOption {
	return func(s *Server) {
		s.authorize = authorize
	}
}

// NewServer creates a filesystem server confined to roots.
//
// It returns an error if any root does not exist, cannot be resolved or is not a directory.
func NewServer(roots []string, opts ...ServerOption) (Server, error) {
	s := Server{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}

	allowed, err := NewAllowedRoots(roots)
	if err != nil {
		return Server{}, err
	}
	if len(allowed.Dirs()) == 0 {
		return Server{}, fmt.Errorf("at least one allowed directory is required")
	}
	s.ws = NewWorkspace(allowed, s.logger)

	return s, nil
}

// Workspace returns the workspace backing the tools.
func (s Server) Workspace() *Workspace {
	return s.ws
}

// Tools returns the definitions of every tool the server provides.
func (s Server) Tools() []mcp.Tool {
	tools := make([]mcp.Tool, 0, len(toolDefinitions))
	for _, def := range toolDefinitions {
		tools = append(tools, mcp.NewToolWithRawSchema(def.name, def.description, json.RawMessage(def.schema)))
	}
	return tools
}

// CallTool executes the named tool with its JSON arguments.
func (s Server) CallTool(ctx context.Context, name string, args json.RawMessage) ToolResult {
	s.logger.Debug("tool call", zap.String("tool", name))

	text, err := s.call(ctx, name, args)
	if err != nil {
		s.logger.Warn("tool call failed", zap.String("tool", name), zap.Error(err))
		return ToolResult{Text: renderError(err), IsError: true}
	}
	return ToolResult{Text: text}
}

// Register adds every tool to srv. middleware wraps each handler, the first one outermost.
func (s Server) Register(srv *server.MCPServer, middleware ...func(server.ToolHandlerFunc) server.ToolHandlerFunc) {
	for _, tool := range s.Tools() {
		handler := s.handler(tool.Name)
		for i := len(middleware) - 1; i >= 0; i-- {
			handler = middleware[i](handler)
		}
		srv.AddTool(tool, handler)
	}
}

func (s Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid parameter: %v", err)), nil
		}
		res := s.CallTool(ctx, name, args)
		if res.IsError {
			return mcp.NewToolResultError(res.Text), nil
		}
		return mcp.NewToolResultText(res.Text), nil
	}
}

func (s Server) call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if mutatingTools[name] && s.authorize != nil && !s.authorize(ctx) {
		return "", fmt.Errorf("%s: %w", name, ErrAuthRequired)
	}

	switch name {
	case "read_file":
		return s.readFile(args)
	case "read_multiple_files":
		return s.readMultipleFiles(args)
	case "write_file":
		return s.writeFile(args)
	case "edit_file":
		return s.editFile(args)
	case "create_directory":
		return s.createDirectory(args)
	case "list_directory":
		return s.listDirectory(args)
	case "directory_tree":
		return s.directoryTree(ctx, args)
	case "move_file":
		return s.moveFile(args)
	case "search_files":
		return s.searchFiles(ctx, args)
	case "find_files":
		return s.findFiles(ctx, args)
	case "get_file_info":
		return s.getFileInfo(args)
	case "get_multiple_file_info":
		return s.getMultipleFileInfo(args)
	case "list_allowed_directories":
		return s.listAllowedDirectories()
	default:
		return "", newError(KindInvalidParameter, "", "tool not found: %s", name)
	}
}

// renderError turns err into the text of an error result.
func renderError(err error) string {
	if errors.Is(err, ErrAuthRequired) {
		return fmt.Sprintf("Authentication required: %v", err)
	}

	var prefix string
	switch KindOf(err) {
	case KindSecurity:
		prefix = "Access denied"
	case KindNotFound:
		prefix = "Not found"
	case KindPermissionDenied:
		prefix = "Permission denied"
	case KindNotADirectory:
		prefix = "Not a directory"
	case KindNotAFile:
		prefix = "Not a file"
	case KindAlreadyExists:
		prefix = "Already exists"
	case KindInvalidParameter:
		prefix = "Invalid parameter"
	default:
		prefix = "Unexpected error"
	}
	return fmt.Sprintf("%s: %v", prefix, err)
}
