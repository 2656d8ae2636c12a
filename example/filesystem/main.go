// Command filesystem is an interactive client for the filesystem tools. It runs the server in
// process, so tool calls go through the same MCP dispatch as over stdio or HTTP.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/TangGee/mcp-filesystem/servers/filesystem"
)

func main() {
	path := flag.String("path", "", "Allowed directory (required)")
	flag.StringVar(path, "p", "", "Allowed directory (required) (shorthand)")
	verbose := flag.Bool("v", false, "Log tool calls to stderr")

	flag.Parse()

	if *path == "" {
		fmt.Println("Error: path is required")
		flag.Usage()
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}

	fsServer, err := filesystem.NewServer([]string{*path}, filesystem.WithLogger(logger))
	if err != nil {
		fmt.Println("Error: failed to create filesystem server:", err)
		os.Exit(1)
	}

	srv := server.NewMCPServer("filesystem", "1.0", server.WithToolCapabilities(true))
	fsServer.Register(srv)

	cli, err := newClient(srv)
	if err != nil {
		fmt.Println("Error: failed to start client:", err)
		os.Exit(1)
	}
	defer cli.stop()

	cli.run()
}
