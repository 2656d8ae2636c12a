package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

var errClosed = errors.New("client closed")

type interactiveClient struct {
	cli    *client.Client
	ctx    context.Context
	cancel context.CancelFunc
	lines  chan string
}

func newClient(srv *server.MCPServer) (*interactiveClient, error) {
	cli, err := client.NewInProcessClient(srv)
	if err != nil {
		return nil, err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	if err := cli.Start(ctx); err != nil {
		cancel()
		return nil, err
	}

	var initReq mcp.InitializeRequest
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "filesystem-client", Version: "1.0"}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		cancel()
		_ = cli.Close()
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}

	c := &interactiveClient{cli: cli, ctx: ctx, cancel: cancel, lines: make(chan string)}
	go c.readLines()
	return c, nil
}

func (c *interactiveClient) run() {
	for {
		tools, err := c.cli.ListTools(c.ctx, mcp.ListToolsRequest{})
		if err != nil {
			fmt.Printf("failed to list tools: %v\n", err)
			return
		}

		fmt.Println()
		for i, tool := range tools.Tools {
			fmt.Printf("%d. %s\n", i+1, tool.Name)
		}
		fmt.Println()

		fmt.Println("Type one of the commands:")
		fmt.Println("- call <tool number>: Call the tool with the given number, eg. call 1")
		fmt.Println("- desc <tool number>: Show the description of the tool with the given number, eg. desc 1")
		fmt.Println("- exit: Exit the program")

		input, err := c.waitInput()
		if err != nil {
			return
		}

		fields := strings.Fields(input)
		if len(fields) == 1 && fields[0] == "exit" {
			return
		}
		if len(fields) != 2 {
			fmt.Printf("Invalid command: %s\n", input)
			continue
		}

		toolNumber, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Printf("Invalid command: %s\n", input)
			continue
		}
		if toolNumber < 1 || toolNumber > len(tools.Tools) {
			fmt.Printf("Tool with number %d not found\n", toolNumber)
			continue
		}
		tool := tools.Tools[toolNumber-1]

		switch fields[0] {
		case "call":
			if err := c.callTool(tool); err != nil {
				if errors.Is(err, errClosed) {
					return
				}
				fmt.Println(err)
			}
		case "desc":
			schema, _ := json.MarshalIndent(tool.InputSchema, "", "  ")
			fmt.Printf("Description for tool %s: %s\nArguments schema:\n%s\n", tool.Name, tool.Description, schema)
		default:
			fmt.Printf("Unknown command: %s\n", input)
			continue
		}

		fmt.Println("Press enter to continue...")
		if _, err := c.waitInput(); err != nil {
			return
		}
	}
}

func (c *interactiveClient) callTool(tool mcp.Tool) error {
	fmt.Printf("Enter arguments for %s as a JSON object (empty for none):\n", tool.Name)

	input, err := c.waitInput()
	if err != nil {
		return err
	}

	args := map[string]any{}
	if strings.TrimSpace(input) != "" {
		if err := json.Unmarshal([]byte(input), &args); err != nil {
			return fmt.Errorf("invalid arguments: %w", err)
		}
	}

	var req mcp.CallToolRequest
	req.Params.Name = tool.Name
	req.Params.Arguments = args
	result, err := c.cli.CallTool(c.ctx, req)
	if err != nil {
		return fmt.Errorf("failed to call tool: %w", err)
	}

	if result.IsError {
		fmt.Println("Tool returned an error:")
	}
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			fmt.Println(text.Text)
		}
	}
	return nil
}

func (c *interactiveClient) readLines() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		select {
		case c.lines <- scanner.Text():
		case <-c.ctx.Done():
			return
		}
	}
	c.cancel()
}

func (c *interactiveClient) waitInput() (string, error) {
	select {
	case <-c.ctx.Done():
		return "", errClosed
	case input := <-c.lines:
		return input, nil
	}
}

func (c *interactiveClient) stop() {
	c.cancel()
	_ = c.cli.Close()
}
