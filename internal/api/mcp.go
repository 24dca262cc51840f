package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mgoubin/companion/internal/profile"
)

// NewMCPServer creates an MCP server exposing Intra profile lookups as
// tools, so local agents can query the same derived view the CLI renders.
// Lookups go through a viewer, so the session keeps a current profile and
// an overlapping older lookup can never replace a newer one.
func NewMCPServer(loader Loader) *server.MCPServer {
	viewer := profile.NewViewer(loader)

	s := server.NewMCPServer(
		"companion",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("companion: 42 Intra profile lookup. Main-track level, finished projects, and skill ranking by login."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("intra_profile",
			mcp.WithDescription("Fetch a 42 Intra user profile and return the derived view: main cursus level, finished main-track projects, and ranked skills."),
			mcp.WithString("login", mcp.Description("Intra login to look up"), mcp.Required()),
		),
		mcpProfile(viewer),
	)

	s.AddTool(
		mcp.NewTool("intra_projects",
			mcp.WithDescription("List a 42 Intra user's finished main-track projects, most recently updated first."),
			mcp.WithString("login", mcp.Description("Intra login to look up"), mcp.Required()),
		),
		mcpProjects(loader),
	)

	s.AddTool(
		mcp.NewTool("intra_current",
			mcp.WithDescription("Return the most recently viewed profile without refetching."),
		),
		mcpCurrent(viewer),
	)

	return s
}

func mcpProfile(viewer *profile.Viewer) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		login, err := req.RequireString("login")
		if err != nil {
			return mcpError("login is required"), nil
		}

		d, err := viewer.Show(ctx, login)
		if errors.Is(err, profile.ErrSuperseded) {
			return mcpError("lookup superseded by a newer one"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("profile lookup failed: %v", err)), nil
		}

		data, err := json.MarshalIndent(toResponse(d), "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("encoding profile: %v", err)), nil
		}
		return mcpText(string(data)), nil
	}
}

func mcpCurrent(viewer *profile.Viewer) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d, ok := viewer.Current()
		if !ok {
			return mcpError("no profile viewed yet"), nil
		}

		data, err := json.MarshalIndent(toResponse(d), "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("encoding profile: %v", err)), nil
		}
		return mcpText(string(data)), nil
	}
}

func mcpProjects(loader Loader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		login, err := req.RequireString("login")
		if err != nil {
			return mcpError("login is required"), nil
		}

		d, err := loader.Load(ctx, login)
		if err != nil {
			return mcpError(fmt.Sprintf("profile lookup failed: %v", err)), nil
		}

		type projectEntry struct {
			Name      string `json:"name"`
			FinalMark *int   `json:"final_mark"`
			Validated string `json:"validated"`
			UpdatedAt string `json:"updated_at,omitempty"`
		}
		entries := make([]projectEntry, 0, len(d.FinishedProjects))
		for _, p := range d.FinishedProjects {
			entries = append(entries, projectEntry{
				Name:      p.Project.Name,
				FinalMark: p.FinalMark,
				Validated: p.Validated.String(),
				UpdatedAt: p.UpdatedAt,
			})
		}

		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("encoding projects: %v", err)), nil
		}
		return mcpText(string(data)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
