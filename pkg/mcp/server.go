// Package mcp adapts the quotabar daemon to the Model Context Protocol
// so agents can read usage state and trigger refreshes over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nyxkrage/quotabar/pkg/client"
)

// Server adapts quotabar-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"quotabar",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// quotabar://usage
	s.mcpServer.AddResource(mcp.NewResource(
		"quotabar://usage",
		"Provider Usage Snapshots",
		mcp.WithResourceDescription("Current rate-limit windows per provider, with account identity and last poll errors"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadUsage)

	// quotabar://status
	s.mcpServer.AddResource(mcp.NewResource(
		"quotabar://status",
		"Provider Status Pages",
		mcp.WithResourceDescription("Incident indicator per provider from their public status pages"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadStatus)

	// quotabar://dashboard
	s.mcpServer.AddResource(mcp.NewResource(
		"quotabar://dashboard",
		"Primary Provider Dashboard",
		mcp.WithResourceDescription("Reconciled web-dashboard view for the primary provider account"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadDashboard)
}

// --- Tools ---

func (s *Server) registerTools() {
	// refresh_usage
	s.mcpServer.AddTool(mcp.NewTool(
		"refresh_usage",
		mcp.WithDescription("Trigger a poll cycle now instead of waiting for the next interval. Concurrent refreshes are deduplicated."),
	), s.handleRefresh)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"quotabar-aware",
		mcp.WithPromptDescription("Provides context about quotabar concepts (providers, windows, transitions)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadUsage(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	usage, err := s.apiClient.Usage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch usage: %w", err)
	}
	return jsonContents(request.Params.URI, usage)
}

func (s *Server) handleReadStatus(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	status, err := s.apiClient.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status: %w", err)
	}
	return jsonContents(request.Params.URI, status)
}

func (s *Server) handleReadDashboard(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	view, err := s.apiClient.Dashboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dashboard: %w", err)
	}
	return jsonContents(request.Params.URI, view)
}

func (s *Server) handleRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.apiClient.Refresh(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}
	return mcp.NewToolResultText("Refresh started."), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "quotabar-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with quotabar, a local daemon that polls AI coding providers for usage and quota state.

Concepts:
- Provider: one of the polled backends (codex, claude, gemini).
- Window: a rolling rate-limit bucket with used/remaining percentages and a reset time. Each provider has a primary (session) window and a secondary (weekly/daily) window.
- Transition: the session window crossing into depleted (no remaining quota) or back out (refilled).
- Dashboard: the primary provider's web dashboard, reconciled against the signed-in account.

Read 'quotabar://usage' before suggesting work that consumes provider quota. A depleted primary window means new requests to that provider will be rejected until the reset time. Use 'refresh_usage' if the data looks stale.
`

	return mcp.NewGetPromptResult(
		"quotabar-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
