package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/conorfennell/wristreminder/internal/domain"
	"github.com/conorfennell/wristreminder/internal/reconcile"
	"github.com/conorfennell/wristreminder/internal/reminders"
	"github.com/conorfennell/wristreminder/internal/stats"
)

const (
	serverName    = "wristreminder"
	serverVersion = "1.0.0"
)

// SyncRunner runs one calendar sync.
type SyncRunner interface {
	Run(ctx context.Context) (reconcile.Result, error)
}

// Server exposes the reminder service as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	reminders *reminders.Service
	stats     *stats.Service
	syncer    SyncRunner
}

// NewServer creates the MCP server. syncer may be nil when no calendar
// sources are configured.
func NewServer(svc *reminders.Service, st *stats.Service, syncer SyncRunner) *Server {
	s := &Server{
		reminders: svc,
		stats:     st,
		syncer:    syncer,
	}
	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves the tools over stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("add_reminder",
			mcp.WithDescription("Add a reminder due at a local date and time"),
			mcp.WithString("title", mcp.Required(), mcp.Description("Reminder title")),
			mcp.WithString("date", mcp.Required(), mcp.Description("Date as YYYY-MM-DD")),
			mcp.WithString("time", mcp.Required(), mcp.Description("Time as HH:MM, 24 hour clock")),
			mcp.WithNumber("priority", mcp.Description("0 low, 1 normal, 2 urgent (default 1)")),
			mcp.WithBoolean("sound", mcp.Description("Play a sound when due (default true)")),
		),
		s.handleAddReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List reminders, optionally filtered by status"),
			mcp.WithString("status", mcp.Description("pending, completed, or empty for all")),
		),
		s.handleListReminders,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("complete_reminder",
			mcp.WithDescription("Mark a reminder as completed and cancel its alarm"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleCompleteReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("delete_reminder",
			mcp.WithDescription("Delete a reminder permanently"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleDeleteReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("sync_calendar",
			mcp.WithDescription("Pull events from the configured calendars and merge them into the reminders"),
		),
		s.handleSyncCalendar,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_stats",
			mcp.WithDescription("Completion statistics for the last week and by priority"),
		),
		s.handleGetStats,
	)
}

func (s *Server) handleAddReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r := domain.Reminder{
		Title:    req.GetString("title", ""),
		Date:     req.GetString("date", ""),
		Time:     req.GetString("time", ""),
		Priority: int(req.GetFloat("priority", domain.PriorityNormal)),
		Sound:    req.GetBool("sound", true),
	}

	id, err := s.reminders.Create(ctx, r)
	if err != nil && id == 0 {
		return toolError("failed to add reminder", err), nil
	}
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Reminder %d saved, but its alarm could not be set: %v", id, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %d added for %s at %s (%s).", id, r.Date, r.Time, domain.DescribePriority(r.Priority))), nil
}

func (s *Server) handleListReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := req.GetString("status", "")
	if status != "" && status != "pending" && status != "completed" {
		return mcp.NewToolResultError("status must be pending, completed, or empty"), nil
	}

	all, err := s.reminders.List(ctx)
	if err != nil {
		return toolError("failed to list reminders", err), nil
	}
	var out []domain.Reminder
	for _, r := range all {
		if (status == "pending" && r.Completed) || (status == "completed" && !r.Completed) {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return mcp.NewToolResultText("No reminders found."), nil
	}

	output, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(output)), nil
}

func (s *Server) handleCompleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := requireID(req)
	if res != nil {
		return res, nil
	}
	if err := s.reminders.SetCompleted(ctx, id, true); err != nil {
		return toolError("failed to complete reminder", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %d marked as completed.", id)), nil
}

func (s *Server) handleDeleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := requireID(req)
	if res != nil {
		return res, nil
	}
	if err := s.reminders.Delete(ctx, id); err != nil {
		return toolError("failed to delete reminder", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %d deleted.", id)), nil
}

func (s *Server) handleSyncCalendar(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.syncer == nil {
		return mcp.NewToolResultError("no calendar sources are configured"), nil
	}
	res, err := s.syncer.Run(ctx)
	if err != nil {
		return toolError("calendar sync failed", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Sync %s: %d imported, %d updated, %d kept, %d skipped, %d malformed.",
		res.RunID, res.Imported, res.Updated, res.Kept, res.Skipped, res.Malformed,
	)), nil
}

func (s *Server) handleGetStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := s.stats.Summary(ctx)
	if err != nil {
		return toolError("failed to compute statistics", err), nil
	}
	output, _ := json.MarshalIndent(map[string]any{
		"summary":         sum,
		"completion_rate": stats.FormatRate(sum.CompletionRate),
		"today_rate":      stats.FormatRate(sum.TodayRate),
	}, "", "  ")
	return mcp.NewToolResultText(string(output)), nil
}

func requireID(req mcp.CallToolRequest) (int64, *mcp.CallToolResult) {
	idFloat := req.GetFloat("id", -1)
	if idFloat <= 0 {
		return 0, mcp.NewToolResultError("id is required and must be a positive number")
	}
	return int64(idFloat), nil
}

// toolError renders err for the caller. Authorization failures include the
// URL the user should visit.
func toolError(prefix string, err error) *mcp.CallToolResult {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) && authErr.RecoveryURL != "" {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v (re-authorize at %s)", prefix, err, authErr.RecoveryURL))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
}
