package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/tickzen/internal/common"
	"github.com/bobmcallan/tickzen/internal/models"
)

// registerTools registers all MCP tools on the App's MCPServer.
func (a *App) registerTools() {
	s := a.MCPServer
	s.AddTool(createGetVersionTool(), handleGetVersion())
	s.AddTool(createRunPublishingTool(), a.handleRunPublishing)
	s.AddTool(createStopPublishingTool(), a.handleStopPublishing)
	s.AddTool(createGetRunTool(), a.handleGetRun)
	s.AddTool(createGetPublishingStateTool(), a.handleGetPublishingState)
}

func createGetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the TickZen server version. Use this to verify connectivity."),
	)
}

func createRunPublishingTool() mcp.Tool {
	return mcp.NewTool("run_publishing",
		mcp.WithDescription("Start a publishing run for a user's WordPress profiles. Returns the run id; poll get_run for results."),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Configured user id"),
		),
		mcp.WithArray("profile_ids",
			mcp.WithStringItems(),
			mcp.Description("Profiles to publish (default: all of the user's profiles)"),
		),
		mcp.WithNumber("count",
			mcp.Description("Posts to attempt per profile, bounded by the daily cap (default: profile daily target)"),
		),
		mcp.WithArray("tickers",
			mcp.WithStringItems(),
			mcp.Description("Manual ticker list used instead of each profile's default source"),
		),
		mcp.WithBoolean("republish",
			mcp.Description("Allow tickers already published on a profile to be published again as a variation"),
		),
	)
}

func createStopPublishingTool() mcp.Tool {
	return mcp.NewTool("stop_publishing",
		mcp.WithDescription("Halt a profile's running publishing run at its next checkpoint."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Configured user id")),
		mcp.WithString("profile_id", mcp.Required(), mcp.Description("Profile to halt")),
	)
}

func createGetRunTool() mcp.Tool {
	return mcp.NewTool("get_run",
		mcp.WithDescription("Get the status and per-profile results of a publishing run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run id returned by run_publishing")),
	)
}

func createGetPublishingStateTool() mcp.Tool {
	return mcp.NewTool("get_publishing_state",
		mcp.WithDescription("Get a profile's persisted publishing state: posts today, queues, published log and last schedule time."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Configured user id")),
		mcp.WithString("profile_id", mcp.Required(), mcp.Description("Profile id")),
	)
}

func handleGetVersion() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		v := common.GetVersionInfo()
		return textResult(fmt.Sprintf("TickZen\nVersion: %s\nBuild: %s\nCommit: %s\nStatus: OK", v.Version, v.Build, v.Commit)), nil
	}
}

func (a *App) handleRunPublishing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil || userID == "" {
		return errorResult("Error: user_id parameter is required"), nil
	}

	opts := RunOptions{
		UserID:     userID,
		ProfileIDs: request.GetStringSlice("profile_ids", nil),
	}
	if len(opts.ProfileIDs) == 0 {
		if user, ok := a.Config.User(userID); ok {
			opts.ProfileIDs = profileIDs(user.Profiles)
		}
	}

	count := request.GetInt("count", 0)
	manual := request.GetStringSlice("tickers", nil)
	republish := request.GetBool("republish", false)
	for _, id := range opts.ProfileIDs {
		if count > 0 {
			if opts.RequestedCounts == nil {
				opts.RequestedCounts = make(map[string]int)
			}
			opts.RequestedCounts[id] = count
		}
		if len(manual) > 0 || republish {
			if opts.Overrides == nil {
				opts.Overrides = make(map[string]models.TickerOverride)
			}
			opts.Overrides[id] = models.TickerOverride{Manual: manual, Republish: republish}
		}
	}

	rec, err := a.TriggerRun(opts)
	if err != nil {
		return errorResult(fmt.Sprintf("Run error: %v", err)), nil
	}
	return textResult(fmt.Sprintf("Publishing run %s started for %s (%s)", rec.RunID, rec.UserID, strings.Join(rec.ProfileIDs, ", "))), nil
}

func (a *App) handleStopPublishing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, _ := request.RequireString("user_id")
	profileID, _ := request.RequireString("profile_id")
	if userID == "" || profileID == "" {
		return errorResult("Error: user_id and profile_id parameters are required"), nil
	}
	if err := a.StopProfile(userID, profileID); err != nil {
		return errorResult(fmt.Sprintf("Stop error: %v", err)), nil
	}
	return textResult(fmt.Sprintf("Stop requested for %s/%s", userID, profileID)), nil
}

func (a *App) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil || runID == "" {
		return errorResult("Error: run_id parameter is required"), nil
	}
	rec, err := a.GetRun(runID)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(formatRunRecord(rec)), nil
}

func (a *App) handleGetPublishingState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, _ := request.RequireString("user_id")
	profileID, _ := request.RequireString("profile_id")
	if userID == "" || profileID == "" {
		return errorResult("Error: user_id and profile_id parameters are required"), nil
	}
	st, err := a.ProfileState(ctx, userID, profileID)
	if err != nil {
		return errorResult(fmt.Sprintf("State error: %v", err)), nil
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("State error: %v", err)), nil
	}
	return textResult(string(data)), nil
}

// formatRunRecord renders a run as markdown.
func formatRunRecord(rec *RunRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", rec.RunID)
	fmt.Fprintf(&sb, "**User:** %s  \n**Status:** %s  \n**Started:** %s\n", rec.UserID, rec.Status, rec.StartedAt.Format("2006-01-02 15:04:05"))
	if rec.Error != "" {
		fmt.Fprintf(&sb, "\n**Error:** %s\n", rec.Error)
	}

	for _, r := range rec.Results {
		if r == nil {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n\n%s\n", r.ProfileName, r.Summary)
		if len(r.Outcomes) == 0 {
			continue
		}
		sb.WriteString("\n| Ticker | Status | Writer | Scheduled For |\n|---|---|---|---|\n")
		for _, o := range r.Outcomes {
			when := ""
			if o.ScheduledFor != nil {
				when = o.ScheduledFor.UTC().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", o.Ticker, o.Status, o.Writer, when)
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(&sb, "\n> %s\n", w)
		}
	}
	return sb.String()
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
