package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meltforce/liftlog/internal/engine"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

// timeNow is swapped in tests.
var timeNow = time.Now

// defaultTimeRange returns start/end defaulting to the last 30 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = timeNow()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -30)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// --- Tool definitions ---

var toolListTemplates = mcp.NewTool("list_templates",
	mcp.WithDescription("List workout templates with their exercises and target sets. Archived templates are excluded unless requested."),
	mcp.WithBoolean("include_archived", mcp.Description("Include archived templates. Defaults to false.")),
)

var toolGetTemplate = mcp.NewTool("get_template",
	mcp.WithDescription("Get a single workout template by ID, including all exercises, target sets, and rest intervals."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Template UUID")),
)

var toolGetWorkoutHistory = mcp.NewTool("get_workout_history",
	mcp.WithDescription("Query finished and in-progress workouts in a time range. Each workout includes per-set actuals and, once finished, the changeset recorded against its template."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
)

var toolGetWorkout = mcp.NewTool("get_workout",
	mcp.WithDescription("Get a single workout by ID, including exercises, set-level actuals, and the recorded changeset."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout UUID")),
)

var toolGetPreviousPerformance = mcp.NewTool("get_previous_performance",
	mcp.WithDescription("For each named exercise, return the most recent finished workout's completed sets (what was actually lifted last time). Exercises with no history are omitted from the result."),
	mcp.WithString("exercises", mcp.Required(), mcp.Description("Comma-separated exercise names (e.g. 'Bench Press,Squat'). Matching is case-insensitive.")),
)

var toolPreviewTemplateUpdate = mcp.NewTool("preview_template_update",
	mcp.WithDescription("Dry-run reconciliation: compute the changeset between a finished workout and its template, and show the template that each merge strategy would produce. Nothing is persisted."),
	mcp.WithString("workout_id", mcp.Required(), mcp.Description("Finished workout UUID")),
	mcp.WithString("strategy", mcp.Required(), mcp.Description("Merge strategy to preview"), mcp.Enum("values_only", "template_and_values", "save_as_new", "keep_original")),
)

// --- Tool handlers ---

func (h *handlers) listTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	templates, err := h.ds.ListTemplates(ctx, uid, req.GetBool("include_archived", false))
	if err != nil {
		h.log.Error("mcp list_templates", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(templates)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid template id: " + err.Error()), nil
	}

	uid := UserIDFromContext(ctx)
	tpl, err := h.ds.GetTemplate(ctx, uid, id)
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError("template not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_template", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(tpl)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkoutHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	uid := UserIDFromContext(ctx)
	workouts, err := h.ds.QueryInstances(ctx, uid, start, end)
	if err != nil {
		h.log.Error("mcp get_workout_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(workouts)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid workout id: " + err.Error()), nil
	}

	uid := UserIDFromContext(ctx)
	inst, err := h.ds.GetInstance(ctx, uid, id)
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError("workout not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_workout", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(inst)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getPreviousPerformance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("exercises")
	if err != nil {
		return mcp.NewToolResultError("exercises parameter is required"), nil
	}

	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return mcp.NewToolResultError("exercises parameter is empty"), nil
	}

	uid := UserIDFromContext(ctx)
	perf, err := engine.ResolvePreviousPerformance(ctx, h.ds, uid, names)
	if err != nil {
		h.log.Error("mcp get_previous_performance", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(perf)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) previewTemplateUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := req.RequireString("workout_id")
	if err != nil {
		return mcp.NewToolResultError("workout_id parameter is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid workout id: " + err.Error()), nil
	}

	strategyStr, err := req.RequireString("strategy")
	if err != nil {
		return mcp.NewToolResultError("strategy parameter is required"), nil
	}
	strategy := models.MergeStrategy(strategyStr)
	if !strategy.Valid() {
		return mcp.NewToolResultError("unknown strategy: " + strategyStr), nil
	}

	uid := UserIDFromContext(ctx)
	inst, err := h.ds.GetInstance(ctx, uid, id)
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError("workout not found"), nil
	}
	if err != nil {
		h.log.Error("mcp preview_template_update", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	tpl, err := h.ds.GetTemplate(ctx, uid, inst.TemplateID)
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError("the workout's template no longer exists"), nil
	}
	if err != nil {
		h.log.Error("mcp preview_template_update", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	changes := engine.DetectChanges(inst, tpl)
	updated := engine.ApplyTemplateUpdate(tpl, inst, changes, strategy)

	result, err := mcp.NewToolResultJSON(map[string]any{
		"changes":  changes,
		"strategy": strategy,
		"template": updated,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
