package tools

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/probegate/probegate/internal/contextdiff"
	"github.com/probegate/probegate/internal/params"
	"github.com/probegate/probegate/internal/store"
	"github.com/probegate/probegate/pkg/models"
)

func (g *Gateway) handleGetTargetContext(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	targetID := a.String("target_id", "")
	level := a.Enum("level", "current", "current", "version", "history", "diff")
	version := a.Int("version", 0)
	fromVersion := a.Int("from_version", 0)
	toVersion := a.Int("to_version", 0)
	limit := a.Int("limit", 10)
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}

	_, targetID, ambient := g.sessionContext(req).Resolve("", targetID)
	note := ""
	if ambient {
		note = ambientNote
	}
	if targetID == "" {
		return failKind(KindValidationFailed, "target_id is required (no ambient target set)"), nil
	}

	switch level {
	case "current":
		tc, err := g.store.GetCurrentContext(ctx, targetID)
		if err != nil {
			return failErr(err), nil
		}
		return okResult(tc, note), nil

	case "version":
		if version <= 0 {
			return failKind(KindValidationFailed, "version is required when level=version"), nil
		}
		tc, err := g.store.GetContextVersion(ctx, targetID, version)
		if err != nil {
			return failErr(err), nil
		}
		return okResult(tc, note), nil

	case "history":
		history, err := g.store.ContextHistory(ctx, targetID, limit)
		if err != nil {
			return failErr(err), nil
		}
		return okResult(map[string]any{"versions": history, "count": len(history)}, note), nil

	default: // diff
		if fromVersion <= 0 {
			return failKind(KindValidationFailed, "from_version is required when level=diff"), nil
		}
		var newer *models.TargetContext
		if toVersion > 0 {
			newer, err = g.store.GetContextVersion(ctx, targetID, toVersion)
		} else {
			newer, err = g.store.GetCurrentContext(ctx, targetID)
		}
		if err != nil {
			return failErr(err), nil
		}
		older, err := g.store.GetContextVersion(ctx, targetID, fromVersion)
		if err != nil {
			return failErr(err), nil
		}
		return okResult(contextdiff.Compare(older, newer), note), nil
	}
}

func (g *Gateway) handleUpdateTargetContext(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	targetID := a.String("target_id", "")
	userContext := a.String("user_context", "")
	agentContext := a.String("agent_context", "")
	changeSummary := a.RequiredString("change_summary")
	appendMode := a.Bool("append_mode", true)
	expectedVersion := a.Int("expected_version", -1)
	createdBy := a.Enum("created_by", models.CreatedByAgent,
		models.CreatedByUser, models.CreatedByAgent, models.CreatedBySystem)
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}
	if !a.Has("user_context") && !a.Has("agent_context") {
		return failKind(KindValidationFailed, "at least one of user_context or agent_context is required"), nil
	}

	_, targetID, ambient := g.sessionContext(req).Resolve("", targetID)
	note := ""
	if ambient {
		note = ambientNote
	}
	if targetID == "" {
		return failKind(KindValidationFailed, "target_id is required (no ambient target set)"), nil
	}

	current, err := g.store.GetCurrentContext(ctx, targetID)
	if err != nil && !store.IsNotFound(err) {
		return failErr(err), nil
	}

	tc := &models.TargetContext{
		TargetID:      targetID,
		ChangeSummary: changeSummary,
		CreatedBy:     createdBy,
	}
	// First version is "initial"; after that the change type follows
	// who authored it.
	switch {
	case current == nil:
		tc.ChangeType = models.ChangeInitial
		tc.UserContext = userContext
		tc.AgentContext = agentContext
	default:
		if createdBy == models.CreatedByUser {
			tc.ChangeType = models.ChangeUserEdit
		} else {
			tc.ChangeType = models.ChangeAgentUpdate
		}
		// Fields not named in the call carry over unchanged. With
		// append_mode the new text joins the previous; without it the
		// new text replaces it.
		tc.UserContext = current.UserContext
		tc.AgentContext = current.AgentContext
		if a.Has("user_context") {
			tc.UserContext = applyContextText(current.UserContext, userContext, appendMode)
		}
		if a.Has("agent_context") {
			tc.AgentContext = applyContextText(current.AgentContext, agentContext, appendMode)
		}
	}
	if tc.UserContext == "" && tc.AgentContext == "" {
		return failKind(KindValidationFailed, "resulting context would be empty"), nil
	}
	if err := g.store.AppendContext(ctx, tc, expectedVersion); err != nil {
		return failErr(err), nil
	}
	return okResult(tc, note), nil
}

func applyContextText(previous, incoming string, appendMode bool) string {
	if !appendMode || previous == "" {
		return incoming
	}
	if incoming == "" {
		return previous
	}
	return previous + "\n\n" + incoming
}
