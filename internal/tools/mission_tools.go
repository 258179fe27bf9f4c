package tools

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/probegate/probegate/internal/params"
	"github.com/probegate/probegate/pkg/models"
)

func (g *Gateway) handleCreateMission(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	goal := a.RequiredString("goal")
	name := a.String("name", "")
	missionType := a.String("mission_type", "general")
	hypothesis := a.String("hypothesis", "")
	scope := a.AnyMap("scope")
	targetIDs := a.StringSlice("target_ids")
	missionCtx := a.AnyMap("context")
	activate := a.Bool("activate", false)
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}

	for _, tid := range targetIDs {
		if _, err := g.store.GetTarget(ctx, tid); err != nil {
			return failErr(err), nil
		}
	}

	m := &models.Mission{
		Name:        name,
		Goal:        goal,
		MissionType: missionType,
		Hypothesis:  hypothesis,
		Scope:       scope,
		Status:      models.MissionActive,
		Context:     missionCtx,
		TargetIDs:   targetIDs,
	}
	// Embedding failures degrade to an unsearchable mission, never a
	// failed create.
	if vec, err := g.embedder.Embed(ctx, goal); err != nil {
		log.Warn().Err(err).Msg("goal embedding failed")
	} else {
		m.GoalEmbedding = vec
	}
	if hypothesis != "" {
		if vec, err := g.embedder.Embed(ctx, hypothesis); err != nil {
			log.Warn().Err(err).Msg("hypothesis embedding failed")
		} else {
			m.HypothesisEmbedding = vec
		}
	}
	if err := g.store.CreateMission(ctx, m); err != nil {
		return failErr(err), nil
	}
	for _, tid := range targetIDs {
		if err := g.store.AttachMissionTarget(ctx, m.ID, tid); err != nil {
			log.Warn().Err(err).Str("mission_id", m.ID).Msg("attach mission target failed")
		}
	}

	note := ""
	if activate {
		g.sessionContext(req).Set(m.ID, firstOrEmpty(targetIDs), "")
		note = "mission pinned as ambient context"
	}
	return okResult(m, note), nil
}

func (g *Gateway) handleUpdateMission(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	missionID := a.String("mission_id", "")
	status := a.Enum("status", "", "active", "paused", "completed", "failed")
	missionCtx := a.AnyMap("context")
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}

	missionID, _, ambient := g.sessionContext(req).Resolve(missionID, "")
	note := ""
	if ambient {
		note = ambientNote
	}
	if missionID == "" {
		return failKind(KindValidationFailed, "mission_id is required (no ambient mission set)"), nil
	}

	m, err := g.store.GetMission(ctx, missionID)
	if err != nil {
		return failErr(err), nil
	}
	if a.Has("name") {
		m.Name = a.String("name", m.Name)
	}
	if a.Has("goal") {
		m.Goal = a.String("goal", m.Goal)
	}
	if a.Has("hypothesis") {
		m.Hypothesis = a.String("hypothesis", m.Hypothesis)
	}
	if scope := a.AnyMap("scope"); scope != nil {
		m.Scope = scope
	}
	if status != "" {
		next := models.MissionStatus(status)
		if !models.ValidMissionTransition(m.Status, next) {
			return failKind(KindConflict,
				"cannot transition mission from "+string(m.Status)+" to "+status), nil
		}
		m.Status = next
		if next == models.MissionCompleted || next == models.MissionFailed {
			now := time.Now().UTC()
			m.CompletedAt = &now
		}
	}
	if missionCtx != nil {
		if m.Context == nil {
			m.Context = map[string]any{}
		}
		for k, v := range missionCtx {
			m.Context[k] = v
		}
	}
	if err := g.store.UpdateMission(ctx, m); err != nil {
		return failErr(err), nil
	}
	return okResult(m, note), nil
}

func (g *Gateway) handleSetMissionContext(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	missionID := a.RequiredString("mission_id")
	targetID := a.String("target_id", "")
	cookieProfile := a.String("cookie_profile", "")
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}

	m, err := g.store.GetMission(ctx, missionID)
	if err != nil {
		return failErr(err), nil
	}
	if targetID != "" {
		if _, err := g.store.GetTarget(ctx, targetID); err != nil {
			return failErr(err), nil
		}
	}
	if cookieProfile != "" {
		if _, err := g.cookies.Profile(cookieProfile); err != nil {
			return failErr(err), nil
		}
	}

	snap := g.sessionContext(req).Set(missionID, targetID, cookieProfile)
	return okResult(map[string]any{
		"context":      snap,
		"mission_name": m.Name,
	}, ""), nil
}

func (g *Gateway) handleGetMissionContext(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	focus := a.String("focus", "")
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}

	snap := g.sessionContext(req).Get()
	if snap == nil {
		return okResult(map[string]any{"set": false}, ""), nil
	}
	result := map[string]any{"set": true, "context": snap}
	if m, err := g.store.GetMission(ctx, snap.MissionID); err == nil {
		result["mission"] = m
	}
	if recent, err := g.store.ListActions(ctx, snap.MissionID, 10); err == nil {
		result["recent_actions"] = recent
	}
	if focus != "" {
		if vec, err := g.embedder.Embed(ctx, focus); err == nil {
			if matches, err := g.store.SimilarActions(ctx, vec, "", 5, defaultActionSimilarity); err == nil {
				result["similar_actions"] = matches
			}
		}
	}
	return okResult(result, ""), nil
}

func (g *Gateway) handleClearMissionContext(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	g.sessionContext(req).Clear()
	return okResult(map[string]any{"cleared": true}, ""), nil
}

func (g *Gateway) handleRecordAction(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	missionID := a.String("mission_id", "")
	targetID := a.String("target_id", "")
	technique := a.RequiredString("technique")
	result := a.RequiredString("result")
	hypothesis := a.String("hypothesis", "")
	payload := a.String("payload", "")
	learning := a.String("learning", "")
	success := a.BoolPtr("success")
	metadata := a.AnyMap("metadata")
	linkRecent := a.Int("link_recent_requests", 3)
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}

	missionID, targetID, ambient := g.sessionContext(req).Resolve(missionID, targetID)
	note := ""
	if ambient {
		note = ambientNote
	}
	if missionID == "" {
		return failKind(KindValidationFailed, "mission_id is required (no ambient mission set)"), nil
	}
	if _, err := g.store.GetMission(ctx, missionID); err != nil {
		return failErr(err), nil
	}

	action := &models.MissionAction{
		MissionID:  missionID,
		TargetID:   targetID,
		Technique:  technique,
		Hypothesis: hypothesis,
		Payload:    payload,
		Result:     result,
		Success:    success,
		Learning:   learning,
		Metadata:   metadata,
	}

	// Embedding failures degrade to an unsearchable action, never a
	// failed record. The technique and the result embed separately so
	// searches can match either what was tried or what happened.
	if vec, err := g.embedder.Embed(ctx, technique); err != nil {
		log.Warn().Err(err).Str("technique", technique).Msg("action embedding failed")
	} else {
		action.ActionEmbedding = vec
	}
	if vec, err := g.embedder.Embed(ctx, result); err != nil {
		log.Warn().Err(err).Str("technique", technique).Msg("result embedding failed")
	} else {
		action.ResultEmbedding = vec
	}

	if err := g.store.RecordAction(ctx, action); err != nil {
		return failErr(err), nil
	}
	if targetID != "" {
		if err := g.store.AttachMissionTarget(ctx, missionID, targetID); err != nil {
			log.Warn().Err(err).Str("mission_id", missionID).Msg("attach mission target failed")
		}
	}

	// Sweep the mission's most recent logged requests onto this action.
	linked := 0
	if linkRecent > 0 {
		n, err := g.store.LinkRecentRequests(ctx, action.ID, missionID, linkRecent)
		if err != nil {
			log.Warn().Err(err).Str("action_id", action.ID).Msg("request link sweep failed")
		} else {
			linked = n
		}
	}
	return okResult(map[string]any{
		"action":          action,
		"linked_requests": linked,
	}, note), nil
}

func firstOrEmpty(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}
