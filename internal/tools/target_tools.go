package tools

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/probegate/probegate/internal/params"
	"github.com/probegate/probegate/internal/store"
	"github.com/probegate/probegate/pkg/models"
)

func (g *Gateway) handleCreateTarget(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	host := a.RequiredString("host")
	protocol := a.Enum("protocol", "", "http", "https")
	if protocol == "" {
		protocol = a.RequiredString("protocol")
	}
	port := a.Int("port", 0)
	title := a.String("title", "")
	riskLevel := a.Enum("risk_level", string(models.RiskMedium), "low", "medium", "high", "critical")
	notes := a.String("notes", "")
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}
	if port < 0 || port > 65535 {
		return failKind(KindValidationFailed, "port must be in 1..65535"), nil
	}

	t := &models.Target{
		Host:      host,
		Port:      port,
		Protocol:  protocol,
		Title:     title,
		RiskLevel: models.RiskLevel(riskLevel),
		Notes:     notes,
	}
	if err := g.store.CreateTarget(ctx, t); err != nil {
		return failErr(err), nil
	}
	return okResult(t, ""), nil
}

func (g *Gateway) handleUpdateTargetStatus(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	targetID := a.String("target_id", "")
	status := a.Enum("status", "", "active", "inactive", "blocked", "completed")
	riskLevel := a.Enum("risk_level", "", "low", "medium", "high", "critical")
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

	t, err := g.store.GetTarget(ctx, targetID)
	if err != nil {
		return failErr(err), nil
	}
	if status != "" {
		t.Status = models.TargetStatus(status)
	}
	if riskLevel != "" {
		t.RiskLevel = models.RiskLevel(riskLevel)
	}
	if a.Has("title") {
		t.Title = a.String("title", t.Title)
	}
	if a.Has("notes") {
		t.Notes = a.String("notes", t.Notes)
	}
	if err := g.store.UpdateTarget(ctx, t); err != nil {
		return failErr(err), nil
	}
	return okResult(t, note), nil
}

func (g *Gateway) handleGetTargetSummary(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	targetID := a.String("target_id", "")
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

	sum, err := g.store.TargetSummary(ctx, targetID)
	if err != nil {
		return failErr(err), nil
	}
	return okResult(sum, note), nil
}

func (g *Gateway) handleSearchTargets(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	f := store.TargetFilter{
		Status:       models.TargetStatus(a.Enum("status", "", "active", "inactive", "blocked", "completed")),
		RiskLevel:    models.RiskLevel(a.Enum("risk_level", "", "low", "medium", "high", "critical")),
		HostContains: a.String("host_contains", ""),
		Limit:        a.Int("limit", 0),
		Offset:       a.Int("offset", 0),
	}
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}

	targets, err := g.store.ListTargets(ctx, f)
	if err != nil {
		return failErr(err), nil
	}
	return okResult(map[string]any{"targets": targets, "count": len(targets)}, ""), nil
}
