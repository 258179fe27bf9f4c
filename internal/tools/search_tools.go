package tools

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/probegate/probegate/internal/embeddings"
	"github.com/probegate/probegate/internal/params"
	"github.com/probegate/probegate/internal/store"
)

// Similarity floors. Library search casts a wider net than action
// search because library entries are curated.
const (
	defaultActionSimilarity  = 0.6
	defaultLibrarySimilarity = 0.55
)

func (g *Gateway) handleFindSimilar(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	query := a.RequiredString("query")
	missionID := a.String("mission_id", "")
	limit := a.Int("limit", 10)
	minScore := a.Float("min_similarity", defaultActionSimilarity)
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}
	if minScore < 0 || minScore > 1 {
		return failKind(KindValidationFailed, "min_similarity must be in [0,1]"), nil
	}

	vec, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return failKind(KindInternal, "embedding backend failed: "+err.Error()), nil
	}
	if embeddings.IsZero(vec) {
		return failKind(KindValidationFailed, "query produced no embedding signal"), nil
	}

	matches, err := g.store.SimilarActions(ctx, vec, missionID, limit, minScore)
	if err != nil {
		return failErr(err), nil
	}
	return okResult(map[string]any{"matches": matches, "count": len(matches)}, ""), nil
}

func (g *Gateway) handleSearchRequests(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	f := store.RequestFilter{
		TargetID:     a.String("target_id", ""),
		MissionID:    a.String("mission_id", ""),
		Method:       a.String("method", ""),
		Status:       a.Int("status", 0),
		HostContains: a.String("host_contains", ""),
		PathContains: a.String("path_contains", ""),
		Tag:          a.String("tag", ""),
		Limit:        a.Int("limit", 0),
		Offset:       a.Int("offset", 0),
	}
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}

	requests, err := g.store.SearchRequests(ctx, f)
	if err != nil {
		return failErr(err), nil
	}
	return okResult(map[string]any{"requests": requests, "count": len(requests)}, ""), nil
}

func (g *Gateway) handleSearchTechniques(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	f := store.TechniqueFilter{
		SuccessOnly:        a.Bool("success_only", false),
		MissionType:        a.String("mission_type", ""),
		MinSuccessRate:     a.Float("min_success_rate", 0),
		TechniqueSubstring: a.String("technique_substring", ""),
		Limit:              a.Int("limit", 20),
	}
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}
	if f.MinSuccessRate < 0 || f.MinSuccessRate > 1 {
		return failKind(KindValidationFailed, "min_success_rate must be in [0,1]"), nil
	}

	stats, err := g.store.SearchTechniques(ctx, f)
	if err != nil {
		return failErr(err), nil
	}
	return okResult(map[string]any{"techniques": stats, "count": len(stats)}, ""), nil
}

func (g *Gateway) handleTechniqueStats(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	missionID := a.String("mission_id", "")
	technique := a.String("technique", "")
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}

	if technique != "" {
		detail, err := g.store.TechniqueDetail(ctx, technique)
		if err != nil {
			return failErr(err), nil
		}
		return okResult(map[string]any{"technique": detail}, ""), nil
	}

	stats, err := g.store.TechniqueStats(ctx, missionID)
	if err != nil {
		return failErr(err), nil
	}
	scope := "global"
	if missionID != "" {
		scope = "mission"
	}
	return okResult(map[string]any{"scope": scope, "techniques": stats}, ""), nil
}
