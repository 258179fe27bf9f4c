package tools

import (
	"context"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/probegate/probegate/internal/embeddings"
	"github.com/probegate/probegate/internal/params"
	"github.com/probegate/probegate/pkg/models"
)

func (g *Gateway) handleAddToLibrary(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	category := a.RequiredString("category")
	technique := a.RequiredString("technique")
	content := a.RequiredString("content")
	description := a.String("description", "")
	metadata := a.AnyMap("metadata")
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}

	entry := &models.LibraryEntry{
		Category:    category,
		Technique:   technique,
		Description: description,
		Content:     content,
		Metadata:    metadata,
	}

	embedText := strings.TrimSpace(strings.Join([]string{technique, description, content}, " "))
	if vec, err := g.embedder.Embed(ctx, embedText); err != nil {
		// Without an embedding the duplicate guard cannot run, but the
		// entry is still worth keeping.
		log.Warn().Err(err).Str("technique", technique).Msg("library embedding failed")
	} else {
		entry.Embedding = vec
	}

	if err := g.store.AddLibraryEntry(ctx, entry); err != nil {
		return failErr(err), nil
	}
	return okResult(entry, ""), nil
}

func (g *Gateway) handleSearchLibrary(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	query := a.RequiredString("query")
	category := a.String("category", "")
	limit := a.Int("limit", 10)
	minScore := a.Float("min_similarity", defaultLibrarySimilarity)
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

	matches, err := g.store.SearchLibrary(ctx, vec, category, limit, minScore)
	if err != nil {
		return failErr(err), nil
	}
	return okResult(map[string]any{"matches": matches, "count": len(matches)}, ""), nil
}

func (g *Gateway) handleRecordLibraryOutcome(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	entryID := a.RequiredString("entry_id")
	success := a.BoolPtr("success")
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}
	if success == nil {
		return failKind(KindValidationFailed, "success is required"), nil
	}

	entry, err := g.store.RecordLibraryOutcome(ctx, entryID, *success)
	if err != nil {
		return failErr(err), nil
	}
	return okResult(entry, ""), nil
}

func (g *Gateway) handleLibraryStats(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	stats, err := g.store.LibraryStats(ctx)
	if err != nil {
		return failErr(err), nil
	}
	return okResult(stats, ""), nil
}
