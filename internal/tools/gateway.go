// Package tools exposes the Probegate tool surface over MCP: the
// instrumented http_request tool plus the target, context, mission,
// search, and library tools. Every tool returns the uniform envelope
// and accepts leniently-typed arguments.
package tools

import (
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/probegate/probegate/internal/cookies"
	"github.com/probegate/probegate/internal/embeddings"
	"github.com/probegate/probegate/internal/httpexec"
	"github.com/probegate/probegate/internal/mission"
	"github.com/probegate/probegate/internal/pipeline"
	"github.com/probegate/probegate/internal/store"
)

// Gateway wires the tool handlers to their dependencies.
type Gateway struct {
	store    store.Store
	exec     *httpexec.Executor
	pipe     *pipeline.Pipeline
	embedder embeddings.Embedder
	cookies  *cookies.Provider
	missions *mission.Registry
}

// NewGateway assembles the tool surface.
func NewGateway(st store.Store, exec *httpexec.Executor, pipe *pipeline.Pipeline, emb embeddings.Embedder, ck *cookies.Provider) *Gateway {
	return &Gateway{
		store:    st,
		exec:     exec,
		pipe:     pipe,
		embedder: emb,
		cookies:  ck,
		missions: mission.NewRegistry(),
	}
}

// Missions exposes the per-session registry for session teardown.
func (g *Gateway) Missions() *mission.Registry { return g.missions }

// Register adds every tool to an MCP server.
func (g *Gateway) Register(server *mcpsdk.Server) {
	add := func(name, desc string, schema json.RawMessage, handler mcpsdk.ToolHandler) {
		server.AddTool(&mcpsdk.Tool{Name: name, Description: desc, InputSchema: schema}, handler)
	}

	add("http_request",
		"Send an HTTP request through the instrumented gateway. The exchange is logged, attributed to a target, and linked to the active mission.",
		httpRequestSchema, g.handleHTTPRequest)

	add("create_target",
		"Register a target endpoint explicitly (targets are otherwise auto-discovered on first request).",
		createTargetSchema, g.handleCreateTarget)
	add("update_target_status",
		"Update a target's status, risk level, title, or notes.",
		updateTargetStatusSchema, g.handleUpdateTargetStatus)
	add("get_target_summary",
		"Fetch a target with its request, action, and context-version counts.",
		getTargetSummarySchema, g.handleGetTargetSummary)
	add("search_targets",
		"List known targets filtered by status, risk level, or host substring.",
		searchTargetsSchema, g.handleSearchTargets)

	add("get_target_context",
		"Read a target's knowledge context: current version, a specific version, history, or a diff between two versions.",
		getTargetContextSchema, g.handleGetTargetContext)
	add("update_target_context",
		"Append a new context version for a target. Versioning is append-only; pass expected_version for an optimistic concurrency check.",
		updateTargetContextSchema, g.handleUpdateTargetContext)

	add("create_mission",
		"Create a testing mission with a goal and optional target associations.",
		createMissionSchema, g.handleCreateMission)
	add("update_mission",
		"Update a mission's name, goal, status, or context. Status changes follow the mission lifecycle.",
		updateMissionSchema, g.handleUpdateMission)
	add("set_mission_context",
		"Pin a mission (and optionally a target) as this connection's ambient context for later calls.",
		setMissionContextSchema, g.handleSetMissionContext)
	add("get_mission_context",
		"Read this connection's ambient mission context, with recent actions and optionally similar past work.",
		getMissionContextSchema, g.handleGetMissionContext)
	add("clear_mission_context",
		"Drop this connection's ambient mission context.",
		emptySchema, g.handleClearMissionContext)
	add("record_action",
		"Record a technique attempt against the active mission, with outcome and searchable embedding.",
		recordActionSchema, g.handleRecordAction)

	add("find_similar_techniques",
		"Search recorded actions by semantic similarity to a query, within one mission or across all.",
		findSimilarSchema, g.handleFindSimilar)
	add("search_requests",
		"Search logged HTTP requests by method, status, host, path, tag, target, or mission.",
		searchRequestsSchema, g.handleSearchRequests)
	add("search_techniques",
		"Browse aggregated techniques filtered by success, mission type, success rate, or name substring.",
		searchTechniquesSchema, g.handleSearchTechniques)
	add("get_technique_stats",
		"Aggregate technique usage and success rates, per mission or globally.",
		techniqueStatsSchema, g.handleTechniqueStats)

	add("add_to_library",
		"Add a reusable technique to the shared library. Near-duplicates within a category are rejected with the existing entry's id.",
		addToLibrarySchema, g.handleAddToLibrary)
	add("search_library",
		"Search the technique library semantically, optionally scoped to a category.",
		searchLibrarySchema, g.handleSearchLibrary)
	add("record_library_outcome",
		"Record a success or failure for a library entry after trying it.",
		recordOutcomeSchema, g.handleRecordLibraryOutcome)
	add("get_library_stats",
		"Summarize the technique library per category.",
		emptySchema, g.handleLibraryStats)
}

// decodeArgs unmarshals the raw tool arguments. Malformed JSON from a
// client is a validation failure, not a protocol error.
func decodeArgs(req *mcpsdk.CallToolRequest) (map[string]any, error) {
	if len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return args, nil
}

// sessionContext returns the ambient mission context of the calling
// connection.
func (g *Gateway) sessionContext(req *mcpsdk.CallToolRequest) *mission.Context {
	id := ""
	if req.Session != nil {
		id = req.Session.ID()
	}
	return g.missions.ForSession(id)
}

const ambientNote = "mission context supplied omitted arguments"
