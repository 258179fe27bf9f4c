package tools_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probegate/probegate/internal/config"
	"github.com/probegate/probegate/internal/cookies"
	"github.com/probegate/probegate/internal/embeddings"
	"github.com/probegate/probegate/internal/httpexec"
	"github.com/probegate/probegate/internal/pipeline"
	"github.com/probegate/probegate/internal/store"
	"github.com/probegate/probegate/internal/tools"
)

// envelope mirrors the uniform tool result for decoding in tests.
type envelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Kind    string            `json:"kind"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
	MissionContextNote string `json:"mission_context_note"`
}

type harness struct {
	store     store.Store
	session   *mcpsdk.ClientSession
	cookieDir string
}

// newHarness wires a full gateway (memory store, static embedder) behind
// an in-memory MCP transport and connects a client session to it.
func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, store.NewMemoryStore())
}

func newHarnessWithStore(t *testing.T, st store.Store) *harness {
	t.Helper()

	dir := t.TempDir()
	cookieDir := filepath.Join(dir, "cookies")
	require.NoError(t, os.MkdirAll(cookieDir, 0o700))

	exec := httpexec.New(config.HTTPConfig{
		Timeout:      5 * time.Second,
		MaxTimeout:   10 * time.Second,
		MaxBodyBytes: 1 << 20,
		VerifyTLS:    true,
	})
	pipe := pipeline.New(st, 1<<20, nil)
	ck := cookies.NewProvider(config.CookiesConfig{
		ConfigPath: filepath.Join(dir, "cookie_sessions.yaml"),
		DataDir:    cookieDir,
	})
	gw := tools.NewGateway(st, exec, pipe, embeddings.NewStatic(64), ck)

	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "probegate", Version: "test"}, nil)
	gw.Register(server)

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	go func() {
		_ = server.Run(context.Background(), serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "probegate-test", Version: "test"}, nil)
	session, err := client.Connect(context.Background(), clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return &harness{store: st, session: session, cookieDir: cookieDir}
}

// writeCookieProfile registers a named profile with a 0600 cookie file.
func (h *harness) writeCookieProfile(t *testing.T, name, cookieJSON string) {
	t.Helper()
	registry := filepath.Join(filepath.Dir(h.cookieDir), "cookie_sessions.yaml")
	require.NoError(t, os.WriteFile(registry, []byte(`
version: 1
sessions:
  `+name+`:
    cookie_file: `+name+`.json
`), 0o644))
	path := filepath.Join(h.cookieDir, name+".json")
	require.NoError(t, os.WriteFile(path, []byte(cookieJSON), 0o600))
	require.NoError(t, os.Chmod(path, 0o600))
}

func (h *harness) call(t *testing.T, tool string, args map[string]any) envelope {
	t.Helper()
	res, err := h.session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	require.NoError(t, err, "protocol-level failure calling %s", tool)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok, "tool %s returned non-text content", tool)

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(text.Text), &env), "tool %s envelope", tool)
	assert.Equal(t, !env.OK, res.IsError, "IsError must mirror the envelope")
	return env
}

func (h *harness) callOK(t *testing.T, tool string, args map[string]any, out any) envelope {
	t.Helper()
	env := h.call(t, tool, args)
	require.True(t, env.OK, "tool %s failed: %+v", tool, env.Error)
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Result, out))
	}
	return env
}

// recordedAction decodes the record_action result shape.
type recordedAction struct {
	Action struct {
		ID        string `json:"id"`
		MissionID string `json:"mission_id"`
		Technique string `json:"technique"`
		Result    string `json:"result"`
		Learning  string `json:"learning"`
	} `json:"action"`
	LinkedRequests int `json:"linked_requests"`
}

func TestHTTPRequestToolLogsExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	h := newHarness(t)

	var result struct {
		Response struct {
			Status int    `json:"status"`
			Body   string `json:"body"`
		} `json:"response"`
		Logging struct {
			RequestID string `json:"request_id"`
			TargetID  string `json:"target_id"`
			NewTarget bool   `json:"new_target"`
		} `json:"logging"`
	}
	h.callOK(t, "http_request", map[string]any{
		"method":  "GET",
		"url":     srv.URL + "/teapot",
		"headers": map[string]any{"Authorization": "Bearer supersecret", "X-Probe": "1"},
		"tags":    []any{"recon"},
	}, &result)

	assert.Equal(t, http.StatusTeapot, result.Response.Status)
	assert.Equal(t, "short and stout", result.Response.Body)
	require.NotEmpty(t, result.Logging.RequestID)
	require.NotEmpty(t, result.Logging.TargetID)
	assert.True(t, result.Logging.NewTarget)

	rec, err := h.store.GetRequest(context.Background(), result.Logging.RequestID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Redacted, rec.RequestHeaders["Authorization"])
	assert.Equal(t, "1", rec.RequestHeaders["X-Probe"])
	assert.Equal(t, []string{"recon"}, rec.Tags)
	assert.Equal(t, http.StatusTeapot, rec.ResponseStatus)

	// The logged request is searchable through the tool surface.
	var search struct {
		Count int `json:"count"`
	}
	h.callOK(t, "search_requests", map[string]any{"tag": "recon"}, &search)
	assert.Equal(t, 1, search.Count)
}

func TestHTTPRequestMethodDefaultsToGet(t *testing.T) {
	var sawMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawMethod = r.Method
	}))
	defer srv.Close()

	h := newHarness(t)

	var result struct {
		Logging struct {
			RequestID string `json:"request_id"`
		} `json:"logging"`
	}
	h.callOK(t, "http_request", map[string]any{"url": srv.URL}, &result)
	assert.Equal(t, http.MethodGet, sawMethod)

	rec, err := h.store.GetRequest(context.Background(), result.Logging.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "GET", rec.Method)
}

func TestHTTPRequestValidationAggregates(t *testing.T) {
	h := newHarness(t)

	env := h.call(t, "http_request", map[string]any{"timeout": "soon"})
	require.False(t, env.OK)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_failed", env.Error.Kind)
	assert.Contains(t, env.Error.Fields, "url")
	assert.Contains(t, env.Error.Fields, "timeout")
}

func TestHTTPRequestTransportErrorStillLogged(t *testing.T) {
	h := newHarness(t)

	env := h.call(t, "http_request", map[string]any{
		"method":  "GET",
		"url":     "http://127.0.0.1:1/",
		"timeout": 2,
	})
	require.False(t, env.OK)
	require.NotNil(t, env.Error)
	assert.Equal(t, "transport_error", env.Error.Kind)
	require.NotEmpty(t, env.Error.Fields["request_id"], "failed exchanges carry the logged request id")

	rec, err := h.store.GetRequest(context.Background(), env.Error.Fields["request_id"])
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Error)
}

func TestHTTPRequestRejectsBadMethodWithoutLogging(t *testing.T) {
	h := newHarness(t)

	env := h.call(t, "http_request", map[string]any{"method": "TRACE", "url": "http://x.example.com/"})
	require.False(t, env.OK)
	assert.Equal(t, "validation_failed", env.Error.Kind)

	reqs, err := h.store.SearchRequests(context.Background(), store.RequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, reqs, "rejected requests are never logged")
}

func TestMissionAmbientContextFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	h := newHarness(t)

	var m struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		MissionType string `json:"mission_type"`
	}
	env := h.callOK(t, "create_mission", map[string]any{
		"goal":     "enumerate the admin surface",
		"activate": true,
	}, &m)
	require.NotEmpty(t, m.ID)
	assert.Equal(t, "active", m.Status, "missions start active")
	assert.Equal(t, "general", m.MissionType)
	assert.Equal(t, "mission pinned as ambient context", env.MissionContextNote)

	// Omitted mission_id falls back to the pinned mission, with a note.
	var action recordedAction
	env = h.callOK(t, "record_action", map[string]any{
		"technique": "dir-enumeration",
		"result":    "found /admin/export",
		"success":   true,
	}, &action)
	assert.Equal(t, m.ID, action.Action.MissionID)
	assert.NotEmpty(t, env.MissionContextNote)

	// http_request inherits the mission and links the latest action.
	var hr struct {
		Logging struct {
			RequestID string `json:"request_id"`
			ActionID  string `json:"action_id"`
		} `json:"logging"`
	}
	h.callOK(t, "http_request", map[string]any{"method": "GET", "url": srv.URL}, &hr)
	assert.Equal(t, action.Action.ID, hr.Logging.ActionID)

	rec, err := h.store.GetRequest(context.Background(), hr.Logging.RequestID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, rec.MissionID)

	// The ambient snapshot is readable and clearable.
	var snap struct {
		Set bool `json:"set"`
	}
	h.callOK(t, "get_mission_context", nil, &snap)
	assert.True(t, snap.Set)

	h.callOK(t, "clear_mission_context", nil, nil)
	h.callOK(t, "get_mission_context", nil, &snap)
	assert.False(t, snap.Set)

	env = h.call(t, "record_action", map[string]any{"technique": "x", "result": "r"})
	require.False(t, env.OK)
	assert.Equal(t, "validation_failed", env.Error.Kind)
}

func TestRecordActionRequiresResult(t *testing.T) {
	h := newHarness(t)

	var m struct {
		ID string `json:"id"`
	}
	h.callOK(t, "create_mission", map[string]any{"goal": "g", "activate": true}, &m)

	env := h.call(t, "record_action", map[string]any{"technique": "sqli"})
	require.False(t, env.OK)
	assert.Equal(t, "validation_failed", env.Error.Kind)
	assert.Contains(t, env.Error.Fields, "result")
}

func TestRecordActionLinksRecentRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	h := newHarness(t)

	var m struct {
		ID string `json:"id"`
	}
	h.callOK(t, "create_mission", map[string]any{"goal": "g", "activate": true}, &m)

	for i := 0; i < 4; i++ {
		h.callOK(t, "http_request", map[string]any{"url": srv.URL}, nil)
	}

	// The default sweep claims the mission's three newest requests.
	var action recordedAction
	h.callOK(t, "record_action", map[string]any{
		"technique":  "param-fuzzing",
		"hypothesis": "id parameter is injectable",
		"result":     "two anomalous responses",
		"learning":   "rate limit kicks in after 50 rps",
	}, &action)
	assert.Equal(t, 3, action.LinkedRequests)
	assert.Equal(t, "rate limit kicks in after 50 rps", action.Action.Learning)

	linked, err := h.store.SearchRequests(context.Background(), store.RequestFilter{MissionID: m.ID})
	require.NoError(t, err)
	withAction := 0
	for _, r := range linked {
		if r.ActionID == action.Action.ID {
			withAction++
		}
	}
	assert.Equal(t, 3, withAction)

	// An explicit zero disables the sweep.
	var second recordedAction
	h.callOK(t, "record_action", map[string]any{
		"technique":            "noop",
		"result":               "r",
		"link_recent_requests": 0,
	}, &second)
	assert.Zero(t, second.LinkedRequests)
}

func TestMissionLifecycleGuard(t *testing.T) {
	h := newHarness(t)

	var m struct {
		ID string `json:"id"`
	}
	h.callOK(t, "create_mission", map[string]any{"goal": "g"}, &m)

	var updated struct {
		Status      string  `json:"status"`
		CompletedAt *string `json:"completed_at"`
	}
	h.callOK(t, "update_mission", map[string]any{"mission_id": m.ID, "status": "paused"}, &updated)
	assert.Equal(t, "paused", updated.Status)
	assert.Nil(t, updated.CompletedAt)

	h.callOK(t, "update_mission", map[string]any{"mission_id": m.ID, "status": "active"}, &updated)
	assert.Equal(t, "active", updated.Status)

	h.callOK(t, "update_mission", map[string]any{"mission_id": m.ID, "status": "completed"}, &updated)
	assert.Equal(t, "completed", updated.Status)
	assert.NotNil(t, updated.CompletedAt)

	// Terminal states accept nothing further.
	env := h.call(t, "update_mission", map[string]any{"mission_id": m.ID, "status": "active"})
	require.False(t, env.OK)
	assert.Equal(t, "conflict", env.Error.Kind)

	var failed struct {
		ID string `json:"id"`
	}
	h.callOK(t, "create_mission", map[string]any{"goal": "g2"}, &failed)
	h.callOK(t, "update_mission", map[string]any{"mission_id": failed.ID, "status": "failed"}, &updated)
	assert.Equal(t, "failed", updated.Status)
	assert.NotNil(t, updated.CompletedAt)

	env = h.call(t, "update_mission", map[string]any{"mission_id": failed.ID, "status": "paused"})
	require.False(t, env.OK)
	assert.Equal(t, "conflict", env.Error.Kind)
}

func TestSetMissionContextCookieProfile(t *testing.T) {
	var sawCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err == nil {
			sawCookie = c.Value
		}
	}))
	defer srv.Close()

	h := newHarness(t)
	h.writeCookieProfile(t, "admin", `{"sid":"topsecret"}`)

	var m struct {
		ID string `json:"id"`
	}
	h.callOK(t, "create_mission", map[string]any{"goal": "g"}, &m)

	// Pinning validates the profile...
	env := h.call(t, "set_mission_context", map[string]any{"mission_id": m.ID, "cookie_profile": "ghost"})
	require.False(t, env.OK)
	assert.Equal(t, "not_found", env.Error.Kind)

	var pinned struct {
		Context struct {
			CookieProfile string `json:"active_cookie_profile"`
		} `json:"context"`
		MissionName string `json:"mission_name"`
	}
	h.callOK(t, "set_mission_context", map[string]any{"mission_id": m.ID, "cookie_profile": "admin"}, &pinned)
	assert.Equal(t, "admin", pinned.Context.CookieProfile)

	// ...and later requests that name no profile inherit it.
	var result struct {
		Logging struct {
			RequestID string `json:"request_id"`
		} `json:"logging"`
	}
	h.callOK(t, "http_request", map[string]any{"url": srv.URL}, &result)
	assert.Equal(t, "topsecret", sawCookie)

	rec, err := h.store.GetRequest(context.Background(), result.Logging.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "topsecret", rec.RequestCookies["sid"], "sent cookies are stored as the payload")
}

func TestTargetContextVersioning(t *testing.T) {
	h := newHarness(t)

	var tgt struct {
		ID string `json:"id"`
	}
	h.callOK(t, "create_target", map[string]any{"host": "ctx.example.com", "protocol": "https"}, &tgt)

	// change_summary is mandatory on every version.
	env := h.call(t, "update_target_context", map[string]any{
		"target_id":     tgt.ID,
		"agent_context": "login form found",
	})
	require.False(t, env.OK)
	assert.Equal(t, "validation_failed", env.Error.Kind)

	var v1 struct {
		Version    int    `json:"version"`
		ChangeType string `json:"change_type"`
	}
	h.callOK(t, "update_target_context", map[string]any{
		"target_id":      tgt.ID,
		"agent_context":  "login form found\nno waf detected",
		"change_summary": "first recon pass",
	}, &v1)
	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, "initial", v1.ChangeType)

	// append_mode (the default) joins new text onto the old.
	var v2 struct {
		Version      int    `json:"version"`
		UserContext  string `json:"user_context"`
		AgentContext string `json:"agent_context"`
		ChangeType   string `json:"change_type"`
	}
	h.callOK(t, "update_target_context", map[string]any{
		"target_id":      tgt.ID,
		"agent_context":  "waf: cloudflare",
		"change_summary": "waf identified",
	}, &v2)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, "agent_update", v2.ChangeType)
	assert.Equal(t, "login form found\nno waf detected\n\nwaf: cloudflare", v2.AgentContext)

	// Replace mode overwrites; the untouched field carries over.
	var v3 struct {
		Version      int    `json:"version"`
		UserContext  string `json:"user_context"`
		AgentContext string `json:"agent_context"`
		ChangeType   string `json:"change_type"`
	}
	h.callOK(t, "update_target_context", map[string]any{
		"target_id":      tgt.ID,
		"user_context":   "scope: *.example.com only",
		"append_mode":    false,
		"change_summary": "owner set the scope",
		"created_by":     "user",
	}, &v3)
	assert.Equal(t, 3, v3.Version)
	assert.Equal(t, "user_edit", v3.ChangeType)
	assert.Equal(t, "scope: *.example.com only", v3.UserContext)
	assert.Equal(t, v2.AgentContext, v3.AgentContext, "unnamed fields carry over")

	// Stale optimistic check.
	env = h.call(t, "update_target_context", map[string]any{
		"target_id":        tgt.ID,
		"agent_context":    "stale",
		"change_summary":   "stale",
		"expected_version": 1,
	})
	require.False(t, env.OK)
	assert.Equal(t, "conflict", env.Error.Kind)

	var hist struct {
		Count int `json:"count"`
	}
	h.callOK(t, "get_target_context", map[string]any{"target_id": tgt.ID, "level": "history"}, &hist)
	assert.Equal(t, 3, hist.Count)

	var diff struct {
		FromVersion      int    `json:"from_version"`
		ToVersion        int    `json:"to_version"`
		AgentContextDiff string `json:"agent_context_diff"`
		ChangeSummary    string `json:"change_summary"`
	}
	h.callOK(t, "get_target_context", map[string]any{
		"target_id":    tgt.ID,
		"level":        "diff",
		"from_version": 1,
		"to_version":   2,
	}, &diff)
	assert.Equal(t, 1, diff.FromVersion)
	assert.Equal(t, 2, diff.ToVersion)
	assert.Contains(t, diff.AgentContextDiff, "+waf: cloudflare")
	assert.Equal(t, "waf identified", diff.ChangeSummary)
}

func TestTargetToolsNotFoundAndValidation(t *testing.T) {
	h := newHarness(t)

	env := h.call(t, "get_target_summary", map[string]any{"target_id": "ghost"})
	require.False(t, env.OK)
	assert.Equal(t, "not_found", env.Error.Kind)

	env = h.call(t, "create_target", map[string]any{"host": "x", "protocol": "gopher"})
	require.False(t, env.OK)
	assert.Equal(t, "validation_failed", env.Error.Kind)

	env = h.call(t, "create_target", map[string]any{"host": "x", "protocol": "http", "port": 70000})
	require.False(t, env.OK)
	assert.Equal(t, "validation_failed", env.Error.Kind)
}

func TestLibraryDuplicateAndOutcome(t *testing.T) {
	h := newHarness(t)

	entryArgs := map[string]any{
		"category":    "sqli",
		"technique":   "union-based extraction",
		"description": "classic UNION SELECT column probing",
		"content":     "' UNION SELECT NULL,NULL--",
	}
	var entry struct {
		ID string `json:"id"`
	}
	h.callOK(t, "add_to_library", entryArgs, &entry)

	env := h.call(t, "add_to_library", entryArgs)
	require.False(t, env.OK)
	assert.Equal(t, "duplicate", env.Error.Kind)
	assert.Equal(t, entry.ID, env.Error.Fields["existing_id"])

	// Boolean coercion applies through the wire.
	var updated struct {
		SuccessCount int `json:"success_count"`
	}
	h.callOK(t, "record_library_outcome", map[string]any{"entry_id": entry.ID, "success": "yes"}, &updated)
	assert.Equal(t, 1, updated.SuccessCount)

	env = h.call(t, "record_library_outcome", map[string]any{"entry_id": entry.ID})
	require.False(t, env.OK)
	assert.Equal(t, "validation_failed", env.Error.Kind)

	var search struct {
		Count int `json:"count"`
	}
	h.callOK(t, "search_library", map[string]any{"query": "union-based extraction classic UNION SELECT column probing"}, &search)
	assert.GreaterOrEqual(t, search.Count, 1)

	var stats struct {
		TotalEntries int `json:"total_entries"`
	}
	h.callOK(t, "get_library_stats", nil, &stats)
	assert.Equal(t, 1, stats.TotalEntries)
}

func TestFindSimilarTechniques(t *testing.T) {
	h := newHarness(t)

	var m struct {
		ID string `json:"id"`
	}
	h.callOK(t, "create_mission", map[string]any{"goal": "g", "activate": true}, &m)
	h.callOK(t, "record_action", map[string]any{
		"technique": "jwt-none-alg",
		"result":    "token accepted without signature",
	}, nil)

	var found struct {
		Count int `json:"count"`
	}
	h.callOK(t, "find_similar_techniques", map[string]any{
		"query": "jwt-none-alg",
	}, &found)
	assert.Equal(t, 1, found.Count)

	// Blank queries carry no signal.
	env := h.call(t, "find_similar_techniques", map[string]any{"query": "   "})
	require.False(t, env.OK)
	assert.Equal(t, "validation_failed", env.Error.Kind)

	env = h.call(t, "find_similar_techniques", map[string]any{"query": "x", "min_similarity": 1.5})
	require.False(t, env.OK)
	assert.Equal(t, "validation_failed", env.Error.Kind)
}

func TestCookieProfileErrorsAbortBeforeSend(t *testing.T) {
	h := newHarness(t)

	registry := filepath.Join(filepath.Dir(h.cookieDir), "cookie_sessions.yaml")
	require.NoError(t, os.WriteFile(registry, []byte(`
version: 1
sessions:
  admin:
    cookie_file: admin.json
`), 0o644))
	leaky := filepath.Join(h.cookieDir, "admin.json")
	require.NoError(t, os.WriteFile(leaky, []byte(`{"sid":"x"}`), 0o644))
	require.NoError(t, os.Chmod(leaky, 0o644))

	env := h.call(t, "http_request", map[string]any{
		"method":         "GET",
		"url":            "http://never-reached.example.com/",
		"cookie_profile": "admin",
	})
	require.False(t, env.OK)
	assert.Equal(t, "insecure_permissions", env.Error.Kind)

	reqs, err := h.store.SearchRequests(context.Background(), store.RequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, reqs, "nothing is sent or logged when the profile is unusable")

	env = h.call(t, "http_request", map[string]any{
		"method":         "GET",
		"url":            "http://never-reached.example.com/",
		"cookie_profile": "ghost",
	})
	require.False(t, env.OK)
	assert.Equal(t, "not_found", env.Error.Kind)
}

func TestSearchTargetsFilter(t *testing.T) {
	h := newHarness(t)

	h.callOK(t, "create_target", map[string]any{"host": "alpha.example.com", "protocol": "https"}, nil)
	h.callOK(t, "create_target", map[string]any{"host": "beta.example.com", "protocol": "https", "risk_level": "high"}, nil)

	var res struct {
		Count   int `json:"count"`
		Targets []struct {
			Host string `json:"host"`
		} `json:"targets"`
	}
	h.callOK(t, "search_targets", map[string]any{"risk_level": "high"}, &res)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "beta.example.com", res.Targets[0].Host)
}

func TestTechniqueStatsTool(t *testing.T) {
	h := newHarness(t)

	var m struct {
		ID string `json:"id"`
	}
	h.callOK(t, "create_mission", map[string]any{"goal": "g", "activate": true}, &m)
	h.callOK(t, "record_action", map[string]any{"technique": "sqli", "result": "r", "success": true}, nil)
	h.callOK(t, "record_action", map[string]any{
		"technique": "sqli",
		"result":    "blocked",
		"success":   false,
		"learning":  "keyword filter strips UNION",
	}, nil)

	var stats struct {
		Scope      string `json:"scope"`
		Techniques []struct {
			Technique   string  `json:"technique"`
			Uses        int     `json:"uses"`
			SuccessRate float64 `json:"success_rate"`
		} `json:"techniques"`
	}
	h.callOK(t, "get_technique_stats", map[string]any{"mission_id": m.ID}, &stats)
	assert.Equal(t, "mission", stats.Scope)
	require.Len(t, stats.Techniques, 1)
	assert.Equal(t, 2, stats.Techniques[0].Uses)
	assert.Equal(t, 0.5, stats.Techniques[0].SuccessRate)

	h.callOK(t, "get_technique_stats", nil, &stats)
	assert.Equal(t, "global", stats.Scope)

	// Single-technique detail surfaces failure learnings.
	var detail struct {
		Technique struct {
			Uses            int      `json:"uses"`
			FailedLearnings []string `json:"failed_learnings"`
		} `json:"technique"`
	}
	h.callOK(t, "get_technique_stats", map[string]any{"technique": "sqli"}, &detail)
	assert.Equal(t, 2, detail.Technique.Uses)
	require.Len(t, detail.Technique.FailedLearnings, 1)
	assert.Equal(t, "keyword filter strips UNION", detail.Technique.FailedLearnings[0])

	env := h.call(t, "get_technique_stats", map[string]any{"technique": "never-tried"})
	require.False(t, env.OK)
	assert.Equal(t, "not_found", env.Error.Kind)
}

func TestSearchTechniquesTool(t *testing.T) {
	h := newHarness(t)

	var recon struct {
		ID string `json:"id"`
	}
	h.callOK(t, "create_mission", map[string]any{"goal": "map", "mission_type": "recon"}, &recon)
	var exploit struct {
		ID string `json:"id"`
	}
	h.callOK(t, "create_mission", map[string]any{"goal": "break", "mission_type": "exploitation"}, &exploit)

	h.callOK(t, "record_action", map[string]any{"mission_id": recon.ID, "technique": "dir-brute", "result": "r", "success": true}, nil)
	h.callOK(t, "record_action", map[string]any{"mission_id": recon.ID, "technique": "dir-brute", "result": "r", "success": false}, nil)
	h.callOK(t, "record_action", map[string]any{"mission_id": exploit.ID, "technique": "sqli-union", "result": "r", "success": true}, nil)

	var res struct {
		Count      int `json:"count"`
		Techniques []struct {
			Technique   string  `json:"technique"`
			SuccessRate float64 `json:"success_rate"`
		} `json:"techniques"`
	}
	h.callOK(t, "search_techniques", nil, &res)
	require.Equal(t, 2, res.Count)
	assert.Equal(t, "sqli-union", res.Techniques[0].Technique, "highest success rate first")

	h.callOK(t, "search_techniques", map[string]any{"mission_type": "recon"}, &res)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "dir-brute", res.Techniques[0].Technique)

	h.callOK(t, "search_techniques", map[string]any{"min_success_rate": 0.9}, &res)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "sqli-union", res.Techniques[0].Technique)

	h.callOK(t, "search_techniques", map[string]any{"technique_substring": "BRUTE"}, &res)
	require.Equal(t, 1, res.Count)

	env := h.call(t, "search_techniques", map[string]any{"min_success_rate": 2})
	require.False(t, env.OK)
	assert.Equal(t, "validation_failed", env.Error.Kind)
}

func TestStorageDisabledSurfacesStoreUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	h := newHarnessWithStore(t, store.NewDisabledStore())

	// Persistence tools report the missing backend explicitly.
	env := h.call(t, "create_target", map[string]any{"host": "x.example.com", "protocol": "https"})
	require.False(t, env.OK)
	assert.Equal(t, "store_unavailable", env.Error.Kind)
	assert.Contains(t, env.Error.Message, "DATABASE_URL")

	env = h.call(t, "create_mission", map[string]any{"goal": "g"})
	require.False(t, env.OK)
	assert.Equal(t, "store_unavailable", env.Error.Kind)

	env = h.call(t, "search_requests", nil)
	require.False(t, env.OK)
	assert.Equal(t, "store_unavailable", env.Error.Kind)

	// http_request still works; only the logging half goes dark.
	var result struct {
		Response struct {
			Status int `json:"status"`
		} `json:"response"`
		Logging struct {
			RequestID string `json:"request_id"`
		} `json:"logging"`
	}
	h.callOK(t, "http_request", map[string]any{"url": srv.URL}, &result)
	assert.Equal(t, 200, result.Response.Status)
	assert.Empty(t, result.Logging.RequestID, "nothing was persisted")
}
