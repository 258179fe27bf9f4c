package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probegate/probegate/internal/httpexec"
	"github.com/probegate/probegate/internal/store"
	"github.com/probegate/probegate/pkg/models"
)

func TestRecordAutoDiscoversTarget(t *testing.T) {
	st := store.NewMemoryStore()
	p := New(st, 0, nil)
	ctx := context.Background()

	res := p.Record(ctx, Exchange{
		Method: "get",
		URL:    "https://fresh.example.com/admin?debug=1",
		Response: &httpexec.Response{
			Status:     200,
			Body:       "ok",
			DurationMS: 12,
		},
	})

	require.NotEmpty(t, res.TargetID)
	assert.True(t, res.NewTarget)

	tgt, err := st.GetTarget(ctx, res.TargetID)
	require.NoError(t, err)
	assert.Equal(t, "fresh.example.com", tgt.Host)
	assert.Zero(t, tgt.Port, "scheme-default port is elided")
	assert.Equal(t, "https", tgt.Protocol)
	assert.Equal(t, models.TargetActive, tgt.Status)
	assert.Equal(t, models.RiskMedium, tgt.RiskLevel)
	assert.Equal(t, "Auto-discovered via HTTP request", tgt.Notes)

	rec, err := st.GetRequest(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "GET", rec.Method)
	assert.Equal(t, "/admin", rec.Path)
	assert.Equal(t, "debug=1", rec.Query)
	assert.Equal(t, res.TargetID, rec.TargetID)
	assert.Equal(t, 200, rec.ResponseStatus)

	// Same endpoint again reuses the target, explicit :443 included.
	res2 := p.Record(ctx, Exchange{Method: "GET", URL: "https://fresh.example.com:443/other"})
	assert.Equal(t, res.TargetID, res2.TargetID)
	assert.False(t, res2.NewTarget)
}

func TestRecordDefaultPorts(t *testing.T) {
	st := store.NewMemoryStore()
	p := New(st, 0, nil)
	ctx := context.Background()

	res := p.Record(ctx, Exchange{Method: "GET", URL: "http://plain.example.com"})
	tgt, err := st.GetTarget(ctx, res.TargetID)
	require.NoError(t, err)
	assert.Zero(t, tgt.Port, ":80 on http is the default")

	rec, _ := st.GetRequest(ctx, res.RequestID)
	assert.Equal(t, "/", rec.Path, "empty path stored as /")

	res = p.Record(ctx, Exchange{Method: "GET", URL: "https://alt.example.com:8443/x"})
	tgt, err = st.GetTarget(ctx, res.TargetID)
	require.NoError(t, err)
	assert.Equal(t, 8443, tgt.Port, "non-default ports survive")
}

func TestRecordAttributesFinalURL(t *testing.T) {
	st := store.NewMemoryStore()
	p := New(st, 0, nil)
	ctx := context.Background()

	// A redirect chain ends somewhere else: the target is where the
	// exchange landed, not where it started.
	res := p.Record(ctx, Exchange{
		Method: "GET",
		URL:    "http://a.test/",
		Response: &httpexec.Response{
			Status:   200,
			FinalURL: "https://b.test/home",
		},
	})

	require.NotEmpty(t, res.TargetID)
	tgt, err := st.GetTarget(ctx, res.TargetID)
	require.NoError(t, err)
	assert.Equal(t, "b.test", tgt.Host)
	assert.Equal(t, "https", tgt.Protocol)

	rec, err := st.GetRequest(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "http://a.test/", rec.URL, "original url is preserved")
	assert.Equal(t, "https://b.test/home", rec.FinalURL)
	assert.Equal(t, "b.test", rec.Host)
	assert.Equal(t, "/home", rec.Path)
}

func TestRecordRedactsSensitiveHeaders(t *testing.T) {
	st := store.NewMemoryStore()
	p := New(st, 0, []string{"X-Internal-Token"})
	ctx := context.Background()

	res := p.Record(ctx, Exchange{
		Method: "GET",
		URL:    "https://h.example.com/",
		RequestHeaders: map[string]string{
			"Authorization":    "Bearer secret",
			"COOKIE":           "sid=abc",
			"X-Api-Key":        "key",
			"x-internal-token": "extra",
			"Accept":           "application/json",
		},
		Response: &httpexec.Response{
			Status: 200,
			Headers: map[string]string{
				"Set-Cookie":      "sid=new; HttpOnly",
				"Authorization":   "Bearer reflected",
				"Content-Type":    "text/html",
				"X-Frame-Options": "DENY",
			},
		},
	})

	rec, err := st.GetRequest(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, Redacted, rec.RequestHeaders["Authorization"])
	assert.Equal(t, Redacted, rec.RequestHeaders["COOKIE"], "matching is case-insensitive")
	assert.Equal(t, Redacted, rec.RequestHeaders["X-Api-Key"])
	assert.Equal(t, Redacted, rec.RequestHeaders["x-internal-token"], "extra list is honored")
	assert.Equal(t, "application/json", rec.RequestHeaders["Accept"])

	// Response headers get the same treatment.
	assert.Equal(t, Redacted, rec.ResponseHeaders["Set-Cookie"])
	assert.Equal(t, Redacted, rec.ResponseHeaders["Authorization"])
	assert.Equal(t, "text/html", rec.ResponseHeaders["Content-Type"])
	assert.Equal(t, "DENY", rec.ResponseHeaders["X-Frame-Options"])
}

func TestRecordStoresRequestCookies(t *testing.T) {
	st := store.NewMemoryStore()
	p := New(st, 0, nil)
	ctx := context.Background()

	// Sent cookies are the test payload: stored verbatim, unlike the
	// Cookie header.
	res := p.Record(ctx, Exchange{
		Method:         "GET",
		URL:            "https://c.example.com/",
		RequestHeaders: map[string]string{"Cookie": "sid=abc"},
		RequestCookies: map[string]string{"sid": "abc", "csrf": "' OR 1=1--"},
	})

	rec, err := st.GetRequest(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, Redacted, rec.RequestHeaders["Cookie"])
	assert.Equal(t, map[string]string{"sid": "abc", "csrf": "' OR 1=1--"}, rec.RequestCookies)
}

func TestRecordTruncatesBodies(t *testing.T) {
	st := store.NewMemoryStore()
	p := New(st, 32, nil)
	ctx := context.Background()

	long := strings.Repeat("b", 100)
	res := p.Record(ctx, Exchange{
		Method:      "POST",
		URL:         "https://t.example.com/",
		RequestBody: long,
		Response:    &httpexec.Response{Status: 200, Body: long, BodySize: 100},
	})

	rec, err := st.GetRequest(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("b", 32)+httpexec.TruncationSuffix, rec.RequestBody)
	assert.Equal(t, strings.Repeat("b", 32)+httpexec.TruncationSuffix, rec.ResponseBody)

	// Truncation trims the stored text, not the recorded sizes.
	assert.Equal(t, int64(100), rec.RequestSize)
	assert.Equal(t, int64(100), rec.ResponseSize)
}

func TestRecordBumpsTargetActivity(t *testing.T) {
	st := store.NewMemoryStore()
	p := New(st, 0, nil)
	ctx := context.Background()

	res := p.Record(ctx, Exchange{Method: "GET", URL: "https://act.example.com/"})

	rec, err := st.GetRequest(ctx, res.RequestID)
	require.NoError(t, err)
	tgt, err := st.GetTarget(ctx, res.TargetID)
	require.NoError(t, err)
	assert.True(t, tgt.LastActivity.Equal(rec.CreatedAt),
		"last_activity %v != request created_at %v", tgt.LastActivity, rec.CreatedAt)
}

func TestRecordLinksLatestAction(t *testing.T) {
	st := store.NewMemoryStore()
	p := New(st, 0, nil)
	ctx := context.Background()

	m := &models.Mission{Goal: "g"}
	require.NoError(t, st.CreateMission(ctx, m))

	// No actions yet: request stays mission-linked only.
	res := p.Record(ctx, Exchange{Method: "GET", URL: "https://m.example.com/", MissionID: m.ID})
	rec, err := st.GetRequest(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, rec.MissionID)
	assert.Empty(t, rec.ActionID)

	action := &models.MissionAction{MissionID: m.ID, Technique: "recon", Result: "r"}
	require.NoError(t, st.RecordAction(ctx, action))

	res = p.Record(ctx, Exchange{Method: "GET", URL: "https://m.example.com/", MissionID: m.ID})
	rec, err = st.GetRequest(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, action.ID, rec.ActionID)
	assert.Equal(t, action.ID, res.ActionID)
}

func TestRecordTransportFailure(t *testing.T) {
	st := store.NewMemoryStore()
	p := New(st, 0, nil)
	ctx := context.Background()

	res := p.Record(ctx, Exchange{
		Method: "GET",
		URL:    "https://down.example.com/",
		ErrMsg: "connection refused",
	})

	require.NotEmpty(t, res.RequestID, "failed exchanges are still logged")
	rec, err := st.GetRequest(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "connection refused", rec.Error)
	assert.Zero(t, rec.ResponseStatus)
}

func TestRecordUnparseableURL(t *testing.T) {
	st := store.NewMemoryStore()
	p := New(st, 0, nil)

	res := p.Record(context.Background(), Exchange{Method: "GET", URL: "::not a url::"})
	assert.Empty(t, res.TargetID, "no attribution for junk urls")
	assert.NotEmpty(t, res.RequestID, "the exchange is still recorded")
}
