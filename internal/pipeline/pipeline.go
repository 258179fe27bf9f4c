// Package pipeline turns completed HTTP exchanges into stored records:
// target attribution, body truncation, header redaction, persistence,
// and mission/action linking. Every step is best-effort; a pipeline
// failure never fails the HTTP call that produced the exchange.
package pipeline

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/probegate/probegate/internal/httpexec"
	"github.com/probegate/probegate/internal/store"
	"github.com/probegate/probegate/pkg/models"
)

// Redacted replaces sensitive request header values before storage.
const Redacted = "[REDACTED]"

var baseSensitive = []string{
	"authorization",
	"cookie",
	"set-cookie",
	"x-api-key",
	"proxy-authorization",
}

// Exchange is the raw material handed to the pipeline after an HTTP
// call completes (or fails at the transport level).
type Exchange struct {
	Method         string
	URL            string
	RequestHeaders map[string]string
	RequestCookies map[string]string // sent cookies, stored as-is
	RequestBody    string
	MissionID      string // effective mission, may be empty
	Tags           []string
	Response       *httpexec.Response // nil when the call never completed
	ErrMsg         string             // transport/timeout error text
}

// Result reports what the pipeline managed to store.
type Result struct {
	RequestID string `json:"request_id,omitempty"`
	TargetID  string `json:"target_id,omitempty"`
	ActionID  string `json:"action_id,omitempty"`
	NewTarget bool   `json:"new_target,omitempty"`
}

// Pipeline wires the store and the redaction policy.
type Pipeline struct {
	store     store.Store
	maxBody   int
	sensitive map[string]bool
}

// New creates a pipeline. extraSensitive extends the built-in redaction
// list with deployment-specific header names.
func New(st store.Store, maxBody int, extraSensitive []string) *Pipeline {
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	sensitive := make(map[string]bool, len(baseSensitive)+len(extraSensitive))
	for _, h := range baseSensitive {
		sensitive[h] = true
	}
	for _, h := range extraSensitive {
		sensitive[strings.ToLower(h)] = true
	}
	return &Pipeline{store: st, maxBody: maxBody, sensitive: sensitive}
}

// Record runs the full pipeline. It always returns a Result; fields are
// empty for whatever steps failed.
func (p *Pipeline) Record(ctx context.Context, ex Exchange) Result {
	var res Result

	// Attribution follows redirects: the target is where the exchange
	// actually ended up, not where it started.
	attributionURL := ex.URL
	if ex.Response != nil && ex.Response.FinalURL != "" {
		attributionURL = ex.Response.FinalURL
	}
	host, port, protocol, path, query, ok := parseEndpoint(attributionURL)
	if !ok {
		log.Warn().Str("url", attributionURL).Msg("pipeline: unparseable url, skipping attribution")
	}

	var target *models.Target
	if ok {
		t, created, err := p.store.UpsertTarget(ctx, &models.Target{
			Host:      host,
			Port:      port,
			Protocol:  protocol,
			Status:    models.TargetActive,
			RiskLevel: models.RiskMedium,
			Notes:     "Auto-discovered via HTTP request",
		})
		if err != nil {
			log.Warn().Err(err).Str("host", host).Msg("pipeline: target attribution failed")
		} else {
			target = t
			res.TargetID = t.ID
			res.NewTarget = created
		}
	}

	rec := &models.HTTPRequest{
		Method:         strings.ToUpper(ex.Method),
		URL:            ex.URL,
		Host:           host,
		Path:           path,
		Query:          query,
		RequestHeaders: p.redactHeaders(ex.RequestHeaders),
		RequestCookies: ex.RequestCookies,
		RequestBody:    p.truncate(ex.RequestBody),
		RequestSize:    int64(len(ex.RequestBody)),
		MissionID:      ex.MissionID,
		Tags:           ex.Tags,
		Error:          ex.ErrMsg,
		CreatedAt:      time.Now().UTC(),
	}
	if target != nil {
		rec.TargetID = target.ID
	}
	if ex.Response != nil {
		rec.FinalURL = ex.Response.FinalURL
		rec.ResponseStatus = ex.Response.Status
		rec.ResponseHeaders = p.redactHeaders(ex.Response.Headers)
		rec.ResponseBody = p.truncate(ex.Response.Body)
		rec.ResponseSize = ex.Response.BodySize
		rec.DurationMS = ex.Response.DurationMS
	}

	if ex.MissionID != "" {
		action, err := p.store.LatestAction(ctx, ex.MissionID)
		switch {
		case err == nil:
			rec.ActionID = action.ID
			res.ActionID = action.ID
		case store.IsNotFound(err):
			// Mission has no actions yet; the request stays mission-linked only.
		default:
			log.Warn().Err(err).Str("mission_id", ex.MissionID).Msg("pipeline: action lookup failed")
		}
	}

	if err := p.store.InsertRequest(ctx, rec); err != nil {
		log.Warn().Err(err).Str("url", ex.URL).Msg("pipeline: request insert failed")
	} else {
		res.RequestID = rec.ID
	}

	if target != nil {
		// last_activity mirrors the stored request's timestamp exactly.
		if err := p.store.TouchTarget(ctx, target.ID, rec.CreatedAt); err != nil {
			log.Warn().Err(err).Str("target_id", target.ID).Msg("pipeline: activity bump failed")
		}
	}
	return res
}

func (p *Pipeline) truncate(body string) string {
	if len(body) <= p.maxBody {
		return body
	}
	return body[:p.maxBody] + httpexec.TruncationSuffix
}

func (p *Pipeline) redactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if p.sensitive[strings.ToLower(k)] {
			out[k] = Redacted
			continue
		}
		out[k] = v
	}
	return out
}

// parseEndpoint splits a URL into attribution fields. Port 0 means the
// scheme default, so explicit :443 on https and no port at all identify
// the same target.
func parseEndpoint(raw string) (host string, port int, protocol, path, query string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", 0, "", "", "", false
	}
	protocol = u.Scheme
	if protocol != "http" && protocol != "https" {
		return "", 0, "", "", "", false
	}
	host = strings.ToLower(u.Hostname())
	if ps := u.Port(); ps != "" {
		if n, err := strconv.Atoi(ps); err == nil && n != models.DefaultPort(protocol) {
			port = n
		}
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return host, port, protocol, path, u.RawQuery, true
}
