package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/probegate/probegate/internal/cookies"
	"github.com/probegate/probegate/internal/httpexec"
	"github.com/probegate/probegate/internal/params"
	"github.com/probegate/probegate/internal/store"
)

// Error kinds of the uniform tool envelope. Agents branch on kind, so
// the set is closed and stable.
const (
	KindValidationFailed    = "validation_failed"
	KindNotFound            = "not_found"
	KindConflict            = "conflict"
	KindDuplicate           = "duplicate"
	KindInsecurePermissions = "insecure_permissions"
	KindPathEscape          = "path_escape"
	KindParseError          = "parse_error"
	KindTimeout             = "timeout"
	KindTransportError      = "transport_error"
	KindStoreUnavailable    = "store_unavailable"
	KindInternal            = "internal"
)

// ToolError is the error half of the envelope.
type ToolError struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Envelope is the uniform result shape of every tool. Exactly one of
// Result and Error is set, and OK mirrors Error's absence.
type Envelope struct {
	OK                 bool       `json:"ok"`
	Result             any        `json:"result,omitempty"`
	Error              *ToolError `json:"error,omitempty"`
	MissionContextNote string     `json:"mission_context_note,omitempty"`
}

func respond(env Envelope) *mcpsdk.CallToolResult {
	data, err := json.Marshal(env)
	if err != nil {
		data = []byte(`{"ok":false,"error":{"kind":"internal","message":"encode result"}}`)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		IsError: !env.OK,
	}
}

func okResult(result any, note string) *mcpsdk.CallToolResult {
	return respond(Envelope{OK: true, Result: result, MissionContextNote: note})
}

func failErr(err error) *mcpsdk.CallToolResult {
	return respond(Envelope{OK: false, Error: classify(err)})
}

func failKind(kind, message string) *mcpsdk.CallToolResult {
	return respond(Envelope{OK: false, Error: &ToolError{Kind: kind, Message: message}})
}

// classify maps internal error types onto envelope kinds. Anything
// unrecognized is internal; tools never leak Go error chains as
// protocol failures.
func classify(err error) *ToolError {
	var vErr *params.ValidationError
	if errors.As(err, &vErr) {
		return &ToolError{Kind: KindValidationFailed, Message: "invalid arguments", Fields: vErr.Fields}
	}
	var xvErr httpexec.ValidationError
	if errors.As(err, &xvErr) {
		return &ToolError{
			Kind:    KindValidationFailed,
			Message: "invalid arguments",
			Fields:  map[string]string{xvErr.Field: xvErr.Message},
		}
	}
	var dup store.ErrDuplicate
	if errors.As(err, &dup) {
		return &ToolError{
			Kind:    KindDuplicate,
			Message: dup.Error(),
			Fields:  map[string]string{"existing_id": dup.ExistingID},
		}
	}
	var conflict store.ErrConflict
	if errors.As(err, &conflict) {
		return &ToolError{Kind: KindConflict, Message: conflict.Error()}
	}
	var notFound store.ErrNotFound
	if errors.As(err, &notFound) {
		return &ToolError{Kind: KindNotFound, Message: notFound.Error()}
	}
	var cookieNF cookies.NotFoundError
	if errors.As(err, &cookieNF) {
		return &ToolError{Kind: KindNotFound, Message: cookieNF.Error()}
	}
	var perm cookies.PermissionError
	if errors.As(err, &perm) {
		return &ToolError{Kind: KindInsecurePermissions, Message: perm.Error()}
	}
	var owner cookies.OwnershipError
	if errors.As(err, &owner) {
		return &ToolError{Kind: KindInsecurePermissions, Message: owner.Error()}
	}
	var escape cookies.PathEscapeError
	if errors.As(err, &escape) {
		return &ToolError{Kind: KindPathEscape, Message: escape.Error()}
	}
	var parse cookies.ParseError
	if errors.As(err, &parse) {
		return &ToolError{Kind: KindParseError, Message: parse.Error()}
	}
	var timeout httpexec.TimeoutError
	if errors.As(err, &timeout) {
		return &ToolError{Kind: KindTimeout, Message: timeout.Error()}
	}
	var transport httpexec.TransportError
	if errors.As(err, &transport) {
		return &ToolError{Kind: KindTransportError, Message: transport.Error()}
	}
	if errors.Is(err, store.ErrStoreUnavailable) {
		return &ToolError{Kind: KindStoreUnavailable, Message: "no storage backend configured; set DATABASE_URL to enable logging and missions"}
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return &ToolError{Kind: KindStoreUnavailable, Message: "knowledge store unreachable"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ToolError{Kind: KindTimeout, Message: "operation timed out"}
	}
	// Internal failures carry a correlation id: the full error goes to
	// the log, the caller gets the id to quote when reporting it.
	corr := uuid.NewString()[:8]
	log.Error().Err(err).Str("correlation_id", corr).Msg("tool call failed")
	return &ToolError{
		Kind:    KindInternal,
		Message: "internal error (correlation id " + corr + ")",
		Fields:  map[string]string{"correlation_id": corr},
	}
}
