// Package models defines the core domain types for the Probegate gateway.
// These types are shared between the store implementations, the logging
// pipeline, and the MCP tool surface.
package models

import (
	"fmt"
	"time"
)

// ── Targets ─────────────────────────────────────────────────

// TargetStatus tracks whether a target is in active scope.
type TargetStatus string

const (
	TargetActive    TargetStatus = "active"
	TargetInactive  TargetStatus = "inactive"
	TargetBlocked   TargetStatus = "blocked"
	TargetCompleted TargetStatus = "completed"
)

// RiskLevel is the operator-assigned sensitivity of a target.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Target is a tested endpoint, identified by (host, port, protocol).
// Port 0 means "scheme default" and is what the store keeps when the
// observed port equals 80 for http or 443 for https. Targets are
// usually auto-discovered by the logging pipeline the first time a
// request is sent to them.
type Target struct {
	ID               string       `json:"id"`
	Host             string       `json:"host"`
	Port             int          `json:"port,omitempty"`
	Protocol         string       `json:"protocol"` // http or https
	Title            string       `json:"title,omitempty"`
	Status           TargetStatus `json:"status"`
	RiskLevel        RiskLevel    `json:"risk_level"`
	Notes            string       `json:"notes,omitempty"`
	CurrentContextID string       `json:"current_context_id,omitempty"`
	FirstSeen        time.Time    `json:"first_seen"`
	LastActivity     time.Time    `json:"last_activity"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// DefaultPort returns the scheme default port, 0 for unknown schemes.
func DefaultPort(protocol string) int {
	switch protocol {
	case "http":
		return 80
	case "https":
		return 443
	}
	return 0
}

// Endpoint returns the canonical base URL of the target. The port is
// omitted when it is the scheme default.
func (t *Target) Endpoint() string {
	if t.Port == 0 {
		return fmt.Sprintf("%s://%s", t.Protocol, t.Host)
	}
	return fmt.Sprintf("%s://%s:%d", t.Protocol, t.Host, t.Port)
}

// TargetSummary aggregates activity counts for a single target.
type TargetSummary struct {
	Target         *Target `json:"target"`
	RequestCount   int     `json:"request_count"`
	ContextVersion int     `json:"context_version"` // 0 when no context yet
	ContextExcerpt string  `json:"context_excerpt,omitempty"`
	ActionCount    int     `json:"action_count"`
}

// ── Target contexts ─────────────────────────────────────────

// Context authorship and change-type vocabulary.
const (
	CreatedByUser   = "user"
	CreatedByAgent  = "agent"
	CreatedBySystem = "system"

	ChangeInitial     = "initial"
	ChangeUserEdit    = "user_edit"
	ChangeAgentUpdate = "agent_update"
	ChangeRollback    = "rollback"
)

// TargetContext is one immutable version in a target's knowledge chain.
// Versions are strictly monotone per target and linked through
// ParentVersionID; the target's CurrentContextID always points at the
// newest version. UserContext and AgentContext may each be empty, but
// never both.
type TargetContext struct {
	ID              string    `json:"id"`
	TargetID        string    `json:"target_id"`
	Version         int       `json:"version"`
	ParentVersionID string    `json:"parent_version_id,omitempty"`
	UserContext     string    `json:"user_context,omitempty"`
	AgentContext    string    `json:"agent_context,omitempty"`
	ChangeType      string    `json:"change_type"`
	ChangeSummary   string    `json:"change_summary,omitempty"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// ── Missions ────────────────────────────────────────────────

// MissionStatus follows the mission lifecycle state machine.
type MissionStatus string

const (
	MissionActive    MissionStatus = "active"
	MissionPaused    MissionStatus = "paused"
	MissionCompleted MissionStatus = "completed"
	MissionFailed    MissionStatus = "failed"
)

// ValidMissionTransition reports whether a status change is allowed.
// Terminal states (completed, failed) accept no further transitions.
func ValidMissionTransition(from, to MissionStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case MissionActive:
		return to == MissionPaused || to == MissionCompleted || to == MissionFailed
	case MissionPaused:
		return to == MissionActive || to == MissionCompleted || to == MissionFailed
	}
	return false
}

// Mission is a testing engagement with a goal, an optional hypothesis,
// and a scope of in/out host patterns. Goal and hypothesis carry
// embeddings for semantic search.
type Mission struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Goal        string         `json:"goal"`
	MissionType string         `json:"mission_type,omitempty"`
	Hypothesis  string         `json:"hypothesis,omitempty"`
	Scope       map[string]any `json:"scope,omitempty"`
	Status      MissionStatus  `json:"status"`
	Context     map[string]any `json:"context,omitempty"`
	TargetIDs   []string       `json:"target_ids,omitempty"`

	GoalEmbedding       []float32 `json:"-"`
	HypothesisEmbedding []float32 `json:"-"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// MissionAction records one technique attempt within a mission.
// Success nil means the outcome is unknown. The action embedding
// derives from the technique, the result embedding from the result
// text; either enables cross-mission similarity search.
type MissionAction struct {
	ID         string         `json:"id"`
	MissionID  string         `json:"mission_id"`
	TargetID   string         `json:"target_id,omitempty"`
	Technique  string         `json:"technique"`
	Hypothesis string         `json:"hypothesis,omitempty"`
	Payload    string         `json:"payload,omitempty"`
	Result     string         `json:"result"`
	Success    *bool          `json:"success,omitempty"`
	Learning   string         `json:"learning,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`

	ActionEmbedding []float32 `json:"-"`
	ResultEmbedding []float32 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// ActionMatch is a similarity-search hit against recorded actions.
type ActionMatch struct {
	Action *MissionAction `json:"action"`
	Score  float64        `json:"score"` // cosine similarity, 1.0 = identical
}

// TechniqueStat aggregates outcomes per technique name.
type TechniqueStat struct {
	Technique       string     `json:"technique"`
	Uses            int        `json:"uses"`
	Successes       int        `json:"successes"`
	Failures        int        `json:"failures"`
	SuccessRate     float64    `json:"success_rate"` // successes / decided outcomes
	LastUsed        *time.Time `json:"last_used,omitempty"`
	FailedLearnings []string   `json:"failed_learnings,omitempty"`
}

// ── HTTP requests ───────────────────────────────────────────

// HTTPRequest is one logged request/response exchange. Bodies are
// truncated before storage with the original byte sizes preserved, and
// sensitive headers on both sides are redacted. Request cookies are
// stored as sent: they are the test payload, not a secret to hide.
type HTTPRequest struct {
	ID              string            `json:"id"`
	TargetID        string            `json:"target_id,omitempty"`
	MissionID       string            `json:"mission_id,omitempty"`
	ActionID        string            `json:"action_id,omitempty"`
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	FinalURL        string            `json:"final_url,omitempty"`
	Host            string            `json:"host"`
	Path            string            `json:"path"`
	Query           string            `json:"query,omitempty"`
	RequestHeaders  map[string]string `json:"request_headers,omitempty"`
	RequestCookies  map[string]string `json:"request_cookies,omitempty"`
	RequestBody     string            `json:"request_body,omitempty"`
	RequestSize     int64             `json:"request_size,omitempty"`
	ResponseStatus  int               `json:"response_status,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`
	ResponseSize    int64             `json:"response_size,omitempty"`
	DurationMS      int64             `json:"duration_ms,omitempty"`
	Error           string            `json:"error,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// ── Technique library ───────────────────────────────────────

// LibraryEntry is a reusable technique in the shared knowledge library.
type LibraryEntry struct {
	ID           string         `json:"id"`
	Category     string         `json:"category"`
	Technique    string         `json:"technique"`
	Description  string         `json:"description,omitempty"`
	Content      string         `json:"content"`
	Embedding    []float32      `json:"-"`
	SuccessCount int            `json:"success_count"`
	FailureCount int            `json:"failure_count"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// SuccessRate returns successes over decided outcomes, 0 when undecided.
func (e *LibraryEntry) SuccessRate() float64 {
	total := e.SuccessCount + e.FailureCount
	if total == 0 {
		return 0
	}
	return float64(e.SuccessCount) / float64(total)
}

// LibraryMatch is a similarity-search hit against the library.
type LibraryMatch struct {
	Entry *LibraryEntry `json:"entry"`
	Score float64       `json:"score"`
}

// LibraryStats aggregates the library per category.
type LibraryStats struct {
	TotalEntries int                 `json:"total_entries"`
	Categories   map[string]CatStats `json:"categories"`
}

// CatStats is the per-category slice of LibraryStats.
type CatStats struct {
	Entries        int     `json:"entries"`
	AvgSuccessRate float64 `json:"avg_success_rate"`
}
