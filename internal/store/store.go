// Package store provides the storage interface and implementations for
// Probegate. Production runs on PostgreSQL with pgvector; the in-memory
// implementation backs tests and zero-dependency local use.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/probegate/probegate/pkg/models"
)

// Store is the primary storage interface. All tool and pipeline code
// depends on this interface, making it easy to swap between in-memory
// (tests) and PostgreSQL (production) implementations.
type Store interface {
	TargetStore
	ContextStore
	MissionStore
	ActionStore
	RequestStore
	LibraryStore

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error

	// Migrate creates the schema, including the pgvector extension.
	Migrate(ctx context.Context) error
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound indicates the requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// ErrConflict indicates a write lost a race or failed an optimistic
// version check. The context chain never forks; one of two concurrent
// appends always gets this error.
type ErrConflict struct {
	Entity string
	Detail string
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Entity, e.Detail)
}

// ErrDuplicate indicates a library add matched an existing entry in the
// same category at or above the duplicate threshold.
type ErrDuplicate struct {
	ExistingID string
	Score      float64
}

func (e ErrDuplicate) Error() string {
	return fmt.Sprintf("near-duplicate of library entry %s (similarity %.2f)", e.ExistingID, e.Score)
}

// ErrStoreUnavailable signals that no storage backend is configured.
// Tools that depend on persistence surface this to the caller; the HTTP
// executor keeps working without logging.
var ErrStoreUnavailable = errors.New("storage backend not configured")

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// DuplicateThreshold is the cosine similarity at or above which a new
// library entry is rejected as a duplicate of an existing one.
const DuplicateThreshold = 0.9

// ── Target Store ────────────────────────────────────────────

// TargetFilter defines optional filters for listing targets.
type TargetFilter struct {
	Status       models.TargetStatus
	RiskLevel    models.RiskLevel
	HostContains string // case-insensitive substring on host
	Limit        int
	Offset       int
}

type TargetStore interface {
	CreateTarget(ctx context.Context, t *models.Target) error
	GetTarget(ctx context.Context, id string) (*models.Target, error)
	GetTargetByEndpoint(ctx context.Context, host string, port int, protocol string) (*models.Target, error)

	// UpsertTarget finds or creates the target for an endpoint and bumps
	// last_activity. Returns true when a new target was created.
	UpsertTarget(ctx context.Context, t *models.Target) (*models.Target, bool, error)

	UpdateTarget(ctx context.Context, t *models.Target) error
	ListTargets(ctx context.Context, f TargetFilter) ([]models.Target, error)
	TargetSummary(ctx context.Context, id string) (*models.TargetSummary, error)

	// TouchTarget bumps last_activity without rewriting the row.
	TouchTarget(ctx context.Context, id string, at time.Time) error
}

// ── Context Store ───────────────────────────────────────────

// ContextStore manages the append-only, versioned knowledge chain per
// target. AppendContext assigns version and parent linkage itself and
// atomically advances the target's head pointer.
type ContextStore interface {
	// AppendContext appends a new version. expectedVersion >= 0 enables
	// an optimistic check against the current head version; pass -1 to
	// skip the check. Concurrent appends serialize or return ErrConflict.
	AppendContext(ctx context.Context, tc *models.TargetContext, expectedVersion int) error

	GetCurrentContext(ctx context.Context, targetID string) (*models.TargetContext, error)
	GetContextVersion(ctx context.Context, targetID string, version int) (*models.TargetContext, error)

	// ContextHistory returns versions newest first, at most limit.
	ContextHistory(ctx context.Context, targetID string, limit int) ([]models.TargetContext, error)
}

// ── Mission Store ───────────────────────────────────────────

// MissionFilter defines optional filters for listing missions.
type MissionFilter struct {
	Status models.MissionStatus
	Limit  int
}

type MissionStore interface {
	CreateMission(ctx context.Context, m *models.Mission) error
	GetMission(ctx context.Context, id string) (*models.Mission, error)
	UpdateMission(ctx context.Context, m *models.Mission) error
	ListMissions(ctx context.Context, f MissionFilter) ([]models.Mission, error)
	AttachMissionTarget(ctx context.Context, missionID, targetID string) error
}

// ── Action Store ────────────────────────────────────────────

// TechniqueFilter narrows an aggregated technique search.
type TechniqueFilter struct {
	SuccessOnly        bool
	MissionType        string
	MinSuccessRate     float64
	TechniqueSubstring string // case-insensitive
	MinUses            int
	Limit              int
}

type ActionStore interface {
	RecordAction(ctx context.Context, a *models.MissionAction) error
	ListActions(ctx context.Context, missionID string, limit int) ([]models.MissionAction, error)

	// LatestAction returns the most recent action of a mission, or
	// ErrNotFound when the mission has none yet.
	LatestAction(ctx context.Context, missionID string) (*models.MissionAction, error)

	// LinkRecentRequests points the mission's n most recent logged
	// requests at the action and returns how many were linked.
	LinkRecentRequests(ctx context.Context, actionID, missionID string, n int) (int, error)

	// SimilarActions searches recorded actions by embedding. Empty
	// missionID searches across all missions.
	SimilarActions(ctx context.Context, embedding []float32, missionID string, limit int, minScore float64) ([]models.ActionMatch, error)

	// TechniqueStats aggregates outcomes per technique. Empty missionID
	// aggregates globally.
	TechniqueStats(ctx context.Context, missionID string) ([]models.TechniqueStat, error)

	// SearchTechniques aggregates outcomes per technique across all
	// missions and applies the filter. Results are ordered by success
	// rate, then usage.
	SearchTechniques(ctx context.Context, f TechniqueFilter) ([]models.TechniqueStat, error)

	// TechniqueDetail returns the aggregate for one technique name,
	// including last use and learnings from failed attempts.
	TechniqueDetail(ctx context.Context, technique string) (*models.TechniqueStat, error)
}

// ── Request Store ───────────────────────────────────────────

// RequestFilter defines optional filters for searching logged requests.
type RequestFilter struct {
	TargetID     string
	MissionID    string
	Method       string
	Status       int // exact response status, 0 = any
	HostContains string
	PathContains string
	Tag          string
	Limit        int
	Offset       int
}

type RequestStore interface {
	InsertRequest(ctx context.Context, r *models.HTTPRequest) error
	GetRequest(ctx context.Context, id string) (*models.HTTPRequest, error)
	ListRequestsByTarget(ctx context.Context, targetID string, limit int) ([]models.HTTPRequest, error)

	// RecentRequests returns requests attributed to a mission, directly
	// or through a linked action, newest first.
	RecentRequests(ctx context.Context, missionID string, limit int) ([]models.HTTPRequest, error)

	// LinkRequestToAction points a logged request at an action.
	// Relinking to the same action is a no-op.
	LinkRequestToAction(ctx context.Context, requestID, actionID string) error

	SearchRequests(ctx context.Context, f RequestFilter) ([]models.HTTPRequest, error)
}

// ── Library Store ───────────────────────────────────────────

type LibraryStore interface {
	// AddLibraryEntry inserts a new entry. When the entry carries an
	// embedding, entries in the same category at or above
	// DuplicateThreshold similarity cause ErrDuplicate.
	AddLibraryEntry(ctx context.Context, e *models.LibraryEntry) error

	GetLibraryEntry(ctx context.Context, id string) (*models.LibraryEntry, error)
	UpdateLibraryEntry(ctx context.Context, e *models.LibraryEntry) error

	// SearchLibrary searches by embedding, optionally scoped to a
	// category. Results are ordered by descending similarity.
	SearchLibrary(ctx context.Context, embedding []float32, category string, limit int, minScore float64) ([]models.LibraryMatch, error)

	// RecordLibraryOutcome increments the success or failure counter and
	// returns the updated entry.
	RecordLibraryOutcome(ctx context.Context, id string, success bool) (*models.LibraryEntry, error)

	LibraryStats(ctx context.Context) (*models.LibraryStats, error)
}
