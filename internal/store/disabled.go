package store

import (
	"context"
	"time"

	"github.com/probegate/probegate/pkg/models"
)

// DisabledStore is the driver used when no DATABASE_URL is configured.
// Every operation fails with ErrStoreUnavailable so tools can surface a
// clear store_unavailable error, while the HTTP executor keeps serving
// requests without logging.
type DisabledStore struct{}

// NewDisabledStore returns the no-backend store.
func NewDisabledStore() *DisabledStore { return &DisabledStore{} }

func (DisabledStore) Ping(context.Context) error    { return ErrStoreUnavailable }
func (DisabledStore) Close() error                  { return nil }
func (DisabledStore) Migrate(context.Context) error { return nil }

func (DisabledStore) CreateTarget(context.Context, *models.Target) error { return ErrStoreUnavailable }
func (DisabledStore) GetTarget(context.Context, string) (*models.Target, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) GetTargetByEndpoint(context.Context, string, int, string) (*models.Target, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) UpsertTarget(context.Context, *models.Target) (*models.Target, bool, error) {
	return nil, false, ErrStoreUnavailable
}
func (DisabledStore) UpdateTarget(context.Context, *models.Target) error { return ErrStoreUnavailable }
func (DisabledStore) ListTargets(context.Context, TargetFilter) ([]models.Target, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) TargetSummary(context.Context, string) (*models.TargetSummary, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) TouchTarget(context.Context, string, time.Time) error {
	return ErrStoreUnavailable
}

func (DisabledStore) AppendContext(context.Context, *models.TargetContext, int) error {
	return ErrStoreUnavailable
}
func (DisabledStore) GetCurrentContext(context.Context, string) (*models.TargetContext, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) GetContextVersion(context.Context, string, int) (*models.TargetContext, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) ContextHistory(context.Context, string, int) ([]models.TargetContext, error) {
	return nil, ErrStoreUnavailable
}

func (DisabledStore) CreateMission(context.Context, *models.Mission) error {
	return ErrStoreUnavailable
}
func (DisabledStore) GetMission(context.Context, string) (*models.Mission, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) UpdateMission(context.Context, *models.Mission) error {
	return ErrStoreUnavailable
}
func (DisabledStore) ListMissions(context.Context, MissionFilter) ([]models.Mission, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) AttachMissionTarget(context.Context, string, string) error {
	return ErrStoreUnavailable
}

func (DisabledStore) RecordAction(context.Context, *models.MissionAction) error {
	return ErrStoreUnavailable
}
func (DisabledStore) ListActions(context.Context, string, int) ([]models.MissionAction, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) LatestAction(context.Context, string) (*models.MissionAction, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) LinkRecentRequests(context.Context, string, string, int) (int, error) {
	return 0, ErrStoreUnavailable
}
func (DisabledStore) SimilarActions(context.Context, []float32, string, int, float64) ([]models.ActionMatch, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) TechniqueStats(context.Context, string) ([]models.TechniqueStat, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) SearchTechniques(context.Context, TechniqueFilter) ([]models.TechniqueStat, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) TechniqueDetail(context.Context, string) (*models.TechniqueStat, error) {
	return nil, ErrStoreUnavailable
}

func (DisabledStore) InsertRequest(context.Context, *models.HTTPRequest) error {
	return ErrStoreUnavailable
}
func (DisabledStore) GetRequest(context.Context, string) (*models.HTTPRequest, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) ListRequestsByTarget(context.Context, string, int) ([]models.HTTPRequest, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) RecentRequests(context.Context, string, int) ([]models.HTTPRequest, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) LinkRequestToAction(context.Context, string, string) error {
	return ErrStoreUnavailable
}
func (DisabledStore) SearchRequests(context.Context, RequestFilter) ([]models.HTTPRequest, error) {
	return nil, ErrStoreUnavailable
}

func (DisabledStore) AddLibraryEntry(context.Context, *models.LibraryEntry) error {
	return ErrStoreUnavailable
}
func (DisabledStore) GetLibraryEntry(context.Context, string) (*models.LibraryEntry, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) UpdateLibraryEntry(context.Context, *models.LibraryEntry) error {
	return ErrStoreUnavailable
}
func (DisabledStore) SearchLibrary(context.Context, []float32, string, int, float64) ([]models.LibraryMatch, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) RecordLibraryOutcome(context.Context, string, bool) (*models.LibraryEntry, error) {
	return nil, ErrStoreUnavailable
}
func (DisabledStore) LibraryStats(context.Context) (*models.LibraryStats, error) {
	return nil, ErrStoreUnavailable
}
