package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/probegate/probegate/pkg/models"
)

// MemoryStore implements Store with in-process maps. It backs the test
// suite and the zero-dependency "memory" driver; similarity search runs
// the same cosine metric pgvector uses, computed in Go.
type MemoryStore struct {
	mu sync.RWMutex

	targets  map[string]*models.Target
	contexts map[string][]*models.TargetContext // keyed by target id, ascending version
	missions map[string]*models.Mission
	actions  map[string]*models.MissionAction
	requests map[string]*models.HTTPRequest
	library  map[string]*models.LibraryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		targets:  make(map[string]*models.Target),
		contexts: make(map[string][]*models.TargetContext),
		missions: make(map[string]*models.Mission),
		actions:  make(map[string]*models.MissionAction),
		requests: make(map[string]*models.HTTPRequest),
		library:  make(map[string]*models.LibraryEntry),
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error    { return nil }
func (s *MemoryStore) Close() error                      { return nil }
func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

// ── Target Store ────────────────────────────────────────────

func (s *MemoryStore) CreateTarget(ctx context.Context, t *models.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prepareTarget(t)
	for _, existing := range s.targets {
		if existing.Host == t.Host && existing.Port == t.Port && existing.Protocol == t.Protocol {
			return ErrConflict{Entity: "target", Detail: t.Endpoint() + " already exists"}
		}
	}
	cp := *t
	s.targets[t.ID] = &cp
	return nil
}

func (s *MemoryStore) GetTarget(ctx context.Context, id string) (*models.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[id]
	if !ok {
		return nil, ErrNotFound{Entity: "target", Key: id}
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) GetTargetByEndpoint(ctx context.Context, host string, port int, protocol string) (*models.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	host, port = normalizeEndpoint(host, port, protocol)
	for _, t := range s.targets {
		if t.Host == host && t.Port == port && t.Protocol == protocol {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound{Entity: "target", Key: fmt.Sprintf("%s://%s:%d", protocol, host, port)}
}

func (s *MemoryStore) UpsertTarget(ctx context.Context, t *models.Target) (*models.Target, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	t.Host, t.Port = normalizeEndpoint(t.Host, t.Port, t.Protocol)
	for _, existing := range s.targets {
		if existing.Host == t.Host && existing.Port == t.Port && existing.Protocol == t.Protocol {
			existing.LastActivity = now
			existing.UpdatedAt = now
			cp := *existing
			return &cp, false, nil
		}
	}
	prepareTarget(t)
	cp := *t
	s.targets[t.ID] = &cp
	res := *t
	return &res, true, nil
}

func (s *MemoryStore) UpdateTarget(ctx context.Context, t *models.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.targets[t.ID]
	if !ok {
		return ErrNotFound{Entity: "target", Key: t.ID}
	}
	existing.Title = t.Title
	existing.Status = t.Status
	existing.RiskLevel = t.RiskLevel
	existing.Notes = t.Notes
	existing.UpdatedAt = time.Now().UTC()
	t.UpdatedAt = existing.UpdatedAt
	return nil
}

func (s *MemoryStore) TouchTarget(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.targets[id]; ok {
		t.LastActivity = at
		t.UpdatedAt = at
	}
	return nil
}

func (s *MemoryStore) ListTargets(ctx context.Context, f TargetFilter) ([]models.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Target
	for _, t := range s.targets {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.RiskLevel != "" && t.RiskLevel != f.RiskLevel {
			continue
		}
		if f.HostContains != "" && !strings.Contains(strings.ToLower(t.Host), strings.ToLower(f.HostContains)) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	out = window(out, f.Offset, f.Limit, 50)
	return out, nil
}

func (s *MemoryStore) TargetSummary(ctx context.Context, id string) (*models.TargetSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[id]
	if !ok {
		return nil, ErrNotFound{Entity: "target", Key: id}
	}
	cp := *t
	sum := &models.TargetSummary{Target: &cp}
	for _, r := range s.requests {
		if r.TargetID == id {
			sum.RequestCount++
		}
	}
	for _, a := range s.actions {
		if a.TargetID == id {
			sum.ActionCount++
		}
	}
	if chain := s.contexts[id]; len(chain) > 0 {
		head := chain[len(chain)-1]
		sum.ContextVersion = head.Version
		sum.ContextExcerpt = contextExcerpt(head)
	}
	return sum, nil
}

// ── Context Store ───────────────────────────────────────────

func (s *MemoryStore) AppendContext(ctx context.Context, tc *models.TargetContext, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.targets[tc.TargetID]
	if !ok {
		return ErrNotFound{Entity: "target", Key: tc.TargetID}
	}
	chain := s.contexts[tc.TargetID]
	headVersion := 0
	if len(chain) > 0 {
		headVersion = chain[len(chain)-1].Version
	}
	if expectedVersion >= 0 && expectedVersion != headVersion {
		return ErrConflict{
			Entity: "target_context",
			Detail: fmt.Sprintf("expected version %d, head is %d", expectedVersion, headVersion),
		}
	}
	tc.ID = uuid.NewString()
	tc.Version = headVersion + 1
	tc.ParentVersionID = target.CurrentContextID
	tc.CreatedAt = time.Now().UTC()
	cp := *tc
	s.contexts[tc.TargetID] = append(chain, &cp)
	target.CurrentContextID = tc.ID
	target.UpdatedAt = tc.CreatedAt
	return nil
}

func (s *MemoryStore) GetCurrentContext(ctx context.Context, targetID string) (*models.TargetContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.contexts[targetID]
	if len(chain) == 0 {
		return nil, ErrNotFound{Entity: "target_context", Key: targetID}
	}
	cp := *chain[len(chain)-1]
	return &cp, nil
}

func (s *MemoryStore) GetContextVersion(ctx context.Context, targetID string, version int) (*models.TargetContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tc := range s.contexts[targetID] {
		if tc.Version == version {
			cp := *tc
			return &cp, nil
		}
	}
	return nil, ErrNotFound{Entity: "target_context", Key: fmt.Sprintf("%s@v%d", targetID, version)}
}

func (s *MemoryStore) ContextHistory(ctx context.Context, targetID string, limit int) ([]models.TargetContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	chain := s.contexts[targetID]
	var out []models.TargetContext
	for i := len(chain) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *chain[i])
	}
	return out, nil
}

// ── Mission Store ───────────────────────────────────────────

func (s *MemoryStore) CreateMission(ctx context.Context, m *models.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = models.MissionActive
	}
	if m.MissionType == "" {
		m.MissionType = "general"
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	cp := *m
	s.missions[m.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMission(ctx context.Context, id string) (*models.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.missions[id]
	if !ok {
		return nil, ErrNotFound{Entity: "mission", Key: id}
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) UpdateMission(ctx context.Context, m *models.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.missions[m.ID]; !ok {
		return ErrNotFound{Entity: "mission", Key: m.ID}
	}
	m.UpdatedAt = time.Now().UTC()
	cp := *m
	s.missions[m.ID] = &cp
	return nil
}

func (s *MemoryStore) ListMissions(ctx context.Context, f MissionFilter) ([]models.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Mission
	for _, m := range s.missions {
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	out = window(out, 0, f.Limit, 50)
	return out, nil
}

func (s *MemoryStore) AttachMissionTarget(ctx context.Context, missionID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.missions[missionID]
	if !ok {
		return ErrNotFound{Entity: "mission", Key: missionID}
	}
	for _, id := range m.TargetIDs {
		if id == targetID {
			return nil
		}
	}
	m.TargetIDs = append(m.TargetIDs, targetID)
	return nil
}

// ── Action Store ────────────────────────────────────────────

func (s *MemoryStore) RecordAction(ctx context.Context, a *models.MissionAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	cp := *a
	s.actions[a.ID] = &cp
	return nil
}

func (s *MemoryStore) ListActions(ctx context.Context, missionID string, limit int) ([]models.MissionAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var out []models.MissionAction
	for _, a := range s.actions {
		if a.MissionID == missionID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) LinkRecentRequests(ctx context.Context, actionID, missionID string, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return 0, nil
	}
	if _, ok := s.actions[actionID]; !ok {
		return 0, ErrNotFound{Entity: "mission_action", Key: actionID}
	}
	var recent []*models.HTTPRequest
	for _, r := range s.requests {
		if r.MissionID == missionID {
			recent = append(recent, r)
		}
	}
	sort.Slice(recent, func(i, j int) bool {
		if !recent[i].CreatedAt.Equal(recent[j].CreatedAt) {
			return recent[i].CreatedAt.After(recent[j].CreatedAt)
		}
		return recent[i].ID > recent[j].ID
	})
	if len(recent) > n {
		recent = recent[:n]
	}
	for _, r := range recent {
		r.ActionID = actionID
	}
	return len(recent), nil
}

func (s *MemoryStore) LatestAction(ctx context.Context, missionID string) (*models.MissionAction, error) {
	actions, err := s.ListActions(ctx, missionID, 1)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, ErrNotFound{Entity: "mission_action", Key: missionID}
	}
	return &actions[0], nil
}

func (s *MemoryStore) SimilarActions(ctx context.Context, embedding []float32, missionID string, limit int, minScore float64) ([]models.ActionMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	var out []models.ActionMatch
	for _, a := range s.actions {
		if missionID != "" && a.MissionID != missionID {
			continue
		}
		if len(a.ActionEmbedding) == 0 {
			continue
		}
		score := cosineSimilarity(embedding, a.ActionEmbedding)
		if score < minScore {
			continue
		}
		cp := *a
		out = append(out, models.ActionMatch{Action: &cp, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) TechniqueStats(ctx context.Context, missionID string) ([]models.TechniqueStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byName := map[string]*models.TechniqueStat{}
	for _, a := range s.actions {
		if missionID != "" && a.MissionID != missionID {
			continue
		}
		st, ok := byName[a.Technique]
		if !ok {
			st = &models.TechniqueStat{Technique: a.Technique}
			byName[a.Technique] = st
		}
		st.Uses++
		if st.LastUsed == nil || a.CreatedAt.After(*st.LastUsed) {
			at := a.CreatedAt
			st.LastUsed = &at
		}
		if a.Success != nil {
			if *a.Success {
				st.Successes++
			} else {
				st.Failures++
			}
		}
	}
	var out []models.TechniqueStat
	for _, st := range byName {
		if decided := st.Successes + st.Failures; decided > 0 {
			st.SuccessRate = float64(st.Successes) / float64(decided)
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Uses != out[j].Uses {
			return out[i].Uses > out[j].Uses
		}
		return out[i].Technique < out[j].Technique
	})
	return out, nil
}

func (s *MemoryStore) SearchTechniques(ctx context.Context, f TechniqueFilter) ([]models.TechniqueStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.MinUses <= 0 {
		f.MinUses = 1
	}
	byName := map[string]*models.TechniqueStat{}
	for _, a := range s.actions {
		if f.MissionType != "" {
			m, ok := s.missions[a.MissionID]
			if !ok || m.MissionType != f.MissionType {
				continue
			}
		}
		if f.TechniqueSubstring != "" && !strings.Contains(strings.ToLower(a.Technique), strings.ToLower(f.TechniqueSubstring)) {
			continue
		}
		st, ok := byName[a.Technique]
		if !ok {
			st = &models.TechniqueStat{Technique: a.Technique}
			byName[a.Technique] = st
		}
		st.Uses++
		if st.LastUsed == nil || a.CreatedAt.After(*st.LastUsed) {
			at := a.CreatedAt
			st.LastUsed = &at
		}
		if a.Success != nil {
			if *a.Success {
				st.Successes++
			} else {
				st.Failures++
			}
		}
	}
	var out []models.TechniqueStat
	for _, st := range byName {
		if st.Uses < f.MinUses {
			continue
		}
		if decided := st.Successes + st.Failures; decided > 0 {
			st.SuccessRate = float64(st.Successes) / float64(decided)
		}
		if f.SuccessOnly && st.Successes == 0 {
			continue
		}
		if st.SuccessRate < f.MinSuccessRate {
			continue
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SuccessRate != out[j].SuccessRate {
			return out[i].SuccessRate > out[j].SuccessRate
		}
		if out[i].Uses != out[j].Uses {
			return out[i].Uses > out[j].Uses
		}
		return out[i].Technique < out[j].Technique
	})
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) TechniqueDetail(ctx context.Context, technique string) (*models.TechniqueStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := &models.TechniqueStat{Technique: technique}
	var failed []*models.MissionAction
	for _, a := range s.actions {
		if a.Technique != technique {
			continue
		}
		st.Uses++
		if st.LastUsed == nil || a.CreatedAt.After(*st.LastUsed) {
			at := a.CreatedAt
			st.LastUsed = &at
		}
		if a.Success != nil {
			if *a.Success {
				st.Successes++
			} else {
				st.Failures++
				if a.Learning != "" {
					failed = append(failed, a)
				}
			}
		}
	}
	if st.Uses == 0 {
		return nil, ErrNotFound{Entity: "technique", Key: technique}
	}
	if decided := st.Successes + st.Failures; decided > 0 {
		st.SuccessRate = float64(st.Successes) / float64(decided)
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].CreatedAt.After(failed[j].CreatedAt) })
	for i, a := range failed {
		if i == 5 {
			break
		}
		st.FailedLearnings = append(st.FailedLearnings, a.Learning)
	}
	return st, nil
}

// ── Request Store ───────────────────────────────────────────

func (s *MemoryStore) InsertRequest(ctx context.Context, r *models.HTTPRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, id string) (*models.HTTPRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound{Entity: "http_request", Key: id}
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListRequestsByTarget(ctx context.Context, targetID string, limit int) ([]models.HTTPRequest, error) {
	return s.SearchRequests(ctx, RequestFilter{TargetID: targetID, Limit: limit})
}

func (s *MemoryStore) LinkRequestToAction(ctx context.Context, requestID, actionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return ErrNotFound{Entity: "http_request", Key: requestID}
	}
	if _, ok := s.actions[actionID]; !ok {
		return ErrNotFound{Entity: "mission_action", Key: actionID}
	}
	r.ActionID = actionID
	return nil
}

func (s *MemoryStore) RecentRequests(ctx context.Context, missionID string, limit int) ([]models.HTTPRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	actionIDs := map[string]bool{}
	for _, a := range s.actions {
		if a.MissionID == missionID {
			actionIDs[a.ID] = true
		}
	}
	var out []models.HTTPRequest
	for _, r := range s.requests {
		if r.MissionID == missionID || (r.ActionID != "" && actionIDs[r.ActionID]) {
			out = append(out, *r)
		}
	}
	sortRequests(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SearchRequests(ctx context.Context, f RequestFilter) ([]models.HTTPRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.HTTPRequest
	for _, r := range s.requests {
		if f.TargetID != "" && r.TargetID != f.TargetID {
			continue
		}
		if f.MissionID != "" && r.MissionID != f.MissionID {
			continue
		}
		if f.Method != "" && !strings.EqualFold(r.Method, f.Method) {
			continue
		}
		if f.Status != 0 && r.ResponseStatus != f.Status {
			continue
		}
		if f.HostContains != "" && !strings.Contains(strings.ToLower(r.Host), strings.ToLower(f.HostContains)) {
			continue
		}
		if f.PathContains != "" && !strings.Contains(strings.ToLower(r.Path), strings.ToLower(f.PathContains)) {
			continue
		}
		if f.Tag != "" && !containsStr(r.Tags, f.Tag) {
			continue
		}
		out = append(out, *r)
	}
	sortRequests(out)
	out = window(out, f.Offset, f.Limit, 50)
	return out, nil
}

// ── Library Store ───────────────────────────────────────────

func (s *MemoryStore) AddLibraryEntry(ctx context.Context, e *models.LibraryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(e.Embedding) > 0 {
		for _, existing := range s.library {
			if existing.Category != e.Category || len(existing.Embedding) == 0 {
				continue
			}
			if score := cosineSimilarity(e.Embedding, existing.Embedding); score >= DuplicateThreshold {
				return ErrDuplicate{ExistingID: existing.ID, Score: score}
			}
		}
	}
	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = now
	e.UpdatedAt = now
	cp := *e
	s.library[e.ID] = &cp
	return nil
}

func (s *MemoryStore) GetLibraryEntry(ctx context.Context, id string) (*models.LibraryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.library[id]
	if !ok {
		return nil, ErrNotFound{Entity: "library_entry", Key: id}
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) UpdateLibraryEntry(ctx context.Context, e *models.LibraryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.library[e.ID]
	if !ok {
		return ErrNotFound{Entity: "library_entry", Key: e.ID}
	}
	existing.Technique = e.Technique
	existing.Description = e.Description
	existing.Content = e.Content
	existing.Metadata = e.Metadata
	existing.UpdatedAt = time.Now().UTC()
	e.UpdatedAt = existing.UpdatedAt
	return nil
}

func (s *MemoryStore) SearchLibrary(ctx context.Context, embedding []float32, category string, limit int, minScore float64) ([]models.LibraryMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	var out []models.LibraryMatch
	for _, e := range s.library {
		if category != "" && e.Category != category {
			continue
		}
		if len(e.Embedding) == 0 {
			continue
		}
		score := cosineSimilarity(embedding, e.Embedding)
		if score < minScore {
			continue
		}
		cp := *e
		out = append(out, models.LibraryMatch{Entry: &cp, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) RecordLibraryOutcome(ctx context.Context, id string, success bool) (*models.LibraryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.library[id]
	if !ok {
		return nil, ErrNotFound{Entity: "library_entry", Key: id}
	}
	if success {
		e.SuccessCount++
	} else {
		e.FailureCount++
	}
	e.UpdatedAt = time.Now().UTC()
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) LibraryStats(ctx context.Context) (*models.LibraryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &models.LibraryStats{Categories: map[string]models.CatStats{}}
	sums := map[string]float64{}
	decided := map[string]int{}
	for _, e := range s.library {
		cs := stats.Categories[e.Category]
		cs.Entries++
		stats.Categories[e.Category] = cs
		stats.TotalEntries++
		if e.SuccessCount+e.FailureCount > 0 {
			sums[e.Category] += e.SuccessRate()
			decided[e.Category]++
		}
	}
	for cat, cs := range stats.Categories {
		if n := decided[cat]; n > 0 {
			cs.AvgSuccessRate = sums[cat] / float64(n)
			stats.Categories[cat] = cs
		}
	}
	return stats, nil
}

// ── helpers ─────────────────────────────────────────────────

// normalizeEndpoint lowercases the host and drops the port when it is
// the scheme default, so http://HOST:80 and http://host identify the
// same target.
func normalizeEndpoint(host string, port int, protocol string) (string, int) {
	host = strings.ToLower(host)
	if port == models.DefaultPort(protocol) {
		port = 0
	}
	return host, port
}

// contextExcerpt returns a short preview of a context version, agent
// notes first since those are usually the freshest findings.
func contextExcerpt(tc *models.TargetContext) string {
	text := tc.AgentContext
	if text == "" {
		text = tc.UserContext
	}
	const max = 240
	if len(text) > max {
		return text[:max] + "…"
	}
	return text
}

func sortRequests(out []models.HTTPRequest) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func window[T any](items []T, offset, limit, defaultLimit int) []T {
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
