package risk

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"

	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
	"github.com/ecocomply/compliance-engine/internal/domain/obligation"
	"github.com/ecocomply/compliance-engine/internal/domain/risk"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
)

// Fakes embed the port interface and override only what the service calls;
// anything else panics loudly.

type fakeScores struct {
	risk.Repository
	mu        sync.Mutex
	snapshots map[string]*risk.Score
	history   []risk.HistoryPoint
}

func newFakeScores() *fakeScores {
	return &fakeScores{snapshots: make(map[string]*risk.Score)}
}

func snapKey(siteID common.ID, t risk.ScoreType) string {
	return siteID.String() + "/" + string(t)
}

func (f *fakeScores) ReplaceSnapshot(_ context.Context, s *risk.Score) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[snapKey(s.SiteID, s.Type)] = s
	return nil
}

func (f *fakeScores) FindSnapshot(_ context.Context, _ common.TenantID, siteID common.ID, t risk.ScoreType) (*risk.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.snapshots[snapKey(siteID, t)]; ok {
		return s, nil
	}
	return nil, errors.New(errors.ErrCodeRiskScoreNotFound, "no snapshot")
}

func (f *fakeScores) ListSnapshots(_ context.Context, _ common.TenantID, t risk.ScoreType) ([]*risk.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*risk.Score
	for _, s := range f.snapshots {
		if t == "" || s.Type == t {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeScores) AppendHistory(_ context.Context, p *risk.HistoryPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, *p)
	return nil
}

func (f *fakeScores) History(_ context.Context, _ common.TenantID, siteID common.ID, since time.Time) ([]risk.HistoryPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []risk.HistoryPoint
	for _, p := range f.history {
		if p.SiteID == siteID && !p.RecordedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeDeadlines struct {
	deadline.Repository
	overdue, dueSoon, onTime, total int
}

func (f *fakeDeadlines) CountOverdue(context.Context, common.ID) (int, error) { return f.overdue, nil }
func (f *fakeDeadlines) CountDueWithin(context.Context, common.ID, time.Time, int) (int, error) {
	return f.dueSoon, nil
}
func (f *fakeDeadlines) CompletionStats(context.Context, common.ID, time.Time) (int, int, error) {
	return f.onTime, f.total, nil
}

type fakeObligations struct {
	obligation.Repository
	sites []common.ID
	count int
}

func (f *fakeObligations) ListSites(context.Context, common.TenantID) ([]common.ID, error) {
	return f.sites, nil
}
func (f *fakeObligations) CountBySite(context.Context, common.ID) (int, error) {
	return f.count, nil
}

type fakeEvents struct {
	obligation.EventRepository
	breaches int
}

func (f *fakeEvents) CountSince(context.Context, common.ID, obligation.EventType, time.Time) (int, error) {
	return f.breaches, nil
}

type fakeLocker struct {
	held     bool
	acquired int
	released int
}

func (f *fakeLocker) Acquire(context.Context, string, time.Duration) (func(ctx context.Context) error, bool, error) {
	if f.held {
		return nil, false, nil
	}
	f.acquired++
	return func(context.Context) error {
		f.released++
		return nil
	}, true, nil
}

type fakeSnapshotCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	hits    int
}

func newFakeSnapshotCache() *fakeSnapshotCache {
	return &fakeSnapshotCache{entries: make(map[string][]byte)}
}

func (f *fakeSnapshotCache) Get(_ context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.entries[key]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "cache miss")
	}
	f.hits++
	return json.Unmarshal(data, dest)
}

func (f *fakeSnapshotCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = data
	return nil
}

func newTestService(scores *fakeScores, dl *fakeDeadlines, ob *fakeObligations, ev *fakeEvents, lk Locker, now time.Time) Service {
	return NewService(scores, dl, ob, ev, nil, nil, lk, nil,
		common.FixedClock{T: now}, nil, logging.NewNopLogger(), Config{})
}

func TestGetSiteRiskComputesOnDemand(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	siteID := common.NewID()
	scores := newFakeScores()
	// 4 of 20% of 50 = cap 10 → 0.4; breaches 2/5 → 0.4; dueSoon 5/10 → 0.5;
	// 6 of 10 completions late → 0.6; complexity 50/100 → 0.5.
	svc := newTestService(scores,
		&fakeDeadlines{overdue: 4, dueSoon: 5, onTime: 4, total: 10},
		&fakeObligations{count: 50},
		&fakeEvents{breaches: 2}, nil, now)

	snap, err := svc.GetSiteRisk(context.Background(), "acme", siteID)
	require.NoError(t, err)

	// 0.25·0.4 + 0.20·0.4 + 0.20·0 + 0.15·0.5 + 0.10·0.6 + 0.10·0.5 = 0.365
	assert.Equal(t, 37, snap.Value)
	assert.Equal(t, risk.LevelMedium, snap.Level)
	assert.Equal(t, now.Add(24*time.Hour), snap.ValidUntil)

	// The snapshot and one history point were persisted.
	assert.Len(t, scores.history, 1)
	stored, err := scores.FindSnapshot(context.Background(), "acme", siteID, risk.ScoreTypeSite)
	require.NoError(t, err)
	assert.Equal(t, snap.Value, stored.Value)
}

func TestGetSiteRiskServesValidSnapshot(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	siteID := common.NewID()
	scores := newFakeScores()
	existing := risk.NewScore("acme", siteID, risk.ScoreTypeSite, risk.Factors{HistoricalBreaches: 1}, now.Add(-time.Hour))
	require.NoError(t, scores.ReplaceSnapshot(context.Background(), existing))

	svc := newTestService(scores, &fakeDeadlines{}, &fakeObligations{}, &fakeEvents{}, nil, now)

	snap, err := svc.GetSiteRisk(context.Background(), "acme", siteID)
	require.NoError(t, err)
	assert.Same(t, existing, snap)
	// Serving from the snapshot does not touch the history.
	assert.Empty(t, scores.history)
}

func TestGetSiteRiskRecomputesExpiredSnapshot(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	siteID := common.NewID()
	scores := newFakeScores()
	stale := risk.NewScore("acme", siteID, risk.ScoreTypeSite, risk.Factors{HistoricalBreaches: 1}, now.Add(-25*time.Hour))
	require.NoError(t, scores.ReplaceSnapshot(context.Background(), stale))

	svc := newTestService(scores, &fakeDeadlines{}, &fakeObligations{}, &fakeEvents{}, nil, now)

	snap, err := svc.GetSiteRisk(context.Background(), "acme", siteID)
	require.NoError(t, err)
	assert.NotSame(t, stale, snap)
	assert.Equal(t, 0, snap.Value)
	assert.Equal(t, risk.LevelLow, snap.Level)
}

func TestRecomputeAllScoresEverySiteAndRollsUp(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	sites := []common.ID{common.NewID(), common.NewID(), common.NewID()}
	scores := newFakeScores()
	lk := &fakeLocker{}
	svc := newTestService(scores,
		&fakeDeadlines{overdue: 2, onTime: 9, total: 10},
		&fakeObligations{sites: sites, count: 20},
		&fakeEvents{breaches: 1}, lk, now)

	n, err := svc.RecomputeAll(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, lk.acquired)
	assert.Equal(t, 1, lk.released)

	// Three site snapshots plus the company rollup, each with history.
	assert.Len(t, scores.snapshots, 4)
	assert.Len(t, scores.history, 4)

	company, err := scores.FindSnapshot(context.Background(), "acme", "", risk.ScoreTypeCompany)
	require.NoError(t, err)
	site0, err := scores.FindSnapshot(context.Background(), "acme", sites[0], risk.ScoreTypeSite)
	require.NoError(t, err)
	// Identical sites average to the same score.
	assert.Equal(t, site0.Value, company.Value)
}

func TestRecomputeAllHeldLockIsNoop(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	scores := newFakeScores()
	svc := newTestService(scores, &fakeDeadlines{}, &fakeObligations{sites: []common.ID{common.NewID()}},
		&fakeEvents{}, &fakeLocker{held: true}, now)

	n, err := svc.RecomputeAll(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, scores.snapshots)
}

func TestGetHistoryComputesTrend(t *testing.T) {
	now := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	siteID := common.NewID()
	scores := newFakeScores()
	for i, v := range []int{80, 75, 70, 50, 45, 40} {
		scores.history = append(scores.history, risk.HistoryPoint{
			SiteID:     siteID,
			Value:      v,
			RecordedAt: now.AddDate(0, 0, -6+i),
		})
	}

	svc := newTestService(scores, &fakeDeadlines{}, &fakeObligations{}, &fakeEvents{}, nil, now)

	resp, err := svc.GetHistory(context.Background(), "acme", siteID, 30)
	require.NoError(t, err)
	assert.Len(t, resp.Points, 6)
	assert.Equal(t, risk.TrendImproving, resp.Trend)
}

func TestGetSiteRiskWriteThroughAndCacheHit(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	siteID := common.NewID()
	scores := newFakeScores()
	cache := newFakeSnapshotCache()

	svc := NewService(scores, &fakeDeadlines{}, &fakeObligations{count: 4}, &fakeEvents{},
		nil, cache, nil, nil, common.FixedClock{T: now}, nil, logging.NewNopLogger(), Config{})

	first, err := svc.GetSiteRisk(context.Background(), "acme", siteID)
	require.NoError(t, err)
	// The on-demand compute writes through to the cache.
	assert.Len(t, cache.entries, 1)

	// Wipe the store: a second read must come from the cache alone.
	scores.snapshots = map[string]*risk.Score{}
	second, err := svc.GetSiteRisk(context.Background(), "acme", siteID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.Value, second.Value)
	assert.Empty(t, scores.snapshots)
}
