// Package risk orchestrates risk scoring: on-demand site scores, the
// periodic batch recomputation, the company rollup, and historical trending.
package risk

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"

	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
	"github.com/ecocomply/compliance-engine/internal/domain/obligation"
	"github.com/ecocomply/compliance-engine/internal/domain/risk"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/prometheus"
)

// EvidenceGapCounter is the external collaborator counting unresolved
// evidence gaps per site.
type EvidenceGapCounter interface {
	CountOpenGaps(ctx context.Context, tenantID common.TenantID, siteID common.ID) (int, error)
}

// NopGapCounter reports zero gaps.  Used until the evidence surface is
// wired.
type NopGapCounter struct{}

func (NopGapCounter) CountOpenGaps(context.Context, common.TenantID, common.ID) (int, error) {
	return 0, nil
}

// SnapshotCache fronts the snapshot store for reads.  Writes go through on
// every snapshot replacement; a nil cache disables fronting entirely.
type SnapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Locker serializes batch recomputation across redundant workers.
type Locker interface {
	// Acquire returns ok=false without error when another holder owns the
	// key.  release is non-nil iff ok.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(ctx context.Context) error, ok bool, err error)
}

// Notifier is the outbound signal port for snapshot replacements.
type Notifier interface {
	RiskUpdated(ctx context.Context, s *risk.Score) error
}

// NopNotifier drops all signals.
type NopNotifier struct{}

func (NopNotifier) RiskUpdated(context.Context, *risk.Score) error { return nil }

// HistoryResponse bundles a site's series with its trend direction.
type HistoryResponse struct {
	Points []risk.HistoryPoint `json:"points"`
	Trend  risk.Trend          `json:"trend"`
}

// Service is the risk scoring contract.
type Service interface {
	// GetSiteRisk returns the current snapshot, recomputing on demand when
	// none exists or the validity window has lapsed.
	GetSiteRisk(ctx context.Context, tenantID common.TenantID, siteID common.ID) (*risk.Score, error)
	GetCompanyRisk(ctx context.Context, tenantID common.TenantID) (*risk.Score, error)
	ListSnapshots(ctx context.Context, tenantID common.TenantID, t risk.ScoreType) ([]*risk.Score, error)
	GetHistory(ctx context.Context, tenantID common.TenantID, siteID common.ID, days int) (*HistoryResponse, error)

	// RecomputeAll refreshes every site snapshot of the tenant plus the
	// company rollup.  Returns the number of sites scored.  Concurrent
	// invocations are serialized by a distributed lock; a second caller is
	// a successful no-op.
	RecomputeAll(ctx context.Context, tenantID common.TenantID) (int, error)
}

// Config tunes the scoring windows.
type Config struct {
	SnapshotValidity time.Duration
	LockTTL          time.Duration
}

const (
	breachWindow   = 90 * 24 * time.Hour
	lateRateWindow = 90 * 24 * time.Hour
	proximityDays  = 7
	historyCapDays = 365
)

type service struct {
	scores      risk.Repository
	deadlines   deadline.Repository
	obligations obligation.Repository
	events      obligation.EventRepository
	gaps        EvidenceGapCounter
	cache       SnapshotCache
	locker      Locker
	notifier    Notifier
	clock       common.Clock
	metrics     *prometheus.Metrics
	logger      logging.Logger
	cfg         Config

	// sf collapses concurrent on-demand recomputes of the same site.
	sf singleflight.Group
}

// NewService wires the risk service.  Nil collaborators fall back to no-op
// implementations; a nil locker disables cross-worker serialization.
func NewService(
	scores risk.Repository,
	deadlines deadline.Repository,
	obligations obligation.Repository,
	events obligation.EventRepository,
	gaps EvidenceGapCounter,
	cache SnapshotCache,
	locker Locker,
	notifier Notifier,
	clock common.Clock,
	metrics *prometheus.Metrics,
	logger logging.Logger,
	cfg Config,
) Service {
	if gaps == nil {
		gaps = NopGapCounter{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if clock == nil {
		clock = common.SystemClock{}
	}
	if cfg.SnapshotValidity == 0 {
		cfg.SnapshotValidity = risk.SnapshotValidity
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &service{
		scores:      scores,
		deadlines:   deadlines,
		obligations: obligations,
		events:      events,
		gaps:        gaps,
		cache:       cache,
		locker:      locker,
		notifier:    notifier,
		clock:       clock,
		metrics:     metrics,
		logger:      logger.Named("risk"),
		cfg:         cfg,
	}
}

func (s *service) GetSiteRisk(ctx context.Context, tenantID common.TenantID, siteID common.ID) (*risk.Score, error) {
	now := s.clock.Now()
	if snap := s.cachedSnapshot(ctx, snapshotKey(tenantID, siteID), now); snap != nil {
		return snap, nil
	}
	snap, err := s.scores.FindSnapshot(ctx, tenantID, siteID, risk.ScoreTypeSite)
	if err == nil && snap.Valid(now) {
		return snap, nil
	}
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}

	v, err, _ := s.sf.Do(string(tenantID)+"/"+siteID.String(), func() (interface{}, error) {
		return s.refreshSite(ctx, tenantID, siteID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*risk.Score), nil
}

func (s *service) GetCompanyRisk(ctx context.Context, tenantID common.TenantID) (*risk.Score, error) {
	now := s.clock.Now()
	if snap := s.cachedSnapshot(ctx, snapshotKey(tenantID, ""), now); snap != nil {
		return snap, nil
	}
	snap, err := s.scores.FindSnapshot(ctx, tenantID, "", risk.ScoreTypeCompany)
	if err == nil && snap.Valid(now) {
		return snap, nil
	}
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	sites, err := s.scores.ListSnapshots(ctx, tenantID, risk.ScoreTypeSite)
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, errors.Newf(errors.ErrCodeRiskScoreNotFound, "no site scores for tenant %s", tenantID)
	}
	return s.storeCompanyRollup(ctx, tenantID, sites, now)
}

func (s *service) ListSnapshots(ctx context.Context, tenantID common.TenantID, t risk.ScoreType) ([]*risk.Score, error) {
	return s.scores.ListSnapshots(ctx, tenantID, t)
}

func (s *service) GetHistory(ctx context.Context, tenantID common.TenantID, siteID common.ID, days int) (*HistoryResponse, error) {
	if days <= 0 {
		days = 30
	}
	if days > historyCapDays {
		days = historyCapDays
	}
	since := s.clock.Now().AddDate(0, 0, -days)
	points, err := s.scores.History(ctx, tenantID, siteID, since)
	if err != nil {
		return nil, err
	}
	return &HistoryResponse{Points: points, Trend: risk.ComputeTrend(points)}, nil
}

func (s *service) RecomputeAll(ctx context.Context, tenantID common.TenantID) (int, error) {
	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, fmt.Sprintf("risk:recompute:%s", tenantID), s.cfg.LockTTL)
		if err != nil {
			return 0, err
		}
		if !ok {
			s.logger.Info("recompute already running", logging.String("tenant", string(tenantID)))
			return 0, nil
		}
		defer func() {
			if err := release(ctx); err != nil {
				s.logger.Warn("lock release failed", logging.Err(err))
			}
		}()
	}

	started := s.clock.Now()
	sites, err := s.obligations.ListSites(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	scored := 0
	var snapshots []*risk.Score
	for _, siteID := range sites {
		if err := ctx.Err(); err != nil {
			return scored, err
		}
		snap, err := s.refreshSite(ctx, tenantID, siteID)
		if err != nil {
			s.logger.Warn("site scoring failed",
				logging.String("site_id", siteID.String()), logging.Err(err))
			continue
		}
		scored++
		snapshots = append(snapshots, snap)
	}

	if len(snapshots) > 0 {
		if _, err := s.storeCompanyRollup(ctx, tenantID, snapshots, s.clock.Now()); err != nil {
			s.logger.Warn("company rollup failed", logging.Err(err))
		}
	}

	if s.metrics != nil {
		s.metrics.RiskRecomputeTotal.Inc()
		s.metrics.RiskRecomputeDuration.Observe(s.clock.Now().Sub(started).Seconds())
	}
	s.logger.Info("risk recomputation finished",
		logging.String("tenant", string(tenantID)),
		logging.Int("sites", scored))
	return scored, nil
}

// refreshSite computes, persists, and announces one site snapshot, and
// appends the history point.
func (s *service) refreshSite(ctx context.Context, tenantID common.TenantID, siteID common.ID) (*risk.Score, error) {
	now := s.clock.Now()
	factors, err := s.gatherFactors(ctx, tenantID, siteID, now)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRiskComputeFailed, "factor aggregation failed")
	}

	snap := risk.NewScore(tenantID, siteID, risk.ScoreTypeSite, factors, now)
	snap.ValidUntil = now.Add(s.cfg.SnapshotValidity)
	if err := s.store(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *service) gatherFactors(ctx context.Context, tenantID common.TenantID, siteID common.ID, now time.Time) (risk.Factors, error) {
	var in risk.RawInputs
	var err error

	if in.BreachCount, err = s.events.CountSince(ctx, siteID, obligation.EventEnforcement, now.Add(-breachWindow)); err != nil {
		return risk.Factors{}, err
	}
	if in.OverdueCount, err = s.deadlines.CountOverdue(ctx, siteID); err != nil {
		return risk.Factors{}, err
	}
	if in.EvidenceGapCount, err = s.gaps.CountOpenGaps(ctx, tenantID, siteID); err != nil {
		return risk.Factors{}, err
	}
	if in.DueSoonCount, err = s.deadlines.CountDueWithin(ctx, siteID, now, proximityDays); err != nil {
		return risk.Factors{}, err
	}
	onTime, total, err := s.deadlines.CompletionStats(ctx, siteID, now.Add(-lateRateWindow))
	if err != nil {
		return risk.Factors{}, err
	}
	if total > 0 {
		in.LateRate = float64(total-onTime) / float64(total)
	}
	if in.ObligationCount, err = s.obligations.CountBySite(ctx, siteID); err != nil {
		return risk.Factors{}, err
	}

	return risk.NormalizeInputs(in), nil
}

// storeCompanyRollup averages the site factor vectors into one company
// snapshot.
func (s *service) storeCompanyRollup(ctx context.Context, tenantID common.TenantID, sites []*risk.Score, now time.Time) (*risk.Score, error) {
	var f risk.Factors
	for _, snap := range sites {
		f.HistoricalBreaches += snap.Factors.HistoricalBreaches
		f.OverdueCount += snap.Factors.OverdueCount
		f.EvidenceGapCount += snap.Factors.EvidenceGapCount
		f.DeadlineProximity += snap.Factors.DeadlineProximity
		f.LateCompletionRate += snap.Factors.LateCompletionRate
		f.ComplexityScore += snap.Factors.ComplexityScore
	}
	n := float64(len(sites))
	f.HistoricalBreaches /= n
	f.OverdueCount /= n
	f.EvidenceGapCount /= n
	f.DeadlineProximity /= n
	f.LateCompletionRate /= n
	f.ComplexityScore /= n

	snap := risk.NewScore(tenantID, "", risk.ScoreTypeCompany, f, now)
	snap.ValidUntil = now.Add(s.cfg.SnapshotValidity)
	if err := s.store(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// snapshotKey names a snapshot in the cache; the empty site ID addresses the
// company rollup.
func snapshotKey(tenantID common.TenantID, siteID common.ID) string {
	if siteID.IsZero() {
		return fmt.Sprintf("risk:%s:company", tenantID)
	}
	return fmt.Sprintf("risk:%s:site:%s", tenantID, siteID)
}

// cachedSnapshot returns the cached snapshot when present and still inside
// its validity window.  Cache failures degrade to the store.
func (s *service) cachedSnapshot(ctx context.Context, key string, now time.Time) *risk.Score {
	if s.cache == nil {
		return nil
	}
	var snap risk.Score
	if err := s.cache.Get(ctx, key, &snap); err != nil {
		if !errors.IsNotFound(err) {
			s.logger.Warn("snapshot cache read failed", logging.String("key", key), logging.Err(err))
		}
		return nil
	}
	if !snap.Valid(now) {
		return nil
	}
	return &snap
}

func (s *service) store(ctx context.Context, snap *risk.Score) error {
	if err := s.scores.ReplaceSnapshot(ctx, snap); err != nil {
		return err
	}
	if s.cache != nil {
		key := snapshotKey(snap.TenantID, snap.SiteID)
		if err := s.cache.Set(ctx, key, snap, s.cfg.SnapshotValidity); err != nil {
			s.logger.Warn("snapshot cache write failed", logging.String("key", key), logging.Err(err))
		}
	}
	point := &risk.HistoryPoint{
		ID:         common.NewID(),
		TenantID:   snap.TenantID,
		SiteID:     snap.SiteID,
		Type:       snap.Type,
		Value:      snap.Value,
		Level:      snap.Level,
		RecordedAt: snap.ComputedAt,
	}
	if err := s.scores.AppendHistory(ctx, point); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RiskScoreValue.WithLabelValues(snap.SiteID.String(), string(snap.Type)).Set(float64(snap.Value))
	}
	if err := s.notifier.RiskUpdated(ctx, snap); err != nil {
		s.logger.Warn("risk signal dropped",
			logging.String("site_id", snap.SiteID.String()), logging.Err(err))
	}
	return nil
}
