package risk

import (
	"context"
	"time"

	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

// Repository is the persistence port for risk snapshots and their history.
type Repository interface {
	// ReplaceSnapshot inserts the snapshot or replaces the existing row for
	// the same (site_id, score_type).
	ReplaceSnapshot(ctx context.Context, s *Score) error

	// FindSnapshot returns the current snapshot for a site and score type,
	// or ErrCodeRiskScoreNotFound.  SiteID is empty for company rollups.
	FindSnapshot(ctx context.Context, tenantID common.TenantID, siteID common.ID, t ScoreType) (*Score, error)

	// ListSnapshots returns all current snapshots of a tenant, optionally
	// filtered by score type (empty means both).
	ListSnapshots(ctx context.Context, tenantID common.TenantID, t ScoreType) ([]*Score, error)

	// AppendHistory appends an immutable point to the series.
	AppendHistory(ctx context.Context, p *HistoryPoint) error

	// History returns the points for a site recorded at or after since,
	// ordered by recorded_at ascending.
	History(ctx context.Context, tenantID common.TenantID, siteID common.ID, since time.Time) ([]HistoryPoint, error)
}
