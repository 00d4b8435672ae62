package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ecocomply/compliance-engine/internal/domain/risk"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/database/postgres"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

type riskRepo struct {
	baseRepo
}

// NewRiskRepo builds the PostgreSQL risk snapshot and history repository.
func NewRiskRepo(conn *postgres.Connection, log logging.Logger) risk.Repository {
	return &riskRepo{baseRepo{conn: conn, log: log}}
}

func (r *riskRepo) ReplaceSnapshot(ctx context.Context, s *risk.Score) error {
	factors, err := json.Marshal(s.Factors)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal factors")
	}

	// site_id is stored as '' for company rollups so the uniqueness key stays
	// NOT NULL.
	query := `
		INSERT INTO risk_scores (
			id, tenant_id, site_id, score_type, value, level, factors, computed_at, valid_until
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, site_id, score_type) DO UPDATE SET
			id = EXCLUDED.id,
			value = EXCLUDED.value,
			level = EXCLUDED.level,
			factors = EXCLUDED.factors,
			computed_at = EXCLUDED.computed_at,
			valid_until = EXCLUDED.valid_until`

	_, err = r.executor(ctx).ExecContext(ctx, query,
		s.ID, s.TenantID, s.SiteID.String(), s.Type, s.Value, s.Level,
		factors, s.ComputedAt, s.ValidUntil)
	return wrapDB(err, "failed to replace risk snapshot")
}

const riskColumns = `
	id, tenant_id, site_id, score_type, value, level, factors, computed_at, valid_until`

func (r *riskRepo) FindSnapshot(ctx context.Context, tenantID common.TenantID, siteID common.ID, t risk.ScoreType) (*risk.Score, error) {
	query := `SELECT` + riskColumns + `
		FROM risk_scores WHERE tenant_id = $1 AND site_id = $2 AND score_type = $3`

	s, err := scanScore(r.executor(ctx).QueryRowContext(ctx, query, tenantID, siteID.String(), t))
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrCodeRiskScoreNotFound, "no %s snapshot for site %q", t, siteID)
	}
	if err != nil {
		return nil, wrapDB(err, "failed to load risk snapshot")
	}
	return s, nil
}

func (r *riskRepo) ListSnapshots(ctx context.Context, tenantID common.TenantID, t risk.ScoreType) ([]*risk.Score, error) {
	query := `SELECT` + riskColumns + ` FROM risk_scores WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if t != "" {
		query += ` AND score_type = $2`
		args = append(args, t)
	}
	query += ` ORDER BY value DESC`

	rows, err := r.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDB(err, "failed to list risk snapshots")
	}
	defer rows.Close()

	var out []*risk.Score
	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, wrapDB(err, "failed to scan risk snapshot")
		}
		out = append(out, s)
	}
	return out, wrapDB(rows.Err(), "risk snapshot iteration failed")
}

func (r *riskRepo) AppendHistory(ctx context.Context, p *risk.HistoryPoint) error {
	query := `
		INSERT INTO risk_score_history (
			id, tenant_id, site_id, score_type, value, level, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.executor(ctx).ExecContext(ctx, query,
		p.ID, p.TenantID, p.SiteID.String(), p.Type, p.Value, p.Level, p.RecordedAt)
	return wrapDB(err, "failed to append risk history")
}

func (r *riskRepo) History(ctx context.Context, tenantID common.TenantID, siteID common.ID, since time.Time) ([]risk.HistoryPoint, error) {
	query := `
		SELECT id, tenant_id, site_id, score_type, value, level, recorded_at
		FROM risk_score_history
		WHERE tenant_id = $1 AND site_id = $2 AND recorded_at >= $3
		ORDER BY recorded_at ASC`

	rows, err := r.executor(ctx).QueryContext(ctx, query, tenantID, siteID.String(), since)
	if err != nil {
		return nil, wrapDB(err, "failed to load risk history")
	}
	defer rows.Close()

	var out []risk.HistoryPoint
	for rows.Next() {
		var p risk.HistoryPoint
		var siteID string
		if err := rows.Scan(&p.ID, &p.TenantID, &siteID, &p.Type, &p.Value, &p.Level, &p.RecordedAt); err != nil {
			return nil, wrapDB(err, "failed to scan risk history point")
		}
		p.SiteID = common.ID(siteID)
		out = append(out, p)
	}
	return out, wrapDB(rows.Err(), "risk history iteration failed")
}

func scanScore(row scanner) (*risk.Score, error) {
	var s risk.Score
	var siteID string
	var factors []byte

	err := row.Scan(&s.ID, &s.TenantID, &siteID, &s.Type, &s.Value, &s.Level,
		&factors, &s.ComputedAt, &s.ValidUntil)
	if err != nil {
		return nil, err
	}
	s.SiteID = common.ID(siteID)
	if err := json.Unmarshal(factors, &s.Factors); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal factors")
	}
	return &s, nil
}
