// Package risk defines the composite risk score model: six normalized
// factors, a weighted 0-100 score with a categorical level, and the
// historical trend over past snapshots.
//
// The internal direction is RISK: higher means worse.  Inversion into a
// compliance score (100 − risk) happens only at the HTTP boundary.
package risk

import (
	"math"
	"time"

	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

// Level is the categorical risk band.
type Level string

const (
	LevelCritical Level = "critical"
	LevelHigh     Level = "high"
	LevelMedium   Level = "medium"
	LevelLow      Level = "low"
)

// ScoreType distinguishes the scope of a snapshot.
type ScoreType string

const (
	ScoreTypeSite    ScoreType = "site"
	ScoreTypeCompany ScoreType = "company"
)

// SnapshotValidity is the default window during which a snapshot is served
// without recomputation.
const SnapshotValidity = 24 * time.Hour

// Factors is the normalized six-factor breakdown.  Every field is in [0,1].
type Factors struct {
	HistoricalBreaches float64 `json:"historical_breaches"`
	OverdueCount       float64 `json:"overdue_count"`
	EvidenceGapCount   float64 `json:"evidence_gap_count"`
	DeadlineProximity  float64 `json:"deadline_proximity"`
	LateCompletionRate float64 `json:"late_completion_rate"`
	ComplexityScore    float64 `json:"complexity_score"`
}

// Factor weights.  They sum to 1.0, so a site with every factor saturated
// scores exactly 100.
const (
	weightBreaches   = 0.25
	weightOverdue    = 0.20
	weightGaps       = 0.20
	weightProximity  = 0.15
	weightLate       = 0.10
	weightComplexity = 0.10
)

// Normalize maps a raw count onto [0,1] against its saturation cap.  A
// non-positive cap saturates immediately for any positive value, so a site
// with zero obligations and an overdue deadline still registers.
func Normalize(value, cap float64) float64 {
	if value <= 0 {
		return 0
	}
	if cap <= 0 {
		return 1
	}
	return math.Min(value/cap, 1)
}

// RawInputs are the unnormalized aggregates a score is computed from.
type RawInputs struct {
	// BreachCount is the number of enforcement events in the trailing 90
	// days.
	BreachCount int
	// OverdueCount is the number of currently overdue open deadlines.
	OverdueCount int
	// EvidenceGapCount is the number of unresolved evidence gaps.
	EvidenceGapCount int
	// DueSoonCount is the number of open deadlines due within 7 days.
	DueSoonCount int
	// LateRate is the fraction of trailing-90-day completions that were
	// late, already in [0,1].
	LateRate float64
	// ObligationCount is the total number of active obligations at the site.
	ObligationCount int
}

// Saturation caps for the count-based factors.  Overdue and evidence-gap
// caps scale with the obligation portfolio.
const (
	breachCap         = 5.0
	proximityCap      = 10.0
	complexityCap     = 100.0
	overdueCapRatio   = 0.20
	evidenceFactorCap = 0.30
)

// NormalizeInputs maps raw aggregates onto the [0,1] factor breakdown.
func NormalizeInputs(in RawInputs) Factors {
	obligations := float64(in.ObligationCount)
	return Factors{
		HistoricalBreaches: Normalize(float64(in.BreachCount), breachCap),
		OverdueCount:       Normalize(float64(in.OverdueCount), overdueCapRatio*obligations),
		EvidenceGapCount:   Normalize(float64(in.EvidenceGapCount), evidenceFactorCap*obligations),
		DeadlineProximity:  Normalize(float64(in.DueSoonCount), proximityCap),
		LateCompletionRate: math.Min(math.Max(in.LateRate, 0), 1),
		ComplexityScore:    Normalize(obligations, complexityCap),
	}
}

// Compute folds the factor breakdown into the composite 0-100 score.
func Compute(f Factors) int {
	weighted := weightBreaches*f.HistoricalBreaches +
		weightOverdue*f.OverdueCount +
		weightGaps*f.EvidenceGapCount +
		weightProximity*f.DeadlineProximity +
		weightLate*f.LateCompletionRate +
		weightComplexity*f.ComplexityScore

	score := int(math.Round(weighted * 100))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// LevelFor maps a composite score onto its categorical band.
func LevelFor(score int) Level {
	switch {
	case score >= 75:
		return LevelCritical
	case score >= 50:
		return LevelHigh
	case score >= 25:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Score is the current snapshot for a site or the company rollup.  One row
// exists per (site_id, score_type); recomputation replaces it in place.
type Score struct {
	ID       common.ID       `json:"id"`
	TenantID common.TenantID `json:"tenant_id"`

	// SiteID is empty for company-wide rollups.
	SiteID common.ID `json:"site_id,omitempty"`
	Type   ScoreType `json:"score_type"`

	Value   int     `json:"value"`
	Level   Level   `json:"level"`
	Factors Factors `json:"factors"`

	ComputedAt time.Time `json:"computed_at"`
	ValidUntil time.Time `json:"valid_until"`
}

// Valid reports whether the snapshot is still inside its validity window.
func (s *Score) Valid(now time.Time) bool {
	return now.Before(s.ValidUntil)
}

// NewScore assembles a snapshot from a factor breakdown.
func NewScore(tenantID common.TenantID, siteID common.ID, t ScoreType, f Factors, now time.Time) *Score {
	v := Compute(f)
	return &Score{
		ID:         common.NewID(),
		TenantID:   tenantID,
		SiteID:     siteID,
		Type:       t,
		Value:      v,
		Level:      LevelFor(v),
		Factors:    f,
		ComputedAt: now,
		ValidUntil: now.Add(SnapshotValidity),
	}
}

// HistoryPoint is one immutable entry in a site's score series.
type HistoryPoint struct {
	ID         common.ID       `json:"id"`
	TenantID   common.TenantID `json:"tenant_id"`
	SiteID     common.ID       `json:"site_id"`
	Type       ScoreType       `json:"score_type"`
	Value      int             `json:"value"`
	Level      Level           `json:"level"`
	RecordedAt time.Time       `json:"recorded_at"`
}
