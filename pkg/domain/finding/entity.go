// Package finding contains the classified, risk-scored finding entity.
package finding

import (
	"time"

	"github.com/leekyio/api/pkg/domain/shared"
)

// Risk score bounds for findings.
const (
	MinRiskScore = 0.0
	MaxRiskScore = 10.0
)

// Finding is a persisted, classified, scored disclosure extracted from a
// single provider hit. Findings are append-only and immutable.
type Finding struct {
	ID             shared.ID
	ScanID         shared.ID
	Classification string
	Finding        string // the matched snippet
	Repository     string
	FilePath       string

	// GitHubURL is set only when the result came from a real provider
	// call. The engine never fabricates results, so in practice it is
	// present on every persisted finding; the column stays nullable for
	// imports from older data.
	GitHubURL string

	// RawContent holds optional extended context around the match.
	RawContent string

	RiskScore float64
	CreatedAt time.Time
}

// NewFinding creates a finding for a scan. The snippet is required and the
// risk score is clamped to the valid range.
func NewFinding(scanID shared.ID, classification, snippet, repository, filePath string, riskScore float64) (*Finding, error) {
	if scanID.IsZero() {
		return nil, shared.NewDomainError("VALIDATION", "scan_id is required", shared.ErrValidation)
	}
	if snippet == "" {
		return nil, shared.NewDomainError("VALIDATION", "finding snippet is required", shared.ErrValidation)
	}
	if classification == "" {
		return nil, shared.NewDomainError("VALIDATION", "classification is required", shared.ErrValidation)
	}

	return &Finding{
		ID:             shared.NewID(),
		ScanID:         scanID,
		Classification: classification,
		Finding:        snippet,
		Repository:     repository,
		FilePath:       filePath,
		RiskScore:      ClampScore(riskScore),
		CreatedAt:      time.Now(),
	}, nil
}

// ClampScore bounds a risk score to [MinRiskScore, MaxRiskScore].
func ClampScore(score float64) float64 {
	if score < MinRiskScore {
		return MinRiskScore
	}
	if score > MaxRiskScore {
		return MaxRiskScore
	}
	return score
}
