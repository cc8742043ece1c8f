package finding

import (
	"testing"

	"github.com/leekyio/api/pkg/domain/shared"
)

func TestNewFinding(t *testing.T) {
	scanID := shared.NewID()

	tests := []struct {
		name           string
		scanID         shared.ID
		classification string
		snippet        string
		wantErr        bool
	}{
		{
			name:           "valid finding",
			scanID:         scanID,
			classification: "password",
			snippet:        "DB_PASSWORD=hunter2",
			wantErr:        false,
		},
		{
			name:           "zero scan ID",
			scanID:         shared.ID{},
			classification: "password",
			snippet:        "DB_PASSWORD=hunter2",
			wantErr:        true,
		},
		{
			name:           "empty snippet",
			scanID:         scanID,
			classification: "password",
			snippet:        "",
			wantErr:        true,
		},
		{
			name:           "empty classification",
			scanID:         scanID,
			classification: "",
			snippet:        "DB_PASSWORD=hunter2",
			wantErr:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFinding(tt.scanID, tt.classification, tt.snippet, "acme/app", ".env", 7.5)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFinding() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if f.ID.IsZero() {
				t.Error("ID should be set")
			}
			if f.RiskScore != 7.5 {
				t.Errorf("RiskScore = %v, want 7.5", f.RiskScore)
			}
		})
	}
}

func TestNewFindingClampsScore(t *testing.T) {
	scanID := shared.NewID()

	over, err := NewFinding(scanID, "password", "x", "acme/app", ".env", 12.3)
	if err != nil {
		t.Fatalf("NewFinding() error = %v", err)
	}
	if over.RiskScore != MaxRiskScore {
		t.Errorf("RiskScore = %v, want %v", over.RiskScore, MaxRiskScore)
	}

	under, err := NewFinding(scanID, "password", "x", "acme/app", ".env", -3.0)
	if err != nil {
		t.Fatalf("NewFinding() error = %v", err)
	}
	if under.RiskScore != MinRiskScore {
		t.Errorf("RiskScore = %v, want %v", under.RiskScore, MinRiskScore)
	}
}
