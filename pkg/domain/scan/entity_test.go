package scan

import (
	"errors"
	"testing"

	"github.com/leekyio/api/pkg/domain/shared"
)

func TestNewScan(t *testing.T) {
	ownerID := shared.NewID()

	tests := []struct {
		name    string
		ownerID shared.ID
		domain  string
		wantErr bool
	}{
		{
			name:    "valid scan",
			ownerID: ownerID,
			domain:  "acme.io",
			wantErr: false,
		},
		{
			name:    "zero owner ID",
			ownerID: shared.ID{},
			domain:  "acme.io",
			wantErr: true,
		},
		{
			name:    "empty domain",
			ownerID: ownerID,
			domain:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScan(tt.ownerID, tt.domain)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewScan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if s.Status != StatusPending {
				t.Errorf("Status = %v, want %v", s.Status, StatusPending)
			}
			if s.FindingsCount != 0 || s.RiskScore != 0.0 {
				t.Errorf("aggregates = (%d, %v), want (0, 0.0)", s.FindingsCount, s.RiskScore)
			}
			if s.ID.IsZero() {
				t.Error("ID should be set")
			}
		})
	}
}

func TestScanLifecycle(t *testing.T) {
	newScan := func(t *testing.T) *Scan {
		t.Helper()
		s, err := NewScan(shared.NewID(), "acme.io")
		if err != nil {
			t.Fatalf("NewScan() error = %v", err)
		}
		return s
	}

	t.Run("pending to running to completed", func(t *testing.T) {
		s := newScan(t)
		if err := s.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if s.Status != StatusRunning {
			t.Fatalf("Status = %v, want %v", s.Status, StatusRunning)
		}
		if err := s.Complete(); err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if s.Status != StatusCompleted {
			t.Errorf("Status = %v, want %v", s.Status, StatusCompleted)
		}
		if s.CompletedAt == nil {
			t.Error("CompletedAt should be set")
		}
	})

	t.Run("cannot start running scan", func(t *testing.T) {
		s := newScan(t)
		_ = s.Start()
		if err := s.Start(); err == nil {
			t.Error("Start() on running scan should fail")
		}
	})

	t.Run("cannot complete pending scan", func(t *testing.T) {
		s := newScan(t)
		if err := s.Complete(); err == nil {
			t.Error("Complete() on pending scan should fail")
		}
	})

	t.Run("fail from running records reason", func(t *testing.T) {
		s := newScan(t)
		_ = s.Start()
		if err := s.Fail(FailureNoCredential); err != nil {
			t.Fatalf("Fail() error = %v", err)
		}
		if s.Status != StatusFailed {
			t.Errorf("Status = %v, want %v", s.Status, StatusFailed)
		}
		if s.FailureReason != FailureNoCredential {
			t.Errorf("FailureReason = %v, want %v", s.FailureReason, FailureNoCredential)
		}
		if s.CompletedAt == nil {
			t.Error("CompletedAt should be set")
		}
	})

	t.Run("fail from pending is allowed", func(t *testing.T) {
		s := newScan(t)
		if err := s.Fail(FailureInternal); err != nil {
			t.Fatalf("Fail() error = %v", err)
		}
		if s.Status != StatusFailed {
			t.Errorf("Status = %v, want %v", s.Status, StatusFailed)
		}
	})

	t.Run("fail without reason defaults to internal", func(t *testing.T) {
		s := newScan(t)
		_ = s.Start()
		if err := s.Fail(FailureNone); err != nil {
			t.Fatalf("Fail() error = %v", err)
		}
		if s.FailureReason != FailureInternal {
			t.Errorf("FailureReason = %v, want %v", s.FailureReason, FailureInternal)
		}
	})

	t.Run("cancel from pending and running", func(t *testing.T) {
		pending := newScan(t)
		if err := pending.Cancel(); err != nil {
			t.Fatalf("Cancel() pending error = %v", err)
		}
		if pending.Status != StatusCancelled {
			t.Errorf("Status = %v, want %v", pending.Status, StatusCancelled)
		}

		running := newScan(t)
		_ = running.Start()
		if err := running.Cancel(); err != nil {
			t.Fatalf("Cancel() running error = %v", err)
		}
		if running.Status != StatusCancelled {
			t.Errorf("Status = %v, want %v", running.Status, StatusCancelled)
		}
	})

	t.Run("terminal states reject further transitions", func(t *testing.T) {
		s := newScan(t)
		_ = s.Start()
		_ = s.Complete()

		if err := s.Fail(FailureInternal); !errors.Is(err, shared.ErrAlreadyTerminal) {
			t.Errorf("Fail() error = %v, want ErrAlreadyTerminal", err)
		}
		if err := s.Cancel(); !errors.Is(err, shared.ErrAlreadyTerminal) {
			t.Errorf("Cancel() error = %v, want ErrAlreadyTerminal", err)
		}
		if !s.IsFinished() {
			t.Error("IsFinished() should be true")
		}
	})
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusPending:   false,
		StatusRunning:   false,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
	if Status("bogus").IsValid() {
		t.Error("unknown status should not be valid")
	}
}
