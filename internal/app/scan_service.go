// Package app contains the application services behind the HTTP API.
package app

import (
	"context"
	"fmt"

	"github.com/leekyio/api/pkg/domain/finding"
	"github.com/leekyio/api/pkg/domain/scan"
	"github.com/leekyio/api/pkg/domain/shared"
	"github.com/leekyio/api/pkg/logger"
	"github.com/leekyio/api/pkg/pagination"
	"github.com/leekyio/api/pkg/validator"
)

// ScanJob identifies a scan queued for background execution.
type ScanJob struct {
	ScanID  string
	OwnerID string
	Domain  string
}

// ScanQueue hands scans to the background worker.
type ScanQueue interface {
	Enqueue(ctx context.Context, job ScanJob) error
}

// ScanService provides the scan lifecycle operations exposed over HTTP.
// Execution itself belongs to the orchestrator; this service only
// creates, queries, and cancel-requests scans.
type ScanService struct {
	scans     scan.Repository
	findings  finding.Repository
	queue     ScanQueue
	validator *validator.Validator
	logger    *logger.Logger
}

// NewScanService creates a new ScanService.
func NewScanService(
	scans scan.Repository,
	findings finding.Repository,
	queue ScanQueue,
	v *validator.Validator,
	log *logger.Logger,
) *ScanService {
	return &ScanService{
		scans:     scans,
		findings:  findings,
		queue:     queue,
		validator: v,
		logger:    log.With("service", "scan"),
	}
}

// CreateScanInput represents input for starting an investigation.
type CreateScanInput struct {
	Domain string `json:"domain" validate:"required,domain"`
}

// CreateScan validates the domain, persists a pending scan, and queues
// it for execution.
func (s *ScanService) CreateScan(ctx context.Context, ownerID shared.ID, input CreateScanInput) (*scan.Scan, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	sc, err := scan.NewScan(ownerID, validator.NormalizeDomain(input.Domain))
	if err != nil {
		return nil, err
	}

	if err := s.scans.Create(ctx, sc); err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, ScanJob{
		ScanID:  sc.ID.String(),
		OwnerID: sc.OwnerID.String(),
		Domain:  sc.Domain,
	}); err != nil {
		// The scan row exists but nothing will ever pick it up, so
		// record the failure instead of leaving it pending forever.
		if failErr := sc.Fail(scan.FailureInternal); failErr == nil {
			if updErr := s.scans.Update(ctx, sc); updErr != nil {
				s.logger.Error("failed to mark unqueued scan", "scan_id", sc.ID, "error", updErr)
			}
		}
		return nil, fmt.Errorf("enqueue scan: %w", err)
	}

	s.logger.Info("scan created", "scan_id", sc.ID, "domain", sc.Domain)
	return sc, nil
}

// ListScans returns the owner's scans, newest first.
func (s *ScanService) ListScans(ctx context.Context, ownerID shared.ID, page pagination.Pagination) (pagination.Result[*scan.Scan], error) {
	return s.scans.ListByOwner(ctx, ownerID, page)
}

// GetScan returns one of the owner's scans.
func (s *ScanService) GetScan(ctx context.Context, ownerID, id shared.ID) (*scan.Scan, error) {
	return s.scans.GetByOwnerAndID(ctx, ownerID, id)
}

// GetScanFindings returns a scan's findings in discovery order. The scan
// lookup enforces owner scoping before any findings are read.
func (s *ScanService) GetScanFindings(ctx context.Context, ownerID, id shared.ID) ([]*finding.Finding, error) {
	sc, err := s.scans.GetByOwnerAndID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.findings.ListByScan(ctx, sc.ID)
}

// CancelScan requests cooperative cancellation of a scan. The request is
// consumed by the orchestrator at its next checkpoint; a queued scan is
// cancelled before any provider work.
func (s *ScanService) CancelScan(ctx context.Context, ownerID, id shared.ID) error {
	if err := s.scans.RequestCancel(ctx, ownerID, id); err != nil {
		return err
	}
	s.logger.Info("scan cancel requested", "scan_id", id)
	return nil
}
