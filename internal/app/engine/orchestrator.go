package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leekyio/api/internal/metrics"
	"github.com/leekyio/api/pkg/crypto"
	"github.com/leekyio/api/pkg/domain/credential"
	"github.com/leekyio/api/pkg/domain/finding"
	"github.com/leekyio/api/pkg/domain/scan"
	"github.com/leekyio/api/pkg/domain/shared"
	"github.com/leekyio/api/pkg/logger"
)

// dedupeKeyLen bounds the snippet portion of the per-scan dedupe key.
const dedupeKeyLen = 50

// Orchestrator runs a scan end to end: it owns all scan status
// transitions after creation and is the only writer of scan rows while
// the scan executes.
type Orchestrator struct {
	scans       scan.Repository
	findings    finding.Repository
	credentials credential.Repository
	cipher      crypto.Encryptor
	searcher    Searcher
	extractor   *Extractor
	classifier  *Classifier
	log         *logger.Logger
}

// NewOrchestrator creates a scan orchestrator.
func NewOrchestrator(
	scans scan.Repository,
	findings finding.Repository,
	credentials credential.Repository,
	cipher crypto.Encryptor,
	searcher Searcher,
	extractor *Extractor,
	classifier *Classifier,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		scans:       scans,
		findings:    findings,
		credentials: credentials,
		cipher:      cipher,
		searcher:    searcher,
		extractor:   extractor,
		classifier:  classifier,
		log:         log.With("component", "orchestrator"),
	}
}

// Execute runs the scan identified by scanID to a terminal state. It is
// idempotent for redelivered jobs: a scan already in a terminal state is
// left untouched. The returned error is for the job runner only; scan
// outcome is always recorded on the scan row itself.
func (o *Orchestrator) Execute(ctx context.Context, scanID shared.ID) error {
	s, err := o.scans.GetByID(ctx, scanID)
	if err != nil {
		return fmt.Errorf("load scan %s: %w", scanID, err)
	}
	if s.IsFinished() {
		o.log.Info("scan already finished, skipping", "scan_id", s.ID, "status", s.Status)
		return nil
	}

	// A cancel requested while the scan was still queued wins before any
	// provider work happens.
	if s.CancelRequested {
		return o.terminalizeCancelled(ctx, s)
	}

	token, err := o.providerToken(ctx, s.OwnerID)
	if err != nil {
		return o.terminalizeFailed(ctx, s, failureReasonFor(err), err)
	}

	if err := s.Start(); err != nil {
		return fmt.Errorf("start scan %s: %w", s.ID, err)
	}
	if err := o.scans.Update(ctx, s); err != nil {
		return fmt.Errorf("persist scan start %s: %w", s.ID, err)
	}

	metrics.ScansInProgress.Inc()
	defer metrics.ScansInProgress.Dec()
	started := time.Now()

	o.log.Info("scan started", "scan_id", s.ID, "domain", s.Domain)

	seen := make(map[string]struct{})
	strongFiles := make(map[string]struct{})
	queries := Dorks(s.Domain)

	for i, query := range queries {
		// Cancellation checkpoint. A request set at any time is consumed
		// here, before the next provider call.
		cancelled, err := o.scans.CancelRequested(ctx, s.ID)
		if err != nil {
			return o.terminalizeFailed(ctx, s, scan.FailureInternal, err)
		}
		if cancelled {
			o.log.Info("cancel request consumed", "scan_id", s.ID, "queries_done", i)
			return o.terminalizeCancelled(ctx, s)
		}
		if err := ctx.Err(); err != nil {
			return o.terminalizeFailed(ctx, s, scan.FailureInternal, err)
		}

		hits, err := o.searcher.Search(ctx, token, query)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidCredential):
				return o.terminalizeFailed(ctx, s, scan.FailureInvalidCredential, err)
			case errors.Is(err, ErrQuotaExceeded):
				metrics.ProviderQuotaSkipsTotal.Inc()
				o.log.Warn("query skipped after quota retries", "scan_id", s.ID, "query_index", i)
				continue
			case errors.Is(err, ErrInvalidQuery):
				o.log.Warn("query rejected by provider", "scan_id", s.ID, "query_index", i)
				continue
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return o.terminalizeFailed(ctx, s, scan.FailureInternal, err)
			default:
				// Transient provider trouble costs one query, not the scan.
				o.log.Warn("query failed", "scan_id", s.ID, "query_index", i, "error", err)
				continue
			}
		}

		for _, hit := range hits {
			if err := o.processHit(ctx, s, hit, seen, strongFiles); err != nil {
				return o.terminalizeFailed(ctx, s, scan.FailureInternal, err)
			}
		}
	}

	if err := s.Complete(); err != nil {
		return fmt.Errorf("complete scan %s: %w", s.ID, err)
	}
	if err := o.scans.Update(ctx, s); err != nil {
		return fmt.Errorf("persist scan completion %s: %w", s.ID, err)
	}

	metrics.ScansTotal.WithLabelValues(string(scan.StatusCompleted)).Inc()
	metrics.ScanDuration.WithLabelValues(string(scan.StatusCompleted)).Observe(time.Since(started).Seconds())
	o.log.Info("scan completed", "scan_id", s.ID, "findings", s.FindingsCount)
	return nil
}

// ForceFail terminalizes a scan as failed from outside the normal
// execution path, for watchdogs that reap scans whose worker died.
// Returns shared.ErrAlreadyTerminal when the scan already finished.
func (o *Orchestrator) ForceFail(ctx context.Context, scanID shared.ID, reason scan.FailureReason) error {
	s, err := o.scans.GetByID(ctx, scanID)
	if err != nil {
		return err
	}
	if err := s.Fail(reason); err != nil {
		return err
	}
	if err := o.scans.Update(ctx, s); err != nil {
		return err
	}
	metrics.ScansTotal.WithLabelValues(string(scan.StatusFailed)).Inc()
	o.log.Warn("scan force-failed", "scan_id", s.ID, "reason", reason)
	return nil
}

// processHit extracts, classifies, dedupes, and persists the findings of
// one hit. Only persistence errors propagate; extraction problems drop
// the hit. strongFiles accumulates, across the whole scan, the files
// that already produced a finding stronger than a bare domain mention.
func (o *Orchestrator) processHit(ctx context.Context, s *scan.Scan, hit Hit, seen, strongFiles map[string]struct{}) error {
	candidates, err := o.extractor.Extract(hit, s.Domain)
	if err != nil {
		if errors.Is(err, ErrExcludedPath) || errors.Is(err, ErrEmptyMatch) {
			return nil
		}
		return err
	}

	type classified struct {
		cand Candidate
		cls  Classification
	}
	results := make([]classified, 0, len(candidates))
	fileKey := hit.Repository + ":" + hit.Path
	for _, cand := range candidates {
		cls := o.classifier.Classify(cand, s.Domain)
		if cls.Category != CategoryDomainReferences {
			strongFiles[fileKey] = struct{}{}
		}
		results = append(results, classified{cand: cand, cls: cls})
	}
	_, strongMatch := strongFiles[fileKey]

	for _, r := range results {
		// A bare domain mention adds nothing once the file yielded a
		// concrete secret, in this query or an earlier one.
		if strongMatch && r.cls.Category == CategoryDomainReferences {
			continue
		}
		key := dedupeKey(r.cand)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		f, err := finding.NewFinding(s.ID, r.cls.Category, r.cand.Matched, r.cand.Repository, r.cand.FilePath, r.cls.Score)
		if err != nil {
			o.log.Warn("dropping invalid candidate", "scan_id", s.ID, "error", err)
			continue
		}
		f.GitHubURL = r.cand.HTMLURL
		f.RawContent = r.cand.RawContent

		if err := o.findings.Append(ctx, f); err != nil {
			return fmt.Errorf("append finding: %w", err)
		}
		s.FindingsCount++
		if f.RiskScore > s.RiskScore {
			s.RiskScore = f.RiskScore
		}
		metrics.FindingsTotal.WithLabelValues(r.cls.Category).Inc()
	}
	return nil
}

// providerToken loads and decrypts the owner's provider token.
func (o *Orchestrator) providerToken(ctx context.Context, ownerID shared.ID) (string, error) {
	cred, err := o.credentials.GetActive(ctx, ownerID, credential.ServiceGitHub)
	if err != nil {
		if shared.IsNotFound(err) {
			return "", ErrNoCredential
		}
		return "", err
	}
	token, err := o.cipher.DecryptString(cred.EncryptedToken)
	if err != nil {
		return "", fmt.Errorf("decrypt credential: %w", err)
	}
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

func (o *Orchestrator) terminalizeCancelled(ctx context.Context, s *scan.Scan) error {
	if err := s.Cancel(); err != nil {
		return err
	}
	if err := o.scans.Update(ctx, s); err != nil {
		return err
	}
	metrics.ScansTotal.WithLabelValues(string(scan.StatusCancelled)).Inc()
	o.log.Info("scan cancelled", "scan_id", s.ID)
	return nil
}

// terminalizeFailed records the failure on the scan row. The original
// cause is logged, not returned: a failed scan is a handled outcome from
// the job runner's point of view.
func (o *Orchestrator) terminalizeFailed(ctx context.Context, s *scan.Scan, reason scan.FailureReason, cause error) error {
	if err := s.Fail(reason); err != nil {
		return errors.Join(err, cause)
	}
	if err := o.scans.Update(ctx, s); err != nil {
		return errors.Join(err, cause)
	}
	metrics.ScansTotal.WithLabelValues(string(scan.StatusFailed)).Inc()
	o.log.Error("scan failed", "scan_id", s.ID, "reason", reason, "error", cause)
	return nil
}

func failureReasonFor(err error) scan.FailureReason {
	switch {
	case errors.Is(err, ErrNoCredential):
		return scan.FailureNoCredential
	case errors.Is(err, ErrInvalidCredential):
		return scan.FailureInvalidCredential
	default:
		return scan.FailureInternal
	}
}

func dedupeKey(cand Candidate) string {
	snippet := cand.Matched
	if len(snippet) > dedupeKeyLen {
		snippet = snippet[:dedupeKeyLen]
	}
	return cand.Repository + ":" + cand.FilePath + ":" + snippet
}
