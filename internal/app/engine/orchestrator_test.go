package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leekyio/api/pkg/crypto"
	"github.com/leekyio/api/pkg/domain/credential"
	"github.com/leekyio/api/pkg/domain/finding"
	"github.com/leekyio/api/pkg/domain/scan"
	"github.com/leekyio/api/pkg/domain/shared"
	"github.com/leekyio/api/pkg/logger"
	"github.com/leekyio/api/pkg/pagination"
)

// fakeScanRepo is an in-memory scan.Repository.
type fakeScanRepo struct {
	mu    sync.Mutex
	scans map[shared.ID]*scan.Scan
	// cancelAfterChecks flips the cancel flag on after this many
	// CancelRequested polls, simulating a cancel arriving mid-scan.
	cancelAfterChecks int
	checks            int
}

func newFakeScanRepo() *fakeScanRepo {
	return &fakeScanRepo{scans: make(map[shared.ID]*scan.Scan), cancelAfterChecks: -1}
}

func (r *fakeScanRepo) Create(_ context.Context, s *scan.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *s
	r.scans[s.ID] = &clone
	return nil
}

func (r *fakeScanRepo) GetByID(_ context.Context, id shared.ID) (*scan.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scans[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *fakeScanRepo) GetByOwnerAndID(_ context.Context, ownerID, id shared.ID) (*scan.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scans[id]
	if !ok || !s.OwnerID.Equals(ownerID) {
		return nil, shared.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *fakeScanRepo) ListByOwner(_ context.Context, ownerID shared.ID, page pagination.Pagination) (pagination.Result[*scan.Scan], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*scan.Scan
	for _, s := range r.scans {
		if s.OwnerID.Equals(ownerID) {
			clone := *s
			out = append(out, &clone)
		}
	}
	return pagination.NewResult(out, int64(len(out)), page), nil
}

func (r *fakeScanRepo) Update(_ context.Context, s *scan.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scans[s.ID]; !ok {
		return shared.ErrNotFound
	}
	clone := *s
	r.scans[s.ID] = &clone
	return nil
}

func (r *fakeScanRepo) RequestCancel(_ context.Context, ownerID, id shared.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scans[id]
	if !ok || !s.OwnerID.Equals(ownerID) {
		return shared.ErrNotFound
	}
	if s.Status.IsTerminal() {
		return shared.ErrAlreadyTerminal
	}
	s.CancelRequested = true
	return nil
}

func (r *fakeScanRepo) CancelRequested(_ context.Context, id shared.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scans[id]
	if !ok {
		return false, shared.ErrNotFound
	}
	r.checks++
	if r.cancelAfterChecks >= 0 && r.checks > r.cancelAfterChecks {
		s.CancelRequested = true
	}
	return s.CancelRequested, nil
}

// fakeFindingRepo is an in-memory finding.Repository.
type fakeFindingRepo struct {
	mu       sync.Mutex
	findings []*finding.Finding
}

func (r *fakeFindingRepo) Append(_ context.Context, f *finding.Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *f
	r.findings = append(r.findings, &clone)
	return nil
}

func (r *fakeFindingRepo) ListByScan(_ context.Context, scanID shared.ID) ([]*finding.Finding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*finding.Finding
	for _, f := range r.findings {
		if f.ScanID.Equals(scanID) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFindingRepo) CountByScan(_ context.Context, scanID shared.ID) (int, error) {
	found, _ := r.ListByScan(context.Background(), scanID)
	return len(found), nil
}

// fakeCredentialRepo is an in-memory credential.Repository.
type fakeCredentialRepo struct {
	creds map[string]*credential.Credential
}

func credKey(ownerID shared.ID, service string) string {
	return ownerID.String() + "/" + service
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{creds: make(map[string]*credential.Credential)}
}

func (r *fakeCredentialRepo) Upsert(_ context.Context, c *credential.Credential) error {
	r.creds[credKey(c.OwnerID, c.Service)] = c
	return nil
}

func (r *fakeCredentialRepo) GetActive(_ context.Context, ownerID shared.ID, service string) (*credential.Credential, error) {
	c, ok := r.creds[credKey(ownerID, service)]
	if !ok || !c.IsActive {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

func (r *fakeCredentialRepo) ListServices(_ context.Context, ownerID shared.ID) ([]string, error) {
	var out []string
	for _, c := range r.creds {
		if c.OwnerID.Equals(ownerID) && c.IsActive {
			out = append(out, c.Service)
		}
	}
	return out, nil
}

func (r *fakeCredentialRepo) Deactivate(_ context.Context, ownerID shared.ID, service string) error {
	if c, ok := r.creds[credKey(ownerID, service)]; ok {
		c.IsActive = false
	}
	return nil
}

// fakeSearcher dispatches to a function and records queries.
type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	fn      func(query string) ([]Hit, error)
}

func (s *fakeSearcher) Search(_ context.Context, _, query string) ([]Hit, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.fn == nil {
		return nil, nil
	}
	return s.fn(query)
}

type orchestratorFixture struct {
	scans       *fakeScanRepo
	findings    *fakeFindingRepo
	credentials *fakeCredentialRepo
	searcher    *fakeSearcher
	orch        *Orchestrator
	ownerID     shared.ID
}

func newFixture(t *testing.T, withCredential bool) *orchestratorFixture {
	t.Helper()

	f := &orchestratorFixture{
		scans:       newFakeScanRepo(),
		findings:    &fakeFindingRepo{},
		credentials: newFakeCredentialRepo(),
		searcher:    &fakeSearcher{},
		ownerID:     shared.NewID(),
	}
	if withCredential {
		cred, err := credential.NewCredential(f.ownerID, credential.ServiceGitHub, "gh-token")
		require.NoError(t, err)
		require.NoError(t, f.credentials.Upsert(context.Background(), cred))
	}
	f.orch = NewOrchestrator(
		f.scans, f.findings, f.credentials,
		crypto.NewNoOpEncryptor(),
		f.searcher,
		NewExtractor(),
		NewClassifier(),
		logger.NewDefault(),
	)
	return f
}

func (f *orchestratorFixture) createScan(t *testing.T, domain string) *scan.Scan {
	t.Helper()
	s, err := scan.NewScan(f.ownerID, domain)
	require.NoError(t, err)
	require.NoError(t, f.scans.Create(context.Background(), s))
	return s
}

func (f *orchestratorFixture) storedScan(t *testing.T, id shared.ID) *scan.Scan {
	t.Helper()
	s, err := f.scans.GetByID(context.Background(), id)
	require.NoError(t, err)
	return s
}

func TestOrchestratorHappyPath(t *testing.T) {
	f := newFixture(t, true)
	s := f.createScan(t, "acme.io")

	f.searcher.fn = func(query string) ([]Hit, error) {
		if !strings.Contains(query, "password") {
			return nil, nil
		}
		return []Hit{{
			Repository: "acme/app",
			Path:       "config/.env",
			HTMLURL:    "https://github.com/acme/app/blob/main/config/.env",
			Content:    "DB_HOST=localhost\npassword=hunter2\n",
		}}, nil
	}

	require.NoError(t, f.orch.Execute(context.Background(), s.ID))

	stored := f.storedScan(t, s.ID)
	assert.Equal(t, scan.StatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, scan.FailureNone, stored.FailureReason)

	findings, err := f.findings.ListByScan(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, findings, 1, "identical hit across queries persists once")
	assert.Equal(t, CategoryPasswords, findings[0].Classification)
	assert.Equal(t, "password=hunter2", findings[0].Finding)
	assert.InDelta(t, 8.0, findings[0].RiskScore, 0.001) // 7.5 + .env bonus
	assert.Equal(t, stored.RiskScore, findings[0].RiskScore)
	assert.Equal(t, 1, stored.FindingsCount)

	assert.Len(t, f.searcher.queries, len(Dorks("acme.io")), "all queries executed")
}

func TestOrchestratorNoCredential(t *testing.T) {
	f := newFixture(t, false)
	s := f.createScan(t, "acme.io")

	require.NoError(t, f.orch.Execute(context.Background(), s.ID))

	stored := f.storedScan(t, s.ID)
	assert.Equal(t, scan.StatusFailed, stored.Status)
	assert.Equal(t, scan.FailureNoCredential, stored.FailureReason)
	assert.Empty(t, f.searcher.queries, "no provider calls without a token")
	assert.Equal(t, 0, stored.FindingsCount)
}

func TestOrchestratorInvalidCredential(t *testing.T) {
	f := newFixture(t, true)
	s := f.createScan(t, "acme.io")

	f.searcher.fn = func(string) ([]Hit, error) {
		return nil, ErrInvalidCredential
	}

	require.NoError(t, f.orch.Execute(context.Background(), s.ID))

	stored := f.storedScan(t, s.ID)
	assert.Equal(t, scan.StatusFailed, stored.Status)
	assert.Equal(t, scan.FailureInvalidCredential, stored.FailureReason)
	assert.Len(t, f.searcher.queries, 1, "first rejection stops the scan")
}

func TestOrchestratorCancelBetweenQueries(t *testing.T) {
	f := newFixture(t, true)
	s := f.createScan(t, "acme.io")

	f.scans.cancelAfterChecks = 3
	f.searcher.fn = func(query string) ([]Hit, error) {
		return []Hit{{
			Repository: "acme/app",
			Path:       ".env",
			Content:    "token_for " + query + " password=" + query + "\n",
		}}, nil
	}

	require.NoError(t, f.orch.Execute(context.Background(), s.ID))

	stored := f.storedScan(t, s.ID)
	assert.Equal(t, scan.StatusCancelled, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.Len(t, f.searcher.queries, 3, "no provider call after the consumed checkpoint")

	findings, err := f.findings.ListByScan(context.Background(), s.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, findings, "partial results retained")
}

func TestOrchestratorCancelBeforeStart(t *testing.T) {
	f := newFixture(t, true)
	s := f.createScan(t, "acme.io")
	require.NoError(t, f.scans.RequestCancel(context.Background(), f.ownerID, s.ID))

	require.NoError(t, f.orch.Execute(context.Background(), s.ID))

	stored := f.storedScan(t, s.ID)
	assert.Equal(t, scan.StatusCancelled, stored.Status)
	assert.Empty(t, f.searcher.queries)
}

func TestOrchestratorQuotaSkip(t *testing.T) {
	f := newFixture(t, true)
	s := f.createScan(t, "acme.io")

	var calls int
	f.searcher.fn = func(query string) ([]Hit, error) {
		calls++
		if calls == 2 {
			return nil, ErrQuotaExceeded
		}
		if calls == 3 {
			return []Hit{{
				Repository: "acme/app",
				Path:       ".env",
				Content:    "api_key=abcdefghij0123456789\n",
			}}, nil
		}
		return nil, nil
	}

	require.NoError(t, f.orch.Execute(context.Background(), s.ID))

	stored := f.storedScan(t, s.ID)
	assert.Equal(t, scan.StatusCompleted, stored.Status, "quota skip does not fail the scan")
	assert.Len(t, f.searcher.queries, len(Dorks("acme.io")), "remaining queries still run")

	findings, err := f.findings.ListByScan(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, CategoryAPIKeysSecrets, findings[0].Classification)
}

func TestOrchestratorDedupeAcrossQueries(t *testing.T) {
	f := newFixture(t, true)
	s := f.createScan(t, "acme.io")

	hit := Hit{
		Repository: "acme/app",
		Path:       ".env",
		Content:    "password=hunter2\n",
	}
	f.searcher.fn = func(string) ([]Hit, error) {
		return []Hit{hit}, nil
	}

	require.NoError(t, f.orch.Execute(context.Background(), s.ID))

	findings, err := f.findings.ListByScan(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Len(t, findings, 1)
	assert.Equal(t, 1, f.storedScan(t, s.ID).FindingsCount)
}

func TestOrchestratorDomainReferenceSuppression(t *testing.T) {
	f := newFixture(t, true)
	s := f.createScan(t, "acme.io")

	f.searcher.fn = func(query string) ([]Hit, error) {
		if f.searcher.queries[len(f.searcher.queries)-1] != Dorks("acme.io")[0] {
			return nil, nil
		}
		return []Hit{{
			Repository: "acme/app",
			Path:       ".env",
			Content:    "host=acme.io\npassword=hunter2\n",
		}}, nil
	}

	require.NoError(t, f.orch.Execute(context.Background(), s.ID))

	findings, err := f.findings.ListByScan(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, findings, 1, "bare domain mention suppressed next to a concrete secret")
	assert.Equal(t, CategoryPasswords, findings[0].Classification)
}

func TestOrchestratorDomainReferenceSuppressionAcrossQueries(t *testing.T) {
	f := newFixture(t, true)
	s := f.createScan(t, "acme.io")

	queries := Dorks("acme.io")
	f.searcher.fn = func(query string) ([]Hit, error) {
		switch query {
		case queries[0]:
			return []Hit{{
				Repository: "acme/app",
				Path:       ".env",
				Content:    "password=hunter2\n",
			}}, nil
		case queries[1]:
			// The same file resurfaces in a later query, this time with
			// only a bare mention of the domain.
			return []Hit{{
				Repository: "acme/app",
				Path:       ".env",
				Content:    "host=acme.io\n",
			}}, nil
		case queries[2]:
			// A different file with the same bare mention is not
			// suppressed.
			return []Hit{{
				Repository: "acme/app",
				Path:       "docs/setup.md",
				Content:    "host=acme.io\n",
			}}, nil
		default:
			return nil, nil
		}
	}

	require.NoError(t, f.orch.Execute(context.Background(), s.ID))

	findings, err := f.findings.ListByScan(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, findings, 2, "later bare mention of an already-strong file suppressed")

	categories := map[string]string{}
	for _, fd := range findings {
		categories[fd.FilePath] = fd.Classification
	}
	assert.Equal(t, CategoryPasswords, categories[".env"])
	assert.Equal(t, CategoryDomainReferences, categories["docs/setup.md"])
}

func TestOrchestratorTransientErrorCostsOneQuery(t *testing.T) {
	f := newFixture(t, true)
	s := f.createScan(t, "acme.io")

	var calls int
	f.searcher.fn = func(string) ([]Hit, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection reset")
		}
		return nil, nil
	}

	require.NoError(t, f.orch.Execute(context.Background(), s.ID))
	assert.Equal(t, scan.StatusCompleted, f.storedScan(t, s.ID).Status)
}

func TestOrchestratorIdempotentOnTerminal(t *testing.T) {
	f := newFixture(t, true)
	s := f.createScan(t, "acme.io")

	require.NoError(t, f.orch.Execute(context.Background(), s.ID))
	require.Equal(t, scan.StatusCompleted, f.storedScan(t, s.ID).Status)

	// Redelivered job leaves the terminal scan alone.
	require.NoError(t, f.orch.Execute(context.Background(), s.ID))
	assert.Len(t, f.searcher.queries, len(Dorks("acme.io")), "no second pass")
}

func TestOrchestratorUnknownScan(t *testing.T) {
	f := newFixture(t, true)
	err := f.orch.Execute(context.Background(), shared.NewID())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOrchestratorForceFail(t *testing.T) {
	f := newFixture(t, true)
	s := f.createScan(t, "acme.io")

	require.NoError(t, f.orch.ForceFail(context.Background(), s.ID, scan.FailureInternal))

	stored := f.storedScan(t, s.ID)
	assert.Equal(t, scan.StatusFailed, stored.Status)
	assert.Equal(t, scan.FailureInternal, stored.FailureReason)

	err := f.orch.ForceFail(context.Background(), s.ID, scan.FailureInternal)
	assert.ErrorIs(t, err, shared.ErrAlreadyTerminal)
}

func TestOrchestratorConcurrentScans(t *testing.T) {
	f := newFixture(t, true)

	domains := []string{"acme.io", "globex.com", "initech.net", "umbrella.org"}
	scans := make([]*scan.Scan, len(domains))
	for i, domain := range domains {
		scans[i] = f.createScan(t, domain)
	}

	// One unique finding per query so every append must land.
	f.searcher.fn = func(query string) ([]Hit, error) {
		return []Hit{{
			Repository: "org/app",
			Path:       ".env",
			HTMLURL:    "https://github.com/org/app/blob/main/.env",
			Fragments:  []string{`password = "` + query + `"`},
		}}, nil
	}

	var wg sync.WaitGroup
	for _, s := range scans {
		wg.Add(1)
		go func(id shared.ID) {
			defer wg.Done()
			assert.NoError(t, f.orch.Execute(context.Background(), id))
		}(s.ID)
	}
	wg.Wait()

	for i, s := range scans {
		stored := f.storedScan(t, s.ID)
		assert.Equal(t, scan.StatusCompleted, stored.Status, "scan %d", i)

		wantCount := len(Dorks(domains[i]))
		count, err := f.findings.CountByScan(context.Background(), s.ID)
		require.NoError(t, err)
		assert.Equal(t, wantCount, count, "scan %d persisted findings", i)
		assert.Equal(t, wantCount, stored.FindingsCount, "scan %d count aggregate", i)

		// The aggregate must equal the max over the scan's own findings.
		persisted, err := f.findings.ListByScan(context.Background(), s.ID)
		require.NoError(t, err)
		maxScore := 0.0
		for _, fd := range persisted {
			if fd.RiskScore > maxScore {
				maxScore = fd.RiskScore
			}
		}
		assert.InDelta(t, maxScore, stored.RiskScore, 0.001, "scan %d risk aggregate", i)
	}
}
