package request

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/lims/lims/internal/domain/audit"
	"github.com/lims/lims/internal/platform/laberr"
)

// -- Mocks --

// mockRequestRepo serializes UpdateTransition behind a mutex and enforces
// the same version compare-and-swap as the Postgres repository.
type mockRequestRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*TestRequest
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{items: make(map[uuid.UUID]*TestRequest)}
}

func copyTR(tr *TestRequest) *TestRequest {
	cp := *tr
	return &cp
}

func (m *mockRequestRepo) Create(ctx context.Context, tr *TestRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tr.ID = uuid.New()
	tr.VersionID = 1
	m.items[tr.ID] = copyTR(tr)
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*TestRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tr, ok := m.items[id]
	if !ok {
		return nil, laberr.E(laberr.KindNotFound, "test request %s not found", id)
	}
	return copyTR(tr), nil
}

func (m *mockRequestRepo) UpdateTransition(ctx context.Context, tr *TestRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[tr.ID]
	if !ok {
		return laberr.E(laberr.KindNotFound, "test request %s not found", tr.ID)
	}
	if cur.VersionID != tr.VersionID {
		return laberr.E(laberr.KindInvalidTransition,
			"test request %s was modified concurrently", tr.ID)
	}
	stored := copyTR(tr)
	stored.VersionID++
	m.items[tr.ID] = stored
	tr.VersionID++
	return nil
}

func (m *mockRequestRepo) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*TestRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*TestRequest
	for _, tr := range m.items {
		if st, ok := params["status"]; ok && string(tr.Status) != st {
			continue
		}
		items = append(items, copyTR(tr))
	}
	return items, len(items), nil
}

type mockHistoryRepo struct {
	mu    sync.Mutex
	items []*StatusHistory
}

func (m *mockHistoryRepo) Create(ctx context.Context, h *StatusHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.ID = uuid.New()
	m.items = append(m.items, h)
	return nil
}

func (m *mockHistoryRepo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*StatusHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*StatusHistory
	for _, h := range m.items {
		if h.TestRequestID == requestID {
			items = append(items, h)
		}
	}
	return items, nil
}

type mockCatalog struct {
	testTypes map[uuid.UUID]bool
	assigned  map[[2]uuid.UUID]bool
}

func (m *mockCatalog) TestTypeExists(ctx context.Context, id uuid.UUID) error {
	if !m.testTypes[id] {
		return laberr.E(laberr.KindNotFound, "test type %s not found", id)
	}
	return nil
}

func (m *mockCatalog) IsSpecimenTypeAssigned(ctx context.Context, testTypeID, specimenTypeID uuid.UUID) (bool, error) {
	return m.assigned[[2]uuid.UUID{testTypeID, specimenTypeID}], nil
}

type mockCounter struct {
	counts map[uuid.UUID]int
}

func (m *mockCounter) CountByRequest(ctx context.Context, requestID uuid.UUID) (int, error) {
	return m.counts[requestID], nil
}

type mockAuditor struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (m *mockAuditor) Record(ctx context.Context, e *audit.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	svc        *Service
	repo       *mockRequestRepo
	history    *mockHistoryRepo
	catalog    *mockCatalog
	counter    *mockCounter
	auditor    *mockAuditor
	testTypeID uuid.UUID
	serumID    uuid.UUID
}

func newFixture() *fixture {
	testTypeID := uuid.New()
	serumID := uuid.New()
	f := &fixture{
		repo:    newMockRequestRepo(),
		history: &mockHistoryRepo{},
		catalog: &mockCatalog{
			testTypes: map[uuid.UUID]bool{testTypeID: true},
			assigned:  map[[2]uuid.UUID]bool{{testTypeID, serumID}: true},
		},
		counter:    &mockCounter{counts: make(map[uuid.UUID]int)},
		auditor:    &mockAuditor{},
		testTypeID: testTypeID,
		serumID:    serumID,
	}
	f.svc = NewService(f.repo, f.history, f.catalog, f.counter, f.auditor, passthroughTx{})
	return f
}

func (f *fixture) newRequest(t *testing.T) *TestRequest {
	t.Helper()
	tr, err := f.svc.CreateTestRequest(context.Background(), uuid.New(), nil, f.testTypeID, "clerk-1")
	if err != nil {
		t.Fatalf("create test request: %v", err)
	}
	return tr
}

// advance drives a fresh request to the given status along the happy path.
func (f *fixture) advance(t *testing.T, to Status) *TestRequest {
	t.Helper()
	ctx := context.Background()
	tr := f.newRequest(t)
	steps := []struct {
		target Status
		run    func() (*TestRequest, error)
	}{
		{StatusSpecimenCollected, func() (*TestRequest, error) { return f.svc.CollectSpecimen(ctx, tr.ID, "tech-1") }},
		{StatusSpecimenAccepted, func() (*TestRequest, error) { return f.svc.AcceptSpecimen(ctx, tr.ID, f.serumID, "tech-1") }},
		{StatusStarted, func() (*TestRequest, error) { return f.svc.StartAnalysis(ctx, tr.ID, "tech-2") }},
		{StatusCompleted, func() (*TestRequest, error) {
			cur, err := f.repo.GetByID(ctx, tr.ID)
			if err != nil {
				return nil, err
			}
			if err := f.svc.Complete(ctx, cur, "tech-2"); err != nil {
				return nil, err
			}
			f.counter.counts[tr.ID] = 3
			return cur, nil
		}},
		{StatusVerified, func() (*TestRequest, error) { return f.svc.VerifyResults(ctx, tr.ID, "supervisor-1") }},
		{StatusApproved, func() (*TestRequest, error) { return f.svc.ApproveResults(ctx, tr.ID, "pathologist-1") }},
	}
	cur := tr
	for _, step := range steps {
		if cur.Status == to {
			return cur
		}
		next, err := step.run()
		if err != nil {
			t.Fatalf("advance to %s at step %s: %v", to, step.target, err)
		}
		cur = next
	}
	if cur.Status != to {
		t.Fatalf("could not advance to %s, stuck at %s", to, cur.Status)
	}
	return cur
}

// -- Tests --

func TestCreateTestRequest_StartsPending(t *testing.T) {
	f := newFixture()
	tr := f.newRequest(t)

	if tr.Status != StatusPending {
		t.Errorf("expected Pending, got %s", tr.Status)
	}
	if tr.SpecimenBarcode == "" {
		t.Error("expected a generated specimen barcode")
	}
	if tr.CreatedBy != "clerk-1" {
		t.Errorf("expected creator stamp, got %q", tr.CreatedBy)
	}
	if tr.VersionID != 1 {
		t.Errorf("expected version 1, got %d", tr.VersionID)
	}
}

func TestCreateTestRequest_UnknownTestType(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateTestRequest(context.Background(), uuid.New(), nil, uuid.New(), "clerk-1")
	if !laberr.IsKind(err, laberr.KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestFullLifecycle_HappyPath(t *testing.T) {
	f := newFixture()
	tr := f.advance(t, StatusApproved)

	stored, err := f.repo.GetByID(context.Background(), tr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != StatusApproved {
		t.Errorf("expected Approved, got %s", stored.Status)
	}
	for name, ptr := range map[string]*string{
		"collected_by": stored.CollectedBy,
		"accepted_by":  stored.AcceptedBy,
		"tested_by":    stored.TestedBy,
		"verified_by":  stored.VerifiedBy,
		"approved_by":  stored.ApprovedBy,
	} {
		if ptr == nil || *ptr == "" {
			t.Errorf("expected %s stamp to be set", name)
		}
	}
	if stored.CompletedAt == nil {
		t.Error("expected completed_at stamp")
	}

	history, err := f.svc.GetStatusHistory(context.Background(), tr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 6 {
		t.Errorf("expected 6 history rows for 6 transitions, got %d", len(history))
	}
}

func TestCollectSpecimen_OnlyFromPending(t *testing.T) {
	f := newFixture()
	tr := f.advance(t, StatusStarted)

	_, err := f.svc.CollectSpecimen(context.Background(), tr.ID, "tech-1")
	if !laberr.IsKind(err, laberr.KindInvalidTransition) {
		t.Errorf("expected invalid_transition, got %v", err)
	}

	stored, _ := f.repo.GetByID(context.Background(), tr.ID)
	if stored.Status != StatusStarted {
		t.Errorf("failed transition must leave status unchanged, got %s", stored.Status)
	}
}

func TestAcceptSpecimen_UnassignedType(t *testing.T) {
	f := newFixture()
	tr := f.advance(t, StatusSpecimenCollected)

	_, err := f.svc.AcceptSpecimen(context.Background(), tr.ID, uuid.New(), "tech-1")
	if !laberr.IsKind(err, laberr.KindUnassignedSpecimenType) {
		t.Errorf("expected unassigned_specimen_type, got %v", err)
	}

	stored, _ := f.repo.GetByID(context.Background(), tr.ID)
	if stored.Status != StatusSpecimenCollected || stored.SpecimenTypeID != nil {
		t.Errorf("failed guard must leave the request unchanged: %+v", stored)
	}
}

func TestAcceptSpecimen_SetsSpecimenType(t *testing.T) {
	f := newFixture()
	tr := f.advance(t, StatusSpecimenAccepted)

	if tr.SpecimenTypeID == nil || *tr.SpecimenTypeID != f.serumID {
		t.Errorf("expected accepted specimen type %s, got %v", f.serumID, tr.SpecimenTypeID)
	}
}

func TestVerifyResults_RequiresCapturedResults(t *testing.T) {
	f := newFixture()
	tr := f.advance(t, StatusCompleted)
	f.counter.counts[tr.ID] = 0

	_, err := f.svc.VerifyResults(context.Background(), tr.ID, "supervisor-1")
	if !laberr.IsKind(err, laberr.KindInvalidTransition) {
		t.Errorf("expected invalid_transition without results, got %v", err)
	}

	f.counter.counts[tr.ID] = 2
	if _, err := f.svc.VerifyResults(context.Background(), tr.ID, "supervisor-1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMarkResultsUpdated_BumpsVersionOnly(t *testing.T) {
	f := newFixture()
	tr := f.advance(t, StatusCompleted)

	cur, _ := f.repo.GetByID(context.Background(), tr.ID)
	before := cur.VersionID
	if err := f.svc.MarkResultsUpdated(context.Background(), cur, "tech-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := f.repo.GetByID(context.Background(), tr.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("status must stay Completed, got %s", stored.Status)
	}
	if stored.VersionID != before+1 {
		t.Errorf("expected version %d, got %d", before+1, stored.VersionID)
	}
}

func TestMarkResultsUpdated_StaleCopyAfterVerify(t *testing.T) {
	f := newFixture()
	tr := f.advance(t, StatusCompleted)

	// Hold a copy read before the verify commits.
	stale, _ := f.repo.GetByID(context.Background(), tr.ID)
	if _, err := f.svc.VerifyResults(context.Background(), tr.ID, "supervisor-1"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	err := f.svc.MarkResultsUpdated(context.Background(), stale, "tech-2")
	if !laberr.IsKind(err, laberr.KindInvalidTransition) {
		t.Fatalf("expected invalid_transition for stale copy, got %v", err)
	}
	stored, _ := f.repo.GetByID(context.Background(), tr.ID)
	if stored.Status != StatusVerified {
		t.Errorf("verify must stand, got %s", stored.Status)
	}
}

func TestMarkResultsUpdated_RequiresCompleted(t *testing.T) {
	f := newFixture()
	tr := f.advance(t, StatusStarted)

	cur, _ := f.repo.GetByID(context.Background(), tr.ID)
	if err := f.svc.MarkResultsUpdated(context.Background(), cur, "tech-2"); !laberr.IsKind(err, laberr.KindInvalidTransition) {
		t.Errorf("expected invalid_transition, got %v", err)
	}
}

func TestReject_AllowedStates(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusStarted, StatusCompleted} {
		f := newFixture()
		tr := f.advance(t, from)
		got, err := f.svc.Reject(context.Background(), tr.ID, "hemolyzed sample", "tech-1")
		if err != nil {
			t.Errorf("reject from %s: %v", from, err)
			continue
		}
		if got.Status != StatusRejected || got.RejectionReason == nil {
			t.Errorf("reject from %s: %+v", from, got)
		}
	}
}

func TestReject_RefusedStates(t *testing.T) {
	for _, from := range []Status{StatusSpecimenCollected, StatusSpecimenAccepted, StatusVerified, StatusApproved} {
		f := newFixture()
		tr := f.advance(t, from)
		_, err := f.svc.Reject(context.Background(), tr.ID, "too late", "tech-1")
		if !laberr.IsKind(err, laberr.KindInvalidTransition) {
			t.Errorf("reject from %s: expected invalid_transition, got %v", from, err)
		}
	}
}

func TestReject_RequiresReason(t *testing.T) {
	f := newFixture()
	tr := f.newRequest(t)

	_, err := f.svc.Reject(context.Background(), tr.ID, "   ", "tech-1")
	if !laberr.IsKind(err, laberr.KindInvalidTransition) {
		t.Errorf("expected invalid_transition for empty reason, got %v", err)
	}
	stored, _ := f.repo.GetByID(context.Background(), tr.ID)
	if stored.Status != StatusPending {
		t.Errorf("expected status unchanged, got %s", stored.Status)
	}
}

func TestApprove_IsTerminal(t *testing.T) {
	f := newFixture()
	tr := f.advance(t, StatusApproved)

	if _, err := f.svc.ApproveResults(context.Background(), tr.ID, "pathologist-1"); !laberr.IsKind(err, laberr.KindInvalidTransition) {
		t.Errorf("expected invalid_transition on re-approve, got %v", err)
	}
	if _, err := f.svc.Reject(context.Background(), tr.ID, "change of mind", "tech-1"); !laberr.IsKind(err, laberr.KindInvalidTransition) {
		t.Errorf("expected invalid_transition on reject after approve, got %v", err)
	}
}

func TestTransitions_RecordAuditEvents(t *testing.T) {
	f := newFixture()
	f.advance(t, StatusSpecimenAccepted)

	actions := make(map[string]int)
	for _, e := range f.auditor.events {
		actions[e.Action]++
	}
	for _, want := range []string{"CreateTestRequest", "CollectSpecimen", "AcceptSpecimen"} {
		if actions[want] != 1 {
			t.Errorf("expected one %s audit event, got %d", want, actions[want])
		}
	}
}

func TestConcurrentAccept_ExactlyOneWins(t *testing.T) {
	f := newFixture()
	tr := f.advance(t, StatusSpecimenCollected)

	const workers = 2
	errs := make([]error, workers)
	var wg sync.WaitGroup
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start.Wait()
			_, errs[i] = f.svc.AcceptSpecimen(context.Background(), tr.ID, f.serumID, "tech-1")
		}(i)
	}
	start.Done()
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !laberr.IsKind(err, laberr.KindInvalidTransition) {
			t.Errorf("loser must observe invalid_transition, got %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly one winner, got %d", winners)
	}

	stored, _ := f.repo.GetByID(context.Background(), tr.ID)
	if stored.Status != StatusSpecimenAccepted {
		t.Errorf("expected SpecimenAccepted, got %s", stored.Status)
	}
}
