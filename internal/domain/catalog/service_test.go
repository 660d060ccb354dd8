package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/lims/lims/internal/platform/laberr"
)

// -- Mock repositories --

type mockSpecimenTypeRepo struct {
	items map[uuid.UUID]*SpecimenType
}

func newMockSpecimenTypeRepo() *mockSpecimenTypeRepo {
	return &mockSpecimenTypeRepo{items: make(map[uuid.UUID]*SpecimenType)}
}

func (m *mockSpecimenTypeRepo) Create(ctx context.Context, st *SpecimenType) error {
	st.ID = uuid.New()
	m.items[st.ID] = st
	return nil
}

func (m *mockSpecimenTypeRepo) GetByID(ctx context.Context, id uuid.UUID) (*SpecimenType, error) {
	st, ok := m.items[id]
	if !ok {
		return nil, laberr.E(laberr.KindNotFound, "specimen type %s not found", id)
	}
	return st, nil
}

func (m *mockSpecimenTypeRepo) Update(ctx context.Context, st *SpecimenType) error {
	if _, ok := m.items[st.ID]; !ok {
		return laberr.E(laberr.KindNotFound, "specimen type %s not found", st.ID)
	}
	m.items[st.ID] = st
	return nil
}

func (m *mockSpecimenTypeRepo) List(ctx context.Context, limit, offset int) ([]*SpecimenType, int, error) {
	var items []*SpecimenType
	for _, st := range m.items {
		items = append(items, st)
	}
	return items, len(items), nil
}

type mockTestTypeRepo struct {
	items map[uuid.UUID]*TestType
}

func newMockTestTypeRepo() *mockTestTypeRepo {
	return &mockTestTypeRepo{items: make(map[uuid.UUID]*TestType)}
}

func (m *mockTestTypeRepo) Create(ctx context.Context, tt *TestType) error {
	tt.ID = uuid.New()
	m.items[tt.ID] = tt
	return nil
}

func (m *mockTestTypeRepo) GetByID(ctx context.Context, id uuid.UUID) (*TestType, error) {
	tt, ok := m.items[id]
	if !ok {
		return nil, laberr.E(laberr.KindNotFound, "test type %s not found", id)
	}
	return tt, nil
}

func (m *mockTestTypeRepo) Update(ctx context.Context, tt *TestType) error {
	if _, ok := m.items[tt.ID]; !ok {
		return laberr.E(laberr.KindNotFound, "test type %s not found", tt.ID)
	}
	m.items[tt.ID] = tt
	return nil
}

func (m *mockTestTypeRepo) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*TestType, int, error) {
	var items []*TestType
	for _, tt := range m.items {
		items = append(items, tt)
	}
	return items, len(items), nil
}

type mockInstrumentRepo struct {
	items map[uuid.UUID]*Instrument
}

func newMockInstrumentRepo() *mockInstrumentRepo {
	return &mockInstrumentRepo{items: make(map[uuid.UUID]*Instrument)}
}

func (m *mockInstrumentRepo) Create(ctx context.Context, in *Instrument) error {
	in.ID = uuid.New()
	m.items[in.ID] = in
	return nil
}

func (m *mockInstrumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*Instrument, error) {
	in, ok := m.items[id]
	if !ok {
		return nil, laberr.E(laberr.KindNotFound, "instrument %s not found", id)
	}
	return in, nil
}

func (m *mockInstrumentRepo) Update(ctx context.Context, in *Instrument) error {
	if _, ok := m.items[in.ID]; !ok {
		return laberr.E(laberr.KindNotFound, "instrument %s not found", in.ID)
	}
	m.items[in.ID] = in
	return nil
}

func (m *mockInstrumentRepo) List(ctx context.Context, limit, offset int) ([]*Instrument, int, error) {
	var items []*Instrument
	for _, in := range m.items {
		items = append(items, in)
	}
	return items, len(items), nil
}

type assignmentKey struct {
	testTypeID     uuid.UUID
	specimenTypeID uuid.UUID
}

type mockAssignmentRepo struct {
	pairs         map[assignmentKey]bool
	specimenTypes *mockSpecimenTypeRepo
}

func newMockAssignmentRepo(st *mockSpecimenTypeRepo) *mockAssignmentRepo {
	return &mockAssignmentRepo{pairs: make(map[assignmentKey]bool), specimenTypes: st}
}

func (m *mockAssignmentRepo) Assign(ctx context.Context, testTypeID, specimenTypeID uuid.UUID) error {
	m.pairs[assignmentKey{testTypeID, specimenTypeID}] = true
	return nil
}

func (m *mockAssignmentRepo) Unassign(ctx context.Context, testTypeID, specimenTypeID uuid.UUID) error {
	delete(m.pairs, assignmentKey{testTypeID, specimenTypeID})
	return nil
}

func (m *mockAssignmentRepo) ListByTestType(ctx context.Context, testTypeID uuid.UUID) ([]*SpecimenType, error) {
	var items []*SpecimenType
	for key := range m.pairs {
		if key.testTypeID == testTypeID {
			if st, ok := m.specimenTypes.items[key.specimenTypeID]; ok {
				items = append(items, st)
			}
		}
	}
	return items, nil
}

func (m *mockAssignmentRepo) IsAssigned(ctx context.Context, testTypeID, specimenTypeID uuid.UUID) (bool, error) {
	return m.pairs[assignmentKey{testTypeID, specimenTypeID}], nil
}

func newTestService() (*Service, *mockSpecimenTypeRepo, *mockTestTypeRepo, *mockInstrumentRepo, *mockAssignmentRepo) {
	st := newMockSpecimenTypeRepo()
	tt := newMockTestTypeRepo()
	in := newMockInstrumentRepo()
	as := newMockAssignmentRepo(st)
	return NewService(st, tt, in, as), st, tt, in, as
}

// -- Tests --

func TestCreateTestType_Validation(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.CreateTestType(ctx, &TestType{Code: "CBC"}); err == nil {
		t.Error("expected error for missing name")
	}
	if err := svc.CreateTestType(ctx, &TestType{Name: "Complete Blood Count"}); err == nil {
		t.Error("expected error for missing code")
	}
	if err := svc.CreateTestType(ctx, &TestType{Name: "Complete Blood Count", Code: "CBC", Active: true}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAssignSpecimenType_RequiresBothSides(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	tt := &TestType{Name: "Complete Blood Count", Code: "CBC"}
	if err := svc.CreateTestType(ctx, tt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := svc.AssignSpecimenType(ctx, tt.ID, uuid.New())
	if !laberr.IsKind(err, laberr.KindNotFound) {
		t.Errorf("expected not_found for unknown specimen type, got %v", err)
	}

	err = svc.AssignSpecimenType(ctx, uuid.New(), uuid.New())
	if !laberr.IsKind(err, laberr.KindNotFound) {
		t.Errorf("expected not_found for unknown test type, got %v", err)
	}
}

func TestAssignSpecimenType_Idempotent(t *testing.T) {
	svc, _, _, _, as := newTestService()
	ctx := context.Background()

	tt := &TestType{Name: "Complete Blood Count", Code: "CBC"}
	st := &SpecimenType{Name: "Whole Blood"}
	if err := svc.CreateTestType(ctx, tt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.CreateSpecimenType(ctx, st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.AssignSpecimenType(ctx, tt.ID, st.ID); err != nil {
			t.Fatalf("assign attempt %d: %v", i+1, err)
		}
	}
	if len(as.pairs) != 1 {
		t.Errorf("expected a single assignment, got %d", len(as.pairs))
	}

	ok, err := svc.IsAssigned(ctx, tt.ID, st.ID)
	if err != nil || !ok {
		t.Errorf("expected pair assigned, got ok=%v err=%v", ok, err)
	}
}

func TestGetAssignedSpecimenTypes(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	tt := &TestType{Name: "Lipid Panel", Code: "LIPID"}
	st1 := &SpecimenType{Name: "Serum"}
	st2 := &SpecimenType{Name: "Plasma"}
	for _, err := range []error{
		svc.CreateTestType(ctx, tt),
		svc.CreateSpecimenType(ctx, st1),
		svc.CreateSpecimenType(ctx, st2),
		svc.AssignSpecimenType(ctx, tt.ID, st1.ID),
		svc.AssignSpecimenType(ctx, tt.ID, st2.ID),
	} {
		if err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	items, err := svc.GetAssignedSpecimenTypes(ctx, tt.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 assigned specimen types, got %d", len(items))
	}
}

func TestUnassignSpecimenType(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	tt := &TestType{Name: "Lipid Panel", Code: "LIPID"}
	st := &SpecimenType{Name: "Serum"}
	if err := svc.CreateTestType(ctx, tt); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := svc.CreateSpecimenType(ctx, st); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := svc.AssignSpecimenType(ctx, tt.ID, st.ID); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := svc.UnassignSpecimenType(ctx, tt.ID, st.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, _ := svc.IsAssigned(ctx, tt.ID, st.ID)
	if ok {
		t.Error("expected pair unassigned")
	}
}

func TestCreateInstrument_Validation(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.CreateInstrument(ctx, &Instrument{}); err == nil {
		t.Error("expected error for missing name")
	}
	if err := svc.CreateInstrument(ctx, &Instrument{Name: "Sysmex XN-1000", Active: true}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
