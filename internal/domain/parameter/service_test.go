package parameter

import (
	"context"
	"sort"
	"testing"

	"github.com/google/uuid"

	"github.com/lims/lims/internal/platform/laberr"
)

type mockRepo struct {
	items map[uuid.UUID]*ResultParameter
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*ResultParameter)}
}

func (m *mockRepo) Create(ctx context.Context, p *ResultParameter) error {
	p.ID = uuid.New()
	cp := *p
	if p.Numeric != nil {
		n := *p.Numeric
		cp.Numeric = &n
	}
	m.items[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*ResultParameter, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, laberr.E(laberr.KindNotFound, "result parameter %s not found", id)
	}
	return p, nil
}

func (m *mockRepo) Update(ctx context.Context, p *ResultParameter) error {
	if _, ok := m.items[p.ID]; !ok {
		return laberr.E(laberr.KindNotFound, "result parameter %s not found", p.ID)
	}
	cp := *p
	if p.Numeric != nil {
		n := *p.Numeric
		cp.Numeric = &n
	}
	m.items[p.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return laberr.E(laberr.KindNotFound, "result parameter %s not found", id)
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) ListByTestType(ctx context.Context, testTypeID uuid.UUID) ([]*ResultParameter, error) {
	var items []*ResultParameter
	for _, p := range m.items {
		if p.TestTypeID == testTypeID {
			items = append(items, p)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items, nil
}

func (m *mockRepo) CountByTestType(ctx context.Context, testTypeID uuid.UUID) (int, error) {
	count := 0
	for _, p := range m.items {
		if p.TestTypeID == testTypeID {
			count++
		}
	}
	return count, nil
}

type mockTestTypeChecker struct {
	known map[uuid.UUID]bool
}

func (m *mockTestTypeChecker) TestTypeExists(ctx context.Context, id uuid.UUID) error {
	if !m.known[id] {
		return laberr.E(laberr.KindNotFound, "test type %s not found", id)
	}
	return nil
}

func newParamService(testTypeID uuid.UUID) (*Service, *mockRepo) {
	repo := newMockRepo()
	checker := &mockTestTypeChecker{known: map[uuid.UUID]bool{testTypeID: true}}
	return NewService(repo, checker), repo
}

func numericParam(name, unit, rng string) *ResultParameter {
	return &ResultParameter{
		Name: name,
		Kind: KindNumeric,
		Numeric: &NumericSpec{
			SIUnit:         unit,
			ReferenceRange: rng,
		},
	}
}

func TestAddParameter_AssignsPositionInOrder(t *testing.T) {
	testTypeID := uuid.New()
	svc, _ := newParamService(testTypeID)
	ctx := context.Background()

	first := numericParam("Hemoglobin", "g/dL", "13.5 - 17.5")
	second := numericParam("Hematocrit", "%", "41 - 53")
	third := &ResultParameter{Name: "Morphology", Kind: KindText}

	for _, p := range []*ResultParameter{first, second, third} {
		if err := svc.AddParameter(ctx, testTypeID, p); err != nil {
			t.Fatalf("add %s: %v", p.Name, err)
		}
	}

	items, err := svc.ListByTestType(ctx, testTypeID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 parameters, got %d", len(items))
	}
	for i, want := range []string{"Hemoglobin", "Hematocrit", "Morphology"} {
		if items[i].Name != want {
			t.Errorf("position %d: expected %s, got %s", i, want, items[i].Name)
		}
		if items[i].Position != i+1 {
			t.Errorf("%s: expected position %d, got %d", want, i+1, items[i].Position)
		}
	}
}

func TestAddParameter_UnknownTestType(t *testing.T) {
	svc, _ := newParamService(uuid.New())
	err := svc.AddParameter(context.Background(), uuid.New(), numericParam("Hgb", "g/dL", "13.5 - 17.5"))
	if !laberr.IsKind(err, laberr.KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestAddParameter_RejectsInvalidDefinition(t *testing.T) {
	testTypeID := uuid.New()
	svc, repo := newParamService(testTypeID)

	err := svc.AddParameter(context.Background(), testTypeID, numericParam("Hgb", "g/dL", "not a range"))
	if !laberr.IsKind(err, laberr.KindInvalidParameterDefinition) {
		t.Errorf("expected invalid_parameter_definition, got %v", err)
	}
	if len(repo.items) != 0 {
		t.Error("invalid definition must not be stored")
	}
}

func TestUpdateParameter_PreservesIdentityAndPosition(t *testing.T) {
	testTypeID := uuid.New()
	svc, repo := newParamService(testTypeID)
	ctx := context.Background()

	p := numericParam("Hemoglobin", "g/dL", "13.5 - 17.5")
	if err := svc.AddParameter(ctx, testTypeID, p); err != nil {
		t.Fatalf("setup: %v", err)
	}

	update := numericParam("Hemoglobin", "g/dL", "12.0 - 16.0")
	if err := svc.UpdateParameter(ctx, p.ID, update); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := repo.items[p.ID]
	if stored == nil {
		t.Fatal("parameter lost after update")
	}
	if stored.Position != p.Position || stored.TestTypeID != testTypeID {
		t.Errorf("identity fields changed: %+v", stored)
	}
	if stored.Numeric.NormalMin != 12.0 || stored.Numeric.NormalMax != 16.0 {
		t.Errorf("expected re-derived bounds, got %+v", stored.Numeric)
	}
}

func TestUpdateParameter_RevalidationFailureLeavesStored(t *testing.T) {
	testTypeID := uuid.New()
	svc, repo := newParamService(testTypeID)
	ctx := context.Background()

	p := numericParam("Hemoglobin", "g/dL", "13.5 - 17.5")
	if err := svc.AddParameter(ctx, testTypeID, p); err != nil {
		t.Fatalf("setup: %v", err)
	}

	bad := numericParam("Hemoglobin", "", "13.5 - 17.5")
	err := svc.UpdateParameter(ctx, p.ID, bad)
	if !laberr.IsKind(err, laberr.KindInvalidParameterDefinition) {
		t.Fatalf("expected invalid_parameter_definition, got %v", err)
	}
	if repo.items[p.ID].Numeric.SIUnit != "g/dL" {
		t.Error("stored definition must be untouched after failed update")
	}
}

func TestDeleteParameter(t *testing.T) {
	testTypeID := uuid.New()
	svc, _ := newParamService(testTypeID)
	ctx := context.Background()

	p := &ResultParameter{Name: "Morphology", Kind: KindText}
	if err := svc.AddParameter(ctx, testTypeID, p); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := svc.DeleteParameter(ctx, p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetParameter(ctx, p.ID); !laberr.IsKind(err, laberr.KindNotFound) {
		t.Errorf("expected not_found after delete, got %v", err)
	}
}
