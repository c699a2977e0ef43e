package compose

import (
	"errors"
	"testing"

	"github.com/shaiso/Conductor/internal/domain"
)

func testPipeline(names ...string) *domain.Pipeline {
	p := &domain.Pipeline{Name: "test", Status: domain.PipelineStatusCreated}
	for _, name := range names {
		p.Packages = append(p.Packages, domain.PackageEntry{
			Name: name,
			Type: domain.PackageTypeApplication,
		})
	}
	p.Resequence()
	if len(p.Packages) > 0 {
		p.Status = domain.PipelineStatusConfigured
	}
	return p
}

// --- InsertPackage ---

func TestInsertPackage_Append(t *testing.T) {
	p := testPipeline("a", "b")

	err := InsertPackage(p, domain.PackageEntry{Name: "c", Type: domain.PackageTypeApplication}, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.Packages) != 3 {
		t.Fatalf("expected 3 packages, got %d", len(p.Packages))
	}
	if p.Packages[2].Name != "c" || p.Packages[2].Order != 2 {
		t.Errorf("expected c at order 2, got %s at %d", p.Packages[2].Name, p.Packages[2].Order)
	}
}

func TestInsertPackage_AtPosition(t *testing.T) {
	p := testPipeline("a", "c")

	err := InsertPackage(p, domain.PackageEntry{Name: "b", Type: domain.PackageTypeApplication}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a", "b", "c"}
	for i, name := range want {
		if p.Packages[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, p.Packages[i].Name)
		}
		if p.Packages[i].Order != i {
			t.Errorf("position %d: expected order %d, got %d", i, i, p.Packages[i].Order)
		}
	}
}

func TestInsertPackage_Duplicate(t *testing.T) {
	p := testPipeline("a")

	err := InsertPackage(p, domain.PackageEntry{Name: "a", Type: domain.PackageTypeApplication}, -1)
	if !errors.Is(err, ErrDuplicatePackage) {
		t.Errorf("expected ErrDuplicatePackage, got %v", err)
	}
}

func TestInsertPackage_MarksConfigured(t *testing.T) {
	p := &domain.Pipeline{Name: "test", Status: domain.PipelineStatusCreated}

	if err := InsertPackage(p, domain.PackageEntry{Name: "a"}, -1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != domain.PipelineStatusConfigured {
		t.Errorf("expected CONFIGURED, got %s", p.Status)
	}
}

// --- RemovePackage ---

func TestRemovePackage_ClosesGap(t *testing.T) {
	p := testPipeline("a", "b", "c")

	if err := RemovePackage(p, "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Удаление индекса 1 из трёх оставляет индексы 0 и 1
	if len(p.Packages) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(p.Packages))
	}
	if p.Packages[0].Name != "a" || p.Packages[0].Order != 0 {
		t.Errorf("expected a at order 0, got %s at %d", p.Packages[0].Name, p.Packages[0].Order)
	}
	if p.Packages[1].Name != "c" || p.Packages[1].Order != 1 {
		t.Errorf("expected c at order 1, got %s at %d", p.Packages[1].Name, p.Packages[1].Order)
	}
}

func TestRemovePackage_NotFound(t *testing.T) {
	p := testPipeline("a")

	err := RemovePackage(p, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRemovePackage_LastResetsStatus(t *testing.T) {
	p := testPipeline("a")

	if err := RemovePackage(p, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != domain.PipelineStatusCreated {
		t.Errorf("expected CREATED after removing last package, got %s", p.Status)
	}
}

// --- Reorder ---

func TestReorder_Valid(t *testing.T) {
	p := testPipeline("a", "b", "c")

	if err := Reorder(p, []string{"c", "a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"c", "a", "b"}
	for i, name := range want {
		if p.Packages[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, p.Packages[i].Name)
		}
		if p.Packages[i].Order != i {
			t.Errorf("position %d: expected order %d, got %d", i, i, p.Packages[i].Order)
		}
	}
}

func TestReorder_NotPermutation(t *testing.T) {
	p := testPipeline("a", "b")

	cases := [][]string{
		{"a"},                // короче
		{"a", "b", "c"},      // длиннее
		{"a", "a"},           // дубликат
		{"a", "missing"},     // чужое имя
	}
	for _, order := range cases {
		if err := Reorder(p, order); !errors.Is(err, ErrOrderConstraint) {
			t.Errorf("order %v: expected ErrOrderConstraint, got %v", order, err)
		}
	}
}

func TestReorder_InterceptorChainPreserved(t *testing.T) {
	p := &domain.Pipeline{Name: "test"}
	p.Packages = []domain.PackageEntry{
		{Name: "svc", Type: domain.PackageTypeService},
		{Name: "i1", Type: domain.PackageTypeInterceptor},
		{Name: "i2", Type: domain.PackageTypeInterceptor},
		{Name: "app", Type: domain.PackageTypeApplication},
	}
	p.Resequence()

	// Interceptor'ы меняются местами — нарушает цепочку preload
	err := Reorder(p, []string{"svc", "i2", "i1", "app"})
	if !errors.Is(err, ErrOrderConstraint) {
		t.Errorf("expected ErrOrderConstraint for swapped interceptors, got %v", err)
	}

	// Относительный порядок interceptor'ов сохранён — перестановка допустима
	if err := Reorder(p, []string{"app", "i1", "svc", "i2"}); err != nil {
		t.Errorf("unexpected error for chain-preserving reorder: %v", err)
	}
}
