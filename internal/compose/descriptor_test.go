package compose

import (
	"errors"
	"strings"
	"testing"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/registry"
)

const sampleDescriptor = `name: io-bench
description: IOR against OrangeFS with Darshan tracing
environment: cluster-default
packages:
  - name: orangefs
    type: service
    config:
      mount: /mnt/pfs
      port: 3334
  - name: darshan
    type: interceptor
  - name: ior
    type: application
    config:
      out: /mnt/pfs/ior.out
      api: mpiio
`

func TestImport_Valid(t *testing.T) {
	catalog := registry.DefaultCatalog()

	p, err := Import(sampleDescriptor, catalog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Name != "io-bench" {
		t.Errorf("expected name io-bench, got %s", p.Name)
	}
	if p.EnvironmentName != "cluster-default" {
		t.Errorf("expected environment cluster-default, got %s", p.EnvironmentName)
	}
	if len(p.Packages) != 3 {
		t.Fatalf("expected 3 packages, got %d", len(p.Packages))
	}

	// Порядок и индексы следуют дескриптору
	want := []string{"orangefs", "darshan", "ior"}
	for i, name := range want {
		if p.Packages[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, p.Packages[i].Name)
		}
		if p.Packages[i].Order != i {
			t.Errorf("position %d: expected order %d, got %d", i, i, p.Packages[i].Order)
		}
	}

	// Дефолты схемы применены при импорте
	darshan := p.FindPackage("darshan")
	if darshan.Config["log_dir"] != "/tmp/darshan" {
		t.Errorf("expected default log_dir, got %v", darshan.Config["log_dir"])
	}
}

func TestImport_Malformed(t *testing.T) {
	catalog := registry.DefaultCatalog()

	_, err := Import("{not: [valid yaml", catalog)
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestImport_UnknownPackage(t *testing.T) {
	catalog := registry.DefaultCatalog()

	text := "name: p\npackages:\n  - name: nonexistent\n    type: service\n"
	_, err := Import(text, catalog)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestImport_TypeMismatch(t *testing.T) {
	catalog := registry.DefaultCatalog()

	// ior — application, не service
	text := "name: p\npackages:\n  - name: ior\n    type: service\n    config:\n      out: /tmp/x\n"
	_, err := Import(text, catalog)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestImport_InvalidConfig(t *testing.T) {
	catalog := registry.DefaultCatalog()

	// ior без обязательного out
	text := "name: p\npackages:\n  - name: ior\n    type: application\n"
	_, err := Import(text, catalog)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestImport_NoName(t *testing.T) {
	catalog := registry.DefaultCatalog()

	_, err := Import("packages: []\n", catalog)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

// Round-trip закон: export(import(d)) эквивалентен d —
// повторный импорт экспортированного текста даёт тот же pipeline.
func TestRoundTrip(t *testing.T) {
	catalog := registry.DefaultCatalog()

	p1, err := Import(sampleDescriptor, catalog)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}

	text, err := Export(p1)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	p2, err := Import(text, catalog)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}

	if p2.Name != p1.Name || p2.EnvironmentName != p1.EnvironmentName {
		t.Errorf("identity changed: %s/%s vs %s/%s",
			p1.Name, p1.EnvironmentName, p2.Name, p2.EnvironmentName)
	}
	if len(p2.Packages) != len(p1.Packages) {
		t.Fatalf("package count changed: %d vs %d", len(p1.Packages), len(p2.Packages))
	}
	for i := range p1.Packages {
		a, b := p1.Packages[i], p2.Packages[i]
		if a.Name != b.Name || a.Type != b.Type || a.Order != b.Order {
			t.Errorf("package %d changed: %+v vs %+v", i, a, b)
		}
		for k, v := range a.Config {
			if b.Config[k] != v {
				t.Errorf("package %s config %s changed: %v vs %v", a.Name, k, v, b.Config[k])
			}
		}
	}
}

func TestExport_ContainsPackagesInOrder(t *testing.T) {
	p := &domain.Pipeline{Name: "p"}
	p.Packages = []domain.PackageEntry{
		{Name: "orangefs", Type: domain.PackageTypeService},
		{Name: "ior", Type: domain.PackageTypeApplication},
	}
	p.Resequence()

	text, err := Export(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := strings.Index(text, "orangefs")
	second := strings.Index(text, "ior")
	if first < 0 || second < 0 || first > second {
		t.Errorf("descriptor order wrong:\n%s", text)
	}
}
