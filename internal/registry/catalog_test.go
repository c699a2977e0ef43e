package registry

import (
	"errors"
	"testing"

	"github.com/shaiso/Conductor/internal/domain"
)

func TestCatalog_Get_Unknown(t *testing.T) {
	c := DefaultCatalog()

	_, err := c.Get("no_such_package")
	if !errors.Is(err, ErrUnknownPackage) {
		t.Errorf("expected ErrUnknownPackage, got %v", err)
	}
}

func TestCatalog_Validate_AppliesDefaults(t *testing.T) {
	c := DefaultCatalog()

	cfg, err := c.Validate("orangefs", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg["mount"] != "/mnt/orangefs" {
		t.Errorf("default mount not applied: %v", cfg["mount"])
	}
	if cfg["port"] != 3334 {
		t.Errorf("default port not applied: %v", cfg["port"])
	}
}

func TestCatalog_Validate_UnknownParam(t *testing.T) {
	c := DefaultCatalog()

	_, err := c.Validate("orangefs", map[string]any{"bogus": 1})
	if !errors.Is(err, ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam, got %v", err)
	}
}

func TestCatalog_Validate_TypeMismatch(t *testing.T) {
	c := DefaultCatalog()

	_, err := c.Validate("orangefs", map[string]any{"port": "not-a-number"})
	if !errors.Is(err, ErrInvalidType) {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}
}

func TestCatalog_Validate_EnumConstraint(t *testing.T) {
	c := DefaultCatalog()

	_, err := c.Validate("orangefs", map[string]any{"protocol": "carrier-pigeon"})
	if !errors.Is(err, ErrConstraint) {
		t.Errorf("expected ErrConstraint, got %v", err)
	}
}

func TestCatalog_Validate_RangeConstraint(t *testing.T) {
	c := DefaultCatalog()

	_, err := c.Validate("orangefs", map[string]any{"port": 80})
	if !errors.Is(err, ErrConstraint) {
		t.Errorf("expected ErrConstraint for port below minimum, got %v", err)
	}
}

func TestCatalog_Validate_MissingRequired(t *testing.T) {
	c := DefaultCatalog()

	// ior declares "out" as required with no default
	_, err := c.Validate("ior", map[string]any{"api": "posix"})
	if !errors.Is(err, ErrMissingRequired) {
		t.Errorf("expected ErrMissingRequired, got %v", err)
	}
}

func TestCatalog_Validate_ResourceOverridesAllowed(t *testing.T) {
	c := DefaultCatalog()

	cfg, err := c.Validate("ior", map[string]any{"out": "/mnt/orangefs/test", "cores": 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg["cores"] != 4 {
		t.Errorf("override not preserved: %v", cfg["cores"])
	}
}

func TestCatalog_Demand_ExplicitOverridesWin(t *testing.T) {
	c := DefaultCatalog()

	demand, err := c.Demand("ior", map[string]any{"cores": 2, "memory_mb": 512})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if demand.Cores != 2 {
		t.Errorf("expected 2 cores, got %d", demand.Cores)
	}
	if demand.MemoryMB != 512 {
		t.Errorf("expected 512 MB, got %d", demand.MemoryMB)
	}
	// Non-overridden fields keep declared defaults
	if demand.NetworkMBps != 500 {
		t.Errorf("expected declared network demand 500, got %d", demand.NetworkMBps)
	}
}

func TestCatalog_Demand_DeclaredDefaults(t *testing.T) {
	c := DefaultCatalog()

	demand, err := c.Demand("orangefs", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if demand.StorageClass != domain.StorageClassSSD {
		t.Errorf("expected ssd storage class, got %s", demand.StorageClass)
	}
}

func TestCatalog_Analyze_BothSidesPresent(t *testing.T) {
	c := DefaultCatalog()

	rels := c.Analyze([]string{"ior", "darshan"})
	if len(rels) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(rels))
	}
	if rels[0].Type != RelComplement {
		t.Errorf("expected complement, got %s", rels[0].Type)
	}

	// One side missing — no relationship reported
	if got := c.Analyze([]string{"darshan"}); len(got) != 0 {
		t.Errorf("expected no relationships, got %d", len(got))
	}
}

func TestCatalog_Conflicts(t *testing.T) {
	c := DefaultCatalog()

	conflicts := c.Conflicts([]string{"darshan", "hermes_api", "ior"})
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	if conflicts[0].A != "darshan" || conflicts[0].B != "hermes_api" {
		t.Errorf("unexpected conflict pair: %+v", conflicts[0])
	}
}
