package envbuild

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/shaiso/Conductor/internal/domain"
)

func ioPipeline() *domain.Pipeline {
	return &domain.Pipeline{
		Name: "io-bench",
		Packages: []domain.PackageEntry{
			{Name: "orangefs", Type: domain.PackageTypeService, Order: 0},
			{Name: "darshan", Type: domain.PackageTypeInterceptor, Order: 1},
			{Name: "hermes_api", Type: domain.PackageTypeInterceptor, Order: 2},
			{Name: "ior", Type: domain.PackageTypeApplication, Order: 3},
		},
	}
}

func TestDerive_FlagsPerLevel(t *testing.T) {
	cases := []struct {
		level domain.OptimizationLevel
		want  []string
	}{
		{domain.OptLevelFast, []string{"-O2", "-march=native"}},
		{domain.OptLevelBalanced, []string{"-O2", "-march=native", "-funroll-loops"}},
		{domain.OptLevelAggressive, []string{"-O3", "-march=native", "-funroll-loops", "-flto"}},
	}

	for _, tc := range cases {
		env, err := Derive("e", ioPipeline(), nil, tc.level)
		if err != nil {
			t.Fatalf("level %s: %v", tc.level, err)
		}
		if !slices.Equal(env.OptimizationFlags, tc.want) {
			t.Errorf("level %s: expected flags %v, got %v", tc.level, tc.want, env.OptimizationFlags)
		}
		if env.Variables["CFLAGS"] != strings.Join(tc.want, " ") {
			t.Errorf("level %s: CFLAGS mismatch: %s", tc.level, env.Variables["CFLAGS"])
		}
	}
}

func TestDerive_UnknownLevel(t *testing.T) {
	_, err := Derive("e", ioPipeline(), nil, "turbo")
	if !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("expected ErrUnknownLevel, got %v", err)
	}
}

func TestDerive_PreloadChainFollowsPipelineOrder(t *testing.T) {
	env, err := Derive("e", ioPipeline(), nil, domain.OptLevelBalanced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// darshan идёт раньше hermes_api в pipeline — и в LD_PRELOAD тоже
	want := "libdarshan.so:libhermes_api.so"
	if env.Variables["LD_PRELOAD"] != want {
		t.Errorf("expected LD_PRELOAD %q, got %q", want, env.Variables["LD_PRELOAD"])
	}
}

func TestDerive_ModulesSortedAndDeduplicated(t *testing.T) {
	env, err := Derive("e", ioPipeline(), nil, domain.OptLevelFast)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !slices.IsSorted(env.Modules) {
		t.Errorf("modules must be sorted for reproducibility: %v", env.Modules)
	}
	seen := make(map[string]bool)
	for _, m := range env.Modules {
		if seen[m] {
			t.Errorf("duplicate module %s", m)
		}
		seen[m] = true
	}
	// hermes_api и ior оба требуют свои модули
	if !slices.Contains(env.Modules, "mpi") {
		t.Errorf("expected mpi module for ior, got %v", env.Modules)
	}
}

func TestDerive_MachineSpecific(t *testing.T) {
	graph := &domain.ResourceGraph{
		Version: 3,
		Nodes:   []domain.NodeInfo{{ID: 0, Name: "n0"}, {ID: 1, Name: "n1"}},
	}

	env, err := Derive("e", ioPipeline(), graph, domain.OptLevelFast)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !env.MachineSpecific {
		t.Error("environment built against a snapshot must be machine specific")
	}
	if env.Variables["CONDUCTOR_NODE_COUNT"] != "2" {
		t.Errorf("expected node count 2, got %s", env.Variables["CONDUCTOR_NODE_COUNT"])
	}

	// Без snapshot'а окружение переносимо
	env2, err := Derive("e", ioPipeline(), nil, domain.OptLevelFast)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env2.MachineSpecific {
		t.Error("environment built without a snapshot must not be machine specific")
	}
}

func TestCopy_Independence(t *testing.T) {
	env, err := Derive("orig", ioPipeline(), nil, domain.OptLevelBalanced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clone := env.Copy("clone")
	clone.Variables["EXTRA"] = "1"
	clone.Modules = append(clone.Modules, "extra-module")

	if _, ok := env.Variables["EXTRA"]; ok {
		t.Error("mutating the copy leaked into the original variables")
	}
	if slices.Contains(env.Modules, "extra-module") {
		t.Error("mutating the copy leaked into the original modules")
	}
	if clone.Name != "clone" || env.Name != "orig" {
		t.Errorf("names wrong: %s / %s", env.Name, clone.Name)
	}
}
