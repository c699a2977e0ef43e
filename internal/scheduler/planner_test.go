package scheduler

import (
	"errors"
	"testing"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/registry"
)

func testGraph() *domain.ResourceGraph {
	return &domain.ResourceGraph{
		Version: 1,
		Nodes: []domain.NodeInfo{
			{
				ID: 0, Name: "node0", Address: "node0", Cores: 32, MemoryMB: 65536, NetworkMBps: 10000,
				Storage: []domain.StorageTier{
					{Mount: "/mnt/nvme", Class: domain.StorageClassNVMe, CapacityGB: 512, BandwidthMBps: 3000},
				},
			},
			{
				ID: 1, Name: "node1", Address: "node1", Cores: 32, MemoryMB: 65536, NetworkMBps: 10000,
				Storage: []domain.StorageTier{
					{Mount: "/mnt/hdd", Class: domain.StorageClassHDD, CapacityGB: 2048, BandwidthMBps: 200},
					{Mount: "/mnt/ssd", Class: domain.StorageClassSSD, CapacityGB: 256, BandwidthMBps: 300},
				},
			},
		},
	}
}

func testPipeline(t *testing.T, catalog *registry.Catalog, pkgs ...string) *domain.Pipeline {
	t.Helper()
	p := &domain.Pipeline{Name: "test", Status: domain.PipelineStatusConfigured}
	for i, name := range pkgs {
		def, err := catalog.Get(name)
		if err != nil {
			t.Fatalf("unknown test package %s: %v", name, err)
		}
		cfg := map[string]any{}
		if name == "ior" {
			cfg["out"] = "/tmp/ior.out"
		}
		p.Packages = append(p.Packages, domain.PackageEntry{
			Name:   name,
			Type:   def.Type,
			Order:  i,
			Config: cfg,
		})
	}
	return p
}

// Scenario: io_intensive на двух узлах, у node0 высокая пропускная
// способность хранения — storage-сервис обязан попасть на node0.
func TestPlan_IOIntensivePlacesStorageOnFastNode(t *testing.T) {
	catalog := registry.DefaultCatalog()
	planner := NewPlanner(catalog, nil)

	pipeline := testPipeline(t, catalog, "chronolog", "ior")

	plan, err := planner.Plan(Request{
		Pipeline: pipeline,
		Graph:    testGraph(),
		Strategy: domain.StrategyIOIntensive,
		Method:   domain.MethodConfig{Type: domain.MethodSSH},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var storageNode string
	for _, a := range plan.Assignments {
		for _, pkg := range a.Packages {
			if pkg == "chronolog" {
				storageNode = a.NodeName
			}
		}
	}
	if storageNode != "node0" {
		t.Errorf("expected storage service on node0 (high bandwidth), got %s", storageNode)
	}
}

// Инвариант: резервация узла никогда не превышает его ёмкость в snapshot'е.
func TestPlan_CapacityInvariant(t *testing.T) {
	catalog := registry.DefaultCatalog()
	planner := NewPlanner(catalog, nil)

	pipeline := testPipeline(t, catalog, "chronolog", "gray_scott", "ior", "darshan")
	graph := testGraph()

	for _, strategy := range []domain.Strategy{
		domain.StrategyBalanced,
		domain.StrategyComputeIntensive,
		domain.StrategyIOIntensive,
		domain.StrategyMemoryIntensive,
	} {
		plan, err := planner.Plan(Request{
			Pipeline: pipeline,
			Graph:    graph,
			Strategy: strategy,
			Method:   domain.MethodConfig{Type: domain.MethodPSSH},
		})
		if err != nil {
			t.Fatalf("strategy %s: %v", strategy, err)
		}

		for _, a := range plan.Assignments {
			node := graph.Node(a.NodeID)
			if node == nil {
				t.Fatalf("strategy %s: assignment to unknown node %d", strategy, a.NodeID)
			}
			if a.Reserved.Cores > node.Cores {
				t.Errorf("strategy %s: node %s cores over capacity: %d > %d",
					strategy, a.NodeName, a.Reserved.Cores, node.Cores)
			}
			if a.Reserved.MemoryMB > node.MemoryMB {
				t.Errorf("strategy %s: node %s memory over capacity: %d > %d",
					strategy, a.NodeName, a.Reserved.MemoryMB, node.MemoryMB)
			}
			if a.Reserved.StorageGB > node.StorageCapacity("") {
				t.Errorf("strategy %s: node %s storage over capacity: %d > %d",
					strategy, a.NodeName, a.Reserved.StorageGB, node.StorageCapacity(""))
			}
		}
	}
}

func TestPlan_InsufficientResourcesNamesPackage(t *testing.T) {
	catalog := registry.DefaultCatalog()
	planner := NewPlanner(catalog, nil)

	graph := &domain.ResourceGraph{
		Version: 1,
		Nodes: []domain.NodeInfo{
			{ID: 0, Name: "tiny", Address: "tiny", Cores: 2, MemoryMB: 1024, NetworkMBps: 100},
		},
	}

	// gray_scott требует 16 ядер — не помещается
	pipeline := testPipeline(t, catalog, "gray_scott")

	_, err := planner.Plan(Request{
		Pipeline: pipeline,
		Graph:    graph,
		Strategy: domain.StrategyBalanced,
		Method:   domain.MethodConfig{Type: domain.MethodLocal},
	})

	var insufficient *InsufficientResourcesError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientResourcesError, got %v", err)
	}
	if insufficient.Package != "gray_scott" {
		t.Errorf("error should name the offending package, got %s", insufficient.Package)
	}
	if insufficient.Shortfall == "" {
		t.Error("error should describe the shortfall")
	}
}

func TestPlan_PinnedHintIsHardConstraint(t *testing.T) {
	catalog := registry.DefaultCatalog()
	planner := NewPlanner(catalog, nil)

	pipeline := testPipeline(t, catalog, "chronolog")

	// Пакет принудительно на node1, хотя io_intensive выбрал бы node0
	plan, err := planner.Plan(Request{
		Pipeline: pipeline,
		Graph:    testGraph(),
		Strategy: domain.StrategyIOIntensive,
		Method:   domain.MethodConfig{Type: domain.MethodSSH},
		Pinned:   map[string]string{"chronolog": "node1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a := plan.Assignment("node1"); a == nil || len(a.Packages) != 1 {
		t.Errorf("expected chronolog pinned to node1, assignments: %+v", plan.Assignments)
	}

	// Hint на отсутствующий узел — ошибка, не тихое перераспределение
	_, err = planner.Plan(Request{
		Pipeline: pipeline,
		Graph:    testGraph(),
		Strategy: domain.StrategyBalanced,
		Method:   domain.MethodConfig{Type: domain.MethodSSH},
		Pinned:   map[string]string{"chronolog": "ghost"},
	})
	if !errors.Is(err, ErrPinnedNodeMissing) {
		t.Errorf("expected ErrPinnedNodeMissing, got %v", err)
	}
}

func TestPlan_TieBreakLowestNodeID(t *testing.T) {
	catalog := registry.DefaultCatalog()
	planner := NewPlanner(catalog, nil)

	// Два одинаковых пустых узла — первый пакет обязан попасть на ID 0
	graph := &domain.ResourceGraph{
		Version: 1,
		Nodes: []domain.NodeInfo{
			{ID: 1, Name: "b", Address: "b", Cores: 32, MemoryMB: 65536, NetworkMBps: 10000},
			{ID: 0, Name: "a", Address: "a", Cores: 32, MemoryMB: 65536, NetworkMBps: 10000},
		},
	}

	pipeline := testPipeline(t, catalog, "gray_scott")
	plan, err := planner.Plan(Request{
		Pipeline: pipeline,
		Graph:    graph,
		Strategy: domain.StrategyBalanced,
		Method:   domain.MethodConfig{Type: domain.MethodSSH},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Assignments) != 1 || plan.Assignments[0].NodeID != 0 {
		t.Errorf("expected package on node ID 0, got %+v", plan.Assignments)
	}
}

func TestPlan_LocalMethodUsesSingleNode(t *testing.T) {
	catalog := registry.DefaultCatalog()
	planner := NewPlanner(catalog, nil)

	pipeline := testPipeline(t, catalog, "chronolog", "ior")
	plan, err := planner.Plan(Request{
		Pipeline: pipeline,
		Graph:    testGraph(),
		Strategy: domain.StrategyBalanced,
		Method:   domain.MethodConfig{Type: domain.MethodLocal},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Assignments) != 1 {
		t.Errorf("local method must place everything on one node, got %d assignments", len(plan.Assignments))
	}
}

func TestPlan_Validation(t *testing.T) {
	catalog := registry.DefaultCatalog()
	planner := NewPlanner(catalog, nil)

	_, err := planner.Plan(Request{
		Pipeline: testPipeline(t, catalog, "ior"),
		Graph:    testGraph(),
		Strategy: "round_robin",
	})
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}

	_, err = planner.Plan(Request{
		Pipeline: &domain.Pipeline{Name: "empty"},
		Graph:    testGraph(),
		Strategy: domain.StrategyBalanced,
	})
	if !errors.Is(err, ErrEmptyPipeline) {
		t.Errorf("expected ErrEmptyPipeline, got %v", err)
	}

	_, err = planner.Plan(Request{
		Pipeline: testPipeline(t, catalog, "ior"),
		Graph:    &domain.ResourceGraph{Version: 1},
		Strategy: domain.StrategyBalanced,
	})
	if !errors.Is(err, ErrNoNodes) {
		t.Errorf("expected ErrNoNodes, got %v", err)
	}
}
