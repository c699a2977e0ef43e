package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
)

func TestContentHash_Deterministic(t *testing.T) {
	id := uuid.New()
	cp := &domain.Checkpoint{
		ExecutionID:  id,
		PackageIndex: 2,
		NodeSnapshots: map[string]string{
			"node1": "/shared/ckpt/node1",
			"node0": "/shared/ckpt/node0",
		},
	}

	h1 := contentHash(cp)
	h2 := contentHash(cp)
	if h1 != h2 {
		t.Error("hash should be deterministic")
	}
	if len(h1) != 64 {
		t.Errorf("expected sha256 hex, got %q", h1)
	}

	// Seq и Verified не влияют на hash
	cp.Seq = 7
	cp.Verified = true
	if contentHash(cp) != h1 {
		t.Error("seq and verified should not affect hash")
	}
}

func TestContentHash_SensitiveToContent(t *testing.T) {
	id := uuid.New()
	base := &domain.Checkpoint{ExecutionID: id, PackageIndex: 1}

	h := contentHash(base)

	changed := &domain.Checkpoint{ExecutionID: id, PackageIndex: 2}
	if contentHash(changed) == h {
		t.Error("package index change should change hash")
	}

	withSnapshot := &domain.Checkpoint{
		ExecutionID:   id,
		PackageIndex:  1,
		NodeSnapshots: map[string]string{"node0": "/p"},
	}
	if contentHash(withSnapshot) == h {
		t.Error("snapshot change should change hash")
	}
}

func testGraph(nodes ...domain.NodeInfo) *domain.ResourceGraph {
	return &domain.ResourceGraph{Version: 3, Nodes: nodes, BuiltAt: time.Now()}
}

func TestPlanCompatible(t *testing.T) {
	plan := &domain.AllocationPlan{
		Assignments: []domain.Assignment{
			{NodeName: "node0", Reserved: domain.ResourceDemand{Cores: 8, MemoryMB: 16384}},
		},
	}

	ok := testGraph(domain.NodeInfo{Name: "node0", Cores: 32, MemoryMB: 65536})
	if !PlanCompatible(plan, ok) {
		t.Error("plan should fit")
	}

	gone := testGraph(domain.NodeInfo{Name: "node9", Cores: 32, MemoryMB: 65536})
	if PlanCompatible(plan, gone) {
		t.Error("missing node should make plan stale")
	}

	shrunk := testGraph(domain.NodeInfo{Name: "node0", Cores: 4, MemoryMB: 65536})
	if PlanCompatible(plan, shrunk) {
		t.Error("shrunk cores should make plan stale")
	}

	lowMem := testGraph(domain.NodeInfo{Name: "node0", Cores: 32, MemoryMB: 8192})
	if PlanCompatible(plan, lowMem) {
		t.Error("shrunk memory should make plan stale")
	}
}

func TestDefaultSnapshots(t *testing.T) {
	m := NewManager(Config{BaseDir: "/mnt/pfs/ckpt"})

	exec := &domain.ExecutionRecord{
		ID: uuid.New(),
		Plan: &domain.AllocationPlan{
			Assignments: []domain.Assignment{
				{NodeName: "node0"},
				{NodeName: "node1"},
			},
		},
	}

	snapshots := m.defaultSnapshots(exec)
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
	}
	want := "/mnt/pfs/ckpt/" + exec.ID.String() + "/node0"
	if snapshots["node0"] != want {
		t.Errorf("expected %q, got %q", want, snapshots["node0"])
	}

	if m.defaultSnapshots(&domain.ExecutionRecord{ID: uuid.New()}) != nil {
		t.Error("no plan means no snapshots")
	}
}

func TestManager_ArmDisarm(t *testing.T) {
	m := NewManager(Config{Interval: time.Hour})
	defer m.Close()

	exec := &domain.ExecutionRecord{ID: uuid.New(), Status: domain.ExecStatusRunning}

	m.Arm(context.Background(), exec)
	if m.ArmedCount() != 1 {
		t.Fatalf("expected 1 armed, got %d", m.ArmedCount())
	}

	// Повторный Arm — no-op
	m.Arm(context.Background(), exec)
	if m.ArmedCount() != 1 {
		t.Errorf("duplicate arm should be no-op, got %d", m.ArmedCount())
	}

	m.Disarm(exec.ID)
	if m.ArmedCount() != 0 {
		t.Errorf("expected 0 armed, got %d", m.ArmedCount())
	}

	// Disarm незнакомого execution — no-op
	m.Disarm(uuid.New())
}

func TestManager_ProgressIndex(t *testing.T) {
	m := NewManager(Config{})
	execID := uuid.New()

	if _, reported := m.progressIndex(execID); reported {
		t.Fatal("no progress should be reported yet")
	}

	// Глобальный индекс — минимум из максимумов по узлам
	m.RecordProgress(execID, "node0", 3)
	m.RecordProgress(execID, "node1", 5)
	if idx, _ := m.progressIndex(execID); idx != 3 {
		t.Errorf("expected min index 3, got %d", idx)
	}

	// Запоздавшее подтверждение с меньшим индексом не откатывает
	m.RecordProgress(execID, "node1", 2)
	if idx, _ := m.progressIndex(execID); idx != 3 {
		t.Errorf("stale ack must not roll back, got %d", idx)
	}

	m.RecordProgress(execID, "node0", 6)
	if idx, _ := m.progressIndex(execID); idx != 5 {
		t.Errorf("expected min index 5, got %d", idx)
	}

	// Disarm забывает прогресс
	m.Disarm(execID)
	if _, reported := m.progressIndex(execID); reported {
		t.Error("progress should be cleared after disarm")
	}
}

func TestCheckpoint_ResumeAfterCompletedPackage(t *testing.T) {
	// Checkpoint с индексом k возобновляет execution с пакета k+1
	cp := &domain.Checkpoint{ExecutionID: uuid.New(), PackageIndex: 4}
	if got := cp.ResumeIndex(); got != 5 {
		t.Errorf("expected resume index 5, got %d", got)
	}
}

func TestReplanFeasible_WithoutPlanner(t *testing.T) {
	m := NewManager(Config{})

	src := &domain.ExecutionRecord{
		ID:           uuid.New(),
		PipelineName: "io-bench",
		Plan:         &domain.AllocationPlan{PipelineName: "io-bench"},
	}
	graph := testGraph(domain.NodeInfo{Name: "node0", Cores: 8})

	// Без планировщика устаревший план — сразу ошибка
	err := m.replanFeasible(context.Background(), src, graph)
	if !errors.Is(err, ErrResourcePlanStale) {
		t.Errorf("expected ErrResourcePlanStale, got %v", err)
	}
}

func TestCreate_RejectsNonRunning(t *testing.T) {
	m := NewManager(Config{})

	exec := &domain.ExecutionRecord{ID: uuid.New(), Status: domain.ExecStatusCompleted}
	if _, err := m.Create(context.Background(), exec, 0, nil); err != ErrNotRunning {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}
