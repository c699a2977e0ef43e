package orchestrator

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/mq"
)

// --- ExecState Tests ---

func testState(nodes ...string) *ExecState {
	plan := &domain.AllocationPlan{PipelineName: "p"}
	for i, n := range nodes {
		plan.Assignments = append(plan.Assignments, domain.Assignment{
			NodeID:   i,
			NodeName: n,
			Address:  n + ".local",
			Packages: []string{"ior"},
		})
	}
	exec := &domain.ExecutionRecord{
		ID:           uuid.New(),
		PipelineName: "p",
		Status:       domain.ExecStatusLaunching,
		Plan:         plan,
	}
	return NewExecState(exec, &domain.Pipeline{Name: "p"})
}

func TestNewExecState(t *testing.T) {
	state := testState("node0")

	if state.Exec == nil {
		t.Error("Exec should be set")
	}
	if state.Pipeline == nil {
		t.Error("Pipeline should be set")
	}
	if state.acks == nil {
		t.Error("acks map should be initialized")
	}
	if state.acksCh == nil {
		t.Error("acks channel should be initialized")
	}
	if state.stopsCh == nil {
		t.Error("stops channel should be initialized")
	}
}

func TestExecState_AckQuorum(t *testing.T) {
	state := testState("node0", "node1")

	if state.AckQuorum() {
		t.Error("quorum without acks")
	}

	state.RecordAck("node0")
	if state.AckQuorum() {
		t.Error("quorum with one of two acks")
	}

	state.RecordAck("node1")
	if !state.AckQuorum() {
		t.Error("expected quorum with all nodes acked")
	}
}

func TestExecState_RecordAckDeduplicates(t *testing.T) {
	state := testState("node0")

	if !state.RecordAck("node0") {
		t.Error("first ack should be new")
	}
	if state.RecordAck("node0") {
		t.Error("duplicate ack should be rejected")
	}
}

func TestExecState_PendingAcks(t *testing.T) {
	state := testState("node0", "node1", "node2")
	state.RecordAck("node1")

	pending := state.PendingAcks()
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending nodes, got %v", pending)
	}
	if pending[0] != "node0" || pending[1] != "node2" {
		t.Errorf("unexpected pending nodes: %v", pending)
	}
}

func TestExecState_AllSettled(t *testing.T) {
	state := testState("node0", "node1")

	if state.AllSettled() {
		t.Error("settled without any node finishing")
	}

	state.RecordCompleted("node0")
	if state.AllSettled() {
		t.Error("settled with one node still running")
	}

	state.RecordFailed("node1", "ior exited with code 2")
	if !state.AllSettled() {
		t.Error("expected settled with all nodes terminal")
	}

	node, reason := state.FirstFailure()
	if node != "node1" {
		t.Errorf("expected failure on node1, got %q", node)
	}
	if reason != "ior exited with code 2" {
		t.Errorf("unexpected reason: %q", reason)
	}
}

func TestExecState_FirstFailure_NoneFailed(t *testing.T) {
	state := testState("node0")
	state.RecordCompleted("node0")

	if node, _ := state.FirstFailure(); node != "" {
		t.Errorf("expected no failure, got %q", node)
	}
}

func TestExecState_StoppedCountsAsSettled(t *testing.T) {
	state := testState("node0", "node1")
	state.RecordCompleted("node0")
	state.RecordStopped("node1")

	if !state.AllSettled() {
		t.Error("stopped node should count as settled")
	}
	if node, _ := state.FirstFailure(); node != "" {
		t.Error("stopped node is not a failure")
	}
}

func TestExecState_IncRetry(t *testing.T) {
	state := testState("node0")

	if n := state.IncRetry("node0"); n != 1 {
		t.Errorf("expected 1, got %d", n)
	}
	if n := state.IncRetry("node0"); n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
}

func TestExecState_Deliver(t *testing.T) {
	state := testState("node0")

	ack := mq.NodeAckPayload{
		ExecutionID: state.ExecutionID(),
		Node:        "node0",
		Phase:       ackPhaseLaunched,
	}
	if !state.Deliver(ack) {
		t.Fatal("deliver into empty queue should succeed")
	}

	got := <-state.acksCh
	if got.Node != "node0" || got.Phase != ackPhaseLaunched {
		t.Errorf("unexpected ack: %+v", got)
	}
}

func TestExecState_Stats(t *testing.T) {
	state := testState("node0", "node1")
	state.RecordAck("node0")
	state.RecordAck("node1")
	state.RecordCompleted("node0")
	state.RecordFailed("node1", "oom")

	stats := state.Stats()
	if stats.NodesTotal != 2 {
		t.Errorf("expected 2 total, got %d", stats.NodesTotal)
	}
	if stats.NodesAcked != 2 {
		t.Errorf("expected 2 acked, got %d", stats.NodesAcked)
	}
	if stats.NodesDone != 1 {
		t.Errorf("expected 1 done, got %d", stats.NodesDone)
	}
	if stats.NodesFailed != 1 {
		t.Errorf("expected 1 failed, got %d", stats.NodesFailed)
	}
}

// --- Orchestrator Tests ---

func TestOrchestrator_ActiveTracking(t *testing.T) {
	o := New(Config{})

	state := testState("node0")
	if err := o.addActive(state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !o.isActive(state.ExecutionID()) {
		t.Error("execution should be active")
	}
	if o.ActiveCount() != 1 {
		t.Errorf("expected 1 active, got %d", o.ActiveCount())
	}

	if err := o.addActive(state); err != ErrExecutionAlreadyActive {
		t.Errorf("expected ErrExecutionAlreadyActive, got %v", err)
	}

	o.removeActive(state.ExecutionID())
	if o.isActive(state.ExecutionID()) {
		t.Error("execution should be removed")
	}
}

func TestOrchestrator_GetActiveStats(t *testing.T) {
	o := New(Config{})

	if _, ok := o.GetActiveStats(uuid.New()); ok {
		t.Error("stats for unknown execution")
	}

	state := testState("node0")
	if err := o.addActive(state); err != nil {
		t.Fatal(err)
	}

	stats, ok := o.GetActiveStats(state.ExecutionID())
	if !ok {
		t.Fatal("expected stats")
	}
	if stats.NodesTotal != 1 {
		t.Errorf("expected 1 node, got %d", stats.NodesTotal)
	}
}

func TestRequestedPlacement_Defaults(t *testing.T) {
	exec := &domain.ExecutionRecord{}

	strategy, method := requestedPlacement(exec)
	if strategy != domain.StrategyBalanced {
		t.Errorf("expected balanced, got %s", strategy)
	}
	if method.Type != domain.MethodLocal {
		t.Errorf("expected local, got %s", method.Type)
	}
}

func TestRequestedPlacement_FromSkeletonPlan(t *testing.T) {
	exec := &domain.ExecutionRecord{
		Plan: &domain.AllocationPlan{
			Strategy: domain.StrategyIOIntensive,
			Method:   domain.MethodConfig{Type: domain.MethodPSSH, SSHUser: "hpc"},
		},
	}

	strategy, method := requestedPlacement(exec)
	if strategy != domain.StrategyIOIntensive {
		t.Errorf("expected io_intensive, got %s", strategy)
	}
	if method.Type != domain.MethodPSSH || method.SSHUser != "hpc" {
		t.Errorf("unexpected method: %+v", method)
	}
}

func TestBuildCommand(t *testing.T) {
	o := New(Config{AgentBin: "/opt/conductor/bin/conductor-agent"})
	state := testState("node0")
	state.Exec.ResumeIndex = 2

	env := &domain.Environment{
		Variables: map[string]string{"LD_PRELOAD": "libdarshan.so"},
		Modules:   []string{"mpi", "ior"},
	}

	cmd := o.buildCommand(state, env, &state.Exec.Plan.Assignments[0])

	if !strings.HasPrefix(cmd.Line, "/opt/conductor/bin/conductor-agent run") {
		t.Errorf("unexpected command line: %s", cmd.Line)
	}
	for _, want := range []string{
		"--execution " + state.Exec.ID.String(),
		"--node node0",
		"--packages ior",
		"--resume 2",
	} {
		if !strings.Contains(cmd.Line, want) {
			t.Errorf("command line missing %q: %s", want, cmd.Line)
		}
	}
	if cmd.Env["LD_PRELOAD"] != "libdarshan.so" {
		t.Error("environment variables should be propagated")
	}
	if cmd.Env["CONDUCTOR_MODULES"] != "mpi:ior" {
		t.Errorf("unexpected modules: %q", cmd.Env["CONDUCTOR_MODULES"])
	}
	if cmd.Env["CONDUCTOR_EXECUTION"] != state.Exec.ID.String() {
		t.Error("CONDUCTOR_EXECUTION should be set")
	}
}

func TestBuildCommand_Collective(t *testing.T) {
	o := New(Config{})
	state := testState("node0", "node1")

	cmd := o.buildCommand(state, nil, nil)

	if strings.Contains(cmd.Line, "--node") || strings.Contains(cmd.Line, "--packages") {
		t.Errorf("collective launch should not pin a node: %s", cmd.Line)
	}
	if !strings.Contains(cmd.Line, "--execution "+state.Exec.ID.String()) {
		t.Errorf("command line missing execution id: %s", cmd.Line)
	}
}

func TestProcessPattern(t *testing.T) {
	o := New(Config{})
	id := uuid.New()

	pattern := o.processPattern(id)
	if pattern != "conductor-agent run --execution "+id.String() {
		t.Errorf("unexpected pattern: %s", pattern)
	}
}
