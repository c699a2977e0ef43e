package launch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shaiso/Conductor/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_Dispatch(t *testing.T) {
	for _, method := range []domain.MethodType{
		domain.MethodLocal,
		domain.MethodSSH,
		domain.MethodPSSH,
		domain.MethodMPI,
	} {
		m, err := New(domain.MethodConfig{Type: method}, nil)
		if err != nil {
			t.Fatalf("method %s: %v", method, err)
		}
		m.Close()
	}

	if _, err := New(domain.MethodConfig{Type: "teleport"}, nil); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("expected ErrUnknownMethod, got %v", err)
	}
}

func TestTargetsFromPlan(t *testing.T) {
	plan := &domain.AllocationPlan{
		Assignments: []domain.Assignment{
			{NodeID: 0, NodeName: "node0", Address: "10.0.0.1"},
			{NodeID: 1, NodeName: "node1", Address: "10.0.0.2:2222"},
		},
	}

	targets := TargetsFromPlan(plan)
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if targets[0].Node != "node0" || targets[0].Address != "10.0.0.1" {
		t.Errorf("target 0 wrong: %+v", targets[0])
	}
	if targets[1].Address != "10.0.0.2:2222" {
		t.Errorf("target 1 wrong: %+v", targets[1])
	}
}

func TestFailed(t *testing.T) {
	ok := []Result{{Node: "a"}, {Node: "b"}}
	if Failed(ok) {
		t.Error("all-nil results must not be failed")
	}

	bad := []Result{{Node: "a"}, {Node: "b", Err: errors.New("boom")}}
	if !Failed(bad) {
		t.Error("a result with error must be failed")
	}
}

func TestLocal_LaunchCapturesOutput(t *testing.T) {
	local := NewLocal(testLogger())

	results := local.Launch(context.Background(), nil, Command{
		Line: "echo hello; echo oops >&2",
		Env:  map[string]string{"GREETING": "hi"},
	})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	if strings.TrimSpace(string(r.Stdout)) != "hello" {
		t.Errorf("stdout wrong: %q", r.Stdout)
	}
	if strings.TrimSpace(string(r.Stderr)) != "oops" {
		t.Errorf("stderr wrong: %q", r.Stderr)
	}
}

func TestLocal_LaunchEnvVisible(t *testing.T) {
	local := NewLocal(testLogger())

	results := local.Launch(context.Background(), []Target{{Node: "n0"}}, Command{
		Line: "echo $MARKER",
		Env:  map[string]string{"MARKER": "present"},
	})

	if results[0].Node != "n0" {
		t.Errorf("result attributed to %s, expected n0", results[0].Node)
	}
	if strings.TrimSpace(string(results[0].Stdout)) != "present" {
		t.Errorf("env not passed: %q", results[0].Stdout)
	}
}

func TestLocal_LaunchFailure(t *testing.T) {
	local := NewLocal(testLogger())

	results := local.Launch(context.Background(), nil, Command{Line: "exit 3"})
	if results[0].Err == nil {
		t.Error("expected error for nonzero exit")
	}
}

func TestLocal_StatusChecksPattern(t *testing.T) {
	local := NewLocal(testLogger())

	// Собственный процесс теста — заведомо живой для pgrep
	self := filepath.Base(os.Args[0])
	status := local.Status(context.Background(), []Target{{Node: "n0"}}, self)
	if status["n0"] != nil {
		t.Errorf("expected live process for %q, got %v", self, status["n0"])
	}

	status = local.Status(context.Background(), nil, "conductor-no-such-process")
	if status["localhost"] == nil {
		t.Error("expected error for unmatched pattern")
	}
}

func TestStatusPattern(t *testing.T) {
	if got := statusPattern("agent run"); got != "[a]gent run" {
		t.Errorf("got %q", got)
	}
	if got := statusPattern(""); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestBuildRemoteLine(t *testing.T) {
	line := buildRemoteLine(Command{
		Line: "ior -w",
		Env:  map[string]string{"A": "x y"},
		Dir:  "/data",
	})

	if !strings.Contains(line, "export A='x y';") {
		t.Errorf("env export missing: %q", line)
	}
	if !strings.Contains(line, "cd '/data' &&") {
		t.Errorf("cd missing: %q", line)
	}
	if !strings.HasSuffix(line, "ior -w") {
		t.Errorf("command must come last: %q", line)
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("plain"); got != "'plain'" {
		t.Errorf("got %q", got)
	}
	if got := shellQuote("it's"); got != `'it'\''s'` {
		t.Errorf("got %q", got)
	}
}

func TestMPI_BuildArgs(t *testing.T) {
	m := NewMPI(domain.MethodConfig{
		Type:         domain.MethodMPI,
		ProcsPerNode: 4,
		MPIFlags:     []string{"-bind-to", "core"},
	}, testLogger())

	targets := []Target{{Node: "node0"}, {Node: "node1"}}
	args := m.buildArgs(targets, Command{Line: "gray_scott"})
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-hosts node0,node1") {
		t.Errorf("hosts missing: %q", joined)
	}
	if !strings.Contains(joined, "-n 8") {
		t.Errorf("total procs wrong (4 per node, 2 nodes): %q", joined)
	}
	if !strings.Contains(joined, "-ppn 4") {
		t.Errorf("ppn missing: %q", joined)
	}
	if !strings.Contains(joined, "-bind-to core") {
		t.Errorf("extra flags missing: %q", joined)
	}
	if !strings.HasSuffix(joined, "sh -c gray_scott") {
		t.Errorf("command must come last: %q", joined)
	}
}

func TestMPI_BuildArgsHostfile(t *testing.T) {
	m := NewMPI(domain.MethodConfig{
		Type:         domain.MethodMPI,
		HostfilePath: "/etc/conductor/hostfile",
	}, testLogger())

	args := m.buildArgs([]Target{{Node: "node0"}}, Command{Line: "ior"})
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-hostfile /etc/conductor/hostfile") {
		t.Errorf("hostfile missing: %q", joined)
	}
	if strings.Contains(joined, "-hosts ") {
		t.Errorf("explicit hosts must not be set with a hostfile: %q", joined)
	}
}
