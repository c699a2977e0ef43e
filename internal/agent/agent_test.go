package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestCPUPercent(t *testing.T) {
	prev := cpuSample{busy: 100, total: 200}
	cur := cpuSample{busy: 150, total: 300}

	got := cpuPercent(prev, cur)
	if got != 50 {
		t.Errorf("cpuPercent = %v, want 50", got)
	}
}

func TestCPUPercent_NoProgress(t *testing.T) {
	sample := cpuSample{busy: 100, total: 200}
	if got := cpuPercent(sample, sample); got != 0 {
		t.Errorf("cpuPercent with equal samples = %v, want 0", got)
	}
}

func TestRunner_LogBuffer(t *testing.T) {
	r := New(Config{
		ExecutionID: uuid.New(),
		Node:        "node0",
		Packages:    []string{"ior"},
	})

	r.scanLines(strings.NewReader("line one\nline two\n"), "ior")

	r.logMu.Lock()
	pending := len(r.pending)
	first := ""
	if pending > 0 {
		first = r.pending[0]
	}
	r.logMu.Unlock()

	if pending != 2 {
		t.Fatalf("pending lines = %d, want 2", pending)
	}
	if !strings.HasPrefix(first, "[ior] ") {
		t.Errorf("line not prefixed with package name: %q", first)
	}

	// flush без publisher очищает буфер молча
	r.flushLogs(context.Background())

	r.logMu.Lock()
	defer r.logMu.Unlock()
	if len(r.pending) != 0 {
		t.Errorf("pending after flush = %d, want 0", len(r.pending))
	}
}

func TestRunner_AckWithoutPublisher(t *testing.T) {
	r := New(Config{ExecutionID: uuid.New(), Node: "node0"})

	// не должно паниковать
	r.ack(context.Background(), "launched", "")
}

func TestRunner_ProgressWithoutPublisher(t *testing.T) {
	r := New(Config{ExecutionID: uuid.New(), Node: "node0"})

	// не должно паниковать
	r.progress(context.Background(), "ior", 0)
}

func TestRunner_ResumeSkipsCompletedPackages(t *testing.T) {
	// Пакеты до resume index уже завершены и не перезапускаются:
	// заведомо несуществующий пакет за границей resume не исполняется
	r := New(Config{
		ExecutionID: uuid.New(),
		Node:        "node0",
		Packages:    []string{"no-such-package", "another-missing"},
		ResumeIndex: 2,
	})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("resumed run past all packages should succeed, got %v", err)
	}
}

func TestRunner_UnknownPackageFails(t *testing.T) {
	r := New(Config{
		ExecutionID: uuid.New(),
		Node:        "node0",
		Packages:    []string{"no-such-package"},
	})

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("Run with unknown package should fail")
	}
}
