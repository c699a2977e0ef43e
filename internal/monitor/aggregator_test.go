package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/mq"
)

func TestUtilWindow_PushAndLast(t *testing.T) {
	w := newUtilWindow(3)

	if cpu, mem := w.Last(); cpu != 0 || mem != 0 {
		t.Error("empty window should report zeros")
	}

	w.Push(10, 1024)
	w.Push(20, 2048)

	cpu, mem := w.Last()
	if cpu != 20 || mem != 2048 {
		t.Errorf("expected last sample (20, 2048), got (%v, %v)", cpu, mem)
	}
	if w.Count() != 2 {
		t.Errorf("expected 2 samples, got %d", w.Count())
	}
}

func TestUtilWindow_EvictsOldest(t *testing.T) {
	w := newUtilWindow(3)
	w.Push(10, 0)
	w.Push(20, 0)
	w.Push(30, 0)
	w.Push(40, 0) // вытесняет 10

	if w.Count() != 3 {
		t.Fatalf("expected 3 samples, got %d", w.Count())
	}
	if avg := w.AvgCPU(); avg != 30 {
		t.Errorf("expected avg 30, got %v", avg)
	}
}

func TestLogRing_Tail(t *testing.T) {
	r := newLogRing(4)

	if r.Tail(10) != nil {
		t.Error("empty ring should return nil")
	}

	r.Append("a", "b", "c")
	got := r.Tail(2)
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("unexpected tail: %v", got)
	}

	// Tail(0) — всё содержимое
	if got := r.Tail(0); len(got) != 3 {
		t.Errorf("expected 3 lines, got %v", got)
	}
}

func TestLogRing_EvictsOldest(t *testing.T) {
	r := newLogRing(3)
	r.Append("1", "2", "3", "4", "5")

	got := r.Tail(0)
	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(got))
	}
	want := []string{"3", "4", "5"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestAggregator_SnapshotSorted(t *testing.T) {
	a := NewAggregator(Config{})
	execID := uuid.New()

	a.RecordHeartbeat(mq.NodeHeartbeatPayload{
		ExecutionID: execID, Node: "node1", CPUPercent: 50, MemoryMB: 4096,
	})
	a.RecordHeartbeat(mq.NodeHeartbeatPayload{
		ExecutionID: execID, Node: "node0", CPUPercent: 75, MemoryMB: 8192,
	})

	snapshot := a.Snapshot(execID)
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(snapshot))
	}
	if snapshot[0].Node != "node0" || snapshot[1].Node != "node1" {
		t.Errorf("snapshot should be sorted by node: %v", snapshot)
	}
	if snapshot[0].CPUPercent != 75 {
		t.Errorf("expected cpu 75, got %v", snapshot[0].CPUPercent)
	}
	if snapshot[1].MemoryMB != 4096 {
		t.Errorf("expected memory 4096, got %v", snapshot[1].MemoryMB)
	}
}

func TestAggregator_LogsPerNode(t *testing.T) {
	a := NewAggregator(Config{LogLines: 10})
	execID := uuid.New()

	a.RecordLogs(mq.NodeLogsPayload{
		ExecutionID: execID, Node: "node0", Lines: []string{"starting orangefs", "mounted"},
	})
	a.RecordLogs(mq.NodeLogsPayload{
		ExecutionID: execID, Node: "node1", Lines: []string{"ior: write 512 MiB/s"},
	})

	got := a.Logs(execID, "node0", 0)
	if len(got) != 2 || got[1] != "mounted" {
		t.Errorf("unexpected node0 logs: %v", got)
	}
	if got := a.Logs(execID, "node1", 0); len(got) != 1 {
		t.Errorf("unexpected node1 logs: %v", got)
	}
	if a.Logs(execID, "ghost", 0) != nil {
		t.Error("unknown node should return nil")
	}
}

func TestAggregator_Subscribe(t *testing.T) {
	a := NewAggregator(Config{})
	execID := uuid.New()

	ch, unsubscribe := a.Subscribe(execID)

	payload := mq.NodeLogsPayload{ExecutionID: execID, Node: "node0", Lines: []string{"x"}}
	a.RecordLogs(payload)

	select {
	case got := <-ch:
		if got.Node != "node0" {
			t.Errorf("unexpected payload: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive logs")
	}

	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	// Запись после отписки не паникует
	a.RecordLogs(payload)
}

func TestAggregator_SweepMarksUnresponsive(t *testing.T) {
	a := NewAggregator(Config{StaleTimeout: time.Millisecond})
	execID := uuid.New()

	a.RecordHeartbeat(mq.NodeHeartbeatPayload{ExecutionID: execID, Node: "node0"})

	time.Sleep(5 * time.Millisecond)
	a.sweep(context.Background())

	snapshot := a.Snapshot(execID)
	if len(snapshot) != 1 || !snapshot[0].Unresponsive {
		t.Fatalf("node should be unresponsive: %+v", snapshot)
	}

	// Свежий heartbeat снимает деградацию
	a.RecordHeartbeat(mq.NodeHeartbeatPayload{ExecutionID: execID, Node: "node0"})
	snapshot = a.Snapshot(execID)
	if snapshot[0].Unresponsive {
		t.Error("heartbeat should clear unresponsive flag")
	}
}

func TestAggregator_Forget(t *testing.T) {
	a := NewAggregator(Config{})
	execID := uuid.New()

	a.RecordHeartbeat(mq.NodeHeartbeatPayload{ExecutionID: execID, Node: "node0"})
	a.Forget(execID)

	if got := a.Snapshot(execID); len(got) != 0 {
		t.Errorf("expected empty snapshot after forget, got %v", got)
	}
}
