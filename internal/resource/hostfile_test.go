package resource

import (
	"errors"
	"testing"
)

func TestParseHostfile_Plain(t *testing.T) {
	text := "node0\nnode1\nnode2\n"

	nodes, err := ParseHostfile(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	for i, n := range nodes {
		if n.ID != i {
			t.Errorf("node %s: expected ID %d, got %d", n.Name, i, n.ID)
		}
		if n.Address != n.Name {
			t.Errorf("node %s: expected address %s, got %s", n.Name, n.Name, n.Address)
		}
		if n.Cores != defaultCores {
			t.Errorf("node %s: expected default cores %d, got %d", n.Name, defaultCores, n.Cores)
		}
	}
}

func TestParseHostfile_Slots(t *testing.T) {
	text := "node0 slots=16\nnode1 slots=32 max_slots=64\n"

	nodes, err := ParseHostfile(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if nodes[0].Cores != 16 {
		t.Errorf("expected 16 cores, got %d", nodes[0].Cores)
	}
	if nodes[1].Cores != 32 {
		t.Errorf("expected 32 cores, got %d", nodes[1].Cores)
	}
}

func TestParseHostfile_CommentsAndBlanks(t *testing.T) {
	text := "# cluster A\n\nnode0\n  \n# trailing\nnode1\n"

	nodes, err := ParseHostfile(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 2 {
		t.Errorf("expected 2 nodes, got %d", len(nodes))
	}
}

func TestParseHostfile_Duplicate(t *testing.T) {
	_, err := ParseHostfile("node0\nnode0\n")
	if !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("expected ErrDuplicateNode, got %v", err)
	}
}

func TestParseHostfile_BadSlots(t *testing.T) {
	_, err := ParseHostfile("node0 slots=abc\n")
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestParseHostfile_Empty(t *testing.T) {
	_, err := ParseHostfile("# only comments\n")
	if !errors.Is(err, ErrEmptyGraph) {
		t.Errorf("expected ErrEmptyGraph, got %v", err)
	}
}

func TestParseClusterSpec_Valid(t *testing.T) {
	text := `name: test-cluster
nodes:
  - name: node0
    cores: 32
    memory_mb: 65536
    network_mbps: 10000
    storage:
      - mount: /mnt/nvme
        class: nvme
        capacity_gb: 512
        bandwidth_mbps: 3000
  - name: node1
    address: 10.0.0.2
    cores: 16
    memory_mb: 32768
`
	spec, err := ParseClusterSpec(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if spec.Name != "test-cluster" {
		t.Errorf("expected name test-cluster, got %s", spec.Name)
	}
	if len(spec.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(spec.Nodes))
	}

	n0 := spec.Nodes[0]
	if n0.ID != 0 || n0.Address != "node0" || n0.Cores != 32 {
		t.Errorf("node0 fields wrong: %+v", n0)
	}
	if len(n0.Storage) != 1 || n0.Storage[0].BandwidthMBps != 3000 {
		t.Errorf("node0 storage wrong: %+v", n0.Storage)
	}

	n1 := spec.Nodes[1]
	if n1.ID != 1 {
		t.Errorf("expected positional ID 1, got %d", n1.ID)
	}
	if n1.Address != "10.0.0.2" {
		t.Errorf("explicit address lost: %s", n1.Address)
	}
}

func TestParseClusterSpec_Duplicate(t *testing.T) {
	text := "nodes:\n  - name: a\n  - name: a\n"
	_, err := ParseClusterSpec(text)
	if !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("expected ErrDuplicateNode, got %v", err)
	}
}

func TestParseClusterSpec_Malformed(t *testing.T) {
	_, err := ParseClusterSpec("nodes: [}{")
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}
