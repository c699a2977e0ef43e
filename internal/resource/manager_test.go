package resource

import (
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
)

func twoNodes() []domain.NodeInfo {
	return []domain.NodeInfo{
		{ID: 0, Name: "node0", Cores: 8},
		{ID: 1, Name: "node1", Cores: 8},
	}
}

func TestManager_SnapshotBeforeRebuild(t *testing.T) {
	m, err := NewManager(Config{Source: StaticSource(twoNodes())})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.Snapshot(); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot, got %v", err)
	}
	if m.Version() != 0 {
		t.Errorf("expected version 0, got %d", m.Version())
	}
}

func TestManager_RebuildBumpsVersion(t *testing.T) {
	m, err := NewManager(Config{Source: StaticSource(twoNodes())})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g1, err := m.Rebuild()
	if err != nil {
		t.Fatalf("first rebuild: %v", err)
	}
	g2, err := m.Rebuild()
	if err != nil {
		t.Fatalf("second rebuild: %v", err)
	}

	if g1.Version != 1 || g2.Version != 2 {
		t.Errorf("expected versions 1 and 2, got %d and %d", g1.Version, g2.Version)
	}

	// Старый snapshot никогда не мутируется перестроением
	if g1.Version != 1 {
		t.Errorf("published snapshot mutated: version %d", g1.Version)
	}

	current, err := m.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if current.Version != 2 {
		t.Errorf("expected current version 2, got %d", current.Version)
	}
}

func TestManager_FailedRebuildKeepsSnapshot(t *testing.T) {
	fail := false
	source := func() ([]domain.NodeInfo, error) {
		if fail {
			return nil, errors.New("source unavailable")
		}
		return twoNodes(), nil
	}

	m, err := NewManager(Config{Source: source})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.Rebuild(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	fail = true
	if _, err := m.Rebuild(); err == nil {
		t.Fatal("expected rebuild error")
	}

	// Предыдущий snapshot остаётся доступным
	g, err := m.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if g.Version != 1 {
		t.Errorf("expected version 1 to survive failed rebuild, got %d", g.Version)
	}
}

func TestManager_StaleSnapshotRebuilds(t *testing.T) {
	m, err := NewManager(Config{
		Source:     StaticSource(twoNodes()),
		StaleBound: time.Nanosecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.Rebuild(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	time.Sleep(time.Millisecond)

	// Устаревший snapshot пересобирается при чтении
	g, err := m.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if g.Version != 2 {
		t.Errorf("expected rebuilt version 2, got %d", g.Version)
	}
}

func TestManager_StaleSnapshotRebuildFails(t *testing.T) {
	fail := false
	source := func() ([]domain.NodeInfo, error) {
		if fail {
			return nil, errors.New("source unavailable")
		}
		return twoNodes(), nil
	}

	m, err := NewManager(Config{Source: source, StaleBound: time.Nanosecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Rebuild(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	time.Sleep(time.Millisecond)

	fail = true
	if _, err := m.Snapshot(); !errors.Is(err, ErrStaleSnapshot) {
		t.Errorf("expected ErrStaleSnapshot, got %v", err)
	}
}

func TestManager_BadRefreshSpec(t *testing.T) {
	_, err := NewManager(Config{
		Source:      StaticSource(twoNodes()),
		RefreshSpec: "not a cron expr",
	})
	if err == nil {
		t.Fatal("expected error for invalid refresh spec")
	}
}

func TestManager_EveryRefreshSpec(t *testing.T) {
	_, err := NewManager(Config{
		Source:      StaticSource(twoNodes()),
		RefreshSpec: "@every 30s",
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
