package resource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Conductor/internal/domain"
)

// refreshParser — парсер расписаний перестроения.
// Поддерживает стандартные cron-выражения и дескрипторы вида @every 5m.
var refreshParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Source — источник описания узлов кластера.
//
// Вызывается при каждом перестроении: источник, читающий файл,
// подхватывает изменения hostfile/cluster spec без перезапуска.
type Source func() ([]domain.NodeInfo, error)

// HostfileSource возвращает Source, читающий hostfile с диска.
func HostfileSource(path string) Source {
	return func() ([]domain.NodeInfo, error) {
		return LoadHostfile(path)
	}
}

// ClusterSpecSource возвращает Source, читающий cluster spec с диска.
func ClusterSpecSource(path string) Source {
	return func() ([]domain.NodeInfo, error) {
		spec, err := LoadClusterSpec(path)
		if err != nil {
			return nil, err
		}
		return spec.Nodes, nil
	}
}

// StaticSource возвращает Source с фиксированным списком узлов.
func StaticSource(nodes []domain.NodeInfo) Source {
	return func() ([]domain.NodeInfo, error) {
		return nodes, nil
	}
}

// Manager хранит текущий ResourceGraph и перестраивает его по расписанию.
type Manager struct {
	source Source
	logger *slog.Logger

	// schedule — расписание перестроения (nil — только ручной Rebuild).
	schedule cron.Schedule

	// staleBound — максимальный возраст snapshot'а до принудительного
	// перестроения.
	staleBound time.Duration

	mu      sync.RWMutex
	current *domain.ResourceGraph
	version int64
}

// Config — конфигурация Manager.
type Config struct {
	Source Source

	// RefreshSpec — cron-выражение или @every интервал (пустое — без расписания).
	RefreshSpec string

	// StaleBound — максимальный возраст snapshot'а (default: 10m).
	StaleBound time.Duration

	Logger *slog.Logger
}

// NewManager создаёт Manager. Первый snapshot строится в Start или
// первым вызовом Rebuild.
func NewManager(cfg Config) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	staleBound := cfg.StaleBound
	if staleBound <= 0 {
		staleBound = 10 * time.Minute
	}

	var schedule cron.Schedule
	if cfg.RefreshSpec != "" {
		var err error
		schedule, err = refreshParser.Parse(cfg.RefreshSpec)
		if err != nil {
			return nil, fmt.Errorf("parse refresh spec %q: %w", cfg.RefreshSpec, err)
		}
	}

	return &Manager{
		source:     cfg.Source,
		logger:     logger,
		schedule:   schedule,
		staleBound: staleBound,
	}, nil
}

// Start строит первый snapshot и запускает цикл перестроения.
// Блокируется до отмены ctx.
func (m *Manager) Start(ctx context.Context) error {
	if _, err := m.Rebuild(); err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}

	if m.schedule == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		next := m.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if _, err := m.Rebuild(); err != nil {
				// Старый snapshot остаётся опубликованным
				m.logger.Error("resource graph rebuild failed", "error", err)
			}
		}
	}
}

// Rebuild строит новый snapshot из источника и публикует его.
// Неудачное перестроение не трогает текущий snapshot.
func (m *Manager) Rebuild() (*domain.ResourceGraph, error) {
	nodes, err := m.source()
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	m.mu.Lock()
	m.version++
	graph := &domain.ResourceGraph{
		Version: m.version,
		Nodes:   nodes,
		BuiltAt: time.Now(),
	}
	m.current = graph
	m.mu.Unlock()

	m.logger.Info("resource graph rebuilt",
		"version", graph.Version,
		"nodes", len(graph.Nodes),
	)
	return graph, nil
}

// Snapshot возвращает текущий snapshot.
// Возвращает ErrNoSnapshot, если Manager ещё не строил граф.
// Если snapshot старше StaleBound, Manager пересобирает граф из
// источника; при неудаче возвращает ErrStaleSnapshot — устаревший
// граф не отдаётся планировщику.
func (m *Manager) Snapshot() (*domain.ResourceGraph, error) {
	m.mu.RLock()
	graph := m.current
	m.mu.RUnlock()

	if graph == nil {
		return nil, ErrNoSnapshot
	}
	if graph.IsStale(m.staleBound) {
		m.logger.Warn("resource snapshot is stale, rebuilding",
			"version", graph.Version,
			"age", graph.Age().Round(time.Second),
		)
		fresh, err := m.Rebuild()
		if err != nil {
			return nil, fmt.Errorf("%w: rebuild failed: %v", ErrStaleSnapshot, err)
		}
		return fresh, nil
	}
	return graph, nil
}

// Version возвращает версию текущего snapshot'а (0 — snapshot'а нет).
func (m *Manager) Version() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return 0
	}
	return m.current.Version
}
