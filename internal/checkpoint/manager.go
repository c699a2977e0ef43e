package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/repo"
	"github.com/shaiso/Conductor/internal/resource"
	"github.com/shaiso/Conductor/internal/scheduler"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// Default configuration values.
const (
	defaultInterval = 5 * time.Minute
	defaultKeep     = 5
	defaultBaseDir  = "/shared/conductor/checkpoints"
)

// Manager создаёт, верифицирует и восстанавливает checkpoints.
//
// Checkpoint становится видимым для восстановления строго после
// записи integrity-маркера: Save (hash внутри строки) → Verify.
// Упавший посреди записи писатель оставляет неверифицированную
// строку, которую Restore игнорирует, а retention со временем удаляет.
type Manager struct {
	checkpoints *repo.CheckpointRepo
	execs       *repo.ExecutionRepo

	resources *resource.Manager
	publisher *mq.Publisher
	planner   *scheduler.Planner
	pipelines *repo.PipelineRepo

	interval time.Duration
	keep     int
	baseDir  string

	// armed — таймеры периодических checkpoints (executionID → cancel)
	armed map[uuid.UUID]context.CancelFunc

	// progress — подтверждённые узлами индексы завершённых пакетов
	// (executionID → node → максимальный индекс)
	progress map[uuid.UUID]map[string]int

	mu sync.Mutex

	logger *slog.Logger
	wg     sync.WaitGroup
}

// Config — конфигурация Manager.
type Config struct {
	Checkpoints *repo.CheckpointRepo
	Execs       *repo.ExecutionRepo

	// Resources — источник текущего ResourceGraph для проверки
	// совместимости плана при восстановлении.
	Resources *resource.Manager

	// Publisher — публикация execution.requested для восстановленных
	// executions (опционально).
	Publisher *mq.Publisher

	// Planner и Pipelines — перепланирование при восстановлении с
	// устаревшим планом (опционально: без них устаревший план — сразу
	// ошибка).
	Planner   *scheduler.Planner
	Pipelines *repo.PipelineRepo

	// Interval — период автоматических checkpoints (default: 5m).
	Interval time.Duration

	// Keep — сколько последних checkpoints хранить (default: 5).
	Keep int

	// BaseDir — корень снимков на разделяемом хранилище.
	BaseDir string

	Logger *slog.Logger
}

// NewManager создаёт новый Manager.
func NewManager(cfg Config) *Manager {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	keep := cfg.Keep
	if keep < 1 {
		keep = defaultKeep
	}

	baseDir := cfg.BaseDir
	if baseDir == "" {
		baseDir = defaultBaseDir
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		checkpoints: cfg.Checkpoints,
		execs:       cfg.Execs,
		resources:   cfg.Resources,
		publisher:   cfg.Publisher,
		planner:     cfg.Planner,
		pipelines:   cfg.Pipelines,
		interval:    interval,
		keep:        keep,
		baseDir:     baseDir,
		armed:       make(map[uuid.UUID]context.CancelFunc),
		progress:    make(map[uuid.UUID]map[string]int),
		logger:      logger,
	}
}

// Arm взводит таймер периодических checkpoints для execution.
// Повторный Arm для того же execution — no-op.
func (m *Manager) Arm(ctx context.Context, exec *domain.ExecutionRecord) {
	m.mu.Lock()
	if _, exists := m.armed[exec.ID]; exists {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.armed[exec.ID] = cancel
	m.mu.Unlock()

	m.logger.Info("checkpoint timer armed",
		"execution_id", exec.ID,
		"interval", m.interval,
	)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.tickLoop(ctx, exec.ID)
	}()
}

// RecordProgress запоминает подтверждённый узлом индекс завершённого
// пакета. Индексы монотонны: запоздавшее подтверждение с меньшим
// индексом не откатывает прогресс.
func (m *Manager) RecordProgress(executionID uuid.UUID, node string, packageIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nodes, ok := m.progress[executionID]
	if !ok {
		nodes = make(map[string]int)
		m.progress[executionID] = nodes
	}
	if cur, reported := nodes[node]; !reported || packageIndex > cur {
		nodes[node] = packageIndex
	}
}

// progressIndex возвращает консервативный глобальный индекс прогресса:
// минимум из максимальных индексов всех отчитавшихся узлов. Пакет с
// меньшим или равным индексом завершён на каждом узле. Второе
// значение false — прогресс ещё не сообщался.
func (m *Manager) progressIndex(executionID uuid.UUID) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nodes := m.progress[executionID]
	if len(nodes) == 0 {
		return 0, false
	}

	idx, first := 0, true
	for _, v := range nodes {
		if first || v < idx {
			idx, first = v, false
		}
	}
	return idx, true
}

// Disarm снимает таймер периодических checkpoints и забывает
// накопленный прогресс execution.
func (m *Manager) Disarm(executionID uuid.UUID) {
	m.mu.Lock()
	cancel, exists := m.armed[executionID]
	if exists {
		delete(m.armed, executionID)
	}
	delete(m.progress, executionID)
	m.mu.Unlock()

	if exists {
		cancel()
		m.logger.Debug("checkpoint timer disarmed", "execution_id", executionID)
	}
}

// ArmedCount возвращает количество взведённых таймеров.
func (m *Manager) ArmedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.armed)
}

// Close снимает все таймеры и ждёт завершения горутин.
func (m *Manager) Close() {
	m.mu.Lock()
	for id, cancel := range m.armed {
		cancel()
		delete(m.armed, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// tickLoop создаёт checkpoint каждые interval, пока таймер взведён.
func (m *Manager) tickLoop(ctx context.Context, executionID uuid.UUID) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.CreateAuto(ctx, executionID); err != nil {
				if errors.Is(err, ErrNotRunning) {
					return
				}
				m.logger.Error("periodic checkpoint failed",
					"execution_id", executionID,
					"error", err,
				)
			}
		}
	}
}

// CreateAuto создаёт периодический checkpoint.
//
// Индекс пакета берётся из прогресса, подтверждённого узлами через
// RecordProgress; последний checkpoint служит нижней границей, чтобы
// рестарт orchestrator'а не откатывал уже зафиксированную точку.
func (m *Manager) CreateAuto(ctx context.Context, executionID uuid.UUID) (*domain.Checkpoint, error) {
	exec, err := m.execs.GetByID(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	if exec.Status != domain.ExecStatusRunning {
		return nil, ErrNotRunning
	}

	packageIndex := exec.ResumeIndex - 1
	if latest, err := m.checkpoints.Latest(ctx, executionID); err == nil {
		packageIndex = latest.PackageIndex
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("latest checkpoint: %w", err)
	}
	if idx, reported := m.progressIndex(executionID); reported && idx > packageIndex {
		packageIndex = idx
	}

	return m.Create(ctx, exec, packageIndex, m.defaultSnapshots(exec))
}

// Create создаёт и верифицирует checkpoint.
//
// Порядок фиксированный: запись строки с hash → проверка → пометка
// verified → обновление last_checkpoint_seq → retention.
func (m *Manager) Create(ctx context.Context, exec *domain.ExecutionRecord, packageIndex int, nodeSnapshots map[string]string) (*domain.Checkpoint, error) {
	if exec.Status != domain.ExecStatusRunning {
		return nil, ErrNotRunning
	}

	cp := &domain.Checkpoint{
		ExecutionID:   exec.ID,
		PackageIndex:  packageIndex,
		NodeSnapshots: nodeSnapshots,
		CreatedAt:     time.Now(),
	}
	cp.Hash = contentHash(cp)

	if err := m.checkpoints.Save(ctx, cp); err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}

	// Integrity-маркер: запись прошла целиком, hash совпадает
	if contentHash(cp) != cp.Hash {
		return nil, fmt.Errorf("checkpoint %s seq %d: hash mismatch", cp.ExecutionID, cp.Seq)
	}
	if err := m.checkpoints.Verify(ctx, cp.Ref()); err != nil {
		return nil, fmt.Errorf("verify checkpoint: %w", err)
	}
	cp.Verified = true

	if err := m.execs.SetLastCheckpoint(ctx, exec.ID, cp.Seq); err != nil {
		m.logger.Warn("failed to record last checkpoint",
			"execution_id", exec.ID,
			"seq", cp.Seq,
			"error", err,
		)
	}

	telemetry.CheckpointsCreated.Inc()

	pruned, err := m.checkpoints.Prune(ctx, exec.ID, m.keep)
	if err != nil {
		m.logger.Warn("checkpoint retention failed",
			"execution_id", exec.ID,
			"error", err,
		)
	} else if pruned > 0 {
		m.logger.Debug("old checkpoints pruned",
			"execution_id", exec.ID,
			"count", pruned,
		)
	}

	m.logger.Info("checkpoint created",
		"execution_id", exec.ID,
		"seq", cp.Seq,
		"package_index", cp.PackageIndex,
	)

	return cp, nil
}

// List возвращает верифицированные checkpoints execution'а, новые первыми.
func (m *Manager) List(ctx context.Context, executionID uuid.UUID) ([]domain.Checkpoint, error) {
	return m.checkpoints.List(ctx, executionID)
}

// Latest возвращает последний верифицированный checkpoint execution'а.
func (m *Manager) Latest(ctx context.Context, executionID uuid.UUID) (*domain.Checkpoint, error) {
	cp, err := m.checkpoints.Latest(ctx, executionID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNoCheckpoint
	}
	return cp, err
}

// RestoreLatest восстанавливает execution из последнего
// верифицированного checkpoint'а.
func (m *Manager) RestoreLatest(ctx context.Context, executionID uuid.UUID, replan bool) (*domain.ExecutionRecord, error) {
	cp, err := m.Latest(ctx, executionID)
	if err != nil {
		return nil, err
	}
	return m.Restore(ctx, cp.Ref(), replan)
}

// Restore создаёт новый execution из checkpoint'а.
//
// Выполнение возобновляется с пакета PackageIndex+1. Исходный план
// проверяется на совместимость с текущим ResourceGraph: исчезнувшие
// узлы или уменьшившаяся ёмкость делают его устаревшим. Устаревший
// план перепланируется на текущем графе с той же стратегией, методом
// и привязками; ErrResourcePlanStale возвращается только если и
// перепланирование не находит размещения. С replan=true проверки
// пропускаются целиком: размещение в любом случае строится заново при
// принятии execution в работу.
func (m *Manager) Restore(ctx context.Context, ref domain.CheckpointRef, replan bool) (*domain.ExecutionRecord, error) {
	cp, err := m.checkpoints.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s seq %d", ErrNoCheckpoint, ref.ExecutionID, ref.Seq)
		}
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	if !cp.Verified {
		return nil, fmt.Errorf("%w: %s seq %d", ErrNotVerified, ref.ExecutionID, ref.Seq)
	}

	src, err := m.execs.GetByID(ctx, cp.ExecutionID)
	if err != nil {
		return nil, fmt.Errorf("get source execution: %w", err)
	}

	if !replan && src.Plan != nil {
		graph, err := m.resources.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("resource snapshot: %w", err)
		}
		if !PlanCompatible(src.Plan, graph) {
			if err := m.replanFeasible(ctx, src, graph); err != nil {
				return nil, err
			}
		}
	}

	// Skeleton-план переносит стратегию и метод; размещение строится заново
	var skeleton *domain.AllocationPlan
	if src.Plan != nil {
		skeleton = &domain.AllocationPlan{
			PipelineName: src.PipelineName,
			Strategy:     src.Plan.Strategy,
			Method:       src.Plan.Method,
		}
	}

	restored := &domain.ExecutionRecord{
		ID:           uuid.New(),
		PipelineName: src.PipelineName,
		Status:       domain.ExecStatusCreated,
		Plan:         skeleton,
		ResumeIndex:  cp.ResumeIndex(),
		RestoredFrom: &ref,
		CreatedAt:    time.Now(),
	}

	if err := m.execs.Create(ctx, restored); err != nil {
		return nil, fmt.Errorf("create restored execution: %w", err)
	}

	if m.publisher != nil {
		if err := m.publisher.PublishExecRequested(ctx, restored.ID); err != nil {
			m.logger.Warn("failed to publish restored execution",
				"execution_id", restored.ID,
				"error", err,
			)
			// Polling fallback подхватит
		}
	}

	m.logger.Info("execution restored from checkpoint",
		"execution_id", restored.ID,
		"source_execution", ref.ExecutionID,
		"seq", ref.Seq,
		"resume_index", restored.ResumeIndex,
	)

	return restored, nil
}

// PlanCompatible проверяет, выполним ли план на текущем графе:
// каждый узел плана существует и вмещает свою резервацию.
func PlanCompatible(plan *domain.AllocationPlan, graph *domain.ResourceGraph) bool {
	for _, a := range plan.Assignments {
		node := graph.NodeByName(a.NodeName)
		if node == nil {
			return false
		}
		if a.Reserved.Cores > node.Cores || a.Reserved.MemoryMB > node.MemoryMB {
			return false
		}
	}
	return true
}

// replanFeasible проверяет, что pipeline планируется заново на текущем
// графе с той же стратегией, методом и привязками. Без планировщика
// несовместимый план — сразу ErrResourcePlanStale.
func (m *Manager) replanFeasible(ctx context.Context, src *domain.ExecutionRecord, graph *domain.ResourceGraph) error {
	if m.planner == nil || m.pipelines == nil {
		return fmt.Errorf("%w: graph version %d", ErrResourcePlanStale, graph.Version)
	}

	pipeline, err := m.pipelines.GetByName(ctx, src.PipelineName)
	if err != nil {
		return fmt.Errorf("get pipeline: %w", err)
	}

	if _, err := m.planner.Plan(scheduler.Request{
		Pipeline: pipeline,
		Graph:    graph,
		Strategy: src.Plan.Strategy,
		Method:   src.Plan.Method,
		Pinned:   scheduler.PinnedHints(pipeline),
	}); err != nil {
		return fmt.Errorf("%w: replan on graph version %d: %v", ErrResourcePlanStale, graph.Version, err)
	}

	m.logger.Info("stale plan replanned on current graph",
		"pipeline", src.PipelineName,
		"graph_version", graph.Version,
	)
	return nil
}

// defaultSnapshots строит пути снимков по соглашению:
// <baseDir>/<executionID>/<node>.
func (m *Manager) defaultSnapshots(exec *domain.ExecutionRecord) map[string]string {
	if exec.Plan == nil {
		return nil
	}
	snapshots := make(map[string]string, len(exec.Plan.Assignments))
	for _, node := range exec.Plan.NodeNames() {
		snapshots[node] = path.Join(m.baseDir, exec.ID.String(), node)
	}
	return snapshots
}

// contentHash — sha256 от канонического содержимого checkpoint'а.
// Seq и Verified не участвуют: hash фиксируется до назначения номера.
func contentHash(cp *domain.Checkpoint) string {
	type entry struct {
		Node string `json:"node"`
		Path string `json:"path"`
	}
	entries := make([]entry, 0, len(cp.NodeSnapshots))
	for node, p := range cp.NodeSnapshots {
		entries = append(entries, entry{Node: node, Path: p})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Node < entries[j].Node })

	canonical, _ := json.Marshal(struct {
		ExecutionID  uuid.UUID `json:"execution_id"`
		PackageIndex int       `json:"package_index"`
		Snapshots    []entry   `json:"snapshots"`
	}{cp.ExecutionID, cp.PackageIndex, entries})

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
