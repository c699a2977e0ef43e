package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/envbuild"
	"github.com/shaiso/Conductor/internal/launch"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/registry"
	"github.com/shaiso/Conductor/internal/repo"
	"github.com/shaiso/Conductor/internal/resource"
	"github.com/shaiso/Conductor/internal/scheduler"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
	defaultAckTimeout   = 30 * time.Second
	defaultAckRetries   = 3
	defaultGracePeriod  = 30 * time.Second
	defaultAgentBin     = "conductor-agent"
)

// Checkpointer — хук для периодических checkpoint'ов.
//
// Orchestrator взводит таймер при переходе execution в RUNNING и
// снимает его при достижении терминального статуса. RecordProgress
// передаёт подтверждённый узлом индекс завершённого пакета: из этих
// индексов checkpointer вычисляет точку возобновления.
type Checkpointer interface {
	Arm(ctx context.Context, exec *domain.ExecutionRecord)
	Disarm(executionID uuid.UUID)
	RecordProgress(executionID uuid.UUID, node string, packageIndex int)
}

// Orchestrator управляет жизненным циклом executions.
//
// Orchestrator — центральный компонент системы, который:
//   - Получает запросы на запуск из очереди RabbitMQ (event-driven)
//   - Периодически проверяет executions в статусе CREATED (polling fallback)
//   - Валидирует pipeline против каталога пакетов
//   - Строит окружение и план размещения
//   - Рассылает команды запуска по узлам плана
//   - Отслеживает подтверждения и завершение узлов
//   - Финализирует executions (COMPLETED/STOPPED/FAILED)
type Orchestrator struct {
	// Repositories
	execRepo     *repo.ExecutionRepo
	pipelineRepo *repo.PipelineRepo

	// Domain services
	catalog    *registry.Catalog
	envBuilder *envbuild.Builder
	planner    *scheduler.Planner
	resources  *resource.Manager

	// Checkpoint hook (опционально)
	checkpointer Checkpointer

	// MQ (опционально — без MQ работает только polling)
	publisher *mq.Publisher
	conn      *mq.Connection

	// Launch method factory (подменяется в тестах)
	newMethod func(cfg domain.MethodConfig, logger *slog.Logger) (launch.Method, error)

	// Active executions — executions в обработке (executionID → state)
	active map[uuid.UUID]*ExecState
	mu     sync.RWMutex

	// Consumers
	execConsumer *mq.Consumer
	stopConsumer *mq.Consumer
	ackConsumer  *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int
	ackTimeout   time.Duration
	ackRetries   int
	gracePeriod  time.Duration
	agentBin     string

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Repositories
	ExecRepo     *repo.ExecutionRepo
	PipelineRepo *repo.PipelineRepo

	// Domain services
	Catalog    *registry.Catalog
	EnvBuilder *envbuild.Builder
	Planner    *scheduler.Planner
	Resources  *resource.Manager

	// Checkpoint hook (опционально)
	Checkpointer Checkpointer

	// MQ (опционально)
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Launch method factory (nil — launch.New)
	NewMethod func(cfg domain.MethodConfig, logger *slog.Logger) (launch.Method, error)

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество executions за один poll (default: 100)

	// Launch configuration
	AckTimeout  time.Duration // ожидание подтверждения узла (default: 30s)
	AckRetries  int           // проб статуса узла до отказа (default: 3)
	GracePeriod time.Duration // ожидание остановки перед SIGKILL (default: 30s)
	AgentBin    string        // путь к агенту на узлах (default: conductor-agent)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	ackTimeout := cfg.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = defaultAckTimeout
	}

	ackRetries := cfg.AckRetries
	if ackRetries <= 0 {
		ackRetries = defaultAckRetries
	}

	gracePeriod := cfg.GracePeriod
	if gracePeriod <= 0 {
		gracePeriod = defaultGracePeriod
	}

	agentBin := cfg.AgentBin
	if agentBin == "" {
		agentBin = defaultAgentBin
	}

	newMethod := cfg.NewMethod
	if newMethod == nil {
		newMethod = launch.New
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		execRepo:     cfg.ExecRepo,
		pipelineRepo: cfg.PipelineRepo,
		catalog:      cfg.Catalog,
		envBuilder:   cfg.EnvBuilder,
		planner:      cfg.Planner,
		resources:    cfg.Resources,
		checkpointer: cfg.Checkpointer,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		newMethod:    newMethod,
		active:       make(map[uuid.UUID]*ExecState),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		ackTimeout:   ackTimeout,
		ackRetries:   ackRetries,
		gracePeriod:  gracePeriod,
		agentBin:     agentBin,
		logger:       logger,
	}
}

// Start запускает Orchestrator.
//
// Запускает:
//   - Consumer для conductor.executions.requested
//   - Consumer для conductor.executions.stop
//   - Consumer для conductor.nodes.acks
//   - Polling горутину для fallback
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
		"ack_timeout", o.ackTimeout,
	)

	// Consumers только при наличии MQ
	if o.conn != nil {
		o.execConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueExecRequested),
			Handler:  o.handleExecRequested,
			Prefetch: 10,
		})

		o.stopConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueExecStop),
			Handler:  o.handleExecStop,
			Prefetch: 10,
		})

		o.ackConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueNodeAcks),
			Handler:  o.handleNodeAck,
			Prefetch: 50,
		})

		for _, c := range []*mq.Consumer{o.execConsumer, o.stopConsumer, o.ackConsumer} {
			consumer := c
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					o.logger.Error("consumer error", "error", err)
				}
			}()
		}
	}

	// Запускаем polling
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	// Останавливаем consumers
	for _, c := range []*mq.Consumer{o.execConsumer, o.stopConsumer, o.ackConsumer} {
		if c != nil {
			c.Stop()
		}
	}

	// Ждём завершения горутин
	o.wg.Wait()

	o.logger.Info("orchestrator stopped",
		"active_executions", len(o.active),
	)
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// pollLoop — цикл polling для fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем executions, созданные пока были выключены)
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (o *Orchestrator) poll(ctx context.Context) {
	execs, err := o.execRepo.ListPending(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list pending executions", "error", err)
		return
	}

	if len(execs) == 0 {
		return
	}

	o.logger.Debug("poll found pending executions", "count", len(execs))

	for i := range execs {
		exec := &execs[i]

		// Проверяем, не обрабатывается ли уже
		if o.isActive(exec.ID) {
			continue
		}

		if err := o.processExecution(ctx, exec.ID); err != nil {
			o.logger.Error("failed to process execution from poll",
				"execution_id", exec.ID,
				"error", err,
			)
		}
	}
}

// isActive проверяет, находится ли execution в обработке.
func (o *Orchestrator) isActive(executionID uuid.UUID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, exists := o.active[executionID]
	return exists
}

// getActive возвращает активный ExecState.
func (o *Orchestrator) getActive(executionID uuid.UUID) *ExecState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active[executionID]
}

// addActive добавляет execution в активные.
func (o *Orchestrator) addActive(state *ExecState) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.active[state.ExecutionID()]; exists {
		return ErrExecutionAlreadyActive
	}

	o.active[state.ExecutionID()] = state
	return nil
}

// removeActive удаляет execution из активных.
func (o *Orchestrator) removeActive(executionID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, executionID)
}

// ActiveCount возвращает количество активных executions.
func (o *Orchestrator) ActiveCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.active)
}

// GetActiveStats возвращает статистику по активному execution.
func (o *Orchestrator) GetActiveStats(executionID uuid.UUID) (Stats, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state, exists := o.active[executionID]
	if !exists {
		return Stats{}, false
	}

	return state.Stats(), true
}

// RequestStop запрашивает остановку активного execution.
//
// Для execution в терминальном статусе остановка — no-op.
// Возвращает ErrExecutionNotActive, если execution не в обработке
// и не в терминальном статусе в БД.
func (o *Orchestrator) RequestStop(ctx context.Context, executionID uuid.UUID, force bool) error {
	if state := o.getActive(executionID); state != nil {
		if !state.RequestStop(StopRequest{Force: force}) {
			o.logger.Warn("stop request queue full", "execution_id", executionID)
		}
		return nil
	}

	// Не в памяти — смотрим БД: терминальный статус делает stop идемпотентным
	exec, err := o.execRepo.GetByID(ctx, executionID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrExecutionNotFound
	}
	if err != nil {
		return err
	}
	if exec.Status.IsTerminal() {
		o.logger.Debug("stop on terminal execution ignored",
			"execution_id", executionID,
			"status", exec.Status,
		)
		return nil
	}
	return ErrExecutionNotActive
}
