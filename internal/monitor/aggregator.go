// Package monitor агрегирует телеметрию выполняющихся executions.
//
// Агенты на узлах шлют heartbeat'ы с утилизацией и порции логов через
// RabbitMQ. Aggregator держит по каждому узлу скользящее окно замеров
// и кольцевой буфер последних строк лога, экспортирует gauge-метрики
// и деградирует узлы без heartbeat'а в UNRESPONSIVE вместо блокировки.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/repo"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// Default configuration values.
const (
	defaultWindowSize    = 60
	defaultLogLines      = 200
	defaultStaleTimeout  = 30 * time.Second
	defaultSweepInterval = 10 * time.Second
)

// Метрики утилизации узлов.
var (
	nodeCPU = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "conductor_node_cpu_percent",
		Help: "Last reported CPU utilization per node.",
	}, []string{"execution", "node"})

	nodeMemory = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "conductor_node_memory_mb",
		Help: "Last reported memory usage per node, MB.",
	}, []string{"execution", "node"})
)

// NodeStatus — срез телеметрии одного узла.
type NodeStatus struct {
	Node         string    `json:"node"`
	CPUPercent   float64   `json:"cpu_percent"`
	MemoryMB     int64     `json:"memory_mb"`
	AvgCPU       float64   `json:"avg_cpu"`
	Samples      int       `json:"samples"`
	LastSeen     time.Time `json:"last_seen"`
	Unresponsive bool      `json:"unresponsive"`
}

// nodeTrack — накопленная телеметрия узла.
type nodeTrack struct {
	window       *utilWindow
	logs         *logRing
	lastSeen     time.Time
	unresponsive bool
}

// Aggregator собирает heartbeat'ы и логи узлов.
type Aggregator struct {
	execRepo *repo.ExecutionRepo
	conn     *mq.Connection

	windowSize    int
	logLines      int
	staleTimeout  time.Duration
	sweepInterval time.Duration

	// tracks — (executionID → node → телеметрия)
	tracks map[uuid.UUID]map[string]*nodeTrack
	mu     sync.RWMutex

	// subscribers — подписки на поток логов execution
	subscribers map[uuid.UUID][]chan mq.NodeLogsPayload
	subMu       sync.Mutex

	heartbeatConsumer *mq.Consumer
	logsConsumer      *mq.Consumer

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Aggregator.
type Config struct {
	// ExecRepo — для деградации node state в UNRESPONSIVE (опционально).
	ExecRepo *repo.ExecutionRepo

	// Conn — подключение к RabbitMQ (опционально; без него Aggregator
	// принимает телеметрию только через Record*-методы).
	Conn *mq.Connection

	// WindowSize — размер скользящего окна утилизации (default: 60).
	WindowSize int

	// LogLines — размер буфера логов на узел (default: 200).
	LogLines int

	// StaleTimeout — без heartbeat'а дольше этого узел деградирует
	// в UNRESPONSIVE (default: 30s).
	StaleTimeout time.Duration

	// SweepInterval — период проверки устаревших узлов (default: 10s).
	SweepInterval time.Duration

	Logger *slog.Logger
}

// NewAggregator создаёт новый Aggregator.
func NewAggregator(cfg Config) *Aggregator {
	windowSize := cfg.WindowSize
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}

	logLines := cfg.LogLines
	if logLines <= 0 {
		logLines = defaultLogLines
	}

	staleTimeout := cfg.StaleTimeout
	if staleTimeout <= 0 {
		staleTimeout = defaultStaleTimeout
	}

	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{
		execRepo:      cfg.ExecRepo,
		conn:          cfg.Conn,
		windowSize:    windowSize,
		logLines:      logLines,
		staleTimeout:  staleTimeout,
		sweepInterval: sweepInterval,
		tracks:        make(map[uuid.UUID]map[string]*nodeTrack),
		subscribers:   make(map[uuid.UUID][]chan mq.NodeLogsPayload),
		logger:        logger,
	}
}

// Start запускает consumers и sweep-горутину.
func (a *Aggregator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancelFunc = cancel

	a.logger.Info("starting monitor aggregator",
		"stale_timeout", a.staleTimeout,
		"window_size", a.windowSize,
	)

	if a.conn != nil {
		a.heartbeatConsumer = mq.NewConsumer(a.conn, a.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueNodeHeartbeat),
			Handler:  a.handleHeartbeat,
			Prefetch: 50,
		})

		a.logsConsumer = mq.NewConsumer(a.conn, a.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueNodeLogs),
			Handler:  a.handleLogs,
			Prefetch: 50,
		})

		for _, c := range []*mq.Consumer{a.heartbeatConsumer, a.logsConsumer} {
			consumer := c
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					a.logger.Error("consumer error", "error", err)
				}
			}()
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sweepLoop(ctx)
	}()

	return nil
}

// Stop останавливает Aggregator.
func (a *Aggregator) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	for _, c := range []*mq.Consumer{a.heartbeatConsumer, a.logsConsumer} {
		if c != nil {
			c.Stop()
		}
	}
	a.wg.Wait()

	a.subMu.Lock()
	for id, subs := range a.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(a.subscribers, id)
	}
	a.subMu.Unlock()
}

// handleHeartbeat обрабатывает heartbeat узла.
func (a *Aggregator) handleHeartbeat(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.NodeHeartbeatPayload](&delivery.Message)
	if err != nil {
		a.logger.Error("failed to parse heartbeat payload", "error", err)
		return err
	}

	a.RecordHeartbeat(payload)
	return nil
}

// handleLogs обрабатывает порцию логов узла.
func (a *Aggregator) handleLogs(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.NodeLogsPayload](&delivery.Message)
	if err != nil {
		a.logger.Error("failed to parse logs payload", "error", err)
		return err
	}

	a.RecordLogs(payload)
	return nil
}

// RecordHeartbeat фиксирует замер утилизации узла.
func (a *Aggregator) RecordHeartbeat(payload mq.NodeHeartbeatPayload) {
	at := payload.At
	if at.IsZero() {
		at = time.Now()
	}

	a.mu.Lock()
	track := a.track(payload.ExecutionID, payload.Node)
	track.window.Push(payload.CPUPercent, payload.MemoryMB)
	track.lastSeen = at
	recovered := track.unresponsive
	track.unresponsive = false
	a.mu.Unlock()

	nodeCPU.WithLabelValues(payload.ExecutionID.String(), payload.Node).Set(payload.CPUPercent)
	nodeMemory.WithLabelValues(payload.ExecutionID.String(), payload.Node).Set(float64(payload.MemoryMB))

	if recovered {
		a.logger.Info("node recovered",
			"execution_id", payload.ExecutionID,
			"node", payload.Node,
		)
	}
}

// RecordLogs фиксирует порцию строк лога узла и раздаёт подписчикам.
func (a *Aggregator) RecordLogs(payload mq.NodeLogsPayload) {
	a.mu.Lock()
	track := a.track(payload.ExecutionID, payload.Node)
	track.logs.Append(payload.Lines...)
	a.mu.Unlock()

	a.subMu.Lock()
	for _, ch := range a.subscribers[payload.ExecutionID] {
		select {
		case ch <- payload:
		default:
			// Медленный подписчик не тормозит приём
		}
	}
	a.subMu.Unlock()
}

// track возвращает телеметрию узла, создавая её по необходимости.
// Вызывается под mu.
func (a *Aggregator) track(executionID uuid.UUID, node string) *nodeTrack {
	nodes, ok := a.tracks[executionID]
	if !ok {
		nodes = make(map[string]*nodeTrack)
		a.tracks[executionID] = nodes
	}
	t, ok := nodes[node]
	if !ok {
		t = &nodeTrack{
			window:   newUtilWindow(a.windowSize),
			logs:     newLogRing(a.logLines),
			lastSeen: time.Now(),
		}
		nodes[node] = t
	}
	return t
}

// Snapshot возвращает телеметрию всех узлов execution,
// отсортированную по имени узла.
func (a *Aggregator) Snapshot(executionID uuid.UUID) []NodeStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	nodes := a.tracks[executionID]
	out := make([]NodeStatus, 0, len(nodes))
	for name, track := range nodes {
		cpu, memory := track.window.Last()
		out = append(out, NodeStatus{
			Node:         name,
			CPUPercent:   cpu,
			MemoryMB:     memory,
			AvgCPU:       track.window.AvgCPU(),
			Samples:      track.window.Count(),
			LastSeen:     track.lastSeen,
			Unresponsive: track.unresponsive,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}

// Logs возвращает последние n строк лога узла.
func (a *Aggregator) Logs(executionID uuid.UUID, node string, n int) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	nodes := a.tracks[executionID]
	track, ok := nodes[node]
	if !ok {
		return nil
	}
	return track.logs.Tail(n)
}

// Subscribe подписывает на поток логов execution.
// Возвращённая функция отменяет подписку и закрывает канал.
func (a *Aggregator) Subscribe(executionID uuid.UUID) (<-chan mq.NodeLogsPayload, func()) {
	ch := make(chan mq.NodeLogsPayload, 64)

	a.subMu.Lock()
	a.subscribers[executionID] = append(a.subscribers[executionID], ch)
	a.subMu.Unlock()

	unsubscribe := func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		subs := a.subscribers[executionID]
		for i, s := range subs {
			if s == ch {
				a.subscribers[executionID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return ch, unsubscribe
}

// Forget удаляет телеметрию завершённого execution.
func (a *Aggregator) Forget(executionID uuid.UUID) {
	a.mu.Lock()
	nodes := a.tracks[executionID]
	delete(a.tracks, executionID)
	a.mu.Unlock()

	for name := range nodes {
		nodeCPU.DeleteLabelValues(executionID.String(), name)
		nodeMemory.DeleteLabelValues(executionID.String(), name)
	}
}

// sweepLoop периодически деградирует узлы без heartbeat'а.
func (a *Aggregator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(ctx)
		}
	}
}

// sweep помечает узлы без heartbeat'а дольше staleTimeout.
func (a *Aggregator) sweep(ctx context.Context) {
	now := time.Now()

	type stale struct {
		executionID uuid.UUID
		node        string
	}
	var found []stale

	a.mu.Lock()
	for executionID, nodes := range a.tracks {
		for name, track := range nodes {
			if track.unresponsive || now.Sub(track.lastSeen) <= a.staleTimeout {
				continue
			}
			track.unresponsive = true
			found = append(found, stale{executionID, name})
		}
	}
	a.mu.Unlock()

	for _, s := range found {
		telemetry.NodesUnresponsive.Inc()
		a.logger.Warn("node unresponsive",
			"execution_id", s.executionID,
			"node", s.node,
			"timeout", a.staleTimeout,
		)
		a.degradeNodeState(ctx, s.executionID, s.node)
	}
}

// degradeNodeState отражает UNRESPONSIVE в записи execution.
func (a *Aggregator) degradeNodeState(ctx context.Context, executionID uuid.UUID, node string) {
	if a.execRepo == nil {
		return
	}
	exec, err := a.execRepo.GetByID(ctx, executionID)
	if err != nil {
		a.logger.Warn("failed to load execution for degradation",
			"execution_id", executionID,
			"error", err,
		)
		return
	}
	if exec.Status.IsTerminal() {
		return
	}
	if st, ok := exec.NodeStates[node]; ok && st.IsTerminal() {
		return
	}
	exec.SetNodeState(node, domain.NodeStateUnresponsive)
	if err := a.execRepo.UpdateNodeStates(ctx, exec); err != nil {
		a.logger.Warn("failed to persist unresponsive state",
			"execution_id", executionID,
			"node", node,
			"error", err,
		)
	}
}
