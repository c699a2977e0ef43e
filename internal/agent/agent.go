package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/registry"
)

const (
	defaultHeartbeatInterval = 10 * time.Second
	defaultServiceStopWait   = 10 * time.Second
)

// Runner выполняет назначенное узлу подмножество пакетов execution.
//
// Контракт запуска пакета: пакет — исполняемый файл с тем же именем
// в PATH узла. Окружение (PATH, LD_PRELOAD, CONDUCTOR_EXECUTION)
// выставлено командой запуска orchestrator'а и наследуется детям.
// Сервисы стартуют в фоне и живут до конца подмножества; приложения
// выполняются до завершения; interceptor'ы процессов не порождают —
// их вклад уже в LD_PRELOAD.
type Runner struct {
	executionID uuid.UUID
	node        string
	packages    []string
	resumeIndex int

	catalog   *registry.Catalog
	publisher *mq.Publisher

	heartbeatInterval time.Duration
	logger            *slog.Logger

	// services — запущенные фоновые процессы, гасятся в обратном порядке
	services []*exec.Cmd

	logMu   sync.Mutex
	pending []string
}

// Config — конфигурация Runner'а.
type Config struct {
	ExecutionID       uuid.UUID
	Node              string
	Packages          []string
	ResumeIndex       int
	Catalog           *registry.Catalog
	Publisher         *mq.Publisher
	HeartbeatInterval time.Duration
	Logger            *slog.Logger
}

// New создаёт Runner.
func New(cfg Config) *Runner {
	if cfg.Catalog == nil {
		cfg.Catalog = registry.DefaultCatalog()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Runner{
		executionID:       cfg.ExecutionID,
		node:              cfg.Node,
		packages:          cfg.Packages,
		resumeIndex:       cfg.ResumeIndex,
		catalog:           cfg.Catalog,
		publisher:         cfg.Publisher,
		heartbeatInterval: cfg.HeartbeatInterval,
		logger:            cfg.Logger,
	}
}

// Run выполняет пакеты в объявленном порядке и подтверждает фазы
// через брокер. Без брокера фазы синтезирует orchestrator по probe'ам.
func (r *Runner) Run(ctx context.Context) error {
	r.ack(ctx, "launched", "")
	r.logger.Info("agent started",
		"execution_id", r.executionID,
		"node", r.node,
		"packages", r.packages,
		"resume_index", r.resumeIndex,
	)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.heartbeatLoop(hbCtx)
	}()
	defer func() {
		stopHeartbeat()
		wg.Wait()
		r.flushLogs(context.Background())
	}()

	packages := r.packages
	base := 0
	if r.resumeIndex > 0 {
		base = min(r.resumeIndex, len(packages))
		r.logger.Info("resuming from checkpoint", "skipped", base)
		packages = packages[base:]
	}

	for i, name := range packages {
		if err := ctx.Err(); err != nil {
			r.stopServices()
			r.ack(context.Background(), "stopped", "")
			return err
		}

		def, err := r.catalog.Get(name)
		if err != nil {
			r.failRun(name, err)
			return err
		}

		switch def.Type {
		case domain.PackageTypeInterceptor:
			r.logger.Debug("interceptor active via LD_PRELOAD", "package", name)

		case domain.PackageTypeService:
			if err := r.startService(name); err != nil {
				r.failRun(name, err)
				return err
			}

		case domain.PackageTypeApplication:
			if err := r.runApplication(ctx, name); err != nil {
				if ctx.Err() != nil {
					r.stopServices()
					r.ack(context.Background(), "stopped", "")
					return ctx.Err()
				}
				r.failRun(name, err)
				return err
			}

		default:
			err := fmt.Errorf("package %s has unknown type %q", name, def.Type)
			r.failRun(name, err)
			return err
		}

		r.progress(ctx, name, base+i)
	}

	r.stopServices()
	r.ack(ctx, "completed", "")
	r.logger.Info("agent finished", "execution_id", r.executionID, "node", r.node)
	return nil
}

// startService запускает долгоживущий пакет в фоне.
func (r *Runner) startService(name string) error {
	cmd := exec.Command(name)
	cmd.Env = os.Environ()
	r.captureOutput(cmd, name)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start service %s: %w", name, err)
	}

	r.services = append(r.services, cmd)
	r.logger.Info("service started", "package", name, "pid", cmd.Process.Pid)
	return nil
}

// runApplication выполняет пакет до завершения.
func (r *Runner) runApplication(ctx context.Context, name string) error {
	cmd := exec.CommandContext(ctx, name)
	cmd.Env = os.Environ()
	r.captureOutput(cmd, name)

	start := time.Now()
	r.logger.Info("application starting", "package", name)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w", name, err)
	}

	r.logger.Info("application completed", "package", name, "duration", time.Since(start))
	return nil
}

// stopServices гасит фоновые сервисы в обратном порядке запуска.
func (r *Runner) stopServices() {
	for i := len(r.services) - 1; i >= 0; i-- {
		cmd := r.services[i]
		if cmd.Process == nil {
			continue
		}

		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			r.logger.Warn("failed to signal service", "pid", cmd.Process.Pid, "error", err)
			continue
		}

		done := make(chan struct{})
		go func() {
			cmd.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(defaultServiceStopWait):
			r.logger.Warn("service did not exit in time, killing", "pid", cmd.Process.Pid)
			cmd.Process.Kill()
			<-done
		}
	}
	r.services = nil
}

// failRun останавливает сервисы и подтверждает провал.
func (r *Runner) failRun(pkg string, cause error) {
	r.logger.Error("package failed", "package", pkg, "error", cause)
	r.stopServices()
	r.ack(context.Background(), "failed", cause.Error())
}

// ack публикует подтверждение фазы. Без брокера — no-op.
func (r *Runner) ack(ctx context.Context, phase, reason string) {
	if r.publisher == nil {
		return
	}

	payload := mq.NodeAckPayload{
		ExecutionID: r.executionID,
		Node:        r.node,
		Phase:       phase,
		Error:       reason,
	}
	if err := r.publisher.PublishNodeAck(ctx, payload); err != nil {
		r.logger.Warn("failed to publish ack", "phase", phase, "error", err)
	}
}

// progress публикует завершение пакета с его глобальным индексом
// в плане запуска. Индекс учитывает пропущенные при resume пакеты.
func (r *Runner) progress(ctx context.Context, name string, index int) {
	if r.publisher == nil {
		return
	}

	payload := mq.NodeAckPayload{
		ExecutionID:  r.executionID,
		Node:         r.node,
		Phase:        "progress",
		Package:      name,
		PackageIndex: index,
	}
	if err := r.publisher.PublishNodeAck(ctx, payload); err != nil {
		r.logger.Warn("failed to publish progress", "package", name, "error", err)
	}
	r.logger.Debug("package completed", "package", name, "index", index)
}

// heartbeatLoop публикует утилизацию узла и копит логи пакетов.
func (r *Runner) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	prev, _ := readCPUSample()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.flushLogs(ctx)

			if r.publisher == nil {
				continue
			}

			cur, err := readCPUSample()
			if err != nil {
				r.logger.Debug("cpu sample unavailable", "error", err)
				continue
			}
			memMB, _ := readMemoryUsedMB()

			payload := mq.NodeHeartbeatPayload{
				ExecutionID: r.executionID,
				Node:        r.node,
				CPUPercent:  cpuPercent(prev, cur),
				MemoryMB:    memMB,
				At:          time.Now(),
			}
			prev = cur

			if err := r.publisher.PublishNodeHeartbeat(ctx, payload); err != nil {
				r.logger.Warn("failed to publish heartbeat", "error", err)
			}
		}
	}
}

// captureOutput сканирует stdout и stderr пакета в буфер логов.
func (r *Runner) captureOutput(cmd *exec.Cmd, pkg string) {
	stdout, err := cmd.StdoutPipe()
	if err == nil {
		go r.scanLines(stdout, pkg)
	}
	stderr, err := cmd.StderrPipe()
	if err == nil {
		go r.scanLines(stderr, pkg)
	}
}

func (r *Runner) scanLines(src io.Reader, pkg string) {
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		r.logMu.Lock()
		r.pending = append(r.pending, fmt.Sprintf("[%s] %s", pkg, scanner.Text()))
		r.logMu.Unlock()
	}
}

// flushLogs публикует накопленные строки логов одной порцией.
func (r *Runner) flushLogs(ctx context.Context) {
	r.logMu.Lock()
	lines := r.pending
	r.pending = nil
	r.logMu.Unlock()

	if len(lines) == 0 || r.publisher == nil {
		return
	}

	payload := mq.NodeLogsPayload{
		ExecutionID: r.executionID,
		Node:        r.node,
		Lines:       lines,
	}
	if err := r.publisher.PublishNodeLogs(ctx, payload); err != nil {
		r.logger.Warn("failed to publish logs", "lines", len(lines), "error", err)
	}
}
