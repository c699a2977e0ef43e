package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/envbuild"
	"github.com/shaiso/Conductor/internal/launch"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/repo"
	"github.com/shaiso/Conductor/internal/scheduler"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// Фазы подтверждений узлов (mq.NodeAckPayload.Phase).
const (
	ackPhaseLaunched  = "launched"
	ackPhaseProgress  = "progress"
	ackPhaseCompleted = "completed"
	ackPhaseStopped   = "stopped"
	ackPhaseFailed    = "failed"
)

// processExecution начинает обработку execution в статусе CREATED.
//
// Загружает execution и pipeline, регистрирует ExecState и передаёт
// управление горутине-владельцу. Все дальнейшие переходы выполняет
// только она.
func (o *Orchestrator) processExecution(ctx context.Context, executionID uuid.UUID) error {
	// 1. Загружаем execution из БД
	exec, err := o.execRepo.GetByID(ctx, executionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
		}
		return fmt.Errorf("get execution: %w", err)
	}

	// 2. Проверяем статус
	if exec.Status != domain.ExecStatusCreated {
		return ErrExecutionNotCreated
	}

	// 3. Загружаем pipeline
	pipeline, err := o.pipelineRepo.GetByName(ctx, exec.PipelineName)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return o.failEarly(ctx, exec, fmt.Sprintf("pipeline not found: %s", exec.PipelineName))
		}
		return fmt.Errorf("get pipeline: %w", err)
	}

	// 4. Регистрируем ExecState
	state := NewExecState(exec, pipeline)
	if err := o.addActive(state); err != nil {
		return err
	}

	o.logger.Info("execution accepted",
		"execution_id", executionID,
		"pipeline", exec.PipelineName,
		"packages", len(pipeline.Packages),
	)

	// 5. Горутина-владелец ведёт execution до терминального статуса
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.removeActive(executionID)
		o.runLifecycle(ctx, state)
	}()

	return nil
}

// runLifecycle ведёт execution через все фазы state machine.
func (o *Orchestrator) runLifecycle(ctx context.Context, state *ExecState) {
	exec := state.Exec
	logger := telemetry.WithExecution(
		telemetry.WithPipeline(o.logger, exec.PipelineName), exec.ID.String())

	// Валидация конфигурации всех пакетов против каталога
	if err := o.validatePipeline(state); err != nil {
		o.failBeforeLaunch(ctx, state, logger, fmt.Sprintf("validation failed: %v", err))
		return
	}
	if err := o.transition(ctx, state, domain.ExecStatusValidated, ""); err != nil {
		logger.Error("transition to VALIDATED failed", "error", err)
		return
	}

	// Snapshot графа ресурсов — один на всю попытку
	graph, err := o.resources.Snapshot()
	if err != nil {
		o.failBeforeLaunch(ctx, state, logger, fmt.Sprintf("no resource snapshot: %v", err))
		return
	}

	// Окружение: привязанное к pipeline или производное
	env, err := o.resolveEnvironment(ctx, state, graph)
	if err != nil {
		o.failBeforeLaunch(ctx, state, logger, fmt.Sprintf("environment build failed: %v", err))
		return
	}
	if err := o.transition(ctx, state, domain.ExecStatusEnvReady, ""); err != nil {
		logger.Error("transition to ENV_READY failed", "error", err)
		return
	}

	// План размещения
	strategy, methodCfg := requestedPlacement(exec)
	plan, err := o.planner.Plan(scheduler.Request{
		Pipeline: state.Pipeline,
		Graph:    graph,
		Strategy: strategy,
		Method:   methodCfg,
		Pinned:   scheduler.PinnedHints(state.Pipeline),
	})
	if err != nil {
		o.failBeforeLaunch(ctx, state, logger, fmt.Sprintf("planning failed: %v", err))
		return
	}

	exec.Plan = plan
	for _, node := range plan.NodeNames() {
		exec.SetNodeState(node, domain.NodeStatePending)
	}
	if err := o.execRepo.SetPlan(ctx, exec); err != nil {
		o.failBeforeLaunch(ctx, state, logger, fmt.Sprintf("persist plan failed: %v", err))
		return
	}

	if err := o.transition(ctx, state, domain.ExecStatusLaunching, ""); err != nil {
		logger.Error("transition to LAUNCHING failed", "error", err)
		return
	}

	// Метод запуска
	method, err := o.newMethod(plan.Method, logger)
	if err != nil {
		o.failExecution(ctx, state, logger, nil, fmt.Sprintf("launch method: %v", err))
		return
	}
	defer method.Close()

	targets := launch.TargetsFromPlan(plan)

	logger.Info("launching execution",
		"method", plan.Method.Type,
		"strategy", plan.Strategy,
		"nodes", len(targets),
		"graph_version", plan.GraphVersion,
	)

	o.dispatch(ctx, state, method, env)

	// Ждём подтверждения запуска от всех узлов плана
	stopReq, err := o.waitLaunched(ctx, state, logger, method, targets)
	if err != nil {
		o.failExecution(ctx, state, logger, method, err.Error())
		return
	}
	if stopReq != nil {
		o.stopExecution(ctx, state, logger, method, targets, *stopReq)
		return
	}

	if err := o.transition(ctx, state, domain.ExecStatusRunning, ""); err != nil {
		logger.Error("transition to RUNNING failed", "error", err)
		return
	}
	telemetry.ExecutionsStarted.WithLabelValues(exec.PipelineName).Inc()
	o.updatePipelineStatus(ctx, state, domain.PipelineStatusRunning)
	if o.checkpointer != nil {
		o.checkpointer.Arm(ctx, exec)
	}

	logger.Info("execution running", "nodes", len(targets))

	// Ждём завершения всех узлов
	o.waitSettled(ctx, state, logger, method, targets)
}

// validatePipeline проверяет конфигурацию каждого пакета по каталогу.
func (o *Orchestrator) validatePipeline(state *ExecState) error {
	if len(state.Pipeline.Packages) == 0 {
		return errors.New("pipeline has no packages")
	}
	for _, e := range state.Pipeline.Packages {
		if _, err := o.catalog.Validate(e.Name, e.Config); err != nil {
			return err
		}
	}
	return nil
}

// resolveEnvironment возвращает окружение execution: привязанное к
// pipeline, либо производное с уровнем balanced.
func (o *Orchestrator) resolveEnvironment(ctx context.Context, state *ExecState, graph *domain.ResourceGraph) (*domain.Environment, error) {
	if name := state.Pipeline.EnvironmentName; name != "" {
		return o.envBuilder.Get(ctx, name)
	}
	name := "exec-" + state.Exec.ID.String()
	return envbuild.Derive(name, state.Pipeline, graph, domain.OptLevelBalanced)
}

// requestedPlacement извлекает стратегию и метод запуска из запроса.
// Запрос хранится как skeleton-план без assignments; отсутствие
// заполняется умолчаниями (balanced, local).
func requestedPlacement(exec *domain.ExecutionRecord) (domain.Strategy, domain.MethodConfig) {
	strategy := domain.StrategyBalanced
	method := domain.MethodConfig{Type: domain.MethodLocal}
	if exec.Plan != nil {
		if exec.Plan.Strategy != "" {
			strategy = exec.Plan.Strategy
		}
		if exec.Plan.Method.Type != "" {
			method = exec.Plan.Method
		}
	}
	return strategy, method
}

// dispatch рассылает команды запуска по узлам плана.
//
// Для local/ssh/parallel-ssh каждый узел получает собственный вызов
// агента со своим набором пакетов. Для mpi запуск коллективный: один
// mpiexec на все узлы сразу.
func (o *Orchestrator) dispatch(ctx context.Context, state *ExecState, method launch.Method, env *domain.Environment) {
	plan := state.Exec.Plan

	if plan.Method.Type == domain.MethodMPI {
		targets := launch.TargetsFromPlan(plan)
		cmd := o.buildCommand(state, env, nil)
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			results := method.Launch(ctx, targets, cmd)
			for _, res := range results {
				o.deliverResult(state, res)
			}
			// mpiexec возвращает один результат — считаем его общим
			if len(results) == 1 {
				for _, t := range targets[1:] {
					res := results[0]
					res.Node = t.Node
					o.deliverResult(state, res)
				}
			}
		}()
		return
	}

	for i := range plan.Assignments {
		a := &plan.Assignments[i]
		target := launch.Target{Node: a.NodeName, Address: a.Address}
		cmd := o.buildCommand(state, env, a)
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			results := method.Launch(ctx, []launch.Target{target}, cmd)
			if len(results) == 0 {
				return
			}
			o.deliverResult(state, results[0])
		}()
	}
}

// deliverResult преобразует результат запуска в ack и передаёт владельцу.
func (o *Orchestrator) deliverResult(state *ExecState, res launch.Result) {
	ack := mq.NodeAckPayload{
		ExecutionID: state.ExecutionID(),
		Node:        res.Node,
		Phase:       ackPhaseCompleted,
	}
	if res.Err != nil {
		ack.Phase = ackPhaseFailed
		ack.Error = res.Err.Error()
		if stderr := strings.TrimSpace(string(res.Stderr)); stderr != "" {
			ack.Error = ack.Error + ": " + lastLine(stderr)
		}
	}
	if !state.Deliver(ack) {
		o.logger.Warn("ack queue full, dropping local result",
			"execution_id", state.ExecutionID(),
			"node", res.Node,
		)
	}
}

// buildCommand собирает команду запуска агента для узла.
// assignment == nil — коллективный запуск (mpi), агент определяет
// свой набор пакетов по hostname.
func (o *Orchestrator) buildCommand(state *ExecState, env *domain.Environment, assignment *domain.Assignment) launch.Command {
	exec := state.Exec

	var b strings.Builder
	b.WriteString(o.agentBin)
	b.WriteString(" run --execution ")
	b.WriteString(exec.ID.String())
	if assignment != nil {
		b.WriteString(" --node ")
		b.WriteString(assignment.NodeName)
		b.WriteString(" --packages ")
		b.WriteString(strings.Join(assignment.Packages, ","))
	}
	if exec.ResumeIndex > 0 {
		fmt.Fprintf(&b, " --resume %d", exec.ResumeIndex)
	}

	vars := make(map[string]string)
	if env != nil {
		vars = maps.Clone(env.Variables)
		if vars == nil {
			vars = make(map[string]string)
		}
		if len(env.Modules) > 0 {
			vars["CONDUCTOR_MODULES"] = strings.Join(env.Modules, ":")
		}
	}
	vars["CONDUCTOR_EXECUTION"] = exec.ID.String()

	return launch.Command{Line: b.String(), Env: vars}
}

// processPattern — шаблон для pkill при остановке узлов.
func (o *Orchestrator) processPattern(executionID uuid.UUID) string {
	return fmt.Sprintf("%s run --execution %s", o.agentBin, executionID)
}

// recordProgress передаёт подтверждённый узлом индекс завершённого
// пакета checkpointer'у.
func (o *Orchestrator) recordProgress(ack mq.NodeAckPayload) {
	if o.checkpointer != nil {
		o.checkpointer.RecordProgress(ack.ExecutionID, ack.Node, ack.PackageIndex)
	}
}

// waitLaunched ждёт подтверждения запуска от всех узлов плана.
//
// Подтверждения приходят от агентов через MQ либо синтезируются
// пробами статуса: живой процесс на узле равносилен launched. Узел
// без подтверждения после ackRetries проб, либо любой узел после
// общего таймаута — отказ запуска.
//
// Возвращает (stopReq, nil) при запросе остановки во время запуска.
func (o *Orchestrator) waitLaunched(ctx context.Context, state *ExecState, logger *slog.Logger, method launch.Method, targets []launch.Target) (*StopRequest, error) {
	exec := state.Exec

	byNode := make(map[string]launch.Target, len(targets))
	for _, t := range targets {
		byNode[t.Node] = t
	}

	probeEvery := o.ackTimeout / time.Duration(o.ackRetries+1)
	if probeEvery <= 0 {
		probeEvery = time.Second
	}
	probe := time.NewTicker(probeEvery)
	defer probe.Stop()
	deadline := time.NewTimer(o.ackTimeout)
	defer deadline.Stop()

	for {
		if state.AckQuorum() {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ErrOrchestratorStopped

		case req := <-state.stopsCh:
			return &req, nil

		case ack := <-state.acksCh:
			switch ack.Phase {
			case ackPhaseLaunched:
				if state.RecordAck(ack.Node) {
					exec.SetNodeState(ack.Node, domain.NodeStateReady)
					o.persistNodeStates(ctx, state)
					logger.Debug("node launched", "node", ack.Node)
				}
			case ackPhaseProgress:
				// Узел уже выполняет пакеты — запуск подтверждён
				if state.RecordAck(ack.Node) {
					exec.SetNodeState(ack.Node, domain.NodeStateReady)
					o.persistNodeStates(ctx, state)
				}
				o.recordProgress(ack)
			case ackPhaseCompleted:
				// Узел успел завершиться до подтверждения запуска
				state.RecordAck(ack.Node)
				state.RecordCompleted(ack.Node)
				exec.SetNodeState(ack.Node, domain.NodeStateCompleted)
				o.persistNodeStates(ctx, state)
			case ackPhaseFailed:
				state.RecordFailed(ack.Node, ack.Error)
				exec.SetNodeState(ack.Node, domain.NodeStateFailed)
				o.persistNodeStates(ctx, state)
				return nil, fmt.Errorf("node %s failed during launch: %s", ack.Node, ack.Error)
			}

		case <-probe.C:
			// Проба статуса узлов без подтверждения
			pending := state.PendingAcks()
			var pendingTargets []launch.Target
			for _, node := range pending {
				if t, ok := byNode[node]; ok {
					pendingTargets = append(pendingTargets, t)
				}
			}
			if len(pendingTargets) == 0 {
				continue
			}
			statuses := method.Status(ctx, pendingTargets, o.processPattern(exec.ID))
			for node, err := range statuses {
				if err == nil {
					// Процесс жив — считаем узел запущенным
					if state.RecordAck(node) {
						exec.SetNodeState(node, domain.NodeStateReady)
						o.persistNodeStates(ctx, state)
						logger.Debug("node launch confirmed by probe", "node", node)
					}
					continue
				}
				if state.IncRetry(node) > o.ackRetries {
					return nil, fmt.Errorf("%w: node %s: %v", ErrNodeUnresponsive, node, err)
				}
				logger.Warn("node status probe failed", "node", node, "error", err)
			}

		case <-deadline.C:
			if pending := state.PendingAcks(); len(pending) > 0 {
				return nil, fmt.Errorf("%w: nodes %s", ErrLaunchTimeout, strings.Join(pending, ", "))
			}
			return nil, nil
		}
	}
}

// waitSettled ждёт, пока каждый узел плана дойдёт до терминальной фазы,
// и финализирует execution.
func (o *Orchestrator) waitSettled(ctx context.Context, state *ExecState, logger *slog.Logger, method launch.Method, targets []launch.Target) {
	exec := state.Exec

	for {
		if state.AllSettled() {
			if node, reason := state.FirstFailure(); node != "" {
				o.failExecution(ctx, state, logger, method,
					fmt.Sprintf("node %s: %s", node, reason))
				return
			}
			o.completeExecution(ctx, state, logger)
			return
		}

		select {
		case <-ctx.Done():
			// Orchestrator выключается: execution остаётся RUNNING в БД,
			// процессы на узлах продолжают работать
			logger.Warn("orchestrator shutdown with execution in flight")
			return

		case req := <-state.stopsCh:
			o.stopExecution(ctx, state, logger, method, targets, req)
			return

		case ack := <-state.acksCh:
			switch ack.Phase {
			case ackPhaseLaunched:
				// Запоздавшее подтверждение запуска
				state.RecordAck(ack.Node)
			case ackPhaseProgress:
				o.recordProgress(ack)
				logger.Debug("package completed on node",
					"node", ack.Node, "package", ack.Package, "index", ack.PackageIndex)
			case ackPhaseCompleted:
				state.RecordCompleted(ack.Node)
				exec.SetNodeState(ack.Node, domain.NodeStateCompleted)
				o.persistNodeStates(ctx, state)
				logger.Debug("node completed", "node", ack.Node)
			case ackPhaseStopped:
				state.RecordStopped(ack.Node)
				exec.SetNodeState(ack.Node, domain.NodeStateStopped)
				o.persistNodeStates(ctx, state)
			case ackPhaseFailed:
				state.RecordFailed(ack.Node, ack.Error)
				exec.SetNodeState(ack.Node, domain.NodeStateFailed)
				o.persistNodeStates(ctx, state)
				logger.Warn("node failed", "node", ack.Node, "error", ack.Error)
			}
		}
	}
}

// completeExecution финализирует успешный execution:
// COMPLETING → COMPLETED.
func (o *Orchestrator) completeExecution(ctx context.Context, state *ExecState, logger *slog.Logger) {
	if err := o.transition(ctx, state, domain.ExecStatusCompleting, ""); err != nil {
		logger.Error("transition to COMPLETING failed", "error", err)
		return
	}
	if err := o.transition(ctx, state, domain.ExecStatusCompleted, ""); err != nil {
		logger.Error("transition to COMPLETED failed", "error", err)
		return
	}

	o.finalize(ctx, state, domain.PipelineStatusCompleted)

	logger.Info("execution completed", "duration", state.Exec.Duration())
}

// stopExecution останавливает execution по запросу:
// STOPPING → STOPPED.
//
// Graceful-остановка шлёт SIGTERM и ждёт завершения узлов в пределах
// gracePeriod, после чего добивает SIGKILL. Force пропускает ожидание.
func (o *Orchestrator) stopExecution(ctx context.Context, state *ExecState, logger *slog.Logger, method launch.Method, targets []launch.Target, req StopRequest) {
	exec := state.Exec
	pattern := o.processPattern(exec.ID)

	if err := o.transition(ctx, state, domain.ExecStatusStopping, ""); err != nil {
		logger.Error("transition to STOPPING failed", "error", err)
		return
	}

	logger.Info("stopping execution", "force", req.Force, "nodes", len(targets))

	if err := method.Stop(ctx, targets, pattern, req.Force); err != nil {
		logger.Warn("stop command failed", "error", err)
	}

	if !req.Force {
		// Ждём штатного завершения узлов после SIGTERM
		grace := time.NewTimer(o.gracePeriod)
		defer grace.Stop()
	drain:
		for !state.AllSettled() {
			select {
			case <-ctx.Done():
				break drain
			case <-grace.C:
				logger.Warn("grace period expired, killing remaining nodes")
				if err := method.Stop(ctx, targets, pattern, true); err != nil {
					logger.Warn("force stop failed", "error", err)
				}
				break drain
			case ack := <-state.acksCh:
				switch ack.Phase {
				case ackPhaseCompleted:
					state.RecordCompleted(ack.Node)
					exec.SetNodeState(ack.Node, domain.NodeStateCompleted)
				case ackPhaseStopped, ackPhaseFailed:
					state.RecordStopped(ack.Node)
					exec.SetNodeState(ack.Node, domain.NodeStateStopped)
				}
			}
		}
	}

	// Узлы без терминальной фазы считаем остановленными
	for _, t := range targets {
		if st, ok := exec.NodeStates[t.Node]; !ok || !st.IsTerminal() {
			state.RecordStopped(t.Node)
			exec.SetNodeState(t.Node, domain.NodeStateStopped)
		}
	}

	if err := o.transition(ctx, state, domain.ExecStatusStopped, ""); err != nil {
		logger.Error("transition to STOPPED failed", "error", err)
		return
	}

	o.finalize(ctx, state, domain.PipelineStatusStopped)

	logger.Info("execution stopped")
}

// failExecution переводит execution в FAILED через FAILING,
// останавливая узлы best effort.
func (o *Orchestrator) failExecution(ctx context.Context, state *ExecState, logger *slog.Logger, method launch.Method, reason string) {
	exec := state.Exec

	logger.Warn("execution failing", "reason", reason)

	if err := o.transition(ctx, state, domain.ExecStatusFailing, reason); err != nil {
		logger.Error("transition to FAILING failed", "error", err)
		return
	}

	if method != nil && exec.Plan != nil {
		targets := launch.TargetsFromPlan(exec.Plan)
		if err := method.Stop(ctx, targets, o.processPattern(exec.ID), true); err != nil {
			logger.Warn("cleanup stop failed", "error", err)
		}
		for _, t := range targets {
			if st, ok := exec.NodeStates[t.Node]; ok && !st.IsTerminal() {
				exec.SetNodeState(t.Node, domain.NodeStateStopped)
			}
		}
	}

	if err := o.transition(ctx, state, domain.ExecStatusFailed, reason); err != nil {
		logger.Error("transition to FAILED failed", "error", err)
		return
	}

	o.finalize(ctx, state, domain.PipelineStatusFailed)
}

// failBeforeLaunch — отказ до рассылки команд: узлы останавливать не нужно.
func (o *Orchestrator) failBeforeLaunch(ctx context.Context, state *ExecState, logger *slog.Logger, reason string) {
	o.failExecution(ctx, state, logger, nil, reason)
}

// failEarly переводит execution в FAILED до регистрации ExecState
// (pipeline не найден и т.п.).
func (o *Orchestrator) failEarly(ctx context.Context, exec *domain.ExecutionRecord, reason string) error {
	if err := o.execRepo.Transition(ctx, exec, domain.ExecStatusFailing, reason); err != nil {
		return fmt.Errorf("transition to FAILING: %w", err)
	}
	if err := o.execRepo.Transition(ctx, exec, domain.ExecStatusFailed, reason); err != nil {
		return fmt.Errorf("transition to FAILED: %w", err)
	}

	o.logger.Warn("execution failed early",
		"execution_id", exec.ID,
		"error", reason,
	)

	return fmt.Errorf("execution failed: %s", reason)
}

// finalize выполняет общую работу терминальных статусов: метрики,
// снятие checkpoint-таймера, статус pipeline.
func (o *Orchestrator) finalize(ctx context.Context, state *ExecState, pipelineStatus domain.PipelineStatus) {
	exec := state.Exec

	telemetry.ExecutionsFinished.WithLabelValues(exec.PipelineName, string(exec.Status)).Inc()
	if d := exec.Duration(); d > 0 {
		telemetry.ExecutionDuration.Observe(d.Seconds())
	}

	if o.checkpointer != nil {
		o.checkpointer.Disarm(exec.ID)
	}

	o.updatePipelineStatus(ctx, state, pipelineStatus)
}

// transition выполняет переход статуса в БД и публикует событие.
func (o *Orchestrator) transition(ctx context.Context, state *ExecState, to domain.ExecutionStatus, reason string) error {
	exec := state.Exec
	from := exec.Status

	if err := o.execRepo.Transition(ctx, exec, to, reason); err != nil {
		return err
	}

	if o.publisher != nil {
		payload := mq.ExecTransitionPayload{
			ExecutionID: exec.ID,
			Pipeline:    exec.PipelineName,
			From:        from,
			To:          to,
			Reason:      reason,
			At:          time.Now(),
		}
		if err := o.publisher.PublishTransition(ctx, payload); err != nil {
			o.logger.Warn("failed to publish transition",
				"execution_id", exec.ID,
				"to", to,
				"error", err,
			)
		}
	}

	return nil
}

// persistNodeStates сохраняет состояния узлов best effort.
func (o *Orchestrator) persistNodeStates(ctx context.Context, state *ExecState) {
	if err := o.execRepo.UpdateNodeStates(ctx, state.Exec); err != nil {
		o.logger.Warn("failed to persist node states",
			"execution_id", state.ExecutionID(),
			"error", err,
		)
	}
}

// updatePipelineStatus отражает статус execution на pipeline.
func (o *Orchestrator) updatePipelineStatus(ctx context.Context, state *ExecState, status domain.PipelineStatus) {
	if err := o.pipelineRepo.UpdateStatus(ctx, state.Exec.PipelineName, status); err != nil {
		o.logger.Warn("failed to update pipeline status",
			"pipeline", state.Exec.PipelineName,
			"status", status,
			"error", err,
		)
	}
}

// lastLine возвращает последнюю непустую строку текста.
func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
