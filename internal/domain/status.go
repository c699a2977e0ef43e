package domain

// ExecutionStatus — статус выполнения execution.
//
// Жизненный цикл:
//
//	CREATED → VALIDATED → ENV_READY → LAUNCHING → RUNNING → COMPLETING → COMPLETED
//	                                                      ↘ STOPPING   → STOPPED
//	          (любое нетерминальное) → FAILING → FAILED
type ExecutionStatus string

const (
	// ExecStatusCreated — execution создан, валидация ещё не выполнялась.
	ExecStatusCreated ExecutionStatus = "CREATED"

	// ExecStatusValidated — конфигурация всех пакетов прошла валидацию.
	ExecStatusValidated ExecutionStatus = "VALIDATED"

	// ExecStatusEnvReady — окружение построено и привязано к execution.
	ExecStatusEnvReady ExecutionStatus = "ENV_READY"

	// ExecStatusLaunching — команды запуска разосланы по узлам,
	// ожидаются подтверждения готовности.
	ExecStatusLaunching ExecutionStatus = "LAUNCHING"

	// ExecStatusRunning — все узлы подтвердили готовность, пакеты выполняются.
	ExecStatusRunning ExecutionStatus = "RUNNING"

	// ExecStatusCompleting — все пакеты завершились успешно, идёт финализация.
	ExecStatusCompleting ExecutionStatus = "COMPLETING"

	// ExecStatusStopping — получен запрос на остановку, узлы останавливаются.
	ExecStatusStopping ExecutionStatus = "STOPPING"

	// ExecStatusFailing — возникла невосстановимая ошибка, узлы останавливаются.
	ExecStatusFailing ExecutionStatus = "FAILING"

	// ExecStatusCompleted — execution успешно завершён. Терминальный.
	ExecStatusCompleted ExecutionStatus = "COMPLETED"

	// ExecStatusStopped — execution остановлен по запросу. Терминальный.
	ExecStatusStopped ExecutionStatus = "STOPPED"

	// ExecStatusFailed — execution завершился с ошибкой. Терминальный.
	ExecStatusFailed ExecutionStatus = "FAILED"
)

// transitions — допустимые переходы между статусами.
var transitions = map[ExecutionStatus][]ExecutionStatus{
	ExecStatusCreated:    {ExecStatusValidated, ExecStatusFailing},
	ExecStatusValidated:  {ExecStatusEnvReady, ExecStatusFailing},
	ExecStatusEnvReady:   {ExecStatusLaunching, ExecStatusFailing},
	ExecStatusLaunching:  {ExecStatusRunning, ExecStatusStopping, ExecStatusFailing},
	ExecStatusRunning:    {ExecStatusCompleting, ExecStatusStopping, ExecStatusFailing},
	ExecStatusCompleting: {ExecStatusCompleted, ExecStatusFailing},
	ExecStatusStopping:   {ExecStatusStopped, ExecStatusFailing},
	ExecStatusFailing:    {ExecStatusFailed},
}

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecStatusCompleted, ExecStatusStopped, ExecStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет допустимость перехода s → next.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PipelineStatus — статус pipeline.
//
// CONFIGURED означает, что pipeline содержит хотя бы один пакет
// и готов к запуску. RUNNING/STOPPED/FAILED/COMPLETED отражают
// последний execution.
type PipelineStatus string

const (
	PipelineStatusCreated    PipelineStatus = "CREATED"
	PipelineStatusConfigured PipelineStatus = "CONFIGURED"
	PipelineStatusRunning    PipelineStatus = "RUNNING"
	PipelineStatusStopped    PipelineStatus = "STOPPED"
	PipelineStatusFailed     PipelineStatus = "FAILED"
	PipelineStatusCompleted  PipelineStatus = "COMPLETED"
)

// NodeState — состояние отдельного узла внутри execution.
type NodeState string

const (
	// NodeStatePending — команда запуска отправлена, подтверждение не получено.
	NodeStatePending NodeState = "PENDING"

	// NodeStateReady — узел подтвердил готовность.
	NodeStateReady NodeState = "READY"

	// NodeStateRunning — узел выполняет свой набор пакетов.
	NodeStateRunning NodeState = "RUNNING"

	// NodeStateCompleted — все пакеты узла завершились успешно.
	NodeStateCompleted NodeState = "COMPLETED"

	// NodeStateFailed — пакет на узле завершился с ошибкой.
	NodeStateFailed NodeState = "FAILED"

	// NodeStateStopped — узел остановлен по команде.
	NodeStateStopped NodeState = "STOPPED"

	// NodeStateUnresponsive — узел не присылает heartbeat дольше таймаута.
	// Мониторинг деградирует статус вместо блокировки.
	NodeStateUnresponsive NodeState = "UNRESPONSIVE"
)

// IsTerminal возвращает true, если состояние узла финальное.
func (s NodeState) IsTerminal() bool {
	switch s {
	case NodeStateCompleted, NodeStateFailed, NodeStateStopped:
		return true
	default:
		return false
	}
}
