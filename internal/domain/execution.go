package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionRecord — состояние одной попытки запуска pipeline.
//
// На pipeline в любой момент существует не более одного execution
// в нетерминальном статусе. Смены статуса записываются в append-only
// журнал переходов (TransitionEvent), а не перезаписываются — история
// сохраняется для аудита и анализа.
type ExecutionRecord struct {
	// ID — уникальный идентификатор попытки запуска.
	ID uuid.UUID `json:"id"`

	// PipelineName — запускаемый pipeline.
	PipelineName string `json:"pipeline_name"`

	// Status — текущий статус execution.
	Status ExecutionStatus `json:"status"`

	// Plan — план размещения этой попытки.
	Plan *AllocationPlan `json:"plan,omitempty"`

	// NodeStates — состояние каждого узла (имя узла → состояние).
	NodeStates map[string]NodeState `json:"node_states,omitempty"`

	// ResumeIndex — индекс пакета, с которого начинается выполнение.
	// 0 для обычного запуска; k+1 при restore из checkpoint'а,
	// зафиксировавшего k завершённых пакетов.
	ResumeIndex int `json:"resume_index"`

	// RestoredFrom — checkpoint, из которого восстановлен execution (опционально).
	RestoredFrom *CheckpointRef `json:"restored_from,omitempty"`

	// LastCheckpointSeq — номер последнего верифицированного checkpoint'а.
	LastCheckpointSeq int `json:"last_checkpoint_seq,omitempty"`

	// StartedAt — время перехода в RUNNING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время перехода в терминальный статус.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — причина отказа для FAILED.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// CheckpointRef — ссылка на checkpoint (execution + порядковый номер).
type CheckpointRef struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	Seq         int       `json:"seq"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если execution ещё не завершён.
func (e *ExecutionRecord) Duration() time.Duration {
	if e.StartedAt == nil || e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(*e.StartedAt)
}

// IsFinished возвращает true, если execution в терминальном статусе.
func (e *ExecutionRecord) IsFinished() bool {
	return e.Status.IsTerminal()
}

// MarkRunning переводит execution в RUNNING.
func (e *ExecutionRecord) MarkRunning() {
	now := time.Now()
	e.Status = ExecStatusRunning
	e.StartedAt = &now
}

// MarkCompleted переводит execution в COMPLETED.
func (e *ExecutionRecord) MarkCompleted() {
	now := time.Now()
	e.Status = ExecStatusCompleted
	e.FinishedAt = &now
}

// MarkStopped переводит execution в STOPPED.
func (e *ExecutionRecord) MarkStopped() {
	now := time.Now()
	e.Status = ExecStatusStopped
	e.FinishedAt = &now
}

// MarkFailed переводит execution в FAILED с причиной.
func (e *ExecutionRecord) MarkFailed(reason string) {
	now := time.Now()
	e.Status = ExecStatusFailed
	e.FinishedAt = &now
	e.Error = reason
}

// SetNodeState обновляет состояние узла.
func (e *ExecutionRecord) SetNodeState(node string, state NodeState) {
	if e.NodeStates == nil {
		e.NodeStates = make(map[string]NodeState)
	}
	e.NodeStates[node] = state
}

// TransitionEvent — одна запись append-only журнала переходов execution.
type TransitionEvent struct {
	// ExecutionID — execution, к которому относится переход.
	ExecutionID uuid.UUID `json:"execution_id"`

	// Seq — порядковый номер перехода (1, 2, ...).
	Seq int `json:"seq"`

	// From — статус до перехода.
	From ExecutionStatus `json:"from"`

	// To — статус после перехода.
	To ExecutionStatus `json:"to"`

	// Reason — причина перехода (пустая для штатных переходов).
	Reason string `json:"reason,omitempty"`

	// At — время перехода.
	At time.Time `json:"at"`
}
