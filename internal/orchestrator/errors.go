package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrExecutionNotFound — execution не найден в БД.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrPipelineNotFound — pipeline не найден.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrExecutionNotCreated — execution не в статусе CREATED.
	ErrExecutionNotCreated = errors.New("execution is not in CREATED status")

	// ErrExecutionAlreadyActive — execution уже обрабатывается.
	ErrExecutionAlreadyActive = errors.New("execution already being processed")

	// ErrExecutionNotActive — execution не найден в активных.
	ErrExecutionNotActive = errors.New("execution not in active set")

	// ErrLaunchTimeout — узел не подтвердил запуск за отведённые попытки.
	ErrLaunchTimeout = errors.New("node acknowledgement timeout")

	// ErrNodeUnresponsive — узел перестал отвечать во время выполнения.
	ErrNodeUnresponsive = errors.New("node unresponsive")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
