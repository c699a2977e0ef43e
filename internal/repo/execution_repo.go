package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conductor/internal/domain"
)

// ExecutionRepo — репозиторий для работы с executions.
//
// Смены статуса не перезаписывают историю: каждый переход добавляется
// в append-only таблицу execution_events, текущая строка execution
// хранит только последнее состояние.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

// Create создаёт новый execution.
//
// Инвариант "не более одного активного execution на pipeline"
// проверяется под блокировкой строки pipeline: конкурентные запуски
// одного pipeline сериализуются на этой строке и не могут создать
// две активные записи. FOR UPDATE по executions не годится — если
// активных строк нет, блокировать нечего.
func (r *ExecutionRepo) Create(ctx context.Context, exec *domain.ExecutionRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var lockedName string
	err = tx.QueryRow(ctx, `
		SELECT name FROM pipelines WHERE name = $1 FOR UPDATE
	`, exec.PipelineName).Scan(&lockedName)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: pipeline %s", ErrNotFound, exec.PipelineName)
	}
	if err != nil {
		return fmt.Errorf("lock pipeline: %w", err)
	}

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM executions
			WHERE pipeline_name = $1
			  AND status NOT IN ('COMPLETED', 'STOPPED', 'FAILED')
		)
	`, exec.PipelineName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check active execution: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrActiveExecution, exec.PipelineName)
	}

	planJSON, err := json.Marshal(exec.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	nodeStatesJSON, err := json.Marshal(exec.NodeStates)
	if err != nil {
		return fmt.Errorf("marshal node states: %w", err)
	}
	restoredJSON, err := json.Marshal(exec.RestoredFrom)
	if err != nil {
		return fmt.Errorf("marshal restored_from: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO executions (id, pipeline_name, status, plan, node_states, resume_index,
		                        restored_from, last_checkpoint_seq, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		exec.ID,
		exec.PipelineName,
		exec.Status,
		planJSON,
		nodeStatesJSON,
		exec.ResumeIndex,
		restoredJSON,
		exec.LastCheckpointSeq,
		nullString(exec.Error),
		exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", mapUniqueViolation(err))
	}

	return tx.Commit(ctx)
}

// GetByID возвращает execution по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExecutionRecord, error) {
	query := executionSelect + ` WHERE id = $1`
	return scanExecution(r.pool.QueryRow(ctx, query, id))
}

// GetActive возвращает нетерминальный execution для pipeline.
// Возвращает ErrNotFound, если активного execution нет.
func (r *ExecutionRepo) GetActive(ctx context.Context, pipelineName string) (*domain.ExecutionRecord, error) {
	query := executionSelect + `
		WHERE pipeline_name = $1
		  AND status NOT IN ('COMPLETED', 'STOPPED', 'FAILED')
	`
	return scanExecution(r.pool.QueryRow(ctx, query, pipelineName))
}

// List возвращает executions pipeline, новые первыми.
// Пустое имя pipeline — все executions.
func (r *ExecutionRepo) List(ctx context.Context, pipelineName string, limit int) ([]domain.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := executionSelect + `
		WHERE ($1::text IS NULL OR pipeline_name = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, nullString(pipelineName), limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.ExecutionRecord
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

// ListPending возвращает executions в статусе CREATED (polling fallback).
func (r *ExecutionRepo) ListPending(ctx context.Context, limit int) ([]domain.ExecutionRecord, error) {
	query := executionSelect + `
		WHERE status = 'CREATED'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.ExecutionRecord
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

// Transition атомарно меняет статус execution и дописывает событие
// перехода в журнал. Незаконный переход возвращает ErrInvalidState.
func (r *ExecutionRepo) Transition(ctx context.Context, exec *domain.ExecutionRecord, to domain.ExecutionStatus, reason string) error {
	from := exec.Status
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	var startedAt, finishedAt *time.Time
	if to == domain.ExecStatusRunning {
		startedAt = &now
	}
	if to.IsTerminal() {
		finishedAt = &now
	}

	nodeStatesJSON, err := json.Marshal(exec.NodeStates)
	if err != nil {
		return fmt.Errorf("marshal node states: %w", err)
	}

	result, err := tx.Exec(ctx, `
		UPDATE executions
		SET status = $2,
		    node_states = $3,
		    error = COALESCE($4, error),
		    started_at = COALESCE($5, started_at),
		    finished_at = COALESCE($6, finished_at)
		WHERE id = $1 AND status = $7
	`, exec.ID, to, nodeStatesJSON, nullString(reason), startedAt, finishedAt, from)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Строка ушла из ожидаемого статуса — конкурентный переход
		return fmt.Errorf("%w: execution %s no longer in %s", ErrInvalidState, exec.ID, from)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO execution_events (execution_id, seq, from_status, to_status, reason, at)
		VALUES ($1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM execution_events WHERE execution_id = $1), $2, $3, $4, $5)
	`, exec.ID, from, to, nullString(reason), now)
	if err != nil {
		return fmt.Errorf("append transition event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	exec.Status = to
	if startedAt != nil {
		exec.StartedAt = startedAt
	}
	if finishedAt != nil {
		exec.FinishedAt = finishedAt
	}
	if reason != "" {
		exec.Error = reason
	}
	return nil
}

// SetPlan сохраняет план размещения и начальные состояния узлов.
// Вызывается после планирования, до перехода в LAUNCHING.
func (r *ExecutionRepo) SetPlan(ctx context.Context, exec *domain.ExecutionRecord) error {
	planJSON, err := json.Marshal(exec.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	nodeStatesJSON, err := json.Marshal(exec.NodeStates)
	if err != nil {
		return fmt.Errorf("marshal node states: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE executions SET plan = $2, node_states = $3 WHERE id = $1`,
		exec.ID, planJSON, nodeStatesJSON)
	if err != nil {
		return fmt.Errorf("set plan: %w", err)
	}
	return nil
}

// UpdateNodeStates сохраняет состояния узлов без смены статуса.
func (r *ExecutionRepo) UpdateNodeStates(ctx context.Context, exec *domain.ExecutionRecord) error {
	nodeStatesJSON, err := json.Marshal(exec.NodeStates)
	if err != nil {
		return fmt.Errorf("marshal node states: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE executions SET node_states = $2 WHERE id = $1`,
		exec.ID, nodeStatesJSON)
	if err != nil {
		return fmt.Errorf("update node states: %w", err)
	}
	return nil
}

// SetLastCheckpoint записывает номер последнего верифицированного checkpoint'а.
func (r *ExecutionRepo) SetLastCheckpoint(ctx context.Context, id uuid.UUID, seq int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE executions SET last_checkpoint_seq = $2 WHERE id = $1`,
		id, seq)
	if err != nil {
		return fmt.Errorf("set last checkpoint: %w", err)
	}
	return nil
}

// Events возвращает журнал переходов execution в порядке возрастания seq.
func (r *ExecutionRepo) Events(ctx context.Context, id uuid.UUID) ([]domain.TransitionEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT execution_id, seq, from_status, to_status, reason, at
		FROM execution_events
		WHERE execution_id = $1
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.TransitionEvent
	for rows.Next() {
		var ev domain.TransitionEvent
		var reason *string
		if err := rows.Scan(&ev.ExecutionID, &ev.Seq, &ev.From, &ev.To, &reason, &ev.At); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if reason != nil {
			ev.Reason = *reason
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

const executionSelect = `
	SELECT id, pipeline_name, status, plan, node_states, resume_index,
	       restored_from, last_checkpoint_seq, started_at, finished_at, error, created_at
	FROM executions
`

// scanExecution сканирует одну строку в ExecutionRecord.
func scanExecution(row pgx.Row) (*domain.ExecutionRecord, error) {
	var exec domain.ExecutionRecord
	var planJSON, nodeStatesJSON, restoredJSON []byte
	var execError *string

	err := row.Scan(
		&exec.ID,
		&exec.PipelineName,
		&exec.Status,
		&planJSON,
		&nodeStatesJSON,
		&exec.ResumeIndex,
		&restoredJSON,
		&exec.LastCheckpointSeq,
		&exec.StartedAt,
		&exec.FinishedAt,
		&execError,
		&exec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	if planJSON != nil {
		if err := json.Unmarshal(planJSON, &exec.Plan); err != nil {
			return nil, fmt.Errorf("unmarshal plan: %w", err)
		}
	}
	if nodeStatesJSON != nil {
		if err := json.Unmarshal(nodeStatesJSON, &exec.NodeStates); err != nil {
			return nil, fmt.Errorf("unmarshal node states: %w", err)
		}
	}
	if restoredJSON != nil {
		if err := json.Unmarshal(restoredJSON, &exec.RestoredFrom); err != nil {
			return nil, fmt.Errorf("unmarshal restored_from: %w", err)
		}
	}
	if execError != nil {
		exec.Error = *execError
	}

	return &exec, nil
}
