package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conductor/internal/domain"
)

// CheckpointRepo — репозиторий для работы с checkpoints.
//
// Checkpoints нумеруются монотонно в рамках execution (execution_id, seq).
// Строка становится видимой для восстановления только после Verify.
type CheckpointRepo struct {
	pool *pgxpool.Pool
}

// NewCheckpointRepo создаёт новый CheckpointRepo.
func NewCheckpointRepo(pool *pgxpool.Pool) *CheckpointRepo {
	return &CheckpointRepo{pool: pool}
}

// Save сохраняет checkpoint. Seq назначается базой: MAX(seq)+1 в рамках execution.
// Назначенный номер записывается обратно в cp.Seq.
func (r *CheckpointRepo) Save(ctx context.Context, cp *domain.Checkpoint) error {
	snapshotsJSON, err := json.Marshal(cp.NodeSnapshots)
	if err != nil {
		return fmt.Errorf("marshal node snapshots: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO checkpoints (execution_id, seq, package_index, node_snapshots, hash, verified, created_at)
		VALUES ($1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM checkpoints WHERE execution_id = $1), $2, $3, $4, $5, $6)
		RETURNING seq
	`,
		cp.ExecutionID,
		cp.PackageIndex,
		snapshotsJSON,
		cp.Hash,
		cp.Verified,
		cp.CreatedAt,
	).Scan(&cp.Seq)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// Verify помечает checkpoint как прошедший проверку целостности.
func (r *CheckpointRepo) Verify(ctx context.Context, ref domain.CheckpointRef) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE checkpoints SET verified = TRUE WHERE execution_id = $1 AND seq = $2`,
		ref.ExecutionID, ref.Seq)
	if err != nil {
		return fmt.Errorf("verify checkpoint: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get возвращает checkpoint по (execution_id, seq).
func (r *CheckpointRepo) Get(ctx context.Context, ref domain.CheckpointRef) (*domain.Checkpoint, error) {
	query := checkpointSelect + ` WHERE execution_id = $1 AND seq = $2`
	return scanCheckpoint(r.pool.QueryRow(ctx, query, ref.ExecutionID, ref.Seq))
}

// Latest возвращает последний верифицированный checkpoint execution'а.
func (r *CheckpointRepo) Latest(ctx context.Context, executionID uuid.UUID) (*domain.Checkpoint, error) {
	query := checkpointSelect + `
		WHERE execution_id = $1 AND verified = TRUE
		ORDER BY seq DESC
		LIMIT 1
	`
	return scanCheckpoint(r.pool.QueryRow(ctx, query, executionID))
}

// List возвращает верифицированные checkpoints execution'а, новые первыми.
func (r *CheckpointRepo) List(ctx context.Context, executionID uuid.UUID) ([]domain.Checkpoint, error) {
	query := checkpointSelect + `
		WHERE execution_id = $1 AND verified = TRUE
		ORDER BY seq DESC
	`
	rows, err := r.pool.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []domain.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		cps = append(cps, *cp)
	}
	return cps, rows.Err()
}

// Prune удаляет старые checkpoints сверх keep штук.
// Последний верифицированный checkpoint не удаляется никогда.
func (r *CheckpointRepo) Prune(ctx context.Context, executionID uuid.UUID, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	result, err := r.pool.Exec(ctx, `
		DELETE FROM checkpoints
		WHERE execution_id = $1
		  AND seq NOT IN (
			SELECT seq FROM checkpoints
			WHERE execution_id = $1 AND verified = TRUE
			ORDER BY seq DESC
			LIMIT $2
		  )
		  AND seq < (
			SELECT COALESCE(MAX(seq), 0) FROM checkpoints
			WHERE execution_id = $1 AND verified = TRUE
		  )
	`, executionID, keep)
	if err != nil {
		return 0, fmt.Errorf("prune checkpoints: %w", err)
	}
	return int(result.RowsAffected()), nil
}

const checkpointSelect = `
	SELECT execution_id, seq, package_index, node_snapshots, hash, verified, created_at
	FROM checkpoints
`

// scanCheckpoint сканирует одну строку в Checkpoint.
func scanCheckpoint(row pgx.Row) (*domain.Checkpoint, error) {
	var cp domain.Checkpoint
	var snapshotsJSON []byte

	err := row.Scan(
		&cp.ExecutionID,
		&cp.Seq,
		&cp.PackageIndex,
		&snapshotsJSON,
		&cp.Hash,
		&cp.Verified,
		&cp.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}

	if snapshotsJSON != nil {
		if err := json.Unmarshal(snapshotsJSON, &cp.NodeSnapshots); err != nil {
			return nil, fmt.Errorf("unmarshal node snapshots: %w", err)
		}
	}
	return &cp, nil
}
