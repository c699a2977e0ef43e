package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conductor/internal/domain"
)

// PipelineRepo — репозиторий для работы с pipelines.
//
// Пакеты pipeline хранятся в JSONB-колонке целиком: переиндексация
// порядка при добавлении/удалении — одна атомарная запись строки.
type PipelineRepo struct {
	pool *pgxpool.Pool
}

// NewPipelineRepo создаёт новый PipelineRepo.
func NewPipelineRepo(pool *pgxpool.Pool) *PipelineRepo {
	return &PipelineRepo{pool: pool}
}

// Create создаёт новый pipeline.
// Возвращает ErrAlreadyExists при конфликте имени.
func (r *PipelineRepo) Create(ctx context.Context, p *domain.Pipeline) error {
	packagesJSON, err := json.Marshal(p.Packages)
	if err != nil {
		return fmt.Errorf("marshal packages: %w", err)
	}

	query := `
		INSERT INTO pipelines (name, description, environment_name, status, packages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		p.Name,
		nullString(p.Description),
		nullString(p.EnvironmentName),
		p.Status,
		packagesJSON,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: pipeline %s", ErrAlreadyExists, p.Name)
	}
	return nil
}

// GetByName возвращает pipeline по имени.
func (r *PipelineRepo) GetByName(ctx context.Context, name string) (*domain.Pipeline, error) {
	query := `
		SELECT name, description, environment_name, status, packages, created_at, updated_at
		FROM pipelines
		WHERE name = $1
	`
	return scanPipeline(r.pool.QueryRow(ctx, query, name))
}

// List возвращает все pipelines, отсортированные по имени.
func (r *PipelineRepo) List(ctx context.Context) ([]domain.Pipeline, error) {
	query := `
		SELECT name, description, environment_name, status, packages, created_at, updated_at
		FROM pipelines
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []domain.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, *p)
	}
	return pipelines, rows.Err()
}

// Update перезаписывает pipeline (пакеты, статус, окружение, метаданные).
func (r *PipelineRepo) Update(ctx context.Context, p *domain.Pipeline) error {
	packagesJSON, err := json.Marshal(p.Packages)
	if err != nil {
		return fmt.Errorf("marshal packages: %w", err)
	}

	query := `
		UPDATE pipelines
		SET description = $2, environment_name = $3, status = $4, packages = $5, updated_at = $6
		WHERE name = $1
	`
	result, err := r.pool.Exec(ctx, query,
		p.Name,
		nullString(p.Description),
		nullString(p.EnvironmentName),
		p.Status,
		packagesJSON,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update pipeline: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: pipeline %s", ErrNotFound, p.Name)
	}
	return nil
}

// UpdateStatus обновляет только статус pipeline.
func (r *PipelineRepo) UpdateStatus(ctx context.Context, name string, status domain.PipelineStatus) error {
	query := `UPDATE pipelines SET status = $2, updated_at = now() WHERE name = $1`
	result, err := r.pool.Exec(ctx, query, name, status)
	if err != nil {
		return fmt.Errorf("update pipeline status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: pipeline %s", ErrNotFound, name)
	}
	return nil
}

// Delete удаляет pipeline. Удаление необратимо.
func (r *PipelineRepo) Delete(ctx context.Context, name string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM pipelines WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete pipeline: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: pipeline %s", ErrNotFound, name)
	}
	return nil
}

// scanPipeline сканирует одну строку в Pipeline.
func scanPipeline(row pgx.Row) (*domain.Pipeline, error) {
	var p domain.Pipeline
	var packagesJSON []byte
	var description, envName *string

	err := row.Scan(
		&p.Name,
		&description,
		&envName,
		&p.Status,
		&packagesJSON,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pipeline: %w", err)
	}

	if packagesJSON != nil {
		if err := json.Unmarshal(packagesJSON, &p.Packages); err != nil {
			return nil, fmt.Errorf("unmarshal packages: %w", err)
		}
	}
	if description != nil {
		p.Description = *description
	}
	if envName != nil {
		p.EnvironmentName = *envName
	}

	return &p, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
