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

// EnvironmentRepo — репозиторий для работы с окружениями.
type EnvironmentRepo struct {
	pool *pgxpool.Pool
}

// NewEnvironmentRepo создаёт новый EnvironmentRepo.
func NewEnvironmentRepo(pool *pgxpool.Pool) *EnvironmentRepo {
	return &EnvironmentRepo{pool: pool}
}

// Save создаёт или перезаписывает окружение.
// Копия окружения — независимая строка; разделяемого состояния нет.
func (r *EnvironmentRepo) Save(ctx context.Context, env *domain.Environment) error {
	variablesJSON, err := json.Marshal(env.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}
	modulesJSON, err := json.Marshal(env.Modules)
	if err != nil {
		return fmt.Errorf("marshal modules: %w", err)
	}
	flagsJSON, err := json.Marshal(env.OptimizationFlags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}

	query := `
		INSERT INTO environments (name, variables, modules, optimization_flags, level, machine_specific, built_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO UPDATE
		SET variables = $2, modules = $3, optimization_flags = $4, level = $5, machine_specific = $6, built_at = $7
	`
	_, err = r.pool.Exec(ctx, query,
		env.Name,
		variablesJSON,
		modulesJSON,
		flagsJSON,
		env.Level,
		env.MachineSpecific,
		env.BuiltAt,
	)
	if err != nil {
		return fmt.Errorf("save environment: %w", err)
	}
	return nil
}

// GetByName возвращает окружение по имени.
func (r *EnvironmentRepo) GetByName(ctx context.Context, name string) (*domain.Environment, error) {
	query := `
		SELECT name, variables, modules, optimization_flags, level, machine_specific, built_at
		FROM environments
		WHERE name = $1
	`

	var env domain.Environment
	var variablesJSON, modulesJSON, flagsJSON []byte

	err := r.pool.QueryRow(ctx, query, name).Scan(
		&env.Name,
		&variablesJSON,
		&modulesJSON,
		&flagsJSON,
		&env.Level,
		&env.MachineSpecific,
		&env.BuiltAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan environment: %w", err)
	}

	if err := json.Unmarshal(variablesJSON, &env.Variables); err != nil {
		return nil, fmt.Errorf("unmarshal variables: %w", err)
	}
	if err := json.Unmarshal(modulesJSON, &env.Modules); err != nil {
		return nil, fmt.Errorf("unmarshal modules: %w", err)
	}
	if err := json.Unmarshal(flagsJSON, &env.OptimizationFlags); err != nil {
		return nil, fmt.Errorf("unmarshal flags: %w", err)
	}

	return &env, nil
}

// List возвращает имена всех окружений.
func (r *EnvironmentRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM environments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan environment name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete удаляет окружение.
func (r *EnvironmentRepo) Delete(ctx context.Context, name string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM environments WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete environment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: environment %s", ErrNotFound, name)
	}
	return nil
}
