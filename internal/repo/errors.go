package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — операция невозможна в текущем состоянии.
	ErrInvalidState = errors.New("invalid state")

	// ErrActiveExecution — у pipeline уже есть нетерминальный execution.
	// На pipeline допускается не более одного активного execution.
	ErrActiveExecution = errors.New("pipeline already has an active execution")
)

// uniqueViolation — SQLSTATE нарушения уникальности в PostgreSQL.
const uniqueViolation = "23505"

// mapUniqueViolation переводит нарушение уникальности в доменную
// ошибку. Остальные ошибки возвращаются как есть.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}
	return err
}
