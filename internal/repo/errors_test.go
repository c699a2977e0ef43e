package repo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: uniqueViolation, ConstraintName: "executions_pkey"}
	if got := mapUniqueViolation(pgErr); !errors.Is(got, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", got)
	}

	// Обёрнутая ошибка тоже распознаётся
	wrapped := fmt.Errorf("insert: %w", pgErr)
	if got := mapUniqueViolation(wrapped); !errors.Is(got, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for wrapped error, got %v", got)
	}

	// Прочие коды возвращаются без изменений
	other := &pgconn.PgError{Code: "40001"}
	if got := mapUniqueViolation(other); got != error(other) {
		t.Errorf("expected error passthrough, got %v", got)
	}

	plain := errors.New("network down")
	if got := mapUniqueViolation(plain); got != plain {
		t.Errorf("expected error passthrough, got %v", got)
	}
}
