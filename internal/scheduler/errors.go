package scheduler

import (
	"errors"
	"fmt"

	"github.com/shaiso/Conductor/internal/domain"
)

var (
	// ErrNoNodes — snapshot не содержит ни одного узла.
	ErrNoNodes = errors.New("resource snapshot has no nodes")

	// ErrUnknownStrategy — стратегия не входит в известный набор.
	ErrUnknownStrategy = errors.New("unknown placement strategy")

	// ErrEmptyPipeline — pipeline без пакетов планировать нечего.
	ErrEmptyPipeline = errors.New("pipeline has no packages")

	// ErrPinnedNodeMissing — hint ссылается на узел, которого нет в snapshot'е.
	ErrPinnedNodeMissing = errors.New("pinned node not present in snapshot")
)

// InsufficientResourcesError — для одного или нескольких пакетов не
// нашлось узла с достаточной остаточной ёмкостью.
//
// Ошибка всегда называет пакет и нехватку: оператор должен видеть, что
// именно не поместилось, без чтения логов. Не ретраится автоматически.
type InsufficientResourcesError struct {
	// Package — пакет, который не удалось разместить.
	Package string

	// Demand — его потребность в ресурсах.
	Demand domain.ResourceDemand

	// Shortfall — описание нехватки на лучшем из кандидатов.
	Shortfall string
}

func (e *InsufficientResourcesError) Error() string {
	return fmt.Sprintf("insufficient resources for package %s: %s", e.Package, e.Shortfall)
}
