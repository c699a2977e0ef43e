package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Conductor/internal/domain"
)

var (
	// ErrUnknownMethod — метод запуска не входит в известный набор.
	ErrUnknownMethod = errors.New("unknown launch method")

	// ErrNoTargets — план не содержит ни одного узла.
	ErrNoTargets = errors.New("no launch targets")
)

// Target — узел, на котором выполняется команда.
type Target struct {
	// Node — имя узла из плана.
	Node string

	// Address — адрес подключения (host или host:port).
	Address string
}

// Command — команда, выполняемая на узлах.
type Command struct {
	// Line — shell-строка команды.
	Line string

	// Env — переменные окружения, добавляемые к команде.
	Env map[string]string

	// Dir — рабочая директория (пустая — домашняя).
	Dir string
}

// Result — итог выполнения команды на одном узле.
type Result struct {
	// Node — имя узла.
	Node string

	// Stdout, Stderr — захваченный вывод.
	Stdout []byte
	Stderr []byte

	// Err — ошибка выполнения (nil — успех).
	Err error
}

// Failed возвращает true, если хотя бы один узел завершился с ошибкой.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// Method — единый интерфейс метода запуска.
//
// Launch блокируется до завершения команды на всех узлах и возвращает
// результат по каждому. Stop прекращает процессы, соответствующие
// pattern: при force=false — мягко (TERM), при force=true — немедленно
// (KILL). Status проверяет по pattern, что процесс ещё работает на
// каждом узле: nil в карте — процесс жив, ошибка — процесс не найден
// или узел недоступен.
type Method interface {
	Launch(ctx context.Context, targets []Target, cmd Command) []Result
	Stop(ctx context.Context, targets []Target, pattern string, force bool) error
	Status(ctx context.Context, targets []Target, pattern string) map[string]error
	Close()
}

// statusPattern оборачивает первый символ pattern в класс символов:
// удалённый pgrep идёт через shell, и без этого pgrep находит
// собственную команду-обёртку, несущую pattern в argv.
func statusPattern(pattern string) string {
	if pattern == "" {
		return pattern
	}
	return "[" + pattern[:1] + "]" + pattern[1:]
}

// New создаёт метод запуска по настройкам плана.
func New(cfg domain.MethodConfig, logger *slog.Logger) (Method, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type {
	case domain.MethodLocal:
		return NewLocal(logger), nil
	case domain.MethodSSH:
		return NewSSH(cfg, logger), nil
	case domain.MethodPSSH:
		return NewParallelSSH(cfg, logger), nil
	case domain.MethodMPI:
		return NewMPI(cfg, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, cfg.Type)
	}
}

// TargetsFromPlan извлекает узлы плана в порядке назначений.
func TargetsFromPlan(plan *domain.AllocationPlan) []Target {
	targets := make([]Target, len(plan.Assignments))
	for i, a := range plan.Assignments {
		targets[i] = Target{Node: a.NodeName, Address: a.Address}
	}
	return targets
}
