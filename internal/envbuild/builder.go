package envbuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/repo"
)

var (
	// ErrUnknownLevel — уровень оптимизации не входит в известный набор.
	ErrUnknownLevel = errors.New("unknown optimization level")

	// ErrNotFound — окружение не найдено.
	ErrNotFound = errors.New("environment not found")
)

// optimizationFlags — флаги компилятора по уровню.
var optimizationFlags = map[domain.OptimizationLevel][]string{
	domain.OptLevelFast:       {"-O2", "-march=native"},
	domain.OptLevelBalanced:   {"-O2", "-march=native", "-funroll-loops"},
	domain.OptLevelAggressive: {"-O3", "-march=native", "-funroll-loops", "-flto"},
}

// moduleHints — environment modules, требуемые пакетами.
var moduleHints = map[string][]string{
	"orangefs":   {"orangefs"},
	"hermes":     {"hermes", "libfabric"},
	"hermes_api": {"hermes"},
	"ior":        {"mpi", "ior"},
	"gray_scott": {"mpi"},
	"darshan":    {"darshan"},
	"chronolog":  {"chronolog"},
}

// Derive собирает окружение из требований пакетов pipeline.
//
// Переменные и модули выводятся детерминированно: один и тот же pipeline
// и snapshot дают байт-в-байт одинаковое окружение. Interceptor'ы
// попадают в LD_PRELOAD в порядке их следования в pipeline — порядок
// цепочки значим и сохраняется.
func Derive(name string, p *domain.Pipeline, graph *domain.ResourceGraph, level domain.OptimizationLevel) (*domain.Environment, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLevel, level)
	}

	env := &domain.Environment{
		Name:      name,
		Level:     level,
		Variables: make(map[string]string),
		BuiltAt:   time.Now(),
	}
	env.OptimizationFlags = append(env.OptimizationFlags, optimizationFlags[level]...)

	// Модули — объединение требований пакетов, отсортированное для
	// воспроизводимости
	moduleSet := make(map[string]bool)
	for _, entry := range p.Packages {
		for _, m := range moduleHints[entry.Name] {
			moduleSet[m] = true
		}
	}
	for m := range moduleSet {
		env.Modules = append(env.Modules, m)
	}
	sort.Strings(env.Modules)

	// Цепочка LD_PRELOAD из interceptor'ов в порядке pipeline
	if preload := preloadChain(p); preload != "" {
		env.Variables["LD_PRELOAD"] = preload
	}

	env.Variables["CFLAGS"] = strings.Join(env.OptimizationFlags, " ")
	env.Variables["CONDUCTOR_PIPELINE"] = p.Name

	// Привязка к кластеру: переменные зависят от топологии snapshot'а
	if graph != nil && len(graph.Nodes) > 0 {
		env.MachineSpecific = true
		env.Variables["CONDUCTOR_NODE_COUNT"] = fmt.Sprintf("%d", len(graph.Nodes))
		env.Variables["CONDUCTOR_GRAPH_VERSION"] = fmt.Sprintf("%d", graph.Version)
	}

	return env, nil
}

// preloadChain собирает значение LD_PRELOAD из interceptor'ов pipeline.
func preloadChain(p *domain.Pipeline) string {
	var libs []string
	for _, entry := range p.Interceptors() {
		libs = append(libs, fmt.Sprintf("lib%s.so", entry.Name))
	}
	return strings.Join(libs, ":")
}

// Builder собирает и персистит окружения.
type Builder struct {
	envs   *repo.EnvironmentRepo
	logger *slog.Logger
}

// NewBuilder создаёт новый Builder.
func NewBuilder(envs *repo.EnvironmentRepo, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{envs: envs, logger: logger}
}

// Build собирает окружение для pipeline и сохраняет его.
func (b *Builder) Build(ctx context.Context, name string, p *domain.Pipeline, graph *domain.ResourceGraph, level domain.OptimizationLevel) (*domain.Environment, error) {
	env, err := Derive(name, p, graph, level)
	if err != nil {
		return nil, err
	}

	if err := b.envs.Save(ctx, env); err != nil {
		return nil, fmt.Errorf("persist environment %s: %w", name, err)
	}

	b.logger.Info("environment built",
		"environment", name,
		"pipeline", p.Name,
		"level", level,
		"modules", len(env.Modules),
		"machine_specific", env.MachineSpecific,
	)
	return env, nil
}

// Get возвращает окружение по имени.
func (b *Builder) Get(ctx context.Context, name string) (*domain.Environment, error) {
	env, err := b.envs.GetByName(ctx, name)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return env, err
}

// Copy создаёт независимую копию окружения под новым именем.
// Дальнейшие изменения копии не затрагивают оригинал.
func (b *Builder) Copy(ctx context.Context, src, dst string) (*domain.Environment, error) {
	env, err := b.Get(ctx, src)
	if err != nil {
		return nil, err
	}

	clone := env.Copy(dst)
	if err := b.envs.Save(ctx, clone); err != nil {
		return nil, fmt.Errorf("persist environment %s: %w", dst, err)
	}

	b.logger.Info("environment copied", "from", src, "to", dst)
	return clone, nil
}

// Configure задаёт или переопределяет переменные окружения.
func (b *Builder) Configure(ctx context.Context, name string, vars map[string]string) (*domain.Environment, error) {
	env, err := b.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if env.Variables == nil {
		env.Variables = make(map[string]string, len(vars))
	}
	for k, v := range vars {
		env.Variables[k] = v
	}

	if err := b.envs.Save(ctx, env); err != nil {
		return nil, fmt.Errorf("persist environment %s: %w", name, err)
	}
	return env, nil
}

// List возвращает имена сохранённых окружений.
func (b *Builder) List(ctx context.Context) ([]string, error) {
	return b.envs.List(ctx)
}

// Delete удаляет окружение.
func (b *Builder) Delete(ctx context.Context, name string) error {
	err := b.envs.Delete(ctx, name)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}
