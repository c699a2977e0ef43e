package domain

import (
	"maps"
	"slices"
	"time"
)

// OptimizationLevel — уровень оптимизации окружения.
type OptimizationLevel string

const (
	// OptLevelFast — минимальное время сборки: -O2 -march=native.
	OptLevelFast OptimizationLevel = "fast"

	// OptLevelBalanced — компромисс по умолчанию: + -funroll-loops.
	OptLevelBalanced OptimizationLevel = "balanced"

	// OptLevelAggressive — максимум производительности: -O3 ... -flto.
	OptLevelAggressive OptimizationLevel = "aggressive"
)

// Valid возвращает true для известного уровня оптимизации.
func (l OptimizationLevel) Valid() bool {
	switch l {
	case OptLevelFast, OptLevelBalanced, OptLevelAggressive:
		return true
	default:
		return false
	}
}

// Environment — воспроизводимое окружение выполнения pipeline.
//
// Окружение можно копировать между pipelines; после копирования каждый
// pipeline владеет независимым snapshot'ом — разделяемого изменяемого
// состояния нет.
type Environment struct {
	// Name — уникальное имя окружения.
	Name string `json:"name"`

	// Variables — переменные окружения (PATH, LD_LIBRARY_PATH и т.п.).
	Variables map[string]string `json:"variables,omitempty"`

	// Modules — environment modules, загружаемые перед запуском.
	Modules []string `json:"modules,omitempty"`

	// OptimizationFlags — флаги компилятора, производные от Level.
	OptimizationFlags []string `json:"optimization_flags,omitempty"`

	// Level — уровень оптимизации, из которого выведены флаги.
	Level OptimizationLevel `json:"level"`

	// MachineSpecific — окружение собрано под конкретный кластер
	// (флаги зависят от топологии ResourceGraph).
	MachineSpecific bool `json:"machine_specific"`

	// BuiltAt — время сборки окружения.
	BuiltAt time.Time `json:"built_at"`
}

// Copy возвращает глубокую копию окружения под новым именем.
func (e *Environment) Copy(name string) *Environment {
	return &Environment{
		Name:              name,
		Variables:         maps.Clone(e.Variables),
		Modules:           slices.Clone(e.Modules),
		OptimizationFlags: slices.Clone(e.OptimizationFlags),
		Level:             e.Level,
		MachineSpecific:   e.MachineSpecific,
		BuiltAt:           e.BuiltAt,
	}
}
