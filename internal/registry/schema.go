package registry

import (
	"fmt"

	"github.com/shaiso/Conductor/internal/domain"
)

// ParamType — тип параметра конфигурации.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamBool   ParamType = "bool"
	// ParamEnum — строка из фиксированного набора значений.
	ParamEnum ParamType = "enum"
)

// Param — декларированный параметр конфигурации пакета.
type Param struct {
	// Name — имя параметра.
	Name string `json:"name"`

	// Type — тип значения.
	Type ParamType `json:"type"`

	// Default — значение по умолчанию (nil — умолчания нет).
	Default any `json:"default,omitempty"`

	// Required — параметр обязателен.
	Required bool `json:"required,omitempty"`

	// Enum — допустимые значения для ParamEnum.
	Enum []string `json:"enum,omitempty"`

	// Min, Max — границы для числовых параметров (nil — не ограничено).
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`

	// Description — назначение параметра.
	Description string `json:"description,omitempty"`
}

// PackageDef — запись каталога: пакет и его декларации.
type PackageDef struct {
	// Name — имя пакета.
	Name string `json:"name"`

	// Type — тип пакета.
	Type domain.PackageType `json:"type"`

	// Description — описание пакета.
	Description string `json:"description,omitempty"`

	// Params — схема параметров конфигурации.
	Params []Param `json:"params,omitempty"`

	// Demand — декларированная потребность в ресурсах по умолчанию.
	// Явные значения из конфигурации (cores, memory_mb, ...) её переопределяют.
	Demand domain.ResourceDemand `json:"demand"`

	// Provides — возможности пакета (для анализа отношений).
	Provides []string `json:"provides,omitempty"`
}

// param возвращает параметр схемы по имени.
func (d *PackageDef) param(name string) *Param {
	for i := range d.Params {
		if d.Params[i].Name == name {
			return &d.Params[i]
		}
	}
	return nil
}

// checkValue проверяет значение против параметра схемы.
func (p *Param) checkValue(pkg string, v any) error {
	switch p.Type {
	case ParamString:
		if _, ok := v.(string); !ok {
			return typeErr(pkg, p.Name, "string", v)
		}
	case ParamBool:
		if _, ok := v.(bool); !ok {
			return typeErr(pkg, p.Name, "bool", v)
		}
	case ParamInt:
		n, ok := asFloat(v)
		if !ok || n != float64(int64(n)) {
			return typeErr(pkg, p.Name, "int", v)
		}
		return p.checkRange(pkg, n)
	case ParamFloat:
		n, ok := asFloat(v)
		if !ok {
			return typeErr(pkg, p.Name, "float", v)
		}
		return p.checkRange(pkg, n)
	case ParamEnum:
		s, ok := v.(string)
		if !ok {
			return typeErr(pkg, p.Name, "enum string", v)
		}
		for _, e := range p.Enum {
			if e == s {
				return nil
			}
		}
		return &ConfigError{
			Package: pkg,
			Param:   p.Name,
			Message: fmt.Sprintf("value %q not in %v", s, p.Enum),
			Err:     ErrConstraint,
		}
	}
	return nil
}

// checkRange проверяет числовые границы.
func (p *Param) checkRange(pkg string, n float64) error {
	if p.Min != nil && n < *p.Min {
		return &ConfigError{
			Package: pkg,
			Param:   p.Name,
			Message: fmt.Sprintf("value %v below minimum %v", n, *p.Min),
			Err:     ErrConstraint,
		}
	}
	if p.Max != nil && n > *p.Max {
		return &ConfigError{
			Package: pkg,
			Param:   p.Name,
			Message: fmt.Sprintf("value %v above maximum %v", n, *p.Max),
			Err:     ErrConstraint,
		}
	}
	return nil
}

func typeErr(pkg, param, want string, got any) error {
	return &ConfigError{
		Package: pkg,
		Param:   param,
		Message: fmt.Sprintf("expected %s, got %T", want, got),
		Err:     ErrInvalidType,
	}
}

// asFloat приводит числовое значение к float64.
// Конфигурация приходит из JSON/YAML, где числа могут быть int, int64 или float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func asInt(v any) (int64, bool) {
	n, ok := asFloat(v)
	if !ok || n != float64(int64(n)) {
		return 0, false
	}
	return int64(n), true
}
