package compose

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/registry"
)

// Descriptor — внешний текстовый формат pipeline (импорт/экспорт).
//
// Экспорт — каноническая сериализация записи Pipeline Store,
// импорт — её обратная операция (round-trip закон: export(import(d)) ≡ d
// с точностью до порядка ключей).
type Descriptor struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Environment string            `yaml:"environment,omitempty"`
	Packages    []DescriptorEntry `yaml:"packages"`
}

// DescriptorEntry — вхождение пакета в дескрипторе.
type DescriptorEntry struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config,omitempty"`
}

// Export сериализует pipeline в YAML-дескриптор.
func Export(p *domain.Pipeline) (string, error) {
	d := Descriptor{
		Name:        p.Name,
		Description: p.Description,
		Environment: p.EnvironmentName,
		Packages:    make([]DescriptorEntry, len(p.Packages)),
	}
	for i, e := range p.Packages {
		d.Packages[i] = DescriptorEntry{
			Name:   e.Name,
			Type:   string(e.Type),
			Config: e.Config,
		}
	}

	out, err := yaml.Marshal(&d)
	if err != nil {
		return "", fmt.Errorf("marshal descriptor: %w", err)
	}
	return string(out), nil
}

// Import разбирает YAML-дескриптор и валидирует его против каталога.
//
// Возвращает ErrParse для синтаксически некорректного ввода и
// ErrValidation для ссылок на неизвестные пакеты, несовпадающие типы
// или невалидную конфигурацию.
func Import(text string, catalog *registry.Catalog) (*domain.Pipeline, error) {
	var d Descriptor
	if err := yaml.Unmarshal([]byte(text), &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if d.Name == "" {
		return nil, fmt.Errorf("%w: descriptor has no pipeline name", ErrValidation)
	}

	p := &domain.Pipeline{
		Name:            d.Name,
		Description:     d.Description,
		EnvironmentName: d.Environment,
		Status:          domain.PipelineStatusCreated,
	}

	for _, entry := range d.Packages {
		def, err := catalog.Get(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}

		pkgType := domain.PackageType(entry.Type)
		if !pkgType.Valid() {
			return nil, fmt.Errorf("%w: package %s has unknown type %q",
				ErrValidation, entry.Name, entry.Type)
		}
		if pkgType != def.Type {
			return nil, fmt.Errorf("%w: package %s declared as %s but catalog says %s",
				ErrValidation, entry.Name, pkgType, def.Type)
		}

		cfg, err := catalog.Validate(entry.Name, entry.Config)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}

		if err := InsertPackage(p, domain.PackageEntry{
			Name:   entry.Name,
			Type:   pkgType,
			Config: cfg,
		}, -1); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	return p, nil
}
