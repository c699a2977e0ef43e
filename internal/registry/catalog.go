package registry

import (
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/shaiso/Conductor/internal/domain"
)

// Резервируемые ключи конфигурации: явные переопределения потребности
// в ресурсах. Допустимы для любого пакета поверх его схемы.
const (
	overrideCores     = "cores"
	overrideMemoryMB  = "memory_mb"
	overrideStorageGB = "storage_gb"
	overrideNetwork   = "network_mbps"
)

// HintNode — зарезервированный ключ конфигурации: жёсткая привязка
// пакета к узлу по имени. Допустим для любого пакета.
const HintNode = "node"

// Catalog — каталог пакетов. Потокобезопасен.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]PackageDef
	rels []Relationship
}

// NewCatalog создаёт пустой каталог.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]PackageDef)}
}

// DefaultCatalog создаёт каталог со встроенным набором пакетов.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, def := range builtinPackages {
		c.Register(def)
	}
	c.rels = append(c.rels, builtinRelationships...)
	return c
}

// Register добавляет или перезаписывает запись каталога.
func (c *Catalog) Register(def PackageDef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[def.Name] = def
}

// Get возвращает запись каталога.
// Возвращает ErrUnknownPackage, если пакет не найден.
func (c *Catalog) Get(name string) (PackageDef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.defs[name]
	if !ok {
		return PackageDef{}, fmt.Errorf("%w: %s", ErrUnknownPackage, name)
	}
	return def, nil
}

// Has проверяет наличие пакета в каталоге.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.defs[name]
	return ok
}

// List возвращает все записи каталога, отсортированные по имени.
func (c *Catalog) List() []PackageDef {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]PackageDef, 0, len(c.defs))
	for _, def := range c.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate проверяет конфигурацию пакета по его схеме и возвращает
// нормализованную копию с применёнными умолчаниями.
func (c *Catalog) Validate(name string, config map[string]any) (map[string]any, error) {
	def, err := c.Get(name)
	if err != nil {
		return nil, err
	}

	normalized := make(map[string]any, len(def.Params))
	if config != nil {
		normalized = maps.Clone(config)
	}

	for key, value := range normalized {
		if isOverrideKey(key) {
			if _, ok := asFloat(value); !ok {
				return nil, typeErr(name, key, "number", value)
			}
			continue
		}
		if key == HintNode {
			if _, ok := value.(string); !ok {
				return nil, typeErr(name, key, "string", value)
			}
			continue
		}
		p := def.param(key)
		if p == nil {
			return nil, &ConfigError{
				Package: name,
				Param:   key,
				Message: "not declared in package schema",
				Err:     ErrUnknownParam,
			}
		}
		if err := p.checkValue(name, value); err != nil {
			return nil, err
		}
	}

	// Умолчания и обязательные параметры
	for _, p := range def.Params {
		if _, set := normalized[p.Name]; set {
			continue
		}
		if p.Default != nil {
			normalized[p.Name] = p.Default
			continue
		}
		if p.Required {
			return nil, &ConfigError{
				Package: name,
				Param:   p.Name,
				Message: "required parameter not set",
				Err:     ErrMissingRequired,
			}
		}
	}

	return normalized, nil
}

// Demand выводит потребность пакета в ресурсах: декларированные умолчания
// из каталога, переопределённые явными значениями конфигурации.
func (c *Catalog) Demand(name string, config map[string]any) (domain.ResourceDemand, error) {
	def, err := c.Get(name)
	if err != nil {
		return domain.ResourceDemand{}, err
	}

	demand := def.Demand
	if v, ok := config[overrideCores]; ok {
		if n, ok := asInt(v); ok {
			demand.Cores = int(n)
		}
	}
	if v, ok := config[overrideMemoryMB]; ok {
		if n, ok := asInt(v); ok {
			demand.MemoryMB = n
		}
	}
	if v, ok := config[overrideStorageGB]; ok {
		if n, ok := asInt(v); ok {
			demand.StorageGB = n
		}
	}
	if v, ok := config[overrideNetwork]; ok {
		if n, ok := asInt(v); ok {
			demand.NetworkMBps = n
		}
	}
	return demand, nil
}

func isOverrideKey(key string) bool {
	switch key {
	case overrideCores, overrideMemoryMB, overrideStorageGB, overrideNetwork:
		return true
	default:
		return false
	}
}
