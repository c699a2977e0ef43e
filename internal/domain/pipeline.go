package domain

import "time"

// PackageType — тип пакета в pipeline.
type PackageType string

const (
	// PackageTypeService — долгоживущий сервис (хранилище, брокер и т.п.).
	// Запускается до приложений и останавливается после них.
	PackageTypeService PackageType = "service"

	// PackageTypeApplication — прикладная нагрузка (бенчмарк, симуляция).
	PackageTypeApplication PackageType = "application"

	// PackageTypeInterceptor — перехватчик, оборачивающий выполнение других
	// пакетов через LD_PRELOAD. Относительный порядок interceptor'ов
	// кодирует цепочку preload и не переставляется независимо.
	PackageTypeInterceptor PackageType = "interceptor"
)

// Valid возвращает true для известного типа пакета.
func (t PackageType) Valid() bool {
	switch t {
	case PackageTypeService, PackageTypeApplication, PackageTypeInterceptor:
		return true
	default:
		return false
	}
}

// Pipeline — именованная упорядоченная композиция пакетов.
//
// Pipeline — это "рецепт" развёртывания: какие пакеты, в каком порядке
// и с какой конфигурацией запускать. Порядок пакетов задаёт порядок
// выполнения и всегда является строгой последовательностью (не DAG).
type Pipeline struct {
	// Name — уникальное имя pipeline.
	Name string `json:"name"`

	// Description — описание назначения pipeline.
	Description string `json:"description,omitempty"`

	// Packages — пакеты в порядке выполнения.
	Packages []PackageEntry `json:"packages"`

	// EnvironmentName — имя привязанного окружения (опционально).
	// После копирования окружения pipeline владеет независимым snapshot'ом.
	EnvironmentName string `json:"environment_name,omitempty"`

	// Status — текущий статус pipeline.
	Status PipelineStatus `json:"status"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последней модификации.
	UpdatedAt time.Time `json:"updated_at"`
}

// PackageEntry — вхождение пакета в pipeline.
//
// Идентичность: имя пакета + позиция. Конфигурация проверяется по
// декларированной схеме параметров пакета при добавлении.
type PackageEntry struct {
	// Name — имя пакета из каталога.
	Name string `json:"name"`

	// Type — тип пакета.
	Type PackageType `json:"type"`

	// Order — индекс в порядке выполнения (0..n-1, без пропусков).
	Order int `json:"order"`

	// Config — конфигурация пакета (ключ → значение).
	Config map[string]any `json:"config,omitempty"`
}

// PackageNames возвращает имена пакетов в порядке выполнения.
func (p *Pipeline) PackageNames() []string {
	names := make([]string, len(p.Packages))
	for i, e := range p.Packages {
		names[i] = e.Name
	}
	return names
}

// FindPackage возвращает вхождение пакета по имени.
// Возвращает nil, если пакет не найден.
func (p *Pipeline) FindPackage(name string) *PackageEntry {
	for i := range p.Packages {
		if p.Packages[i].Name == name {
			return &p.Packages[i]
		}
	}
	return nil
}

// Resequence переиндексирует Order после вставки/удаления,
// закрывая пропуски.
func (p *Pipeline) Resequence() {
	for i := range p.Packages {
		p.Packages[i].Order = i
	}
}

// Interceptors возвращает interceptor'ы в порядке их preload-цепочки.
func (p *Pipeline) Interceptors() []PackageEntry {
	var out []PackageEntry
	for _, e := range p.Packages {
		if e.Type == PackageTypeInterceptor {
			out = append(out, e)
		}
	}
	return out
}
