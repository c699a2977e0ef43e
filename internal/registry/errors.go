package registry

import "errors"

// Ошибки каталога пакетов.
var (
	// ErrUnknownPackage — пакет не найден в каталоге.
	ErrUnknownPackage = errors.New("unknown package")

	// ErrUnknownParam — параметр отсутствует в схеме пакета.
	ErrUnknownParam = errors.New("unknown config parameter")

	// ErrInvalidType — значение параметра не соответствует типу схемы.
	ErrInvalidType = errors.New("invalid parameter type")

	// ErrConstraint — значение параметра нарушает ограничение схемы.
	ErrConstraint = errors.New("parameter constraint violated")

	// ErrMissingRequired — обязательный параметр не задан.
	ErrMissingRequired = errors.New("missing required parameter")
)

// ConfigError — ошибка валидации конфигурации с контекстом.
type ConfigError struct {
	Package string // имя пакета
	Param   string // имя параметра
	Message string // описание
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ConfigError) Error() string {
	if e.Param != "" {
		return e.Package + "." + e.Param + ": " + e.Message
	}
	return e.Package + ": " + e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ConfigError) Unwrap() error {
	return e.Err
}
