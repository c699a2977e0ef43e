package compose

import "errors"

// Ошибки композиции.
var (
	// ErrDuplicateName — pipeline с таким именем уже существует.
	ErrDuplicateName = errors.New("pipeline name already exists")

	// ErrNotFound — pipeline или пакет не найден.
	ErrNotFound = errors.New("not found")

	// ErrDuplicatePackage — пакет уже присутствует в pipeline.
	ErrDuplicatePackage = errors.New("package already in pipeline")

	// ErrOrderConstraint — новый порядок нарушает ограничения
	// (не перестановка текущих имён или ломает цепочку interceptor'ов).
	ErrOrderConstraint = errors.New("order constraint violated")

	// ErrParse — дескриптор синтаксически некорректен.
	ErrParse = errors.New("descriptor parse failed")

	// ErrValidation — дескриптор ссылается на неизвестные пакеты
	// или содержит невалидную конфигурацию.
	ErrValidation = errors.New("descriptor validation failed")

	// ErrPosition — позиция вставки вне диапазона.
	ErrPosition = errors.New("position out of range")
)
