package resource

import "errors"

var (
	// ErrEmptyGraph — источник не описал ни одного узла.
	ErrEmptyGraph = errors.New("resource graph has no nodes")

	// ErrParse — hostfile или cluster spec синтаксически некорректен.
	ErrParse = errors.New("parse resource source")

	// ErrDuplicateNode — два узла с одинаковым именем в одном источнике.
	ErrDuplicateNode = errors.New("duplicate node name")

	// ErrNoSnapshot — Manager ещё не построил ни одного snapshot'а.
	ErrNoSnapshot = errors.New("no resource snapshot available")

	// ErrStaleSnapshot — snapshot старше StaleBound и пересобрать его
	// не удалось. Планировать по такому графу нельзя.
	ErrStaleSnapshot = errors.New("resource snapshot is stale")
)
