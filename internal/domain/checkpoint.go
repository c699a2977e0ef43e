package domain

import (
	"time"

	"github.com/google/uuid"
)

// Checkpoint — верифицированный снимок прогресса execution.
//
// Checkpoint'ы одного execution тотально упорядочены по Seq.
// Integrity-маркер (Hash) записывается до того, как checkpoint
// объявляется "последним": падение писателя посреди записи не
// оставляет восстановимой, но повреждённой записи.
type Checkpoint struct {
	// ExecutionID — execution, чей прогресс зафиксирован.
	ExecutionID uuid.UUID `json:"execution_id"`

	// Seq — порядковый номер checkpoint'а внутри execution (1, 2, ...).
	Seq int `json:"seq"`

	// PackageIndex — индекс последнего полностью завершённого пакета.
	// -1, если ни один пакет ещё не завершён.
	PackageIndex int `json:"package_index"`

	// NodeSnapshots — пути к снимкам resumable-состояния по узлам
	// (имя узла → путь на разделяемом хранилище).
	NodeSnapshots map[string]string `json:"node_snapshots,omitempty"`

	// Hash — sha256 от канонического содержимого checkpoint'а.
	Hash string `json:"hash"`

	// Verified — integrity-маркер проверен после записи.
	// Restore никогда не использует неверифицированный checkpoint.
	Verified bool `json:"verified"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// Ref возвращает ссылку на checkpoint.
func (c *Checkpoint) Ref() CheckpointRef {
	return CheckpointRef{ExecutionID: c.ExecutionID, Seq: c.Seq}
}

// ResumeIndex возвращает индекс пакета, с которого продолжится
// восстановленный execution.
func (c *Checkpoint) ResumeIndex() int {
	return c.PackageIndex + 1
}
