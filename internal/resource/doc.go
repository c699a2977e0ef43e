// Package resource строит и публикует snapshot'ы топологии кластера.
//
// Источники данных:
//   - hostfile (MPI-стиль): список узлов, опционально slots=N
//   - cluster spec (YAML): полные ёмкости узлов — ядра, память, storage tiers
//
// Manager хранит текущий ResourceGraph за RWMutex и перестраивает его
// по расписанию (cron-выражение или @every интервал). Опубликованный
// snapshot неизменяем: перестроение создаёт новый с большей версией.
package resource
