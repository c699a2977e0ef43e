// Package scheduler строит AllocationPlan: отображает валидированный
// pipeline на конкретные узлы кластера по выбранной стратегии.
//
// Планирование чисто функционально относительно входов: один и тот же
// pipeline, snapshot и стратегия дают один и тот же план. Snapshot
// никогда не мутируется — резервации отслеживаются в локальной копии
// остаточных ёмкостей.
//
// Стратегии:
//   - balanced — наименее загруженный узел для каждого пакета
//   - compute_intensive — пакеты с наибольшим числом ядер первыми
//   - io_intensive — storage-сервисы первыми на узлы с максимальной
//     пропускной способностью хранения
//   - memory_intensive — пакеты с наибольшей памятью первыми
//
// При равной загрузке выбирается узел с наименьшим ID — план
// детерминирован и воспроизводим.
package scheduler
