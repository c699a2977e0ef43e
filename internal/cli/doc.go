// Package cli реализует инструмент командной строки Conductor.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Conductor API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления pipelines, окружениями, executions
// и checkpoints.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Conductor API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	pipelines, err := client.ListPipelines()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conductor pipeline list --json | jq .
//
// ## Focus
//
// Файл фокуса (~/.conductor/focus или $CONDUCTOR_FOCUS) хранит имя
// pipeline, подставляемое в команды при опущенном аргументе PIPELINE.
// Фокус — состояние клиента; сервер про него ничего не знает.
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - catalog:    list, show
//   - pipeline:   list, create, show, delete, add, configure, remove,
//     reorder, link-env, analyze, import, export
//   - env:        list, build, show, copy, set, delete
//   - exec:       start, list, show, stop, events, analysis, nodes, logs, follow
//   - checkpoint: list, create, latest, restore
//   - focus:      set, clear, show
//
// Каждая группа создаётся через фабричную функцию (NewPipelineCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
