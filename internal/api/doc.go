// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go             — Handler с DI (сервисы, репозитории, publisher, logger)
//   - routes.go              — регистрация маршрутов
//   - middleware.go          — middleware (logging, recovery)
//   - response.go            — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                 — Data Transfer Objects (request/response)
//   - catalog_handler.go     — обработчики для /catalog
//   - pipeline_handler.go    — обработчики для /pipelines
//   - environment_handler.go — обработчики для /environments
//   - execution_handler.go   — обработчики для /executions
//   - checkpoint_handler.go  — обработчики для /executions/{id}/checkpoints
//   - monitor_handler.go     — обработчики телеметрии и stream'а логов
//
// API предоставляет REST endpoints для управления pipelines, окружениями,
// executions и checkpoints.
package api
