// Package orchestrator проводит executions через state machine.
//
// Orchestrator отвечает за:
//   - Получение запросов на запуск из очереди RabbitMQ (event-driven)
//   - Периодическую проверку pending executions в БД (polling fallback)
//   - Валидацию пакетов, сборку окружения и построение плана
//   - Рассылку команд запуска по узлам выбранным методом
//   - Ожидание подтверждений узлов (кворум — все узлы плана)
//   - Остановку (graceful с grace period или force) и финализацию
//
// Все переходы одного execution выполняет одна горутина-владелец:
// конкурирующие команды (stop, acks) сериализуются через её каналы,
// гонок за статус нет. Каждый переход дописывается в журнал
// execution_events и публикуется в exchange событий.
package orchestrator
