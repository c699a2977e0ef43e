// Package compose — композиция pipelines: CRUD и структурные операции
// над записями Pipeline Store.
//
// Структурная логика (добавление/удаление/пересортировка пакетов,
// дескрипторы) реализована чистыми функциями над domain.Pipeline;
// Service оборачивает их персистентностью — каждая мутирующая операция
// немедленно сохраняется, буферизации нет.
package compose
