// Package registry — каталог пакетов с декларированными схемами параметров.
//
// Каталог — это граница с внешней системой обнаружения пакетов: registry
// хранит только то, что нужно оркестрации — тип пакета, схему параметров
// конфигурации, декларированные потребности в ресурсах и известные
// отношения между пакетами (дополнение/конфликт).
//
// Конфигурация пакета проверяется по схеме (имя, тип, умолчание,
// ограничения) во время addPackage/configure, а не через reflection
// во время запуска.
package registry
