// Package envbuild собирает воспроизводимые окружения выполнения.
//
// Builder выводит переменные окружения, список environment modules и
// флаги оптимизации из требований пакетов pipeline и текущего snapshot'а
// ресурсов. Собранное окружение персистентно и может копироваться между
// pipelines: каждый pipeline владеет независимым snapshot'ом.
package envbuild
