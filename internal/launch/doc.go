// Package launch выполняет команды execution'а на узлах плана.
//
// Каждый метод запуска реализует единый интерфейс Method
// (launch/stop/status); метод выбирается при построении плана:
//
//   - local — один локальный процесс, узлы плана игнорируются
//   - ssh — последовательный обход узлов по SSH
//   - parallel-ssh — SSH fan-out с ограничением одновременности
//   - mpi — коллективный запуск mpiexec с hostfile из плана
//
// SSH-подключения мультиплексируются: клиент на узел создаётся один
// раз и переиспользуется между командами, переподключение — при ошибке.
package launch
