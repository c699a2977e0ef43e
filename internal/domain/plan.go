package domain

import "time"

// Strategy — стратегия распределения ресурсов.
type Strategy string

const (
	// StrategyBalanced — равномерное распределение нагрузки по узлам.
	StrategyBalanced Strategy = "balanced"

	// StrategyComputeIntensive — приоритет ядрам CPU, плотная упаковка
	// вычислительных пакетов.
	StrategyComputeIntensive Strategy = "compute_intensive"

	// StrategyIOIntensive — storage-сервисы размещаются первыми и
	// привязываются к узлам с максимальной пропускной способностью хранения.
	StrategyIOIntensive Strategy = "io_intensive"

	// StrategyMemoryIntensive — приоритет объёму памяти узла.
	StrategyMemoryIntensive Strategy = "memory_intensive"
)

// Valid возвращает true для известной стратегии.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyBalanced, StrategyComputeIntensive, StrategyIOIntensive, StrategyMemoryIntensive:
		return true
	default:
		return false
	}
}

// MethodType — способ запуска execution на узлах.
type MethodType string

const (
	// MethodLocal — единственный локальный процесс.
	MethodLocal MethodType = "local"

	// MethodSSH — последовательный SSH на каждый узел.
	MethodSSH MethodType = "ssh"

	// MethodPSSH — параллельный SSH fan-out с ограничением одновременности.
	MethodPSSH MethodType = "parallel-ssh"

	// MethodMPI — коллективный запуск через mpiexec.
	MethodMPI MethodType = "mpi"
)

// Valid возвращает true для известного метода запуска.
func (m MethodType) Valid() bool {
	switch m {
	case MethodLocal, MethodSSH, MethodPSSH, MethodMPI:
		return true
	default:
		return false
	}
}

// MethodConfig — настройки метода запуска, задаваемые при старте execution.
type MethodConfig struct {
	// Type — метод запуска.
	Type MethodType `json:"type" yaml:"type"`

	// HostfilePath — путь к hostfile (список узлов по одному на строку).
	HostfilePath string `json:"hostfile_path,omitempty" yaml:"hostfile,omitempty"`

	// NodeCount — ограничение числа используемых узлов (0 — все).
	NodeCount int `json:"node_count,omitempty" yaml:"node_count,omitempty"`

	// ProcsPerNode — процессов на узел (для mpi).
	ProcsPerNode int `json:"procs_per_node,omitempty" yaml:"procs_per_node,omitempty"`

	// SSHUser — пользователь для ssh/parallel-ssh.
	SSHUser string `json:"ssh_user,omitempty" yaml:"ssh_user,omitempty"`

	// SSHPort — порт для ssh/parallel-ssh (0 — 22).
	SSHPort int `json:"ssh_port,omitempty" yaml:"ssh_port,omitempty"`

	// MPIFlags — дополнительные флаги mpiexec.
	MPIFlags []string `json:"mpi_flags,omitempty" yaml:"mpi_flags,omitempty"`
}

// Assignment — назначение подмножества пакетов на узел.
type Assignment struct {
	// NodeID — ID узла из ResourceGraph snapshot'а.
	NodeID int `json:"node_id"`

	// NodeName — имя узла.
	NodeName string `json:"node_name"`

	// Address — адрес узла для запуска.
	Address string `json:"address"`

	// Packages — имена пакетов в порядке выполнения на этом узле.
	Packages []string `json:"packages"`

	// Reserved — суммарная резервация ресурсов узла под назначение.
	// Не может превышать ёмкость узла в использованном snapshot'е.
	Reserved ResourceDemand `json:"reserved"`
}

// AllocationPlan — конкретное размещение одного execution по узлам.
//
// План строится Scheduler'ом по одному snapshot'у ResourceGraph,
// потребляется Orchestrator'ом ровно один раз и отбрасывается после
// завершения попытки. Повторная попытка — всегда новый план.
type AllocationPlan struct {
	// PipelineName — pipeline, для которого построен план.
	PipelineName string `json:"pipeline_name"`

	// GraphVersion — версия snapshot'а ResourceGraph, по которому строился план.
	GraphVersion int64 `json:"graph_version"`

	// Strategy — использованная стратегия.
	Strategy Strategy `json:"strategy"`

	// Method — настройки метода запуска.
	Method MethodConfig `json:"method"`

	// Assignments — назначения по узлам.
	Assignments []Assignment `json:"assignments"`

	// CreatedAt — время построения плана.
	CreatedAt time.Time `json:"created_at"`
}

// Assignment возвращает назначение для узла. Возвращает nil, если узла нет в плане.
func (p *AllocationPlan) Assignment(nodeName string) *Assignment {
	for i := range p.Assignments {
		if p.Assignments[i].NodeName == nodeName {
			return &p.Assignments[i]
		}
	}
	return nil
}

// NodeNames возвращает имена всех узлов плана.
func (p *AllocationPlan) NodeNames() []string {
	names := make([]string, len(p.Assignments))
	for i, a := range p.Assignments {
		names[i] = a.NodeName
	}
	return names
}
