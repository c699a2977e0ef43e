package domain

import "time"

// StorageClass — класс устройства хранения.
type StorageClass string

const (
	StorageClassHDD  StorageClass = "hdd"
	StorageClassSSD  StorageClass = "ssd"
	StorageClassNVMe StorageClass = "nvme"
	// StorageClassPFS — параллельная файловая система, смонтированная на всех узлах.
	StorageClassPFS StorageClass = "pfs"
)

// StorageTier — устройство хранения на узле.
type StorageTier struct {
	// Mount — точка монтирования.
	Mount string `json:"mount" yaml:"mount"`

	// Class — класс устройства.
	Class StorageClass `json:"class" yaml:"class"`

	// CapacityGB — ёмкость в гигабайтах.
	CapacityGB int64 `json:"capacity_gb" yaml:"capacity_gb"`

	// BandwidthMBps — пропускная способность в МБ/с.
	BandwidthMBps int64 `json:"bandwidth_mbps" yaml:"bandwidth_mbps"`
}

// NodeInfo — узел кластера с его ёмкостями.
type NodeInfo struct {
	// ID — числовой идентификатор узла. Используется как детерминированный
	// tie-break при планировании: из равнозагруженных узлов выбирается
	// узел с наименьшим ID.
	ID int `json:"id" yaml:"id"`

	// Name — имя узла (hostname).
	Name string `json:"name" yaml:"name"`

	// Address — адрес для подключения (host или host:port).
	Address string `json:"address" yaml:"address"`

	// Cores — количество ядер CPU.
	Cores int `json:"cores" yaml:"cores"`

	// MemoryMB — объём памяти в мегабайтах.
	MemoryMB int64 `json:"memory_mb" yaml:"memory_mb"`

	// NetworkMBps — пропускная способность сети в МБ/с.
	NetworkMBps int64 `json:"network_mbps" yaml:"network_mbps"`

	// Storage — устройства хранения узла.
	Storage []StorageTier `json:"storage,omitempty" yaml:"storage,omitempty"`
}

// StorageBandwidth возвращает суммарную пропускную способность хранения узла.
func (n *NodeInfo) StorageBandwidth() int64 {
	var total int64
	for _, t := range n.Storage {
		total += t.BandwidthMBps
	}
	return total
}

// StorageCapacity возвращает суммарную ёмкость хранения заданного класса.
// Пустой класс — суммарная ёмкость всех устройств.
func (n *NodeInfo) StorageCapacity(class StorageClass) int64 {
	var total int64
	for _, t := range n.Storage {
		if class == "" || t.Class == class {
			total += t.CapacityGB
		}
	}
	return total
}

// ResourceGraph — неизменяемый snapshot топологии кластера.
//
// Перестроение графа создаёт новый snapshot с большей версией;
// опубликованный snapshot никогда не мутируется. Выполняющиеся
// AllocationPlan'ы продолжают ссылаться на свой исходный snapshot.
type ResourceGraph struct {
	// Version — монотонно растущая версия snapshot'а.
	Version int64 `json:"version"`

	// Nodes — узлы кластера.
	Nodes []NodeInfo `json:"nodes"`

	// BuiltAt — время построения snapshot'а.
	BuiltAt time.Time `json:"built_at"`
}

// Node возвращает узел по ID. Возвращает nil, если узел не найден.
func (g *ResourceGraph) Node(id int) *NodeInfo {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// NodeByName возвращает узел по имени. Возвращает nil, если узел не найден.
func (g *ResourceGraph) NodeByName(name string) *NodeInfo {
	for i := range g.Nodes {
		if g.Nodes[i].Name == name {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Age возвращает возраст snapshot'а.
func (g *ResourceGraph) Age() time.Duration {
	return time.Since(g.BuiltAt)
}

// IsStale проверяет, старше ли snapshot заданной границы.
func (g *ResourceGraph) IsStale(bound time.Duration) bool {
	return bound > 0 && g.Age() > bound
}

// ResourceDemand — потребность пакета в ресурсах.
//
// Выводится из декларированной схемы пакета; явные значения из
// конфигурации имеют приоритет над декларированными умолчаниями.
type ResourceDemand struct {
	// Cores — требуемое количество ядер.
	Cores int `json:"cores"`

	// MemoryMB — требуемая память в мегабайтах.
	MemoryMB int64 `json:"memory_mb"`

	// StorageGB — требуемая ёмкость хранения в гигабайтах.
	StorageGB int64 `json:"storage_gb"`

	// StorageClass — минимальный требуемый класс хранения (опционально).
	StorageClass StorageClass `json:"storage_class,omitempty"`

	// NetworkMBps — требуемая пропускная способность сети.
	NetworkMBps int64 `json:"network_mbps"`
}

// Add суммирует потребности (для агрегации по узлу).
func (d ResourceDemand) Add(other ResourceDemand) ResourceDemand {
	d.Cores += other.Cores
	d.MemoryMB += other.MemoryMB
	d.StorageGB += other.StorageGB
	d.NetworkMBps += other.NetworkMBps
	if d.StorageClass == "" {
		d.StorageClass = other.StorageClass
	}
	return d
}
