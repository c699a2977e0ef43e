package scheduler

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/registry"
)

// Planner строит AllocationPlan для pipeline по snapshot'у ResourceGraph.
type Planner struct {
	catalog *registry.Catalog
	logger  *slog.Logger
}

// NewPlanner создаёт новый Planner.
func NewPlanner(catalog *registry.Catalog, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{catalog: catalog, logger: logger}
}

// Request — входные данные планирования.
type Request struct {
	Pipeline *domain.Pipeline
	Graph    *domain.ResourceGraph
	Strategy domain.Strategy
	Method   domain.MethodConfig

	// Pinned — жёсткие ограничения: пакет → имя узла.
	// Пакет с hint'ом размещается только на названном узле.
	Pinned map[string]string
}

// placement — пакет с вычисленной потребностью и позицией в pipeline.
type placement struct {
	entry  domain.PackageEntry
	demand domain.ResourceDemand
	index  int
}

// nodeCap — остаточная ёмкость узла в ходе планирования.
// Локальная копия: snapshot не мутируется.
type nodeCap struct {
	node *domain.NodeInfo

	freeCores   int
	freeMemory  int64
	freeNetwork int64
	freeStorage map[domain.StorageClass]int64

	reserved domain.ResourceDemand
	packages []placement
}

// Plan строит план размещения.
//
// Для каждого пакета из числа узлов с достаточной остаточной ёмкостью
// выбирается наименее загруженный; при равенстве — узел с наименьшим ID.
// Если хоть один пакет разместить нельзя, возвращается
// InsufficientResourcesError с именем пакета и описанием нехватки.
func (p *Planner) Plan(req Request) (*domain.AllocationPlan, error) {
	start := time.Now()
	defer func() {
		placementDuration.Observe(time.Since(start).Seconds())
	}()

	plan, err := p.plan(req)
	if err != nil {
		placementFailed.WithLabelValues(string(req.Strategy)).Inc()
		return nil, err
	}
	return plan, nil
}

func (p *Planner) plan(req Request) (*domain.AllocationPlan, error) {
	if !req.Strategy.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, req.Strategy)
	}
	if req.Graph == nil || len(req.Graph.Nodes) == 0 {
		return nil, ErrNoNodes
	}
	if req.Pipeline == nil || len(req.Pipeline.Packages) == 0 {
		return nil, ErrEmptyPipeline
	}

	placements, err := p.demands(req.Pipeline)
	if err != nil {
		return nil, err
	}
	orderPlacements(placements, req.Strategy)

	caps, err := buildCaps(req)
	if err != nil {
		return nil, err
	}

	for _, pl := range placements {
		target, err := pickNode(caps, pl, req)
		if err != nil {
			return nil, err
		}
		target.take(pl)
	}

	plan := &domain.AllocationPlan{
		PipelineName: req.Pipeline.Name,
		GraphVersion: req.Graph.Version,
		Strategy:     req.Strategy,
		Method:       req.Method,
		CreatedAt:    time.Now(),
	}
	for _, c := range caps {
		if len(c.packages) == 0 {
			continue
		}
		// Пакеты узла — в порядке выполнения pipeline
		sort.Slice(c.packages, func(i, j int) bool {
			return c.packages[i].index < c.packages[j].index
		})
		names := make([]string, len(c.packages))
		for i, pl := range c.packages {
			names[i] = pl.entry.Name
		}
		plan.Assignments = append(plan.Assignments, domain.Assignment{
			NodeID:   c.node.ID,
			NodeName: c.node.Name,
			Address:  c.node.Address,
			Packages: names,
			Reserved: c.reserved,
		})
	}

	p.logger.Info("allocation plan built",
		"pipeline", req.Pipeline.Name,
		"strategy", req.Strategy,
		"graph_version", req.Graph.Version,
		"nodes", len(plan.Assignments),
		"packages", len(placements),
	)
	return plan, nil
}

// demands вычисляет потребность каждого пакета через каталог.
func (p *Planner) demands(pipeline *domain.Pipeline) ([]placement, error) {
	placements := make([]placement, 0, len(pipeline.Packages))
	for i, entry := range pipeline.Packages {
		demand, err := p.catalog.Demand(entry.Name, entry.Config)
		if err != nil {
			return nil, fmt.Errorf("demand for package %s: %w", entry.Name, err)
		}
		placements = append(placements, placement{entry: entry, demand: demand, index: i})
	}
	return placements, nil
}

// orderPlacements сортирует пакеты в порядке размещения для стратегии.
// Сортировка стабильна: равные пакеты сохраняют порядок pipeline.
func orderPlacements(placements []placement, strategy domain.Strategy) {
	switch strategy {
	case domain.StrategyComputeIntensive:
		sort.SliceStable(placements, func(i, j int) bool {
			return placements[i].demand.Cores > placements[j].demand.Cores
		})
	case domain.StrategyMemoryIntensive:
		sort.SliceStable(placements, func(i, j int) bool {
			return placements[i].demand.MemoryMB > placements[j].demand.MemoryMB
		})
	case domain.StrategyIOIntensive:
		// Storage-сервисы первыми: они должны занять узлы
		// с лучшим хранением до остальных пакетов
		sort.SliceStable(placements, func(i, j int) bool {
			return ioRank(placements[i]) < ioRank(placements[j])
		})
	}
}

// ioRank — 0 для storage-сервисов, 1 для остальных.
func ioRank(pl placement) int {
	if pl.entry.Type == domain.PackageTypeService && pl.demand.StorageGB > 0 {
		return 0
	}
	return 1
}

// buildCaps строит остаточные ёмкости узлов, упорядоченные по ID.
// NodeCount > 0 ограничивает план первыми N узлами; local — одним.
func buildCaps(req Request) ([]*nodeCap, error) {
	nodes := make([]domain.NodeInfo, len(req.Graph.Nodes))
	copy(nodes, req.Graph.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	limit := req.Method.NodeCount
	if req.Method.Type == domain.MethodLocal {
		limit = 1
	}
	if limit > 0 && limit < len(nodes) {
		nodes = nodes[:limit]
	}

	caps := make([]*nodeCap, len(nodes))
	for i := range nodes {
		n := nodes[i]
		free := make(map[domain.StorageClass]int64, len(n.Storage))
		for _, t := range n.Storage {
			free[t.Class] += t.CapacityGB
		}
		caps[i] = &nodeCap{
			node:        &req.Graph.Nodes[indexOfNode(req.Graph, n.ID)],
			freeCores:   n.Cores,
			freeMemory:  n.MemoryMB,
			freeNetwork: n.NetworkMBps,
			freeStorage: free,
		}
	}
	return caps, nil
}

func indexOfNode(g *domain.ResourceGraph, id int) int {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return i
		}
	}
	return 0
}

// pickNode выбирает узел для пакета.
func pickNode(caps []*nodeCap, pl placement, req Request) (*nodeCap, error) {
	if pinned, ok := req.Pinned[pl.entry.Name]; ok {
		for _, c := range caps {
			if c.node.Name != pinned {
				continue
			}
			if reason := c.fits(pl.demand); reason != "" {
				return nil, &InsufficientResourcesError{
					Package:   pl.entry.Name,
					Demand:    pl.demand,
					Shortfall: fmt.Sprintf("pinned node %s: %s", pinned, reason),
				}
			}
			return c, nil
		}
		return nil, fmt.Errorf("%w: package %s pinned to %s", ErrPinnedNodeMissing, pl.entry.Name, pinned)
	}

	var best *nodeCap
	var bestReason string
	for _, c := range caps {
		reason := c.fits(pl.demand)
		if reason != "" {
			if bestReason == "" {
				bestReason = fmt.Sprintf("node %s: %s", c.node.Name, reason)
			}
			continue
		}
		// Узлы идут в порядке возрастания ID: строгое "лучше"
		// даёт наименьший ID при равных оценках
		if best == nil || better(c, best, pl, req.Strategy) {
			best = c
		}
	}

	if best == nil {
		if bestReason == "" {
			bestReason = "no nodes in plan scope"
		}
		return nil, &InsufficientResourcesError{
			Package:   pl.entry.Name,
			Demand:    pl.demand,
			Shortfall: bestReason,
		}
	}
	return best, nil
}

// better возвращает true, если кандидат c строго лучше текущего best.
func better(c, best *nodeCap, pl placement, strategy domain.Strategy) bool {
	switch strategy {
	case domain.StrategyComputeIntensive:
		return c.freeCores > best.freeCores
	case domain.StrategyMemoryIntensive:
		return c.freeMemory > best.freeMemory
	case domain.StrategyIOIntensive:
		if ioRank(pl) == 0 {
			return c.node.StorageBandwidth() > best.node.StorageBandwidth()
		}
		return c.load() < best.load()
	default:
		return c.load() < best.load()
	}
}

// load — доля занятой ёмкости узла (максимум по ядрам и памяти).
func (c *nodeCap) load() float64 {
	var coreLoad, memLoad float64
	if c.node.Cores > 0 {
		coreLoad = float64(c.node.Cores-c.freeCores) / float64(c.node.Cores)
	}
	if c.node.MemoryMB > 0 {
		memLoad = float64(c.node.MemoryMB-c.freeMemory) / float64(c.node.MemoryMB)
	}
	return max(coreLoad, memLoad)
}

// fits проверяет, помещается ли потребность в остаточную ёмкость.
// Возвращает пустую строку, если помещается, иначе описание нехватки.
func (c *nodeCap) fits(d domain.ResourceDemand) string {
	if d.Cores > c.freeCores {
		return fmt.Sprintf("needs %d cores, %d free", d.Cores, c.freeCores)
	}
	if d.MemoryMB > c.freeMemory {
		return fmt.Sprintf("needs %d MB memory, %d free", d.MemoryMB, c.freeMemory)
	}
	if d.NetworkMBps > c.freeNetwork {
		return fmt.Sprintf("needs %d MBps network, %d free", d.NetworkMBps, c.freeNetwork)
	}
	if d.StorageGB > 0 {
		free := c.storageFree(d.StorageClass)
		if d.StorageGB > free {
			class := d.StorageClass
			if class == "" {
				class = "any"
			}
			return fmt.Sprintf("needs %d GB %s storage, %d free", d.StorageGB, class, free)
		}
	}
	return ""
}

// classOrder — локальные классы от медленных к быстрым.
// Запрошенный класс — минимальный: более быстрый класс тоже подходит.
var classOrder = []domain.StorageClass{
	domain.StorageClassHDD,
	domain.StorageClassSSD,
	domain.StorageClassNVMe,
}

// eligibleClasses возвращает классы, удовлетворяющие запрошенному минимуму.
func eligibleClasses(class domain.StorageClass) []domain.StorageClass {
	if class == "" {
		return append(classOrder, domain.StorageClassPFS)
	}
	if class == domain.StorageClassPFS {
		return []domain.StorageClass{domain.StorageClassPFS}
	}
	for i, c := range classOrder {
		if c == class {
			return classOrder[i:]
		}
	}
	return []domain.StorageClass{class}
}

func (c *nodeCap) storageFree(class domain.StorageClass) int64 {
	var total int64
	for _, cl := range eligibleClasses(class) {
		total += c.freeStorage[cl]
	}
	return total
}

// take резервирует ёмкость узла под пакет.
func (c *nodeCap) take(pl placement) {
	d := pl.demand
	c.freeCores -= d.Cores
	c.freeMemory -= d.MemoryMB
	c.freeNetwork -= d.NetworkMBps
	if d.StorageGB > 0 {
		c.drainStorage(d.StorageClass, d.StorageGB)
	}
	c.reserved = c.reserved.Add(d)
	c.packages = append(c.packages, pl)
}

// drainStorage списывает ёмкость с подходящих классов,
// начиная с самого медленного: быстрые устройства остаются
// для пакетов с более строгими требованиями.
func (c *nodeCap) drainStorage(class domain.StorageClass, gb int64) {
	for _, cl := range eligibleClasses(class) {
		if gb <= 0 {
			return
		}
		free := c.freeStorage[cl]
		if free <= 0 {
			continue
		}
		used := min(free, gb)
		c.freeStorage[cl] -= used
		gb -= used
	}
}

// PinnedHints собирает жёсткие привязки пакетов к узлам из конфигурации
// ("node": имя узла). Возвращает nil, если привязок нет.
func PinnedHints(pipeline *domain.Pipeline) map[string]string {
	var pinned map[string]string
	for _, e := range pipeline.Packages {
		node, ok := e.Config[registry.HintNode].(string)
		if !ok || node == "" {
			continue
		}
		if pinned == nil {
			pinned = make(map[string]string)
		}
		pinned[e.Name] = node
	}
	return pinned
}
