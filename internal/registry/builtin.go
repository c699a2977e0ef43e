package registry

import "github.com/shaiso/Conductor/internal/domain"

func fptr(v float64) *float64 { return &v }

// builtinPackages — встроенный репертуар пакетов.
//
// Набор соответствует типичному I/O-стеку HPC-кластера: storage-сервисы,
// бенчмарки и симуляции, перехватчики трассировки.
var builtinPackages = []PackageDef{
	{
		Name:        "orangefs",
		Type:        domain.PackageTypeService,
		Description: "OrangeFS parallel file system servers",
		Params: []Param{
			{Name: "mount", Type: ParamString, Default: "/mnt/orangefs", Description: "client mount point"},
			{Name: "port", Type: ParamInt, Default: 3334, Min: fptr(1024), Max: fptr(65535)},
			{Name: "stripe_size", Type: ParamInt, Default: 65536, Min: fptr(4096)},
			{Name: "protocol", Type: ParamEnum, Default: "tcp", Enum: []string{"tcp", "ib"}},
		},
		Demand:   domain.ResourceDemand{Cores: 4, MemoryMB: 8192, StorageGB: 100, StorageClass: domain.StorageClassSSD, NetworkMBps: 1000},
		Provides: []string{"storage", "pfs"},
	},
	{
		Name:        "hermes",
		Type:        domain.PackageTypeService,
		Description: "Hermes multi-tiered I/O buffering service",
		Params: []Param{
			{Name: "ram_capacity_mb", Type: ParamInt, Default: 4096, Min: fptr(128)},
			{Name: "nvme_capacity_gb", Type: ParamInt, Default: 64, Min: fptr(0)},
			{Name: "rpc_threads", Type: ParamInt, Default: 4, Min: fptr(1), Max: fptr(64)},
		},
		Demand:   domain.ResourceDemand{Cores: 4, MemoryMB: 6144, StorageGB: 64, StorageClass: domain.StorageClassNVMe, NetworkMBps: 2000},
		Provides: []string{"storage", "buffering"},
	},
	{
		Name:        "ior",
		Type:        domain.PackageTypeApplication,
		Description: "IOR parallel I/O benchmark",
		Params: []Param{
			{Name: "transfer_size", Type: ParamString, Default: "1m", Description: "per-call transfer size"},
			{Name: "block_size", Type: ParamString, Default: "64m"},
			{Name: "api", Type: ParamEnum, Default: "posix", Enum: []string{"posix", "mpiio", "hdf5"}},
			{Name: "out", Type: ParamString, Required: true, Description: "output file path"},
		},
		Demand:   domain.ResourceDemand{Cores: 8, MemoryMB: 2048, NetworkMBps: 500},
		Provides: []string{"benchmark", "io"},
	},
	{
		Name:        "gray_scott",
		Type:        domain.PackageTypeApplication,
		Description: "Gray-Scott reaction-diffusion simulation",
		Params: []Param{
			{Name: "L", Type: ParamInt, Default: 128, Min: fptr(32), Description: "grid side length"},
			{Name: "steps", Type: ParamInt, Default: 1000, Min: fptr(1)},
			{Name: "plotgap", Type: ParamInt, Default: 100, Min: fptr(1)},
		},
		Demand:   domain.ResourceDemand{Cores: 16, MemoryMB: 8192},
		Provides: []string{"simulation", "compute"},
	},
	{
		Name:        "darshan",
		Type:        domain.PackageTypeInterceptor,
		Description: "Darshan I/O characterization interceptor",
		Params: []Param{
			{Name: "log_dir", Type: ParamString, Default: "/tmp/darshan"},
			{Name: "memory_mb", Type: ParamInt, Default: 2, Min: fptr(1), Max: fptr(64), Description: "per-process shared memory"},
		},
		Demand:   domain.ResourceDemand{Cores: 0, MemoryMB: 64},
		Provides: []string{"tracing", "io"},
	},
	{
		Name:        "hermes_api",
		Type:        domain.PackageTypeInterceptor,
		Description: "Hermes POSIX/STDIO adapter interceptor",
		Params: []Param{
			{Name: "adapter", Type: ParamEnum, Default: "posix", Enum: []string{"posix", "stdio", "mpiio"}},
			{Name: "page_size", Type: ParamString, Default: "1m"},
		},
		Demand:   domain.ResourceDemand{Cores: 0, MemoryMB: 128},
		Provides: []string{"buffering", "io"},
	},
	{
		Name:        "chronolog",
		Type:        domain.PackageTypeService,
		Description: "ChronoLog distributed shared log",
		Params: []Param{
			{Name: "keepers", Type: ParamInt, Default: 1, Min: fptr(1), Max: fptr(16)},
			{Name: "port", Type: ParamInt, Default: 5555, Min: fptr(1024), Max: fptr(65535)},
		},
		Demand:   domain.ResourceDemand{Cores: 2, MemoryMB: 4096, StorageGB: 32, StorageClass: domain.StorageClassSSD, NetworkMBps: 1000},
		Provides: []string{"storage", "logging"},
	},
}

// builtinRelationships — известные отношения между встроенными пакетами.
var builtinRelationships = []Relationship{
	{A: "hermes", B: "hermes_api", Type: RelComplement, Description: "hermes_api adapter requires a running hermes service"},
	{A: "ior", B: "darshan", Type: RelComplement, Description: "darshan characterizes ior I/O"},
	{A: "ior", B: "orangefs", Type: RelComplement, Description: "ior benchmarks a mounted parallel file system"},
	{A: "hermes", B: "orangefs", Type: RelConflict, Description: "competing buffering and PFS stacks on the same mount"},
	{A: "darshan", B: "hermes_api", Type: RelConflict, Description: "both intercept POSIX calls via LD_PRELOAD; order must be explicit"},
}
