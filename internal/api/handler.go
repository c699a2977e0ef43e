package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Conductor/internal/checkpoint"
	"github.com/shaiso/Conductor/internal/compose"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/envbuild"
	"github.com/shaiso/Conductor/internal/monitor"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/registry"
	"github.com/shaiso/Conductor/internal/resource"
)

// ExecutionStore — операции над executions, нужные API.
// Реализуется repo.ExecutionRepo.
type ExecutionStore interface {
	Create(ctx context.Context, exec *domain.ExecutionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ExecutionRecord, error)
	List(ctx context.Context, pipelineName string, limit int) ([]domain.ExecutionRecord, error)
	Events(ctx context.Context, id uuid.UUID) ([]domain.TransitionEvent, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	pipelines   *compose.Service
	catalog     *registry.Catalog
	envBuilder  *envbuild.Builder
	resources   *resource.Manager
	execRepo    ExecutionStore
	checkpoints *checkpoint.Manager
	monitor     *monitor.Aggregator
	publisher   *mq.Publisher
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Pipelines   *compose.Service
	Catalog     *registry.Catalog
	EnvBuilder  *envbuild.Builder
	Resources   *resource.Manager
	ExecRepo    ExecutionStore
	Checkpoints *checkpoint.Manager
	Monitor     *monitor.Aggregator
	Publisher   *mq.Publisher
	Logger      *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		pipelines:   cfg.Pipelines,
		catalog:     cfg.Catalog,
		envBuilder:  cfg.EnvBuilder,
		resources:   cfg.Resources,
		execRepo:    cfg.ExecRepo,
		checkpoints: cfg.Checkpoints,
		monitor:     cfg.Monitor,
		publisher:   cfg.Publisher,
		logger:      cfg.Logger,
	}
}
