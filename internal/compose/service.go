package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/registry"
	"github.com/shaiso/Conductor/internal/repo"
)

// Service — операции композиции над записями Pipeline Store.
//
// Каждая мутирующая операция немедленно сохраняет pipeline в БД:
// ничего не буферизуется, после возврата из метода запись уже durable.
type Service struct {
	pipelines *repo.PipelineRepo
	catalog   *registry.Catalog
	logger    *slog.Logger
}

// NewService создаёт новый Service.
func NewService(pipelines *repo.PipelineRepo, catalog *registry.Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pipelines: pipelines,
		catalog:   catalog,
		logger:    logger,
	}
}

// Create создаёт новый pipeline. Дубликат имени — ErrDuplicateName.
func (s *Service) Create(ctx context.Context, name, description string) (*domain.Pipeline, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: pipeline name is empty", ErrValidation)
	}

	p := &domain.Pipeline{
		Name:        name,
		Description: description,
		Status:      domain.PipelineStatusCreated,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := s.pipelines.Create(ctx, p); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		return nil, err
	}

	s.logger.Info("pipeline created", "pipeline", name)
	return p, nil
}

// Get возвращает pipeline по имени.
func (s *Service) Get(ctx context.Context, name string) (*domain.Pipeline, error) {
	p, err := s.pipelines.GetByName(ctx, name)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: pipeline %s", ErrNotFound, name)
	}
	return p, err
}

// List возвращает все pipelines.
func (s *Service) List(ctx context.Context) ([]domain.Pipeline, error) {
	return s.pipelines.List(ctx)
}

// Delete удаляет pipeline. Операция необратима.
func (s *Service) Delete(ctx context.Context, name string) error {
	err := s.pipelines.Delete(ctx, name)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: pipeline %s", ErrNotFound, name)
	}
	if err == nil {
		s.logger.Info("pipeline deleted", "pipeline", name)
	}
	return err
}

// AddPackage добавляет пакет в pipeline.
//
// Конфигурация валидируется против схемы пакета из каталога;
// position < 0 добавляет в конец. Изменение сохраняется немедленно.
func (s *Service) AddPackage(ctx context.Context, pipelineName, pkgName string, config map[string]any, position int) (*domain.Pipeline, error) {
	p, err := s.Get(ctx, pipelineName)
	if err != nil {
		return nil, err
	}

	def, err := s.catalog.Get(pkgName)
	if err != nil {
		return nil, err
	}

	cfg, err := s.catalog.Validate(pkgName, config)
	if err != nil {
		return nil, err
	}

	entry := domain.PackageEntry{
		Name:   pkgName,
		Type:   def.Type,
		Config: cfg,
	}
	if err := InsertPackage(p, entry, position); err != nil {
		return nil, err
	}

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("package added",
		"pipeline", pipelineName,
		"package", pkgName,
		"type", def.Type,
		"order", p.FindPackage(pkgName).Order,
	)
	return p, nil
}

// Configure заменяет конфигурацию уже добавленного пакета.
// Новая конфигурация проходит ту же валидацию, что и при добавлении.
func (s *Service) Configure(ctx context.Context, pipelineName, pkgName string, config map[string]any) (*domain.Pipeline, error) {
	p, err := s.Get(ctx, pipelineName)
	if err != nil {
		return nil, err
	}

	entry := p.FindPackage(pkgName)
	if entry == nil {
		return nil, fmt.Errorf("%w: package %s in pipeline %s", ErrNotFound, pkgName, pipelineName)
	}

	cfg, err := s.catalog.Validate(pkgName, config)
	if err != nil {
		return nil, err
	}
	entry.Config = cfg

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("package configured", "pipeline", pipelineName, "package", pkgName)
	return p, nil
}

// RemovePackage удаляет пакет из pipeline и закрывает пропуск
// в индексах оставшихся пакетов.
func (s *Service) RemovePackage(ctx context.Context, pipelineName, pkgName string) (*domain.Pipeline, error) {
	p, err := s.Get(ctx, pipelineName)
	if err != nil {
		return nil, err
	}

	if err := RemovePackage(p, pkgName); err != nil {
		return nil, err
	}

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("package removed", "pipeline", pipelineName, "package", pkgName)
	return p, nil
}

// Reorder переставляет пакеты pipeline согласно newOrder.
func (s *Service) Reorder(ctx context.Context, pipelineName string, newOrder []string) (*domain.Pipeline, error) {
	p, err := s.Get(ctx, pipelineName)
	if err != nil {
		return nil, err
	}

	if err := Reorder(p, newOrder); err != nil {
		return nil, err
	}

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("pipeline reordered", "pipeline", pipelineName, "order", newOrder)
	return p, nil
}

// LinkEnvironment привязывает окружение к pipeline.
func (s *Service) LinkEnvironment(ctx context.Context, pipelineName, envName string) (*domain.Pipeline, error) {
	p, err := s.Get(ctx, pipelineName)
	if err != nil {
		return nil, err
	}

	p.EnvironmentName = envName
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("environment linked", "pipeline", pipelineName, "environment", envName)
	return p, nil
}

// Analyze возвращает отношения (дополнения и конфликты) между
// пакетами pipeline согласно каталогу.
func (s *Service) Analyze(ctx context.Context, pipelineName string) ([]registry.Relationship, error) {
	p, err := s.Get(ctx, pipelineName)
	if err != nil {
		return nil, err
	}
	return s.catalog.Analyze(p.PackageNames()), nil
}

// Import создаёт pipeline из YAML-дескриптора.
func (s *Service) Import(ctx context.Context, text string) (*domain.Pipeline, error) {
	p, err := Import(text, s.catalog)
	if err != nil {
		return nil, err
	}

	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	if len(p.Packages) > 0 {
		p.Status = domain.PipelineStatusConfigured
	}

	if err := s.pipelines.Create(ctx, p); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
		}
		return nil, err
	}

	s.logger.Info("pipeline imported", "pipeline", p.Name, "packages", len(p.Packages))
	return p, nil
}

// Export сериализует pipeline в YAML-дескриптор.
func (s *Service) Export(ctx context.Context, pipelineName string) (string, error) {
	p, err := s.Get(ctx, pipelineName)
	if err != nil {
		return "", err
	}
	return Export(p)
}

// save сохраняет pipeline с обновлением updated_at.
func (s *Service) save(ctx context.Context, p *domain.Pipeline) error {
	p.UpdatedAt = time.Now()
	if err := s.pipelines.Update(ctx, p); err != nil {
		return fmt.Errorf("persist pipeline %s: %w", p.Name, err)
	}
	return nil
}
