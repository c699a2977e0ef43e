package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
)

// Pipeline DTOs

// CreatePipelineRequest — запрос на создание pipeline.
type CreatePipelineRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AddPackageRequest — запрос на добавление пакета в pipeline.
type AddPackageRequest struct {
	Name     string         `json:"name"`
	Config   map[string]any `json:"config,omitempty"`
	Position *int           `json:"position,omitempty"`
}

// ConfigurePackageRequest — запрос на замену конфигурации пакета.
type ConfigurePackageRequest struct {
	Config map[string]any `json:"config"`
}

// ReorderRequest — запрос на перестановку пакетов.
// Order — полная перестановка текущих имён пакетов.
type ReorderRequest struct {
	Order []string `json:"order"`
}

// LinkEnvironmentRequest — запрос на привязку окружения к pipeline.
type LinkEnvironmentRequest struct {
	Environment string `json:"environment"`
}

// ImportRequest — запрос на импорт pipeline из текстового дескриптора.
type ImportRequest struct {
	Descriptor string `json:"descriptor"`
}

// ExportResponse — экспортированный текстовый дескриптор.
type ExportResponse struct {
	Descriptor string `json:"descriptor"`
}

// PackageEntryResponse — пакет в составе pipeline.
type PackageEntryResponse struct {
	Name   string             `json:"name"`
	Type   domain.PackageType `json:"type"`
	Order  int                `json:"order"`
	Config map[string]any     `json:"config,omitempty"`
}

// PipelineResponse — ответ с pipeline.
type PipelineResponse struct {
	Name            string                 `json:"name"`
	Description     string                 `json:"description,omitempty"`
	Packages        []PackageEntryResponse `json:"packages"`
	EnvironmentName string                 `json:"environment_name,omitempty"`
	Status          domain.PipelineStatus  `json:"status"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// PipelineFromDomain конвертирует domain.Pipeline в PipelineResponse.
func PipelineFromDomain(p *domain.Pipeline) PipelineResponse {
	packages := make([]PackageEntryResponse, len(p.Packages))
	for i, e := range p.Packages {
		packages[i] = PackageEntryResponse{
			Name:   e.Name,
			Type:   e.Type,
			Order:  e.Order,
			Config: e.Config,
		}
	}
	return PipelineResponse{
		Name:            p.Name,
		Description:     p.Description,
		Packages:        packages,
		EnvironmentName: p.EnvironmentName,
		Status:          p.Status,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// Environment DTOs

// BuildEnvironmentRequest — запрос на сборку окружения.
// Pipeline задаёт состав пакетов, Level — уровень оптимизации.
type BuildEnvironmentRequest struct {
	Name     string `json:"name"`
	Pipeline string `json:"pipeline"`
	Level    string `json:"level,omitempty"`
}

// CopyEnvironmentRequest — запрос на копирование окружения.
type CopyEnvironmentRequest struct {
	Target string `json:"target"`
}

// ConfigureEnvironmentRequest — запрос на изменение переменных окружения.
type ConfigureEnvironmentRequest struct {
	Variables map[string]string `json:"variables"`
}

// EnvironmentResponse — ответ с окружением.
type EnvironmentResponse struct {
	Name              string                   `json:"name"`
	Variables         map[string]string        `json:"variables,omitempty"`
	Modules           []string                 `json:"modules,omitempty"`
	OptimizationFlags []string                 `json:"optimization_flags,omitempty"`
	Level             domain.OptimizationLevel `json:"level"`
	MachineSpecific   bool                     `json:"machine_specific"`
	BuiltAt           time.Time                `json:"built_at"`
}

// EnvironmentFromDomain конвертирует domain.Environment в EnvironmentResponse.
func EnvironmentFromDomain(e *domain.Environment) EnvironmentResponse {
	return EnvironmentResponse{
		Name:              e.Name,
		Variables:         e.Variables,
		Modules:           e.Modules,
		OptimizationFlags: e.OptimizationFlags,
		Level:             e.Level,
		MachineSpecific:   e.MachineSpecific,
		BuiltAt:           e.BuiltAt,
	}
}

// Execution DTOs

// StartExecutionRequest — запрос на запуск execution.
// Strategy и Method фиксируются при создании; план размещения
// строится orchestrator'ом по свежему snapshot'у ресурсов.
type StartExecutionRequest struct {
	Strategy string              `json:"strategy,omitempty"`
	Method   domain.MethodConfig `json:"method"`
}

// ExecutionResponse — ответ с execution.
type ExecutionResponse struct {
	ID                uuid.UUID                   `json:"id"`
	PipelineName      string                      `json:"pipeline_name"`
	Status            domain.ExecutionStatus      `json:"status"`
	Plan              *domain.AllocationPlan      `json:"plan,omitempty"`
	NodeStates        map[string]domain.NodeState `json:"node_states,omitempty"`
	ResumeIndex       int                         `json:"resume_index"`
	RestoredFrom      *domain.CheckpointRef       `json:"restored_from,omitempty"`
	LastCheckpointSeq int                         `json:"last_checkpoint_seq,omitempty"`
	StartedAt         *time.Time                  `json:"started_at,omitempty"`
	FinishedAt        *time.Time                  `json:"finished_at,omitempty"`
	Error             string                      `json:"error,omitempty"`
	CreatedAt         time.Time                   `json:"created_at"`
}

// ExecutionFromDomain конвертирует domain.ExecutionRecord в ExecutionResponse.
func ExecutionFromDomain(e *domain.ExecutionRecord) ExecutionResponse {
	return ExecutionResponse{
		ID:                e.ID,
		PipelineName:      e.PipelineName,
		Status:            e.Status,
		Plan:              e.Plan,
		NodeStates:        e.NodeStates,
		ResumeIndex:       e.ResumeIndex,
		RestoredFrom:      e.RestoredFrom,
		LastCheckpointSeq: e.LastCheckpointSeq,
		StartedAt:         e.StartedAt,
		FinishedAt:        e.FinishedAt,
		Error:             e.Error,
		CreatedAt:         e.CreatedAt,
	}
}

// TransitionEventResponse — запись журнала переходов execution.
type TransitionEventResponse struct {
	Seq    int                    `json:"seq"`
	From   domain.ExecutionStatus `json:"from"`
	To     domain.ExecutionStatus `json:"to"`
	Reason string                 `json:"reason,omitempty"`
	At     time.Time              `json:"at"`
}

// TransitionEventFromDomain конвертирует domain.TransitionEvent в TransitionEventResponse.
func TransitionEventFromDomain(ev domain.TransitionEvent) TransitionEventResponse {
	return TransitionEventResponse{
		Seq:    ev.Seq,
		From:   ev.From,
		To:     ev.To,
		Reason: ev.Reason,
		At:     ev.At,
	}
}

// Checkpoint DTOs

// CreateCheckpointRequest — запрос на явный checkpoint.
// PackageIndex — индекс последнего полностью завершённого пакета.
type CreateCheckpointRequest struct {
	PackageIndex  int               `json:"package_index"`
	NodeSnapshots map[string]string `json:"node_snapshots,omitempty"`
}

// RestoreCheckpointRequest — запрос на восстановление из checkpoint'а.
// Replan разрешает restore при несовместимом с текущим кластером плане.
type RestoreCheckpointRequest struct {
	Replan bool `json:"replan,omitempty"`
}

// CheckpointResponse — ответ с checkpoint'ом.
type CheckpointResponse struct {
	ExecutionID   uuid.UUID         `json:"execution_id"`
	Seq           int               `json:"seq"`
	PackageIndex  int               `json:"package_index"`
	NodeSnapshots map[string]string `json:"node_snapshots,omitempty"`
	Hash          string            `json:"hash"`
	Verified      bool              `json:"verified"`
	CreatedAt     time.Time         `json:"created_at"`
}

// CheckpointFromDomain конвертирует domain.Checkpoint в CheckpointResponse.
func CheckpointFromDomain(c *domain.Checkpoint) CheckpointResponse {
	return CheckpointResponse{
		ExecutionID:   c.ExecutionID,
		Seq:           c.Seq,
		PackageIndex:  c.PackageIndex,
		NodeSnapshots: c.NodeSnapshots,
		Hash:          c.Hash,
		Verified:      c.Verified,
		CreatedAt:     c.CreatedAt,
	}
}
