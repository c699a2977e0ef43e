package api

import (
	"encoding/json"
	"net/http"
)

// ListPipelines возвращает список pipelines.
// GET /api/v1/pipelines
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := h.pipelines.List(r.Context())
	if HandleComposeError(w, h.logger, err, "") {
		return
	}

	result := make([]PipelineResponse, len(pipelines))
	for i := range pipelines {
		result[i] = PipelineFromDomain(&pipelines[i])
	}

	List(w, result, len(result))
}

// CreatePipeline создаёт пустой pipeline.
// POST /api/v1/pipelines
func (h *Handler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req CreatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	p, err := h.pipelines.Create(r.Context(), req.Name, req.Description)
	if HandleComposeError(w, h.logger, err, "") {
		return
	}

	Created(w, PipelineFromDomain(p))
}

// GetPipeline возвращает pipeline по имени.
// GET /api/v1/pipelines/{name}
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := h.pipelines.Get(r.Context(), r.PathValue("name"))
	if HandleComposeError(w, h.logger, err, "pipeline not found") {
		return
	}

	Success(w, PipelineFromDomain(p))
}

// DeletePipeline удаляет pipeline.
// DELETE /api/v1/pipelines/{name}
func (h *Handler) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	err := h.pipelines.Delete(r.Context(), r.PathValue("name"))
	if HandleComposeError(w, h.logger, err, "pipeline not found") {
		return
	}

	NoContent(w)
}

// AddPackage добавляет пакет из каталога в pipeline.
// POST /api/v1/pipelines/{name}/packages
func (h *Handler) AddPackage(w http.ResponseWriter, r *http.Request) {
	var req AddPackageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "package name is required")
		return
	}

	// По умолчанию — в конец последовательности.
	position := -1
	if req.Position != nil {
		position = *req.Position
	}

	p, err := h.pipelines.AddPackage(r.Context(), r.PathValue("name"), req.Name, req.Config, position)
	if HandleComposeError(w, h.logger, err, "pipeline not found") {
		return
	}

	Success(w, PipelineFromDomain(p))
}

// ConfigurePackage заменяет конфигурацию пакета в pipeline.
// PUT /api/v1/pipelines/{name}/packages/{pkg}
func (h *Handler) ConfigurePackage(w http.ResponseWriter, r *http.Request) {
	var req ConfigurePackageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	p, err := h.pipelines.Configure(r.Context(), r.PathValue("name"), r.PathValue("pkg"), req.Config)
	if HandleComposeError(w, h.logger, err, "pipeline or package not found") {
		return
	}

	Success(w, PipelineFromDomain(p))
}

// RemovePackage удаляет пакет из pipeline.
// DELETE /api/v1/pipelines/{name}/packages/{pkg}
func (h *Handler) RemovePackage(w http.ResponseWriter, r *http.Request) {
	p, err := h.pipelines.RemovePackage(r.Context(), r.PathValue("name"), r.PathValue("pkg"))
	if HandleComposeError(w, h.logger, err, "pipeline or package not found") {
		return
	}

	Success(w, PipelineFromDomain(p))
}

// ReorderPackages переставляет пакеты pipeline.
// PUT /api/v1/pipelines/{name}/packages/order
func (h *Handler) ReorderPackages(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if len(req.Order) == 0 {
		BadRequest(w, "order is required")
		return
	}

	p, err := h.pipelines.Reorder(r.Context(), r.PathValue("name"), req.Order)
	if HandleComposeError(w, h.logger, err, "pipeline not found") {
		return
	}

	Success(w, PipelineFromDomain(p))
}

// LinkEnvironment привязывает окружение к pipeline.
// Pipeline получает независимую копию окружения.
// PUT /api/v1/pipelines/{name}/environment
func (h *Handler) LinkEnvironment(w http.ResponseWriter, r *http.Request) {
	var req LinkEnvironmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Environment == "" {
		BadRequest(w, "environment is required")
		return
	}

	p, err := h.pipelines.LinkEnvironment(r.Context(), r.PathValue("name"), req.Environment)
	if HandleComposeError(w, h.logger, err, "pipeline or environment not found") {
		return
	}

	Success(w, PipelineFromDomain(p))
}

// AnalyzePipeline возвращает известные отношения между пакетами pipeline.
// GET /api/v1/pipelines/{name}/analysis
func (h *Handler) AnalyzePipeline(w http.ResponseWriter, r *http.Request) {
	rels, err := h.pipelines.Analyze(r.Context(), r.PathValue("name"))
	if HandleComposeError(w, h.logger, err, "pipeline not found") {
		return
	}

	List(w, rels, len(rels))
}

// ImportPipeline создаёт pipeline из YAML-дескриптора.
// POST /api/v1/pipelines/import
func (h *Handler) ImportPipeline(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Descriptor == "" {
		BadRequest(w, "descriptor is required")
		return
	}

	p, err := h.pipelines.Import(r.Context(), req.Descriptor)
	if HandleComposeError(w, h.logger, err, "") {
		return
	}

	Created(w, PipelineFromDomain(p))
}

// ExportPipeline сериализует pipeline в YAML-дескриптор.
// GET /api/v1/pipelines/{name}/export
func (h *Handler) ExportPipeline(w http.ResponseWriter, r *http.Request) {
	text, err := h.pipelines.Export(r.Context(), r.PathValue("name"))
	if HandleComposeError(w, h.logger, err, "pipeline not found") {
		return
	}

	Success(w, ExportResponse{Descriptor: text})
}
