package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/envbuild"
)

// handleEnvError преобразует ошибку Builder'а в HTTP ответ.
func (h *Handler) handleEnvError(w http.ResponseWriter, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, envbuild.ErrNotFound):
		NotFound(w, notFoundMsg)
	case errors.Is(err, envbuild.ErrUnknownLevel):
		BadRequest(w, err.Error())
	default:
		InternalError(w, h.logger, err)
	}
	return true
}

// ListEnvironments возвращает имена сохранённых окружений.
// GET /api/v1/environments
func (h *Handler) ListEnvironments(w http.ResponseWriter, r *http.Request) {
	names, err := h.envBuilder.List(r.Context())
	if h.handleEnvError(w, err, "") {
		return
	}

	List(w, names, len(names))
}

// BuildEnvironment собирает окружение под пакеты pipeline и текущую
// топологию кластера.
// POST /api/v1/environments
func (h *Handler) BuildEnvironment(w http.ResponseWriter, r *http.Request) {
	var req BuildEnvironmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" || req.Pipeline == "" {
		BadRequest(w, "name and pipeline are required")
		return
	}

	level := domain.OptLevelBalanced
	if req.Level != "" {
		level = domain.OptimizationLevel(req.Level)
		if !level.Valid() {
			BadRequest(w, "unknown optimization level: "+req.Level)
			return
		}
	}

	p, err := h.pipelines.Get(r.Context(), req.Pipeline)
	if HandleComposeError(w, h.logger, err, "pipeline not found") {
		return
	}

	graph, err := h.resources.Snapshot()
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	env, err := h.envBuilder.Build(r.Context(), req.Name, p, graph, level)
	if h.handleEnvError(w, err, "") {
		return
	}

	Created(w, EnvironmentFromDomain(env))
}

// GetEnvironment возвращает окружение по имени.
// GET /api/v1/environments/{name}
func (h *Handler) GetEnvironment(w http.ResponseWriter, r *http.Request) {
	env, err := h.envBuilder.Get(r.Context(), r.PathValue("name"))
	if h.handleEnvError(w, err, "environment not found") {
		return
	}

	Success(w, EnvironmentFromDomain(env))
}

// CopyEnvironment создаёт независимую копию окружения.
// POST /api/v1/environments/{name}/copy
func (h *Handler) CopyEnvironment(w http.ResponseWriter, r *http.Request) {
	var req CopyEnvironmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Target == "" {
		BadRequest(w, "target is required")
		return
	}

	env, err := h.envBuilder.Copy(r.Context(), r.PathValue("name"), req.Target)
	if h.handleEnvError(w, err, "environment not found") {
		return
	}

	Created(w, EnvironmentFromDomain(env))
}

// ConfigureEnvironment задаёт или переопределяет переменные окружения.
// PUT /api/v1/environments/{name}/variables
func (h *Handler) ConfigureEnvironment(w http.ResponseWriter, r *http.Request) {
	var req ConfigureEnvironmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if len(req.Variables) == 0 {
		BadRequest(w, "variables are required")
		return
	}

	env, err := h.envBuilder.Configure(r.Context(), r.PathValue("name"), req.Variables)
	if h.handleEnvError(w, err, "environment not found") {
		return
	}

	Success(w, EnvironmentFromDomain(env))
}

// DeleteEnvironment удаляет окружение.
// DELETE /api/v1/environments/{name}
func (h *Handler) DeleteEnvironment(w http.ResponseWriter, r *http.Request) {
	err := h.envBuilder.Delete(r.Context(), r.PathValue("name"))
	if h.handleEnvError(w, err, "environment not found") {
		return
	}

	NoContent(w)
}
