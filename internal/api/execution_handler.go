package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
)

// StartExecution создаёт execution для pipeline в статусе CREATED.
// Стратегия и метод запуска фиксируются в записи; план размещения
// строит orchestrator по свежему snapshot'у ресурсов при адоптации.
// POST /api/v1/pipelines/{name}/executions
func (h *Handler) StartExecution(w http.ResponseWriter, r *http.Request) {
	var req StartExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	strategy := domain.StrategyBalanced
	if req.Strategy != "" {
		strategy = domain.Strategy(req.Strategy)
		if !strategy.Valid() {
			BadRequest(w, "unknown strategy: "+req.Strategy)
			return
		}
	}

	method := req.Method
	if method.Type == "" {
		method.Type = domain.MethodLocal
	}
	if !method.Type.Valid() {
		BadRequest(w, "unknown launch method: "+string(method.Type))
		return
	}

	p, err := h.pipelines.Get(r.Context(), r.PathValue("name"))
	if HandleComposeError(w, h.logger, err, "pipeline not found") {
		return
	}

	if len(p.Packages) == 0 {
		InvalidState(w, "pipeline has no packages")
		return
	}

	exec := &domain.ExecutionRecord{
		ID:           uuid.New(),
		PipelineName: p.Name,
		Status:       domain.ExecStatusCreated,
		Plan: &domain.AllocationPlan{
			PipelineName: p.Name,
			Strategy:     strategy,
			Method:       method,
			CreatedAt:    time.Now(),
		},
		CreatedAt: time.Now(),
	}

	if err := h.execRepo.Create(r.Context(), exec); HandleRepoError(w, h.logger, err, "") {
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishExecRequested(r.Context(), exec.ID); err != nil {
			h.logger.Warn("failed to publish execution.requested", "execution_id", exec.ID, "error", err)
		}
	}

	Created(w, ExecutionFromDomain(exec))
}

// ListExecutions возвращает executions с фильтрацией по pipeline.
// GET /api/v1/executions?pipeline=...&limit=...
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	pipeline := r.URL.Query().Get("pipeline")

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	execs, err := h.execRepo.List(r.Context(), pipeline, limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ExecutionResponse, len(execs))
	for i := range execs {
		result[i] = ExecutionFromDomain(&execs[i])
	}

	List(w, result, len(result))
}

// GetExecution возвращает execution по ID.
// GET /api/v1/executions/{id}
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	exec, err := h.execRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	Success(w, ExecutionFromDomain(exec))
}

// StopExecution запрашивает остановку execution.
// Запрос уходит через брокер; остановку выполняет orchestrator,
// владеющий state machine этого execution.
// POST /api/v1/executions/{id}/stop?force=true
func (h *Handler) StopExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	force := r.URL.Query().Get("force") == "true"

	exec, err := h.execRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	// Остановка терминального execution идемпотентна: команду не
	// публикуем, возвращаем запись как есть
	if exec.IsFinished() {
		Success(w, ExecutionFromDomain(exec))
		return
	}

	if h.publisher == nil {
		Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "stop requires a message broker connection")
		return
	}

	if err := h.publisher.PublishExecStop(r.Context(), id, force); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, ExecutionFromDomain(exec))
}

// ExecutionEvents возвращает журнал переходов execution.
// GET /api/v1/executions/{id}/events
func (h *Handler) ExecutionEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	events, err := h.execRepo.Events(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	result := make([]TransitionEventResponse, len(events))
	for i, ev := range events {
		result[i] = TransitionEventFromDomain(ev)
	}

	List(w, result, len(result))
}

// PhaseDuration — время, проведённое execution в одном статусе.
type PhaseDuration struct {
	Status   domain.ExecutionStatus `json:"status"`
	Duration time.Duration          `json:"duration"`
}

// ExecutionAnalysisResponse — сводка по журналу переходов.
type ExecutionAnalysisResponse struct {
	ExecutionID uuid.UUID              `json:"execution_id"`
	Phases      []PhaseDuration        `json:"phases"`
	Total       time.Duration          `json:"total"`
	Bottleneck  domain.ExecutionStatus `json:"bottleneck,omitempty"`
}

// AnalyzeExecution строит сводку длительностей фаз из журнала переходов.
// Bottleneck — фаза с наибольшей длительностью (для завершённых executions).
// GET /api/v1/executions/{id}/analysis
func (h *Handler) AnalyzeExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	exec, err := h.execRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	events, err := h.execRepo.Events(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, analyzeEvents(exec, events))
}

// analyzeEvents считает длительность каждой фазы по парам соседних
// переходов. Последняя (текущая) фаза открыта и в сводку не входит,
// пока execution не завершён.
func analyzeEvents(exec *domain.ExecutionRecord, events []domain.TransitionEvent) ExecutionAnalysisResponse {
	out := ExecutionAnalysisResponse{ExecutionID: exec.ID}

	start := exec.CreatedAt
	prev := domain.ExecStatusCreated
	var longest time.Duration

	record := func(status domain.ExecutionStatus, from, to time.Time) {
		d := to.Sub(from)
		out.Phases = append(out.Phases, PhaseDuration{Status: status, Duration: d})
		out.Total += d
		if d > longest {
			longest = d
			out.Bottleneck = status
		}
	}

	for _, ev := range events {
		record(prev, start, ev.At)
		start = ev.At
		prev = ev.To
	}

	if exec.IsFinished() && exec.FinishedAt != nil && len(events) > 0 {
		last := events[len(events)-1]
		if exec.FinishedAt.After(last.At) {
			record(prev, last.At, *exec.FinishedAt)
		}
	}
	return out
}
