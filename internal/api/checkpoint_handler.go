package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
)

// ListCheckpoints возвращает checkpoints execution в порядке Seq.
// GET /api/v1/executions/{id}/checkpoints
func (h *Handler) ListCheckpoints(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	cps, err := h.checkpoints.List(r.Context(), id)
	if HandleCheckpointError(w, h.logger, err, "") {
		return
	}

	result := make([]CheckpointResponse, len(cps))
	for i := range cps {
		result[i] = CheckpointFromDomain(&cps[i])
	}

	List(w, result, len(result))
}

// CreateCheckpoint создаёт явный checkpoint для RUNNING execution.
// POST /api/v1/executions/{id}/checkpoints
func (h *Handler) CreateCheckpoint(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	var req CreateCheckpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.PackageIndex < -1 {
		BadRequest(w, "package_index must be >= -1")
		return
	}

	exec, err := h.execRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	cp, err := h.checkpoints.Create(r.Context(), exec, req.PackageIndex, req.NodeSnapshots)
	if HandleCheckpointError(w, h.logger, err, "") {
		return
	}

	Created(w, CheckpointFromDomain(cp))
}

// LatestCheckpoint возвращает последний верифицированный checkpoint.
// GET /api/v1/executions/{id}/checkpoints/latest
func (h *Handler) LatestCheckpoint(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	cp, err := h.checkpoints.Latest(r.Context(), id)
	if HandleCheckpointError(w, h.logger, err, "no verified checkpoint") {
		return
	}

	Success(w, CheckpointFromDomain(cp))
}

// RestoreLatestCheckpoint создаёт новый execution из последнего
// верифицированного checkpoint'а.
// POST /api/v1/executions/{id}/restore
func (h *Handler) RestoreLatestCheckpoint(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	var req RestoreCheckpointRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	exec, err := h.checkpoints.RestoreLatest(r.Context(), id, req.Replan)
	if HandleCheckpointError(w, h.logger, err, "no verified checkpoint") {
		return
	}

	Created(w, ExecutionFromDomain(exec))
}

// RestoreCheckpoint создаёт новый execution из checkpoint'а.
// Новый execution продолжает с пакета, следующего за зафиксированным.
// POST /api/v1/executions/{id}/checkpoints/{seq}/restore
func (h *Handler) RestoreCheckpoint(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	seq, err := strconv.Atoi(r.PathValue("seq"))
	if err != nil || seq < 1 {
		BadRequest(w, "invalid checkpoint seq")
		return
	}

	var req RestoreCheckpointRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	ref := domain.CheckpointRef{ExecutionID: id, Seq: seq}
	exec, err := h.checkpoints.Restore(r.Context(), ref, req.Replan)
	if HandleCheckpointError(w, h.logger, err, "checkpoint not found") {
		return
	}

	Created(w, ExecutionFromDomain(exec))
}
