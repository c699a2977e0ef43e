package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ExecutionNodes возвращает телеметрию узлов execution.
// GET /api/v1/executions/{id}/nodes
func (h *Handler) ExecutionNodes(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	statuses := h.monitor.Snapshot(id)
	List(w, statuses, len(statuses))
}

// NodeLogs возвращает хвост буфера логов узла.
// GET /api/v1/executions/{id}/nodes/{node}/logs?tail=100
func (h *Handler) NodeLogs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	tail := 0
	if tailStr := r.URL.Query().Get("tail"); tailStr != "" {
		n, err := strconv.Atoi(tailStr)
		if err != nil || n < 1 {
			BadRequest(w, "invalid tail")
			return
		}
		tail = n
	}

	lines := h.monitor.Logs(id, r.PathValue("node"), tail)
	List(w, lines, len(lines))
}

// StreamLogs отдаёт строки логов execution потоком (Server-Sent Events).
// С ?interval=N дополнительно шлёт snapshot-кадры телеметрии каждые
// N секунд и закрывает поток, когда execution достигает финального
// статуса. Без interval соединение держится до отключения клиента.
// GET /api/v1/executions/{id}/logs/stream?interval=5
func (h *Handler) StreamLogs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	var interval time.Duration
	if v := r.URL.Query().Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			BadRequest(w, "invalid interval")
			return
		}
		interval = time.Duration(n) * time.Second
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, h.logger, fmt.Errorf("response writer does not support streaming"))
		return
	}

	ch, unsubscribe := h.monitor.Subscribe(id)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case payload, open := <-ch:
			if !open {
				return
			}
			for _, line := range payload.Lines {
				fmt.Fprintf(w, "data: [%s] %s\n\n", payload.Node, line)
			}
			flusher.Flush()
		case <-tick:
			if !h.writeSnapshotFrame(r.Context(), w, flusher, id) {
				return
			}
		}
	}
}

// writeSnapshotFrame шлёт snapshot-кадр телеметрии.
// Возвращает false после финального кадра завершённого execution.
func (h *Handler) writeSnapshotFrame(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, id uuid.UUID) bool {
	data, err := json.Marshal(h.monitor.Snapshot(id))
	if err != nil {
		return false
	}
	fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
	flusher.Flush()

	exec, err := h.execRepo.GetByID(ctx, id)
	return err != nil || !exec.Status.IsTerminal()
}
