package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/repo"
)

// stubExecStore — in-memory ExecutionStore для httptest.
type stubExecStore struct {
	execs map[uuid.UUID]*domain.ExecutionRecord
}

func (s *stubExecStore) Create(_ context.Context, exec *domain.ExecutionRecord) error {
	s.execs[exec.ID] = exec
	return nil
}

func (s *stubExecStore) GetByID(_ context.Context, id uuid.UUID) (*domain.ExecutionRecord, error) {
	exec, ok := s.execs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return exec, nil
}

func (s *stubExecStore) List(_ context.Context, _ string, _ int) ([]domain.ExecutionRecord, error) {
	return nil, nil
}

func (s *stubExecStore) Events(_ context.Context, _ uuid.UUID) ([]domain.TransitionEvent, error) {
	return nil, repo.ErrNotFound
}

func testHandler(store ExecutionStore) http.Handler {
	h := NewHandler(Config{
		ExecRepo: store,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func postStop(t *testing.T, mux http.Handler, id uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/executions/"+id.String()+"/stop", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestStopExecution_TerminalIsIdempotent(t *testing.T) {
	exec := &domain.ExecutionRecord{
		ID:           uuid.New(),
		PipelineName: "io-bench",
		Status:       domain.ExecStatusCompleted,
	}
	store := &stubExecStore{execs: map[uuid.UUID]*domain.ExecutionRecord{exec.ID: exec}}
	mux := testHandler(store)

	// Повторная остановка завершённого execution возвращает запись
	// как есть, без ошибки
	for i := 0; i < 2; i++ {
		rec := postStop(t, mux, exec.ID)
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d, want 200: %s", i+1, rec.Code, rec.Body)
		}

		var resp struct {
			Data ExecutionResponse `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("attempt %d: decode: %v", i+1, err)
		}
		if resp.Data.ID != exec.ID {
			t.Errorf("attempt %d: id = %s, want %s", i+1, resp.Data.ID, exec.ID)
		}
		if resp.Data.Status != domain.ExecStatusCompleted {
			t.Errorf("attempt %d: status = %s, want COMPLETED", i+1, resp.Data.Status)
		}
	}

	if exec.Status != domain.ExecStatusCompleted {
		t.Errorf("stored record mutated: %s", exec.Status)
	}
}

func TestStopExecution_RunningWithoutBroker(t *testing.T) {
	exec := &domain.ExecutionRecord{
		ID:           uuid.New(),
		PipelineName: "io-bench",
		Status:       domain.ExecStatusRunning,
	}
	store := &stubExecStore{execs: map[uuid.UUID]*domain.ExecutionRecord{exec.ID: exec}}

	rec := postStop(t, testHandler(store), exec.ID)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestStopExecution_UnknownExecution(t *testing.T) {
	store := &stubExecStore{execs: map[uuid.UUID]*domain.ExecutionRecord{}}

	rec := postStop(t, testHandler(store), uuid.New())
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
