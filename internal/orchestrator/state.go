package orchestrator

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/mq"
)

// StopRequest — команда остановки execution.
type StopRequest struct {
	// Force — не ждать подтверждений узлов, остановить немедленно.
	Force bool
}

// ExecState — состояние одного активного execution в памяти.
//
// Создаётся при старте обработки и удаляется при достижении
// терминального статуса. Каналы acks/stops потребляет только
// горутина-владелец; Record*-методы безопасно вызывать из handlers.
type ExecState struct {
	// Exec — запись execution из БД.
	Exec *domain.ExecutionRecord

	// Pipeline — pipeline на момент запуска.
	Pipeline *domain.Pipeline

	// acks — узлы, подтвердившие запуск.
	// completed/failed/stopped — узлы, дошедшие до терминальной фазы.
	mu        sync.Mutex
	acks      map[string]bool
	completed map[string]bool
	failed    map[string]string
	stopped   map[string]bool
	retries   map[string]int

	// Каналы горутины-владельца.
	acksCh  chan mq.NodeAckPayload
	stopsCh chan StopRequest
}

// NewExecState создаёт состояние для execution.
func NewExecState(exec *domain.ExecutionRecord, pipeline *domain.Pipeline) *ExecState {
	return &ExecState{
		Exec:      exec,
		Pipeline:  pipeline,
		acks:      make(map[string]bool),
		completed: make(map[string]bool),
		failed:    make(map[string]string),
		stopped:   make(map[string]bool),
		retries:   make(map[string]int),
		acksCh:    make(chan mq.NodeAckPayload, 64),
		stopsCh:   make(chan StopRequest, 4),
	}
}

// ExecutionID возвращает ID execution.
func (s *ExecState) ExecutionID() uuid.UUID {
	return s.Exec.ID
}

// Deliver передаёт ack узла горутине-владельцу.
// Возвращает false, если очередь переполнена (ack будет повторён).
func (s *ExecState) Deliver(ack mq.NodeAckPayload) bool {
	select {
	case s.acksCh <- ack:
		return true
	default:
		return false
	}
}

// RequestStop передаёт запрос остановки горутине-владельцу.
func (s *ExecState) RequestStop(req StopRequest) bool {
	select {
	case s.stopsCh <- req:
		return true
	default:
		return false
	}
}

// RecordAck отмечает подтверждение запуска от узла.
// Возвращает false для дубликата.
func (s *ExecState) RecordAck(node string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acks[node] {
		return false
	}
	s.acks[node] = true
	return true
}

// RecordCompleted отмечает успешное завершение узла.
func (s *ExecState) RecordCompleted(node string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[node] = true
}

// RecordFailed отмечает отказ узла с причиной.
func (s *ExecState) RecordFailed(node, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[node] = reason
}

// RecordStopped отмечает остановку узла.
func (s *ExecState) RecordStopped(node string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped[node] = true
}

// AckQuorum возвращает true, когда все узлы плана подтвердили запуск.
func (s *ExecState) AckQuorum() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, node := range s.planNodes() {
		if !s.acks[node] {
			return false
		}
	}
	return true
}

// PendingAcks возвращает узлы плана без подтверждения запуска.
func (s *ExecState) PendingAcks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []string
	for _, node := range s.planNodes() {
		if !s.acks[node] {
			pending = append(pending, node)
		}
	}
	return pending
}

// AllSettled возвращает true, когда каждый узел плана дошёл до
// терминальной фазы (completed, failed или stopped).
func (s *ExecState) AllSettled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, node := range s.planNodes() {
		if !s.completed[node] && s.failed[node] == "" && !s.stopped[node] {
			return false
		}
	}
	return true
}

// FirstFailure возвращает первый отказ узла (узел, причина).
// Пустой узел — отказов нет.
func (s *ExecState) FirstFailure() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, node := range s.planNodes() {
		if reason, ok := s.failed[node]; ok {
			return node, reason
		}
	}
	return "", ""
}

// IncRetry увеличивает счётчик попыток подтверждения узла
// и возвращает новое значение.
func (s *ExecState) IncRetry(node string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries[node]++
	return s.retries[node]
}

// Stats — срез состояния execution для API.
type Stats struct {
	ExecutionID uuid.UUID              `json:"execution_id"`
	Status      domain.ExecutionStatus `json:"status"`
	NodesTotal  int                    `json:"nodes_total"`
	NodesAcked  int                    `json:"nodes_acked"`
	NodesDone   int                    `json:"nodes_done"`
	NodesFailed int                    `json:"nodes_failed"`
}

// Stats возвращает статистику execution.
func (s *ExecState) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		ExecutionID: s.Exec.ID,
		Status:      s.Exec.Status,
		NodesTotal:  len(s.planNodes()),
		NodesAcked:  len(s.acks),
		NodesDone:   len(s.completed),
		NodesFailed: len(s.failed),
	}
}

// planNodes возвращает имена узлов плана. Вызывается под mu.
func (s *ExecState) planNodes() []string {
	if s.Exec.Plan == nil {
		return nil
	}
	return s.Exec.Plan.NodeNames()
}
