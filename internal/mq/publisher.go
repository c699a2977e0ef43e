package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Conductor/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeExecRequested  MessageType = "execution.requested"
	MessageTypeExecStop       MessageType = "execution.stop"
	MessageTypeNodeAck        MessageType = "node.ack"
	MessageTypeNodeHeartbeat  MessageType = "node.heartbeat"
	MessageTypeNodeLogs       MessageType = "node.logs"
	MessageTypeExecTransition MessageType = "execution.transition"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// ExecRequestedPayload — payload для сообщения о новом execution.
type ExecRequestedPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
}

// ExecStopPayload — payload для запроса остановки execution.
type ExecStopPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	Force       bool      `json:"force"`
}

// NodeAckPayload — подтверждение узла о фазе запуска или о
// завершении очередного пакета (phase "progress").
type NodeAckPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	Node        string    `json:"node"`
	Phase       string    `json:"phase"` // launched, progress, completed, stopped, failed
	Error       string    `json:"error,omitempty"`

	// Package и PackageIndex заполняются для phase "progress":
	// имя завершённого пакета и его глобальный индекс в плане запуска.
	Package      string `json:"package,omitempty"`
	PackageIndex int    `json:"package_index,omitempty"`
}

// NodeHeartbeatPayload — периодический heartbeat узла с утилизацией.
type NodeHeartbeatPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	Node        string    `json:"node"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryMB    int64     `json:"memory_mb"`
	At          time.Time `json:"at"`
}

// NodeLogsPayload — порция строк лога с узла.
type NodeLogsPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	Node        string    `json:"node"`
	Package     string    `json:"package,omitempty"`
	Lines       []string  `json:"lines"`
}

// ExecTransitionPayload — переход execution по state machine.
type ExecTransitionPayload struct {
	ExecutionID uuid.UUID              `json:"execution_id"`
	Pipeline    string                 `json:"pipeline"`
	From        domain.ExecutionStatus `json:"from"`
	To          domain.ExecutionStatus `json:"to"`
	Reason      string                 `json:"reason,omitempty"`
	At          time.Time              `json:"at"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishExecRequested публикует событие о новом execution.
// Потребитель: Orchestrator.
func (p *Publisher) PublishExecRequested(ctx context.Context, executionID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeExecRequested,
		Payload:   ExecRequestedPayload{ExecutionID: executionID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeExecutions, RoutingKeyRequested, msg)
}

// PublishExecStop публикует запрос остановки execution.
// Потребитель: Orchestrator.
func (p *Publisher) PublishExecStop(ctx context.Context, executionID uuid.UUID, force bool) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeExecStop,
		Payload:   ExecStopPayload{ExecutionID: executionID, Force: force},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeExecutions, RoutingKeyStop, msg)
}

// PublishNodeAck публикует подтверждение узла.
// Потребитель: Orchestrator.
func (p *Publisher) PublishNodeAck(ctx context.Context, payload NodeAckPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeNodeAck,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeNodes, RoutingKeyAck, msg)
}

// PublishNodeHeartbeat публикует heartbeat узла.
// Потребитель: Monitor.
func (p *Publisher) PublishNodeHeartbeat(ctx context.Context, payload NodeHeartbeatPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeNodeHeartbeat,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeNodes, RoutingKeyHeartbeat, msg)
}

// PublishNodeLogs публикует порцию логов узла.
// Потребитель: Monitor.
func (p *Publisher) PublishNodeLogs(ctx context.Context, payload NodeLogsPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeNodeLogs,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeNodes, RoutingKeyLogs, msg)
}

// PublishTransition публикует переход execution для внешних подписчиков.
func (p *Publisher) PublishTransition(ctx context.Context, payload ExecTransitionPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeExecTransition,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyTransition, msg)
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, exchange, routingKey, msg)
}
