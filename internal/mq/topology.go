package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeExecutions Exchange = "conductor.executions"
	ExchangeNodes      Exchange = "conductor.nodes"
	ExchangeEvents     Exchange = "conductor.events"
	ExchangeDLQ        Exchange = "conductor.dlq"
)

// Queues — имена очередей.
const (
	QueueExecRequested Queue = "executions.requested"
	QueueExecStop      Queue = "executions.stop"
	QueueNodeAcks      Queue = "nodes.acks"
	QueueNodeHeartbeat Queue = "nodes.heartbeat"
	QueueNodeLogs      Queue = "nodes.logs"
	QueueEvents        Queue = "events.transitions"
	QueueDLQNodes      Queue = "dlq.nodes"
)

// Routing keys.
const (
	RoutingKeyRequested  RoutingKey = "requested"
	RoutingKeyStop       RoutingKey = "stop"
	RoutingKeyAck        RoutingKey = "ack"
	RoutingKeyHeartbeat  RoutingKey = "heartbeat"
	RoutingKeyLogs       RoutingKey = "logs"
	RoutingKeyTransition RoutingKey = "transition"
	RoutingKeyDLQNodes   RoutingKey = "nodes"
)

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		if err := bindQueues(ch); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeExecutions, "direct"},
		{ExchangeNodes, "direct"},
		{ExchangeEvents, "fanout"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQNodes),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// executions.requested — без DLQ (executions обрабатываются один раз)
		{QueueExecRequested, nil},

		// executions.stop — без DLQ (stop повторяется оператором)
		{QueueExecStop, nil},

		// nodes.acks — с DLQ (ack может уйти в DLQ после retry)
		{QueueNodeAcks, dlqArgs},

		// nodes.heartbeat — без DLQ (устаревший heartbeat бесполезен)
		{QueueNodeHeartbeat, nil},

		// nodes.logs — без DLQ (поток логов)
		{QueueNodeLogs, nil},

		// events.transitions — журнал переходов для внешних подписчиков
		{QueueEvents, nil},

		// dlq.nodes — сама DLQ очередь
		{QueueDLQNodes, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueExecRequested, RoutingKeyRequested, ExchangeExecutions},
		{QueueExecStop, RoutingKeyStop, ExchangeExecutions},
		{QueueNodeAcks, RoutingKeyAck, ExchangeNodes},
		{QueueNodeHeartbeat, RoutingKeyHeartbeat, ExchangeNodes},
		{QueueNodeLogs, RoutingKeyLogs, ExchangeNodes},
		{QueueEvents, RoutingKeyTransition, ExchangeEvents},
		{QueueDLQNodes, RoutingKeyDLQNodes, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Conductor RabbitMQ Topology:

    conductor.executions (direct)
    ├── executions.requested [routing: requested]
    │       Consumer: Orchestrator
    └── executions.stop [routing: stop]
            Consumer: Orchestrator

    conductor.nodes (direct)
    ├── nodes.acks [routing: ack]
    │       Consumer: Orchestrator
    │       DLQ: dlq.nodes
    ├── nodes.heartbeat [routing: heartbeat]
    │       Consumer: Monitor
    └── nodes.logs [routing: logs]
            Consumer: Monitor

    conductor.events (fanout)
    └── events.transitions
            External subscribers

    conductor.dlq (direct)
    └── dlq.nodes [routing: nodes]
            Manual processing
  `
}
