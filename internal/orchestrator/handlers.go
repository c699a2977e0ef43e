package orchestrator

import (
	"context"
	"errors"

	"github.com/shaiso/Conductor/internal/mq"
)

// handleExecRequested обрабатывает запрос на запуск execution.
func (o *Orchestrator) handleExecRequested(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.ExecRequestedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse execution.requested payload", "error", err)
		return err
	}

	o.logger.Debug("received execution.requested event", "execution_id", payload.ExecutionID)

	// Проверяем, не обрабатывается ли уже
	if o.isActive(payload.ExecutionID) {
		o.logger.Debug("execution already active, skipping", "execution_id", payload.ExecutionID)
		return nil
	}

	if err := o.processExecution(ctx, payload.ExecutionID); err != nil {
		// Повторная доставка этих случаев не исправит
		if errors.Is(err, ErrExecutionNotCreated) || errors.Is(err, ErrExecutionAlreadyActive) {
			o.logger.Debug("execution not processed", "execution_id", payload.ExecutionID, "reason", err)
			return nil
		}
		o.logger.Error("failed to process execution", "execution_id", payload.ExecutionID, "error", err)
		return err
	}

	return nil
}

// handleExecStop обрабатывает запрос на остановку execution.
func (o *Orchestrator) handleExecStop(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.ExecStopPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse execution.stop payload", "error", err)
		return err
	}

	o.logger.Debug("received execution.stop event",
		"execution_id", payload.ExecutionID,
		"force", payload.Force,
	)

	if err := o.RequestStop(ctx, payload.ExecutionID, payload.Force); err != nil {
		// Незнакомый или неактивный execution — остановка идемпотентна,
		// повторная доставка не нужна
		if errors.Is(err, ErrExecutionNotFound) || errors.Is(err, ErrExecutionNotActive) {
			o.logger.Debug("stop not applied", "execution_id", payload.ExecutionID, "reason", err)
			return nil
		}
		return err
	}

	return nil
}

// handleNodeAck обрабатывает подтверждение фазы от узла.
func (o *Orchestrator) handleNodeAck(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.NodeAckPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse node.ack payload", "error", err)
		return err
	}

	o.logger.Debug("received node ack",
		"execution_id", payload.ExecutionID,
		"node", payload.Node,
		"phase", payload.Phase,
	)

	state := o.getActive(payload.ExecutionID)
	if state == nil {
		// Execution завершён или обрабатывается другим экземпляром
		o.logger.Debug("ack for inactive execution dropped",
			"execution_id", payload.ExecutionID,
			"node", payload.Node,
		)
		return nil
	}

	if !state.Deliver(payload) {
		// Очередь владельца переполнена — вернём в очередь для retry
		return errors.New("ack queue full")
	}

	return nil
}
