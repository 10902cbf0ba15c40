package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectmall/collectmall-backend/internal/inventory"
	"github.com/collectmall/collectmall-backend/pkg/enums"
	"github.com/collectmall/collectmall-backend/pkg/logger"
	"github.com/collectmall/collectmall-backend/pkg/outbox"
	"github.com/collectmall/collectmall-backend/pkg/outbox/payloads"
	"github.com/collectmall/collectmall-backend/pkg/outbox/registry"
)

const inventoryConsumerName = "inventory"

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Envelope is one decoded inventory-topic message.
type Envelope struct {
	EventID   uuid.UUID
	EventType enums.OutboxEventType
	Version   int
	Payload   json.RawMessage
}

// Service consumes the inventory topic. Its real work is the compensating
// release queued by the order coordinator when an inline release failed; the
// order lifecycle events sharing the topic are acked after a log line so
// downstream consumers can be added without a new subscription.
type Service struct {
	subscription *gcppubsub.Subscriber
	inventory    inventory.Service
	tx           txRunner
	manager      idempotencyChecker
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewService creates the inventory event consumer.
func NewService(subscription *gcppubsub.Subscriber, inv inventory.Service, tx txRunner, manager idempotencyChecker, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("inventory subscription is required")
	}
	if inv == nil {
		return nil, errors.New("inventory service is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventReservationReleaseRequested, 1, func(payload json.RawMessage) (interface{}, error) {
		var event payloads.ReservationReleaseRequestedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return &event, nil
	})
	return &Service{
		subscription: subscription,
		inventory:    inv,
		tx:           tx,
		manager:      manager,
		decoders:     decoders,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run starts consuming inventory events until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	fields := map[string]any{"message_id": msg.ID}

	envelope, err := s.buildEnvelope(msg)
	if err != nil {
		fields["error"] = err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "invalid inventory event")
		return processResult{}
	}
	fields["event_id"] = envelope.EventID.String()
	fields["event_type"] = string(envelope.EventType)
	logCtx := s.logg.WithFields(ctx, fields)

	already, err := s.manager.CheckAndMarkProcessed(logCtx, inventoryConsumerName, envelope.EventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		s.logg.Info(logCtx, "inventory event already processed")
		return processResult{}
	}

	if err := s.handle(logCtx, *envelope); err != nil {
		s.logg.Error(logCtx, "inventory event handler error", err)
		_ = s.manager.Delete(logCtx, inventoryConsumerName, envelope.EventID)
		return processResult{nack: true}
	}

	s.logg.Info(logCtx, "inventory event handled")
	return processResult{}
}

func (s *Service) handle(ctx context.Context, envelope Envelope) error {
	switch envelope.EventType {
	case enums.EventReservationReleaseRequested:
		return s.handleRelease(ctx, envelope)
	case enums.EventOrderPaid, enums.EventOrderCancelled:
		// Inventory already settled transactionally in the order phase.
		return nil
	default:
		s.logg.Warn(ctx, fmt.Sprintf("inventory event %s has no handler", envelope.EventType))
		return nil
	}
}

func (s *Service) handleRelease(ctx context.Context, envelope Envelope) error {
	decoded, err := s.decoders.Decode(envelope.EventType, envelope.Version, envelope.Payload)
	if err != nil {
		return fmt.Errorf("decode release request: %w", err)
	}
	event, ok := decoded.(*payloads.ReservationReleaseRequestedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", decoded)
	}
	if strings.TrimSpace(event.Identifier) == "" {
		return errors.New("release request missing identifier")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"identifier": event.Identifier,
		"order_id":   event.OrderID.String(),
	})
	if err := s.tx.WithTx(logCtx, func(tx *gorm.DB) error {
		return s.inventory.CancelDecrease(logCtx, tx, event.Identifier)
	}); err != nil {
		return err
	}
	s.logg.Info(logCtx, "queued reservation release applied")
	return nil
}

func (s *Service) buildEnvelope(msg *gcppubsub.Message) (*Envelope, error) {
	var payload outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	rawID := strings.TrimSpace(payload.EventID)
	if rawID == "" {
		rawID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	if rawID == "" {
		return nil, errors.New("event_id missing")
	}
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("event_id: %w", err)
	}

	eventType, err := enums.ParseOutboxEventType(msg.Attributes["event_type"])
	if err != nil {
		return nil, err
	}

	if len(payload.Data) == 0 {
		return nil, errors.New("payload data missing")
	}

	version := payload.Version
	if version == 0 {
		version = 1
	}

	return &Envelope{
		EventID:   eventID,
		EventType: eventType,
		Version:   version,
		Payload:   payload.Data,
	}, nil
}
