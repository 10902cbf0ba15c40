package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/collectmall/collectmall-backend/internal/chain"
	pkgerrors "github.com/collectmall/collectmall-backend/pkg/errors"
	"github.com/collectmall/collectmall-backend/pkg/logger"
)

const chainConsumerName = "chain-results"

// Handler defines how to process settlement result envelopes.
type Handler interface {
	Handle(ctx context.Context, envelope chain.ResultEnvelope) error
}

// HandlerFunc adapts functions to the Handler interface.
type HandlerFunc func(ctx context.Context, envelope chain.ResultEnvelope) error

// Handle calls the underlying function.
func (fn HandlerFunc) Handle(ctx context.Context, envelope chain.ResultEnvelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, envelope)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Service consumes settlement results from Pub/Sub while honoring Redis
// idempotency. Retryable failures nack for redelivery; protocol errors are
// logged loudly and acked so a poison result cannot wedge the subscription.
type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	manager      idempotencyChecker
	logg         *logger.Logger
}

// NewService creates a new settlement result consumer.
func NewService(subscription *gcppubsub.Subscriber, handler Handler, manager idempotencyChecker, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("chain result subscription is required")
	}
	if handler == nil {
		return nil, errors.New("result handler is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: subscription,
		handler:      handler,
		manager:      manager,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run starts consuming settlement results until the context is canceled.
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
	logCtx := s.logg.WithFields(ctx, fields)

	envelope, err := s.buildEnvelope(msg)
	if err != nil {
		fields["error"] = err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "invalid settlement result")
		return processResult{}
	}
	fields["event_id"] = envelope.EventID.String()
	fields["operate_type"] = envelope.OperateType.String()
	fields["identifier"] = envelope.Identifier
	logCtx = s.logg.WithFields(ctx, fields)

	already, err := s.manager.CheckAndMarkProcessed(logCtx, chainConsumerName, envelope.EventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		s.logg.Info(logCtx, "settlement result already processed")
		return processResult{}
	}

	if err := s.handler.Handle(logCtx, *envelope); err != nil {
		if typed := pkgerrors.As(err); typed != nil && !pkgerrors.IsRetryable(err) {
			s.logg.Error(logCtx, "settlement result rejected", err)
			return processResult{}
		}
		s.logg.Error(logCtx, "settlement result handler error", err)
		_ = s.manager.Delete(logCtx, chainConsumerName, envelope.EventID)
		return processResult{nack: true}
	}

	s.logg.Info(logCtx, "settlement result handled")
	return processResult{}
}

func (s *Service) buildEnvelope(msg *gcppubsub.Message) (*chain.ResultEnvelope, error) {
	var envelope chain.ResultEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		return nil, fmt.Errorf("decode settlement result: %w", err)
	}

	if envelope.EventID == uuid.Nil {
		raw := strings.TrimSpace(msg.Attributes["event_id"])
		if raw == "" {
			return nil, errors.New("event_id missing")
		}
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("event_id: %w", err)
		}
		envelope.EventID = parsed
	}
	if !envelope.OperateType.IsValid() {
		return nil, fmt.Errorf("unknown operate_type %q", envelope.OperateType)
	}
	if strings.TrimSpace(envelope.Identifier) == "" {
		return nil, errors.New("identifier missing")
	}
	if envelope.OccurredAt.IsZero() {
		if created := strings.TrimSpace(msg.Attributes["created_at"]); created != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, created); err == nil {
				envelope.OccurredAt = parsed
			}
		}
	}
	return &envelope, nil
}
