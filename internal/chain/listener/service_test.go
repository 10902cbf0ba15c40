package listener

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/collectmall/collectmall-backend/internal/chain"
	"github.com/collectmall/collectmall-backend/pkg/enums"
	pkgerrors "github.com/collectmall/collectmall-backend/pkg/errors"
	"github.com/collectmall/collectmall-backend/pkg/logger"
)

func TestBuildEnvelope(t *testing.T) {
	svc := newTestService(t)
	eventID := uuid.New()
	msg := buildResultMessage(t, chain.ResultEnvelope{
		EventID:     eventID,
		OperateType: enums.ChainOperateCollectionMint,
		Identifier:  "chain-abc",
		Success:     true,
		Result:      chain.ResultData{NFTID: "nft-1", TxHash: "0x01"},
		OccurredAt:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	})

	env, err := svc.buildEnvelope(msg)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if env.EventID != eventID {
		t.Fatalf("unexpected event id %s", env.EventID)
	}
	if env.OperateType != enums.ChainOperateCollectionMint {
		t.Fatalf("unexpected operate type %s", env.OperateType)
	}
	if env.Identifier != "chain-abc" {
		t.Fatalf("unexpected identifier %s", env.Identifier)
	}
	if env.Result.NFTID != "nft-1" {
		t.Fatalf("unexpected result %+v", env.Result)
	}
}

func TestBuildEnvelopeEventIDFromAttribute(t *testing.T) {
	svc := newTestService(t)
	eventID := uuid.New()
	msg := buildResultMessage(t, chain.ResultEnvelope{
		OperateType: enums.ChainOperateCollectionDestroy,
		Identifier:  "chain-xyz",
		Success:     true,
	})
	msg.Attributes = map[string]string{"event_id": eventID.String()}

	env, err := svc.buildEnvelope(msg)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if env.EventID != eventID {
		t.Fatalf("unexpected event id %s", env.EventID)
	}
}

func TestBuildEnvelopeRejectsUnknownOperation(t *testing.T) {
	svc := newTestService(t)
	msg := buildResultMessage(t, chain.ResultEnvelope{
		EventID:     uuid.New(),
		OperateType: enums.ChainOperateType("teleport"),
		Identifier:  "chain-abc",
	})

	if _, err := svc.buildEnvelope(msg); err == nil {
		t.Fatal("expected unknown operate_type error")
	}
}

func TestProcessAlreadyProcessed(t *testing.T) {
	manager := &stubManager{checkResult: true}
	handler := &stubHandler{}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildValidMessage(t))
	if res.nack {
		t.Fatal("expected ack, got nack")
	}
	if handler.called {
		t.Fatal("handler should not run for processed events")
	}
	if len(manager.checked) != 1 {
		t.Fatalf("expected one check, got %d", len(manager.checked))
	}
}

func TestProcessRetryableErrorNacks(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildValidMessage(t))
	if !res.nack {
		t.Fatal("expected nack on retryable error")
	}
	if len(manager.deleted) != 1 {
		t.Fatal("expected idempotency delete before redelivery")
	}
}

func TestProcessProtocolErrorAcks(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{err: pkgerrors.New(pkgerrors.CodeProtocol, "mint for unknown copy")}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildValidMessage(t))
	if res.nack {
		t.Fatal("protocol errors must ack, not redeliver")
	}
	if len(manager.deleted) != 0 {
		t.Fatal("processed marker must stay for poison results")
	}
}

func TestProcessPlainErrorNacks(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{err: errors.New("boom")}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildValidMessage(t))
	if !res.nack {
		t.Fatal("untyped errors should be retried")
	}
}

func TestProcessInvalidEnvelope(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{}
	svc := newTestServiceWithDeps(t, handler, manager)

	msg := &gcppubsub.Message{Data: []byte("not json")}
	res := svc.process(context.Background(), msg)
	if res.nack {
		t.Fatal("invalid envelope should ack")
	}
	if handler.called || len(manager.checked) != 0 {
		t.Fatal("invalid envelope should short-circuit")
	}
}

func buildValidMessage(t *testing.T) *gcppubsub.Message {
	t.Helper()
	return buildResultMessage(t, chain.ResultEnvelope{
		EventID:     uuid.New(),
		OperateType: enums.ChainOperateCollectionMint,
		Identifier:  "chain-" + uuid.NewString(),
		Success:     true,
		Result:      chain.ResultData{NFTID: "nft-1", TxHash: "0x01"},
		OccurredAt:  time.Now().UTC(),
	})
}

func buildResultMessage(t *testing.T, envelope chain.ResultEnvelope) *gcppubsub.Message {
	t.Helper()
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &gcppubsub.Message{ID: "msg-1", Data: data}
}

func newTestService(t *testing.T) *Service {
	return newTestServiceWithDeps(t, &stubHandler{}, &stubManager{})
}

func newTestServiceWithDeps(t *testing.T, handler Handler, manager *stubManager) *Service {
	t.Helper()
	return &Service{
		handler: handler,
		manager: manager,
		logg:    logger.New(logger.Options{ServiceName: "chain-listener-test"}),
	}
}

type stubHandler struct {
	called   bool
	envelope chain.ResultEnvelope
	err      error
}

func (h *stubHandler) Handle(_ context.Context, envelope chain.ResultEnvelope) error {
	h.called = true
	h.envelope = envelope
	return h.err
}

type stubManager struct {
	checkResult bool
	checkErr    error
	deleteErr   error
	checked     []uuid.UUID
	deleted     []uuid.UUID
}

func (s *stubManager) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	s.checked = append(s.checked, eventID)
	return s.checkResult, s.checkErr
}

func (s *stubManager) Delete(_ context.Context, _ string, eventID uuid.UUID) error {
	s.deleted = append(s.deleted, eventID)
	return s.deleteErr
}
