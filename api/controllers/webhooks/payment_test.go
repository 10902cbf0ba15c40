package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/collectmall/collectmall-backend/pkg/db/models"
	"github.com/collectmall/collectmall-backend/pkg/enums"
	pkgerrors "github.com/collectmall/collectmall-backend/pkg/errors"
	"github.com/collectmall/collectmall-backend/pkg/logger"
)

type testPaymentService struct {
	confirmFn func(ctx context.Context, identifier string) (*models.Order, error)
	cancelFn  func(ctx context.Context, identifier, reason string) (*models.Order, error)
}

func (s *testPaymentService) ConfirmOrder(ctx context.Context, identifier string) (*models.Order, error) {
	if s.confirmFn != nil {
		return s.confirmFn(ctx, identifier)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not wired")
}

func (s *testPaymentService) CancelOrder(ctx context.Context, identifier, reason string) (*models.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, identifier, reason)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not wired")
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "webhooks-test", Output: io.Discard})
}

func postPayment(t *testing.T, svc PaymentService, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	PaymentWebhook(svc, testLogger())(resp, req)
	return resp
}

func TestPaymentWebhookSuccessConfirms(t *testing.T) {
	identifier := "txn-" + uuid.NewString()
	confirmed := false
	svc := &testPaymentService{
		confirmFn: func(_ context.Context, got string) (*models.Order, error) {
			confirmed = true
			if got != identifier {
				t.Fatalf("unexpected identifier %s", got)
			}
			return &models.Order{ID: uuid.New(), Status: enums.OrderStatusPaid}, nil
		},
	}

	resp := postPayment(t, svc, map[string]any{
		"identifier": identifier,
		"result":     "success",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if !confirmed {
		t.Fatal("expected confirm to run")
	}
}

func TestPaymentWebhookFailureCancels(t *testing.T) {
	identifier := "txn-" + uuid.NewString()
	var gotReason string
	svc := &testPaymentService{
		cancelFn: func(_ context.Context, _ string, reason string) (*models.Order, error) {
			gotReason = reason
			return &models.Order{ID: uuid.New(), Status: enums.OrderStatusCancelled}, nil
		},
	}

	resp := postPayment(t, svc, map[string]any{
		"identifier": identifier,
		"result":     "failed",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if gotReason != "payment failed" {
		t.Fatalf("unexpected reason %q", gotReason)
	}
}

func TestPaymentWebhookRejectsUnknownResult(t *testing.T) {
	resp := postPayment(t, &testPaymentService{}, map[string]any{
		"identifier": "txn-" + uuid.NewString(),
		"result":     "maybe",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPaymentWebhookReplaySafe(t *testing.T) {
	identifier := "txn-" + uuid.NewString()
	calls := 0
	svc := &testPaymentService{
		confirmFn: func(_ context.Context, _ string) (*models.Order, error) {
			calls++
			return &models.Order{ID: uuid.New(), Status: enums.OrderStatusPaid}, nil
		},
	}

	for i := 0; i < 2; i++ {
		resp := postPayment(t, svc, map[string]any{
			"identifier": identifier,
			"result":     "success",
		})
		if resp.Code != http.StatusOK {
			t.Fatalf("unexpected status %d on delivery %d", resp.Code, i+1)
		}
	}
	if calls != 2 {
		t.Fatalf("expected both deliveries to reach the idempotent service, got %d", calls)
	}
}
