package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(CodeDependency, cause, "reserve inventory")

	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
	if err.Unwrap() != cause {
		t.Fatalf("expected cause to be preserved")
	}
	if got := err.Error(); got != "DEPENDENCY_ERROR: reserve inventory" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestAsFindsTypedError(t *testing.T) {
	inner := New(CodeInventoryNotEnough, "stock exhausted")
	wrapped := fmt.Errorf("try phase: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeInventoryNotEnough {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestMetadataForDomainCodes(t *testing.T) {
	cases := map[Code]int{
		CodeBuyerStatusAbnormal: http.StatusUnprocessableEntity,
		CodeGoodsPriceChanged:   http.StatusConflict,
		CodeInventoryNotEnough:  http.StatusConflict,
		CodeProtocol:            http.StatusInternalServerError,
		Code("UNKNOWN"):         http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := MetadataFor(code).HTTPStatus; got != want {
			t.Fatalf("code %s: expected status %d, got %d", code, want, got)
		}
	}
	if MetadataFor(CodeProtocol).Retryable {
		t.Fatal("protocol errors must not be retryable")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(New(CodeGoodsNotBooked, "no booking")) {
		t.Fatal("validation failures are not retryable")
	}
	if !IsRetryable(New(CodeConflict, "version mismatch")) {
		t.Fatal("conflicts should be retried with fresh state")
	}
	if IsRetryable(fmt.Errorf("untyped")) {
		t.Fatal("untyped errors are not retryable")
	}
}
