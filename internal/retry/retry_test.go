package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/betbot/coinjump/internal/domain"
)

func TestClassify_TransientKeywords(t *testing.T) {
	cases := []string{
		"HTTPSConnectionPool: Max retries exceeded with url",
		"dial tcp 1.2.3.4:443: connect: connection refused",
		"ProxyError('Cannot connect to proxy.')",
		"Get \"https://api.binance.com\": net/http: TLS handshake timeout",
		"Read timed out. (read timeout=10)",
		"RemoteDisconnected('Remote end closed connection without response')",
		"read tcp: connection reset by peer",
		"NewConnectionError: failed to establish",
	}
	for _, msg := range cases {
		d := Classify(errors.New(msg))
		if !d.IsTransient() {
			t.Fatalf("expected transient for %q, got %+v", msg, d)
		}
	}
}

func TestClassify_FatalByDefault(t *testing.T) {
	cases := []error{
		errors.New("APIError(code=-2010): Account has insufficient balance"),
		errors.New("invalid symbol"),
		fmt.Errorf("wrap: %w", errors.New("nil pointer")),
	}
	for _, err := range cases {
		if Classify(err).IsTransient() {
			t.Fatalf("expected fatal for %v", err)
		}
	}
}

func TestClassify_FatalMarkersWinOverKeywords(t *testing.T) {
	err := fmt.Errorf("waiting for order 42 (timeout): %w", domain.ErrOrderUnresolved)
	if d := Classify(err); d.IsTransient() {
		t.Fatalf("unresolved order must be fatal, got %+v", d)
	}
	if d := Classify(fmt.Errorf("tick: %w", context.Canceled)); d.IsTransient() {
		t.Fatalf("canceled must be fatal, got %+v", d)
	}
}

func TestClassify_Nil(t *testing.T) {
	if Classify(nil).IsTransient() {
		t.Fatalf("nil error must not be transient")
	}
}

func TestKeywords_ReturnsCopy(t *testing.T) {
	kws := Keywords()
	kws[0] = "mutated"
	if Keywords()[0] == "mutated" {
		t.Fatalf("Keywords must return a copy")
	}
}
