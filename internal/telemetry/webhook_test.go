package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stevobenno/panosync/internal/domain"
)

func TestWebhookRunCompleted(t *testing.T) {
	var got webhookPayload
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Panosync-Signature")
		json.Unmarshal(gotBody, &got)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "hunter2", time.Second)
	sink.RunCompleted(context.Background(),
		domain.RunContext{RunID: "abc123"},
		domain.RunStats{Read: 10, Upserts: 3, Unchanged: 6, Errors: 1},
		1500*time.Millisecond)

	if got.Kind != "run_completed" || got.RunID != "abc123" {
		t.Fatalf("payload = %+v", got)
	}
	if got.Read != 10 || got.Upserts != 3 || got.Unchanged != 6 || got.Errors != 1 {
		t.Fatalf("counts = %+v", got)
	}
	if got.Result != "errors" {
		t.Fatalf("result = %q", got.Result)
	}
	if !VerifySignature("hunter2", gotBody, gotSig) {
		t.Fatal("signature did not verify")
	}
	if VerifySignature("wrong", gotBody, gotSig) {
		t.Fatal("signature verified with wrong secret")
	}
}

func TestWebhookEventFailed(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "", time.Second)
	sink.EventFailed(context.Background(), "abc123", "CIVE101 lecture", "AAAA000000000000AAAA0000", "folder not found")

	if got.Kind != "event_failed" || got.Reason != "folder not found" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestWebhookFailureIsSwallowed(t *testing.T) {
	sink := NewWebhookSink("http://127.0.0.1:1", "", 100*time.Millisecond)
	// Must not panic or block the caller.
	sink.RunStarted(context.Background(), domain.RunContext{RunID: "abc123"})
}

func TestMultiSinkFansOut(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	multi := MultiSink{
		NewNoopSink(),
		NewWebhookSink(srv.URL, "", time.Second),
		NewWebhookSink(srv.URL, "", time.Second),
	}
	multi.RunStarted(context.Background(), domain.RunContext{RunID: "abc123"})

	if calls != 2 {
		t.Fatalf("expected 2 deliveries, got %d", calls)
	}
}
