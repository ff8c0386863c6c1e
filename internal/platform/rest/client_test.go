package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stevobenno/panosync/internal/circuitbreaker"
	"github.com/stevobenno/panosync/internal/platform"
)

func TestListScheduledPages(t *testing.T) {
	first := make([]map[string]any, defaultPageSize)
	for i := range first {
		first[i] = map[string]any{
			"id":         uuid.New().String(),
			"externalId": "AAAA000000000000AAAA0000",
			"startTime":  "2025-10-30T09:02:00Z",
			"endTime":    "2025-10-30T09:58:00Z",
		}
	}
	second := []map[string]any{{
		"id":         uuid.New().String(),
		"externalId": "",
		"startTime":  "2025-10-31T09:02:00Z",
		"endTime":    "2025-10-31T09:58:00Z",
	}}

	pages := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("auth = %q", got)
		}
		page := r.URL.Query().Get("page")
		pages++
		w.Header().Set("Content-Type", "application/json")
		if page == "0" {
			json.NewEncoder(w).Encode(map[string]any{"sessions": first})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"sessions": second})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", time.Second)
	sessions, err := c.ListScheduled(context.Background(),
		time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListScheduled: %v", err)
	}
	if len(sessions) != defaultPageSize+1 {
		t.Fatalf("expected %d sessions, got %d", defaultPageSize+1, len(sessions))
	}
	if pages != 2 {
		t.Fatalf("expected 2 page fetches, got %d", pages)
	}
	if sessions[0].Identity != "AAAA000000000000AAAA0000" {
		t.Fatalf("identity not mapped: %+v", sessions[0])
	}
}

func TestScheduleSuccess(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var payload scheduleRequestPayload
		json.NewDecoder(r.Body).Decode(&payload)
		if payload.Name != "CIVE101 30/10/2025 09:00 Room 3.08" {
			t.Errorf("name = %q", payload.Name)
		}
		json.NewEncoder(w).Encode(map[string]any{"sessionId": id.String()})
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	result, err := c.Schedule(context.Background(), platform.ScheduleRequest{
		Title:    "CIVE101 30/10/2025 09:00 Room 3.08",
		FolderID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !result.Success || result.SessionID != id {
		t.Fatalf("result = %+v", result)
	}
}

func TestScheduleConflictIsResultNotError(t *testing.T) {
	blocker := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"conflictingSessionIds": []string{blocker.String()},
			"message":               "recorder busy",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	result, err := c.Schedule(context.Background(), platform.ScheduleRequest{Title: "x"})
	if err != nil {
		t.Fatalf("conflict must not be an error: %v", err)
	}
	if result.Success {
		t.Fatal("conflict result marked success")
	}
	if len(result.ConflictingIDs) != 1 || result.ConflictingIDs[0] != blocker {
		t.Fatalf("conflicting ids = %v", result.ConflictingIDs)
	}
	if result.Message != "recorder busy" {
		t.Fatalf("message = %q", result.Message)
	}
}

func TestServerFaultIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"message": "An internal error has occurred"})
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	_, err := c.Schedule(context.Background(), platform.ScheduleRequest{Title: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !platform.IsTransient(err) {
		t.Fatalf("generic server fault should be transient: %v", err)
	}
}

func TestValidationFailureIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "end time before start time"})
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	_, err := c.Schedule(context.Background(), platform.ScheduleRequest{Title: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if platform.IsTransient(err) {
		t.Fatalf("validation failure must not be transient: %v", err)
	}
}

func TestRecorderNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	_, err := c.GetByName(context.Background(), "Room 3.08")
	if !errors.Is(err, platform.ErrRecorderNotFound) {
		t.Fatalf("expected ErrRecorderNotFound, got %v", err)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second).WithBreaker(circuitbreaker.New(2, time.Minute))
	ctx := context.Background()

	c.Delete(ctx, []uuid.UUID{uuid.New()})
	c.Delete(ctx, []uuid.UUID{uuid.New()})

	err := c.Delete(ctx, []uuid.UUID{uuid.New()})
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
}

func TestBreakerIsPerOperation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"folders": []any{}})
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second).WithBreaker(circuitbreaker.New(1, time.Minute))
	ctx := context.Background()

	c.Delete(ctx, []uuid.UUID{uuid.New()})
	if _, err := c.ListAll(ctx); err != nil {
		t.Fatalf("folder listing should not share the delete circuit: %v", err)
	}
}
