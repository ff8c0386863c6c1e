package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer feed-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIStream(t *testing.T) {
	srv := feedServer(t, `[
		{"moduleCrn":"CIVE101-2025","activityName":"Lecture","startDate":"2025-10-30","startTime":"09:00","endTime":"10:00","locationName":"Room 3.08","recordingFactor":4,"staffUserName":"jsmith"},
		{"moduleCrn":"MECH202-2025","activityName":"Lab","startDate":"2025-10-30","startTime":"11:00","endTime":"13:00","locationName":"Lab 2","recordingFactor":1,"staffUserName":"ajones"}
	]`)

	rows := collect(t, NewAPIProvider(srv.URL, "feed-key", time.Second))
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Err != nil || rows[1].Err != nil {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Event.ModuleCRN != "CIVE101-2025" || rows[1].Event.ModuleCRN != "MECH202-2025" {
		t.Fatalf("events = %+v", rows)
	}
	if rows[0].Event.StartTime != 9*time.Hour {
		t.Fatalf("start time = %v", rows[0].Event.StartTime)
	}
}

func TestAPIBadEventKeepsStreaming(t *testing.T) {
	srv := feedServer(t, `[
		{"moduleCrn":"CIVE101-2025","startDate":"not-a-date","startTime":"09:00","endTime":"10:00"},
		{"moduleCrn":"MECH202-2025","startDate":"2025-10-30","startTime":"11:00","endTime":"13:00"}
	]`)

	rows := collect(t, NewAPIProvider(srv.URL, "feed-key", time.Second))
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Err == nil || rows[0].Terminal {
		t.Fatalf("first row should carry a non-terminal error: %+v", rows[0])
	}
	if rows[1].Err != nil || rows[1].Event.ModuleCRN != "MECH202-2025" {
		t.Fatalf("second row should survive the bad one: %+v", rows[1])
	}
}

func TestAPITruncatedResponseIsTerminal(t *testing.T) {
	srv := feedServer(t, `[
		{"moduleCrn":"CIVE101-2025","startDate":"2025-10-30","startTime":"09:00","endTime":"10:00"},
		{"moduleCrn":"MECH2`)

	rows := collect(t, NewAPIProvider(srv.URL, "feed-key", time.Second))
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Err != nil {
		t.Fatalf("first row should decode: %+v", rows[0])
	}
	last := rows[1]
	if last.Err == nil || !last.Terminal {
		t.Fatalf("truncated response must end the stream terminally: %+v", last)
	}
}

func TestAPIErrorStatusIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	p := NewAPIProvider(srv.URL, "", time.Second)
	if _, err := p.Stream(context.Background(), time.Time{}, time.Time{}); err == nil {
		t.Fatal("expected open error")
	}
}
