// Command webhook-receiver is a local ear for panosync telemetry. Point
// TELEMETRY_WEBHOOK_URL at /hook, run some syncs and inspect /stats to see
// what operations teams would receive.
package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

type notification struct {
	Received  string `json:"received"`
	Kind      string `json:"kind"`
	RunID     string `json:"runId"`
	Signature string `json:"signature,omitempty"`
	Verified  *bool  `json:"verified,omitempty"`
	Body      string `json:"body"`
}

type stats struct {
	Count  int64            `json:"count"`
	ByKind map[string]int64 `json:"by_kind"`
	Last   []notification   `json:"last"`
	Since  string           `json:"since"`
	Secret bool             `json:"signature_checking"`
}

const maxStored = 50

var (
	mu     sync.Mutex
	count  int64
	byKind = make(map[string]int64)
	last   []notification
	since  time.Time
	secret string
)

func main() {
	since = time.Now().UTC()
	secret = os.Getenv("SECRET")

	addr := ":8081"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/hook", hookHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		count = 0
		byKind = make(map[string]int64)
		last = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	if secret != "" {
		log.Printf("webhook-receiver: verifying signatures")
	}
	log.Printf("webhook-receiver listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func hookHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	var payload struct {
		Kind  string `json:"kind"`
		RunID string `json:"runId"`
	}
	json.Unmarshal(body, &payload)

	n := notification{
		Received:  time.Now().UTC().Format(time.RFC3339Nano),
		Kind:      payload.Kind,
		RunID:     payload.RunID,
		Signature: r.Header.Get("X-Panosync-Signature"),
		Body:      string(body),
	}
	if secret != "" {
		ok := verify(secret, body, n.Signature)
		n.Verified = &ok
		if !ok {
			log.Printf("hook: SIGNATURE MISMATCH kind=%s run=%s", n.Kind, n.RunID)
		}
	}

	mu.Lock()
	count++
	byKind[n.Kind]++
	last = append(last, n)
	if len(last) > maxStored {
		last = last[len(last)-maxStored:]
	}
	current := count
	mu.Unlock()

	log.Printf("hook #%d: kind=%s run=%s", current, n.Kind, n.RunID)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"received":%d}`, current)
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Count:  count,
		ByKind: byKind,
		Last:   last,
		Since:  since.Format(time.RFC3339),
		Secret: secret != "",
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

func verify(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
