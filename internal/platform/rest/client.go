// Package rest is the HTTP implementation of the platform interfaces. All
// calls go through one helper that enforces the circuit breaker, reports
// call metrics and maps non-2xx responses to RemoteError.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stevobenno/panosync/internal/circuitbreaker"
	"github.com/stevobenno/panosync/internal/domain"
	"github.com/stevobenno/panosync/internal/metrics"
	"github.com/stevobenno/panosync/internal/platform"
)

// Fault signature the platform emits for generic server-side failures.
// Responses carrying it are worth retrying; anything more specific is not.
const transientFaultMessage = "an internal error has occurred"

const defaultPageSize = 200

// RemoteError is a non-2xx platform response. Body holds the raw response
// body (capped) so structured error payloads survive; Message is the
// human-readable extract for display.
type RemoteError struct {
	Op      string
	Status  int
	Message string
	Body    []byte
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("platform %s: status %d: %s", e.Op, e.Status, e.Message)
}

// Transient reports whether the failure carries the platform's generic fault
// signature. Validation failures and not-found responses are never transient.
func (e *RemoteError) Transient() bool {
	return e.Status >= 500 && strings.Contains(strings.ToLower(e.Message), transientFaultMessage)
}

// Client talks to the platform's REST API.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	breaker  *circuitbreaker.CircuitBreaker
	metrics  metrics.Sink
	pageSize int
}

// New creates a Client for the API at baseURL.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		metrics:  metrics.NewNoopSink(),
		pageSize: defaultPageSize,
	}
}

// WithBreaker attaches a circuit breaker keyed by operation name.
func (c *Client) WithBreaker(cb *circuitbreaker.CircuitBreaker) *Client {
	c.breaker = cb
	return c
}

// WithMetrics attaches a metrics sink for call durations and errors.
func (c *Client) WithMetrics(sink metrics.Sink) *Client {
	c.metrics = sink
	return c
}

func (c *Client) Sessions() platform.SessionAPI   { return c }
func (c *Client) Folders() platform.FolderAPI     { return c }
func (c *Client) Recorders() platform.RecorderAPI { return c }

// do performs one API call: breaker check, request, status mapping, JSON
// decode into out (skipped when out is nil).
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	if c.breaker != nil {
		if err := c.breaker.Allow(op); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	start := time.Now()
	err := c.roundTrip(ctx, op, method, path, body, out)
	c.metrics.RemoteCallCompleted(op, time.Since(start), err)

	if c.breaker != nil {
		if err != nil {
			c.breaker.RecordFailure(op)
		} else {
			c.breaker.RecordSuccess(op)
		}
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RemoteError{Op: op, Status: resp.StatusCode, Message: errorMessage(raw), Body: raw}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// errorMessage extracts the display message from an error body, JSON or
// plain.
func errorMessage(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(raw))
}

type sessionPayload struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"externalId"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
}

type sessionPage struct {
	Sessions []sessionPayload `json:"sessions"`
	Total    int              `json:"totalCount"`
}

// ListScheduled pages through every scheduled session in the window.
func (c *Client) ListScheduled(ctx context.Context, fromUTC, toUTC time.Time) ([]domain.ExistingSession, error) {
	var all []domain.ExistingSession
	for page := 0; ; page++ {
		q := url.Values{}
		q.Set("from", fromUTC.Format(time.RFC3339))
		q.Set("to", toUTC.Format(time.RFC3339))
		q.Set("page", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(c.pageSize))

		var pageResp sessionPage
		if err := c.do(ctx, "sessions.list", http.MethodGet, "/sessions?"+q.Encode(), nil, &pageResp); err != nil {
			return nil, err
		}
		for _, s := range pageResp.Sessions {
			all = append(all, domain.ExistingSession{
				SessionID: s.ID,
				Identity:  s.ExternalID,
				StartUTC:  s.StartTime.UTC(),
				EndUTC:    s.EndTime.UTC(),
			})
		}
		if len(pageResp.Sessions) < c.pageSize {
			return all, nil
		}
	}
}

type scheduleRequestPayload struct {
	Name        string      `json:"name"`
	FolderID    uuid.UUID   `json:"folderId"`
	IsBroadcast bool        `json:"isBroadcast"`
	StartTime   time.Time   `json:"startTime"`
	EndTime     time.Time   `json:"endTime"`
	RecorderIDs []uuid.UUID `json:"recorderIds"`
}

type scheduleResponsePayload struct {
	SessionID      uuid.UUID   `json:"sessionId"`
	ConflictsExist bool        `json:"conflictsExist"`
	ConflictingIDs []uuid.UUID `json:"conflictingSessionIds"`
	Message        string      `json:"message"`
}

// Schedule creates a recording. A 409 response is a conflict outcome, not an
// error: the conflicting session ids come back in the result.
func (c *Client) Schedule(ctx context.Context, req platform.ScheduleRequest) (domain.ScheduleResult, error) {
	payload := scheduleRequestPayload{
		Name:        req.Title,
		FolderID:    req.FolderID,
		IsBroadcast: req.Webcast,
		StartTime:   req.StartUTC,
		EndTime:     req.EndUTC,
		RecorderIDs: req.RecorderIDs,
	}

	var resp scheduleResponsePayload
	err := c.do(ctx, "sessions.schedule", http.MethodPost, "/sessions", payload, &resp)
	if err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) && remote.Status == http.StatusConflict {
			conflict := parseConflictBody(remote)
			return domain.ScheduleResult{
				Success:        false,
				ConflictingIDs: conflict.ConflictingIDs,
				Message:        conflict.Message,
			}, nil
		}
		return domain.ScheduleResult{}, err
	}
	if resp.ConflictsExist {
		return domain.ScheduleResult{
			Success:        false,
			ConflictingIDs: resp.ConflictingIDs,
			Message:        resp.Message,
		}, nil
	}
	return domain.ScheduleResult{Success: true, SessionID: resp.SessionID}, nil
}

// parseConflictBody decodes the conflict detail some deployments return as
// the error body of a 409 rather than a 2xx envelope. The raw body is used,
// not the extracted message, so the conflicting ids survive alongside it.
func parseConflictBody(remote *RemoteError) scheduleResponsePayload {
	var resp scheduleResponsePayload
	if json.Unmarshal(remote.Body, &resp) == nil && len(resp.ConflictingIDs) > 0 {
		if resp.Message == "" {
			resp.Message = remote.Message
		}
		return resp
	}
	return scheduleResponsePayload{Message: remote.Message}
}

func (c *Client) SetIdentityTag(ctx context.Context, sessionID uuid.UUID, identity string) error {
	body := map[string]string{"externalId": identity}
	return c.do(ctx, "sessions.tag", http.MethodPatch, "/sessions/"+sessionID.String(), body, nil)
}

func (c *Client) SetOwner(ctx context.Context, sessionID uuid.UUID, owner string) error {
	body := map[string]string{"owner": owner}
	return c.do(ctx, "sessions.owner", http.MethodPatch, "/sessions/"+sessionID.String(), body, nil)
}

func (c *Client) SetAvailabilityStart(ctx context.Context, sessionID uuid.UUID, startUTC time.Time) error {
	body := map[string]string{"availabilityStart": startUTC.Format(time.RFC3339)}
	return c.do(ctx, "sessions.availability", http.MethodPatch, "/sessions/"+sessionID.String(), body, nil)
}

// Delete removes sessions by id in one call.
func (c *Client) Delete(ctx context.Context, sessionIDs []uuid.UUID) error {
	body := map[string][]uuid.UUID{"sessionIds": sessionIDs}
	return c.do(ctx, "sessions.delete", http.MethodDelete, "/sessions", body, nil)
}

type folderPage struct {
	Folders []struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	} `json:"folders"`
}

// ListAll pages through the complete folder listing.
func (c *Client) ListAll(ctx context.Context) ([]domain.Folder, error) {
	var all []domain.Folder
	for page := 0; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(c.pageSize))

		var pageResp folderPage
		if err := c.do(ctx, "folders.list", http.MethodGet, "/folders?"+q.Encode(), nil, &pageResp); err != nil {
			return nil, err
		}
		for _, f := range pageResp.Folders {
			all = append(all, domain.Folder{ID: f.ID, Name: f.Name})
		}
		if len(pageResp.Folders) < c.pageSize {
			return all, nil
		}
	}
}

// GetByName looks a recorder up by its exact name.
func (c *Client) GetByName(ctx context.Context, name string) (domain.Recorder, error) {
	q := url.Values{}
	q.Set("name", name)

	var resp struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	}
	err := c.do(ctx, "recorders.get", http.MethodGet, "/recorders?"+q.Encode(), nil, &resp)
	if err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) && remote.Status == http.StatusNotFound {
			return domain.Recorder{}, fmt.Errorf("%q: %w", name, platform.ErrRecorderNotFound)
		}
		return domain.Recorder{}, err
	}
	return domain.Recorder{ID: resp.ID, Name: resp.Name}, nil
}

var _ platform.Client = (*Client)(nil)
