package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/stevobenno/panosync/internal/domain"
)

// APIProvider streams events from a timetable HTTP endpoint that serves a
// JSON array of events for a window.
type APIProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAPIProvider creates a provider for the endpoint at baseURL. The key is
// sent as a bearer token when non-empty.
func NewAPIProvider(baseURL, apiKey string, timeout time.Duration) *APIProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *APIProvider) Name() string { return "api" }

// eventPayload is the wire shape of one feed event.
type eventPayload struct {
	ActivityName    string `json:"activityName"`
	ModuleCode      string `json:"moduleCode"`
	ModuleName      string `json:"moduleName"`
	ModuleCRN       string `json:"moduleCrn"`
	StaffName       string `json:"staffName"`
	StartDate       string `json:"startDate"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	LocationName    string `json:"locationName"`
	RecorderName    string `json:"recorderName"`
	RecordingFactor int    `json:"recordingFactor"`
	StaffUserName   string `json:"staffUserName"`
}

// Stream fetches the window and decodes the response array element by
// element, so large windows never buffer fully.
func (p *APIProvider) Stream(ctx context.Context, fromUTC, toUTC time.Time) (<-chan Row, error) {
	q := url.Values{}
	q.Set("from", fromUTC.Format(time.RFC3339))
	q.Set("to", toUTC.Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/events?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	if _, err := dec.Token(); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	out := make(chan Row)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		for dec.More() {
			var payload eventPayload
			if err := dec.Decode(&payload); err != nil {
				// A decode failure mid-array means the rest of the response
				// is unreadable, not that one element was malformed.
				send(ctx, out, Row{Err: fmt.Errorf("decode feed event: %w", err), Terminal: true})
				return
			}
			ev, err := payload.toEvent()
			if err != nil {
				if !send(ctx, out, Row{Err: err}) {
					return
				}
				continue
			}
			if !send(ctx, out, Row{Event: ev}) {
				return
			}
		}
	}()
	return out, nil
}

func (p eventPayload) toEvent() (domain.SourceEvent, error) {
	startDate, err := time.ParseInLocation("2006-01-02", p.StartDate, time.UTC)
	if err != nil {
		return domain.SourceEvent{}, fmt.Errorf("start date %q: %w", p.StartDate, err)
	}
	startTime, err := parseClock(p.StartTime)
	if err != nil {
		return domain.SourceEvent{}, fmt.Errorf("start time: %w", err)
	}
	endTime, err := parseClock(p.EndTime)
	if err != nil {
		return domain.SourceEvent{}, fmt.Errorf("end time: %w", err)
	}
	return domain.SourceEvent{
		ActivityName:    p.ActivityName,
		ModuleCode:      p.ModuleCode,
		ModuleName:      p.ModuleName,
		ModuleCRN:       p.ModuleCRN,
		StaffName:       p.StaffName,
		StartDate:       startDate,
		StartTime:       startTime,
		EndTime:         endTime,
		LocationName:    p.LocationName,
		RecorderName:    p.RecorderName,
		RecordingFactor: p.RecordingFactor,
		StaffUserName:   p.StaffUserName,
	}, nil
}

var _ Provider = (*APIProvider)(nil)
