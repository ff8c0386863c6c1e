package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stevobenno/panosync/internal/domain"
)

// Column names recognised in the export header. Matching is case-insensitive
// and ignores spaces and underscores, so "Module CRN", "module_crn" and
// "ModuleCRN" all bind to the same field.
const (
	colActivityName    = "activityname"
	colModuleCode      = "modulecode"
	colModuleName      = "modulename"
	colModuleCRN       = "modulecrn"
	colStaffName       = "staffname"
	colStartDate       = "startdate"
	colStartTime       = "starttime"
	colEndTime         = "endtime"
	colLocationName    = "locationname"
	colRecorderName    = "recordername"
	colRecordingFactor = "recordingfactor"
	colStaffUserName   = "staffusername"
)

// Date layouts accepted in the export, tried in order. The feed is
// day-first.
var csvDateLayouts = []string{"02-01-2006", "02/01/2006", "02.01.2006", "2006-01-02"}

// CSVProvider streams events from a timetable export file.
type CSVProvider struct {
	path string
}

// NewCSVProvider creates a provider reading the export at path.
func NewCSVProvider(path string) *CSVProvider {
	return &CSVProvider{path: path}
}

func (p *CSVProvider) Name() string { return "csv" }

// Stream opens the file and streams records. The window arguments are
// ignored: an export file is already scoped by whoever produced it.
func (p *CSVProvider) Stream(ctx context.Context, fromUTC, toUTC time.Time) (<-chan Row, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open export %s: %w", p.path, err)
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read export header: %w", err)
	}
	cols := indexHeader(header)
	if _, ok := cols[colStartDate]; !ok {
		f.Close()
		return nil, fmt.Errorf("export header has no %s column", colStartDate)
	}

	out := make(chan Row)
	go func() {
		defer close(out)
		defer f.Close()

		line := 1
		for {
			record, err := r.Read()
			if err == io.EOF {
				return
			}
			line++
			if err != nil {
				// A ParseError is one bad line and the reader can carry on.
				// Anything else is the underlying file failing, and Read
				// would return it forever, so stop the stream.
				var parseErr *csv.ParseError
				if !errors.As(err, &parseErr) {
					send(ctx, out, Row{Err: fmt.Errorf("read export: %w", err), Terminal: true})
					return
				}
				if !send(ctx, out, Row{Err: fmt.Errorf("line %d: %w", line, err)}) {
					return
				}
				continue
			}

			ev, err := parseRecord(cols, record)
			if err != nil {
				if !send(ctx, out, Row{Err: fmt.Errorf("line %d: %w", line, err)}) {
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

func send(ctx context.Context, out chan<- Row, row Row) bool {
	select {
	case out <- row:
		return true
	case <-ctx.Done():
		return false
	}
}

func indexHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[normalizeColumn(name)] = i
	}
	return cols
}

func normalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "")
	name = strings.ReplaceAll(name, "_", "")
	return name
}

func parseRecord(cols map[string]int, record []string) (domain.SourceEvent, error) {
	field := func(col string) string {
		i, ok := cols[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	startDate, err := parseDate(field(colStartDate))
	if err != nil {
		return domain.SourceEvent{}, err
	}
	startTime, err := parseClock(field(colStartTime))
	if err != nil {
		return domain.SourceEvent{}, fmt.Errorf("start time: %w", err)
	}
	endTime, err := parseClock(field(colEndTime))
	if err != nil {
		return domain.SourceEvent{}, fmt.Errorf("end time: %w", err)
	}

	factor := 0
	if raw := field(colRecordingFactor); raw != "" {
		factor, err = strconv.Atoi(raw)
		if err != nil {
			return domain.SourceEvent{}, fmt.Errorf("recording factor %q: %w", raw, err)
		}
	}

	return domain.SourceEvent{
		ActivityName:    field(colActivityName),
		ModuleCode:      field(colModuleCode),
		ModuleName:      field(colModuleName),
		ModuleCRN:       field(colModuleCRN),
		StaffName:       field(colStaffName),
		StartDate:       startDate,
		StartTime:       startTime,
		EndTime:         endTime,
		LocationName:    field(colLocationName),
		RecorderName:    field(colRecorderName),
		RecordingFactor: factor,
		StaffUserName:   field(colStaffUserName),
	}, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing start date")
	}
	for _, layout := range csvDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

// parseClock parses "HH:mm" or "HH:mm:ss" into an offset from midnight.
func parseClock(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, fmt.Errorf("missing value")
	}
	parts := strings.Split(raw, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("unparseable clock value %q", raw)
	}
	var hms [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("unparseable clock value %q", raw)
		}
		hms[i] = n
	}
	if hms[0] > 23 || hms[1] > 59 || hms[2] > 59 {
		return 0, fmt.Errorf("clock value %q out of range", raw)
	}
	return time.Duration(hms[0])*time.Hour +
		time.Duration(hms[1])*time.Minute +
		time.Duration(hms[2])*time.Second, nil
}

var _ Provider = (*CSVProvider)(nil)
