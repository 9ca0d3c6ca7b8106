package checkrun

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Loader errors.
var (
	// ErrBadHeader is returned when a CSV input lacks a required column.
	ErrBadHeader = errors.New("checkrun: missing required CSV column")

	// ErrBadTimestamp is returned when a timestamp cell cannot be parsed.
	ErrBadTimestamp = errors.New("checkrun: malformed timestamp")
)

// CSV column names. Header matching is case-insensitive; the url and
// conclusion columns are optional.
const (
	columnRepository = "repository"
	columnName       = "name"
	columnStatus     = "status"
	columnConclusion = "conclusion"
	columnStartedAt  = "started_at"
	columnCompleted  = "completed_at"
	columnURL        = "url"
)

// LoadCSV reads check runs from CSV input with a header row. Timestamps are
// RFC 3339 or epoch-style "2006-01-02 15:04:05"; empty timestamp cells leave
// the zero time, which marks the run as not completed.
func LoadCSV(r io.Reader) ([]CheckRun, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("checkrun: read CSV header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var runs []CheckRun

	for line := 2; ; line++ {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return nil, fmt.Errorf("checkrun: read CSV line %d: %w", line, readErr)
		}

		run, parseErr := parseRecord(record, cols)
		if parseErr != nil {
			return nil, fmt.Errorf("line %d: %w", line, parseErr)
		}

		runs = append(runs, run)
	}

	return runs, nil
}

// LoadJSONLines reads check runs from newline-delimited JSON objects.
func LoadJSONLines(r io.Reader) ([]CheckRun, error) {
	decoder := json.NewDecoder(r)

	var runs []CheckRun

	for {
		var run CheckRun

		err := decoder.Decode(&run)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("checkrun: parse JSON input: %w", err)
		}

		runs = append(runs, run)
	}

	return runs, nil
}

// columnIndexes maps the known columns to their positions in the header.
type columnIndexes struct {
	repository int
	name       int
	status     int
	conclusion int
	startedAt  int
	completed  int
	url        int
}

// mapColumns resolves header names to indexes. Returns ErrBadHeader when a
// required column is absent.
func mapColumns(header []string) (columnIndexes, error) {
	cols := columnIndexes{
		repository: -1,
		name:       -1,
		status:     -1,
		conclusion: -1,
		startedAt:  -1,
		completed:  -1,
		url:        -1,
	}

	for i, raw := range header {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case columnRepository:
			cols.repository = i
		case columnName:
			cols.name = i
		case columnStatus:
			cols.status = i
		case columnConclusion:
			cols.conclusion = i
		case columnStartedAt:
			cols.startedAt = i
		case columnCompleted:
			cols.completed = i
		case columnURL:
			cols.url = i
		}
	}

	for _, required := range []struct {
		name string
		idx  int
	}{
		{columnRepository, cols.repository},
		{columnName, cols.name},
		{columnStatus, cols.status},
		{columnStartedAt, cols.startedAt},
		{columnCompleted, cols.completed},
	} {
		if required.idx < 0 {
			return columnIndexes{}, fmt.Errorf("%w: %s", ErrBadHeader, required.name)
		}
	}

	return cols, nil
}

// parseRecord converts one CSV record into a CheckRun.
func parseRecord(record []string, cols columnIndexes) (CheckRun, error) {
	run := CheckRun{
		Repository: cell(record, cols.repository),
		Name:       cell(record, cols.name),
		Status:     strings.ToUpper(cell(record, cols.status)),
		Conclusion: strings.ToUpper(cell(record, cols.conclusion)),
		URL:        cell(record, cols.url),
	}

	startedAt, err := parseTimestamp(cell(record, cols.startedAt))
	if err != nil {
		return CheckRun{}, err
	}

	completedAt, err := parseTimestamp(cell(record, cols.completed))
	if err != nil {
		return CheckRun{}, err
	}

	run.StartedAt = startedAt
	run.CompletedAt = completedAt

	return run, nil
}

// cell returns the record value at idx, or "" for absent optional columns.
func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}

	return strings.TrimSpace(record[idx])
}

// Accepted timestamp layouts.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses a timestamp cell. Empty cells yield the zero time.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, value)
		if err == nil {
			return ts.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, value)
}
