package checkrun

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = `repository,name,status,conclusion,started_at,completed_at,url
org/api,build,COMPLETED,SUCCESS,2023-04-01T12:00:00Z,2023-04-01T12:05:00Z,https://ci.example.com/1
org/api,lint,COMPLETED,FAILURE,2023-04-01T12:01:00Z,2023-04-01T12:02:00Z,
org/web,build,IN_PROGRESS,,2023-04-01T12:03:00Z,,
`

// TestLoadCSV_Basic verifies parsing a well-formed CSV.
func TestLoadCSV_Basic(t *testing.T) {
	t.Parallel()

	runs, err := LoadCSV(strings.NewReader(testCSV))
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, "org/api", runs[0].Repository)
	assert.Equal(t, "build", runs[0].Name)
	assert.Equal(t, StatusCompleted, runs[0].Status)
	assert.Equal(t, ConclusionSuccess, runs[0].Conclusion)
	assert.Equal(t, "https://ci.example.com/1", runs[0].URL)
	assert.Equal(t, time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC), runs[0].StartedAt)
	assert.Equal(t, 5*time.Minute, runs[0].Elapsed())

	// Missing completion timestamp leaves the zero time.
	assert.True(t, runs[2].CompletedAt.IsZero())
	assert.False(t, runs[2].Completed())
}

// TestLoadCSV_HeaderCaseInsensitive verifies header matching ignores case.
func TestLoadCSV_HeaderCaseInsensitive(t *testing.T) {
	t.Parallel()

	input := "Repository,Name,Status,Started_At,Completed_At\n" +
		"org/api,build,COMPLETED,2023-04-01T12:00:00Z,2023-04-01T12:05:00Z\n"

	runs, err := LoadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "org/api", runs[0].Repository)
}

// TestLoadCSV_SpaceSeparatedTimestamps verifies the secondary layout.
func TestLoadCSV_SpaceSeparatedTimestamps(t *testing.T) {
	t.Parallel()

	input := "repository,name,status,started_at,completed_at\n" +
		"org/api,build,COMPLETED,2023-04-01 12:00:00,2023-04-01 12:05:00\n"

	runs, err := LoadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 5*time.Minute, runs[0].Elapsed())
}

// TestLoadCSV_MissingColumn verifies required column enforcement.
func TestLoadCSV_MissingColumn(t *testing.T) {
	t.Parallel()

	input := "repository,name,started_at,completed_at\norg/api,build,2023-04-01T12:00:00Z,2023-04-01T12:05:00Z\n"

	_, err := LoadCSV(strings.NewReader(input))
	require.ErrorIs(t, err, ErrBadHeader)
}

// TestLoadCSV_BadTimestamp verifies timestamp errors carry the line number.
func TestLoadCSV_BadTimestamp(t *testing.T) {
	t.Parallel()

	input := "repository,name,status,started_at,completed_at\norg/api,build,COMPLETED,yesterday,2023-04-01T12:05:00Z\n"

	_, err := LoadCSV(strings.NewReader(input))
	require.ErrorIs(t, err, ErrBadTimestamp)
	assert.Contains(t, err.Error(), "line 2")
}

// TestLoadCSV_Empty verifies empty input yields no runs.
func TestLoadCSV_Empty(t *testing.T) {
	t.Parallel()

	runs, err := LoadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, runs)
}

// TestLoadJSONLines verifies newline-delimited JSON parsing.
func TestLoadJSONLines(t *testing.T) {
	t.Parallel()

	input := `{"repository":"org/api","name":"build","status":"COMPLETED","started_at":"2023-04-01T12:00:00Z","completed_at":"2023-04-01T12:05:00Z"}
{"repository":"org/web","name":"test","status":"FAILURE","started_at":"2023-04-01T12:01:00Z","completed_at":"2023-04-01T12:03:00Z"}
`

	runs, err := LoadJSONLines(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "org/web", runs[1].Repository)
	assert.True(t, runs[1].Failed())
}

// TestLoadJSONLines_Malformed verifies JSON errors propagate.
func TestLoadJSONLines_Malformed(t *testing.T) {
	t.Parallel()

	_, err := LoadJSONLines(strings.NewReader("{not json}"))
	require.Error(t, err)
}
