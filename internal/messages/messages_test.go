package messages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/paperflow/internal/jsoncodec"
)

func TestOcrCommand_CreatedAtOptional(t *testing.T) {
	// Payload from a producer released before CreatedAt existed.
	var cmd OcrCommand
	err := jsoncodec.Unmarshal([]byte(`{"jobId":"job-1","fileName":"a.pdf","filePath":"docs/a.pdf"}`), &cmd)
	require.NoError(t, err)
	assert.Equal(t, "job-1", cmd.JobID)
	assert.Nil(t, cmd.CreatedAt)

	// And from a current one.
	err = jsoncodec.Unmarshal([]byte(`{"jobId":"job-2","createdAt":"2026-08-01T12:00:00Z"}`), &cmd)
	require.NoError(t, err)
	require.NotNil(t, cmd.CreatedAt)
	assert.Equal(t, 2026, cmd.CreatedAt.Year())
}

func TestOcrEvent_Completed(t *testing.T) {
	assert.True(t, OcrEvent{Status: StatusCompleted}.Completed())
	assert.False(t, OcrEvent{Status: StatusFailed}.Completed())
	assert.False(t, OcrEvent{Status: "completed"}.Completed(), "status comparison is exact")
	assert.False(t, OcrEvent{}.Completed())
}

func TestGenAICommand_HasText(t *testing.T) {
	assert.True(t, GenAICommand{Text: "content"}.HasText())
	assert.False(t, GenAICommand{Text: ""}.HasText())
	assert.False(t, GenAICommand{Text: " \t\n"}.HasText())
}

func TestGenAIEvent_Outcomes(t *testing.T) {
	now := time.Now().UTC()

	success := NewGenAISuccess("doc-1", "a summary", now)
	assert.True(t, success.Succeeded())
	assert.Nil(t, success.ErrorMessage)

	failure := NewGenAIFailure("doc-1", "model unavailable", now)
	assert.False(t, failure.Succeeded())
	require.NotNil(t, failure.ErrorMessage)
	assert.Equal(t, "model unavailable", *failure.ErrorMessage)
	assert.Nil(t, failure.Summary)

	emptySummary := NewGenAISuccess("doc-1", "", now)
	assert.False(t, emptySummary.Succeeded(), "an empty summary is not a success")
}

func TestGenAIEvent_WireShape(t *testing.T) {
	failure := NewGenAIFailure("doc-1", "boom", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	data, err := jsoncodec.Marshal(failure)
	require.NoError(t, err)

	// Summary stays present as null on failure; errorMessage is omitted on
	// success rather than sent as null.
	assert.Contains(t, string(data), `"summary":null`)
	assert.Contains(t, string(data), `"errorMessage":"boom"`)

	success, err := jsoncodec.Marshal(NewGenAISuccess("doc-1", "s", time.Now()))
	require.NoError(t, err)
	assert.NotContains(t, string(success), "errorMessage")
}
