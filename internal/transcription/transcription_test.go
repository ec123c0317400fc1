package transcription_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sttbatch/internal/transcription"
)

func TestParseStateRoundTrip(t *testing.T) {
	for _, state := range []transcription.State{
		transcription.StateWaiting,
		transcription.StateProcessing,
		transcription.StateFailed,
		transcription.StateCompleted,
	} {
		parsed, err := transcription.ParseState(" " + state.String() + " ")
		require.NoError(t, err)
		assert.Equal(t, state, parsed)
	}
}

func TestParseStateRejectsUnknown(t *testing.T) {
	state, err := transcription.ParseState("queued")
	assert.Error(t, err)
	assert.Equal(t, transcription.StateUnknown, state)
	assert.Equal(t, "unknown", state.String())
}

func TestParseStateIsCaseInsensitive(t *testing.T) {
	state, err := transcription.ParseState("COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, transcription.StateCompleted, state)
}

func TestCompletedCarriesTranscript(t *testing.T) {
	status := transcription.Completed("hello")
	assert.Equal(t, transcription.StateCompleted, status.State)
	assert.Equal(t, "hello", status.Transcript)
	assert.Empty(t, transcription.Processing().Transcript)
}
