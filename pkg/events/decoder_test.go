package events_test

import (
	"io"
	"strings"
	"testing"

	"github.com/langflow-ai/flowbuild/pkg/domain"
	"github.com/langflow-ai/flowbuild/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLine_VerticesSorted(t *testing.T) {
	line := `{"event": "vertices_sorted", "data": {"ids": ["A", "B"], "to_run": ["A", "B", "C"]}}`

	ev, err := events.DecodeLine([]byte(line))
	require.NoError(t, err)

	sorted, ok := ev.(domain.VerticesSortedEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, sorted.IDs)
	assert.Equal(t, []string{"A", "B", "C"}, sorted.ToRun)
}

func TestDecodeLine_EndVertex_Valid(t *testing.T) {
	line := `{"event": "end_vertex", "data": {"build_data": {
		"id": "A",
		"valid": true,
		"params": "ok",
		"next_vertices_ids": ["B"],
		"inactivated_vertices": [],
		"timedelta": 0.25,
		"data": {"outputs": {"text": {"message": "hello", "type": "text"}}}
	}}}`

	ev, err := events.DecodeLine([]byte(line))
	require.NoError(t, err)

	end, ok := ev.(domain.EndVertexEvent)
	require.True(t, ok)
	assert.Equal(t, "A", end.Result.ID)
	assert.True(t, end.Result.Valid)
	assert.Equal(t, []string{"B"}, end.Result.NextVertices)
	require.Len(t, end.Result.Outputs["text"], 1)
	assert.Equal(t, "hello", end.Result.Outputs["text"][0].Message)
	assert.Empty(t, end.Result.ErrorMessages())
}

func TestDecodeLine_EndVertex_ErrorLogExtraction(t *testing.T) {
	// A single log entry and a list must both normalize; nested
	// errorMessage objects must surface their text.
	line := `{"event": "end_vertex", "data": {"build_data": {
		"id": "B",
		"valid": false,
		"data": {"outputs": {
			"output": {"message": {"errorMessage": "division by zero", "stackTrace": "..."}, "type": "error"},
			"logs": [{"message": "step 1", "type": "text"}, {"message": "boom", "type": "error"}]
		}}
	}}}`

	ev, err := events.DecodeLine([]byte(line))
	require.NoError(t, err)

	end := ev.(domain.EndVertexEvent)
	assert.False(t, end.Result.Valid)
	msgs := end.Result.ErrorMessages()
	assert.ElementsMatch(t, []string{"division by zero", "boom"}, msgs)
}

func TestDecodeLine_Messages(t *testing.T) {
	add := `{"event": "add_message", "data": {"id": "m1", "text": "hi", "sender": "Machine", "session_id": "s1"}}`
	ev, err := events.DecodeLine([]byte(add))
	require.NoError(t, err)
	msg := ev.(domain.AddMessageEvent).Message
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "Machine", msg.Sender)

	tok := `{"event": "token", "data": {"id": "m1", "chunk": " there"}}`
	ev, err = events.DecodeLine([]byte(tok))
	require.NoError(t, err)
	token := ev.(domain.TokenEvent)
	assert.Equal(t, "m1", token.MessageID)
	assert.Equal(t, " there", token.Chunk)

	rem := `{"event": "remove_message", "data": {"id": "m1"}}`
	ev, err = events.DecodeLine([]byte(rem))
	require.NoError(t, err)
	assert.Equal(t, "m1", ev.(domain.RemoveMessageEvent).ID)
}

func TestDecodeLine_Error(t *testing.T) {
	withSource := `{"event": "error", "data": {"id": "m2", "text": "component exploded", "source": "B"}}`
	ev, err := events.DecodeLine([]byte(withSource))
	require.NoError(t, err)
	errEvent := ev.(domain.ErrorEvent)
	assert.Equal(t, "B", errEvent.Source)
	assert.Equal(t, "component exploded", errEvent.Message.Text)
	assert.True(t, errEvent.Message.IsError)

	withoutSource := `{"event": "error", "data": {"text": "graph failed"}}`
	ev, err = events.DecodeLine([]byte(withoutSource))
	require.NoError(t, err)
	assert.Empty(t, ev.(domain.ErrorEvent).Source)
}

func TestDecodeLine_EndAndUnknown(t *testing.T) {
	ev, err := events.DecodeLine([]byte(`{"event": "end", "data": {}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.EventEnd, ev.EventType())

	_, err = events.DecodeLine([]byte(`{"event": "telemetry", "data": {}}`))
	assert.Error(t, err)

	_, err = events.DecodeLine([]byte(`not json`))
	assert.Error(t, err)
}

func TestScanner_StreamWithBlankLines(t *testing.T) {
	stream := strings.Join([]string{
		`{"event": "vertices_sorted", "data": {"ids": ["A"], "to_run": ["A"]}}`,
		``,
		`{"event": "build_start", "data": {"id": "A"}}`,
		`{"event": "build_end", "data": {"id": "A"}}`,
		`{"event": "end", "data": {}}`,
	}, "\n")

	sc := events.NewScanner(strings.NewReader(stream))

	var types []domain.EventType
	for {
		ev, err := sc.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		types = append(types, ev.EventType())
	}
	assert.Equal(t, []domain.EventType{
		domain.EventVerticesSorted,
		domain.EventBuildStart,
		domain.EventBuildEnd,
		domain.EventEnd,
	}, types)
}

func TestScanner_All_EmptyPollIsNotAnError(t *testing.T) {
	sc := events.NewScanner(strings.NewReader("\n\n"))
	evs, err := sc.All()
	assert.NoError(t, err)
	assert.Empty(t, evs)
}
