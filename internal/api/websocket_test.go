package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/ViralGen/internal/models"
)

func dialGenerate(t *testing.T, s testServer) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Engine)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/generate"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readEvents(t *testing.T, conn *websocket.Conn) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	for {
		var ev StreamEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return events
		}
		events = append(events, ev)
	}
}

func TestGenerateWebSocket_StreamsChunksThenResult(t *testing.T) {
	s := newTestServer(t, &scriptedProvider{text: wellFormed})
	conn := dialGenerate(t, s)

	require.NoError(t, conn.WriteJSON(validForm()))
	events := readEvents(t, conn)
	require.Len(t, events, 4)

	var text strings.Builder
	for _, ev := range events[:3] {
		assert.Equal(t, EventChunk, ev.Type)
		text.WriteString(ev.Text)
	}
	assert.Equal(t, wellFormed, text.String())

	last := events[3]
	require.Equal(t, EventResult, last.Type)
	require.NotNil(t, last.Data)
	assert.Equal(t, "Tweet!", last.Data.Result.Get(models.PlatformXTwitter, "tweet"))
	assert.Len(t, last.Data.Groups, 3)
}

func TestGenerateWebSocket_ValidationError(t *testing.T) {
	s := newTestServer(t, &scriptedProvider{text: wellFormed})
	conn := dialGenerate(t, s)

	form := validForm()
	form.Vibe = "Sad"
	require.NoError(t, conn.WriteJSON(form))

	events := readEvents(t, conn)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, ErrorInvalidVibe, events[0].Error.Code)
	assert.Equal(t, `unknown vibe "Sad"`, events[0].Error.Message)
}

func TestGenerateWebSocket_TransportError(t *testing.T) {
	s := newTestServer(t, &scriptedProvider{err: &models.TransportError{
		Kind: models.TransportHTTPStatus, StatusCode: 500, Body: "internal",
	}})
	conn := dialGenerate(t, s)

	require.NoError(t, conn.WriteJSON(validForm()))
	events := readEvents(t, conn)
	require.Len(t, events, 1)
	assert.Equal(t, ErrorTransportFailed, events[0].Error.Code)
	assert.Equal(t, "generation API error (500): internal", events[0].Error.Message)
}

func TestWebSocketManager_CloseAll(t *testing.T) {
	s := newTestServer(t, &scriptedProvider{text: wellFormed})
	conn := dialGenerate(t, s)

	require.Eventually(t, func() bool { return s.Handler.WebSocket.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	s.Handler.WebSocket.CloseAll()
	assert.Equal(t, 0, s.Handler.WebSocket.Count())

	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
