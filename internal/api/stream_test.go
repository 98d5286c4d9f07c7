package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journey-simulator/internal/fanout"
	"journey-simulator/internal/sim"
)

func dialWS(t *testing.T, env *testEnv, journeyID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/api/journeys/" + journeyID + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebSocketStream(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/journeys", `{"journeyId":"j1","routeId":"r1"}`)
	conn := dialWS(t, env, "j1")

	first := readFrame(t, conn)
	assert.Equal(t, fanout.KindUpdate, first.Event)
	assert.Equal(t, "j1", first.Data.JourneyID)

	env.do(t, http.MethodPost, "/api/journeys/j1/advance", `{"elapsedSeconds":5}`)
	next := readFrame(t, conn)
	assert.Equal(t, fanout.KindUpdate, next.Event)
	assert.Equal(t, 1, next.Data.CurrentWaypointIndex)

	env.do(t, http.MethodPost, "/api/journeys/j1/advance", `{"elapsedSeconds":1000}`)
	last := readFrame(t, conn)
	assert.Equal(t, fanout.KindCompleted, last.Event)
	assert.Equal(t, sim.StatusCompleted, last.Data.Status)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWebSocketCompletedJourney(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/journeys", `{"journeyId":"j1","routeId":"r1"}`)
	env.do(t, http.MethodPost, "/api/journeys/j1/advance", `{"elapsedSeconds":1000}`)

	conn := dialWS(t, env, "j1")
	f := readFrame(t, conn)
	assert.Equal(t, fanout.KindCompleted, f.Event)
	assert.Equal(t, 100.0, f.Data.ProgressPercentage)
	assert.Eventually(t, func() bool { return env.hub.SubscriberCount("j1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketClientCloseUnsubscribes(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/journeys", `{"journeyId":"j1"}`)
	other := dialWS(t, env, "j1")
	conn := dialWS(t, env, "j1")
	readFrame(t, other)
	readFrame(t, conn)
	require.Equal(t, 2, env.hub.SubscriberCount("j1"))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	conn.Close()

	assert.Eventually(t, func() bool { return env.hub.SubscriberCount("j1") == 1 }, 2*time.Second, 10*time.Millisecond)

	env.do(t, http.MethodPost, "/api/journeys/j1/advance", `{"elapsedSeconds":1}`)
	assert.Equal(t, fanout.KindUpdate, readFrame(t, other).Event)
}

func TestWebSocketStoppedJourneyCloses(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/journeys", `{"journeyId":"j1"}`)
	conn := dialWS(t, env, "j1")
	readFrame(t, conn)

	env.do(t, http.MethodDelete, "/api/journeys/j1", "")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, string(fanout.ReasonStopped), ce.Text)
}
