package yaclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/YaCodeDev/GoVKTeamsBot/yaclient"
	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "001.1234567890.0987654321:1000001"

func newTestClient(t *testing.T, handler http.HandlerFunc) *yaclient.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return yaclient.NewClient(&yaclient.Config{
		Token:      testToken,
		APIURL:     server.URL,
		Timeout:    5 * time.Second,
		RetryOn5xx: 2,
	}, nil)
}

func TestClient_IDComesFromToken(t *testing.T) {
	t.Parallel()

	client := yaclient.NewClient(&yaclient.Config{Token: testToken}, nil)

	assert.Equal(t, "1000001", client.ID())
}

func TestClient_GetEventsAdvancesCursor(t *testing.T) {
	t.Parallel()

	var lastEventID atomic.Value

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "/events/get", r.URL.Path)
		require.Equal(t, testToken, r.FormValue("token"))

		lastEventID.Store(r.FormValue("lastEventId"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"events": []map[string]any{
				{"eventId": 7, "type": "newMessage", "payload": map[string]any{"msgId": "m7"}},
				{"eventId": 9, "type": "newMessage", "payload": map[string]any{"msgId": "m9"}},
			},
		})
	})

	ctx := context.Background()

	updates, err := client.GetEvents(ctx, 30*time.Second)

	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, yatypes.EventNewMessage, updates[0].Type)
	assert.Equal(t, "0", lastEventID.Load())

	_, err = client.GetEvents(ctx, 30*time.Second)

	require.NoError(t, err)
	assert.Equal(t, "9", lastEventID.Load())
}

func TestClient_LongPollOutlivesRequestTimeout(t *testing.T) {
	t.Parallel()

	// The server holds the poll open well past the base request timeout but
	// inside the poll time; the client deadline must not fire before it
	// answers.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)

		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "events": []any{}})
	}))
	t.Cleanup(server.Close)

	client := yaclient.NewClient(&yaclient.Config{
		Token:   testToken,
		APIURL:  server.URL,
		Timeout: 100 * time.Millisecond,
	}, nil)

	updates, err := client.GetEvents(context.Background(), time.Second)

	require.NoError(t, err)
	assert.Empty(t, updates)

	// The same slow server does trip the base timeout on a plain send: the
	// margin applies to the long poll only.
	_, err = client.SendText(context.Background(), "chat1", "hello", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_GetEventsTreatsPersistent5xxAsEmptyBatch(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	})

	updates, err := client.GetEvents(context.Background(), time.Second)

	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestClient_SendText(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "/messages/sendText", r.URL.Path)
		assert.Equal(t, "chat1", r.FormValue("chatId"))
		assert.Equal(t, "pong", r.FormValue("text"))
		assert.Equal(t, "m1", r.FormValue("replyMsgId"))

		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "msgId": "m2"})
	})

	msgID, err := client.SendText(context.Background(), "chat1", "pong", &yaclient.SendTextOptions{
		ReplyMsgID: "m1",
	})

	require.NoError(t, err)
	assert.Equal(t, "m2", msgID)
}

func TestClient_APIErrorCarriesDescription(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"description": "chat not found",
		})
	})

	_, err := client.SendText(context.Background(), "missing", "hello", nil)

	require.Error(t, err)

	var apiErr *yaclient.APIError

	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "chat not found", apiErr.Description)
	assert.Equal(t, "messages/sendText", apiErr.Endpoint)
}

func TestClient_RetriesTransient5xx(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "msgId": "m1"})
	})

	msgID, err := client.SendText(context.Background(), "chat1", "hello", nil)

	require.NoError(t, err)
	assert.Equal(t, "m1", msgID)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_AnswerCallbackQuery(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "/messages/answerCallbackQuery", r.URL.Path)
		assert.Equal(t, "q1", r.FormValue("queryId"))
		assert.Equal(t, "done", r.FormValue("text"))
		assert.Equal(t, "true", r.FormValue("showAlert"))

		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	err := client.AnswerCallbackQuery(context.Background(), "q1", "done", true)

	require.NoError(t, err)
}

func TestClient_GetMe(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/self/get", r.URL.Path)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"userId": "1000001",
			"nick":   "helpdesk_bot",
		})
	})

	info, err := client.GetMe(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "1000001", info.UserID)
	assert.Equal(t, "helpdesk_bot", info.Nick)
}

func TestClient_RateLimiterSpacesRequests(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	t.Cleanup(server.Close)

	client := yaclient.NewClient(&yaclient.Config{
		Token:     testToken,
		APIURL:    server.URL,
		RateLimit: 20,
	}, nil)

	ctx := context.Background()

	start := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, client.AnswerCallbackQuery(ctx, "q1", "", false))
	}

	// 20 rps means at least 50ms between requests, so three take >= 100ms.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
