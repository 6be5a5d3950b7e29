package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/relaydesk/courier/pkg/robusthttp"
)

func testClient(host string) *Client {
	return &Client{
		Host:   host,
		Token:  "12345:TESTTOKEN",
		Client: robusthttp.TestingHTTPClient(),
	}
}

func TestClientSendMessage(t *testing.T) {
	assert := assert.New(t)

	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.NoError(json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"message_id":77,"chat":{"id":1001,"type":"private"},"text":"hi"}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	msg, err := c.SendMessage(context.Background(), 1001, "hi")
	require.NoError(t, err)

	assert.Equal("/bot12345:TESTTOKEN/sendMessage", gotPath)
	assert.Equal(float64(1001), gotBody["chat_id"])
	assert.Equal("hi", gotBody["text"])
	assert.Equal(77, msg.MessageID)
	assert.Equal(int64(1001), msg.Chat.ID)
}

func TestClientSendReply(t *testing.T) {
	assert := assert.New(t)

	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"message_id":78,"chat":{"id":1001,"type":"private"},"text":"hi"}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	ctx := context.Background()

	_, err := c.SendReply(ctx, 1001, 41, "hi")
	require.NoError(t, err)
	_, err = c.SendMessage(ctx, 1001, "hi")
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Equal(float64(41), bodies[0]["reply_to_message_id"])
	_, quoted := bodies[1]["reply_to_message_id"]
	assert.False(quoted, "plain sends must not carry a quote")
}

func TestClientRateLimit(t *testing.T) {
	assert := assert.New(t)

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot"}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.Limiter = rate.NewLimiter(rate.Every(50*time.Millisecond), 1)

	start := time.Now()
	_, err := c.GetMe(context.Background())
	require.NoError(t, err)
	_, err = c.GetMe(context.Background())
	require.NoError(t, err)

	// the burst covers the first call; the second waits for a token
	assert.GreaterOrEqual(time.Since(start), 50*time.Millisecond)
	assert.EqualValues(2, atomic.LoadInt32(&hits))
}

func TestClientAPIError(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.SendMessage(context.Background(), 42, "hi")
	require.Error(t, err)

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(http.StatusBadRequest, te.StatusCode)
	assert.False(te.IsThrottled())

	var ae *APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(400, ae.Code)
	assert.Equal("Bad Request: chat not found", ae.Description)
}

func TestClientFloodControl(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 5","parameters":{"retry_after":5}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.SendMessage(context.Background(), 42, "hi")
	require.Error(t, err)

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.True(te.IsThrottled())

	var ae *APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(5*time.Second, ae.RetryAfter)
}

func TestClientGetUpdates(t *testing.T) {
	assert := assert.New(t)

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/bot12345:TESTTOKEN/getUpdates", r.URL.Path)
		assert.NoError(json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":500,"message":{"message_id":1,"chat":{"id":9,"type":"private"},"text":"a"}},
			{"update_id":501,"message":{"message_id":2,"chat":{"id":9,"type":"private"},"text":"b"}}
		]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	updates, err := c.GetUpdates(context.Background(), 500, time.Second)
	require.NoError(t, err)

	assert.Equal(float64(500), gotBody["offset"])
	assert.Equal(float64(1), gotBody["timeout"])
	require.Len(t, updates, 2)
	assert.Equal(int64(500), updates[0].UpdateID)
	assert.Equal("b", updates[1].Message.Text)
}

func TestClientCopyMessageCaption(t *testing.T) {
	assert := assert.New(t)

	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"message_id":5}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	ctx := context.Background()

	require.NoError(t, c.CopyMessage(ctx, 1, 2, 33, nil))
	caption := "override"
	require.NoError(t, c.CopyMessage(ctx, 1, 2, 34, &caption))

	require.Len(t, bodies, 2)
	_, hasCaption := bodies[0]["caption"]
	assert.False(hasCaption, "nil caption must be omitted so the original is kept")
	assert.Equal("override", bodies[1]["caption"])
	assert.Equal(float64(33), bodies[0]["message_id"])
}

func TestClientUndecodableError(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.GetMe(context.Background())
	require.Error(t, err)

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(http.StatusBadGateway, te.StatusCode)

	var ae *APIError
	assert.False(errors.As(err, &ae))
}
