package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/bingobot/core/telegram/keyboard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:TEST-token_abc"

type fakeAPI struct {
	mu       sync.Mutex
	requests map[string][]string
	handlers map[string]func(w http.ResponseWriter, body string)
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{
		requests: make(map[string][]string),
		handlers: make(map[string]func(w http.ResponseWriter, body string)),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := "/bot" + testToken + "/"
		if !strings.HasPrefix(r.URL.Path, prefix) {
			http.NotFound(w, r)
			return
		}
		method := strings.TrimPrefix(r.URL.Path, prefix)
		data, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.requests[method] = append(api.requests[method], string(data))
		h := api.handlers[method]
		api.mu.Unlock()
		if h == nil {
			_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
			return
		}
		h(w, string(data))
	}))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) handle(method string, h func(w http.ResponseWriter, body string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[method] = h
}

func (a *fakeAPI) bodies(method string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.requests[method]...)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Options{Token: testToken, APIURL: srv.URL + "/", HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Options{Token: "  "})
	require.Error(t, err)
}

func TestFetchDecodesUpdates(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("getUpdates", func(w http.ResponseWriter, _ string) {
		_, _ = io.WriteString(w, `{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"date":1,"from":{"id":7,"username":"abebe"},"chat":{"id":70,"type":"private"},"text":"/start"}},
			{"update_id":11,"message":{"message_id":2,"date":1,"from":{"id":7},"chat":{"id":70,"type":"private"},"contact":{"phone_number":"+251911000000","first_name":"A"}}},
			{"update_id":12,"message":{"message_id":3,"date":1,"from":{"id":7},"chat":{"id":70,"type":"private"},"photo":[{"file_id":"small","file_unique_id":"s","width":90,"height":90},{"file_id":"large","file_unique_id":"l","width":800,"height":800}]}},
			{"update_id":13,"edited_message":{"message_id":1,"date":1,"chat":{"id":70,"type":"private"},"text":"x"}}
		]}`)
	})
	c := newTestClient(t, srv)

	events, err := c.Fetch(context.Background(), 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, Event{UpdateID: 10, HasMessage: true, ChatID: 70, SenderID: 7, Handle: "abebe", Text: "/start"}, events[0])
	require.NotNil(t, events[1].Contact)
	assert.Equal(t, "+251911000000", events[1].Contact.PhoneNumber)
	require.NotNil(t, events[2].Photo)
	assert.Equal(t, "large", events[2].Photo.FileID)
	assert.Equal(t, 13, events[3].UpdateID)
	assert.False(t, events[3].HasMessage)

	var params map[string]int
	require.NoError(t, json.Unmarshal([]byte(api.bodies("getUpdates")[0]), &params))
	assert.Equal(t, map[string]int{"offset": 10, "timeout": 30}, params)
}

func TestFetchKeepsUndecodableUpdateIDs(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("getUpdates", func(w http.ResponseWriter, _ string) {
		_, _ = io.WriteString(w, `{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"date":1,"from":{"id":7},"chat":{"id":70,"type":"private"},"text":"/start"}},
			{"update_id":11,"message":{"message_id":2,"date":"soon","chat":{"id":70,"type":"private"},"text":"x"}},
			"garbage",
			{"update_id":12,"message":{"message_id":3,"date":1,"from":{"id":7},"chat":{"id":70,"type":"private"},"text":"Play"}}
		]}`)
	})
	c := newTestClient(t, srv)

	events, err := c.Fetch(context.Background(), 10, time.Second)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "/start", events[0].Text)
	assert.Equal(t, Event{UpdateID: 11}, events[1])
	assert.Equal(t, 12, events[2].UpdateID)
	assert.Equal(t, "Play", events[2].Text)
}

func TestFetchWrapsAPIErrorAsTransport(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("getUpdates", func(w http.ResponseWriter, _ string) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":409,"description":"Conflict: terminated by other getUpdates request"}`)
	})
	c := newTestClient(t, srv)

	events, err := c.Fetch(context.Background(), 0, time.Second)
	require.Error(t, err)
	assert.Empty(t, events)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, 409, StatusCode(err))
	assert.Equal(t, "http_4xx", Classify(err))
}

func TestFetchRedactsTokenFromNetworkErrors(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.Fetch(context.Background(), 0, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.NotContains(t, err.Error(), testToken)
	assert.Contains(t, err.Error(), "bot<redacted>")
}

func TestFetchHonoursContext(t *testing.T) {
	api, srv := newFakeAPI(t)
	release := make(chan struct{})
	api.handle("getUpdates", func(w http.ResponseWriter, _ string) {
		<-release
		_, _ = io.WriteString(w, `{"ok":true,"result":[]}`)
	})
	defer close(release)
	c := newTestClient(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Fetch(ctx, 0, 30*time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSendPostsMarkdownWithKeyboard(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("sendMessage", func(w http.ResponseWriter, _ string) {
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":5,"date":1,"chat":{"id":42,"type":"private"},"text":"hi"}}`)
	})
	c := newTestClient(t, srv)

	err := c.Send(context.Background(), 42, "*hi*", keyboard.Reply([]string{"Play", "Deposit"}))
	require.NoError(t, err)

	bodies := api.bodies("sendMessage")
	require.Len(t, bodies, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &payload))
	assert.Equal(t, "42", toString(payload["chat_id"]))
	assert.Equal(t, "*hi*", payload["text"])
	assert.Equal(t, "Markdown", payload["parse_mode"])
	assert.Contains(t, toString(payload["reply_markup"]), "Deposit")
	assert.Contains(t, toString(payload["reply_markup"]), "resize_keyboard")
}

func TestSendWrapsDeliveryFailure(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("sendMessage", func(w http.ResponseWriter, _ string) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
	})
	c := newTestClient(t, srv)

	err := c.Send(context.Background(), 42, "hello", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeliveryFailed))
	assert.Len(t, api.bodies("sendMessage"), 1)
}

func TestSendSkipsCancelledContext(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newTestClient(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Send(ctx, 1, "x", nil)
	assert.True(t, errors.Is(err, ErrDeliveryFailed))
	assert.Empty(t, api.bodies("sendMessage"))
}

func TestClearWebhook(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newTestClient(t, srv)
	require.NoError(t, c.ClearWebhook(context.Background()))
	assert.Equal(t, []string{"drop_pending_updates=false"}, api.bodies("deleteWebhook"))

	api.handle("deleteWebhook", func(w http.ResponseWriter, _ string) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	})
	err := c.ClearWebhook(context.Background())
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestRedactAndClassify(t *testing.T) {
	assert.Equal(t, "Post https://api/bot<redacted>/getUpdates", Redact("Post https://api/bot"+testToken+"/getUpdates"))
	assert.Equal(t, "", Classify(nil))
	assert.Equal(t, "http_5xx", Classify(&statusError{code: 502, description: "Bad Gateway"}))
	assert.Equal(t, "flood", Classify(&statusError{code: 429, description: "Too Many Requests"}))
	assert.Equal(t, "unknown", Classify(errors.New("boom")))
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
