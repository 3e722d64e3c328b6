package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/autoreader/internal/bus"
	"github.com/matheus3301/autoreader/internal/identity"
	"github.com/matheus3301/autoreader/internal/query"
	"github.com/matheus3301/autoreader/internal/status"
	"github.com/matheus3301/autoreader/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct{}

func (fakeStats) Processed() int64 { return 3 }
func (fakeStats) Failed() int64    { return 1 }
func (fakeStats) Pending() int     { return 2 }

type fixture struct {
	store   *store.Store
	bus     *bus.Bus
	handler *Handler
	router  *gin.Engine
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := store.Open(store.PathsIn(t.TempDir()))
	b := bus.New()
	h := NewHandler(query.New(s, b), status.NewMachine(b), fakeStats{}, b, "telegram", nil)
	return &fixture{store: s, bus: b, handler: h, router: NewRouter(h, secret)}
}

func (f *fixture) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) seed(t *testing.T) string {
	t.Helper()
	ana := identity.Normalize(&identity.Raw{Kind: identity.RawUser, ID: "7", FirstName: "Ana"})
	team := identity.Normalize(&identity.Raw{Kind: identity.RawGroup, ID: "100", Title: "Team"})
	id, err := f.store.Attachments.Put([]byte("\x89PNG\r\n\x1a\nrest"), "2024-01-01T00:00:01.000000Z", ana, &team)
	require.NoError(t, err)
	require.NoError(t, f.store.Messages.Append(store.Message{FromID: "7", Text: "dm", ReceivedAt: "2024-01-01T00:00:00.000000Z", Sender: ana}))
	require.NoError(t, f.store.Messages.Append(store.Message{FromID: "7", Text: "team", ReceivedAt: "2024-01-01T00:00:01.000000Z", Sender: ana, Chat: &team, ImageID: &id}))
	require.NoError(t, f.store.Contacts.Upsert(ana))
	require.NoError(t, f.store.Contacts.Upsert(team))
	return id
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, "secret")
	w := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, "")
	f.seed(t)

	w := f.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "telegram", resp.Transport)
	assert.Equal(t, string(status.Booting), resp.State)
	assert.Equal(t, 2, resp.MessageCount)
	assert.Equal(t, 2, resp.ContactCount)
	assert.Equal(t, 2, resp.Pending)
	assert.EqualValues(t, 3, resp.Processed)
	assert.EqualValues(t, 1, resp.Failed)
}

func TestMessagesSince(t *testing.T) {
	f := newFixture(t, "")
	f.seed(t)

	var all, since []store.Message
	w := f.do(t, http.MethodGet, "/messages", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	w = f.do(t, http.MethodGet, "/messages?since=2024-01-01T00:00:01Z", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &since))
	require.Len(t, since, 1)
	assert.Equal(t, "team", since[0].Text)
}

func TestMessagesEmptyLogIsArray(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodGet, "/messages?since=2024-01-01T00:00:00Z", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestChats(t *testing.T) {
	f := newFixture(t, "")
	f.seed(t)

	w := f.do(t, http.MethodGet, "/chats", "")
	assert.JSONEq(t, `[{"id":"7","title":"Ana"},{"id":"100","title":"Team"}]`, w.Body.String())

	var msgs []store.Message
	w = f.do(t, http.MethodGet, "/chats/100/messages", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "team", msgs[0].Text)
}

func TestContacts(t *testing.T) {
	f := newFixture(t, "")
	f.seed(t)

	w := f.do(t, http.MethodGet, "/contacts/7", "")
	require.Equal(t, http.StatusOK, w.Code)
	var ana identity.Identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ana))
	assert.Equal(t, "Ana", identity.Value(ana.FirstName))

	w = f.do(t, http.MethodGet, "/contacts/404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var all map[string]identity.Identity
	w = f.do(t, http.MethodGet, "/contacts", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)
}

func TestAttachment(t *testing.T) {
	f := newFixture(t, "")
	id := f.seed(t)

	w := f.do(t, http.MethodGet, "/attachments/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	var rec AttachmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, id, rec.ID)
	assert.NotEmpty(t, rec.Base64)

	w = f.do(t, http.MethodGet, "/attachments/"+id+"?raw=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))

	w = f.do(t, http.MethodGet, "/attachments/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t, "")
	id := f.seed(t)

	w := f.do(t, http.MethodDelete, "/history", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Empty(t, f.store.Messages.All())
	_, ok := f.store.Attachments.Get(id)
	assert.False(t, ok)
	assert.Len(t, f.store.Contacts.All(), 2, "contacts survive a history clear")
}

func TestAuth(t *testing.T) {
	f := newFixture(t, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/status", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/status", "garbage").Code)

	wrong, err := NewToken("other", "cli", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/status", wrong).Code)

	expired, err := NewToken("s3cret", "cli", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/status", expired).Code)

	good, err := NewToken("s3cret", "cli", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/status", good).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/chats?token="+good, "").Code)
}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := NewToken("k", "operator", time.Minute)
	require.NoError(t, err)
	sub, err := ParseToken("k", tok)
	require.NoError(t, err)
	assert.Equal(t, "operator", sub)

	_, err = NewToken("", "operator", time.Minute)
	assert.Error(t, err)
}

func TestWebSocketPushesCapturedMessages(t *testing.T) {
	f := newFixture(t, "")
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for the handler to subscribe before publishing.
	require.Eventually(t, func() bool { return f.bus.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	f.bus.Publish(bus.Event{Kind: bus.KindMessageCaptured, Payload: store.Message{FromID: "7", Text: "live"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got store.Message
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "live", got.Text)
}

func TestWebSocketClosedOnShutdown(t *testing.T) {
	f := newFixture(t, "")
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.bus.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	f.handler.Close()
	f.handler.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Eventually(t, func() bool { return f.bus.Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}
