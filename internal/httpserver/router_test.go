package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kickspot/internal/config"
	"kickspot/internal/handler"
	"kickspot/internal/model"
	"kickspot/internal/mqhandler"
	"kickspot/internal/realtime"
	"kickspot/internal/repository"
	"kickspot/internal/service"
	"kickspot/pkg/mq"
	"kickspot/pkg/util"
)

const testSecret = "test-secret"

type testServer struct {
	router   *Router
	store    *repository.SQLiteStore
	registry *realtime.Registry
	emitter  *service.Emitter
}

func newTestServer(t *testing.T, opts ...func(*Deps)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	store, err := repository.NewSQLiteStore(context.Background(), ":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := realtime.NewRegistry(log)
	emitter := service.NewEmitter(store, realtime.NewBroker(registry, log), log)
	events := service.NewDomainEvents(emitter, store, log)

	mqRouter := mq.NewRouter(log)
	mqhandler.NewStorefrontHandler(events, nil, log).Register(mqRouter)

	rtCfg := config.Default().Realtime
	deps := Deps{
		Notifications: handler.NewNotificationHandler(service.NewNotificationService(store, emitter, log), log),
		Streams:       handler.NewStreamHandler(registry, rtCfg, log),
		Events:        handler.NewEventHandler(mqRouter, log),
		Store:         store,
		JWTSecret:     testSecret,
		Logger:        log,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	router := NewRouter(deps)
	return &testServer{router: router, store: store, registry: registry, emitter: emitter}
}

func token(t *testing.T, r model.Recipient) string {
	t.Helper()
	tok, err := util.GenerateJWT(r.ID, string(r.Role), testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path string, as *model.Recipient, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, *as))
	}
	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) emit(t *testing.T, r model.Recipient, title string) *model.Notification {
	t.Helper()
	n, err := s.emitter.Emit(context.Background(), model.Draft{
		Recipient: r,
		Type:      model.TypeOrderUpdate,
		Title:     title,
		Message:   title + " message",
		Metadata:  model.ViewOrder(1),
	})
	require.NoError(t, err)
	return n
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func ptr(r model.Recipient) *model.Recipient { return &r }

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", nil, "").Code)
	w := s.do(t, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}

type mqStatus bool

func (m mqStatus) IsConnected() bool { return bool(m) }

func TestRouter_ReadyzChecksMQ(t *testing.T) {
	s := newTestServer(t, func(d *Deps) { d.MQ = mqStatus(false) })

	w := s.do(t, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "mq_not_ready", decode(t, w)["status"])
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/notifications", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "missing token", decode(t, w)["error"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RejectsUnknownRole(t *testing.T) {
	s := newTestServer(t)
	tok, err := util.GenerateJWT(1, "guest", testSecret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_ListPaginates(t *testing.T) {
	s := newTestServer(t)
	buyer := model.User(1)
	for i := 1; i <= 3; i++ {
		s.emit(t, buyer, fmt.Sprintf("update %d", i))
	}
	s.emit(t, model.User(2), "someone else")

	w := s.do(t, http.MethodGet, "/api/v1/notifications?page=1&page_size=2", ptr(buyer), "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 3, body["unread_count"])
	assert.EqualValues(t, 1, body["page"])
	assert.EqualValues(t, 2, body["page_size"])
	assert.EqualValues(t, 3, body["latest_id"])
	items := body["notifications"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "update 3", items[0].(map[string]any)["title"])
	assert.Equal(t, map[string]any{"action": "view_order", "order_id": float64(1)}, items[0].(map[string]any)["metadata"])

	w = s.do(t, http.MethodGet, "/api/v1/notifications?page=abc", ptr(buyer), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// would overflow the offset
	w = s.do(t, http.MethodGet, "/api/v1/notifications?page=9223372036854775807&page_size=100", ptr(buyer), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/notifications?page=%d", model.MaxPage), ptr(buyer), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["notifications"])
}

func TestRouter_ListEmptyForNewRecipient(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/notifications", ptr(model.Admin(77)), "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []any{}, body["notifications"])
	assert.EqualValues(t, 0, body["unread_count"])
}

func TestRouter_MarkReadAndDelete(t *testing.T) {
	s := newTestServer(t)
	owner := model.User(1)
	n := s.emit(t, owner, "mine")

	path := fmt.Sprintf("/api/v1/notifications/%d/read", n.ID)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPatch, path, ptr(model.User(2)), "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPatch, "/api/v1/notifications/9999/read", ptr(owner), "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPatch, "/api/v1/notifications/zero/read", ptr(owner), "").Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPatch, path, ptr(owner), "").Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPatch, path, ptr(owner), "").Code)

	w := s.do(t, http.MethodGet, "/api/v1/notifications/unread-count", ptr(owner), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["unread_count"])

	del := fmt.Sprintf("/api/v1/notifications/%d", n.ID)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, del, ptr(model.Admin(1)), "").Code)
	w = s.do(t, http.MethodDelete, del, ptr(owner), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "deleted", decode(t, w)["status"])
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, del, ptr(owner), "").Code)
}

func TestRouter_MarkAllRead(t *testing.T) {
	s := newTestServer(t)
	admin := model.Admin(3)
	s.emit(t, admin, "a")
	s.emit(t, admin, "b")

	w := s.do(t, http.MethodPatch, "/api/v1/notifications/mark-all-read", ptr(admin), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["updated"])

	w = s.do(t, http.MethodPatch, "/api/v1/notifications/mark-all-read", ptr(admin), "")
	assert.EqualValues(t, 0, decode(t, w)["updated"])
}

func TestRouter_SendRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	body := `{"recipient_role":"user","recipient_id":5,"type":"promotion","title":"Drop","message":"Restocked","priority":"low","metadata":{"action":"view_product","product_id":9}}`

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/v1/notifications", ptr(model.User(5)), body).Code)

	w := s.do(t, http.MethodPost, "/api/v1/notifications", ptr(model.Admin(1)), body)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	assert.EqualValues(t, 5, created["user_id"])
	assert.Nil(t, created["admin_id"])

	bad := `{"recipient_role":"user","recipient_id":5,"type":"promotion","title":"x","message":"y","metadata":{"action":"explode"}}`
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/notifications", ptr(model.Admin(1)), bad).Code)

	empty := `{"recipient_role":"user","recipient_id":5,"type":"promotion","title":"  ","message":"y"}`
	w = s.do(t, http.MethodPost, "/api/v1/notifications", ptr(model.Admin(1)), empty)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "title")
}

func TestRouter_InjectEvent(t *testing.T) {
	s := newTestServer(t)
	admin := model.Admin(1)

	body := `{"routing_key":"order.placed","payload":{"event_id":"e1","order_id":10,"buyer_id":4,"seller_admin_ids":[1]}}`
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/v1/internal/events", ptr(model.User(4)), body).Code)

	w := s.do(t, http.MethodPost, "/api/v1/internal/events", ptr(admin), body)
	require.Equal(t, http.StatusAccepted, w.Code)

	count, err := s.store.UnreadCount(context.Background(), model.User(4))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	unknown := `{"routing_key":"order.exploded","payload":{}}`
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/internal/events", ptr(admin), unknown).Code)

	invalid := `{"routing_key":"order.placed","payload":{"order_id":10}}`
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/internal/events", ptr(admin), invalid).Code)
}

func TestRouter_WebSocketHandshakeAndPush(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router.Engine)
	defer srv.Close()

	buyer := model.User(42)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/notifications/ws?token=" + token(t, buyer)
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	var joined struct {
		Event string `json:"event"`
		Data  struct {
			Channel string `json:"channel"`
		} `json:"data"`
	}
	require.NoError(t, ws.ReadJSON(&joined))
	assert.Equal(t, realtime.EventJoined, joined.Event)
	assert.Equal(t, "user:42", joined.Data.Channel)

	require.Eventually(t, func() bool { return len(s.registry.MembersOf("user:42")) == 1 }, time.Second, 10*time.Millisecond)
	n := s.emit(t, buyer, "Shipped")

	var frame struct {
		Event string             `json:"event"`
		Data  model.Notification `json:"data"`
	}
	require.NoError(t, ws.ReadJSON(&frame))
	assert.Equal(t, realtime.EventNotification, frame.Event)
	assert.Equal(t, n.ID, frame.Data.ID)
	assert.Equal(t, model.ActionViewOrder, frame.Data.Metadata.Action())

	ws.Close()
	assert.Eventually(t, func() bool { return s.registry.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRouter_WebSocketRequiresToken(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router.Engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/notifications/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_ServerSentEvents(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router.Engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	admin := model.Admin(2)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, admin))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := bufio.NewScanner(resp.Body)
	next := func(prefix string) string {
		for lines.Scan() {
			if strings.HasPrefix(lines.Text(), prefix) {
				return strings.TrimPrefix(lines.Text(), prefix)
			}
		}
		t.Fatalf("stream ended before %q", prefix)
		return ""
	}

	assert.Equal(t, "joined", next("event:"))
	assert.JSONEq(t, `{"channel":"admin:2"}`, next("data:"))

	require.Eventually(t, func() bool { return s.registry.Count() == 1 }, time.Second, 10*time.Millisecond)
	n := s.emit(t, admin, "New order")

	assert.Equal(t, "notification", next("event:"))
	var got model.Notification
	require.NoError(t, json.Unmarshal([]byte(next("data:")), &got))
	assert.Equal(t, n.ID, got.ID)
}
