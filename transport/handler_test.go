package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-hookrelay/broadcast"
	"github.com/goliatone/go-hookrelay/core"
	"github.com/goliatone/go-hookrelay/dispatch"
)

type stubDispatcher struct {
	result dispatch.Result
	err    error
	last   dispatch.Request
}

func (s *stubDispatcher) Process(_ context.Context, req dispatch.Request) (dispatch.Result, error) {
	s.last = req
	if s.err != nil {
		return dispatch.Result{}, s.err
	}
	return s.result, nil
}

type stubScheduler struct {
	tasks []core.BroadcastTask
}

func (s *stubScheduler) Schedule(task core.BroadcastTask) {
	s.tasks = append(s.tasks, task)
}

type mapStore struct {
	proxies map[string]core.Proxy
}

func (s mapStore) Lookup(_ context.Context, routingKey string) (core.Proxy, error) {
	proxy, ok := s.proxies[routingKey]
	if !ok {
		return core.Proxy{}, core.ErrProxyNotFound
	}
	return proxy, nil
}

func (s mapStore) IncrementEventCount(context.Context, string) error {
	return nil
}

func newTestRouter(t *testing.T, cfg HandlerConfig) chi.Router {
	t.Helper()
	handler, err := NewHandler(cfg)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	router := chi.NewRouter()
	handler.Routes(router)
	return router
}

func TestHandleIngest_AckForEvent(t *testing.T) {
	ack := core.OKAck()
	task := core.NewBroadcastTask(
		core.Proxy{ID: "p1", RoutingKey: "k1", Platform: "github"},
		[]byte(`{"action":"opened"}`),
		nil,
		time.Now(),
	)
	dispatcher := &stubDispatcher{result: dispatch.Result{
		StatusCode: http.StatusOK,
		Kind:       core.KindEvent,
		Ack:        &ack,
		Task:       &task,
	}}
	scheduler := &stubScheduler{}
	router := newTestRouter(t, HandlerConfig{
		Dispatcher: dispatcher,
		Store:      mapStore{},
		Scheduler:  scheduler,
	})

	req := httptest.NewRequest(http.MethodPost, "/github/k1", strings.NewReader(`{"action":"opened"}`))
	req.Header.Set("X-Hub-Timestamp", "1700000000000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body core.Ack
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("expected ok ack, got %+v", body)
	}

	if dispatcher.last.Platform != "github" || dispatcher.last.RoutingKey != "k1" {
		t.Fatalf("unexpected decoded request: %+v", dispatcher.last)
	}
	if dispatcher.last.Headers["X-Hub-Timestamp"] != "1700000000000" {
		t.Fatal("expected headers forwarded to the pipeline")
	}
	if string(dispatcher.last.Body) != `{"action":"opened"}` {
		t.Fatal("expected raw body preserved")
	}
	if len(scheduler.tasks) != 1 {
		t.Fatalf("expected exactly one scheduled task, got %d", len(scheduler.tasks))
	}
	if scheduler.tasks[0].Proxy.ID != "p1" {
		t.Fatalf("expected scheduled task bound to p1, got %s", scheduler.tasks[0].Proxy.ID)
	}
}

func TestHandleIngest_SchedulesOnlyAfterAckWritten(t *testing.T) {
	ack := core.OKAck()
	task := core.NewBroadcastTask(
		core.Proxy{ID: "p1", RoutingKey: "k1", Platform: "github"},
		[]byte(`{}`),
		nil,
		time.Now(),
	)
	dispatcher := &stubDispatcher{result: dispatch.Result{
		StatusCode: http.StatusOK,
		Kind:       core.KindEvent,
		Ack:        &ack,
		Task:       &task,
	}}
	scheduler := &stubScheduler{}
	handler, err := NewHandler(HandlerConfig{
		Dispatcher: dispatcher,
		Store:      mapStore{},
		Scheduler:  scheduler,
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	rec := &ackOrderRecorder{ResponseRecorder: httptest.NewRecorder(), scheduler: scheduler}
	req := httptest.NewRequest(http.MethodPost, "/github/k1", strings.NewReader(`{}`))
	req = requestWithRouteParams(req, "github", "k1")
	handler.HandleIngest(rec, req)

	if len(scheduler.tasks) != 1 {
		t.Fatalf("expected one scheduled task, got %d", len(scheduler.tasks))
	}
	if rec.scheduledBeforeWrite {
		t.Fatal("task was scheduled before the acknowledgement was written")
	}
}

func TestHandleIngest_NoScheduleForChallengeOrError(t *testing.T) {
	scheduler := &stubScheduler{}
	router := newTestRouter(t, HandlerConfig{
		Dispatcher: &stubDispatcher{result: dispatch.Result{
			StatusCode: http.StatusOK,
			Kind:       core.KindHandshake,
			Challenge:  &core.ChallengeResponse{PlainToken: "abc", Signature: "cafe"},
		}},
		Store:     mapStore{},
		Scheduler: scheduler,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/zoom/k1", strings.NewReader(`{}`)))
	if len(scheduler.tasks) != 0 {
		t.Fatalf("handshake must not schedule, got %d tasks", len(scheduler.tasks))
	}

	errRouter := newTestRouter(t, HandlerConfig{
		Dispatcher: &stubDispatcher{err: goerrors.New("rejected", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).WithTextCode(core.ErrorSignatureInvalid)},
		Store:     mapStore{},
		Scheduler: scheduler,
	})
	rec = httptest.NewRecorder()
	errRouter.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/github/k1", strings.NewReader(`{}`)))
	if len(scheduler.tasks) != 0 {
		t.Fatalf("rejected event must not schedule, got %d tasks", len(scheduler.tasks))
	}
}

func TestHandleIngest_ChallengeResponsePassthrough(t *testing.T) {
	dispatcher := &stubDispatcher{result: dispatch.Result{
		StatusCode: http.StatusOK,
		Kind:       core.KindHandshake,
		Challenge:  &core.ChallengeResponse{PlainToken: "abc", Signature: "cafe"},
	}}
	router := newTestRouter(t, HandlerConfig{
		Dispatcher: dispatcher,
		Store:      mapStore{},
	})

	req := httptest.NewRequest(http.MethodPost, "/zoom/k1", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode challenge: %v", err)
	}
	if body["plainToken"] != "abc" || body["signature"] != "cafe" {
		t.Fatalf("unexpected challenge body: %v", body)
	}
}

func TestHandleIngest_ErrorEnvelopeShape(t *testing.T) {
	dispatcher := &stubDispatcher{err: goerrors.New(
		"signature verification failed",
		goerrors.CategoryAuth,
	).WithCode(http.StatusUnauthorized).WithTextCode(core.ErrorSignatureInvalid).WithMetadata(map[string]any{
		"internal_detail": "raw signature bytes",
	})}
	router := newTestRouter(t, HandlerConfig{
		Dispatcher: dispatcher,
		Store:      mapStore{},
	})

	req := httptest.NewRequest(http.MethodPost, "/github/k1", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.TextCode != core.ErrorSignatureInvalid {
		t.Fatalf("expected %s, got %s", core.ErrorSignatureInvalid, body.Error.TextCode)
	}
	if strings.Contains(rec.Body.String(), "internal_detail") {
		t.Fatal("metadata must not leak into the response body")
	}
}

func TestHandleConnection_RecordChecks(t *testing.T) {
	store := mapStore{proxies: map[string]core.Proxy{
		"inactive": {ID: "p1", RoutingKey: "inactive", Platform: "github", Active: false},
		"mismatch": {ID: "p2", RoutingKey: "mismatch", Platform: "zoom", Active: true},
	}}
	router := newTestRouter(t, HandlerConfig{
		Dispatcher: &stubDispatcher{},
		Store:      store,
		Hub:        broadcast.NewHub(),
	})

	cases := []struct {
		name string
		path string
		want int
	}{
		{"absent record", "/github/absent/sse", http.StatusNotFound},
		{"inactive record", "/github/inactive/sse", http.StatusForbidden},
		{"platform mismatch", "/github/mismatch/sse", http.StatusBadRequest},
		{"unknown connection type", "/github/mismatch/tcp", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}
}

func TestHandleConnection_SocketWithoutBridge(t *testing.T) {
	store := mapStore{proxies: map[string]core.Proxy{
		"k1": {ID: "p1", RoutingKey: "k1", Platform: "github", Active: true},
	}}
	router := newTestRouter(t, HandlerConfig{
		Dispatcher: &stubDispatcher{},
		Store:      store,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/github/k1/ws", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.TextCode != core.ErrorServerConfiguration {
		t.Fatalf("expected %s, got %s", core.ErrorServerConfiguration, body.Error.TextCode)
	}
}

func TestHandleConnection_StreamsHubEvents(t *testing.T) {
	hub := broadcast.NewHub()
	store := mapStore{proxies: map[string]core.Proxy{
		"k1": {ID: "p1", RoutingKey: "k1", Platform: "github", Active: true},
	}}
	router := newTestRouter(t, HandlerConfig{
		Dispatcher: &stubDispatcher{},
		Store:      store,
		Hub:        hub,
	})
	server := httptest.NewServer(router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/github/k1/sse", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	response, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer response.Body.Close()

	if got := response.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected event-stream content type, got %q", got)
	}

	// Give the subscription time to register before fanning out.
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount("k1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := hub.Send(context.Background(), "k1", []byte(`{"id":"ev1"}`)); err != nil {
		t.Fatalf("hub send: %v", err)
	}

	reader := bufio.NewReader(response.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if !strings.HasPrefix(line, "data: ") || !strings.Contains(line, `"ev1"`) {
		t.Fatalf("unexpected stream line %q", line)
	}
}

// ackOrderRecorder flags the case where a task reaches the scheduler
// before the first response byte is written.
type ackOrderRecorder struct {
	*httptest.ResponseRecorder
	scheduler            *stubScheduler
	wrote                bool
	scheduledBeforeWrite bool
}

func (r *ackOrderRecorder) Write(p []byte) (int, error) {
	if !r.wrote && len(r.scheduler.tasks) > 0 {
		r.scheduledBeforeWrite = true
	}
	r.wrote = true
	return r.ResponseRecorder.Write(p)
}

func requestWithRouteParams(req *http.Request, platform, routingKey string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("platform", platform)
	routeCtx.URLParams.Add("routingKey", routingKey)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestAccessCredential_IsDeterministicPerRecord(t *testing.T) {
	proxy := core.Proxy{RoutingKey: "k1", Secret: "s1"}
	if AccessCredential(proxy) != AccessCredential(proxy) {
		t.Fatal("expected deterministic credential")
	}
	other := core.Proxy{RoutingKey: "k1", Secret: "s2"}
	if AccessCredential(proxy) == AccessCredential(other) {
		t.Fatal("expected credential bound to the record secret")
	}
}
