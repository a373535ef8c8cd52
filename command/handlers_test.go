package command

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-hookrelay/core"
	"github.com/goliatone/go-hookrelay/dispatch"
)

type stubDispatchService struct {
	processFn func(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

func (s stubDispatchService) Process(ctx context.Context, req dispatch.Request) (dispatch.Result, error) {
	return s.processFn(ctx, req)
}

type stubScheduler struct {
	tasks []core.BroadcastTask
}

func (s *stubScheduler) Schedule(task core.BroadcastTask) {
	s.tasks = append(s.tasks, task)
}

type stubProxyWriter struct {
	createFn func(ctx context.Context, proxy core.Proxy) (core.Proxy, error)
	saveFn   func(ctx context.Context, proxy core.Proxy) (core.Proxy, error)
}

func (s stubProxyWriter) Create(ctx context.Context, proxy core.Proxy) (core.Proxy, error) {
	return s.createFn(ctx, proxy)
}

func (s stubProxyWriter) Save(ctx context.Context, proxy core.Proxy) (core.Proxy, error) {
	return s.saveFn(ctx, proxy)
}

func TestDispatchEventCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	task := core.NewBroadcastTask(
		core.Proxy{ID: "p1", RoutingKey: "k1", Platform: "github"},
		[]byte(`{}`),
		nil,
		time.Now(),
	)
	expected := dispatch.Result{StatusCode: http.StatusOK, Kind: core.KindEvent, Task: &task}
	called := false
	svc := stubDispatchService{
		processFn: func(_ context.Context, req dispatch.Request) (dispatch.Result, error) {
			called = true
			if req.Platform != "github" {
				t.Fatalf("expected platform github, got %q", req.Platform)
			}
			return expected, nil
		},
	}

	scheduler := &stubScheduler{}
	cmd := NewDispatchEventCommand(svc, scheduler)
	collector := gocmd.NewResult[dispatch.Result]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, DispatchEventMessage{Request: dispatch.Request{
		Platform:   "github",
		RoutingKey: "k1",
		Body:       []byte(`{}`),
	}})
	if err != nil {
		t.Fatalf("execute dispatch: %v", err)
	}
	if !called {
		t.Fatal("expected dispatch service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatal("expected result to be stored")
	}
	if result.StatusCode != expected.StatusCode || result.Task == nil {
		t.Fatalf("unexpected result: %#v", result)
	}
	if len(scheduler.tasks) != 1 || scheduler.tasks[0].Proxy.ID != "p1" {
		t.Fatalf("expected the produced task scheduled once, got %#v", scheduler.tasks)
	}
}

func TestDispatchEventCommand_NilSchedulerTolerated(t *testing.T) {
	task := core.NewBroadcastTask(core.Proxy{ID: "p1", RoutingKey: "k1"}, []byte(`{}`), nil, time.Now())
	cmd := NewDispatchEventCommand(stubDispatchService{
		processFn: func(context.Context, dispatch.Request) (dispatch.Result, error) {
			return dispatch.Result{StatusCode: http.StatusOK, Task: &task}, nil
		},
	}, nil)

	err := cmd.Execute(context.Background(), DispatchEventMessage{Request: dispatch.Request{
		Platform:   "github",
		RoutingKey: "k1",
		Body:       []byte(`{}`),
	}})
	if err != nil {
		t.Fatalf("execute dispatch: %v", err)
	}
}

func TestDispatchEventCommand_PropagatesServiceError(t *testing.T) {
	boom := errors.New("pipeline failure")
	cmd := NewDispatchEventCommand(stubDispatchService{
		processFn: func(context.Context, dispatch.Request) (dispatch.Result, error) {
			return dispatch.Result{}, boom
		},
	}, &stubScheduler{})

	err := cmd.Execute(context.Background(), DispatchEventMessage{Request: dispatch.Request{
		Platform:   "github",
		RoutingKey: "k1",
		Body:       []byte(`{}`),
	}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestScheduleBroadcastCommand_Delegates(t *testing.T) {
	scheduler := &stubScheduler{}
	cmd := NewScheduleBroadcastCommand(scheduler)

	task := core.NewBroadcastTask(
		core.Proxy{ID: "p1", RoutingKey: "k1", Platform: "github"},
		[]byte(`{"action":"opened"}`),
		nil,
		time.Now(),
	)
	if err := cmd.Execute(context.Background(), ScheduleBroadcastMessage{Task: task}); err != nil {
		t.Fatalf("execute schedule: %v", err)
	}
	if len(scheduler.tasks) != 1 {
		t.Fatalf("expected one scheduled task, got %d", len(scheduler.tasks))
	}
}

func TestProxyCommands_DelegateToWriter(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		writer := stubProxyWriter{
			createFn: func(_ context.Context, proxy core.Proxy) (core.Proxy, error) {
				proxy.ID = "p1"
				return proxy, nil
			},
		}
		cmd := NewCreateProxyCommand(writer)
		collector := gocmd.NewResult[core.Proxy]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)

		err := cmd.Execute(ctx, CreateProxyMessage{Proxy: core.Proxy{
			RoutingKey: "k1",
			Platform:   "github",
		}})
		if err != nil {
			t.Fatalf("execute create: %v", err)
		}
		created, ok := collector.Load()
		if !ok || created.ID != "p1" {
			t.Fatalf("expected stored created proxy, got %#v (%v)", created, ok)
		}
	})

	t.Run("save", func(t *testing.T) {
		writer := stubProxyWriter{
			saveFn: func(_ context.Context, proxy core.Proxy) (core.Proxy, error) {
				return proxy, nil
			},
		}
		cmd := NewSaveProxyCommand(writer)
		err := cmd.Execute(context.Background(), SaveProxyMessage{Proxy: core.Proxy{ID: "p1"}})
		if err != nil {
			t.Fatalf("execute save: %v", err)
		}
	})
}

func TestCommands_RequireDependencies(t *testing.T) {
	if err := (&DispatchEventCommand{}).Execute(context.Background(), DispatchEventMessage{}); err == nil {
		t.Fatal("expected dependency error")
	}
	if err := (&ScheduleBroadcastCommand{}).Execute(context.Background(), ScheduleBroadcastMessage{}); err == nil {
		t.Fatal("expected dependency error")
	}
}

func TestMessages_Validate(t *testing.T) {
	cases := []struct {
		name    string
		message interface{ Validate() error }
		wantErr bool
	}{
		{"dispatch valid", DispatchEventMessage{Request: dispatch.Request{Platform: "github", RoutingKey: "k1", Body: []byte(`{}`)}}, false},
		{"dispatch missing platform", DispatchEventMessage{Request: dispatch.Request{RoutingKey: "k1", Body: []byte(`{}`)}}, true},
		{"dispatch missing body", DispatchEventMessage{Request: dispatch.Request{Platform: "github", RoutingKey: "k1"}}, true},
		{"schedule valid", ScheduleBroadcastMessage{Task: core.BroadcastTask{Proxy: core.Proxy{RoutingKey: "k1"}, Body: []byte(`{}`)}}, false},
		{"schedule missing key", ScheduleBroadcastMessage{Task: core.BroadcastTask{Body: []byte(`{}`)}}, true},
		{"create valid", CreateProxyMessage{Proxy: core.Proxy{RoutingKey: "k1", Platform: "github"}}, false},
		{"create missing platform", CreateProxyMessage{Proxy: core.Proxy{RoutingKey: "k1"}}, true},
		{"save missing id", SaveProxyMessage{}, true},
	}
	for _, tc := range cases {
		err := tc.message.Validate()
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
	}
}
