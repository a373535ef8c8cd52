package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-hookrelay/auth"
	"github.com/goliatone/go-hookrelay/broadcast"
	"github.com/goliatone/go-hookrelay/core"
	"github.com/goliatone/go-hookrelay/dispatch"
)

const (
	ConnectionTypeSocket = "ws"
	ConnectionTypeStream = "sse"

	defaultMaxBodyBytes int64 = 1 << 20 // 1 MiB
)

// Dispatcher runs the synchronous pipeline for one decoded call.
type Dispatcher interface {
	Process(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

// ConnectionBridge upgrades the persistent-socket variant of the
// live-connection endpoint. The gateway hands the validated record plus a
// derived access credential to the bridge and steps out of the way so the
// transport upgrade survives end to end.
type ConnectionBridge interface {
	Upgrade(w http.ResponseWriter, r *http.Request, proxy core.Proxy, accessCredential string) error
}

type Handler struct {
	dispatcher   Dispatcher
	store        core.RoutingStore
	scheduler    dispatch.Broadcaster
	hub          *broadcast.Hub
	bridge       ConnectionBridge
	logger       core.Logger
	maxBodyBytes int64
}

type HandlerConfig struct {
	Dispatcher Dispatcher
	Store      core.RoutingStore
	// Scheduler receives the broadcast task after the acknowledgement has
	// been written. Nil drops event fan-out.
	Scheduler dispatch.Broadcaster
	Hub       *broadcast.Hub
	Bridge    ConnectionBridge
	Logger    core.Logger
	// MaxBodyBytes caps the inbound body read; zero uses the default.
	MaxBodyBytes int64
}

func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("transport: dispatcher is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("transport: routing store is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		dispatcher:   cfg.Dispatcher,
		store:        cfg.Store,
		scheduler:    cfg.Scheduler,
		hub:          cfg.Hub,
		bridge:       cfg.Bridge,
		logger:       glog.Ensure(cfg.Logger),
		maxBodyBytes: cfg.MaxBodyBytes,
	}, nil
}

// Routes mounts the gateway surface on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/{platform}/{routingKey}", h.HandleIngest)
	r.Get("/{platform}/{routingKey}/{connectionType}", h.HandleConnection)
}

func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	routingKey := chi.URLParam(r, "routingKey")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.writeError(w, r, goerrors.New(
			"request body could not be read",
			goerrors.CategoryBadInput,
		).WithCode(http.StatusBadRequest).WithTextCode(core.ErrorMalformedRequest))
		return
	}

	result, err := h.dispatcher.Process(r.Context(), dispatch.Request{
		Platform:   platform,
		RoutingKey: routingKey,
		Headers:    flattenHeaders(r.Header),
		Body:       body,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if result.Challenge != nil {
		h.writeJSON(w, result.StatusCode, result.Challenge)
		return
	}
	h.writeJSON(w, result.StatusCode, result.Ack)

	// The ack must be on the wire before any broadcast work starts, so the
	// response is flushed before the task is handed to the scheduler.
	if result.Task != nil {
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		if h.scheduler == nil {
			h.logger.Warn("no broadcast scheduler configured, event dropped",
				"platform", platform,
				"routing_key", routingKey,
			)
			return
		}
		h.scheduler.Schedule(*result.Task)
	}
}

func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	platform := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "platform")))
	routingKey := strings.TrimSpace(chi.URLParam(r, "routingKey"))
	connectionType := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "connectionType")))

	proxy, err := h.validateRecord(r.Context(), platform, routingKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	switch connectionType {
	case ConnectionTypeStream:
		h.serveStream(w, r, proxy)
	case ConnectionTypeSocket:
		h.serveSocket(w, r, proxy)
	default:
		h.writeError(w, r, goerrors.New(
			"unsupported connection type",
			goerrors.CategoryBadInput,
		).WithCode(http.StatusBadRequest).WithTextCode(core.ErrorMalformedRequest).WithMetadata(map[string]any{
			"connection_type": connectionType,
		}))
	}
}

func (h *Handler) validateRecord(ctx context.Context, platform string, routingKey string) (core.Proxy, error) {
	if routingKey == "" {
		return core.Proxy{}, goerrors.New(
			"routing key is required",
			goerrors.CategoryBadInput,
		).WithCode(http.StatusBadRequest).WithTextCode(core.ErrorMalformedRequest)
	}
	proxy, err := h.store.Lookup(ctx, routingKey)
	if err != nil {
		if rich := core.GatewayErrorMapper(err); rich != nil && rich.Category == goerrors.CategoryNotFound {
			return core.Proxy{}, rich
		}
		return core.Proxy{}, goerrors.Wrap(err, goerrors.CategoryNotFound, "proxy not found").
			WithCode(http.StatusNotFound).
			WithTextCode(core.ErrorProxyNotFound)
	}
	if !proxy.Active {
		return core.Proxy{}, goerrors.New(
			"proxy is inactive",
			goerrors.CategoryAuthz,
		).WithCode(http.StatusForbidden).WithTextCode(core.ErrorProxyInactive)
	}
	if !strings.EqualFold(strings.TrimSpace(proxy.Platform), platform) {
		return core.Proxy{}, goerrors.New(
			"routing record is bound to a different platform",
			goerrors.CategoryBadInput,
		).WithCode(http.StatusBadRequest).WithTextCode(core.ErrorPlatformMismatch)
	}
	return proxy, nil
}

// serveStream forwards hub events as an unbuffered event stream. Each event
// is flushed as soon as it is written; the response never buffers.
func (h *Handler) serveStream(w http.ResponseWriter, r *http.Request, proxy core.Proxy) {
	if h.hub == nil {
		h.writeError(w, r, goerrors.New(
			"event streaming is not configured",
			goerrors.CategoryInternal,
		).WithTextCode(core.ErrorServerConfiguration))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, r, goerrors.New(
			"response writer does not support streaming",
			goerrors.CategoryInternal,
		).WithTextCode(core.ErrorServerConfiguration))
		return
	}

	sub := h.hub.Subscribe(proxy.RoutingKey)
	defer h.hub.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-sub.C:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", event)
			flusher.Flush()
		}
	}
}

func (h *Handler) serveSocket(w http.ResponseWriter, r *http.Request, proxy core.Proxy) {
	if h.bridge == nil {
		h.writeError(w, r, goerrors.New(
			"persistent connections are not configured",
			goerrors.CategoryInternal,
		).WithTextCode(core.ErrorServerConfiguration))
		return
	}
	credential := AccessCredential(proxy)
	if err := h.bridge.Upgrade(w, r, proxy, credential); err != nil {
		h.logger.Error("connection upgrade failed",
			"routing_key", proxy.RoutingKey,
			"error", err,
		)
	}
}

// AccessCredential derives the per-record credential forwarded to the
// connection bridge: the routing key authenticated with the record secret.
func AccessCredential(proxy core.Proxy) string {
	return auth.SignHMAC(proxy.Secret, proxy.RoutingKey, nil)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code     int    `json:"code"`
	TextCode string `json:"text_code"`
	Message  string `json:"message"`
}

// writeError renders the envelope with its definite status. Metadata never
// crosses the wire; only the code pair and the message do.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	rich := core.GatewayErrorMapper(err)
	if rich == nil {
		rich = core.GatewayErrorMapper(fmt.Errorf("unknown failure"))
	}
	if rich.Code >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"path", r.URL.Path,
			"status", rich.Code,
			"text_code", rich.TextCode,
			"error", err,
		)
	}
	h.writeJSON(w, rich.Code, errorBody{Error: errorDetail{
		Code:     rich.Code,
		TextCode: rich.TextCode,
		Message:  rich.Message,
	}})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("response encoding failed", "error", err)
	}
}

func flattenHeaders(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) == 0 {
			continue
		}
		flat[key] = values[0]
	}
	return flat
}
