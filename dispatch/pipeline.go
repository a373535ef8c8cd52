package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-hookrelay/core"
)

// Broadcaster schedules one detached delivery task. The task's lifetime is
// independent of the request that scheduled it. The pipeline itself never
// schedules; it hands the prepared task back so the caller can put the
// acknowledgement on the wire first.
type Broadcaster interface {
	Schedule(task core.BroadcastTask)
}

// Request is one inbound webhook call after transport decoding. Body is the
// preserved raw copy; the pipeline never re-reads the wire.
type Request struct {
	Platform   string
	RoutingKey string
	Headers    map[string]string
	Body       []byte
	ReceivedAt time.Time
}

// Result is the synchronous outcome of a dispatched call. Challenge is set
// for handshake messages, Ack for everything else that succeeded. Task is
// set only for genuine verified events; the caller schedules it after the
// acknowledgement has been written.
type Result struct {
	StatusCode int
	Kind       core.MessageKind
	Challenge  *core.ChallengeResponse
	Ack        *core.Ack
	Proxy      core.Proxy
	Task       *core.BroadcastTask
}

type lookupOutcome struct {
	proxy core.Proxy
	err   error
}

// Pipeline turns one authenticated inbound call into an immediate
// acknowledgement plus, for genuine events, a detached broadcast task.
type Pipeline struct {
	store         core.RoutingStore
	registry      core.AdapterRegistry
	recorder      *core.OutcomeRecorder
	logger        core.Logger
	platforms     map[string]struct{}
	lookupTimeout time.Duration
}

type PipelineConfig struct {
	Store    core.RoutingStore
	Registry core.AdapterRegistry
	Recorder *core.OutcomeRecorder
	Logger   core.Logger
	// Platforms is the known-platform allowlist. It may name more
	// platforms than the registry implements; those fail at adapter
	// construction, not at path validation.
	Platforms     []string
	LookupTimeout time.Duration
}

func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, dispatchError(
			"routing store is required",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			core.ErrorServerConfiguration,
			nil,
		)
	}
	if cfg.Registry == nil {
		return nil, dispatchError(
			"adapter registry is required",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			core.ErrorServerConfiguration,
			nil,
		)
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = core.DefaultConfig().LookupTimeout
	}
	platforms := map[string]struct{}{}
	for _, platform := range cfg.Platforms {
		platform = strings.ToLower(strings.TrimSpace(platform))
		if platform != "" {
			platforms[platform] = struct{}{}
		}
	}
	if len(platforms) == 0 {
		for _, platform := range cfg.Registry.Implemented() {
			platforms[platform] = struct{}{}
		}
	}
	return &Pipeline{
		store:         cfg.Store,
		registry:      cfg.Registry,
		recorder:      cfg.Recorder,
		logger:        glog.Ensure(cfg.Logger),
		platforms:     platforms,
		lookupTimeout: cfg.LookupTimeout,
	}, nil
}

// Process runs steps 1 through 7 for one call. The returned Result is only
// meaningful when err is nil; on error the transport maps the envelope to
// its HTTP status.
func (p *Pipeline) Process(ctx context.Context, req Request) (Result, error) {
	startedAt := time.Now()
	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	routingKey := strings.TrimSpace(req.RoutingKey)
	fields := map[string]any{
		"platform":    platform,
		"routing_key": routingKey,
	}

	result, err := p.process(ctx, platform, routingKey, req, fields)
	if err != nil {
		if rich := core.GatewayErrorMapper(err); rich != nil {
			fields["error_code"] = rich.TextCode
		}
	}
	p.recorder.Observe(ctx, startedAt, "dispatch", err, fields)
	return result, err
}

func (p *Pipeline) process(
	ctx context.Context,
	platform string,
	routingKey string,
	req Request,
	fields map[string]any,
) (Result, error) {
	if _, known := p.platforms[platform]; !known {
		return Result{}, dispatchBadInput(
			"unknown platform",
			core.ErrorInvalidPlatform,
			map[string]any{"platform": platform},
		)
	}
	if routingKey == "" {
		return Result{}, dispatchBadInput(
			"routing key is required",
			core.ErrorMalformedRequest,
			map[string]any{"platform": platform},
		)
	}

	proxy, err := p.lookup(ctx, routingKey)
	if err != nil {
		return Result{}, err
	}
	if !proxy.Active {
		return Result{}, dispatchError(
			"proxy is inactive",
			goerrors.CategoryAuthz,
			http.StatusForbidden,
			core.ErrorProxyInactive,
			map[string]any{"routing_key": routingKey},
		)
	}
	if !strings.EqualFold(strings.TrimSpace(proxy.Platform), platform) {
		return Result{}, dispatchBadInput(
			"routing record is bound to a different platform",
			core.ErrorPlatformMismatch,
			map[string]any{
				"routing_key":     routingKey,
				"path_platform":   platform,
				"record_platform": proxy.Platform,
			},
		)
	}

	adapter, err := p.registry.Build(proxy)
	if err != nil {
		return Result{}, err
	}

	payload := map[string]any{}
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return Result{}, dispatchWrapError(
			err,
			goerrors.CategoryBadInput,
			"request body is not valid JSON",
			http.StatusBadRequest,
			core.ErrorMalformedPayload,
			map[string]any{"platform": platform, "routing_key": routingKey},
		)
	}

	kind := adapter.Classify(payload)
	fields["kind"] = kind.String()

	if kind == core.KindHandshake {
		// The signed response is itself the proof of secret possession;
		// handshakes are answered without prior verification.
		challenge, err := adapter.RespondToChallenge(payload)
		if err != nil {
			return Result{}, err
		}
		return Result{
			StatusCode: http.StatusOK,
			Kind:       kind,
			Challenge:  &challenge,
			Proxy:      proxy,
		}, nil
	}

	if kind == core.KindEvent {
		if proxy.SkipVerification {
			p.logger.Warn("signature verification administratively disabled",
				"platform", platform,
				"routing_key", routingKey,
			)
		} else {
			switch adapter.Verify(req.Body, req.Headers) {
			case core.VerificationInvalid:
				return Result{}, dispatchError(
					"signature verification failed",
					goerrors.CategoryAuth,
					http.StatusUnauthorized,
					core.ErrorSignatureInvalid,
					map[string]any{"platform": platform, "routing_key": routingKey},
				)
			case core.VerificationNotApplicable:
				p.logger.Warn("no verification scheme bound for routing record",
					"platform", platform,
					"routing_key", routingKey,
				)
			}
		}
	}

	ack := core.OKAck()
	result := Result{
		StatusCode: http.StatusOK,
		Kind:       kind,
		Ack:        &ack,
		Proxy:      proxy,
	}

	// Only genuine events fan out. Unknown discriminators are acknowledged
	// so the remote platform's retry logic never trips, then dropped. The
	// task is handed back instead of scheduled here: the acknowledgement
	// must reach the wire before any broadcast work starts.
	if kind == core.KindEvent {
		task := core.NewBroadcastTask(proxy, req.Body, req.Headers, req.ReceivedAt)
		result.Task = &task
	}
	return result, nil
}

// lookup races the store read against the configured timeout so a stalled
// store surfaces as a timeout, distinguishable from an absent record.
func (p *Pipeline) lookup(ctx context.Context, routingKey string) (core.Proxy, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, p.lookupTimeout)
	defer cancel()

	outcome := make(chan lookupOutcome, 1)
	go func() {
		proxy, err := p.store.Lookup(lookupCtx, routingKey)
		outcome <- lookupOutcome{proxy: proxy, err: err}
	}()

	select {
	case <-lookupCtx.Done():
		return core.Proxy{}, dispatchWrapError(
			lookupCtx.Err(),
			goerrors.CategoryInternal,
			"routing lookup timed out",
			http.StatusInternalServerError,
			core.ErrorDBTimeout,
			map[string]any{"routing_key": routingKey},
		)
	case resolved := <-outcome:
		if resolved.err != nil {
			if isNotFound(resolved.err) {
				return core.Proxy{}, dispatchWrapError(
					resolved.err,
					goerrors.CategoryNotFound,
					"proxy not found",
					http.StatusNotFound,
					core.ErrorProxyNotFound,
					map[string]any{"routing_key": routingKey},
				)
			}
			if lookupCtx.Err() != nil {
				return core.Proxy{}, dispatchWrapError(
					resolved.err,
					goerrors.CategoryInternal,
					"routing lookup timed out",
					http.StatusInternalServerError,
					core.ErrorDBTimeout,
					map[string]any{"routing_key": routingKey},
				)
			}
			return core.Proxy{}, dispatchWrapError(
				resolved.err,
				goerrors.CategoryInternal,
				"routing lookup failed",
				http.StatusInternalServerError,
				core.ErrorInternal,
				map[string]any{"routing_key": routingKey},
			)
		}
		return resolved.proxy, nil
	}
}

func isNotFound(err error) bool {
	if errors.Is(err, core.ErrProxyNotFound) {
		return true
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryNotFound
	}
	return false
}
