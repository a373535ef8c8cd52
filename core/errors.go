package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorInvalidPlatform     = "HOOK_INVALID_PLATFORM"
	ErrorProxyNotFound       = "HOOK_PROXY_NOT_FOUND"
	ErrorProxyInactive       = "HOOK_PROXY_INACTIVE"
	ErrorPlatformMismatch    = "HOOK_PLATFORM_MISMATCH"
	ErrorDBTimeout           = "HOOK_DB_TIMEOUT"
	ErrorAdapterCreateFailed = "HOOK_ADAPTER_CREATE_FAILED"
	ErrorSignatureInvalid    = "HOOK_SIGNATURE_INVALID"
	ErrorMalformedPayload    = "HOOK_MALFORMED_PAYLOAD"
	ErrorMalformedRequest    = "HOOK_MALFORMED_REQUEST"
	ErrorServerConfiguration = "HOOK_SERVER_CONFIG"
	ErrorBroadcastFailed     = "HOOK_BROADCAST_FAILED"
	ErrorInternal            = "HOOK_INTERNAL_ERROR"
)

// GatewayErrorMapper normalizes any pipeline error into a goerrors envelope
// with a definite HTTP status and text code, filling defaults by category
// when a raw error escapes a stage unmapped.
func GatewayErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureGatewayEnvelope(richErr)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureGatewayEnvelope(mapped)
}

func ensureGatewayEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = gatewayHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultGatewayTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultGatewayTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorMalformedRequest
	case goerrors.CategoryNotFound:
		return ErrorProxyNotFound
	case goerrors.CategoryAuth:
		return ErrorSignatureInvalid
	case goerrors.CategoryAuthz:
		return ErrorProxyInactive
	case goerrors.CategoryOperation:
		return ErrorBroadcastFailed
	default:
		return ErrorInternal
	}
}

func gatewayHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
