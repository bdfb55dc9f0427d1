package httpinterface

import (
	"errors"
	"net/http"

	"github.com/tgmarket/escrowd/internal/core/application/escrow"
	"github.com/tgmarket/escrowd/internal/core/ports"
)

var errMalformedBody = errors.New("malformed request body")

var kindToHTTPStatus = map[string]int{
	escrow.KindInvalidInput: http.StatusBadRequest,
	escrow.KindNotFound:     http.StatusNotFound,
	escrow.KindUnauthorized: http.StatusForbidden,
	escrow.KindInvalidState: http.StatusConflict,
	escrow.KindConflict:     http.StatusConflict,
	escrow.KindContention:   http.StatusServiceUnavailable,
	escrow.KindInternal:     http.StatusInternalServerError,
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, errMalformedBody),
		errors.Is(err, ports.ErrInvalidSubscription):
		return escrow.KindInvalidInput
	case errors.Is(err, ports.ErrSubscriptionNotFound):
		return escrow.KindNotFound
	default:
		return escrow.ErrorKind(err)
	}
}

func httpStatus(kind string) int {
	if status, ok := kindToHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}
