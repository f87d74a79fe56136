package api

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/surveylogic/internal/types"
)

// ErrInvalidRequest indicates a request missing required fields.
var ErrInvalidRequest = errors.New("invalid request")

// Error mapping shared by both transports:
//   - missing survey or page maps to NOT_FOUND
//   - malformed requests and unusable layouts map to INVALID_ARGUMENT
//   - context timeouts map to DEADLINE_EXCEEDED
//   - everything else is a storage failure and maps to UNAVAILABLE

// Code maps a service error onto a gRPC status code.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, types.ErrSurveyNotFound), errors.Is(err, types.ErrPageNotFound):
		return codes.NotFound
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, types.ErrDuplicateID),
		errors.Is(err, types.ErrNestedLoop):
		return codes.InvalidArgument
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Unavailable
	}
}

// toStatus converts a service error into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(Code(err), err.Error())
}

// HTTPStatus maps a service error onto an HTTP status code.
func HTTPStatus(err error) int {
	switch Code(err) {
	case codes.OK:
		return http.StatusOK
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return 499
	default:
		return http.StatusServiceUnavailable
	}
}
