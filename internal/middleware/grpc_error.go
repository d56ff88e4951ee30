package middleware

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// gRPC status codes that should be treated as transient/retryable
var transientGRPCCodes = map[codes.Code]bool{
	codes.Unavailable:        true, // 14 - Service temporarily unavailable
	codes.ResourceExhausted:  true, // 8 - Resource exhausted (quota, rate limits)
	codes.FailedPrecondition: true, // 9 - Precondition failed (resource conflicts)
	codes.Aborted:            true, // 10 - Request aborted (transaction conflicts)
	codes.DeadlineExceeded:   true, // 4 - Request deadline exceeded
	codes.Internal:           true, // 13 - Internal server error
	codes.Unknown:            true, // 2 - Unknown errors
}

// WithGRPCErrorHandling classifies gRPC status errors returned by a
// collaborator as transient or permanent CustomErrors. Errors that are
// already classified pass through unchanged.
func WithGRPCErrorHandling() ActivityMiddleware {
	return func(next ActivityFunc) ActivityFunc {
		return func(ctx context.Context, input []byte) ([]byte, error) {
			output, err := next(ctx, input)
			if err == nil {
				return output, nil
			}

			var customErr *errors.CustomError
			if stderrors.As(err, &customErr) {
				return nil, err
			}

			st, ok := status.FromError(err)
			if !ok {
				return nil, err
			}

			code := st.Code()
			if transientGRPCCodes[code] {
				return nil, errors.NewTransientError(
					fmt.Sprintf("GRPC_%s", code.String()),
					fmt.Sprintf("gRPC error (transient): %s", st.Message()),
					err,
				)
			}

			return nil, errors.NewPermanentError(
				fmt.Sprintf("GRPC_%s", code.String()),
				fmt.Sprintf("gRPC error (permanent): %s", st.Message()),
				err,
			)
		}
	}
}

// IsTransientGRPCError checks if an error is a gRPC error with a transient status code
func IsTransientGRPCError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	return transientGRPCCodes[st.Code()]
}

// GetGRPCStatusCode extracts the gRPC status code from an error, if present
func GetGRPCStatusCode(err error) (codes.Code, bool) {
	if err == nil {
		return codes.OK, false
	}

	st, ok := status.FromError(err)
	if !ok {
		return codes.Unknown, false
	}

	return st.Code(), true
}
