package grpcx

import (
	"context"

	"github.com/md-rashed-zaman/apptreserve/libs/httpx"
)

// RequestIDMetadataKey carries the request id over gRPC metadata (lowercase per gRPC conventions).
const RequestIDMetadataKey = "x-request-id"

// RequestIDFromContext shares the context slot used by httpx so ids survive HTTP -> gRPC hops.
func RequestIDFromContext(ctx context.Context) string {
	return httpx.RequestIDFromContext(ctx)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return httpx.ContextWithRequestID(ctx, id)
}

func NewRequestID() string {
	return httpx.NewRequestID()
}
