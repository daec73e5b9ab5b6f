package grpc

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
	"github.com/dmitrijs2005/pdfsigner/internal/logging"
)

// loggingInterceptor carries the caller's request id into the context and
// logs every unary call with its outcome.
func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(strings.ToLower(common.RequestIDHeader))
		if len(values) > 0 && values[0] != "" {
			ctx = logging.WithRequestID(ctx, values[0])
		}
	}

	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "latency_ms", time.Since(start).Milliseconds()}
	switch code {
	case codes.OK:
		s.logger.Debug(ctx, "grpc call", args...)
	case codes.Internal, codes.Unknown, codes.DataLoss:
		s.logger.Error(ctx, "grpc call", append(args, "error", err)...)
	default:
		s.logger.Warn(ctx, "grpc call", append(args, "error", err)...)
	}

	return resp, err
}
