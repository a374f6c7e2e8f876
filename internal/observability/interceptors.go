package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-speech-asr-service/internal/observability/logging"
	"ai-speech-asr-service/internal/observability/metrics"
)

// UnaryServerInterceptor counts unary calls per method and status code.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	l := logging.WithComponent("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		record(m, l.Debug(), info.FullMethod, err, start)
		return resp, err
	}
}

// StreamServerInterceptor counts streams per method and final status code.
// Health watches are the only streams served.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	l := logging.WithComponent("grpc")
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		record(m, l.Info(), info.FullMethod, err, start)
		return err
	}
}

// RecoveryUnaryInterceptor turns a handler panic into codes.Internal.
func RecoveryUnaryInterceptor() grpc.UnaryServerInterceptor {
	l := logging.WithComponent("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				l.Error().Interface("panic", r).Str("method", info.FullMethod).Msg("gRPC handler panicked")
				err = status.Errorf(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func record(m *metrics.Metrics, ev *zerolog.Event, method string, err error, start time.Time) {
	code := status.Code(err).String()
	m.RecordGRPCCall(method, code)
	ev.Str("method", method).
		Str("code", code).
		Dur("duration", time.Since(start)).
		Msg("gRPC call completed")
}
