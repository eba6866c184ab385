package api

import (
	"context"
	"runtime/debug"
	"time"

	"glowbook/internal/logging"
	"glowbook/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDMetadataKey = "x-request-id"

func grpcLogger(logger *zerolog.Logger) zerolog.Logger {
	return logging.Component(logger, "grpc")
}

// LoggingUnaryInterceptor echoes or assigns x-request-id, logs every call and
// counts it by method and code.
func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	base := grpcLogger(logger)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := requestIDFromMetadata(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, requestID))

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		metrics.IncGRPC(info.FullMethod, code.String())

		ev := base.Info()
		switch code {
		case codes.OK:
		case codes.Internal, codes.Unavailable, codes.Unknown:
			ev = base.Error().Err(err)
		default:
			ev = base.Warn().Err(err)
		}
		ev.Str("request_id", requestID).
			Str("method", info.FullMethod).
			Str("remote", peerAddr(ctx)).
			Str("code", code.String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")

		return resp, err
	}
}

func requestIDFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if id := firstValue(md, requestIDMetadataKey); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

// RecoveryUnaryInterceptor turns a handler panic into codes.Internal.
func RecoveryUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	base := grpcLogger(logger)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			ev := base.Error().
				Interface("panic", r).
				Str("method", info.FullMethod).
				Bytes("stack", debug.Stack())
			if client, ok := APIClientFromContext(ctx); ok {
				ev = ev.Str("api_client", client)
			}
			ev.Msg("grpc handler panic")
			resp, err = nil, status.Error(codes.Internal, "internal error")
		}()
		return handler(ctx, req)
	}
}
