package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// PrincipalResolver turns a bearer token into the principal a call runs as.
// An empty token resolves to the anonymous principal.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, token string) (models.Principal, error)
}

type ctxKey string

const principalKey ctxKey = "principal"

const authorizationHeader = "authorization"

// PrincipalFromContext returns the principal stored by the interceptor, or
// the anonymous principal.
func PrincipalFromContext(ctx context.Context) models.Principal {
	if p, ok := ctx.Value(principalKey).(models.Principal); ok {
		return p
	}
	return models.AnonymousPrincipal()
}

func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(authorizationHeader)
	if len(values) == 0 {
		return ""
	}
	token, found := strings.CutPrefix(values[0], "Bearer ")
	if !found {
		return values[0]
	}
	return token
}

// principalInterceptor resolves the caller of every method outside the
// health service. Health checks stay unauthenticated.
func (s *GRPCServer) principalInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if strings.HasPrefix(info.FullMethod, "/"+healthpb.Health_ServiceDesc.ServiceName+"/") {
		return handler(ctx, req)
	}

	p := models.AnonymousPrincipal()
	if token := bearerToken(ctx); token != "" {
		if s.resolver == nil {
			return nil, status.Error(codes.Unauthenticated, "authentication unavailable")
		}
		var err error
		p, err = s.resolver.ResolvePrincipal(ctx, token)
		if err != nil {
			s.logger.Debug(ctx, "token rejected", "method", info.FullMethod, "error", err)
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
	}

	return handler(context.WithValue(ctx, principalKey, p), req)
}
