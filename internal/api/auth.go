package api

import (
	"context"
	"crypto/subtle"
	"strings"

	"glowbook/internal/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	permReadAvailability  = "read:availability"
	permReadSlots         = "read:slots"
	clientKeyUnknown      = "unknown"
	healthServicePrefix   = "/grpc.health.v1.Health/"
)

// methodPermissions maps gRPC methods to the permission a partner key needs.
// Methods missing here need none.
var methodPermissions = map[string]string{
	availabilityMethodPrefix + "GetAvailability":  permReadAvailability,
	availabilityMethodPrefix + "GetBookableDates": permReadAvailability,
	availabilityMethodPrefix + "GetFreeSlots":     permReadSlots,
}

func requiredPermission(fullMethod string) string {
	return methodPermissions[fullMethod]
}

// apiClient is a configured partner key with its permission set resolved.
type apiClient struct {
	name  string
	extra string
	// perms nil grants everything.
	perms map[string]struct{}
}

func newAPIClient(k config.APIClientKey) apiClient {
	c := apiClient{name: k.Name, extra: k.Extra}
	if len(k.Permissions) > 0 {
		c.perms = make(map[string]struct{}, len(k.Permissions))
		for _, p := range k.Permissions {
			c.perms[strings.TrimSpace(p)] = struct{}{}
		}
	}
	return c
}

func (c apiClient) can(perm string) bool {
	if perm == "" || c.perms == nil {
		return true
	}
	_, ok := c.perms[perm]
	return ok
}

type apiClientKey struct{}

// APIClientFromContext returns the partner name the call authenticated as.
func APIClientFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(apiClientKey{}).(string)
	return name, ok
}

// AuthInterceptor guards the gRPC surface with partner API keys and
// per-key throttling. Health checks bypass it.
type AuthInterceptor struct {
	enabled     bool
	authEnabled bool
	keyHeader   string
	extraHeader string
	clients     map[string]apiClient
	limiter     *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	clients := make(map[string]apiClient, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		clients[k.Key] = newAPIClient(k)
	}

	return &AuthInterceptor{
		enabled:     cfg.Enabled,
		authEnabled: cfg.Auth.Enabled,
		keyHeader:   headerName(cfg.Auth.HeaderAPIKey, apiKeyHeaderDefault),
		extraHeader: headerName(cfg.Auth.HeaderExtra, apiExtraHeaderDefault),
		clients:     clients,
		limiter:     newRateLimiter(cfg.RateLimit),
	}
}

func headerName(configured, fallback string) string {
	if h := strings.ToLower(strings.TrimSpace(configured)); h != "" {
		return h
	}
	return fallback
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !a.enabled || strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}

		if a.authEnabled {
			client, err := a.authenticate(ctx)
			if err != nil {
				return nil, err
			}
			if !client.can(requiredPermission(info.FullMethod)) {
				return nil, status.Error(codes.PermissionDenied, "permission denied")
			}
			ctx = context.WithValue(ctx, apiClientKey{}, client.name)
		}

		if !a.limiter.Allow(a.clientKey(ctx)) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) authenticate(ctx context.Context) (apiClient, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return apiClient{}, status.Error(codes.Unauthenticated, "missing metadata")
	}

	key := firstValue(md, a.keyHeader)
	extra := firstValue(md, a.extraHeader)
	if key == "" || extra == "" {
		return apiClient{}, status.Error(codes.Unauthenticated, "missing api key headers")
	}

	client, ok := a.clients[key]
	if !ok {
		return apiClient{}, status.Error(codes.Unauthenticated, "invalid api key")
	}
	if subtle.ConstantTimeCompare([]byte(client.extra), []byte(extra)) != 1 {
		return apiClient{}, status.Error(codes.Unauthenticated, "invalid extra header")
	}
	return client, nil
}

// clientKey buckets throttling by API key, falling back to the peer address.
func (a *AuthInterceptor) clientKey(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if key := firstValue(md, a.keyHeader); key != "" {
		return key
	}
	return peerAddr(ctx)
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func firstValue(md metadata.MD, key string) string {
	vals := md.Get(key)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
