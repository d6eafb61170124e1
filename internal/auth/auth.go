package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// HeaderName carries the API key on gRPC metadata and HTTP requests
const HeaderName = "x-api-key"

// QueryParam carries the API key for browser WebSocket clients, which
// cannot set request headers
const QueryParam = "api_key"

// Authenticator handles API key authentication
type Authenticator struct {
	apiKeys map[string]bool
	enabled bool
}

// NewAuthenticator creates an authenticator. Authentication is disabled
// when no keys are given.
func NewAuthenticator(keys []string, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	auth := &Authenticator{
		apiKeys: make(map[string]bool),
	}

	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key != "" {
			auth.apiKeys[key] = true
		}
	}
	auth.enabled = len(auth.apiKeys) > 0

	if auth.enabled {
		logger.Info("authentication enabled", "keys", len(auth.apiKeys))
	} else {
		logger.Info("authentication disabled (no API keys configured)")
	}
	return auth
}

// Enabled reports whether requests must present a key
func (a *Authenticator) Enabled() bool {
	return a.enabled
}

// ValidateAPIKey checks if the provided API key is valid
func (a *Authenticator) ValidateAPIKey(key string) bool {
	if !a.enabled {
		return true
	}
	for known := range a.apiKeys {
		if subtle.ConstantTimeCompare([]byte(known), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// StreamInterceptor returns a gRPC stream interceptor for authentication
func (a *Authenticator) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if err := a.authenticate(ss.Context()); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

// authenticate validates the API key from context metadata
func (a *Authenticator) authenticate(ctx context.Context) error {
	if !a.enabled {
		return nil
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}

	keys := md.Get(HeaderName)
	if len(keys) == 0 {
		return status.Error(codes.Unauthenticated, "missing API key")
	}

	if !a.ValidateAPIKey(keys[0]) {
		return status.Error(codes.PermissionDenied, "invalid API key")
	}

	return nil
}

// Middleware rejects HTTP requests without a valid key in the header
// or the api_key query parameter
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(HeaderName)
		if key == "" {
			key = r.URL.Query().Get(QueryParam)
		}
		switch {
		case key == "":
			http.Error(w, "missing API key", http.StatusUnauthorized)
		case !a.ValidateAPIKey(key):
			http.Error(w, "invalid API key", http.StatusForbidden)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
