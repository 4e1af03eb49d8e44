package ctxkeys

import (
	"context"

	"github.com/stepwise-app/stepwise/internal/config"
	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/service"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	IdentityKey  contextKey = "identity"
	UserKey      contextKey = "user"
	RequestIDKey contextKey = "request_id"
	ConfigKey    contextKey = "config"
	AuthViaKey   contextKey = "auth_via"
)

// How the session token reached the server.
const (
	AuthViaBearer = "bearer"
	AuthViaCookie = "cookie"
)

func Identity(ctx context.Context) *service.Identity {
	id, _ := ctx.Value(IdentityKey).(*service.Identity)
	return id
}

func WithIdentity(ctx context.Context, id *service.Identity, via string) context.Context {
	ctx = context.WithValue(ctx, IdentityKey, id)
	return context.WithValue(ctx, AuthViaKey, via)
}

// AuthVia returns AuthViaBearer, AuthViaCookie or "" for anonymous requests.
func AuthVia(ctx context.Context) string {
	via, _ := ctx.Value(AuthViaKey).(string)
	return via
}

// User returns the database user for the session, if the row exists yet.
func User(ctx context.Context) *model.User {
	user, _ := ctx.Value(UserKey).(*model.User)
	return user
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func Config(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(ConfigKey).(*config.Config)
	return cfg
}

func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, ConfigKey, cfg)
}
