package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"studysync/internal/domain/session"
)

type Auth struct {
	api     huma.API
	session session.Servicer
	log     *slog.Logger
}

func New(api huma.API, session session.Servicer, log *slog.Logger) *Auth {
	return &Auth{
		api:     api,
		session: session,
		log:     log.With(slog.String("component", "auth_middleware")),
	}
}

type contextKey string

const (
	UserIDKey contextKey = "userID"
	TokenKey  contextKey = "token"
)

// Middleware проверяет Bearer-токен и кладет id пользователя в контекст
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		header := ctx.Header("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			a.log.Debug("missing bearer token", slog.String("path", ctx.URL().Path))
			a.unauthorized(ctx)
			return
		}

		userID, err := a.session.Validate(ctx.Context(), token)
		if err != nil {
			a.log.Debug("session validation failed", slog.Any("error", err))
			a.unauthorized(ctx)
			return
		}

		newCtx := WithToken(WithUserID(ctx.Context(), userID), token)
		next(huma.WithContext(ctx, newCtx))
	}
}

func (a *Auth) unauthorized(ctx huma.Context) {
	if err := huma.WriteErr(a.api, ctx, http.StatusUnauthorized, "Unauthorized"); err != nil {
		a.log.Error("failed to write unauthorized response", slog.Any("error", err))
	}
}

func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, TokenKey, token)
}

func GetUserID(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(UserIDKey).(int)
	return userID, ok
}

func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
