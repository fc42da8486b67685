package user

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"studysync/internal/app/server/api/http/middleware/auth"
	"studysync/internal/domain/session"
	"studysync/internal/domain/user"
)

type Handler struct {
	service    user.Servicer
	session    session.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
	authed     huma.Middlewares
}

// NewHandler принимает два набора мидлварей: публичные (регистрация, вход)
// и требующие авторизации (выход).
func NewHandler(service user.Servicer, session session.Servicer, log *slog.Logger, middleware, authed huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		session:    session,
		log:        log,
		middleware: middleware,
		authed:     authed,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.registerOp(), h.register)
	huma.Register(api, h.loginOp(), h.login)
	huma.Register(api, h.logoutOp(), h.logout)
}

func (h *Handler) register(ctx context.Context, input *registerInput) (*registerOutput, error) {
	userID, err := h.service.Register(ctx, input.Body.Login, input.Body.Password)
	switch {
	case errors.Is(err, user.ErrUserExists):
		return nil, huma.Error409Conflict("login already taken")
	case errors.Is(err, user.ErrInvalidInput):
		return nil, huma.Error400BadRequest(err.Error())
	case err != nil:
		h.log.Error("register failed", slog.Any("error", err))
		return nil, huma.Error500InternalServerError("registration failed")
	}

	return &registerOutput{
		Body: RegisterResponse{ID: userID, Status: "Ok"},
	}, nil
}

func (h *Handler) login(ctx context.Context, input *loginInput) (*loginOutput, error) {
	u, err := h.service.Authenticate(ctx, input.Body.Login, input.Body.Password)
	if errors.Is(err, user.ErrInvalidAuth) {
		return nil, huma.Error401Unauthorized("Invalid credentials")
	}
	if err != nil {
		h.log.Error("authenticate failed", slog.Any("error", err))
		return nil, huma.Error500InternalServerError("login failed")
	}

	token, err := h.session.Create(ctx, u.ID)
	if err != nil {
		h.log.Error("create session failed", slog.Int("user_id", u.ID), slog.Any("error", err))
		return nil, huma.Error500InternalServerError("login failed")
	}

	return &loginOutput{
		Body: LoginResponse{Token: token, Status: "Ok"},
	}, nil
}

func (h *Handler) logout(ctx context.Context, _ *logoutInput) (*logoutOutput, error) {
	token, ok := auth.GetToken(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}
	if err := h.session.Revoke(ctx, token); err != nil {
		h.log.Error("revoke session failed", slog.Any("error", err))
		return nil, huma.Error500InternalServerError("logout failed")
	}
	return &logoutOutput{Body: StatusResponse{Status: "Ok"}}, nil
}
