package dataset

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"studysync/internal/app/server/api/http/middleware/auth"
	"studysync/internal/domain/collection"
	"studysync/internal/domain/dataset"
)

type Handler struct {
	service    collection.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service collection.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With(slog.String("component", "dataset_handler")),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.fetchOp(), h.fetch)
	huma.Register(api, h.preferencesOp(), h.savePreferences)
	huma.Register(api, h.coursesOp(), h.addCourses)
	huma.Register(api, h.upsertOp(), h.upsert)
	huma.Register(api, h.deleteOp(), h.delete)
}

func (h *Handler) fetch(ctx context.Context, _ *fetchInput) (*fetchOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	snap, err := h.service.Fetch(ctx, userID)
	if errors.Is(err, collection.ErrNotFound) {
		return nil, huma.Error404NotFound("dataset not found")
	}
	if err != nil {
		h.log.Error("fetch failed", slog.Int("user_id", userID), slog.Any("error", err))
		return nil, huma.Error500InternalServerError("fetch failed")
	}

	return &fetchOutput{Body: collection.FetchResponse{Status: "Ok", Data: snap}}, nil
}

func (h *Handler) upsert(ctx context.Context, input *upsertInput) (*upsertOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}
	c := dataset.Collection(input.Collection)
	if err := c.Validate(); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	resp, err := h.service.Upsert(ctx, userID, c, input.Body.Rows)
	if errors.Is(err, collection.ErrInvalidData) {
		return nil, huma.Error400BadRequest(err.Error())
	}
	if err != nil {
		h.log.Error("upsert failed", slog.Int("user_id", userID), slog.Any("error", err))
		return nil, huma.Error500InternalServerError("upsert failed")
	}

	resp.Status = "Ok"
	return &upsertOutput{Body: resp}, nil
}

func (h *Handler) delete(ctx context.Context, input *deleteInput) (*deleteOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	err := h.service.Delete(ctx, userID, dataset.Collection(input.Collection), input.ID)
	switch {
	case errors.Is(err, collection.ErrNotFound):
		return nil, huma.Error404NotFound("record not found")
	case errors.Is(err, collection.ErrInvalidData):
		return nil, huma.Error400BadRequest(err.Error())
	case err != nil:
		h.log.Error("delete failed", slog.Int("user_id", userID), slog.Any("error", err))
		return nil, huma.Error500InternalServerError("delete failed")
	}

	return &deleteOutput{Body: collection.StatusResponse{Status: "Ok"}}, nil
}

func (h *Handler) savePreferences(ctx context.Context, input *preferencesInput) (*preferencesOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	applied, err := h.service.SavePreferences(ctx, userID, input.Body)
	if errors.Is(err, collection.ErrInvalidData) {
		return nil, huma.Error400BadRequest(err.Error())
	}
	if err != nil {
		h.log.Error("save preferences failed", slog.Int("user_id", userID), slog.Any("error", err))
		return nil, huma.Error500InternalServerError("save preferences failed")
	}

	return &preferencesOutput{Body: collection.PreferencesResponse{Status: "Ok", Applied: applied}}, nil
}

func (h *Handler) addCourses(ctx context.Context, input *coursesInput) (*coursesOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	courses, err := h.service.AddCourses(ctx, userID, input.Body.Courses)
	if err != nil {
		h.log.Error("add courses failed", slog.Int("user_id", userID), slog.Any("error", err))
		return nil, huma.Error500InternalServerError("add courses failed")
	}

	return &coursesOutput{Body: collection.CoursesResponse{Status: "Ok", Courses: courses}}, nil
}
