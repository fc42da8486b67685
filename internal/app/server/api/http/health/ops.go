package health

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) healthCheckOp() huma.Operation {
	return huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/v1/health",
		Summary:     "Проверка доступности сервера",
		Description: "Клиент вызывает перед каждой синхронизацией. 503 - база недоступна.",
		Tags:        []string{"health"},
		Middlewares: h.middleware,
	}
}
