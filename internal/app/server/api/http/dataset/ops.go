package dataset

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var bearer = []map[string][]string{{"bearer": {}}}

func (h *Handler) fetchOp() huma.Operation {
	return huma.Operation{
		OperationID: "dataset-fetch",
		Method:      http.MethodGet,
		Path:        "/api/dataset",
		Summary:     "Полный набор данных пользователя",
		Description: "404, если у пользователя на сервере еще ничего нет.",
		Tags:        []string{"dataset"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) upsertOp() huma.Operation {
	return huma.Operation{
		OperationID: "dataset-upsert",
		Method:      http.MethodPost,
		Path:        "/api/dataset/{collection}",
		Summary:     "Записать строки коллекции",
		Description: "Строка, сохраненная на сервере позже присланной, не перезаписывается.",
		Tags:        []string{"dataset"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) deleteOp() huma.Operation {
	return huma.Operation{
		OperationID: "dataset-delete",
		Method:      http.MethodDelete,
		Path:        "/api/dataset/{collection}/{id}",
		Summary:     "Удалить запись",
		Tags:        []string{"dataset"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) preferencesOp() huma.Operation {
	return huma.Operation{
		OperationID: "dataset-preferences",
		Method:      http.MethodPut,
		Path:        "/api/dataset/preferences",
		Summary:     "Заменить настройки",
		Tags:        []string{"dataset"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) coursesOp() huma.Operation {
	return huma.Operation{
		OperationID: "dataset-courses",
		Method:      http.MethodPost,
		Path:        "/api/dataset/courses",
		Summary:     "Дополнить список курсов",
		Tags:        []string{"dataset"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}
