//регистрация и аутентификация пользователей;
//хранение набора учебных данных (сессии, результаты, события, курсы, настройки);
//синхронизация набора между устройствами одного пользователя.

//GET    /api/v1/health                    # Проверка доступности (публичный)
//POST   /user/register                    # Регистрация (публичный)
//POST   /user/login                       # Логин (публичный)
//POST   /user/logout                      # Выход (auth)
//GET    /api/dataset                      # Полный набор (auth)
//POST   /api/dataset/{collection}         # Записать строки коллекции (auth)
//DELETE /api/dataset/{collection}/{id}    # Удалить запись (auth)
//PUT    /api/dataset/preferences          # Заменить настройки (auth)
//POST   /api/dataset/courses              # Дополнить курсы (auth)

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"

	datasetAPI "studysync/internal/app/server/api/http/dataset"
	healthAPI "studysync/internal/app/server/api/http/health"
	"studysync/internal/app/server/api/http/middleware"
	"studysync/internal/app/server/api/http/middleware/auth"
	"studysync/internal/app/server/api/http/middleware/logger"
	userAPI "studysync/internal/app/server/api/http/user"
	"studysync/internal/app/server/config"
	"studysync/internal/domain/collection"
	"studysync/internal/domain/session"
	"studysync/internal/domain/user"
	"studysync/internal/infrastructure/storage/postgres"
)

type Handlers struct {
	Health  *healthAPI.Handler
	User    *userAPI.Handler
	Dataset *datasetAPI.Handler
}

// New создает *chi.Mux с ВСЕМИ операциями через huma.Register
func New(storage *postgres.Storage, cfg *config.Config, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()
	mux.Use(chimw.RequestID, chimw.Recoverer)

	humaConfig := huma.DefaultConfig("StudySync API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, humaConfig)

	h := handlers(API, storage, cfg, log)
	h.Health.SetupRoutes(API)
	h.User.SetupRoutes(API)
	h.Dataset.SetupRoutes(API)

	return mux
}

func handlers(api huma.API, storage *postgres.Storage, cfg *config.Config, log *slog.Logger) *Handlers {
	sessionRepo := postgres.NewSessionRepository(storage, log)
	sessionService := session.NewService(sessionRepo, cfg.Session.TTL, log)
	authMW := auth.New(api, sessionService, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	healthHandler := healthAPI.NewHandler(storage, log, middlewares.Add(loggerMW.Middleware()).GetAllAndClear())

	userRepo := postgres.NewUserRepository(storage.Pool(), log)
	userService := user.NewService(userRepo, user.NewPasswordValidator(), log)
	public := middlewares.Add(loggerMW.Middleware()).GetAllAndClear()
	authed := middlewares.Add(loggerMW.Middleware(), authMW.Middleware()).GetAllAndClear()
	userHandler := userAPI.NewHandler(userService, sessionService, log, public, authed)

	collectionRepo := postgres.NewCollectionRepository(storage.Pool(), log)
	collectionService := collection.NewService(collectionRepo, log)
	middlewares.Add(loggerMW.Middleware(), authMW.Middleware())
	datasetHandler := datasetAPI.NewHandler(collectionService, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:  healthHandler,
		User:    userHandler,
		Dataset: datasetHandler,
	}
}
