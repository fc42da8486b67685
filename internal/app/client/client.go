package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/exp/slog"

	"studysync/internal/app/client/calendar"
	"studysync/internal/app/client/config"
	"studysync/internal/domain/dataset"
	"studysync/internal/domain/identity"
)

var ErrRecordNotFound = errors.New("record not found")

type App struct {
	config      *config.Config
	log         *slog.Logger
	httpClient  *httpClient
	storage     Store
	assigner    *identity.Assigner
	syncService *SyncService
	state       *AppState
	// calendarProv подменяет Google Calendar, nil - использовать настройки
	calendarProv calendar.Provider

	// mu защищает data и цикл чтение-изменение-запись хранилища.
	// Тот же мьютекс использует синхронизация.
	mu   gosync.Mutex
	data *dataset.Dataset

	wg  gosync.WaitGroup
	now func() time.Time
}

// AppState хранит состояние приложения
type AppState struct {
	UserLogin string    `json:"user_login"`
	LoggedAt  time.Time `json:"logged_at"`
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	state, err := loadAppState(cfg)
	if err != nil {
		log.Warn("Не удалось загрузить состояние приложения", "error", err)
		state = &AppState{}
	}

	// Инициализируем HTTP клиент
	httpCl, err := NewHTTPClient(cfg, log.With("component", "remote"))
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации HTTP клиента: %w", err)
	}

	assigner := identity.New(identity.Mode(cfg.IDMode))

	// Инициализируем локальное хранилище (используем SQLite)
	var storage Store
	sqliteStorage, err := NewSQLiteStorage(cfg.DataPath, assigner, log.With("component", "store"))
	if err != nil {
		log.Warn("Не удалось инициализировать SQLite, используем память", "error", err)
		storage = NewMemoryStorage(assigner, log.With("component", "store"))
	} else {
		storage = sqliteStorage
	}

	app := newApp(cfg, log, httpCl, httpCl, storage, assigner)
	app.state = state

	// Загружаем токен если он есть
	if token, err := app.GetToken(); err == nil && token != "" {
		httpCl.SetToken(token)
		log.Debug("Токен загружен из файла")
	}

	return app, nil
}

func newApp(cfg *config.Config, log *slog.Logger, httpCl *httpClient, remote Remote, storage Store, assigner *identity.Assigner) *App {
	app := &App{
		config:     cfg,
		log:        log,
		httpClient: httpCl,
		storage:    storage,
		assigner:   assigner,
		state:      &AppState{},
		data:       &dataset.Dataset{},
		now:        time.Now,
	}
	app.syncService = NewSyncService(storage, remote, &app.mu, cfg.StatusClearAfter, log)
	return app
}

func loadAppState(cfg *config.Config) (*AppState, error) {
	statePath := filepath.Join(cfg.ConfigDir, "state.json")

	data, err := os.ReadFile(statePath)
	if errors.Is(err, os.ErrNotExist) {
		return &AppState{}, nil
	}
	if err != nil {
		return nil, err
	}

	var state AppState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (a *App) saveAppState() error {
	statePath := filepath.Join(a.config.ConfigDir, "state.json")
	data, err := json.MarshalIndent(a.state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statePath, data, 0600)
}

// Open загружает локальные данные и восстанавливает статистику синхронизации.
func (a *App) Open(ctx context.Context) error {
	if err := a.reload(ctx); err != nil {
		return err
	}
	if err := a.syncService.RestoreStats(ctx); err != nil {
		a.log.Warn("Не удалось загрузить статистику синхронизации", "error", err)
	}
	return nil
}

func (a *App) reload(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ds, err := a.storage.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("ошибка загрузки данных: %w", err)
	}
	a.data = ds
	return nil
}

// Close дожидается фоновых синхронизаций и закрывает хранилище.
func (a *App) Close() error {
	a.wg.Wait()
	a.syncService.Close()
	return a.storage.Close()
}

// Dataset возвращает копию текущих данных.
func (a *App) Dataset() *dataset.Dataset {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data.Clone()
}

func (a *App) Subscribe(o SyncObserver) {
	a.syncService.Subscribe(o)
}

// ==================== Auth ====================

// IsAuthenticated проверяет, аутентифицирован ли пользователь
func (a *App) IsAuthenticated() bool {
	return a.httpClient.IsAuthenticated()
}

// UserLogin возвращает логин, под которым выполнен вход.
func (a *App) UserLogin() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.UserLogin
}

// GetToken возвращает сохраненный токен
func (a *App) GetToken() (string, error) {
	tokenBytes, err := os.ReadFile(a.config.TokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("токен не найден. Выполните вход: studysync auth login")
		}
		return "", fmt.Errorf("ошибка чтения токена: %w", err)
	}
	return strings.TrimSpace(string(tokenBytes)), nil
}

// SaveToken сохраняет токен аутентификации
func (a *App) SaveToken(token string) error {
	if err := os.WriteFile(a.config.TokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}
	a.httpClient.SetToken(token)
	return nil
}

// ClearToken удаляет токен
func (a *App) ClearToken() error {
	a.httpClient.SetToken("")

	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.UserLogin = ""

	if err := os.Remove(a.config.TokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления токена: %w", err)
	}
	if err := a.saveAppState(); err != nil {
		return fmt.Errorf("ошибка сохранения состояния: %w", err)
	}
	return nil
}

// Register регистрирует нового пользователя
func (a *App) Register(ctx context.Context, login, password string) error {
	if _, err := a.httpClient.Register(ctx, login, password); err != nil {
		return err
	}

	a.log.Info("Пользователь успешно зарегистрирован", "login", login)
	return nil
}

// Login выполняет вход пользователя и запускает первую синхронизацию.
func (a *App) Login(ctx context.Context, login, password string) (*SyncResult, error) {
	token, err := a.httpClient.Login(ctx, login, password)
	if err != nil {
		return nil, err
	}

	if err = a.SaveToken(token); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.state.UserLogin = login
	a.state.LoggedAt = a.now().UTC()
	if err = a.saveAppState(); err != nil {
		a.log.Warn("Не удалось сохранить состояние", "error", err)
	}
	a.mu.Unlock()

	a.log.Info("Вход выполнен успешно", "login", login)
	return a.Sync(ctx, TriggerStartup)
}

// Logout отзывает токен на сервере и удаляет его локально.
func (a *App) Logout(ctx context.Context) error {
	if err := a.httpClient.Logout(ctx); err != nil {
		a.log.Warn("Не удалось отозвать токен на сервере", "error", err)
	}
	return a.ClearToken()
}

// ==================== Sync ====================

// Sync запускает цикл синхронизации и перечитывает локальные данные.
func (a *App) Sync(ctx context.Context, trigger Trigger) (*SyncResult, error) {
	res := a.syncService.Sync(ctx, trigger)
	if res.Outcome == OutcomeSynced || res.Outcome == OutcomePartial {
		if err := a.reload(ctx); err != nil {
			return res, err
		}
	}
	if res.Outcome == OutcomeFailed {
		return res, res.Err()
	}
	return res, nil
}

// SyncStatus возвращает текущий статус, итог последнего цикла и статистику.
func (a *App) SyncStatus() (StatusEvent, *SyncResult, SyncStats) {
	return a.syncService.Status(), a.syncService.LastResult(), a.syncService.GetStats()
}

// triggerSync запускает синхронизацию в фоне после локального изменения.
func (a *App) triggerSync() {
	if !a.config.SyncOnChange || !a.IsAuthenticated() {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.syncTimeout())
		defer cancel()
		if _, err := a.Sync(ctx, TriggerMutation); err != nil {
			a.log.Warn("Фоновая синхронизация не удалась", "error", err)
		}
	}()
}

func (a *App) syncTimeout() time.Duration {
	timeout := a.config.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return 4 * timeout
}

// RunDaemon синхронизирует данные по расписанию, пока не отменен ctx.
func (a *App) RunDaemon(ctx context.Context) error {
	c := cron.New(cron.WithLogger(cronLogger{a.log}))
	schedule := fmt.Sprintf("@every %ds", a.config.SyncInterval)
	if _, err := c.AddFunc(schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, a.syncTimeout())
		defer cancel()
		if _, err := a.Sync(runCtx, TriggerBackground); err != nil {
			a.log.Error("Ошибка синхронизации", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("ошибка расписания синхронизации: %w", err)
	}

	a.log.Info("Фоновая синхронизация запущена",
		"server", a.config.ServerAddress,
		"interval", schedule,
	)
	if _, err := a.Sync(ctx, TriggerStartup); err != nil {
		a.log.Error("Ошибка синхронизации", "error", err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	a.log.Info("Синхронизация остановлена")
	return nil
}

// cronLogger направляет журнал cron в slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}

// ==================== Records ====================

// mutate читает набор из хранилища, применяет fn и сохраняет результат.
// При переполнении хранилища изменения остаются в памяти, а ошибка возвращается.
func (a *App) mutate(ctx context.Context, fn func(ds *dataset.Dataset) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ds, err := a.storage.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("ошибка загрузки данных: %w", err)
	}
	if err := fn(ds); err != nil {
		return err
	}

	if err := a.storage.SaveAll(ctx, ds); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			a.data = ds
		}
		return fmt.Errorf("ошибка сохранения: %w", err)
	}
	a.data = ds
	return nil
}

// AddSession записывает учебную сессию и добавляет курс в список.
func (a *App) AddSession(ctx context.Context, course string, seconds int, notes string) (dataset.Session, error) {
	s := dataset.Session{Course: strings.TrimSpace(course), Seconds: seconds, Notes: notes}
	s.Touch(a.now())
	a.assigner.EnsureID(dataset.CollectionSessions, &s.Meta)
	if err := s.Validate(); err != nil {
		return s, err
	}

	err := a.mutate(ctx, func(ds *dataset.Dataset) error {
		ds.Sessions = append(ds.Sessions, s)
		ds.Courses = addCourse(ds.Courses, s.Course)
		return nil
	})
	if err != nil {
		return s, err
	}
	a.rememberCourse(ctx, s.Course)
	a.triggerSync()
	return s, nil
}

// AddScore записывает результат теста.
func (a *App) AddScore(ctx context.Context, course string, score int, notes string) (dataset.Score, error) {
	sc := dataset.Score{Course: strings.TrimSpace(course), Score: score, Notes: notes}
	sc.Touch(a.now())
	a.assigner.EnsureID(dataset.CollectionScores, &sc.Meta)
	if err := sc.Validate(); err != nil {
		return sc, err
	}

	err := a.mutate(ctx, func(ds *dataset.Dataset) error {
		ds.Scores = append(ds.Scores, sc)
		ds.Courses = addCourse(ds.Courses, sc.Course)
		return nil
	})
	if err != nil {
		return sc, err
	}
	a.triggerSync()
	return sc, nil
}

// AddEvent планирует событие.
func (a *App) AddEvent(ctx context.Context, title, date string, priority dataset.Priority) (dataset.Event, error) {
	e := dataset.Event{Title: strings.TrimSpace(title), Date: date, Priority: priority.OrDefault()}
	e.Touch(a.now())
	a.assigner.EnsureID(dataset.CollectionEvents, &e.Meta)
	if err := e.Validate(); err != nil {
		return e, err
	}

	if err := a.mutate(ctx, func(ds *dataset.Dataset) error {
		ds.Events = append(ds.Events, e)
		return nil
	}); err != nil {
		return e, err
	}
	a.triggerSync()
	return e, nil
}

// SetEventDone отмечает событие выполненным или возвращает его в работу.
func (a *App) SetEventDone(ctx context.Context, id string, done bool) error {
	err := a.mutate(ctx, func(ds *dataset.Dataset) error {
		for i := range ds.Events {
			if ds.Events[i].ID == id {
				ds.Events[i].IsDone = done
				ds.Events[i].Touch(a.now())
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	})
	if err != nil {
		return err
	}
	a.triggerSync()
	return nil
}

// DeleteRecord удаляет запись локально и ставит удаление в очередь на сервер.
func (a *App) DeleteRecord(ctx context.Context, c dataset.Collection, id string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	err := a.mutate(ctx, func(ds *dataset.Dataset) error {
		var found bool
		switch c {
		case dataset.CollectionSessions:
			ds.Sessions, found = removeByID(ds.Sessions, id)
		case dataset.CollectionScores:
			ds.Scores, found = removeByID(ds.Scores, id)
		case dataset.CollectionEvents:
			ds.Events, found = removeByID(ds.Events, id)
		}
		if !found {
			return fmt.Errorf("%w: %s/%s", ErrRecordNotFound, c, id)
		}

		pending, err := a.storage.LoadPendingDeletes(ctx)
		if err != nil {
			return err
		}
		pending = append(pending, PendingDelete{Collection: c, ID: id, DeletedAt: a.now().UTC()})
		return a.storage.SavePendingDeletes(ctx, pending)
	})
	if err != nil {
		return err
	}

	a.log.Debug("Запись удалена", "collection", c.String(), "id", id)
	a.triggerSync()
	return nil
}

// AddCourse добавляет курс. Возвращает false, если такой курс уже есть.
func (a *App) AddCourse(ctx context.Context, name string) (bool, error) {
	var added bool
	err := a.mutate(ctx, func(ds *dataset.Dataset) error {
		ds.Courses, added = dataset.AddCourse(ds.Courses, name)
		dataset.SortCourses(ds.Courses)
		return nil
	})
	if err != nil || !added {
		return added, err
	}
	a.triggerSync()
	return true, nil
}

// SetPreference меняет настройку и обновляет метку настроек.
func (a *App) SetPreference(ctx context.Context, key string, value any) error {
	if key == "" || key == dataset.PreferencesUpdatedAtKey {
		return fmt.Errorf("недопустимый ключ настройки: %q", key)
	}

	err := a.mutate(ctx, func(ds *dataset.Dataset) error {
		if ds.Preferences == nil {
			ds.Preferences = dataset.Preferences{}
		}
		ds.Preferences.Set(key, value, a.now())
		return nil
	})
	if err != nil {
		return err
	}
	a.triggerSync()
	return nil
}

// LastCourse возвращает курс последней сессии.
func (a *App) LastCourse(ctx context.Context) string {
	var course string
	if _, err := a.storage.GetValue(ctx, KeyLastCourse, &course); err != nil {
		a.log.Debug("Последний курс не прочитан", "error", err)
	}
	return course
}

func (a *App) rememberCourse(ctx context.Context, course string) {
	if err := a.storage.SetValue(ctx, KeyLastCourse, course); err != nil {
		a.log.Warn("Не удалось сохранить последний курс", "error", err)
	}
}

func addCourse(courses []string, name string) []string {
	courses, added := dataset.AddCourse(courses, name)
	if added {
		dataset.SortCourses(courses)
	}
	return courses
}

func removeByID[T interface{ Key() string }](records []T, id string) ([]T, bool) {
	for i, r := range records {
		if r.Key() == id {
			return append(records[:i], records[i+1:]...), true
		}
	}
	return records, false
}
