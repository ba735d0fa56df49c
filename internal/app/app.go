// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: открывает хранилище, сессии, Telegram API,
// создаёт движок кампании, админку, HTTP-сервер и планировщик.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"soliumcoin.org/airdrop-bot/internal/bot"
	"soliumcoin.org/airdrop-bot/internal/common"
	"soliumcoin.org/airdrop-bot/internal/config"
	"soliumcoin.org/airdrop-bot/internal/db/postgres"
	"soliumcoin.org/airdrop-bot/internal/db/redis"
	"soliumcoin.org/airdrop-bot/internal/db/sqlite"
	"soliumcoin.org/airdrop-bot/internal/features/admin"
	"soliumcoin.org/airdrop-bot/internal/features/campaign"
	"soliumcoin.org/airdrop-bot/internal/features/ledger"
	"soliumcoin.org/airdrop-bot/internal/httpapi"
	"soliumcoin.org/airdrop-bot/internal/jobs"
	"soliumcoin.org/airdrop-bot/internal/membership"
	"soliumcoin.org/airdrop-bot/internal/notify"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	BotAPI    *telego.Bot
	Engine    *campaign.Engine
	Scheduler *jobs.Scheduler
	HTTP      *httpapi.Server
	Store     ledger.Store
	Notifier  *notify.Notifier

	rdb *goredis.Client
}

// OpenStore открывает хранилище по DB_DRIVER и применяет миграции.
func OpenStore(ctx context.Context, cfg *config.Config) (ledger.Store, error) {
	rewards := ledger.Rewards{
		PerTask:    cfg.RewardPerTask,
		Completion: cfg.CompletionBonus,
		Referral:   cfg.ReferralBonus,
	}

	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return ledger.NewSQLiteStore(db, rewards), nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		return ledger.NewPostgresStore(pool, rewards), nil
	}
	return nil, fmt.Errorf("неизвестный DB_DRIVER %q", cfg.DBDriver)
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// === 1. Хранилище ===
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store

	// === 2. Сессии ввода ===
	var sessions campaign.SessionStore
	var purger jobs.Purger
	if cfg.RedisAddr != "" {
		rdb, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.rdb = rdb
		sessions = campaign.NewRedisSessions(rdb, cfg.SessionTTL)
	} else {
		mem := campaign.NewMemorySessions(cfg.SessionTTL)
		sessions = mem
		purger = mem
		log.Info("REDIS_ADDR не задан, сессии хранятся в памяти")
	}

	// === 3. Telegram Bot API ===
	var opts []telego.BotOption
	if cfg.AppEnv == "development" {
		opts = append(opts, telego.WithDefaultDebugLogger())
	}
	botAPI, err := telego.NewBot(cfg.TelegramBotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	me, err := botAPI.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка getMe: %w", err)
	}
	a.BotAPI = botAPI
	log.Infof("Авторизован как @%s", me.Username)

	// === 4. Сервисы ===
	messenger := bot.NewMessenger(botAPI)
	a.Notifier = notify.New(messenger, cfg.AdminIDs, cfg.NotifyTimeout)
	members := membership.NewChecker(botAPI, cfg.MembershipTimeout)

	settings := campaign.SettingsFromConfig(cfg, me.Username)
	a.Engine = campaign.NewEngine(store, sessions, members, a.Notifier, settings)

	adminService := admin.NewService(store, cfg.TokenName, settings.Location)
	adminHandler := admin.NewHandler(adminService, cfg.IsAdmin, messenger, cfg.TokenName)

	// === 5. Бот ===
	a.Bot = bot.New(botAPI, cfg, messenger, a.Engine, adminHandler, me.Username)

	// === 6. HTTP ===
	if cfg.HTTPAddr != "" {
		a.HTTP = httpapi.New(store, cfg.HTTPAddr)
	}

	// === 7. Планировщик задач ===
	a.Scheduler, err = jobs.NewScheduler(
		common.LoadLocation(cfg.AppTimezone),
		cfg.ReportCron,
		adminService,
		purger,
		a.Notifier.NotifyAdmins,
	)
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

// httpServer — то, что Run требует от HTTP-сервера.
type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// Run запускает планировщик, HTTP-сервер и бота; блокируется до отмены ctx
// или до ошибки любого компонента. Возвращает управление только после
// остановки всех горутин, поэтому после Run хранилище можно закрывать.
func (a *App) Run(ctx context.Context) error {
	var srv httpServer
	if a.HTTP != nil {
		srv = a.HTTP
	}
	return a.run(ctx, func(ctx context.Context) error {
		return a.Bot.Start(ctx, a.BotAPI)
	}, srv)
}

func (a *App) run(ctx context.Context, serveBot func(ctx context.Context) error, srv httpServer) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Scheduler.Start(runCtx); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if srv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// после Shutdown Listen возвращает nil
			if err := srv.Start(); err != nil {
				errCh <- fmt.Errorf("HTTP-сервер: %w", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := serveBot(runCtx); err != nil {
			errCh <- fmt.Errorf("бот: %w", err)
		}
	}()

	var runErr error
	select {
	case <-runCtx.Done():
	case runErr = <-errCh:
		log.WithError(runErr).Error("Компонент остановился с ошибкой")
	}
	cancel()

	if srv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Ошибка остановки HTTP-сервера")
		}
		cancelShutdown()
	}

	// обработчики бота завершены — новых уведомлений не будет
	wg.Wait()
	a.Notifier.Wait()
	return runErr
}

// Close освобождает ресурсы (безопасно для частично созданного App).
func (a *App) Close() {
	if a.Bot != nil {
		a.Bot.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия хранилища")
		}
	}
}
