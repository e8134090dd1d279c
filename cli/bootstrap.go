package cli

import (
	"context"
	"fmt"
	"log/slog"

	"cryptocagua/config"
	"cryptocagua/controller"
	"cryptocagua/dao"
	"cryptocagua/pkg/gemini"
	"cryptocagua/pkg/notify"
	"cryptocagua/pkg/sheets"
	"cryptocagua/usecase"

	"github.com/gin-gonic/gin"
)

// App holds every wired component for one process.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    dao.Store
	Settings *dao.SettingsRepository
	Offers   *usecase.OfferUsecase
	Admin    *usecase.AdminUsecase
	Advisor  *usecase.AdvisorUsecase

	closers []func() error
}

// Bootstrap loads configuration and builds the dependency graph.
func Bootstrap(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger()
	return Wire(ctx, cfg, logger)
}

// Wire builds the components from an already loaded config.
func Wire(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	timeout, err := cfg.RemoteTimeout()
	if err != nil {
		return nil, err
	}

	// 1. Local storage
	store, err := dao.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
	}
	app := &App{Config: cfg, Logger: logger, Store: store}
	app.closers = append(app.closers, store.Close)
	logger.Info("local store ready", "driver", cfg.Storage.Driver)

	// 2. Dependency injection
	settings := dao.NewSettingsRepository(store, cfg.Remote.DefaultURL)
	cache := dao.NewOfferCache(store)
	remote := sheets.NewClient(settings, timeout, logger)

	var notifier usecase.Notifier = notify.Nop{}
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.AdminChatID)
		if err != nil {
			logger.Warn("telegram notifications disabled", "error", err)
		} else {
			notifier = tg
		}
	}

	pin, configured := cfg.EffectivePIN()
	if !configured {
		logger.Warn("no admin PIN configured, using the rescue PIN")
	}

	app.Settings = settings
	app.Offers = usecase.NewOfferUsecase(cache, settings, remote, notifier, logger)
	app.Admin = usecase.NewAdminUsecase(settings, remote, pin, !cfg.Remote.AllowAnyHost, logger)

	var advisor usecase.Advisor
	if cfg.AI.APIKey != "" {
		client, err := gemini.NewClient(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			logger.Warn("AI features disabled", "error", err)
		} else {
			advisor = client
			app.closers = append(app.closers, client.Close)
		}
	}
	app.Advisor = usecase.NewAdvisorUsecase(advisor, app.Offers)

	return app, nil
}

// Router builds the HTTP handler for this app.
func (a *App) Router() *gin.Engine {
	offers := controller.NewOfferController(a.Offers, a.Advisor, a.Settings)
	admin := controller.NewAdminController(a.Admin, a.Config.Server.PublicURL)
	return controller.NewRouter(offers, admin)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	if a.Offers != nil {
		a.Offers.Wait()
	}
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
