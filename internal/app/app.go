package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"btc-predictor/internal/alerting"
	"btc-predictor/internal/config"
	"btc-predictor/internal/engine"
	"btc-predictor/internal/llm"
	"btc-predictor/internal/marketdata"
	"btc-predictor/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSource() marketdata.Source {
	return marketdata.NewBinance(marketdata.Options{
		BaseURL:        a.Config.Binance.BaseURL,
		Symbol:         a.Config.Binance.Symbol,
		Timeout:        a.Config.Binance.RequestTimeout,
		RequestsPerSec: a.Config.Binance.RequestsPerSec,
	}, a.Logger)
}

func (a *App) newProducer() llm.Producer {
	client := llm.NewClient(llm.Options{
		APIKey:    a.Config.Producer.APIKey,
		BaseURL:   a.Config.Producer.BaseURL,
		Model:     a.Config.Producer.Model,
		MaxTokens: a.Config.Producer.MaxTokens,
	}, a.Logger)
	return llm.NewChatProducer(client, a.Logger)
}

func (a *App) newReviewer() llm.Reviewer {
	client := llm.NewClient(llm.Options{
		APIKey:    a.Config.Reviewer.APIKey,
		BaseURL:   a.Config.Reviewer.BaseURL,
		Model:     a.Config.Reviewer.Model,
		MaxTokens: a.Config.Reviewer.MaxTokens,
	}, a.Logger)
	return llm.NewChatReviewer(client, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running prediction engine.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn is required to run the engine")
	}
	defer closeStore()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	timeframes, err := a.Config.ParsedTimeframes()
	if err != nil {
		return err
	}

	eng := engine.New(engine.Deps{
		Store:    store,
		Locker:   store,
		Producer: a.newProducer(),
		Reviewer: a.newReviewer(),
		Source:   a.newSource(),
		Notifier: a.newNotifier(),
		Config:   a.Config.Engine,
		Logger:   a.Logger,
	}, timeframes)

	a.Logger.Info().Msg("starting prediction engine")
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("engine terminated with error")
		return err
	}

	a.Logger.Info().Msg("prediction engine stopped")
	return nil
}

// StatusOptions configure the status command.
type StatusOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting resolved forecasts.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// MetaOptions configure a forced meta-analysis pass.
type MetaOptions struct {
	Timeframe string
}

// SimulateOptions configure the database-free dry-run cycle.
type SimulateOptions struct {
	Timeframe  string
	Direction  string
	Confidence float64
}
