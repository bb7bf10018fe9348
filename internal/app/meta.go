package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"btc-predictor/internal/config"
	"btc-predictor/internal/engine"
)

// Meta forces a meta-analysis pass without waiting for the scored-count
// trigger. With no --timeframe it sweeps every configured timeframe.
func (a *App) Meta(ctx context.Context, opts MetaOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot run meta-analysis")
	}
	defer closeStore()

	timeframes, err := a.Config.ParsedTimeframes()
	if err != nil {
		return err
	}

	selected := timeframes
	if opts.Timeframe != "" {
		selected = nil
		for _, tf := range timeframes {
			if tf.Name == opts.Timeframe {
				selected = []config.Timeframe{tf}
				break
			}
		}
		if selected == nil {
			return fmt.Errorf("timeframe %q is not configured", opts.Timeframe)
		}
	}

	now := time.Now().UTC()
	for _, tf := range selected {
		runner := engine.NewRunner(engine.Deps{
			Store:    store,
			Locker:   store,
			Notifier: a.newNotifier(),
			Config:   a.Config.Engine,
			Logger:   a.Logger,
		}, tf)
		if err := runner.RunMeta(ctx, now); err != nil {
			return err
		}
	}
	return nil
}
