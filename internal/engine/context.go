package engine

import (
	"context"
	"fmt"

	"btc-predictor/internal/config"
	"btc-predictor/internal/marketdata"
	"btc-predictor/internal/model"
	"btc-predictor/internal/storage"
)

// ContextBuilder assembles the briefing fed to the producer before each new
// forecast: recent price history, the freshest learnings for the timeframe,
// and every active meta-rule. Pure read over the store and the price feed.
type ContextBuilder struct {
	store  storage.Repository
	source marketdata.Source
	window int
	recent int
}

// NewContextBuilder wires the briefing assembly.
func NewContextBuilder(store storage.Repository, source marketdata.Source, cfg config.EngineConfig) *ContextBuilder {
	return &ContextBuilder{
		store:  store,
		source: source,
		window: cfg.HistoryWindow,
		recent: cfg.ContextLearnings,
	}
}

// Build returns the briefing for the next forecast on a timeframe.
func (b *ContextBuilder) Build(ctx context.Context, tf config.Timeframe) (model.Briefing, error) {
	candles, err := b.source.History(ctx, tf.Name, b.window)
	if err != nil {
		return model.Briefing{}, fmt.Errorf("load price history: %w", err)
	}
	if len(candles) == 0 {
		return model.Briefing{}, fmt.Errorf("empty price history: %w", model.ErrPriceUnavailable)
	}

	price, err := b.source.LatestPrice(ctx)
	if err != nil {
		return model.Briefing{}, fmt.Errorf("load current price: %w", err)
	}

	track, err := b.store.TrackRecord(ctx)
	if err != nil {
		return model.Briefing{}, err
	}

	learnings, err := b.store.ListRecentLearnings(ctx, tf.Name, b.recent)
	if err != nil {
		return model.Briefing{}, err
	}

	rules, err := b.store.ListMetaRules(ctx, tf.Name)
	if err != nil {
		return model.Briefing{}, err
	}

	return model.Briefing{
		Timeframe:    tf.Name,
		CurrentPrice: price,
		Candles:      candles,
		Market:       marketdata.AnalyzeStructure(candles),
		Track:        track,
		Learnings:    learnings,
		MetaRules:    rules,
	}, nil
}
