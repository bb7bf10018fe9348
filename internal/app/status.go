package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Status prints the engine's track record, recent resolved forecasts, failed
// cycles, and the active learning corpus.
func (a *App) Status(ctx context.Context, opts StatusOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show status")
	}
	defer closeStore()

	track, err := store.TrackRecord(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "=== Track record ===")
	fmt.Fprintf(os.Stdout, "forecasts: %d  resolved: %d  correct: %d (%.1f%%)\n",
		track.Total, track.Resolved, track.Correct, track.AccuracyPct)
	fmt.Fprintf(os.Stdout, "avg price error: %.4f  avg calibration error: %.4f  active meta-rules: %d\n\n",
		track.AvgPriceError, track.AvgCalibration, track.ActiveMetaRules)

	resolved, err := store.ListRecentResolved(ctx, opts.Limit)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "=== Recent resolved forecasts ===")
	if len(resolved) == 0 {
		fmt.Fprintln(os.Stdout, "none")
	} else {
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Created (UTC)\tTF\tDir\tEntry\tTarget\tRealized\tConf\tConsensus\tCorrect\tPriceErr\tCalibErr")
		for _, rf := range resolved {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t%s\t%v\t%s\t%.3f\n",
				rf.Forecast.CreatedAt.UTC().Format(time.RFC3339),
				rf.Forecast.Timeframe,
				rf.Forecast.Direction,
				formatDecimal(rf.Forecast.EntryPrice, 2),
				formatDecimal(rf.Forecast.TargetPrice, 2),
				formatDecimal(rf.Outcome.RealizedPrice, 2),
				rf.Forecast.Confidence,
				rf.Consensus,
				rf.Outcome.CorrectDirection,
				formatDecimal(rf.Score.PriceError, 5),
				rf.Score.CalibrationError,
			)
		}
		writer.Flush()
	}
	fmt.Fprintln(os.Stdout)

	failed, err := store.ListFailedForecasts(ctx, opts.Limit)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "=== Failed cycles ===")
	if len(failed) == 0 {
		fmt.Fprintln(os.Stdout, "none")
	} else {
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Created (UTC)\tTF\tDir\tConf\tFailure")
		for _, f := range failed {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%.2f\t%s\n",
				f.CreatedAt.UTC().Format(time.RFC3339),
				f.Timeframe,
				f.Direction,
				f.Confidence,
				sanitizeInline(f.Failure),
			)
		}
		writer.Flush()
	}
	fmt.Fprintln(os.Stdout)

	timeframes, err := a.Config.ParsedTimeframes()
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "=== Learning corpus ===")
	for _, tf := range timeframes {
		learnings, err := store.ListRecentLearnings(ctx, tf.Name, opts.Limit)
		if err != nil {
			return err
		}
		rules, err := store.ListMetaRules(ctx, tf.Name)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "[%s] %d recent learnings, %d meta-rules\n", tf.Name, len(learnings), len(rules))
		for _, l := range learnings {
			fmt.Fprintf(os.Stdout, "  %s %s: %s\n", l.CreatedAt.UTC().Format("2006-01-02 15:04"), l.Kind, sanitizeInline(l.Guidance))
		}
		for _, rule := range rules {
			fmt.Fprintf(os.Stdout, "  rule (%d supports): %s\n", len(rule.SupportIDs), sanitizeInline(rule.Pattern))
		}
	}

	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
