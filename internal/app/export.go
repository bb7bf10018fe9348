package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"btc-predictor/internal/storage"
)

// defaultExportWindow bounds the export when no --from is given.
const defaultExportWindow = 30 * 24 * time.Hour

// Export renders resolved forecasts as CSV and/or a calibration PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-defaultExportWindow)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	resolved, err := store.ListResolvedBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(resolved) == 0 {
		a.Logger.Info().Msg("no resolved forecasts found for export window")
		return nil
	}

	downsampled := downsampleResolved(resolved, opts.MaxPoints)
	a.Logger.Info().Int("total", len(resolved)).Int("exported", len(downsampled)).Msg("exporting resolved forecasts")

	if opts.CSVPath != "" {
		if err := writeResolvedCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeCalibrationPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleResolved(resolved []storage.ResolvedForecast, max int) []storage.ResolvedForecast {
	if max <= 0 || len(resolved) <= max {
		return resolved
	}

	result := make([]storage.ResolvedForecast, 0, max)
	step := float64(len(resolved)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(resolved) {
			idx = len(resolved) - 1
		}
		result = append(result, resolved[idx])
	}
	return result
}

func writeResolvedCSV(path string, resolved []storage.ResolvedForecast) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"created_at", "timeframe", "direction", "entry_price", "target_price",
		"realized_price", "confidence", "consensus", "correct_direction",
		"price_error", "calibration_error", "state",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rf := range resolved {
		record := []string{
			rf.Forecast.CreatedAt.UTC().Format(time.RFC3339),
			rf.Forecast.Timeframe,
			string(rf.Forecast.Direction),
			rf.Forecast.EntryPrice.String(),
			rf.Forecast.TargetPrice.String(),
			rf.Outcome.RealizedPrice.String(),
			strconv.FormatFloat(rf.Forecast.Confidence, 'f', 4, 64),
			string(rf.Consensus),
			strconv.FormatBool(rf.Outcome.CorrectDirection),
			rf.Score.PriceError.String(),
			strconv.FormatFloat(rf.Score.CalibrationError, 'f', 4, 64),
			string(rf.Forecast.State),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

// writeCalibrationPNG plots per-forecast calibration error against a rolling
// accuracy curve so drift in either is visible at a glance.
func writeCalibrationPNG(path string, resolved []storage.ResolvedForecast) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(resolved))
	calibration := make([]float64, len(resolved))
	accuracy := make([]float64, len(resolved))

	correct := 0
	for i, rf := range resolved {
		x[i] = rf.Forecast.CreatedAt
		calibration[i] = rf.Score.CalibrationError
		if rf.Outcome.CorrectDirection {
			correct++
		}
		accuracy[i] = float64(correct) / float64(i+1) * 100
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Calibration error",
			ValueFormatter: valueFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Accuracy (%)",
			ValueFormatter: valueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Calibration error",
				XValues: x,
				YValues: calibration,
			},
			chart.TimeSeries{
				Name:    "Cumulative accuracy %",
				XValues: x,
				YValues: accuracy,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
