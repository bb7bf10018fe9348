package cli

import (
	"github.com/spf13/cobra"

	"btc-predictor/internal/app"
)

var (
	simulateTimeframe  string
	simulateDirection  string
	simulateConfidence float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one prediction cycle against a synthetic market, no database needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SimulateOptions{
			Timeframe:  simulateTimeframe,
			Direction:  simulateDirection,
			Confidence: simulateConfidence,
		}

		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateTimeframe, "timeframe", "5m", "Timeframe for the simulated cycle")
	simulateCmd.Flags().StringVar(&simulateDirection, "direction", "UP", "Simulated forecast direction (UP, DOWN, FLAT)")
	simulateCmd.Flags().Float64Var(&simulateConfidence, "confidence", 0.9, "Simulated forecast confidence in [0, 1]")
}
