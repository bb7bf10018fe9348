package cli

import (
	"github.com/spf13/cobra"

	"btc-predictor/internal/app"
)

var (
	metaTimeframe string
)

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Force a meta-analysis pass over the accumulated learnings",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.MetaOptions{
			Timeframe: metaTimeframe,
		}

		return getApp().Meta(cmd.Context(), opts)
	},
}

func init() {
	metaCmd.Flags().StringVar(&metaTimeframe, "timeframe", "", "Restrict the pass to one timeframe (defaults to all)")
}
