package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const modelsTimeout = 30 * time.Second

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available to the configured api key",
	Run: func(cmd *cobra.Command, _ []string) {
		models(cmd)
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)

	modelsCmd.Flags().Bool("check", false, "only check the configured model instead of listing all models")
}

func models(cmd *cobra.Command) {
	ctx, cancel := context.WithTimeout(context.Background(), modelsTimeout)
	defer cancel()

	logger := newLogger()
	defer logger.Sync()

	config := mustConfig(logger)

	p, err := newProvider(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building ai provider", zap.Error(err))
	}

	var out any
	if check, _ := cmd.Flags().GetBool("check"); check {
		info, err := p.CheckModel(ctx, "")
		if err != nil {
			logger.Fatal("checking model", zap.String("model", p.Model()), zap.Error(err))
		}
		out = info
	} else {
		list, err := p.ListModels(ctx)
		if err != nil {
			logger.Fatal("listing models", zap.Error(err))
		}
		logger.Info("listing models", zap.Int("count", len(list)))
		out = list
	}

	pretty, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
}
