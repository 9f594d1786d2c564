package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/ats-analyzer/internal/extract"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a resume file against a job description once and print the JSON result",
	Run: func(cmd *cobra.Command, _ []string) {
		analyze(cmd)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("resume", "r", "", "path to the resume (PDF, DOCX or plain text)")
	analyzeCmd.Flags().String("job-description", "", "job description text")
	analyzeCmd.Flags().String("job-description-file", "", "path to a file with the job description")

	analyzeCmd.MarkFlagRequired("resume")
	analyzeCmd.MarkFlagsMutuallyExclusive("job-description", "job-description-file")
}

func analyze(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	defer logger.Sync()

	config := mustConfig(logger)

	resumePath, _ := cmd.Flags().GetString("resume")
	data, err := os.ReadFile(resumePath)
	if err != nil {
		logger.Fatal("reading resume", zap.String("path", resumePath), zap.Error(err))
	}

	resumeText, err := extract.Text(ctx, data, "", resumePath)
	if err != nil {
		logger.Fatal("extracting resume text", zap.String("path", resumePath), zap.Error(err))
	}

	jobDescription, err := readJobDescription(cmd)
	if err != nil {
		logger.Fatal("reading job description", zap.Error(err))
	}

	p, err := newProvider(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building ai provider", zap.Error(err))
	}

	verdict, err := newAnalyzer(config.AI, p, logger).Analyze(ctx, resumeText, jobDescription)
	if err != nil {
		logger.Fatal("analysis rejected", zap.Error(err))
	}

	// do not bother error since the verdict only holds strings and ints
	pretty, _ := json.MarshalIndent(verdict, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(pretty))

	if verdict.Degraded {
		logger.Error("analysis degraded, printed the fallback result", zap.String("reason", verdict.Error))
		logger.Sync()
		os.Exit(1)
	}
}

func readJobDescription(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("job-description-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return string(data), nil
	}

	text, _ := cmd.Flags().GetString("job-description")
	if strings.TrimSpace(text) == "" {
		return "", errors.New("set --job-description or --job-description-file")
	}
	return text, nil
}
