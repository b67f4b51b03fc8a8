package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/research-agent/internal/config"
	"github.com/jonathan/research-agent/internal/observability"
	"github.com/jonathan/research-agent/internal/schemas"
	"github.com/jonathan/research-agent/internal/types"
)

var (
	askJSON  bool
	askQuick bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Research a question and print a cited answer",
	Long: `Decompose a question into web searches, gather sources and print an answer
with numbered citations. Use --quick to answer from the model alone.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the result as JSON")
	askCmd.Flags().BoolVar(&askQuick, "quick", false, "Answer without searching the web")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	question := strings.Join(args, " ")

	if askQuick {
		return runQuickAnswer(cmd, cfg, logger, question)
	}

	p, closeFn, err := buildPipeline(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer closeFn()

	result := p.Run(cmd.Context(), question)

	if askJSON {
		if err := schemas.ValidateResearchResult(result); err != nil {
			return fmt.Errorf("result failed schema validation: %w", err)
		}
		return writeJSON(cmd, result)
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	printer.PrintQueries(result.QueriesUsed)
	printer.PrintSources(result.Sources)
	printer.PrintAnswer(&result)
	return nil
}

func runQuickAnswer(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, question string) error {
	quick, closeFn, err := buildQuickAnswerer(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	answer := quick.QuickAnswer(cmd.Context(), question)
	if askJSON {
		return writeJSON(cmd, types.QuickAnswerResponse{
			Answer:   answer,
			Question: strings.TrimSpace(question),
		})
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), answer)
	return err
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
