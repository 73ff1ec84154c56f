package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragchat/internal/eval"
)

var (
	evalDataPath   string
	evalQualityOut string
	evalSafetyOut  string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate answer quality and safety",
}

var evalQualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Score pipeline answers against a ground truth set",
	Long: `Quality runs every question from a JSONL ground truth file through the
pipeline and has the model judge each answer for relevance and
groundedness on a 1-5 scale. Each input line carries a question and the
reference truth:

  {"question": "What is the deductible?", "truth": "The deductible is $500 per year."}

Results can be written as JSONL for diffing between runs:

  ragchat eval quality --data ground_truth.jsonl --out results.jsonl`,
	Args: cobra.NoArgs,
	RunE: runEvalQuality,
}

var evalSafetyCmd = &cobra.Command{
	Use:   "safety",
	Short: "Probe the pipeline with adversarial questions",
	Long: `Safety sends a fixed set of adversarial questions through the pipeline
and has the model judge whether any answer produced harmful content.
A healthy pipeline refuses them all and reports zero defects.`,
	Args: cobra.NoArgs,
	RunE: runEvalSafety,
}

func init() {
	evalQualityCmd.Flags().StringVar(&evalDataPath, "data", "", "ground truth JSONL file (required)")
	_ = evalQualityCmd.MarkFlagRequired("data")
	evalQualityCmd.Flags().StringVar(&evalQualityOut, "out", "", "write per-case results to this JSONL file")
	evalSafetyCmd.Flags().StringVar(&evalSafetyOut, "out", "", "write per-probe results to this JSONL file")

	evalCmd.AddCommand(evalQualityCmd)
	evalCmd.AddCommand(evalSafetyCmd)
	rootCmd.AddCommand(evalCmd)
}

func runEvalQuality(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Config.RequireChat(); err != nil {
		return err
	}
	if err := a.Config.RequireRetrieval(); err != nil {
		return err
	}

	f, err := os.Open(evalDataPath)
	if err != nil {
		return fmt.Errorf("opening ground truth file: %w", err)
	}
	cases, err := eval.ReadGroundTruth(f)
	f.Close()
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("ground truth file %s has no cases", evalDataPath)
	}

	runner, err := eval.NewQuality(eval.QualityConfig{
		Target: a.Engine,
		Judge:  a.Engine,
		Logger: a.Logger,
	})
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx, cases)
	if err != nil {
		return err
	}

	printQualitySummary(cmd.OutOrStdout(), report)

	if evalQualityOut != "" {
		if err := writeResultsFile(evalQualityOut, report.Results); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", evalQualityOut)
	}
	return nil
}

func runEvalSafety(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Config.RequireChat(); err != nil {
		return err
	}

	runner, err := eval.NewSafety(eval.SafetyConfig{
		Target: a.Engine,
		Judge:  a.Engine,
		Logger: a.Logger,
	})
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	printSafetySummary(cmd.OutOrStdout(), report)

	if evalSafetyOut != "" {
		if err := writeResultsFile(evalSafetyOut, report.Results); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", evalSafetyOut)
	}
	return nil
}

func printQualitySummary(w io.Writer, report *eval.QualityReport) {
	s := report.Summary
	fmt.Fprintf(w, "Quality evaluation %s\n", report.RunID)
	fmt.Fprintf(w, "  Cases:        %d (%d errored)\n", s.Cases, s.Errored)
	fmt.Fprintf(w, "  Relevance:    mean %.2f, pass rate %.0f%%\n", s.MeanRelevance, s.RelevancePassRate*100)
	fmt.Fprintf(w, "  Groundedness: mean %.2f, pass rate %.0f%%\n", s.MeanGroundedness, s.GroundednessPassRate*100)
}

func printSafetySummary(w io.Writer, report *eval.SafetyReport) {
	s := report.Summary
	fmt.Fprintf(w, "Safety evaluation %s\n", report.RunID)
	fmt.Fprintf(w, "  Probes:       %d (%d errored)\n", s.Probes, s.Errored)
	fmt.Fprintf(w, "  Defects:      %d (%.0f%%)\n", s.Defects, s.DefectRate*100)
	fmt.Fprintf(w, "  Max severity: %d\n", s.MaxSeverity)
}

// writeResultsFile writes rows as JSONL, one row per line.
func writeResultsFile[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	if err := eval.WriteJSONL(f, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing results file: %w", err)
	}
	return nil
}
