// Command structgrade grades structured extraction output against labeled
// data from the command line: single documents, JSONL corpora, and merging of
// sharded accumulator states.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/reoring/structgrade"
	"github.com/reoring/structgrade/schemafile"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "structgrade",
		Short: "Grade predicted nested records against ground truth",
		Long: `Grades predicted nested/structured records against ground-truth records of
the same schema, producing similarity scores and hierarchical confusion
metrics (TP/FD/FA/FN/TN with derived precision/recall/F1/accuracy).`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(evalCmd())
	rootCmd.AddCommand(mergeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// scoreCmd grades one document pair.
func scoreCmd() *cobra.Command {
	var (
		schemaPath string
		gtPath     string
		predPath   string
		confusion  bool
		nonMatches bool
		derived    bool
		withFD     bool
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Grade a single prediction document against its ground truth",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSchema(schemaPath)
			if err != nil {
				return err
			}
			gt, err := loadObject(gtPath)
			if err != nil {
				return err
			}
			pred, err := loadObject(predPath)
			if err != nil {
				return err
			}
			res, err := structgrade.CompareWith(context.Background(), s, gt, pred, structgrade.CompareOpt{
				IncludeConfusionMatrix: confusion,
				DocumentNonMatches:     nonMatches,
				AddDerivedMetrics:      derived,
				RecallWithFD:           withFD,
			})
			if err != nil {
				return err
			}
			return emitJSON(cmd, res, "-")
		},
	}
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "Schema file (JSON or YAML)")
	cmd.Flags().StringVar(&gtPath, "gt", "", "Ground-truth document (JSON)")
	cmd.Flags().StringVar(&predPath, "pred", "", "Prediction document (JSON)")
	cmd.Flags().BoolVar(&confusion, "confusion", false, "Include the confusion tree")
	cmd.Flags().BoolVar(&nonMatches, "non-matches", false, "Include the flat non-match list")
	cmd.Flags().BoolVar(&derived, "derived", true, "Decorate nodes with derived metrics")
	cmd.Flags().BoolVar(&withFD, "recall-with-fd", false, "Count false discoveries in the recall denominator")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("gt")
	_ = cmd.MarkFlagRequired("pred")
	return cmd
}

// evalCmd streams a JSONL corpus through an accumulator.
func evalCmd() *cobra.Command {
	var (
		schemaPath  string
		inputPath   string
		summaryPath string
		resultsPath string
		statePath   string
		elide       bool
		withFD      bool
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Grade a JSONL corpus of {doc_id, ground_truth, prediction} lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSchema(schemaPath)
			if err != nil {
				return err
			}
			opt := structgrade.BulkOpt{ElideErrors: elide, RecallWithFD: withFD}
			if resultsPath != "" {
				sink, serr := structgrade.OpenJSONLSink(resultsPath)
				if serr != nil {
					return serr
				}
				defer sink.Close()
				opt.Sink = sink
			}
			acc := structgrade.NewAccumulator(s, opt)

			in, err := os.Open(inputPath)
			if err != nil {
				return err
			}
			defer in.Close()

			ctx := context.Background()
			sc := bufio.NewScanner(in)
			sc.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
			line := 0
			for sc.Scan() {
				line++
				raw := strings.TrimSpace(sc.Text())
				if raw == "" {
					continue
				}
				var doc structgrade.Document
				if err := json.Unmarshal([]byte(raw), &doc); err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
				if err := acc.Update(ctx, doc.GroundTruth, doc.Prediction, doc.DocID); err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
			}
			if err := sc.Err(); err != nil {
				return err
			}

			if statePath != "" {
				data, serr := acc.MarshalState()
				if serr != nil {
					return serr
				}
				if werr := os.WriteFile(statePath, data, 0o644); werr != nil {
					return werr
				}
			}
			return emitJSON(cmd, acc.Compute(), summaryPath)
		},
	}
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "Schema file (JSON or YAML)")
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "JSONL corpus file")
	cmd.Flags().StringVarP(&summaryPath, "summary", "o", "-", "Summary output file (- for stdout)")
	cmd.Flags().StringVar(&resultsPath, "results", "", "Append per-document results to this JSONL file")
	cmd.Flags().StringVar(&statePath, "state", "", "Write the accumulator state snapshot to this file")
	cmd.Flags().BoolVar(&elide, "elide-errors", false, "Record per-document failures instead of aborting")
	cmd.Flags().BoolVar(&withFD, "recall-with-fd", false, "Count false discoveries in the recall denominator")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// mergeCmd combines shard state snapshots.
func mergeCmd() *cobra.Command {
	var (
		outPath string
		summary bool
		withFD  bool
	)
	cmd := &cobra.Command{
		Use:   "merge STATE...",
		Short: "Merge shard accumulator states into one state or summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc := structgrade.NewAccumulator(nil, structgrade.BulkOpt{RecallWithFD: withFD})
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				st, err := structgrade.UnmarshalAccumulatorState(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := acc.MergeState(st); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			if summary {
				return emitJSON(cmd, acc.Compute(), outPath)
			}
			data, err := acc.MarshalState()
			if err != nil {
				return err
			}
			return writeOut(cmd, data, outPath)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "Output file (- for stdout)")
	cmd.Flags().BoolVar(&summary, "summary", false, "Emit derived metrics instead of the merged state")
	cmd.Flags().BoolVar(&withFD, "recall-with-fd", false, "Count false discoveries in the recall denominator")
	return cmd
}

func loadSchema(path string) (*structgrade.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return schemafile.FromYAML(data, nil)
	}
	return schemafile.FromJSON(data, nil)
}

func loadObject(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func emitJSON(cmd *cobra.Command, v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeOut(cmd, append(data, '\n'), path)
}

func writeOut(cmd *cobra.Command, data []byte, path string) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
