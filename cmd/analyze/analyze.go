package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"offerguard-backend/models"
	"offerguard-backend/service"

	"github.com/spf13/cobra"
)

// newAnalyzeCmd returns a cobra.Command that analyzes one document.
func newAnalyzeCmd() *cobra.Command {
	var jurisdiction string
	var minConfidence float64
	var jsonOutput bool
	var noJudge bool

	cmd := &cobra.Command{
		Use:           "analyze <file|->",
		Short:         "Analyze an offer letter",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		Long: `Analyze an offer letter for compliance violations.

Examples:
  offerguard analyze offer.txt --jurisdiction CA
  cat offer.txt | offerguard analyze - -j NY --json
  offerguard analyze offer.txt -j WA --min-confidence 0.8 --offline`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readDocument(args[0], cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}

			e, err := newEngine(cmd.Context(), !noJudge)
			if err != nil {
				return err
			}
			defer e.Close()

			req := service.AnalyzeRequest{DocumentText: text, Jurisdiction: jurisdiction}
			if cmd.Flags().Changed("min-confidence") {
				req.MinConfidence = &minConfidence
			}

			result, err := e.service.Analyze(cmd.Context(), req)
			if err != nil {
				return err
			}

			resp := models.NewAnalysisResponse(result)
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printReport(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&jurisdiction, "jurisdiction", "j", "", "jurisdiction code, e.g. CA")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", service.DefaultMinConfidence, "minimum violation confidence")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&noJudge, "no-judge", false, "skip the LLM judge")
	_ = cmd.MarkFlagRequired("jurisdiction")

	return cmd
}

func readDocument(path string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func printReport(out io.Writer, resp models.AnalysisResponse) {
	layers := make([]string, len(resp.LayersUsed))
	for i, l := range resp.LayersUsed {
		layers[i] = string(l)
	}

	fmt.Fprintf(out, "Jurisdiction: %s\n", resp.Jurisdiction)
	fmt.Fprintf(out, "Layers:       %s\n", strings.Join(layers, ", "))
	fmt.Fprintf(out, "Compliant:    %t\n", resp.Summary.IsCompliant)
	fmt.Fprintf(out, "Risk:         %s\n", resp.Summary.OverallRisk)

	if len(resp.Violations) == 0 {
		fmt.Fprintln(out, "\nNo violations found.")
		return
	}

	fmt.Fprintf(out, "\n%d violation(s), average confidence %.2f\n\n", resp.TotalViolations, resp.Summary.ConfidenceAvg)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOPIC\tSEVERITY\tCONFIDENCE\tVALIDATION\tCITATION")
	for _, v := range resp.Violations {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n", v.Topic, v.Severity, v.Confidence, v.Validation, models.StringValue(v.Citation))
	}
	w.Flush()

	for _, v := range resp.Violations {
		fmt.Fprintf(out, "\n[%s] %s\n", v.Topic, v.Explanation)
		if v.EvidenceText != nil {
			fmt.Fprintf(out, "  Evidence: %q\n", *v.EvidenceText)
		}
	}
}
