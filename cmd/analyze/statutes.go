package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"offerguard-backend/service"

	"github.com/spf13/cobra"
)

// newStatutesCmd returns a cobra.Command for browsing the statute corpus.
func newStatutesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statutes",
		Short: "Browse the statute corpus",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list [jurisdiction]",
		Short:         "List jurisdictions, or the statutes of one jurisdiction",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 0 {
				stats := e.service.CorpusStats()
				fmt.Fprintln(w, "JURISDICTION\tSTATUTES")
				for _, j := range e.service.Jurisdictions() {
					fmt.Fprintf(w, "%s\t%d\n", j, stats.Jurisdictions[j])
				}
				return nil
			}

			statutes, err := e.service.ListStatutes(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "TOPIC\tCITATION\tEFFECTIVE")
			for _, s := range statutes {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Topic, s.Citation, s.EffectiveDate)
			}
			return nil
		},
	})

	var jurisdiction string
	searchCmd := &cobra.Command{
		Use:           "search <query...>",
		Short:         "Rank statutes against free text",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			results, err := e.service.SearchStatutes(cmd.Context(), jurisdiction, strings.Join(args, " "))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "SCORE\tTOPIC\tCITATION")
			for _, r := range results {
				fmt.Fprintf(w, "%.3f\t%s\t%s\n", r.Similarity, r.Law.Topic, r.Law.Citation)
			}
			return nil
		},
	}
	searchCmd.Flags().StringVarP(&jurisdiction, "jurisdiction", "j", "", "jurisdiction code, e.g. NY")
	_ = searchCmd.MarkFlagRequired("jurisdiction")
	cmd.AddCommand(searchCmd)

	return cmd
}

// newRulesCmd returns a cobra.Command for checking detection rule files.
func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect detection rules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "validate [file]",
		Short:         "Compile a rules file (or the built-in rules) and print a summary",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rules *service.RuleSet
			var err error
			if len(args) == 1 {
				rules, err = service.LoadRulesFile(args[0])
			} else {
				rules, err = service.DefaultRules()
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "JURISDICTION\tRULES")
			for _, j := range rules.Jurisdictions() {
				fmt.Fprintf(w, "%s\t%d\n", j, len(rules.Rules(j)))
			}
			fmt.Fprintf(w, "TOTAL\t%d\n", rules.Len())
			return nil
		},
	})

	return cmd
}
