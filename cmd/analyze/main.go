// Package main implements the offerguard CLI for analyzing offer letters
// without running the HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// offline forces hash embeddings and disables the LLM judge.
	offline bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "offerguard",
		Short: "Employment offer compliance checks",
		Long: `offerguard checks an employment offer letter against the statutes of a
jurisdiction using pattern rules, statute retrieval and an optional LLM judge.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: $CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "use local hash embeddings and skip the LLM judge")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newStatutesCmd())
	rootCmd.AddCommand(newRulesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
