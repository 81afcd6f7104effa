package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	httpcmd "github.com/carelink/carelink_backend/cmd/http"
	systemcmd "github.com/carelink/carelink_backend/cmd/system"
	"github.com/carelink/carelink_backend/pkg/logs"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "carelink",
	Short: "CareLink patient portal backend.",
	Long: `CareLink is the backend of a patient portal for lab results.
It serves the portal's function endpoints (payments, AI summaries, secure
messaging, voice input) and the REST resources behind them.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Commands that load config replace this with logs.New.
		slog.SetDefault(logs.Default())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global config flag, available for all commands.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	// Attach top-level command trees.
	rootCmd.AddCommand(systemcmd.NewSystemCommand())
	rootCmd.AddCommand(httpcmd.NewHTTPCommand())
}
