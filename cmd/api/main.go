// Command moodlist serves emotion-driven playlist recommendations.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/moodlist/internal/config"
	"github.com/ewilliams-labs/moodlist/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type app struct {
	configPath string
	cfg        *config.Config
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "moodlist",
		Short:         "Emotion-driven playlist recommendations",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file (default: $"+config.PathEnvVar+" or ./moodlist.yaml)")

	rootCmd.AddCommand(
		serveCommand(a),
		seedCommand(a),
		recommendCommand(a),
		versionCommand(),
	)
	return rootCmd
}
