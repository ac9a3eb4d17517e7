package cmd

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/shreyanshxt/FinSight/config"
	"github.com/shreyanshxt/FinSight/internal/app"
	"github.com/shreyanshxt/FinSight/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	envFile  string
	logLevel string

	cfg     *config.Config
	secrets config.Secrets
)

var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "AI-assisted trading dashboard backend",
	Long: `FinSight runs a simulated (or Alpaca paper) trading account with an
autonomous agent that trades a watchlist on language-model signals.

It provides:
  - An HTTP API for the dashboard
  - The autonomous decision loop
  - Manual trades, allocation and price refresh from the shell
  - Trade and equity history export`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults apply when empty")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file holding API keys")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level: debug|info|warn|error")
}

func setup(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		cfg = config.Default()
	} else {
		c, err := config.LoadFromFile(cfgFile)
		if err != nil {
			return err
		}
		cfg = c
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	level := logger.ParseLevel(cfg.LogLevel)
	logger.SetLevel(level)
	if level == logger.DEBUG {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	secrets = config.LoadSecrets(envFile)
	return nil
}

// openApp wires every component from the loaded configuration.
func openApp() (*app.App, error) {
	a, err := app.New(cfg, secrets)
	if err != nil {
		return nil, fmt.Errorf("start finsight: %w", err)
	}
	return a, nil
}
