// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-digest CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-digest/internal/logging"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/secrets"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from the secrets directory at startup.
var loadedSecrets map[string]string

// logger is built from the configured level before any subcommand runs.
var logger = logging.Discard()

// rootCmd is the base command for the paper-digest CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-digest",
	Short: "Daily arXiv digest with model-written analyses",
	Long: `paper-digest harvests recent arXiv submissions for a set of categories,
keeps the ones matching the topic policy, drops papers already seen on
previous days, asks a language model for a short structured analysis of each
abstract, and writes a Markdown report per day.

Intermediate results are kept as JSONL files under the data directory so an
interrupted run resumes where it stopped.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(viper.GetString(keyLogLevel), cmd.ErrOrStderr())

		s, err := secrets.Load(viper.GetString(keySecretsDir), logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-digest.yaml or ~/.config/paper-digest/paper-digest.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "data", "directory holding batch files and reports")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	_ = viper.BindPFlag(keyDataDir, rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag(keyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))

	setDefaults(viper.GetViper())
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-digest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-digest"))
		}
	}

	bindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// bindEnv enables PAPER_DIGEST_* variables (dots become underscores) and the
// short names kept for existing deployments.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("PAPER_DIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv(keyDate, "PAPER_DIGEST_DATE", "CUSTOM_DATE")
	_ = v.BindEnv(keyForce, "PAPER_DIGEST_FORCE", "FORCE_UPDATE")
	_ = v.BindEnv(keyAILanguage, "PAPER_DIGEST_AI_LANGUAGE", "LANGUAGE")
	_ = v.BindEnv(keyAIModel, "PAPER_DIGEST_AI_MODEL", "MODEL_NAME")
}

// exitCode maps a command error to the process status: 2 for configuration
// problems, 3 when another run holds the lock, 1 otherwise.
func exitCode(err error) int {
	var cfgErr *types.ConfigError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &cfgErr):
		return 2
	case errors.Is(err, pipeline.ErrLocked):
		return 3
	default:
		return 1
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
