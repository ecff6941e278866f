// Package cmd implements the imagematch command-line interface.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"imagematch/config"
	"imagematch/logging"
	"imagematch/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
}

// NewRootCmd builds the command tree with a fresh configuration.
func NewRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:   "imagematch",
		Short: "Find near-duplicate images with deep visual embeddings",
		Long: `imagematch compares a small set of reference images against a large
directory tree and reports every image whose embedding is close enough to
one of the references.

Configuration is read from flags, IMAGEMATCH_* environment variables and
an optional YAML file (default: ./.imagematch.yaml or $HOME/.imagematch.yaml).`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { logging.CloseLogger() },
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	pf.Bool("debug", false, "enable debug logging")
	pf.String("logfile", "", "write logs to this file (implies --debug)")
	pf.String("database", "", fmt.Sprintf("run history database (default %s)", utils.GetDefaultDatabasePath()))
	pf.StringSlice("extensions", nil, "image extensions to scan")
	pf.StringSlice("exclude", nil, "directories to skip, relative to the scanned root or absolute")
	_ = a.v.BindPFlag("debug", pf.Lookup("debug"))
	_ = a.v.BindPFlag("logfile", pf.Lookup("logfile"))
	_ = a.v.BindPFlag("database", pf.Lookup("database"))
	_ = a.v.BindPFlag("extensions", pf.Lookup("extensions"))
	_ = a.v.BindPFlag("excluded_dirs", pf.Lookup("exclude"))

	rootCmd.AddCommand(
		a.newSearchCmd(),
		a.newCheckCmd(),
		a.newListCmd(),
		a.newHistoryCmd(),
		a.newConfigCmd(),
	)
	return rootCmd
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.readConfigFile(); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	if cfg.Database == "" {
		cfg.Database = utils.GetDefaultDatabasePath()
	}
	a.cfg = cfg

	logging.SetOutput(cmd.ErrOrStderr())
	if cfg.LogFile != "" {
		if err := logging.SetupLogger(cfg.LogFile); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Failed to setup logging: %v\n", err)
		}
	} else {
		logging.SetDebug(cfg.Debug)
	}
	return nil
}

func (a *app) readConfigFile() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home)
		}
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".imagematch")
	}

	err := a.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		logging.DebugLog("Using config file: %s", a.v.ConfigFileUsed())
	case errors.As(err, &notFound) && a.cfgFile == "":
	default:
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}
