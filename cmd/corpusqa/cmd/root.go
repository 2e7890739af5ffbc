// Package cmd implements the corpusqa CLI.
package cmd

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corpusqa/corpusqa/internal/config"
	"github.com/corpusqa/corpusqa/internal/logging"
)

var (
	cfgPath   string
	logLevel  string
	debugMode bool
	indexDir  string

	cfg        *config.Config
	logger     *slog.Logger
	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "corpusqa",
	Short: "Ask questions over a document corpus with cited answers",
	Long: `corpusqa ingests documents into a local vector index and answers
questions against them: retrieve relevant chunks, score each as evidence,
and synthesize an answer citing the sources it used.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initRuntime()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			logCleanup()
		}
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default $HOME/.corpusqa/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "shorthand for --log-level debug")
	rootCmd.PersistentFlags().StringVar(&indexDir, "index", "", "index directory (default $HOME/.corpusqa)")
}

func initRuntime() error {
	path := cfgPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".corpusqa", "config.yaml")
		}
	}

	var err error
	cfg, err = config.Load(path)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if debugMode {
		cfg.Logging.Level = "debug"
	}
	if indexDir != "" {
		cfg.Paths.IndexDir = indexDir
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		WriteToStderr: true,
	}
	logger, logCleanup, err = logging.Setup(logCfg)
	return err
}
