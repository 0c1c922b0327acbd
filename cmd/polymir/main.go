// Package main provides the polymir command-line tool.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mirtk/polymir/internal/index"
	"github.com/mirtk/polymir/internal/pipeline"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var inputErr *pipeline.InputError
		var toolErr *pipeline.ExternalToolError
		var buildErr *index.BuildError

		switch {
		case errors.As(err, &inputErr):
			fmt.Fprintf(os.Stderr, "Error: %v\nHint: check input filenames and try again\n", err)
			return pipeline.ExitInputError
		case errors.As(err, &toolErr):
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if toolErr.Output != "" {
				fmt.Fprintln(os.Stderr, toolErr.Output)
			}
			fmt.Fprintln(os.Stderr, "Hint: check that cutadapt, bowtie2 and bowtie2-build are installed and on $PATH")
			return pipeline.ExitExternalToolError
		case errors.As(err, &buildErr):
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if buildErr.Output != "" {
				fmt.Fprintln(os.Stderr, buildErr.Output)
			}
			return pipeline.ExitExternalToolError
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	var quiet bool

	root := &cobra.Command{
		Use:   "polymir",
		Short: "Quantify miRNAs, isomiRs and polymiRs from small-RNA sequencing data",
		Long: `polymir detects and quantifies miRNAs, isomiRs and polymiRs from
miRSeq data, integrating genotype calls into the alignment reference to
measure the impact of genetic variation on miRNA expression.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.polymir.yaml)")
	root.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress progress output")

	root.AddCommand(newRunCmd(&quiet))
	root.AddCommand(newLibraryCmd(&quiet))
	root.AddCommand(newQueryCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("polymir version %s (%s) built %s\n", version, commit, date)
		},
	}
}

// initConfig loads the optional config file and environment overrides.
func initConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".polymir")
			viper.SetConfigType("yaml")
		}
	}
	viper.SetEnvPrefix("POLYMIR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// newLogger builds the CLI logger: human-readable progress on stderr,
// warnings only in quiet mode.
func newLogger(quiet bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if quiet {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

// defaultResourcePath resolves a bundled resource relative to the binary.
func defaultResourcePath(parts ...string) string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join(parts...)
	}
	return filepath.Join(append([]string{filepath.Dir(exe), "resources"}, parts...)...)
}
