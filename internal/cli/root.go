package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/neurotrace/internal/errors"
	"github.com/ppiankov/neurotrace/internal/logger"
	"github.com/ppiankov/neurotrace/internal/model"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "v0.1.0"

var (
	cfgFile string
	envFile string
	verbose bool
	jsonLog bool

	// configErr holds the first failure from initConfig, reported before any command runs
	configErr error
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "neurotrace",
	Short: "Neurotrace - clinical fact timeline, safety rules and validation",
	Long: `Neurotrace evaluates a snapshot of extracted clinical facts for a
neurosurgical patient.

It places every fact on a patient timeline, detects temporal conflicts,
fires neurosurgical safety rules and scores the fact set through six
validation stages.

Neurotrace is decision support. It does not diagnose or prescribe; every
finding requires clinician review.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return configErr
		}
		if err := logger.Initialize(jsonLog, verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of Neurotrace.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "neurotrace %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.neurotrace/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load NEUROTRACE_* variables from this .env file (default: ./.env if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "emit logs as JSON on stderr")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in the .env file, config file and ENV variables
func initConfig() {
	configErr = nil

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			configErr = errors.NewConfigError("env-file", "cannot load %s: %v", envFile, err)
			return
		}
	} else {
		// .env in the working directory is optional
		_ = godotenv.Load()
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".neurotrace"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	} else if verbose {
		fmt.Fprintf(os.Stderr, "No home directory, skipping config file: %v\n", err)
	}

	// Read in environment variables that match NEUROTRACE_*, with nested keys
	// joined by underscores (NEUROTRACE_VALIDATION_PASS_THRESHOLD)
	viper.SetEnvPrefix("NEUROTRACE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := registerDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		configErr = err
		return
	}

	if err := readConfig(viper.GetViper(), cfgFile); err != nil {
		configErr = err
		return
	}
	if verbose && viper.ConfigFileUsed() != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// readConfig reads the config file into v. Only the default location may be
// absent; a file named with --config must exist, and any file found must parse.
func readConfig(v *viper.Viper, explicit string) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if explicit == "" && errors.As(err, &notFound) {
		return nil
	}

	path := v.ConfigFileUsed()
	if path == "" {
		path = explicit
	}
	return errors.NewConfigError("config", "cannot read %s: %v", path, err)
}

// registerDefaults makes every config key known to viper, which is what lets
// AutomaticEnv resolve nested keys.
func registerDefaults(v *viper.Viper, cfg model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal defaults")
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return errors.Wrap(err, "unmarshal defaults")
	}
	for key, value := range tree {
		v.SetDefault(key, value)
	}
	return nil
}

// loadConfig resolves the layered configuration and validates it.
func loadConfig(v *viper.Viper) (model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.WithHint(errors.Wrap(err, "decode configuration"), "check ~/.neurotrace/config.yaml")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
