// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/assistant-operate/internal/config"
	"github.com/xkilldash9x/assistant-operate/internal/observability"
)

// rootOptions carries state shared by every sub-command of one root command instance.
type rootOptions struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	logger  *zap.Logger
}

// NewRootCommand builds a fresh command tree with its own viper instance, so flags and
// config from one invocation never leak into the next.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "assistant-operate",
		Short:         "Drive a vision reasoning endpoint one screen-control turn at a time.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.initialize()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	flags.String("api-url", "", "assistant endpoint base URL (overrides "+config.EnvAPIURL+")")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	_ = opts.v.BindPFlag("assistant.api_url", flags.Lookup("api-url"))
	_ = opts.v.BindPFlag("logger.level", flags.Lookup("log-level"))

	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)
	rootCmd.AddCommand(newHealthCommand(opts), newTurnCommand(opts), newVersionCommand())
	return rootCmd
}

// Execute runs the command tree for the process arguments.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

// initialize reads the config file and environment, then sets up logging.
func (o *rootOptions) initialize() error {
	config.SetDefaults(o.v)

	if o.cfgFile != "" {
		o.v.SetConfigFile(o.cfgFile)
	} else {
		o.v.AddConfigPath(".")
		o.v.SetConfigName("config")
		o.v.SetConfigType("yaml")
	}

	o.v.SetEnvPrefix("ASSISTANT")
	o.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	o.v.AutomaticEnv()

	if err := o.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment apply.
	}

	cfg, err := config.NewConfigFromViper(o.v)
	if err != nil {
		return err
	}
	o.cfg = cfg

	observability.InitializeLogger(cfg.Logger)
	o.logger = observability.GetLogger()
	o.logger.Debug("Configuration loaded",
		zap.String("api_url", cfg.Assistant.APIURL),
		zap.String("config_file", o.v.ConfigFileUsed()))
	return nil
}
