// Package cli contains the ingest command line interface.
package cli

import (
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"metadata-ingestion/internal/app"
	"metadata-ingestion/internal/common/logging"
	"metadata-ingestion/internal/config"
)

type rootOptions struct {
	v         *viper.Viper
	cfg       *config.Config
	logCloser io.Closer
	appOpts   []app.Option
}

// NewRootCommand builds the ingest command tree
func NewRootCommand(opts ...app.Option) *cobra.Command {
	o := &rootOptions{v: config.NewViper(), appOpts: opts}

	cmd := &cobra.Command{
		Use:           "ingest",
		Short:         "Ingest pipeline metadata into a metadata registry",
		Long:          `ingest pulls pipelines and their run history from a source platform and stores them in an OpenMetadata-compatible registry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			o.cfg = config.LoadFrom(o.v)
			return o.cfg.Validate()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			o.closeLogger()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP(config.KeyConfig, "c", "./workflow.yaml", "workflow config file")
	flags.String(config.KeyLogLevel, "", "log level (debug, info, warn, error); overrides workflowConfig.loggerLevel")
	flags.String(config.KeyLogFile, "", "also write JSON logs to this file")
	flags.String(config.KeyStateStore, "", "run ledger path; overrides workflowConfig.stateStore.path")
	cobra.CheckErr(o.v.BindPFlags(flags))

	cmd.AddCommand(
		newRunCommand(o),
		newTestConnectionCommand(o),
		newHistoryCommand(o),
	)
	return cmd
}

// newApp loads the workflow, configures logging and builds the application
func (o *rootOptions) newApp() (*app.App, error) {
	wf, err := config.LoadWorkflow(o.cfg.WorkflowPath)
	if err != nil {
		return nil, err
	}

	level := o.cfg.LogLevel
	if level == "" {
		level = wf.WorkflowConfig.LoggerLevel
	}
	closer, err := logging.InitGlobalLogger(level, o.cfg.LogFile)
	if err != nil {
		return nil, err
	}
	o.logCloser = closer

	return app.New(o.cfg, wf, o.appOpts...)
}

func (o *rootOptions) closeLogger() {
	logging.MustSync()
	if o.logCloser != nil {
		_ = o.logCloser.Close()
		o.logCloser = nil
	}
}

// Execute runs the ingest command and returns the process exit code
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		logging.Error("ingest failed", err)
		return 1
	}
	return 0
}
