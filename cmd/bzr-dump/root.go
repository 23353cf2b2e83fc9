package main

import (
	"github.com/bazaar-community/bzr-go/binternals/config"
	"github.com/bazaar-community/bzr-go/internal/logging"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// debugFlag is the bazaar.conf debug_flags entry that turns on verbose
// output for this tool, on top of the --verbose flag.
const debugFlag = "dump"

type appConfig struct {
	fs     afero.Fs
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	cfg := &appConfig{
		fs:     afero.NewOsFs(),
		logger: zap.NewNop(),
	}

	verbose := false
	confPath := config.DefaultPath()

	cmd := &cobra.Command{
		Use:           "bzr-dump",
		Short:         "inspect bazaar on-disk structures",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			global, err := config.LoadGlobal(cfg.fs, confPath)
			if err != nil {
				return err
			}
			level := "warn"
			if verbose || global.HasDebugFlag(debugFlag) {
				level = "debug"
			}
			cfg.logger, err = logging.New(level)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = cfg.logger.Sync()
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output")
	cmd.PersistentFlags().StringVar(&confPath, "config", confPath, "path to bazaar.conf")

	cmd.AddCommand(newDirstateCmd(cfg))
	cmd.AddCommand(newIndexCmd(cfg))
	cmd.AddCommand(newLeafCmd(cfg))

	return cmd
}
