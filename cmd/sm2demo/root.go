package main

import (
	"github.com/smallyu/go-sm2/internal/demo/config"
	"github.com/smallyu/go-sm2/internal/logging"
	"github.com/smallyu/go-sm2/pkg/engine"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sm2demo",
		Short:         "SM2 toolkit and key exchange demo",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		serveCmd(),
		clientCmd(),
		keygenCmd(),
		pubkeyCmd(),
		encryptCmd(),
		decryptCmd(),
		signCmd(),
		verifyCmd(),
	)
	return root
}

// setup resolves the configuration shared by every command.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, *engine.Engine, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, nil, err
	}
	eng, err := engine.New(engine.WithLogger(logger))
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, eng, nil
}
