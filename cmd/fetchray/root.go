package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/gwlsn/fetchray/internal/config"
	"github.com/gwlsn/fetchray/internal/engine"
	"github.com/gwlsn/fetchray/internal/logger"
)

const defaultConfigPath = "config/fetchray.yaml"

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// resolveConfigPath picks the flag, then FETCHRAY_CONFIG, then the default.
func (c *commandContext) resolveConfigPath() string {
	if c.configFlag != nil {
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			return path
		}
	}
	if path := os.Getenv("FETCHRAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.configPath = c.resolveConfigPath()
		cfg, err := config.Load(c.configPath)
		if err != nil {
			c.configErr = fmt.Errorf("load config %s: %w", c.configPath, err)
			return
		}
		if err := cfg.ApplyEnv(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		logger.Init(cfg.LogLevel, cfg.LogFormat)
		c.config = cfg
	})
	return c.config, c.configErr
}

// newEngine returns the yt-dlp adapter, installing the binary first when asked.
func (c *commandContext) newEngine(cmd *cobra.Command) (*engine.YTDLP, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	exe := cfg.YTDLPPath
	if exe == "" && cfg.AutoInstall {
		exe, err = engine.Install(cmd.Context())
		if err != nil {
			return nil, err
		}
		logger.Info("yt-dlp ready", "executable", exe)
	}
	return engine.NewYTDLP(exe), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "fetchray",
		Short:         "Media download server built on yt-dlp",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default: $FETCHRAY_CONFIG or "+defaultConfigPath+")")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newSweepCommand(ctx))
	rootCmd.AddCommand(newFormatsCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
