package main

import (
	"fmt"
	"os"

	"github.com/mliell/crowdmint/internal/config"
	"github.com/mliell/crowdmint/internal/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	output     string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "campaignctl",
		Short:         "Inspect the crowdmint campaign cache and the on-chain registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format: table or json")

	cmd.AddCommand(
		refreshCmd(opts),
		getCmd(opts),
		donationsCmd(opts),
		classifyCmd(opts),
		runsCmd(opts),
	)
	return cmd
}

// loadConfig 加载配置并初始化日志，命令行默认只输出警告以上
func (o *rootOptions) loadConfig() *config.Config {
	cfg := config.Load(o.configPath)
	if cfg.Log.Level == "" || cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	cfg.Log.Output = "stderr"
	logger.Init(cfg.Log)
	return cfg
}
