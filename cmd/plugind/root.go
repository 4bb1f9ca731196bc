package main

import (
	"os"

	"github.com/spf13/cobra"

	"plugintree/internal/config"
)

const defaultServer = "http://127.0.0.1:8080"

type rootOptions struct {
	configPath string
	server     string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "plugind",
		Short: "插件身份注册表守护进程",
		Long: `plugind 按配置加载插件管理器，维护插件的短名称与完整路径，
并通过 HTTP 接口暴露注册表的只读视图。`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "配置文件路径，默认读取 $"+config.EnvPath)
	cmd.PersistentFlags().StringVar(&opts.server, "server", defaultServer, "查询命令使用的 plugind 地址")

	cmd.AddCommand(
		newServeCommand(opts),
		newTreeCommand(opts),
		newAvailableCommand(opts),
		newOwnerCommand(opts),
		newLedgerCommand(opts),
	)
	return cmd
}

// loadConfig 未指定路径时回退到默认配置。
func (o *rootOptions) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv(config.EnvPath)
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
