package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version 编译时通过 -ldflags "-X github.com/chaos-io/cutout/cmd.Version=..." 设置
var Version = "dev"

const lambdaEnv = "AWS_LAMBDA_FUNCTION_NAME"

func NewRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "cutout",
		Short: "Remove image backgrounds for objects landing in S3",
		Long: `cutout fetches an uploaded image, removes its background with a rembg
server, optionally tidies it onto a square transparent canvas, and writes the
PNG back under the processed prefix.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("log-level", "info", "debug, info, warn or error")
	root.PersistentFlags().String("log-format", "json", "json or text")

	root.AddCommand(
		newLambdaCommand(&cfgFile),
		newServeCommand(&cfgFile),
		newProcessCommand(&cfgFile),
		newFileCommand(&cfgFile),
	)
	return root
}

func Execute() {
	root := NewRootCommand()
	root.SetArgs(defaultArgs(os.Args[1:], os.Getenv))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// defaultArgs 在 Lambda 运行时里不带参数启动时执行 lambda 子命令
func defaultArgs(args []string, getenv func(string) string) []string {
	if len(args) == 0 && getenv(lambdaEnv) != "" {
		return []string{"lambda"}
	}
	return args
}
