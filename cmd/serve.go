package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaos-io/cutout/rembg"
	"github.com/chaos-io/cutout/server"
)

func newServeCommand(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /v1/segment over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, cmd, *cfgFile)
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			remover := a.remover()

			var opts []server.Option
			if w, ok := remover.(rembg.Warmer); ok {
				opts = append(opts, server.WithWarmup(w, a.cfg.RembgWarmupSchedule))
			}

			srv := server.New(a.cfg.ServerAddr, a.processor(store, remover), a.logger, opts...)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("storage", "s3", "s3 or local")
	cmd.Flags().String("local-root", "./data", "root directory for local storage")
	cmd.Flags().String("rembg-url", "http://localhost:7000", "rembg server base URL")
	cmd.Flags().String("rembg-model", "u2net", "rembg model name")
	return cmd
}
