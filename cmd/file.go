package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chaos-io/cutout/util"
)

func newFileCommand(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file IN OUT",
		Short: "Cut out a local file or URL and write the PNG to OUT",
		Example: `  cutout file shirt.jpg shirt.png
  cutout file https://example.com/shirt.jpg - > shirt.png`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, cmd, *cfgFile)
			if err != nil {
				return err
			}
			defer a.close()

			data, err := util.ReadInput(ctx, args[0])
			if err != nil {
				return err
			}

			out, err := a.processor(nil, a.remover()).Cutout(ctx, data)
			if err != nil {
				return err
			}

			if err := util.WriteOutput(args[1], out.PNG); err != nil {
				return err
			}
			a.logger.Info("wrote cutout", "path", args[1], "width", out.Width, "height", out.Height, "bytes", len(out.PNG))
			return nil
		},
	}

	cmd.Flags().String("rembg-backend", "http", "http or none")
	cmd.Flags().String("rembg-url", "http://localhost:7000", "rembg server base URL")
	cmd.Flags().String("rembg-model", "u2net", "rembg model name")
	cmd.Flags().Bool("enhance", true, "sharpen, adjust and pad onto a square canvas")
	cmd.Flags().Bool("trim", false, "crop to the subject before enhancing")
	cmd.Flags().Int("canvas-size", 800, "square canvas size in pixels")
	return cmd
}
