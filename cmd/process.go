package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaos-io/cutout/util"
)

func newProcessCommand(cfgFile *string) *cobra.Command {
	var (
		eventPath string
		key       string
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the pipeline once for an event file or a bucket/key pair",
		Example: `  cutout process --event s3-put.json
  cat event.json | cutout process --event -
  cutout process --bucket uploads --key closet/shirt.jpg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if (eventPath == "") == (key == "") {
				return errors.New("exactly one of --event or --key is required")
			}

			a, err := setup(ctx, cmd, *cfgFile)
			if err != nil {
				return err
			}
			defer a.close()

			var raw []byte
			if eventPath != "" {
				raw, err = util.ReadInput(ctx, eventPath)
				if err != nil {
					return fmt.Errorf("read event: %w", err)
				}
			} else {
				raw, err = json.Marshal(map[string]string{"bucket": a.cfg.Bucket, "key": key})
				if err != nil {
					return err
				}
			}

			store, err := a.store(ctx)
			if err != nil {
				return err
			}

			res, err := a.processor(store, a.remover()).Process(ctx, raw)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&eventPath, "event", "", `event JSON file, URL, or "-" for stdin`)
	cmd.Flags().String("bucket", "", "source bucket (overrides the bucket env chain)")
	cmd.Flags().StringVar(&key, "key", "", "source object key")
	cmd.Flags().String("output-bucket", "", "bucket for processed images (default: source bucket)")
	cmd.Flags().String("storage", "s3", "s3 or local")
	cmd.Flags().String("local-root", "./data", "root directory for local storage")
	cmd.Flags().String("rembg-backend", "http", "http or none")
	cmd.Flags().String("rembg-url", "http://localhost:7000", "rembg server base URL")
	cmd.Flags().String("rembg-model", "u2net", "rembg model name")
	cmd.Flags().Bool("enhance", true, "sharpen, adjust and pad onto a square canvas")
	cmd.Flags().Bool("trim", false, "crop to the subject before enhancing")
	return cmd
}
