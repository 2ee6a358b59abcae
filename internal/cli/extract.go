package cli

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/travel-extract/internal/models"
)

func newExtractCmd(opts *rootOptions) *cobra.Command {
	var cat string

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract one file and print the result as JSON without storing it",
		Long: `Extract one file and print the result as JSON without storing it.

Without --category the model is asked to infer the category.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			// Logs stay off stdout so the JSON can be piped.
			logger := newStderrLogger(cfg.LogLevel, opts.verbose)

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			model, err := newModel(cfg, logger)
			if err != nil {
				return err
			}
			svc := newService(cfg, model, nil, nil, logger)

			res, err := svc.Preview(cmd.Context(), &models.UploadRequest{
				File:        data,
				Filename:    filepath.Base(args[0]),
				ContentType: mime.TypeByExtension(filepath.Ext(args[0])),
				Category:    cat,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVarP(&cat, "category", "c", "", "flights, accommodation, event, transport or cruise")
	return cmd
}
