package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/travel-extract/internal/config"
	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

type rootOptions struct {
	cfgFile string
	verbose bool
}

func (o *rootOptions) load() (*config.Config, *utils.Logger, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if o.verbose {
		level = "debug"
	}
	return cfg, utils.NewLogger(level), nil
}

func newStderrLogger(level string, verbose bool) *utils.Logger {
	if verbose {
		level = "debug"
	}
	return utils.NewLoggerTo(os.Stderr, level)
}

// NewRootCmd builds the travel-extract command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "travel-extract",
		Short: "Extract structured travel bookings from documents and e-mail",
		Long: `travel-extract turns uploaded tickets, confirmations and forwarded
booking e-mails into structured records for five categories: flight,
accommodation, event, transport and cruise.

Text is read with OCR (images), the PDF text layer, or taken as is
(plain text and e-mail bodies), then sent to a generation model whose
JSON reply is normalized and stored per category.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "YAML config file (environment variables override it)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newExtractCmd(opts),
		newCategoriesCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
