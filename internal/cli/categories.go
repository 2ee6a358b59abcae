package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/BerylCAtieno/travel-extract/internal/category"
)

type categoryDoc struct {
	Name        string   `yaml:"name"`
	Token       string   `yaml:"token"`
	Table       string   `yaml:"table"`
	Description string   `yaml:"description"`
	Fields      []string `yaml:"fields"`
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Print every category with its field schema as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs := make([]categoryDoc, 0, len(category.Names()))
			for _, d := range category.All() {
				docs = append(docs, categoryDoc{
					Name:        string(d.Category),
					Token:       d.Token,
					Table:       d.Table,
					Description: d.Description,
					Fields:      d.Fields(),
				})
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(map[string]any{"categories": docs}); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
