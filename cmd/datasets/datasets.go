// Package datasets provides dataset inspection commands.
package datasets

import (
	"github.com/spf13/cobra"

	"github.com/vogelring/vogelring-go/internal/conf"
	"github.com/vogelring/vogelring-go/internal/dataset"
)

// Command creates the datasets command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Inspect stored dataset definitions",
	}
	cmd.AddCommand(listCommand(settings))
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored dataset definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := dataset.NewStore(settings.DatasetsDir())
			if err != nil {
				return err
			}
			summaries, err := store.List()
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				cmd.Println("no datasets stored")
				return nil
			}
			for _, s := range summaries {
				cmd.Printf("%s\t%s\t%s\n", s.Name, s.UpdatedAt.Format("2006-01-02 15:04"), s.Description)
			}
			return nil
		},
	}
}
