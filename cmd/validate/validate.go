// Package validate checks the sightings file and stored documents.
package validate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vogelring/vogelring-go/internal/conf"
	"github.com/vogelring/vogelring-go/internal/dataset"
	"github.com/vogelring/vogelring-go/internal/errors"
	"github.com/vogelring/vogelring-go/internal/observation"
)

// Command creates the validate command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the sightings file and stored datasets",
		Long: "Load the sightings file and every stored dataset definition, " +
			"reporting parse and validation problems.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, settings)
		},
	}
}

func runValidate(cmd *cobra.Command, settings *conf.Settings) error {
	if err := conf.ValidateSettings(settings); err != nil {
		return err
	}

	table, err := observation.LoadFile(settings.Source.Path)
	if err != nil {
		return fmt.Errorf("sightings file: %w", err)
	}
	cmd.Printf("sightings file %s: %d rows, %d columns\n",
		settings.Source.Path, table.Len(), len(table.Columns()))

	store, err := dataset.NewStore(settings.DatasetsDir())
	if err != nil {
		return err
	}
	summaries, err := store.List()
	if err != nil {
		return err
	}

	problems := 0
	for _, summary := range summaries {
		def, err := store.Load(summary.Name)
		if err != nil {
			cmd.Printf("dataset %q: unreadable: %v\n", summary.Name, err)
			problems++
			continue
		}
		if err := def.Validate(table); err != nil {
			cmd.Printf("dataset %q: %v\n", def.Name, err)
			problems++
			continue
		}
		// Evaluate to surface non-blocking problems as well.
		_, warnings := dataset.Evaluate(table, def)
		for _, w := range warnings {
			cmd.Printf("dataset %q: warning %s: %s\n", def.Name, w.Code, w.Message)
		}
	}

	if problems > 0 {
		return errors.ValidationError(fmt.Sprintf("%d of %d datasets failed validation", problems, len(summaries)))
	}
	cmd.Printf("%d datasets validated\n", len(summaries))
	return nil
}
