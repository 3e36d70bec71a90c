package main

import (
	"context"
	"fmt"

	"github.com/jensneuse/abstractlogger"
	"github.com/spf13/cobra"
)

func (a *app) printSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "print-schema",
		Short:   "print-schema validates the schema and prints it as SDL",
		Example: "gqlguard print-schema --schema ./graphql > schema.graphql",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load(cmd)
			if err != nil {
				return err
			}
			sch, err := loadSchema(context.Background(), cfg, abstractlogger.NoopLogger)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), sch.Render())
			return nil
		},
	}
}
