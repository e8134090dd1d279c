package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newSetupCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:     "setup <code>",
		Short:   "Configure the sheet endpoint from a setup code",
		Example: "cryptocagua setup aHR0cHM6Ly9zY3JpcHQuZ29vZ2xlLmNvbS9tYWNyb3Mvcy9YL2V4ZWM=",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := load(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ok, err := app.Admin.ApplyMagicLink(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("setup code does not contain an endpoint URL")
			}
			url, err := app.Settings.SheetURL(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "endpoint configured: %s\n", url)
			return nil
		},
	}
}
