package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newAdminCommand(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin session and connection checks",
	}

	login := &cobra.Command{
		Use:   "login <pin>",
		Short: "Open the admin session on this node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := load(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ok, err := app.Admin.VerifyPin(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("incorrect PIN")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "admin session opened")
			return nil
		},
	}

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Close the admin session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Admin.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "admin session closed")
			return nil
		},
	}

	test := &cobra.Command{
		Use:   "test",
		Short: "Check that the sheet endpoint accepts writes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			d, err := app.Admin.TestConnection(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", d.Kind, d.Message)
			if !d.OK() {
				return errors.New("connection test failed")
			}
			return nil
		},
	}

	cmd.AddCommand(login, logout, test)
	return cmd
}
