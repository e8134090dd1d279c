package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cryptocagua/usecase"
)

func newOffersCommand(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offers",
		Short: "Inspect the offer board",
	}

	var pending, refresh bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List visible offers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if refresh {
				res, err := app.Offers.Refresh(ctx)
				if err != nil {
					return err
				}
				if !res.Fresh {
					fmt.Fprintf(cmd.ErrOrStderr(), "showing cached offers: %v\n", res.RemoteErr)
				}
			}

			q := usecase.Query{View: usecase.ViewPublic}
			if pending {
				q.View = usecase.ViewPending
			}
			offers, err := app.Offers.List(ctx, q)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tTITLE\tPRICE\tBY\tSTATUS")
			for _, o := range offers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t@%s\t%s\n", o.ID, o.Type.Label(), o.Title, o.Price, o.Nickname, o.Status)
			}
			return w.Flush()
		},
	}
	list.Flags().BoolVar(&pending, "pending", false, "show offers awaiting approval (admin only)")
	list.Flags().BoolVar(&refresh, "refresh", false, "read the sheet before listing")

	cmd.AddCommand(list)
	return cmd
}
