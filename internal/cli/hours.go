package cli

import (
	"dayplan-cli/internal/model"
	"dayplan-cli/internal/session"

	"github.com/spf13/cobra"
)

func newHoursCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hours",
		Short: "Daily free-hours budget",
	}
	cmd.AddCommand(newHoursSetCmd(app))
	cmd.AddCommand(newHoursDraftCmd(app))
	return cmd
}

func newHoursSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <hours>",
		Short: "Save the free-hours budget (1-24) locally and on the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hours, err := session.ParseFreeHours(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			e, err := app.open(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			synced, err := e.sess.SaveFreeHours(cmd.Context(), hours)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"savedFreeHours": hours, "synced": synced}})
		},
	}
}

func newHoursDraftCmd(app *App) *cobra.Command {
	var unset bool

	cmd := &cobra.Command{
		Use:   "draft [hours]",
		Short: "Set the pending free-hours value used by the next order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v model.OptionalInt
			switch {
			case unset:
			case len(args) == 1:
				h, err := session.ParseFreeHours(args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				v = model.Int(h)
			default:
				return writeErr(cmd, errMissingArg("hours (or --clear)"))
			}
			e, err := app.open(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			if err := e.sess.SetFreeHoursDraft(cmd.Context(), v); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"freeHours": v.Ptr()}})
		},
	}

	cmd.Flags().BoolVar(&unset, "clear", false, "Clear the draft")

	return cmd
}
