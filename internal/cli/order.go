package cli

import (
	"dayplan-cli/internal/session"
	"dayplan-cli/internal/workflow"

	"github.com/spf13/cobra"
)

func newOrderCmd(app *App) *cobra.Command {
	var freeHours string

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Ask the backend to order the task list for today's free hours",
		Long: "Sends the canonical task list to /generate-order. On a non-empty reply both the task list\n" +
			"and the ordered view are replaced; on any failure local data is left as it was.\n" +
			"Free hours: --free-hours, else the pending draft (hours draft), else the saved value.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var hours *int
			if freeHours != "" {
				h, err := session.ParseFreeHours(freeHours)
				if err != nil {
					return writeErr(cmd, err)
				}
				hours = &h
			}
			e, err := app.open(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			if hours == nil {
				hours = e.sess.OrderFreeHours()
			}
			order := workflow.NewOrder(e.client, e.sess, e.logger)
			order.Machine.Observe(func(from, to workflow.Stage, ev workflow.Event) {
				e.logger.Debug("reorder stage", "from", from, "to", to, "event", ev)
			})
			out, err := order.Run(cmd.Context(), hours)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"orderedTasks": out.Ordered,
				"freeHours":    out.FreeHours,
				"message":      out.Message,
			}})
		},
	}

	cmd.Flags().StringVar(&freeHours, "free-hours", "", "Free hours today (1-24)")

	return cmd
}
