package cli

import (
	"strings"

	"dayplan-cli/internal/model"
	"dayplan-cli/internal/session"

	"github.com/spf13/cobra"
)

func newResultCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result",
		Short: "Report how the day went",
	}
	cmd.AddCommand(newResultSubmitCmd(app))
	cmd.AddCommand(newResultDraftCmd(app))
	return cmd
}

func newResultSubmitCmd(app *App) *cobra.Command {
	var number string
	var percent string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a result (number >= 1, percent 0-100); without flags the saved draft is sent",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDraft := number == "" && percent == ""
			var n, p int
			if !fromDraft {
				var err error
				if n, err = session.ParseResultNumber(number); err != nil {
					return writeErr(cmd, err)
				}
				if p, err = session.ParsePercent(percent); err != nil {
					return writeErr(cmd, err)
				}
			}
			e, err := app.open(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			if fromDraft {
				err = e.sess.SubmitResultDraft(cmd.Context())
			} else {
				err = e.sess.SubmitResult(cmd.Context(), n, p)
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"submitted": true}})
		},
	}

	cmd.Flags().StringVar(&number, "number", "", "Task number (whole number >= 1)")
	cmd.Flags().StringVar(&percent, "percent", "", "Completion percent (0-100)")

	return cmd
}

func newResultDraftCmd(app *App) *cobra.Command {
	var number string
	var percent string

	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Keep a result draft locally until it is submitted",
		RunE: func(cmd *cobra.Command, args []string) error {
			var p model.OptionalInt
			if strings.TrimSpace(percent) != "" {
				v, err := session.ParsePercent(percent)
				if err != nil {
					return writeErr(cmd, err)
				}
				p = model.Int(v)
			}
			if strings.TrimSpace(number) != "" {
				if _, err := session.ParseResultNumber(number); err != nil {
					return writeErr(cmd, err)
				}
			}
			e, err := app.open(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			if err := e.sess.SetResultDraft(cmd.Context(), number, p); err != nil {
				return writeErr(cmd, err)
			}
			snap := e.sess.Snapshot()
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"resultNumber":  snap.ResultNumber,
				"resultPercent": snap.ResultPercent,
			}})
		},
	}

	cmd.Flags().StringVar(&number, "number", "", "Task number")
	cmd.Flags().StringVar(&percent, "percent", "", "Completion percent (0-100)")

	return cmd
}
