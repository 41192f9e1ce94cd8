package cli

import (
	"github.com/spf13/cobra"
)

func newUserCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Backend user record",
	}
	cmd.AddCommand(newUserInitCmd(app))
	cmd.AddCommand(newUserShowCmd(app))
	return cmd
}

func newUserInitCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Register the current user with the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.open(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			msg, err := e.client.InitializeUser(cmd.Context(), e.ident.ID)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"userId": e.ident.ID, "message": msg}})
		},
	}
}

func newUserShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the backend's user record and server-side task list",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.open(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			p, err := e.client.Profile(cmd.Context(), e.ident.ID)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": p})
		},
	}
}

func newHealthCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend (and its tunnel) is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"url":    c.URL("/health"),
				"health": h,
			}})
		},
	}
}
