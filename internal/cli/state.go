package cli

import (
	"dayplan-cli/internal/store"

	"github.com/spf13/cobra"
)

func newStateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show everything stored locally for the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(cmd, app)
		},
	}
}

func runState(cmd *cobra.Command, app *App) error {
	e, err := app.open(cmd)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer e.Close()

	load := e.sess.LoadResult()
	out := map[string]any{
		"userId":     e.ident.ID,
		"storageKey": store.StorageKey(app.storagePrefix(), e.ident.ID),
		"loadStatus": load.Status,
		"state":      e.sess.Snapshot(),
	}
	if load.Err != nil {
		out["loadError"] = load.Err.Error()
	}
	return writeOut(cmd, app, map[string]any{"data": out})
}
