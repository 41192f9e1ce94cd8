package cli

import (
	"dayplan-cli/internal/identity"
	"dayplan-cli/internal/model"
	"dayplan-cli/internal/store"

	"github.com/spf13/cobra"
)

type whoami struct {
	identity.Resolution
	StorageKey string           `json:"storageKey"`
	Database   string           `json:"database"`
	LoadStatus store.LoadStatus `json:"loadStatus"`
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Resolve the current user (platform > launch params > last used > generated)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.open(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			return writeOut(cmd, app, map[string]any{"data": whoami{
				Resolution: e.ident,
				StorageKey: store.StorageKey(app.storagePrefix(), e.ident.ID),
				Database:   e.kv.Path(),
				LoadStatus: e.sess.LoadResult().Status,
			}})
		},
	}
}

func newIdentityCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage the user id recorded on this device",
	}
	cmd.AddCommand(newIdentityUseCmd(app))
	return cmd
}

func newIdentityUseCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use <user-id>",
		Short: "Make <user-id> the current user; its data is seeded from the previous user if it has none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kv, err := app.openKV(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer kv.Close()

			res, err := app.resolver(kv, app.logger(cmd)).Use(ctx, model.UserID(args[0]))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
	return cmd
}
