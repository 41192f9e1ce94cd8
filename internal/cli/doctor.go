package cli

import (
	"strings"

	"dayplan-cli/internal/store"

	"github.com/spf13/cobra"
)

func newDoctorCmd(app *App) *cobra.Command {
	var fail bool
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check local storage, config and backend reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kv, err := app.openKV(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer kv.Close()

			report := store.DoctorLocal(ctx, kv, app.storagePrefix())

			cfg, err := app.config()
			if err != nil {
				report.Issues = append(report.Issues, store.DoctorIssue{Level: store.DoctorIssueLevelError, Code: "config_unreadable", Message: err.Error()})
			} else {
				for _, it := range cfg.Doctor() {
					if it.Code == "config_no_api_url" && strings.TrimSpace(app.APIURL) != "" {
						continue
					}
					report.Issues = append(report.Issues, it)
				}
			}

			if !offline && err == nil {
				c, cerr := app.client(cmd)
				if cerr == nil {
					_, cerr = c.Health(ctx)
				}
				if cerr != nil {
					report.Issues = append(report.Issues, store.DoctorIssue{
						Level:   store.DoctorIssueLevelError,
						Code:    "backend_unreachable",
						Message: describeErr(cerr),
					})
				}
			}

			meta := map[string]any{
				"issues":    len(report.Issues),
				"hasErrors": report.HasErrors(),
				"database":  kv.Path(),
			}
			if err := writeOut(cmd, app, map[string]any{
				"data": report,
				"meta": meta,
			}); err != nil {
				return err
			}

			if fail && report.HasErrors() {
				return store.ErrDoctorIssuesFound
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fail, "fail", false, "Exit with non-zero status if errors are found")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the backend health check")
	return cmd
}
